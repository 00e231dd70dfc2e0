package selector

import (
	"math/rand"
	"sync"
	"time"
)

type (
	// Source picks the random fallbacks: an example when the planned one is
	// missing, and a value out of a property enum.
	Source interface {
		// Intn returns a number in [0, n)
		Intn(n int) int
	}

	lockedSource struct {
		mu  sync.Mutex
		rnd *rand.Rand
	}
)

// NewSource returns a Source safe for concurrent use. A zero seed is replaced by the current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rnd.Intn(n)
}
