package plan

import (
	"sync"

	"github.com/zerbitx/ramlizer/catalog"
)

// None is reported for a field that was never planned
const None = catalog.NoExample

type (
	// Entry is the currently planned response of a route. Empty fields were never set.
	Entry struct {
		StatusCode  string `json:"code"`
		ExampleName string `json:"example"`
	}

	// KeyedEntry pairs an Entry with its route, for listings
	KeyedEntry struct {
		Method string `json:"method"`
		Route  string `json:"route"`
		Entry
	}

	// Store holds the plan of every route. A single lock covers the whole map
	// so a Set of both fields is never observed half applied.
	Store struct {
		mu      sync.RWMutex
		entries map[catalog.RouteKey]Entry
		keys    []catalog.RouteKey
	}
)

// NewStore returns an empty Store
func NewStore() *Store {
	return &Store{entries: map[catalog.RouteKey]Entry{}}
}

// Seeded returns a Store holding the default plan of every cataloged route
func Seeded(c *catalog.Catalog) *Store {
	s := NewStore()

	for _, route := range c.Routes() {
		s.Seed(route.Key, Entry{
			StatusCode:  route.DefaultStatusCode,
			ExampleName: route.DefaultExampleName,
		})
	}

	return s
}

// Seed sets both fields of key's entry
func (s *Store) Seed(key catalog.RouteKey, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, entry)
}

// Get returns key's entry, or false when nothing was ever planned for it
func (s *Store) Get(key catalog.RouteKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Set overwrites whichever of statusCode and exampleName is not empty and
// returns the previous values, None standing in for fields never set.
func (s *Store) Set(key catalog.RouteKey, statusCode, exampleName string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.entries[key]
	previous := Entry{
		StatusCode:  orNone(current.StatusCode),
		ExampleName: orNone(current.ExampleName),
	}

	if statusCode != "" {
		current.StatusCode = statusCode
	}

	if exampleName != "" {
		current.ExampleName = exampleName
	}

	if statusCode != "" || exampleName != "" {
		s.put(key, current)
	}

	return previous
}

// Entries lists every planned route in the order it was first planned
func (s *Store) Entries() []KeyedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]KeyedEntry, 0, len(s.keys))
	for _, k := range s.keys {
		entries = append(entries, KeyedEntry{Method: k.Method, Route: k.Route, Entry: s.entries[k]})
	}

	return entries
}

func (s *Store) put(key catalog.RouteKey, entry Entry) {
	if _, exists := s.entries[key]; !exists {
		s.keys = append(s.keys, key)
	}

	s.entries[key] = entry
}

func orNone(v string) string {
	if v == "" {
		return None
	}

	return v
}
