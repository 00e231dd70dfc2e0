package plan

import (
	"github.com/zerbitx/ramlizer/catalog"
)

type (
	// Reconfiguration asks for a new planned response. Empty fields are left untouched.
	Reconfiguration struct {
		Method           string `json:"method" yaml:"method"`
		Route            string `json:"route" yaml:"route"`
		NextResponseCode string `json:"nextResponseCode,omitempty" yaml:"nextResponseCode"`
		NextExampleName  string `json:"nextExampleName,omitempty" yaml:"nextExampleName"`
	}

	// Outcome echoes the supplied fields next to the values they replaced
	Outcome struct {
		Route            string `json:"route"`
		NextResponseCode string `json:"nextResponseCode,omitempty"`
		OldResponseCode  string `json:"oldResponseCode,omitempty"`
		NextExampleName  string `json:"nextExampleName,omitempty"`
		OldExampleName   string `json:"oldExampleName,omitempty"`
	}
)

// Key is the route key the reconfiguration targets
func (r Reconfiguration) Key() catalog.RouteKey {
	return catalog.RouteKey{Method: r.Method, Route: r.Route}
}

// Reconfigure applies r without checking it against any catalog
func (s *Store) Reconfigure(r Reconfiguration) Outcome {
	previous := s.Set(r.Key(), r.NextResponseCode, r.NextExampleName)

	outcome := Outcome{Route: r.Route}

	if r.NextResponseCode != "" {
		outcome.NextResponseCode = r.NextResponseCode
		outcome.OldResponseCode = previous.StatusCode
	}

	if r.NextExampleName != "" {
		outcome.NextExampleName = r.NextExampleName
		outcome.OldExampleName = previous.ExampleName
	}

	return outcome
}
