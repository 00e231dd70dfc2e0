package selector

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/plan"
)

// Fallback names a point where the planned response could not be served as planned
type Fallback string

const (
	// FallbackUnplanned means the route had no plan entry; the first alternative was served
	FallbackUnplanned Fallback = "unplanned"
	// FallbackUnknownStatus means the planned status code is not cataloged; the first alternative was served
	FallbackUnknownStatus Fallback = "unknown_status"
	// FallbackRandomExample means the planned example name is not declared; a random example was served
	FallbackRandomExample Fallback = "random_example"
	// FallbackFirstMediaType means nothing offered was acceptable and negotiation is lenient
	FallbackFirstMediaType Fallback = "first_media_type"
)

// ErrNotCataloged is returned for route keys absent from the catalog
var ErrNotCataloged = errors.New("route is not cataloged")

type (
	// NotAcceptableError is returned when strict negotiation finds no acceptable offer
	NotAcceptableError struct {
		Accept  string
		Offered []string
	}

	// Response is the concrete response chosen for one request
	Response struct {
		Status      int
		StatusCode  string
		MediaType   string
		ExampleName string
		Body        []byte
		Fallbacks   []Fallback
	}

	// Selector derives response bodies from the catalog and the current plan
	Selector struct {
		catalog *catalog.Catalog
		plans   *plan.Store
		source  Source
		lenient bool
		logger  logrus.FieldLogger
	}

	// Option is a function that can modify a Selector
	Option func(s *Selector)
)

// Error implements the error interface
func (e *NotAcceptableError) Error() string {
	return fmt.Sprintf("none of %s is acceptable for %q", strings.Join(e.Offered, ", "), e.Accept)
}

// WithSource overrides the random source used by the fallbacks
func WithSource(source Source) Option {
	return func(s *Selector) {
		s.source = source
	}
}

// WithLenientNegotiation serves the first offered media type when nothing is acceptable
func WithLenientNegotiation() Option {
	return func(s *Selector) {
		s.lenient = true
	}
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Selector) {
		s.logger = l
	}
}

// New returns a Selector reading from c and plans
func New(c *catalog.Catalog, plans *plan.Store, options ...Option) *Selector {
	s := &Selector{
		catalog: c,
		plans:   plans,
		logger:  logrus.StandardLogger(),
	}

	for _, applyOption := range options {
		applyOption(s)
	}

	if s.source == nil {
		s.source = NewSource(0)
	}

	return s
}

// Select picks the body of the planned response of key that best fits accept
func (s *Selector) Select(key catalog.RouteKey, accept string) (*Response, error) {
	route, ok := s.catalog.Lookup(key)
	if !ok || len(route.Alternatives) == 0 {
		return nil, ErrNotCataloged
	}

	res := &Response{}

	entry, planned := s.plans.Get(key)
	if !planned {
		res.Fallbacks = append(res.Fallbacks, FallbackUnplanned)
	}

	alternative, found := route.Alternative(entry.StatusCode)
	if !found {
		alternative = route.Alternatives[0]
		if planned {
			res.Fallbacks = append(res.Fallbacks, FallbackUnknownStatus)
		}
	}

	offered := alternative.MediaTypes()

	mediaType, acceptable := Negotiate(accept, offered)
	if !acceptable {
		if !s.lenient {
			return nil, &NotAcceptableError{Accept: accept, Offered: offered}
		}

		mediaType = offered[0]
		res.Fallbacks = append(res.Fallbacks, FallbackFirstMediaType)
	}

	body, _ := alternative.Body(mediaType)

	value, exampleName, fallback := s.value(body.Spec, entry.ExampleName)
	if fallback != "" {
		res.Fallbacks = append(res.Fallbacks, fallback)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s response: %w", key, alternative.StatusCode, err)
	}

	res.Status = alternative.Status
	res.StatusCode = alternative.StatusCode
	res.MediaType = mediaType
	res.ExampleName = exampleName
	res.Body = encoded

	if len(res.Fallbacks) > 0 {
		s.logger.WithFields(logrus.Fields{
			"route":     key.String(),
			"planned":   entry,
			"fallbacks": res.Fallbacks,
		}).Debug("served a fallback")
	}

	return res, nil
}

// value derives the body value. Named examples are served whole, an unknown
// name draws a random one out of the declared set.
func (s *Selector) value(bodySpec catalog.BodySpec, exampleName string) (interface{}, string, Fallback) {
	switch b := bodySpec.(type) {
	case catalog.ExampleList:
		if example, ok := b.Find(exampleName); ok {
			return example.Value, example.Name, ""
		}

		if len(b) == 0 {
			return map[string]interface{}{}, "", ""
		}

		example := b[s.source.Intn(len(b))]
		return example.Value, example.Name, FallbackRandomExample
	case catalog.SingleExample:
		return b.Value, "", ""
	case catalog.PropertySchema:
		synthesized := make(map[string]interface{}, len(b))
		for _, prop := range b {
			synthesized[prop.Name] = ""
			if len(prop.Enum) > 0 {
				synthesized[prop.Name] = prop.Enum[s.source.Intn(len(prop.Enum))]
			}
		}
		return synthesized, "", ""
	default:
		return map[string]interface{}{}, "", ""
	}
}
