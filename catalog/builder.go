package catalog

import (
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/spec"
)

type (
	// Builder walks loaded documents once and collects their response alternatives
	Builder struct {
		logger logrus.FieldLogger
		routes map[RouteKey]*Route
		keys   []RouteKey
	}

	// Option is a function that can modify a Builder
	Option func(b *Builder)
)

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder returns an empty Builder
func NewBuilder(options ...Option) *Builder {
	b := &Builder{
		logger: logrus.StandardLogger(),
		routes: map[RouteKey]*Route{},
	}

	for _, applyOption := range options {
		applyOption(b)
	}

	return b
}

// Build catalogs every document, in order
func Build(docs []*spec.Document, options ...Option) *Catalog {
	b := NewBuilder(options...)

	for _, doc := range docs {
		b.Add(doc)
	}

	return b.Build()
}

// Add catalogs the routes of doc and returns how many were added. A route
// already cataloged by an earlier document is kept.
func (b *Builder) Add(doc *spec.Document) int {
	added := 0
	docLogger := b.logger.WithField("document", doc.Path)

	for _, resource := range doc.AllResources() {
		uri := resource.CompleteRelativeURI
		resourceLogger := docLogger.WithField("resource", uri)

		if len(resource.Methods) == 0 {
			resourceLogger.Info("no methods, skipping")
			continue
		}

		for _, method := range resource.Methods {
			methodLogger := resourceLogger.WithField("method", method.Method)
			methodLogger.Debug("has method")

			if len(method.Responses) == 0 {
				methodLogger.Warn("no responses, skipping")
				continue
			}

			key := RouteKey{Method: method.Method, Route: uri}
			route := &Route{
				Key:                key,
				Document:           doc.Path,
				DocumentID:         doc.ID,
				DefaultExampleName: NoExample,
			}

			for _, response := range method.Responses {
				if alternative, ok := b.alternative(methodLogger, response); ok {
					route.Alternatives = append(route.Alternatives, alternative)
				}
			}

			if len(route.Alternatives) == 0 {
				methodLogger.Warn("no response declares a body, skipping")
				continue
			}

			if _, exists := b.routes[key]; exists {
				methodLogger.Warn("route already cataloged by an earlier document, skipping")
				continue
			}

			first := route.Alternatives[0]
			route.DefaultStatusCode = first.StatusCode
			if list, ok := first.Bodies[0].Spec.(ExampleList); ok {
				route.DefaultExampleName = list[0].Name
			}

			b.routes[key] = route
			b.keys = append(b.keys, key)
			added++
		}
	}

	return added
}

// Build returns the catalog collected so far
func (b *Builder) Build() *Catalog {
	c := &Catalog{
		routes: make(map[RouteKey]*Route, len(b.routes)),
		keys:   make([]RouteKey, len(b.keys)),
	}

	copy(c.keys, b.keys)
	for k, r := range b.routes {
		c.routes[k] = r
	}

	return c
}

func (b *Builder) alternative(logger logrus.FieldLogger, response *spec.Response) (Alternative, bool) {
	logger = logger.WithField("code", response.Code)
	logger.Debug("will produce response code")

	status, err := strconv.Atoi(response.Code)
	if err != nil || status < 100 || status > 599 {
		logger.Warn("not a valid status code, skipping")
		return Alternative{}, false
	}

	if len(response.Bodies) == 0 {
		logger.Warn("no body, skipping")
		return Alternative{}, false
	}

	if len(response.Bodies) > 1 {
		logger.Warn("multiple body types, picking the first")
	}

	body := response.Bodies[0]
	bodySpec := classify(body)

	switch s := bodySpec.(type) {
	case ExampleList:
		for _, example := range s {
			logger.WithField("example", example.Name).Debug("contains an example")
		}
	case SingleExample, PropertySchema:
		logger.Warn("no examples")
	}

	return Alternative{
		StatusCode: response.Code,
		Status:     status,
		Bodies:     []Body{{MediaType: body.MediaType, Spec: bodySpec}},
	}, true
}

func classify(body *spec.Body) BodySpec {
	if len(body.Examples) > 0 {
		list := make(ExampleList, len(body.Examples))
		for i, e := range body.Examples {
			list[i] = NamedExample{Name: e.Name, Value: e.StructuredValue}
		}

		return list
	}

	if body.HasExample {
		return SingleExample{Value: body.Example}
	}

	schema := make(PropertySchema, len(body.Properties))
	for i, p := range body.Properties {
		schema[i] = Property{Name: p.Name, Enum: p.Enum}
	}

	return schema
}
