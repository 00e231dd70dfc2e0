package catalog

// NoExample is the example name planned for routes whose first alternative has no named examples
const NoExample = "none"

const (
	KindExampleList    = "examples"
	KindSingleExample  = "example"
	KindPropertySchema = "properties"
)

type (
	// RouteKey identifies one operation: the declared method and the templated route path
	RouteKey struct {
		Method string
		Route  string
	}

	// BodySpec describes how a concrete body is derived. It is one of
	// ExampleList, SingleExample or PropertySchema.
	BodySpec interface {
		Kind() string
	}

	NamedExample struct {
		Name  string
		Value interface{}
	}

	ExampleList []NamedExample

	SingleExample struct {
		Value interface{}
	}

	Property struct {
		Name string
		Enum []string
	}

	PropertySchema []Property

	Body struct {
		MediaType string
		Spec      BodySpec
	}

	// Alternative is one declared response of a route
	Alternative struct {
		StatusCode string
		Status     int
		Bodies     []Body
	}

	Route struct {
		Key                RouteKey
		Document           string
		DocumentID         string
		Alternatives       []Alternative
		DefaultStatusCode  string
		DefaultExampleName string
	}

	// Catalog maps every route key to its declared alternatives. It is never mutated once built.
	Catalog struct {
		routes map[RouteKey]*Route
		keys   []RouteKey
	}

	// SnapshotEntry is the read-only view of one alternative
	SnapshotEntry struct {
		Method     string   `json:"method"`
		URL        string   `json:"url"`
		Code       string   `json:"code"`
		MediaType  string   `json:"mediaType"`
		Kind       string   `json:"kind"`
		Examples   []string `json:"examples"`
		Document   string   `json:"document,omitempty"`
		DocumentID string   `json:"documentId,omitempty"`
	}
)

func (k RouteKey) String() string {
	return k.Method + ":" + k.Route
}

func (ExampleList) Kind() string    { return KindExampleList }
func (SingleExample) Kind() string  { return KindSingleExample }
func (PropertySchema) Kind() string { return KindPropertySchema }

// Names lists the example names in declaration order
func (l ExampleList) Names() []string {
	names := make([]string, len(l))
	for i, e := range l {
		names[i] = e.Name
	}

	return names
}

// Find returns the example with the given name
func (l ExampleList) Find(name string) (NamedExample, bool) {
	for _, e := range l {
		if e.Name == name {
			return e, true
		}
	}

	return NamedExample{}, false
}

// MediaTypes lists the offered media types in declaration order
func (a Alternative) MediaTypes() []string {
	types := make([]string, len(a.Bodies))
	for i, b := range a.Bodies {
		types[i] = b.MediaType
	}

	return types
}

// Body returns the body offered for mediaType
func (a Alternative) Body(mediaType string) (Body, bool) {
	for _, b := range a.Bodies {
		if b.MediaType == mediaType {
			return b, true
		}
	}

	return Body{}, false
}

// Alternative returns the alternative declared with statusCode
func (r *Route) Alternative(statusCode string) (Alternative, bool) {
	for _, a := range r.Alternatives {
		if a.StatusCode == statusCode {
			return a, true
		}
	}

	return Alternative{}, false
}

// Lookup returns the cataloged route for key
func (c *Catalog) Lookup(key RouteKey) (*Route, bool) {
	r, ok := c.routes[key]
	return r, ok
}

// Routes returns every route in the order it was cataloged
func (c *Catalog) Routes() []*Route {
	routes := make([]*Route, 0, len(c.keys))
	for _, k := range c.keys {
		routes = append(routes, c.routes[k])
	}

	return routes
}

func (c *Catalog) Len() int {
	return len(c.keys)
}

// Snapshot dumps every cataloged alternative
func (c *Catalog) Snapshot() []SnapshotEntry {
	entries := []SnapshotEntry{}

	for _, r := range c.Routes() {
		for _, a := range r.Alternatives {
			for _, b := range a.Bodies {
				entry := SnapshotEntry{
					Method:     r.Key.Method,
					URL:        r.Key.Route,
					Code:       a.StatusCode,
					MediaType:  b.MediaType,
					Kind:       b.Spec.Kind(),
					Examples:   []string{},
					Document:   r.Document,
					DocumentID: r.DocumentID,
				}

				if list, ok := b.Spec.(ExampleList); ok {
					entry.Examples = list.Names()
				}

				entries = append(entries, entry)
			}
		}
	}

	return entries
}
