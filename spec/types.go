package spec

type (
	// Document is the normalized resource tree of one loaded API description
	Document struct {
		ID        string      `json:"id"`
		Path      string      `json:"path"`
		Title     string      `json:"title"`
		BaseURI   string      `json:"baseUri,omitempty"`
		Resources []*Resource `json:"resources"`
	}

	// Resource is a declared path, possibly with nested resources
	Resource struct {
		RelativeURI         string      `json:"relativeUri"`
		CompleteRelativeURI string      `json:"completeRelativeUri"`
		Methods             []*Method   `json:"methods"`
		Resources           []*Resource `json:"resources,omitempty"`
	}

	Method struct {
		Method    string      `json:"method"`
		Responses []*Response `json:"responses"`
	}

	Response struct {
		Code   string  `json:"code"`
		Bodies []*Body `json:"body,omitempty"`
	}

	// Body describes a response payload for one media type. Example is only
	// meaningful when HasExample is set, since null is a legal example.
	Body struct {
		MediaType  string      `json:"mediaType"`
		Example    interface{} `json:"example,omitempty"`
		HasExample bool        `json:"-"`
		Examples   []*Example  `json:"examples,omitempty"`
		Properties []*Property `json:"properties,omitempty"`
	}

	Example struct {
		Name            string      `json:"name"`
		StructuredValue interface{} `json:"structuredValue"`
	}

	// Property is a declared body property. A nil Enum means none was declared.
	Property struct {
		Name string   `json:"name"`
		Type string   `json:"type,omitempty"`
		Enum []string `json:"enum,omitempty"`
	}
)

// AllResources flattens the tree depth first, in declaration order
func (d *Document) AllResources() []*Resource {
	var all []*Resource

	var walk func(resources []*Resource)
	walk = func(resources []*Resource) {
		for _, r := range resources {
			all = append(all, r)
			walk(r.Resources)
		}
	}

	walk(d.Resources)

	return all
}
