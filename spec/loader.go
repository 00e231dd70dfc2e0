package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// DefaultMediaType is used for bodies declared without a media type when the document sets none
const DefaultMediaType = "application/json"

var (
	// ErrMissingHeader is returned for documents that do not start with a #%RAML header line
	ErrMissingHeader = errors.New("missing #%RAML header")
	// ErrFolder is wrapped by the LoadError of a folder that cannot be read
	ErrFolder = errors.New("unusable folder")
)

type (
	// LoadError ties a failure to the document that caused it
	LoadError struct {
		Path string
		Err  error
	}

	parser struct {
		mediaTypes []string
		types      map[string]interface{}
	}

	// declaration is a resolved type declaration: its properties and examples after inheritance
	declaration struct {
		properties []*Property
		examples   []*Example
		example    interface{}
		hasExample bool
	}
)

var methodNames = map[string]struct{}{
	"get":     {},
	"post":    {},
	"put":     {},
	"patch":   {},
	"delete":  {},
	"head":    {},
	"options": {},
	"trace":   {},
	"connect": {},
}

// facets that may sit next to `value` in an examples entry
var exampleFacets = map[string]struct{}{
	"displayName": {},
	"description": {},
	"strict":      {},
	"value":       {},
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadFolder loads every file in folder matching the doublestar pattern, in lexical order.
// Documents that fail are reported and skipped, the rest still load.
func LoadFolder(folder, pattern string) ([]*Document, []error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, []error{&LoadError{Path: folder, Err: fmt.Errorf("%w: %w", ErrFolder, err)}}
	}

	if !info.IsDir() {
		return nil, []error{&LoadError{Path: folder, Err: fmt.Errorf("%w: not a directory", ErrFolder)}}
	}

	matches, err := doublestar.Glob(os.DirFS(folder), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, []error{&LoadError{Path: filepath.Join(folder, pattern), Err: err}}
	}

	sort.Strings(matches)

	var (
		docs []*Document
		errs []error
	)

	for _, match := range matches {
		doc, err := LoadFile(filepath.Join(folder, filepath.FromSlash(match)))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		docs = append(docs, doc)
	}

	return docs, errs
}

// LoadFile reads and parses a single document
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	doc, err := Parse(raw)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	doc.Path = path

	return doc, nil
}

// Parse builds the normalized resource tree of a RAML document
func Parse(raw []byte) (*Document, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("#%RAML")) {
		return nil, ErrMissingHeader
	}

	var root yaml.MapSlice
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	p := &parser{
		mediaTypes: []string{DefaultMediaType},
		types:      map[string]interface{}{},
	}

	doc := &Document{ID: uuid.New().String()}

	// Root facets first, they apply to resources declared before them too
	for _, item := range root {
		switch keyString(item.Key) {
		case "title":
			doc.Title = scalarString(item.Value)
		case "baseUri":
			doc.BaseURI = scalarString(item.Value)
		case "mediaType":
			if mediaTypes := stringList(item.Value); len(mediaTypes) > 0 {
				p.mediaTypes = mediaTypes
			}
		case "types", "schemas":
			types, err := typeDeclarations(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%s %w", keyString(item.Key), err)
			}

			for _, t := range types {
				p.types[keyString(t.Key)] = t.Value
			}
		}
	}

	for _, item := range root {
		key := keyString(item.Key)
		if !strings.HasPrefix(key, "/") {
			continue
		}

		resource, err := p.resource(key, "", item.Value)
		if err != nil {
			return nil, err
		}

		doc.Resources = append(doc.Resources, resource)
	}

	return doc, nil
}

func (p *parser) resource(relativeURI, parentURI string, value interface{}) (*Resource, error) {
	r := &Resource{
		RelativeURI:         relativeURI,
		CompleteRelativeURI: parentURI + relativeURI,
	}

	def, ok := value.(yaml.MapSlice)
	if !ok {
		if value == nil {
			return r, nil
		}

		return nil, fmt.Errorf("resource %s must be a mapping", r.CompleteRelativeURI)
	}

	for _, item := range def {
		key := keyString(item.Key)

		if strings.HasPrefix(key, "/") {
			child, err := p.resource(key, r.CompleteRelativeURI, item.Value)
			if err != nil {
				return nil, err
			}

			r.Resources = append(r.Resources, child)
			continue
		}

		if _, isMethod := methodNames[key]; isMethod {
			method, err := p.method(key, item.Value)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", key, r.CompleteRelativeURI, err)
			}

			r.Methods = append(r.Methods, method)
		}
	}

	return r, nil
}

func (p *parser) method(name string, value interface{}) (*Method, error) {
	m := &Method{Method: name}

	def, ok := value.(yaml.MapSlice)
	if !ok {
		if value == nil {
			return m, nil
		}

		return nil, errors.New("method must be a mapping")
	}

	responsesValue, _ := lookup(def, "responses")
	responses, ok := responsesValue.(yaml.MapSlice)
	if !ok && responsesValue != nil {
		return nil, errors.New("responses must be a mapping")
	}

	for _, item := range responses {
		response := &Response{Code: keyString(item.Key)}

		if def, ok := item.Value.(yaml.MapSlice); ok {
			if bodyValue, present := lookup(def, "body"); present {
				bodies, err := p.bodies(bodyValue)
				if err != nil {
					return nil, fmt.Errorf("response %s: %w", response.Code, err)
				}

				response.Bodies = bodies
			}
		}

		m.Responses = append(m.Responses, response)
	}

	return m, nil
}

// bodies expands a response body, which is either keyed by media type or a
// type declaration applying to every default media type
func (p *parser) bodies(value interface{}) ([]*Body, error) {
	if value == nil {
		return nil, nil
	}

	var bodies []*Body

	def, isMap := value.(yaml.MapSlice)
	if isMap && keyedByMediaType(def) {
		for _, item := range def {
			body, err := p.body(keyString(item.Key), item.Value)
			if err != nil {
				return nil, err
			}

			bodies = append(bodies, body)
		}

		return bodies, nil
	}

	for _, mediaType := range p.mediaTypes {
		body, err := p.body(mediaType, value)
		if err != nil {
			return nil, err
		}

		bodies = append(bodies, body)
	}

	return bodies, nil
}

func (p *parser) body(mediaType string, value interface{}) (*Body, error) {
	decl, err := p.declaration(value, map[string]bool{})
	if err != nil {
		return nil, fmt.Errorf("body %s: %w", mediaType, err)
	}

	return &Body{
		MediaType:  mediaType,
		Example:    decl.example,
		HasExample: decl.hasExample,
		Examples:   decl.examples,
		Properties: decl.properties,
	}, nil
}

func (p *parser) declaration(value interface{}, seen map[string]bool) (declaration, error) {
	var decl declaration

	switch v := value.(type) {
	case nil:
		return decl, nil
	case string:
		return p.named(v, seen)
	case []interface{}:
		// multiple inheritance, later parents override earlier ones
		for _, parent := range v {
			base, err := p.declaration(parent, seen)
			if err != nil {
				return decl, err
			}

			decl = decl.overlay(base)
		}

		return decl, nil
	case yaml.MapSlice:
		for _, key := range []string{"type", "schema"} {
			if parent, ok := lookup(v, key); ok {
				base, err := p.declaration(parent, seen)
				if err != nil {
					return decl, err
				}

				decl = decl.overlay(base)
			}
		}

		if properties, ok := lookup(v, "properties"); ok {
			decl.properties = mergeProperties(decl.properties, parseProperties(properties))
		}

		if examples, ok := lookup(v, "examples"); ok {
			decl.examples = parseExamples(examples)
			decl.example, decl.hasExample = nil, false
		}

		if example, ok := lookup(v, "example"); ok {
			decl.example, decl.hasExample = structured(unwrapExample(example)), true
			decl.examples = nil
		}

		return decl, nil
	default:
		return decl, fmt.Errorf("unsupported type declaration %v", value)
	}
}

// named resolves a type expression. Built in and unknown names carry no properties.
func (p *parser) named(name string, seen map[string]bool) (declaration, error) {
	name = strings.TrimSpace(name)

	def, ok := p.types[name]
	if !ok {
		return declaration{}, nil
	}

	if seen[name] {
		return declaration{}, fmt.Errorf("type %s inherits from itself", name)
	}

	next := make(map[string]bool, len(seen)+1)
	for k := range seen {
		next[k] = true
	}
	next[name] = true

	return p.declaration(def, next)
}

// overlay lays top over d. Examples of top replace those of d only when top declares any.
func (d declaration) overlay(top declaration) declaration {
	out := declaration{
		properties: mergeProperties(d.properties, top.properties),
		examples:   d.examples,
		example:    d.example,
		hasExample: d.hasExample,
	}

	if top.hasExample || len(top.examples) > 0 {
		out.examples = top.examples
		out.example, out.hasExample = top.example, top.hasExample
	}

	return out
}

// mergeProperties keeps the order of base, replacing same-named entries and appending new ones
func mergeProperties(base, overrides []*Property) []*Property {
	if len(overrides) == 0 {
		return base
	}

	merged := make([]*Property, 0, len(base)+len(overrides))
	index := map[string]int{}

	for _, prop := range base {
		index[prop.Name] = len(merged)
		merged = append(merged, prop)
	}

	for _, prop := range overrides {
		if i, ok := index[prop.Name]; ok {
			merged[i] = prop
			continue
		}

		index[prop.Name] = len(merged)
		merged = append(merged, prop)
	}

	return merged
}

func parseProperties(value interface{}) []*Property {
	def, ok := value.(yaml.MapSlice)
	if !ok {
		return nil
	}

	properties := make([]*Property, 0, len(def))

	for _, item := range def {
		prop := &Property{Name: strings.TrimSuffix(keyString(item.Key), "?")}

		switch v := item.Value.(type) {
		case string:
			prop.Type = v
		case yaml.MapSlice:
			if t, ok := lookup(v, "type"); ok {
				if name, ok := t.(string); ok {
					prop.Type = name
				}
			}

			if enum, ok := lookup(v, "enum"); ok {
				if values := stringList(enum); len(values) > 0 {
					prop.Enum = values
				}
			}
		}

		properties = append(properties, prop)
	}

	return properties
}

func parseExamples(value interface{}) []*Example {
	var examples []*Example

	switch v := value.(type) {
	case yaml.MapSlice:
		for _, item := range v {
			examples = append(examples, &Example{
				Name:            keyString(item.Key),
				StructuredValue: structured(unwrapExample(item.Value)),
			})
		}
	case []interface{}:
		for i, entry := range v {
			example := &Example{
				Name:            fmt.Sprintf("example%d", i+1),
				StructuredValue: structured(entry),
			}

			if def, ok := entry.(yaml.MapSlice); ok {
				if name, ok := lookup(def, "name"); ok {
					example.Name = scalarString(name)

					if val, ok := lookup(def, "value"); ok {
						example.StructuredValue = structured(val)
					} else if val, ok := lookup(def, "structuredValue"); ok {
						example.StructuredValue = structured(val)
					}
				}
			}

			examples = append(examples, example)
		}
	}

	return examples
}

// unwrapExample returns the `value` of an example declared with facets, or the example itself
func unwrapExample(value interface{}) interface{} {
	def, ok := value.(yaml.MapSlice)
	if !ok {
		return value
	}

	inner, ok := lookup(def, "value")
	if !ok {
		return value
	}

	for _, item := range def {
		key := keyString(item.Key)
		if _, facet := exampleFacets[key]; !facet && !strings.HasPrefix(key, "(") {
			return value
		}
	}

	return inner
}

// structured converts a YAML example into a JSON compatible value. A string
// holding a JSON object or array is decoded.
func structured(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded
			}
		}

		return s
	}

	return jsonCompatible(value)
}

func jsonCompatible(value interface{}) interface{} {
	switch v := value.(type) {
	case yaml.MapSlice:
		out := make(map[string]interface{}, len(v))
		for _, item := range v {
			out[keyString(item.Key)] = jsonCompatible(item.Value)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[keyString(k)] = jsonCompatible(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}

// typeDeclarations accepts a mapping of names to declarations, or a list of
// single name mappings as written by RAML 0.8 documents
func typeDeclarations(value interface{}) (yaml.MapSlice, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case yaml.MapSlice:
		return v, nil
	case []interface{}:
		var types yaml.MapSlice
		for _, entry := range v {
			def, ok := entry.(yaml.MapSlice)
			if !ok {
				return nil, errors.New("entries must be mappings")
			}

			types = append(types, def...)
		}

		return types, nil
	default:
		return nil, errors.New("must be a mapping or a list of mappings")
	}
}

func keyedByMediaType(def yaml.MapSlice) bool {
	for _, item := range def {
		if strings.Contains(keyString(item.Key), "/") {
			return true
		}
	}

	return false
}

func lookup(def yaml.MapSlice, key string) (interface{}, bool) {
	for _, item := range def {
		if keyString(item.Key) == key {
			return item.Value, true
		}
	}

	return nil, false
}

func keyString(key interface{}) string {
	if s, ok := key.(string); ok {
		return s
	}

	return fmt.Sprint(key)
}

func scalarString(value interface{}) string {
	if value == nil {
		return ""
	}

	return keyString(value)
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarString(item))
		}
		return out
	default:
		return []string{scalarString(v)}
	}
}
