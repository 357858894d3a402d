package openapi

import (
	"encoding/json"
	"reflect"
)

// Registry is a store of named, reusable component definitions: schemas,
// responses, security schemes, and tag metadata. Registering a name twice
// with an identical body is a no-op; registering it with a structurally
// different body fails with *ConflictError. Structural equality is
// order-insensitive for object members and order-sensitive for arrays.
//
// A Registry is populated during the one-time document build and is not
// safe for concurrent mutation. Once built it is read-only.
type Registry struct {
	schemas         map[string]*Schema
	responses       map[string]*Response
	securitySchemes map[string]*SecurityScheme

	tags     []Tag
	tagNames map[string]bool
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:         make(map[string]*Schema),
		responses:       make(map[string]*Response),
		securitySchemes: make(map[string]*SecurityScheme),
		tagNames:        make(map[string]bool),
	}
}

// AddSchema registers a schema under the given name and returns the
// reference string "#/components/schemas/<name>".
func (r *Registry) AddSchema(name string, schema *Schema) (string, error) {
	if existing, ok := r.schemas[name]; ok {
		if !structurallyEqual(existing, schema) {
			return "", &ConflictError{Name: name}
		}
		return schemaRef(name), nil
	}

	r.schemas[name] = schema
	return schemaRef(name), nil
}

// Schema returns the schema registered under name.
func (r *Registry) Schema(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Schemas returns the registered schemas keyed by name.
func (r *Registry) Schemas() map[string]*Schema {
	return r.schemas
}

// AddResponse registers a reusable response under the given name and
// returns the reference string "#/components/responses/<name>".
func (r *Registry) AddResponse(name string, resp *Response) (string, error) {
	if existing, ok := r.responses[name]; ok {
		if !structurallyEqual(existing, resp) {
			return "", &ConflictError{Name: name}
		}
		return responseRef(name), nil
	}

	r.responses[name] = resp
	return responseRef(name), nil
}

// AddSecurityScheme registers a reusable security scheme in components.
func (r *Registry) AddSecurityScheme(name string, scheme *SecurityScheme) error {
	if existing, ok := r.securitySchemes[name]; ok {
		if !structurallyEqual(existing, scheme) {
			return &ConflictError{Name: name}
		}
		return nil
	}

	r.securitySchemes[name] = scheme
	return nil
}

// SecuritySchemes returns the registered security schemes keyed by name.
func (r *Registry) SecuritySchemes() map[string]*SecurityScheme {
	return r.securitySchemes
}

// AddTag records tag metadata. The first registration of a name wins;
// repeated names are ignored. Registration order is preserved.
func (r *Registry) AddTag(tag Tag) {
	if r.tagNames[tag.Name] {
		return
	}
	r.tagNames[tag.Name] = true
	r.tags = append(r.tags, tag)
}

// Tag returns the metadata recorded for a tag name.
func (r *Registry) Tag(name string) (Tag, bool) {
	if !r.tagNames[name] {
		return Tag{}, false
	}
	for _, t := range r.tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// Tags returns the recorded tag metadata in registration order.
func (r *Registry) Tags() []Tag {
	return r.tags
}

// Components assembles a Components object from everything registered.
// Returns nil when the registry is empty.
func (r *Registry) Components() *Components {
	if len(r.schemas) == 0 && len(r.responses) == 0 && len(r.securitySchemes) == 0 {
		return nil
	}

	comp := &Components{}
	if len(r.schemas) > 0 {
		comp.Schemas = r.schemas
	}
	if len(r.responses) > 0 {
		comp.Responses = r.responses
	}
	if len(r.securitySchemes) > 0 {
		comp.SecuritySchemes = r.securitySchemes
	}

	return comp
}

func schemaRef(name string) string {
	return "#/components/schemas/" + name
}

func responseRef(name string) string {
	return "#/components/responses/" + name
}

// structurallyEqual compares two component bodies by their normalized JSON
// form: object member order is irrelevant, array element order is not.
func structurallyEqual(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var na, nb any
	if err := json.Unmarshal(ja, &na); err != nil {
		return false
	}
	if err := json.Unmarshal(jb, &nb); err != nil {
		return false
	}

	return reflect.DeepEqual(na, nb)
}
