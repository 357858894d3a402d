package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vitalvas/accord/openapi"
)

const schemaResource = "schemas.json"

// Validator checks request and response payloads against schemas compiled
// from the component registry. It is compiled once after all operations
// have been built; validation afterwards is read-only and safe for
// concurrent use.
type Validator struct {
	converter *openapi.Converter
	compiled  map[string]*jsonschema.Schema
}

// NewValidator compiles every schema in the registry. The document model
// carries nullability in the OpenAPI 3.0 `nullable` keyword, so schemas are
// rewritten to JSON-Schema type unions before compilation.
func NewValidator(registry *openapi.Registry, converter *openapi.Converter) (*Validator, error) {
	raw, err := json.Marshal(struct {
		Components *openapi.Components `json:"components"`
	}{registry.Components()})
	if err != nil {
		return nil, err
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	normalizeSchemaTree(tree)
	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(normalized)); err != nil {
		return nil, err
	}

	v := &Validator{
		converter: converter,
		compiled:  make(map[string]*jsonschema.Schema),
	}
	for name := range registry.Schemas() {
		schema, err := compiler.Compile(schemaResource + "#/components/schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		v.compiled[name] = schema
	}
	return v, nil
}

// ValidatePayload validates a response payload against the schema its type
// was registered under. The result maps field names to validation messages
// and is nil for valid payloads. Types without a registered schema pass.
func (v *Validator) ValidatePayload(payload any) map[string][]string {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string][]string{"_root": {err.Error()}}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return map[string][]string{"_root": {err.Error()}}
	}
	return v.ValidateAs(reflect.TypeOf(payload), value)
}

// ValidateAs validates an already decoded primitive value against the
// schema registered for the given Go type. Types without a registered
// schema pass.
func (v *Validator) ValidateAs(t reflect.Type, value any) map[string][]string {
	ref, ok := v.converter.SchemaRef(t)
	if !ok {
		return nil
	}
	return v.validate(strings.TrimPrefix(ref, "#/components/schemas/"), value)
}

func (v *Validator) validate(name string, value any) map[string][]string {
	schema, ok := v.compiled[name]
	if !ok {
		return nil
	}
	err := schema.Validate(value)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return map[string][]string{"_root": {err.Error()}}
	}
	out := make(map[string][]string)
	collectFieldErrors(ve, out)
	return out
}

// collectFieldErrors flattens a validation error tree into field names and
// messages. Leaf causes carry the actionable message; the field is the
// first segment of the instance location, the property a required-keyword
// failure names, or "_root" for whole-document problems.
func collectFieldErrors(ve *jsonschema.ValidationError, out map[string][]string) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collectFieldErrors(cause, out)
		}
		return
	}

	if names, ok := missingProperties(ve.Message); ok && ve.InstanceLocation == "" {
		for _, name := range names {
			out[name] = append(out[name], "required property is missing")
		}
		return
	}

	field := "_root"
	if loc := strings.TrimPrefix(ve.InstanceLocation, "/"); loc != "" {
		field, _, _ = strings.Cut(loc, "/")
		field = strings.ReplaceAll(strings.ReplaceAll(field, "~1", "/"), "~0", "~")
	}
	out[field] = append(out[field], ve.Message)
}

// missingProperties parses the property names out of a required-keyword
// failure message, e.g. "missing properties: 'a', 'b'".
func missingProperties(message string) ([]string, bool) {
	rest, ok := strings.CutPrefix(message, "missing properties: ")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, ", ")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		names = append(names, strings.Trim(part, `'"`))
	}
	return names, true
}

// normalizeSchemaTree rewrites OpenAPI 3.0 constructs into their JSON
// Schema equivalents, in place: `nullable: true` becomes a type union with
// "null", and boolean exclusive bounds become numeric ones.
func normalizeSchemaTree(node any) {
	switch n := node.(type) {
	case map[string]any:
		if nullable, ok := n["nullable"].(bool); ok {
			delete(n, "nullable")
			if nullable {
				if t, ok := n["type"].(string); ok {
					n["type"] = []any{t, "null"}
				} else if allOf, ok := n["allOf"]; ok {
					delete(n, "allOf")
					n["anyOf"] = []any{
						map[string]any{"allOf": allOf},
						map[string]any{"type": "null"},
					}
				}
			}
		}
		normalizeExclusiveBound(n, "exclusiveMinimum", "minimum")
		normalizeExclusiveBound(n, "exclusiveMaximum", "maximum")
		for _, child := range n {
			normalizeSchemaTree(child)
		}
	case []any:
		for _, child := range n {
			normalizeSchemaTree(child)
		}
	}
}

func normalizeExclusiveBound(n map[string]any, exclusiveKey, boundKey string) {
	b, ok := n[exclusiveKey].(bool)
	if !ok {
		return
	}
	delete(n, exclusiveKey)
	if !b {
		return
	}
	if bound, ok := n[boundKey]; ok {
		n[exclusiveKey] = bound
		delete(n, boundKey)
	}
}
