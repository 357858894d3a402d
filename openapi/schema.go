package openapi

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Exampler can be implemented by types to provide an example value
// for the generated schema. The returned value is set as the "example"
// field on the component schema.
//
//	func (u User) OpenAPIExample() any {
//	    return User{ID: "550e8400-e29b-41d4-a716-446655440000", Name: "Alice"}
//	}
type Exampler interface {
	OpenAPIExample() any
}

// Converter recursively converts Go types to OpenAPI Schema Objects.
//
// With a Registry, named struct types are registered as reusable component
// schemas and referenced via $ref; without one, objects are inlined and
// union types cannot be converted. The TypeRegistry supplies union metadata
// for interface-typed fields; it may be nil, in which case interfaces
// convert to the unconstrained empty schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
type Converter struct {
	registry *Registry
	types    *TypeRegistry

	converted map[reflect.Type]string // type -> registered $ref
	building  map[reflect.Type]bool   // guards recursive types
}

// NewConverter creates a schema converter. Either argument may be nil.
func NewConverter(registry *Registry, types *TypeRegistry) *Converter {
	return &Converter{
		registry:  registry,
		types:     types,
		converted: make(map[reflect.Type]string),
		building:  make(map[reflect.Type]bool),
	}
}

// SchemaRef reports the component reference under which t was registered
// by an earlier Convert call. Pointer types are looked up by their element
// type. The second return value is false for types that were never
// converted or that convert to inline schemas.
func (c *Converter) SchemaRef(t reflect.Type) (string, bool) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ref, ok := c.converted[t]
	return ref, ok
}

// Convert produces a Schema Object for the given Go type. Named struct
// types are registered with the Registry and referenced via $ref when a
// registry is present.
func (c *Converter) Convert(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, &InvalidAnnotationError{}
	}

	// Unwrap pointer and mark nullable.
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	schema, err := c.convertValueType(t)
	if err != nil {
		return nil, err
	}

	if nullable {
		return nullableSchema(schema), nil
	}
	return schema, nil
}

func (c *Converter) convertValueType(t reflect.Type) (*Schema, error) {
	// Special leaf types first.
	if t == reflect.TypeOf(time.Time{}) {
		return &Schema{Type: "string", Format: "date-time"}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil

	case reflect.Int, reflect.Int8, reflect.Int16:
		return &Schema{Type: "integer"}, nil

	case reflect.Int32:
		return &Schema{Type: "integer", Format: "int32"}, nil

	case reflect.Int64:
		return &Schema{Type: "integer", Format: "int64"}, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16:
		return &Schema{Type: "integer"}, nil

	case reflect.Uint32:
		return &Schema{Type: "integer", Format: "int32"}, nil

	case reflect.Uint64:
		return &Schema{Type: "integer", Format: "int64"}, nil

	case reflect.Float32:
		return &Schema{Type: "number", Format: "float"}, nil

	case reflect.Float64:
		return &Schema{Type: "number", Format: "double"}, nil

	case reflect.String:
		return &Schema{Type: "string"}, nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: "string", Format: "byte"}, nil
		}
		items, err := c.Convert(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil

	case reflect.Array:
		items, err := c.Convert(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("openapi: map key type must be string, got %s", t.Key())
		}
		values, err := c.Convert(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil

	case reflect.Struct:
		return c.convertStruct(t)

	case reflect.Interface:
		if c.types != nil {
			if info, ok := c.types.unionFor(t); ok {
				return c.convertUnion(info)
			}
		}
		return &Schema{}, nil

	default:
		return nil, fmt.Errorf("openapi: unsupported type %s", t)
	}
}

// convertStruct builds an object schema for a struct type. Named types are
// registered and referenced; anonymous struct literals are always inlined.
func (c *Converter) convertStruct(t reflect.Type) (*Schema, error) {
	name := sanitizeSchemaName(t.Name())
	if name == "" || c.registry == nil {
		if c.building[t] {
			return nil, fmt.Errorf("openapi: cannot inline recursive type %s without a registry", t)
		}
		c.building[t] = true
		defer delete(c.building, t)
		return c.buildObjectSchema(t, name)
	}

	if ref, ok := c.converted[t]; ok {
		return &Schema{Ref: ref}, nil
	}
	if c.building[t] {
		// Recursive reference to a schema currently being built.
		return &Schema{Ref: schemaRef(name)}, nil
	}

	c.building[t] = true
	defer delete(c.building, t)

	schema, err := c.buildObjectSchema(t, name)
	if err != nil {
		return nil, err
	}

	if ex, ok := reflect.New(t).Interface().(Exampler); ok {
		schema.Example = ex.OpenAPIExample()
	}

	ref, err := c.registry.AddSchema(name, schema)
	if err != nil {
		return nil, err
	}
	c.converted[t] = ref

	return &Schema{Ref: ref}, nil
}

func (c *Converter) buildObjectSchema(t reflect.Type, title string) (*Schema, error) {
	schema := &Schema{
		Type:       "object",
		Title:      title,
		Properties: NewProperties(),
	}

	if err := c.collectFields(t, schema, false); err != nil {
		return nil, err
	}

	if schema.Properties.Len() == 0 {
		schema.Properties = nil
	}

	return schema, nil
}

// collectFields recursively collects struct fields into the schema.
// When allOptional is true, all fields are treated as optional regardless
// of their json tags. This is used for pointer-embedded structs where the
// entire embedded struct can be nil and thus all its fields may be absent.
func (c *Converter) collectFields(t reflect.Type, schema *Schema, allOptional bool) error {
	for i := range t.NumField() {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		// Embedded structs inline only when the field has no explicit json
		// tag name. encoding/json treats an anonymous field with a tag name
		// as a regular named field, not inlined.
		if field.Anonymous {
			jsonName, _ := parseJSONTag(field.Tag.Get("json"))
			if jsonName == "" {
				ft := field.Type
				isPtr := ft.Kind() == reflect.Pointer
				if isPtr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					if err := c.collectFields(ft, schema, allOptional || isPtr); err != nil {
						return err
					}
					continue
				}
			}
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		fieldSchema, err := c.Convert(field.Type)
		if err != nil {
			return err
		}

		fieldSchema, err = c.applyOpenAPITag(fieldSchema, field.Tag.Get("openapi"), field.Name)
		if err != nil {
			return err
		}

		// The encoding/json ",string" option encodes numeric and boolean
		// values as JSON strings. Override the schema type accordingly.
		if opts.stringEncode && fieldSchema.Ref == "" && fieldSchema.Type != "" {
			fieldSchema.Type = "string"
			fieldSchema.Format = ""
		}

		schema.Properties.Set(name, fieldSchema)

		if !opts.omitempty && !allOptional {
			schema.Required = append(schema.Required, name)
		}
	}

	return nil
}

// convertUnion converts union metadata into a schema. Structurally
// identical variants are deduplicated; a union that reduces to a single
// distinct schema collapses to it without an anyOf wrapper. Unions carrying
// a discriminator are always registered under their union name.
func (c *Converter) convertUnion(info *unionInfo) (*Schema, error) {
	if c.registry == nil {
		return nil, &UnionRequiresRegistryError{Name: info.name}
	}

	if info.propertyName != "" {
		return c.convertDiscriminatedUnion(info)
	}

	var variants []*Schema
	for _, vt := range info.variants {
		s, err := c.Convert(vt)
		if err != nil {
			return nil, err
		}
		duplicate := false
		for _, seen := range variants {
			if structurallyEqual(seen, s) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			variants = append(variants, s)
		}
	}

	if len(variants) == 1 {
		return variants[0], nil
	}

	ref, err := c.registry.AddSchema(info.name, &Schema{AnyOf: variants})
	if err != nil {
		return nil, err
	}
	return &Schema{Ref: ref}, nil
}

func (c *Converter) convertDiscriminatedUnion(info *unionInfo) (*Schema, error) {
	schema := &Schema{
		Discriminator: &Discriminator{
			PropertyName: info.propertyName,
			Mapping:      make(map[string]string, len(info.mapping)),
		},
	}

	for _, tag := range info.sortedTags() {
		variant, err := c.Convert(info.mapping[tag])
		if err != nil {
			return nil, err
		}
		if variant.Ref == "" {
			return nil, fmt.Errorf("openapi: discriminated union variant %s must be a named struct type", info.mapping[tag])
		}
		schema.AnyOf = append(schema.AnyOf, variant)
		schema.Discriminator.Mapping[tag] = variant.Ref
	}

	ref, err := c.registry.AddSchema(info.name, schema)
	if err != nil {
		return nil, err
	}
	return &Schema{Ref: ref}, nil
}

type jsonTagOpts struct {
	omitempty    bool
	stringEncode bool // encoding/json ",string" option
}

func parseJSONTag(tag string) (string, jsonTagOpts) {
	if tag == "" {
		return "", jsonTagOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, jsonTagOpts{
		omitempty:    strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero"),
		stringEncode: strings.Contains(rest, "string"),
	}
}

// applyOpenAPITag parses the `openapi` struct tag and applies constraints
// to the schema. Tag keys map to Schema Object keywords. A string field
// with an enum constraint becomes a standalone named schema when a registry
// is available; the enum is named after the Go field.
func (c *Converter) applyOpenAPITag(schema *Schema, tag, fieldName string) (*Schema, error) {
	if tag == "" {
		return schema, nil
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if hasValue {
			value = strings.TrimSpace(value)
		}

		switch key {
		case "title":
			schema.Title = value
		case "description":
			schema.Description = value
		case "format":
			schema.Format = value
		case "example":
			schema.Example = parseTagValue(schema, value)
		case "default":
			schema.Default = parseTagValue(schema, value)
		case "minimum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Minimum = &v
			}
		case "maximum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Maximum = &v
			}
		case "minLength":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MinLength = &v
			}
		case "maxLength":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MaxLength = &v
			}
		case "pattern":
			schema.Pattern = value
		case "minItems":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MinItems = &v
			}
		case "maxItems":
			if v, err := strconv.Atoi(value); err == nil {
				schema.MaxItems = &v
			}
		case "uniqueItems":
			schema.UniqueItems = true
		case "readOnly":
			schema.ReadOnly = true
		case "writeOnly":
			schema.WriteOnly = true
		case "deprecated":
			schema.Deprecated = true
		case "nullable":
			schema.Nullable = true
		case "enum":
			values := strings.Split(value, "|")
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = v
			}
		}
	}

	// Named enum schemas are registered once and referenced, so repeated
	// use of the same value set stays deduplicated.
	if len(schema.Enum) > 0 && schema.Type == "string" && c.registry != nil {
		ref, err := c.registry.AddSchema(fieldName, schema)
		if err != nil {
			return nil, err
		}
		return &Schema{Ref: ref}, nil
	}

	return schema, nil
}

// parseTagValue converts a string tag value to the Go type matching the
// schema's declared type.
func parseTagValue(schema *Schema, value string) any {
	switch schema.Type {
	case "integer":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case "number":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// nullableSchema marks a schema as accepting null. References cannot carry
// sibling keywords in OpenAPI 3.0, so $ref schemas are wrapped in allOf.
func nullableSchema(schema *Schema) *Schema {
	if schema.Ref != "" {
		return &Schema{Nullable: true, AllOf: []*Schema{schema}}
	}
	schema.Nullable = true
	return schema
}

// sanitizeSchemaName cleans up Go type names for use as component schema
// keys. Generic type names like "Page[User]" are converted to "PageUser"
// and "Page[[]User]" to "PageUserList"; package qualifiers inside type
// parameters are stripped.
func sanitizeSchemaName(name string) string {
	if !strings.ContainsRune(name, '[') {
		return name
	}

	var out, token strings.Builder
	listDepth := 0
	flush := func() {
		if token.Len() == 0 {
			return
		}
		part := token.String()
		if dot := strings.LastIndexByte(part, '.'); dot >= 0 {
			part = part[dot+1:]
		}
		out.WriteString(part)
		for ; listDepth > 0; listDepth-- {
			out.WriteString("List")
		}
		token.Reset()
	}

	var prev rune
	for _, r := range name {
		switch r {
		case '[', ']', ',', ' ', '*':
			if r == ']' && prev == '[' {
				listDepth++
			}
			flush()
		default:
			token.WriteRune(r)
		}
		prev = r
	}
	flush()

	return out.String()
}
