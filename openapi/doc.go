// Package openapi provides an OpenAPI v3.0.2 document model, a
// deduplicating component registry, and reflection-based conversion of Go
// types to Schema Objects.
//
// The package is the schema half of the accord module: the contract package
// builds operation descriptors on top of it, and the muxbind package
// assembles documents for gorilla/mux routers. It can also be used on its
// own to turn Go types into reusable component schemas.
//
// See: https://spec.openapis.org/oas/v3.0.3
//
// # Type Registry
//
// A TypeRegistry resolves annotations to concrete types. Annotations come
// in three forms: a value prototype, a reflect.Type, or a string forward
// reference registered ahead of time:
//
//	types := openapi.NewTypeRegistry()
//	types.RegisterType("UserResponse", UserResponse{})
//
//	t, err := types.Resolve("UserResponse")   // forward reference
//	t, err = types.Resolve(UserResponse{})    // prototype
//	t, err = types.Resolve(reflect.TypeOf(UserResponse{}))
//
// Nil annotations are rejected with *InvalidAnnotationError: "no type" is
// expressed by omitting the annotation, never by a null value.
//
// # Unions
//
// Go interfaces carry no variant information at runtime, so unions are
// declared explicitly against the registry using pointer-to-interface
// tokens:
//
//	types.RegisterUnion((*Shape)(nil), "Shape", Circle{}, Square{})
//
//	types.RegisterDiscriminatedUnion((*Event)(nil), "Event", "kind", map[string]any{
//	    "created": CreatedEvent{},
//	    "deleted": DeletedEvent{},
//	})
//
// A plain union whose variants all reduce to one structurally identical
// schema collapses to that schema with no anyOf wrapper. Distinct variants
// produce {anyOf: [...]} registered under the union name. Discriminated
// unions additionally carry {discriminator: {propertyName, mapping}} and
// are always registered. Converting a union requires a Registry.
//
// # Schema Conversion
//
// Converter turns reflect.Types into Schema Objects:
//
//	reg := openapi.NewRegistry()
//	conv := openapi.NewConverter(reg, types)
//	schema, err := conv.Convert(reflect.TypeOf(User{}))
//
// Conversion rules:
//
//   - bool -> {type: "boolean"}
//   - int/uint variants -> {type: "integer"} (int32/int64 formats for fixed widths)
//   - float32/float64 -> {type: "number", format: "float"/"double"}
//   - string -> {type: "string"}
//   - []byte -> {type: "string", format: "byte"}
//   - time.Time -> {type: "string", format: "date-time"}
//   - *T -> schema(T) with nullable: true
//   - []T -> {type: "array", items: schema(T)}
//   - map[string]V -> {type: "object", additionalProperties: schema(V)}
//   - struct -> {type: "object", title, properties, required}
//   - registered interface -> union conversion as above
//
// Named struct types are registered under their bare type name and
// referenced via $ref. Generic instantiations are sanitized
// ("Page[User]" -> "PageUser"). Property order follows field declaration
// order in both JSON and YAML output.
//
// Struct fields follow encoding/json conventions: the json tag names the
// property, "-" skips the field, and omitempty/omitzero mark it optional.
// Fields without omitempty are listed in required.
//
// # Struct Tags
//
// The "openapi" struct tag enriches field schemas:
//
//	type CreateUserInput struct {
//	    Name  string `json:"name" openapi:"description=User name,minLength=1,maxLength=100"`
//	    Email string `json:"email" openapi:"format=email"`
//	    Age   int    `json:"age,omitempty" openapi:"minimum=0,maximum=150"`
//	    Role  string `json:"role" openapi:"enum=admin|user|guest"`
//	}
//
// Supported tag keys: title, description, format, example, default,
// enum (pipe-separated), minimum, maximum, minLength, maxLength, pattern,
// minItems, maxItems, uniqueItems, readOnly, writeOnly, deprecated,
// nullable. A string field with an enum constraint is registered as a
// standalone schema named after the Go field and referenced via $ref.
//
// # Component Registry
//
// Registry stores named schemas, reusable responses, security schemes, and
// tag metadata. Registration is idempotent for identical bodies; a name
// bound to a structurally different body fails with *ConflictError:
//
//	ref, err := reg.AddSchema("User", userSchema) // "#/components/schemas/User"
//	if err != nil {
//	    var conflict *openapi.ConflictError
//	    if errors.As(err, &conflict) { ... }
//	}
//
// Structural equality compares normalized JSON: object member order is
// irrelevant, array element order is significant. There is no automatic
// renaming; two different types competing for one name is a hard error.
//
// # Type-Level Examples
//
// Implement the Exampler interface to provide a complete example value for
// a type's component schema:
//
//	func (User) OpenAPIExample() any {
//	    return User{ID: "550e8400-...", Name: "Alice"}
//	}
//
// # Document Model
//
// The Document tree mirrors the OpenAPI 3.0 object hierarchy and marshals
// to both JSON (encoding/json) and YAML (gopkg.in/yaml.v3) with identical
// key spelling:
//
//	doc := &openapi.Document{
//	    OpenAPI: "3.0.2",
//	    Info:    openapi.Info{Title: "My API", Version: "1.0.0"},
//	    Paths:   map[string]*openapi.PathItem{...},
//	}
//	data, _ := json.MarshalIndent(doc, "", "  ")
package openapi
