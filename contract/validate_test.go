package contract

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contractProbe struct {
	StringField string  `json:"string_field"`
	IntField    int     `json:"int_field"`
	Note        *string `json:"note,omitempty"`
}

type nullableProbe struct {
	Name string  `json:"name"`
	Tag  *string `json:"tag"`
}

type levelProbe struct {
	Level string `json:"level" openapi:"enum=low|high"`
}

func compileValidator(t *testing.T, prototypes ...any) (*Validator, *Extension) {
	t.Helper()
	ext := NewExtension()
	for _, p := range prototypes {
		_, err := ext.Converter().Convert(reflect.TypeOf(p))
		require.NoError(t, err)
	}
	v, err := NewValidator(ext.Registry(), ext.Converter())
	require.NoError(t, err)
	return v, ext
}

func TestValidatorValidPayload(t *testing.T) {
	v, _ := compileValidator(t, contractProbe{})

	assert.Nil(t, v.ValidatePayload(contractProbe{StringField: "hello", IntField: 42}))
	assert.Nil(t, v.ValidatePayload(&contractProbe{StringField: "hello", IntField: 42}))
	assert.Nil(t, v.ValidatePayload(nil))
}

func TestValidatorUnregisteredTypePasses(t *testing.T) {
	v, _ := compileValidator(t, contractProbe{})

	assert.Nil(t, v.ValidatePayload(42))
	assert.Nil(t, v.ValidateAs(reflect.TypeFor[petRequest](), map[string]any{}))
}

func TestValidatorMissingRequiredProperty(t *testing.T) {
	v, _ := compileValidator(t, contractProbe{})

	errs := v.ValidateAs(reflect.TypeFor[contractProbe](), map[string]any{
		"string_field": "hello",
	})
	require.NotNil(t, errs)
	assert.Contains(t, errs, "int_field")
	assert.Contains(t, errs["int_field"], "required property is missing")
	assert.NotContains(t, errs, "string_field")
}

func TestValidatorFieldTypeMismatch(t *testing.T) {
	v, _ := compileValidator(t, contractProbe{})

	errs := v.ValidateAs(reflect.TypeFor[contractProbe](), map[string]any{
		"string_field": "hello",
		"int_field":    "not a number",
	})
	require.NotNil(t, errs)
	assert.Contains(t, errs, "int_field")
}

func TestValidatorRootErrors(t *testing.T) {
	v, _ := compileValidator(t, contractProbe{})

	errs := v.ValidateAs(reflect.TypeFor[contractProbe](), "not an object")
	require.NotNil(t, errs)
	assert.Contains(t, errs, "_root")
}

func TestValidatorNullableField(t *testing.T) {
	v, _ := compileValidator(t, nullableProbe{})

	// The tag property is required but nullable; an explicit null passes
	// once nullable is rewritten to a JSON Schema type union.
	errs := v.ValidateAs(reflect.TypeFor[nullableProbe](), map[string]any{
		"name": "Rex",
		"tag":  nil,
	})
	assert.Nil(t, errs)

	errs = v.ValidateAs(reflect.TypeFor[nullableProbe](), map[string]any{
		"name": "Rex",
		"tag":  7,
	})
	require.NotNil(t, errs)
	assert.Contains(t, errs, "tag")
}

func TestValidatorEnumField(t *testing.T) {
	v, _ := compileValidator(t, levelProbe{})

	assert.Nil(t, v.ValidatePayload(levelProbe{Level: "low"}))

	errs := v.ValidatePayload(levelProbe{Level: "mid"})
	require.NotNil(t, errs)
	assert.Contains(t, errs, "level")
}

func TestNormalizeSchemaTree(t *testing.T) {
	t.Run("nullable type becomes a union", func(t *testing.T) {
		tree := map[string]any{"type": "string", "nullable": true}
		normalizeSchemaTree(tree)
		assert.Equal(t, []any{"string", "null"}, tree["type"])
		assert.NotContains(t, tree, "nullable")
	})

	t.Run("nullable ref wrapper becomes anyOf", func(t *testing.T) {
		allOf := []any{map[string]any{"$ref": "#/components/schemas/Pet"}}
		tree := map[string]any{"nullable": true, "allOf": allOf}
		normalizeSchemaTree(tree)
		assert.NotContains(t, tree, "allOf")
		require.Contains(t, tree, "anyOf")
		assert.Len(t, tree["anyOf"], 2)
	})

	t.Run("nullable false is dropped", func(t *testing.T) {
		tree := map[string]any{"type": "string", "nullable": false}
		normalizeSchemaTree(tree)
		assert.Equal(t, "string", tree["type"])
		assert.NotContains(t, tree, "nullable")
	})

	t.Run("boolean exclusive bounds become numeric", func(t *testing.T) {
		tree := map[string]any{"type": "number", "minimum": 5.0, "exclusiveMinimum": true}
		normalizeSchemaTree(tree)
		assert.Equal(t, 5.0, tree["exclusiveMinimum"])
		assert.NotContains(t, tree, "minimum")

		tree = map[string]any{"type": "number", "maximum": 9.0, "exclusiveMaximum": false}
		normalizeSchemaTree(tree)
		assert.Equal(t, 9.0, tree["maximum"])
		assert.NotContains(t, tree, "exclusiveMaximum")
	})

	t.Run("nested schemas are rewritten", func(t *testing.T) {
		tree := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tag": map[string]any{"type": "string", "nullable": true},
			},
		}
		normalizeSchemaTree(tree)
		props := tree["properties"].(map[string]any)
		tag := props["tag"].(map[string]any)
		assert.Equal(t, []any{"string", "null"}, tag["type"])
	})
}
