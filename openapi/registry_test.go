package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddSchema(t *testing.T) {
	userSchema := func() *Schema {
		props := NewProperties()
		props.Set("name", &Schema{Type: "string"})
		return &Schema{Type: "object", Title: "User", Properties: props, Required: []string{"name"}}
	}

	t.Run("returns component ref", func(t *testing.T) {
		reg := NewRegistry()
		ref, err := reg.AddSchema("User", userSchema())
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/User", ref)
	})

	t.Run("identical re-registration is a no-op", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.AddSchema("User", userSchema())
		require.NoError(t, err)

		ref, err := reg.AddSchema("User", userSchema())
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/User", ref)
		assert.Len(t, reg.Schemas(), 1)
	})

	t.Run("conflicting re-registration fails", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.AddSchema("User", userSchema())
		require.NoError(t, err)

		_, err = reg.AddSchema("User", &Schema{Type: "string"})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "User", conflict.Name)
		assert.Contains(t, err.Error(), "conflicting definitions of `User`")
	})

	t.Run("required order is structural", func(t *testing.T) {
		reg := NewRegistry()
		a := &Schema{Type: "object", Required: []string{"a", "b"}}
		b := &Schema{Type: "object", Required: []string{"b", "a"}}

		_, err := reg.AddSchema("Thing", a)
		require.NoError(t, err)

		// Array order matters for structural equality.
		_, err = reg.AddSchema("Thing", b)
		assert.Error(t, err)
	})
}

func TestRegistryAddResponse(t *testing.T) {
	reg := NewRegistry()

	ref, err := reg.AddResponse("NotFound", &Response{Description: "Not found"})
	require.NoError(t, err)
	assert.Equal(t, "#/components/responses/NotFound", ref)

	_, err = reg.AddResponse("NotFound", &Response{Description: "Not found"})
	require.NoError(t, err)

	_, err = reg.AddResponse("NotFound", &Response{Description: "Missing"})
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestRegistryAddSecurityScheme(t *testing.T) {
	reg := NewRegistry()

	scheme := &SecurityScheme{Type: "http", Scheme: "basic"}
	require.NoError(t, reg.AddSecurityScheme("basicAuth", scheme))
	require.NoError(t, reg.AddSecurityScheme("basicAuth", &SecurityScheme{Type: "http", Scheme: "basic"}))

	err := reg.AddSecurityScheme("basicAuth", &SecurityScheme{Type: "apiKey", Name: "X-Key", In: "header"})
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestRegistryTags(t *testing.T) {
	reg := NewRegistry()

	reg.AddTag(Tag{Name: "users", Description: "User operations"})
	reg.AddTag(Tag{Name: "pets"})
	reg.AddTag(Tag{Name: "users", Description: "ignored duplicate"})

	tags := reg.Tags()
	require.Len(t, tags, 2)
	assert.Equal(t, "users", tags[0].Name)
	assert.Equal(t, "User operations", tags[0].Description)
	assert.Equal(t, "pets", tags[1].Name)

	tag, ok := reg.Tag("users")
	require.True(t, ok)
	assert.Equal(t, "User operations", tag.Description)

	_, ok = reg.Tag("unknown")
	assert.False(t, ok)
}

func TestRegistryComponents(t *testing.T) {
	t.Run("empty registry has no components", func(t *testing.T) {
		assert.Nil(t, NewRegistry().Components())
	})

	t.Run("populated registry", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.AddSchema("User", &Schema{Type: "object"})
		require.NoError(t, err)
		require.NoError(t, reg.AddSecurityScheme("basicAuth", &SecurityScheme{Type: "http", Scheme: "basic"}))

		comp := reg.Components()
		require.NotNil(t, comp)
		assert.Contains(t, comp.Schemas, "User")
		assert.Contains(t, comp.SecuritySchemes, "basicAuth")
	})
}
