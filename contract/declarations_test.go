package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondsWithDefaults(t *testing.T) {
	decl := RespondsWith(ErrorResponse{})

	assert.Equal(t, ErrorResponse{}, decl.response)
	assert.Equal(t, 200, decl.code)
	assert.Empty(t, decl.description)
	assert.Empty(t, decl.mimetype)
}

func TestRespondsWithCopyOnWrite(t *testing.T) {
	base := RespondsWith(ErrorResponse{})
	created := base.Code(201).Description("created")

	assert.Equal(t, 200, base.code)
	assert.Empty(t, base.description)

	assert.Equal(t, 201, created.code)
	assert.Equal(t, "created", created.description)
}

func TestRespondsWithMimetype(t *testing.T) {
	decl := RespondsWith(FileResponse{}).Mimetype("image/png")

	assert.Equal(t, "image/png", decl.mimetype)
}

func TestAcceptsDefaults(t *testing.T) {
	decl := Accepts(ErrorResponse{})

	assert.Equal(t, []string{"application/json"}, decl.mimetypes)
}

func TestAcceptsMimetypes(t *testing.T) {
	base := Accepts(ErrorResponse{})
	form := base.Mimetypes("application/x-www-form-urlencoded", "multipart/form-data")

	assert.Equal(t, []string{"application/json"}, base.mimetypes)
	assert.Equal(t, []string{"application/x-www-form-urlencoded", "multipart/form-data"}, form.mimetypes)
}

func TestAcceptsFileDefaults(t *testing.T) {
	decl := AcceptsFile()

	assert.Equal(t, "application/octet-stream", decl.mimetype)
	assert.Equal(t, "text/csv", decl.Mimetype("text/csv").mimetype)
}

func TestSecurityScheme(t *testing.T) {
	base := Security("read", "write")
	named := base.Scheme("oauth")

	assert.Empty(t, base.scheme)
	assert.Equal(t, "oauth", named.scheme)
	assert.Equal(t, []string{"read", "write"}, named.scopes)
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		name  string
		decls []Declaration
		want  bool
	}{
		{
			name: "empty",
			want: false,
		},
		{
			name:  "without marker",
			decls: []Declaration{RespondsWith(ErrorResponse{}), Tags("pets")},
			want:  false,
		},
		{
			name:  "with marker",
			decls: []Declaration{Tags("pets"), Ignore()},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ignored(tt.decls))
		})
	}
}
