package contract

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/accord/openapi"
)

type petResponse struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Tag  *string `json:"tag,omitempty"`
}

type petRequest struct {
	Name string  `json:"name"`
	Tag  *string `json:"tag,omitempty"`
}

type notFoundError struct {
	ID int
}

func (e *notFoundError) Error() string { return fmt.Sprintf("pet %d not found", e.ID) }

type teapotError struct{}

func (e *teapotError) Error() string { return "teapot" }

func errorMessageBody(err error) *ErrorResponse {
	return &ErrorResponse{Message: err.Error()}
}

func TestNewExtensionDefaults(t *testing.T) {
	ext := NewExtension()

	assert.False(t, ext.Bound())
	assert.False(t, ext.Debug())

	doc := ext.OpenAPIDocument()
	assert.Equal(t, "3.0.2", doc.OpenAPI)
	assert.Equal(t, "API created with accord", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths)
	assert.NotNil(t, doc.Components)
}

func TestOpenAPIDocumentMetadata(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.SetTitle("Pet Store"))
	require.NoError(t, ext.SetVersion("2.1.0"))
	require.NoError(t, ext.SetDescription("An example API."))

	doc := ext.OpenAPIDocument()
	assert.Equal(t, "Pet Store", doc.Info.Title)
	assert.Equal(t, "2.1.0", doc.Info.Version)
	assert.Equal(t, "An example API.", doc.Info.Description)
}

func TestResponseForDefaultHandlers(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "http error with default message",
			err:         NewHTTPError(http.StatusNotFound, ""),
			wantCode:    http.StatusNotFound,
			wantMessage: "Not Found",
		},
		{
			name:        "http error with explicit message",
			err:         NewHTTPError(http.StatusTeapot, "short and stout"),
			wantCode:    http.StatusTeapot,
			wantMessage: "short and stout",
		},
		{
			name:        "unsupported media type",
			err:         &UnsupportedMediaTypeError{ContentType: "text/html"},
			wantCode:    http.StatusUnsupportedMediaType,
			wantMessage: "unsupported media type `text/html`",
		},
		{
			name:        "client fault",
			err:         NewClientError("bad id `%d`", 12),
			wantCode:    http.StatusBadRequest,
			wantMessage: "bad id `12`",
		},
		{
			name:        "invalid fields",
			err:         &InvalidFieldsError{Errors: map[string][]string{"name": {"required property is missing"}}},
			wantCode:    http.StatusBadRequest,
			wantMessage: "invalid input: `map[name:[required property is missing]]`",
		},
		{
			name:        "wrapped client fault",
			err:         fmt.Errorf("decoding request: %w", NewClientError("boom")),
			wantCode:    http.StatusBadRequest,
			wantMessage: "boom",
		},
		{
			name:        "plain error",
			err:         errors.New("db gone"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name:        "server fault",
			err:         NewServerError("no workers left"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := NewExtension()

			resp, code, ok := ext.ResponseFor(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Nil(t, resp.DebugData)
		})
	}
}

func TestResponseForNil(t *testing.T) {
	ext := NewExtension()

	resp, code, ok := ext.ResponseFor(nil)
	assert.False(t, ok)
	assert.Nil(t, resp)
	assert.Zero(t, code)
}

func TestResponseForCustomHandler(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, errorMessageBody))

	resp, code, ok := ext.ResponseFor(&notFoundError{ID: 7})
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "pet 7 not found", resp.Message)
}

func TestResponseForRegistrationOrder(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandler((*ClientFault)(nil), http.StatusUnprocessableEntity, func(err error) *ErrorResponse {
		return &ErrorResponse{Message: "custom: " + err.Error()}
	}))
	require.NoError(t, ext.AddErrorHandler((*ClientError)(nil), http.StatusTeapot, errorMessageBody))

	// The family handler was registered first, so it wins over the concrete
	// one and over the defaults.
	resp, code, ok := ext.ResponseFor(NewClientError("boom"))
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "custom: boom", resp.Message)
}

func TestResponseForFamilyTarget(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandler((*ServerFault)(nil), http.StatusServiceUnavailable, errorMessageBody))

	_, code, ok := ext.ResponseFor(NewServerError("no workers left"))
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestResponseForStatusFunc(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandlerFunc((*notFoundError)(nil), func(err error) int {
		var nf *notFoundError
		if !errors.As(err, &nf) {
			return 0
		}
		return 400 + nf.ID
	}, errorMessageBody))

	_, code, ok := ext.ResponseFor(&notFoundError{ID: 4})
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResponseForDefaultsDisabled(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.UseDefaultErrorHandlers(false))
	require.NoError(t, ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, errorMessageBody))

	_, _, ok := ext.ResponseFor(errors.New("db gone"))
	assert.False(t, ok)

	_, code, ok := ext.ResponseFor(&notFoundError{ID: 7})
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResponseForDebug(t *testing.T) {
	ext := NewExtension()
	ext.SetDebug(true)

	resp, code, ok := ext.ResponseFor(errors.New("db gone"))
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "db gone", resp.Message)

	require.NotNil(t, resp.DebugData)
	assert.Equal(t, "*errors.errorString", resp.DebugData["exception_type"])
	assert.Equal(t, "db gone", resp.DebugData["exception_message"])
	assert.NotEmpty(t, resp.DebugData["traceback"])

	resp, _, ok = ext.ResponseFor(NewClientError("boom"))
	require.True(t, ok)
	assert.Equal(t, "boom", resp.Message)
	assert.NotNil(t, resp.DebugData)
}

func TestCodeForType(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, errorMessageBody))
	require.NoError(t, ext.AddErrorHandlerFunc((*teapotError)(nil), func(error) int {
		return http.StatusTeapot
	}, errorMessageBody))

	tests := []struct {
		name string
		t    reflect.Type
		want int
	}{
		{name: "custom fixed code", t: reflect.TypeFor[*notFoundError](), want: http.StatusNotFound},
		{name: "custom status func", t: reflect.TypeFor[*teapotError](), want: http.StatusTeapot},
		{name: "client fault family", t: reflect.TypeFor[*ClientError](), want: http.StatusBadRequest},
		{name: "unsupported media type", t: reflect.TypeFor[*UnsupportedMediaTypeError](), want: http.StatusUnsupportedMediaType},
		{name: "server fault", t: reflect.TypeFor[*ServerError](), want: http.StatusInternalServerError},
		{name: "unregistered type", t: reflect.TypeFor[*BuildError](), want: http.StatusInternalServerError},
		// A zero HTTPError carries no code, so the probe keeps scanning down
		// to the catch-all entry.
		{name: "http error", t: reflect.TypeFor[*HTTPError](), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ext.CodeForType(tt.t))
		})
	}
}

func TestErrorTypeByName(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, errorMessageBody))

	typ, ok := ext.errorTypeByName("notFoundError")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[*notFoundError](), typ)

	typ, ok = ext.errorTypeByName("HTTPError")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[*HTTPError](), typ)

	typ, ok = ext.errorTypeByName("ClientFault")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[ClientFault](), typ)

	_, ok = ext.errorTypeByName("NoSuchError")
	assert.False(t, ok)
}

func TestAddErrorHandlerValidation(t *testing.T) {
	tests := []struct {
		name    string
		add     func(ext *Extension) error
		wantErr string
	}{
		{
			name: "nil target",
			add: func(ext *Extension) error {
				return ext.AddErrorHandler(nil, http.StatusNotFound, errorMessageBody)
			},
			wantErr: "error handler target must be a typed nil such as (*MyError)(nil)",
		},
		{
			name: "target is not an error",
			add: func(ext *Extension) error {
				return ext.AddErrorHandler((*int)(nil), http.StatusNotFound, errorMessageBody)
			},
			wantErr: "error handler target *int does not implement error",
		},
		{
			name: "nil body function",
			add: func(ext *Extension) error {
				return ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, nil)
			},
			wantErr: "error handler body function must not be nil",
		},
		{
			name: "nil status function",
			add: func(ext *Extension) error {
				return ext.AddErrorHandlerFunc((*notFoundError)(nil), nil, errorMessageBody)
			},
			wantErr: "error handler status function must not be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.add(NewExtension())
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestConfigurationAfterBind(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ext *Extension) error
		wantErr string
	}{
		{
			name:    "set title",
			mutate:  func(ext *Extension) error { return ext.SetTitle("Pet Store") },
			wantErr: "you cannot change the API metadata after binding the extension",
		},
		{
			name:    "set version",
			mutate:  func(ext *Extension) error { return ext.SetVersion("2.0.0") },
			wantErr: "you cannot change the API metadata after binding the extension",
		},
		{
			name:    "set description",
			mutate:  func(ext *Extension) error { return ext.SetDescription("nope") },
			wantErr: "you cannot change the API metadata after binding the extension",
		},
		{
			name:    "toggle default error handlers",
			mutate:  func(ext *Extension) error { return ext.UseDefaultErrorHandlers(false) },
			wantErr: "you cannot change the error handler settings after binding the extension",
		},
		{
			name: "add error handler",
			mutate: func(ext *Extension) error {
				return ext.AddErrorHandler((*notFoundError)(nil), http.StatusNotFound, errorMessageBody)
			},
			wantErr: "you cannot add error handlers after binding the extension",
		},
		{
			name: "add security scheme",
			mutate: func(ext *Extension) error {
				return ext.AddSecurityScheme("api_key", &openapi.SecurityScheme{Type: "apiKey", Name: "X-API-Key", In: "header"}, false)
			},
			wantErr: "you cannot add security schemes after binding the extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := NewExtension()
			require.NoError(t, ext.Bind())

			err := tt.mutate(ext)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestBindTwice(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.Bind())
	assert.True(t, ext.Bound())

	err := ext.Bind()
	require.Error(t, err)
	assert.EqualError(t, err, "the extension is already bound")
}

func TestSetDebugAfterBind(t *testing.T) {
	ext := NewExtension()
	require.NoError(t, ext.Bind())

	ext.SetDebug(true)
	assert.True(t, ext.Debug())
}

func TestAddSecurityScheme(t *testing.T) {
	ext := NewExtension()
	bearer := &openapi.SecurityScheme{Type: "http", Scheme: "bearer"}
	apiKey := &openapi.SecurityScheme{Type: "apiKey", Name: "X-API-Key", In: "header"}

	require.NoError(t, ext.AddSecurityScheme("bearer", bearer, true))
	require.NoError(t, ext.AddSecurityScheme("api_key", apiKey, false))
	assert.Equal(t, []string{"bearer", "api_key"}, ext.SecuritySchemeNames())

	err := ext.AddSecurityScheme("api_key", apiKey, true)
	require.Error(t, err)
	assert.EqualError(t, err, "a default security scheme is already set")

	// Re-registering an identical scheme is a no-op.
	require.NoError(t, ext.AddSecurityScheme("bearer", bearer, true))
	assert.Equal(t, []string{"bearer", "api_key"}, ext.SecuritySchemeNames())

	// A structurally different scheme under a taken name is a conflict.
	err = ext.AddSecurityScheme("bearer", apiKey, false)
	var conflict *openapi.ConflictError
	require.ErrorAs(t, err, &conflict)
}
