package contract

import (
	"errors"
	"fmt"
	"iter"
	"net/http"
	"reflect"
	"slices"

	"github.com/vitalvas/accord/openapi"
)

// ErrorBodyFunc builds the response body for a matched error.
type ErrorBodyFunc func(err error) *ErrorResponse

// StatusFunc derives a status code from an error value, for error types
// that carry their own code.
type StatusFunc func(err error) int

type errorHandlerEntry struct {
	target reflect.Type // concrete error type or an interface
	code   int
	codeFn StatusFunc
	body   ErrorBodyFunc
}

// Extension is the shared state behind an extracted API: the type and
// component registries, the error handler table, security schemes, and the
// document metadata. An adapter binds it exactly once when it builds its
// operations; configuration is rejected afterwards.
//
// An Extension is not safe for concurrent configuration. Once bound it is
// read-only and safe for concurrent request handling.
type Extension struct {
	title       string
	version     string
	description string
	debug       bool

	types     *openapi.TypeRegistry
	registry  *openapi.Registry
	converter *openapi.Converter

	handlers    []errorHandlerEntry
	defaults    []errorHandlerEntry
	useDefaults bool

	schemeNames   []string
	defaultScheme string

	bound bool
}

// NewExtension creates an extension with default metadata and the default
// error handlers enabled.
func NewExtension() *Extension {
	ext := &Extension{
		title:       "API created with accord",
		version:     "1.0.0",
		useDefaults: true,
		types:       openapi.NewTypeRegistry(),
		registry:    openapi.NewRegistry(),
	}
	ext.converter = openapi.NewConverter(ext.registry, ext.types)

	// Default handlers, most specific first. The catch-all guarantees every
	// error maps to some response while defaults are enabled.
	ext.defaults = []errorHandlerEntry{
		{target: reflect.TypeFor[*HTTPError](), codeFn: httpErrorCode, body: ext.httpErrorBody},
		{target: reflect.TypeFor[*UnsupportedMediaTypeError](), code: http.StatusUnsupportedMediaType, body: ext.clientErrorBody},
		{target: reflect.TypeFor[ClientFault](), code: http.StatusBadRequest, body: ext.clientErrorBody},
		{target: errorType, code: http.StatusInternalServerError, body: ext.serverErrorBody},
	}
	return ext
}

// Types returns the registry used to resolve string annotations and union
// metadata.
func (e *Extension) Types() *openapi.TypeRegistry { return e.types }

// Registry returns the component registry populated while building
// operations.
func (e *Extension) Registry() *openapi.Registry { return e.registry }

// Converter returns the schema converter bound to the extension's
// registries.
func (e *Extension) Converter() *openapi.Converter { return e.converter }

// SetTitle sets the API title rendered in the document's info object.
func (e *Extension) SetTitle(title string) error {
	if err := e.ensureNotBound("you cannot change the API metadata after binding the extension"); err != nil {
		return err
	}
	e.title = title
	return nil
}

// SetVersion sets the API version rendered in the document's info object.
func (e *Extension) SetVersion(version string) error {
	if err := e.ensureNotBound("you cannot change the API metadata after binding the extension"); err != nil {
		return err
	}
	e.version = version
	return nil
}

// SetDescription sets the API description rendered in the document's info
// object.
func (e *Extension) SetDescription(description string) error {
	if err := e.ensureNotBound("you cannot change the API metadata after binding the extension"); err != nil {
		return err
	}
	e.description = description
	return nil
}

// SetDebug toggles debug error bodies: matched errors include their real
// message and a formatted exception under debug_data. The flag is read at
// handling time and may be toggled on a bound extension.
func (e *Extension) SetDebug(debug bool) { e.debug = debug }

// Debug reports whether debug error bodies are enabled.
func (e *Extension) Debug() bool { return e.debug }

// UseDefaultErrorHandlers controls whether the built-in error handlers are
// consulted after the registered ones. They are enabled by default; with
// them disabled, unmatched errors propagate to the adapter.
func (e *Extension) UseDefaultErrorHandlers(use bool) error {
	if err := e.ensureNotBound("you cannot change the error handler settings after binding the extension"); err != nil {
		return err
	}
	e.useDefaults = use
	return nil
}

// AddErrorHandler maps errors matching target to a fixed status code and a
// body builder. The target is a typed nil: (*MyError)(nil) matches that
// concrete type, and a pointer-to-interface token such as
// (*contract.ClientFault)(nil) matches the whole family. Matching follows
// errors.As semantics, in registration order, before the default handlers.
func (e *Extension) AddErrorHandler(target any, code int, body ErrorBodyFunc) error {
	return e.addErrorHandler(target, code, nil, body)
}

// AddErrorHandlerFunc registers a handler whose status code is derived from
// the error value. During descriptor builds the code function is probed
// with a zero value of the documented error type; a zero result lets the
// scan continue to less specific entries.
func (e *Extension) AddErrorHandlerFunc(target any, code StatusFunc, body ErrorBodyFunc) error {
	if code == nil {
		return &ConfigError{Message: "error handler status function must not be nil"}
	}
	return e.addErrorHandler(target, 0, code, body)
}

func (e *Extension) addErrorHandler(target any, code int, codeFn StatusFunc, body ErrorBodyFunc) error {
	if err := e.ensureNotBound("you cannot add error handlers after binding the extension"); err != nil {
		return err
	}
	t, err := errorTarget(target)
	if err != nil {
		return err
	}
	if body == nil {
		return &ConfigError{Message: "error handler body function must not be nil"}
	}
	e.handlers = append(e.handlers, errorHandlerEntry{target: t, code: code, codeFn: codeFn, body: body})
	return nil
}

// AddSecurityScheme registers a named security scheme for use by Security
// declarations. With isDefault set the scheme is the one used by
// declarations without an explicit scheme; only one default may be set.
func (e *Extension) AddSecurityScheme(name string, scheme *openapi.SecurityScheme, isDefault bool) error {
	if err := e.ensureNotBound("you cannot add security schemes after binding the extension"); err != nil {
		return err
	}
	if err := e.registry.AddSecurityScheme(name, scheme); err != nil {
		return err
	}
	if !slices.Contains(e.schemeNames, name) {
		e.schemeNames = append(e.schemeNames, name)
	}
	if isDefault {
		if e.defaultScheme != "" && e.defaultScheme != name {
			return &ConfigError{Message: "a default security scheme is already set"}
		}
		e.defaultScheme = name
	}
	return nil
}

// SecuritySchemeNames returns the registered scheme names in registration
// order.
func (e *Extension) SecuritySchemeNames() []string {
	return slices.Clone(e.schemeNames)
}

// Bind freezes the extension's configuration. Adapters call it once before
// building operations; configuration attempts fail afterwards.
func (e *Extension) Bind() error {
	if e.bound {
		return &ConfigError{Message: "the extension is already bound"}
	}
	e.bound = true
	return nil
}

// Bound reports whether an adapter has bound the extension.
func (e *Extension) Bound() bool { return e.bound }

func (e *Extension) ensureNotBound(message string) error {
	if e.bound {
		return &ConfigError{Message: message}
	}
	return nil
}

// OpenAPIDocument renders the document skeleton: info, components, and tag
// metadata. The adapter fills in the paths it extracted.
func (e *Extension) OpenAPIDocument() *openapi.Document {
	return &openapi.Document{
		OpenAPI: "3.0.2",
		Info: openapi.Info{
			Title:       e.title,
			Version:     e.version,
			Description: e.description,
		},
		Paths:      map[string]*openapi.PathItem{},
		Components: e.registry.Components(),
		Tags:       e.registry.Tags(),
	}
}

// errorEntries yields the registered handlers in registration order,
// followed by the defaults when they are enabled.
func (e *Extension) errorEntries() iter.Seq[*errorHandlerEntry] {
	return func(yield func(*errorHandlerEntry) bool) {
		for i := range e.handlers {
			if !yield(&e.handlers[i]) {
				return
			}
		}
		if !e.useDefaults {
			return
		}
		for i := range e.defaults {
			if !yield(&e.defaults[i]) {
				return
			}
		}
	}
}

// CodeForType reports the status code an error of type t would map to,
// using the same scan as ResponseFor. Entries with a derived status code
// are probed with a zero value of t; a zero result keeps scanning. When
// nothing matches, 500 is assumed.
func (e *Extension) CodeForType(t reflect.Type) int {
	for entry := range e.errorEntries() {
		if !entry.matchesType(t) {
			continue
		}
		code := entry.code
		if entry.codeFn != nil {
			code = staticCode(entry.codeFn, t)
		}
		if code != 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// ResponseFor matches err against the error handler table and builds the
// response body and status code. The last return value is false when
// nothing matched, which can only happen with the default handlers
// disabled.
func (e *Extension) ResponseFor(err error) (*ErrorResponse, int, bool) {
	if err == nil {
		return nil, 0, false
	}
	for entry := range e.errorEntries() {
		matched, found := entry.match(err)
		if !found {
			continue
		}
		code := entry.code
		if entry.codeFn != nil {
			code = entry.codeFn(matched)
		}
		return entry.body(matched), code, true
	}
	return nil, 0, false
}

// errorTypeByName finds a handler entry target matching a Raises: name,
// either the bare type name ("NotFoundError") or the full reflect string
// ("*store.NotFoundError").
func (e *Extension) errorTypeByName(name string) (reflect.Type, bool) {
	for entry := range e.errorEntries() {
		if typeName(entry.target) == name || entry.target.String() == name {
			return entry.target, true
		}
	}
	return nil, false
}

func (en *errorHandlerEntry) matchesType(t reflect.Type) bool {
	if en.target.Kind() == reflect.Interface {
		return t.Implements(en.target)
	}
	return t == en.target
}

// match runs errors.As against a freshly allocated target of the entry's
// type and returns the matched error from the chain.
func (en *errorHandlerEntry) match(err error) (error, bool) {
	target := reflect.New(en.target)
	if !errors.As(err, target.Interface()) {
		return nil, false
	}
	matched, ok := target.Elem().Interface().(error)
	if !ok {
		return nil, false
	}
	return matched, true
}

// errorTarget normalizes a registration token into a matchable type: a
// pointer-to-interface token yields the interface, anything else its own
// type.
func errorTarget(target any) (reflect.Type, error) {
	t := reflect.TypeOf(target)
	if t == nil {
		return nil, &ConfigError{Message: "error handler target must be a typed nil such as (*MyError)(nil)"}
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	if !t.Implements(errorType) {
		return nil, &ConfigError{Message: fmt.Sprintf("error handler target %s does not implement error", t)}
	}
	return t, nil
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// staticCode probes a status function with a zero value of t. Types that
// carry their code in a field report zero here, which the caller treats as
// undeterminable.
func staticCode(fn StatusFunc, t reflect.Type) int {
	var zero reflect.Value
	if t.Kind() == reflect.Pointer {
		zero = reflect.New(t.Elem())
	} else {
		zero = reflect.Zero(t)
	}
	err, ok := zero.Interface().(error)
	if !ok {
		return 0
	}
	return fn(err)
}

func httpErrorCode(err error) int {
	var he *HTTPError
	if !errors.As(err, &he) {
		return 0
	}
	return he.Code
}

func (e *Extension) httpErrorBody(err error) *ErrorResponse {
	return &ErrorResponse{Message: err.Error()}
}

func (e *Extension) clientErrorBody(err error) *ErrorResponse {
	resp := &ErrorResponse{Message: err.Error()}
	if e.debug {
		resp.DebugData = FormatException(err)
	}
	return resp
}

func (e *Extension) serverErrorBody(err error) *ErrorResponse {
	if e.debug {
		return &ErrorResponse{Message: err.Error(), DebugData: FormatException(err)}
	}
	return &ErrorResponse{Message: "Internal server error"}
}
