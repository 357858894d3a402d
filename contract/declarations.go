package contract

// Declaration is a piece of operation metadata attached to a handler at
// registration time. Declarations are immutable values; their builder
// methods return modified copies, so a declaration can be shared between
// operations safely.
//
// The concrete kinds are RespondsWith, Accepts, AcceptsFile,
// AcceptsQueryParams, Ignore, IgnoreParams, Tags, and Security.
type Declaration interface {
	declaration()
}

// RespondsWithDecl declares a possible response of an operation. The
// referenced payload is validated against its schema before it is sent.
type RespondsWithDecl struct {
	response    any
	code        int
	description string
	mimetype    string
}

// RespondsWith declares that the operation may respond with the given type.
// The annotation is a value prototype, a reflect.Type, or the name of a type
// registered with the type registry. The status code defaults to 200.
func RespondsWith(response any) RespondsWithDecl {
	return RespondsWithDecl{response: response, code: 200}
}

// Code returns a copy with the given status code.
func (d RespondsWithDecl) Code(code int) RespondsWithDecl {
	d.code = code
	return d
}

// Description returns a copy with a response description. It falls back to
// the response type name when empty.
func (d RespondsWithDecl) Description(description string) RespondsWithDecl {
	d.description = description
	return d
}

// Mimetype returns a copy with an explicit response content type. It is
// what the adapter sends in the Content-Type header and, for file
// responses, the key of the content map in the document.
func (d RespondsWithDecl) Mimetype(mimetype string) RespondsWithDecl {
	d.mimetype = mimetype
	return d
}

func (RespondsWithDecl) declaration() {}

// AcceptsDecl declares the request body type of an operation.
type AcceptsDecl struct {
	request   any
	mimetypes []string
}

// Accepts declares that the operation takes a request body of the given
// type, injected into the handler parameter of that type. The annotation
// forms are the same as for RespondsWith. The accepted content type
// defaults to application/json.
func Accepts(request any) AcceptsDecl {
	return AcceptsDecl{request: request, mimetypes: []string{"application/json"}}
}

// Mimetypes returns a copy accepting the given content types.
func (d AcceptsDecl) Mimetypes(mimetypes ...string) AcceptsDecl {
	d.mimetypes = mimetypes
	return d
}

func (AcceptsDecl) declaration() {}

// AcceptsFileDecl declares that the operation takes a raw file upload as its
// request body. The handler reads the body from the injected *http.Request.
type AcceptsFileDecl struct {
	mimetype string
}

// AcceptsFile declares a file upload body. The content type defaults to
// application/octet-stream.
func AcceptsFile() AcceptsFileDecl {
	return AcceptsFileDecl{mimetype: "application/octet-stream"}
}

// Mimetype returns a copy accepting the given content type.
func (d AcceptsFileDecl) Mimetype(mimetype string) AcceptsFileDecl {
	d.mimetype = mimetype
	return d
}

func (AcceptsFileDecl) declaration() {}

// QueryParamsDecl declares handler parameters bound from the query string.
type QueryParamsDecl struct {
	names []string
}

// AcceptsQueryParams declares that the named handler parameters are bound
// from query string values. Parameters must be string, int, *string, or
// *int; pointer-typed parameters are optional.
func AcceptsQueryParams(names ...string) QueryParamsDecl {
	return QueryParamsDecl{names: names}
}

func (QueryParamsDecl) declaration() {}

// IgnoreDecl excludes an operation from extraction entirely.
type IgnoreDecl struct{}

// Ignore marks the operation as invisible to the extractor: it is neither
// documented nor contract-checked.
func Ignore() IgnoreDecl {
	return IgnoreDecl{}
}

func (IgnoreDecl) declaration() {}

// IgnoreParamsDecl hides path parameters from the generated document.
type IgnoreParamsDecl struct {
	names []string
}

// IgnoreParams omits the named path parameters from the rendered operation.
// The values are still injected into the handler.
func IgnoreParams(names ...string) IgnoreParamsDecl {
	return IgnoreParamsDecl{names: names}
}

func (IgnoreParamsDecl) declaration() {}

// TagData carries tag metadata registered in the document's top-level tag
// table.
type TagData struct {
	Name        string
	Description string
}

// TagsDecl attaches grouping tags to an operation.
type TagsDecl struct {
	tags []any
}

// Tags attaches the given tags to the operation. Each element is either a
// plain string or a TagData value; TagData additionally registers the tag's
// description in the document (the first registration of a name wins).
func Tags(tags ...any) TagsDecl {
	return TagsDecl{tags: tags}
}

func (TagsDecl) declaration() {}

// SecurityDecl declares that the operation requires authorization.
type SecurityDecl struct {
	scopes []string
	scheme string
}

// Security requires the given scopes of the operation's security scheme.
// Without an explicit Scheme the registered default scheme is used, or the
// only registered scheme when there is exactly one.
func Security(scopes ...string) SecurityDecl {
	return SecurityDecl{scopes: scopes}
}

// Scheme returns a copy bound to the named security scheme.
func (d SecurityDecl) Scheme(name string) SecurityDecl {
	d.scheme = name
	return d
}

func (SecurityDecl) declaration() {}

// Ignored reports whether the declaration set contains an Ignore marker.
// Adapters skip ignored operations before building descriptors.
func Ignored(decls []Declaration) bool {
	for _, decl := range decls {
		if _, ok := decl.(IgnoreDecl); ok {
			return true
		}
	}
	return false
}
