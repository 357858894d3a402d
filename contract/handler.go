package contract

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"
)

var (
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
	requestType = reflect.TypeFor[*http.Request]()
	resultType  = reflect.TypeFor[Result]()
)

// Handler pairs a request-handling function with the metadata Go reflection
// cannot recover: positional parameter names and documentation.
//
// The function's last return value must be error. An optional first return
// value declares the implicit 200 response type; a first return value of
// type Result leaves the response undeclared so the handler can choose any
// registered response at run time. A handler without a response return
// value responds with EmptyResponse on success, which the operation must
// declare with RespondsWith.
//
// Parameters of type context.Context and *http.Request are injected by the
// adapter; the remaining parameters are bound from the request body, path,
// and query string according to the operation's declarations.
type Handler struct {
	fn         reflect.Value
	name       string
	paramNames []string
	doc        Doc
	err        error // deferred signature problems, surfaced by Build
}

// NewHandler wraps fn for registration with an adapter. paramNames must
// name every parameter of fn in positional order. Signature problems are
// reported when the operation is built.
func NewHandler(fn any, paramNames ...string) *Handler {
	h := &Handler{paramNames: paramNames}

	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		h.err = fmt.Errorf("handler must be a function, got %T", fn)
		return h
	}
	h.fn = v
	h.name = functionName(v)

	t := v.Type()
	if t.IsVariadic() {
		h.err = fmt.Errorf("handler function must not be variadic")
		return h
	}
	switch t.NumOut() {
	case 1, 2:
		if t.Out(t.NumOut()-1) != errorType {
			h.err = fmt.Errorf("the last return value of a handler must be error")
			return h
		}
	default:
		h.err = fmt.Errorf("handler must return (response, error) or error")
		return h
	}
	if len(paramNames) != t.NumIn() {
		h.err = fmt.Errorf("handler has %d parameters but %d names were given", t.NumIn(), len(paramNames))
	}
	return h
}

// WithDoc attaches a doc comment, parsed with ParseDoc. The summary,
// description, and Params/Returns/Raises sections feed the generated
// operation.
func (h *Handler) WithDoc(text string) *Handler {
	h.doc = ParseDoc(text)
	return h
}

// Named overrides the operation name derived from the function symbol.
func (h *Handler) Named(name string) *Handler {
	h.name = name
	return h
}

// Name returns the operation name: the explicit override, or the function's
// symbol name trimmed of its package path and method-value suffix.
func (h *Handler) Name() string { return h.name }

// Doc returns the parsed doc comment.
func (h *Handler) Doc() Doc { return h.doc }

// Func returns the wrapped function for invocation.
func (h *Handler) Func() reflect.Value { return h.fn }

// ParamNames returns the declared parameter names in positional order.
func (h *Handler) ParamNames() []string { return h.paramNames }

// functionName recovers a bare function name from the runtime symbol, e.g.
// "github.com/acme/api.(*UserService).Create-fm" becomes "Create".
func functionName(fn reflect.Value) string {
	rf := runtime.FuncForPC(fn.Pointer())
	if rf == nil {
		return ""
	}
	name := rf.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
