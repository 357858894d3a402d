package muxbind

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/vitalvas/accord/contract"
	"github.com/vitalvas/accord/openapi"
)

// EnforcerFunc checks a request against the scopes an operation requires of
// a security scheme. A nil return authorizes the request; the returned error
// is routed through the error handler table.
type EnforcerFunc func(r *http.Request, scopes []string) error

// Config configures a Binder. The zero value (and a nil *Config) selects the
// documented defaults.
type Config struct {
	// SpecPath is the route serving the OpenAPI document as JSON. The YAML
	// twin is served next to it with the extension swapped ("/spec.json"
	// gives "/spec.yaml"). Defaults to "/spec.json"; set to "-" to disable
	// both.
	SpecPath string

	// DocsPath is the route serving the interactive documentation page.
	// Defaults to "/apidocs"; set to "-" to disable. The page is also
	// disabled when SpecPath is.
	DocsPath string

	// UI selects the documentation renderer. Defaults to Swagger UI.
	UI openapi.DocsUI

	// DocsTitle overrides the documentation page title. Defaults to the
	// API title.
	DocsTitle string

	// SwaggerUIConfig holds extra configuration rendered into the Swagger UI
	// initializer. Ignored by the other renderers.
	SwaggerUIConfig map[string]any

	// Logger receives request failure and panic logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// RequestIDHeader overrides the header used to propagate the request ID.
	// Defaults to "X-Request-ID".
	RequestIDHeader string

	// RequestIDFunc is an optional callback that returns a new unique
	// request ID. Defaults to a UUID v4 per request.
	RequestIDFunc func(r *http.Request) string

	// TrustRequestID, when true, reuses an existing request ID from the
	// incoming request header instead of generating a new one.
	TrustRequestID bool

	// Debug, when true, enables debug error bodies on the extension and
	// logging of rejected requests.
	Debug bool
}

// registration holds one Handle call until the build resolves it into a
// servable handler.
type registration struct {
	method  string
	handler *contract.Handler
	decls   []contract.Declaration
	serve   http.HandlerFunc
}

// Binder mounts contract-checked operations on a gorilla/mux router and
// serves the OpenAPI document extracted from them.
//
// Registration methods must not be called concurrently. Once built, a Binder
// is read-only and safe for concurrent request handling.
type Binder struct {
	ext     *contract.Extension
	cfg     Config
	logger  *slog.Logger
	router  *mux.Router
	handler http.Handler

	shared    []contract.Declaration
	regs      map[*mux.Route]*registration
	enforcers map[string]EnforcerFunc

	buildOnce sync.Once
	buildErr  error
	pipeline  *contract.Pipeline
	document  *openapi.Document
}

// New creates a Binder for the given extension. A nil cfg selects the
// defaults documented on Config.
func New(ext *contract.Extension, cfg *Config) *Binder {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.SpecPath == "" {
		c.SpecPath = "/spec.json"
	}
	if c.DocsPath == "" {
		c.DocsPath = "/apidocs"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RequestIDHeader == "" {
		c.RequestIDHeader = "X-Request-ID"
	}
	if c.RequestIDFunc == nil {
		c.RequestIDFunc = newRequestID
	}
	if c.Debug {
		ext.SetDebug(true)
	}

	b := &Binder{
		ext:       ext,
		cfg:       c,
		logger:    c.Logger,
		router:    mux.NewRouter(),
		regs:      make(map[*mux.Route]*registration),
		enforcers: make(map[string]EnforcerFunc),
	}
	b.handler = b.assignRequestID(b.recoverPanics(b.router))

	b.router.NotFoundHandler = b.protocolError(http.StatusNotFound)
	b.router.MethodNotAllowedHandler = b.protocolError(http.StatusMethodNotAllowed)

	if c.SpecPath != "-" {
		source := openapi.DocSource(b.Document)
		b.router.Handle(c.SpecPath, openapi.JSONHandler(source)).Methods(http.MethodGet)
		b.router.Handle(yamlSpecPath(c.SpecPath), openapi.YAMLHandler(source)).Methods(http.MethodGet)
		if c.DocsPath != "-" {
			b.router.Handle(c.DocsPath, openapi.DocsHandler(source, openapi.DocsConfig{
				UI:              c.UI,
				Title:           c.DocsTitle,
				SpecURL:         c.SpecPath,
				SwaggerUIConfig: c.SwaggerUIConfig,
			})).Methods(http.MethodGet)
		}
	}

	return b
}

// Extension returns the extension the binder was created with.
func (b *Binder) Extension() *contract.Extension { return b.ext }

// Router returns the underlying router. Routes mounted on it directly are
// served as-is, without documentation or contract checks.
func (b *Binder) Router() *mux.Router { return b.router }

// Use appends declarations applied to every operation registered afterwards,
// ahead of the operation's own declarations.
func (b *Binder) Use(decls ...contract.Declaration) error {
	if b.ext.Bound() {
		return &contract.ConfigError{Message: "you cannot add shared declarations after the operations have been built"}
	}
	b.shared = append(b.shared, decls...)
	return nil
}

// Handle registers an operation for the given method and gorilla route
// template. The handler and declarations are resolved when the binder
// builds; template errors are reported immediately.
func (b *Binder) Handle(method, path string, h *contract.Handler, decls ...contract.Declaration) error {
	if b.ext.Bound() {
		return &contract.ConfigError{Message: "you cannot register operations after they have been built"}
	}

	method = strings.ToUpper(method)
	reg := &registration{
		method:  method,
		handler: h,
		decls:   slices.Concat(b.shared, decls),
	}
	route := b.router.Handle(path, b.dispatch(reg)).Methods(method)
	if err := route.GetError(); err != nil {
		return err
	}
	b.regs[route] = reg
	return nil
}

// Get registers an operation for GET requests.
func (b *Binder) Get(path string, h *contract.Handler, decls ...contract.Declaration) error {
	return b.Handle(http.MethodGet, path, h, decls...)
}

// Post registers an operation for POST requests.
func (b *Binder) Post(path string, h *contract.Handler, decls ...contract.Declaration) error {
	return b.Handle(http.MethodPost, path, h, decls...)
}

// Put registers an operation for PUT requests.
func (b *Binder) Put(path string, h *contract.Handler, decls ...contract.Declaration) error {
	return b.Handle(http.MethodPut, path, h, decls...)
}

// Delete registers an operation for DELETE requests.
func (b *Binder) Delete(path string, h *contract.Handler, decls ...contract.Declaration) error {
	return b.Handle(http.MethodDelete, path, h, decls...)
}

// Patch registers an operation for PATCH requests.
func (b *Binder) Patch(path string, h *contract.Handler, decls ...contract.Declaration) error {
	return b.Handle(http.MethodPatch, path, h, decls...)
}

// SetSecurityEnforcer registers the request-time check behind a security
// scheme. Every scheme required by an operation's Security declarations must
// have an enforcer by the time the binder builds.
func (b *Binder) SetSecurityEnforcer(scheme string, fn EnforcerFunc) error {
	if b.ext.Bound() {
		return &contract.ConfigError{Message: "you cannot register security enforcers after the operations have been built"}
	}
	if fn == nil {
		return &contract.ConfigError{Message: "security enforcer must not be nil"}
	}
	b.enforcers[scheme] = fn
	return nil
}

// AddSecurityScheme registers a security scheme on the extension together
// with the enforcer that guards it at request time.
func (b *Binder) AddSecurityScheme(name string, scheme *openapi.SecurityScheme, enforcer EnforcerFunc, isDefault bool) error {
	if err := b.ext.AddSecurityScheme(name, scheme, isDefault); err != nil {
		return err
	}
	return b.SetSecurityEnforcer(name, enforcer)
}

// Build resolves every registered operation: it binds the extension, walks
// the router to derive a descriptor per route, compiles the validation
// schemas, and renders the document. It runs at most once; later calls
// return the first outcome. Serving a request or the document triggers it
// implicitly.
func (b *Binder) Build() error {
	b.buildOnce.Do(func() { b.buildErr = b.build() })
	return b.buildErr
}

func (b *Binder) build() error {
	if err := b.ext.Bind(); err != nil {
		return err
	}

	paths := make(map[string]*openapi.PathItem)
	seen := make(map[string]bool)
	err := b.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		reg, ok := b.regs[route]
		if !ok {
			return nil
		}
		return b.bindRoute(route, reg, paths, seen)
	})
	if err != nil {
		return err
	}

	validator, err := contract.NewValidator(b.ext.Registry(), b.ext.Converter())
	if err != nil {
		return err
	}
	b.pipeline = &contract.Pipeline{IsRaw: isRawPayload, Validator: validator}

	doc := b.ext.OpenAPIDocument()
	doc.Paths = paths
	b.document = doc
	return nil
}

// bindRoute resolves one registration: ignored operations and non-extracted
// methods are mounted as plain handlers, everything else gets a descriptor,
// an entry in the document, and the contract-checking handler.
func (b *Binder) bindRoute(route *mux.Route, reg *registration, paths map[string]*openapi.PathItem, seen map[string]bool) error {
	if contract.Ignored(reg.decls) || !extractedMethod(reg.method) {
		serve, err := nativeHandler(reg.handler)
		if err != nil {
			return &contract.BuildError{Operation: operationName(reg.handler), Err: err}
		}
		reg.serve = serve
		return nil
	}

	template, err := route.GetPathTemplate()
	if err != nil {
		return err
	}
	path, names := parseTemplate(template)

	key := reg.method + " " + path
	if seen[key] {
		return &contract.BuildError{
			Operation: operationName(reg.handler),
			Err:       fmt.Errorf("an operation is already registered for %s", key),
		}
	}
	seen[key] = true

	d, err := contract.Build(b.ext, reg.handler, reg.decls, contract.RouteInfo{
		Method:     reg.method,
		Path:       path,
		PathParams: names,
	})
	if err != nil {
		return err
	}

	for _, req := range d.Security {
		if _, ok := b.enforcers[req.Scheme]; !ok {
			return &contract.BuildError{
				Operation: d.OperationID,
				Err:       fmt.Errorf("no security enforcer registered for scheme `%s`", req.Scheme),
			}
		}
	}

	item := paths[path]
	if item == nil {
		item = &openapi.PathItem{}
		paths[path] = item
	}
	item.SetOperation(strings.ToLower(reg.method), d.Operation())

	reg.serve = b.operationHandler(d)
	return nil
}

// Document builds the operations if necessary and returns the extracted
// OpenAPI document.
func (b *Binder) Document() (*openapi.Document, error) {
	if err := b.Build(); err != nil {
		return nil, err
	}
	return b.document, nil
}

// ServeHTTP builds the operations on first use and serves the request
// through the request ID and panic recovery middleware.
func (b *Binder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := b.Build(); err != nil {
		b.logger.Error("building API operations failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	b.handler.ServeHTTP(w, r)
}

// dispatch defers to the handler the build resolves for reg, building first
// when the router is served directly.
func (b *Binder) dispatch(reg *registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.Build(); err != nil {
			b.logger.Error("building API operations failed", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		reg.serve(w, r)
	}
}

// nativeHandler unwraps a handler served without contract checks. Such
// handlers must use the plain net/http signature because nothing is ever
// injected into them.
func nativeHandler(h *contract.Handler) (http.HandlerFunc, error) {
	if h == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}
	fn := h.Func()
	if !fn.IsValid() {
		return nil, fmt.Errorf("handler must be a function")
	}
	native, ok := fn.Interface().(func(http.ResponseWriter, *http.Request))
	if !ok {
		return nil, fmt.Errorf("operations outside extraction must be plain func(http.ResponseWriter, *http.Request) handlers")
	}
	return native, nil
}

func operationName(h *contract.Handler) string {
	if h == nil {
		return ""
	}
	return h.Name()
}

// extractedMethod reports whether operations with the given method are
// documented and contract-checked. Everything else is served as-is.
func extractedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// templateVarRegexp matches route variables in the form {name} or
// {name:pattern}.
var templateVarRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// parseTemplate converts a gorilla route template into an OpenAPI path and
// the template's variable names in order: /pets/{id:[0-9]+} becomes
// /pets/{id} with ["id"].
func parseTemplate(template string) (string, []string) {
	var names []string
	path := templateVarRegexp.ReplaceAllStringFunc(template, func(match string) string {
		name, _, _ := strings.Cut(match[1:len(match)-1], ":")
		names = append(names, name)
		return "{" + name + "}"
	})
	return path, names
}

// yamlSpecPath derives the YAML document route from the JSON one:
// /spec.json becomes /spec.yaml.
func yamlSpecPath(specPath string) string {
	if p, ok := strings.CutSuffix(specPath, ".json"); ok {
		return p + ".yaml"
	}
	return specPath + ".yaml"
}
