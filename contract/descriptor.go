package contract

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/vitalvas/accord/openapi"
)

var (
	stringType       = reflect.TypeFor[string]()
	intType          = reflect.TypeFor[int]()
	fileResponseType = reflect.TypeFor[FileResponse]()
)

// RouteInfo describes the route an operation is mounted on, as extracted by
// the adapter from its router.
type RouteInfo struct {
	// Method is the uppercase HTTP method.
	Method string

	// Path is the OpenAPI-style template, e.g. /users/{id}.
	Path string

	// PathParams lists the template's parameter names in order.
	PathParams []string
}

// ResponseMeta annotates one (type, code) entry of the response table.
type ResponseMeta struct {
	Description string
	Mimetype    string
}

// BodyParam describes request body injection.
type BodyParam struct {
	// Name of the handler parameter receiving the body.
	Name string

	// Index of the parameter in the handler signature.
	Index int

	// Type of the parameter as declared, possibly a pointer.
	Type reflect.Type

	// Mimetypes the operation accepts the body as.
	Mimetypes []string
}

// ParamSpec describes one path or query parameter binding.
type ParamSpec struct {
	Name string

	// Index of the handler parameter, or -1 for path template names that
	// are documented but not injected.
	Index int

	// Type of the parameter as declared, possibly a pointer for optional
	// query parameters.
	Type reflect.Type

	// Optional marks pointer-typed query parameters, which may be absent.
	Optional bool

	Description string
}

// SecurityRequirement pairs a scheme name with the scopes an operation
// requires of it.
type SecurityRequirement struct {
	Scheme string
	Scopes []string
}

// Descriptor is the bind-time digest of one operation: everything an
// adapter needs to decode requests, invoke the handler, and resolve
// responses, plus the rendered Operation Object. Descriptors are built once
// at bind time and are read-only afterwards.
type Descriptor struct {
	Method string
	Path   string

	OperationID string
	Summary     string
	Description string

	// Responses is the response table: payload type (pointer-normalized)
	// to the status codes it may be returned under.
	Responses map[reflect.Type]map[int]ResponseMeta

	// Body is set when the operation accepts a model request body.
	Body *BodyParam

	// FileMimetype is set when the operation accepts a raw file body.
	FileMimetype string

	PathParams  []ParamSpec
	QueryParams []ParamSpec
	Security    []SecurityRequirement
	Tags        []string

	// CtxIndex and ReqIndex locate framework-injected parameters, -1 when
	// absent.
	CtxIndex int
	ReqIndex int

	handler       *Handler
	returnsResult bool
	ignored       map[string]bool
	operation     *openapi.Operation
}

// Build derives the operation descriptor for h mounted at route, rendering
// its Operation Object against the extension's registries. The declaration
// set is evaluated in a fixed order: responses, request body, query
// parameters, path parameters, security, then tags. Any failure is wrapped
// in a *BuildError naming the operation.
func Build(ext *Extension, h *Handler, decls []Declaration, route RouteInfo) (*Descriptor, error) {
	if h == nil {
		return nil, &BuildError{Err: fmt.Errorf("handler must not be nil")}
	}
	fail := func(err error) (*Descriptor, error) {
		return nil, &BuildError{Operation: h.name, Err: err}
	}
	if h.err != nil {
		return fail(h.err)
	}

	d := &Descriptor{
		Method:      route.Method,
		Path:        route.Path,
		OperationID: lowerFirst(h.name),
		Summary:     h.doc.Summary,
		Description: h.doc.Description,
		Responses:   make(map[reflect.Type]map[int]ResponseMeta),
		CtxIndex:    -1,
		ReqIndex:    -1,
		handler:     h,
		ignored:     make(map[string]bool),
	}

	ft := h.fn.Type()
	for i := range ft.NumIn() {
		switch ft.In(i) {
		case contextType:
			if d.CtxIndex >= 0 {
				return fail(fmt.Errorf("multiple context.Context parameters"))
			}
			d.CtxIndex = i
		case requestType:
			if d.ReqIndex >= 0 {
				return fail(fmt.Errorf("multiple *http.Request parameters"))
			}
			d.ReqIndex = i
		}
	}

	for _, decl := range decls {
		if ip, ok := decl.(IgnoreParamsDecl); ok {
			for _, name := range ip.names {
				d.ignored[name] = true
			}
		}
	}

	if err := d.buildResponses(ext, h, decls); err != nil {
		return fail(err)
	}
	if err := d.buildRequestBody(ext, h, decls); err != nil {
		return fail(err)
	}
	if err := d.buildQueryParams(h, decls); err != nil {
		return fail(err)
	}
	if err := d.buildPathParams(h, route); err != nil {
		return fail(err)
	}
	if err := d.buildSecurity(ext, decls); err != nil {
		return fail(err)
	}
	if err := d.buildTags(ext, decls); err != nil {
		return fail(err)
	}
	if err := d.checkParamsBound(h); err != nil {
		return fail(err)
	}
	if err := d.render(ext); err != nil {
		return fail(err)
	}

	return d, nil
}

// Operation returns the rendered Operation Object.
func (d *Descriptor) Operation() *openapi.Operation { return d.operation }

// Handler returns the wrapped handler.
func (d *Descriptor) Handler() *Handler { return d.handler }

// ReturnsResult reports whether the handler's first return value is the
// Result union rather than a fixed response type.
func (d *Descriptor) ReturnsResult() bool { return d.returnsResult }

// Call invokes the handler with fully populated arguments and lifts its
// return values into a Result.
func (d *Descriptor) Call(args []reflect.Value) (Result, error) {
	out := d.handler.fn.Call(args)
	if errv := out[len(out)-1]; !errv.IsNil() {
		return Result{}, errv.Interface().(error)
	}
	if len(out) == 1 {
		return Respond(EmptyResponse{}), nil
	}
	if d.returnsResult {
		return out[0].Interface().(Result), nil
	}
	return Respond(out[0].Interface()), nil
}

// buildResponses merges the three response sources into the response table:
// the return annotation as an implicit 200, RespondsWith declarations, and
// Raises: doc entries mapped through the error handler table.
func (d *Descriptor) buildResponses(ext *Extension, h *Handler, decls []Declaration) error {
	add := func(t reflect.Type, code int, meta ResponseMeta) error {
		t = normalizeType(t)
		codes := d.Responses[t]
		if codes == nil {
			codes = make(map[int]ResponseMeta)
			d.Responses[t] = codes
		}
		if _, dup := codes[code]; dup {
			return fmt.Errorf("multiple responses declared with the same schema and code")
		}
		codes[code] = meta
		return nil
	}

	ft := h.fn.Type()
	if ft.NumOut() == 2 {
		if ft.Out(0) == resultType {
			d.returnsResult = true
		} else if err := add(ft.Out(0), http.StatusOK, ResponseMeta{Description: h.doc.Returns}); err != nil {
			return err
		}
	}

	for _, decl := range decls {
		rw, ok := decl.(RespondsWithDecl)
		if !ok {
			continue
		}
		t, err := ext.types.Resolve(rw.response)
		if err != nil {
			return err
		}
		if err := add(t, rw.code, ResponseMeta{Description: rw.description, Mimetype: rw.mimetype}); err != nil {
			return err
		}
	}

	// Raises: entries naming a registered error type document an
	// ErrorResponse at the code the error handler table maps it to.
	for _, raise := range h.doc.Raises {
		t, ok := ext.errorTypeByName(raise.Name)
		if !ok {
			continue
		}
		code := ext.CodeForType(t)
		if err := add(reflect.TypeFor[ErrorResponse](), code, ResponseMeta{Description: raise.Description}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Descriptor) buildRequestBody(ext *Extension, h *Handler, decls []Declaration) error {
	var accepts *AcceptsDecl
	var file *AcceptsFileDecl
	for _, decl := range decls {
		switch v := decl.(type) {
		case AcceptsDecl:
			if accepts != nil {
				return fmt.Errorf("multiple accepts declarations")
			}
			accepts = &v
		case AcceptsFileDecl:
			if file != nil {
				return fmt.Errorf("an endpoint cannot accept files of multiple types")
			}
			file = &v
		}
	}
	if accepts != nil && file != nil {
		return fmt.Errorf("an endpoint cannot accept both a file and a model")
	}
	if file != nil {
		d.FileMimetype = file.mimetype
		return nil
	}

	var bodyType reflect.Type
	if accepts != nil {
		t, err := ext.types.Resolve(accepts.request)
		if err != nil {
			return err
		}
		bodyType = normalizeType(t)
	}

	ft := h.fn.Type()
	bodyIndex := -1
	for i := range ft.NumIn() {
		if i == d.CtxIndex || i == d.ReqIndex {
			continue
		}
		pt := ft.In(i)
		if accepts != nil {
			if normalizeType(pt) != bodyType {
				continue
			}
			if bodyIndex >= 0 {
				return fmt.Errorf("multiple parameters of type `%s` specified by the accepts declaration", bodyType)
			}
		} else {
			if normalizeType(pt).Kind() != reflect.Struct || normalizeType(pt) == resultType {
				continue
			}
			if bodyIndex >= 0 {
				return fmt.Errorf("multiple candidates for request body injection, use an accepts declaration to pick one")
			}
		}
		bodyIndex = i
	}

	if bodyIndex < 0 {
		if accepts != nil {
			return fmt.Errorf("no parameter for request body injection")
		}
		return nil
	}

	mimetypes := []string{"application/json"}
	if accepts != nil {
		mimetypes = accepts.mimetypes
	}
	d.Body = &BodyParam{
		Name:      h.paramNames[bodyIndex],
		Index:     bodyIndex,
		Type:      ft.In(bodyIndex),
		Mimetypes: mimetypes,
	}
	return nil
}

func (d *Descriptor) buildQueryParams(h *Handler, decls []Declaration) error {
	ft := h.fn.Type()
	seen := make(map[string]bool)
	for _, decl := range decls {
		q, ok := decl.(QueryParamsDecl)
		if !ok {
			continue
		}
		for _, name := range q.names {
			if seen[name] {
				continue
			}
			seen[name] = true

			idx := slices.Index(h.paramNames, name)
			if idx < 0 {
				return fmt.Errorf("unknown parameter `%s`", name)
			}
			pt := ft.In(idx)
			base := normalizeType(pt)
			if base != stringType && base != intType {
				return fmt.Errorf("only string and integer query parameters are supported")
			}
			d.QueryParams = append(d.QueryParams, ParamSpec{
				Name:        name,
				Index:       idx,
				Type:        pt,
				Optional:    pt.Kind() == reflect.Pointer,
				Description: h.doc.Params[name],
			})
		}
	}
	return nil
}

func (d *Descriptor) buildPathParams(h *Handler, route RouteInfo) error {
	ft := h.fn.Type()
	for _, name := range route.PathParams {
		idx := slices.Index(h.paramNames, name)
		if idx < 0 {
			// Template names without a matching parameter are documented
			// as strings but never injected.
			d.PathParams = append(d.PathParams, ParamSpec{
				Name:        name,
				Index:       -1,
				Type:        stringType,
				Description: h.doc.Params[name],
			})
			continue
		}
		pt := ft.In(idx)
		if pt != stringType && pt != intType {
			return fmt.Errorf("unsupported path parameter type `%s`", pt)
		}
		d.PathParams = append(d.PathParams, ParamSpec{
			Name:        name,
			Index:       idx,
			Type:        pt,
			Description: h.doc.Params[name],
		})
	}
	return nil
}

func (d *Descriptor) buildSecurity(ext *Extension, decls []Declaration) error {
	for _, decl := range decls {
		s, ok := decl.(SecurityDecl)
		if !ok {
			continue
		}
		if len(ext.schemeNames) == 0 {
			return fmt.Errorf("at least one security scheme must be defined in order to use a security declaration")
		}
		scheme := s.scheme
		if scheme == "" {
			scheme = ext.defaultScheme
		}
		if scheme == "" {
			if len(ext.schemeNames) > 1 {
				return fmt.Errorf("multiple security schemes are defined and no default is set, name one explicitly")
			}
			scheme = ext.schemeNames[0]
		}
		if !slices.Contains(ext.schemeNames, scheme) {
			return fmt.Errorf("unknown security scheme `%s`", scheme)
		}
		scopes := slices.Clone(s.scopes)
		if scopes == nil {
			scopes = []string{}
		}
		d.Security = append(d.Security, SecurityRequirement{Scheme: scheme, Scopes: scopes})
	}
	return nil
}

func (d *Descriptor) buildTags(ext *Extension, decls []Declaration) error {
	for _, decl := range decls {
		td, ok := decl.(TagsDecl)
		if !ok {
			continue
		}
		for _, tag := range td.tags {
			switch v := tag.(type) {
			case string:
				d.Tags = append(d.Tags, v)
			case TagData:
				ext.registry.AddTag(openapi.Tag{Name: v.Name, Description: v.Description})
				d.Tags = append(d.Tags, v.Name)
			default:
				return fmt.Errorf("tags must be strings or TagData values, got %T", tag)
			}
		}
	}
	return nil
}

// checkParamsBound verifies that every handler parameter receives a value
// from some source: the framework injections, the request body, or a path
// or query binding. Unbound parameters would be silently zero at run time.
func (d *Descriptor) checkParamsBound(h *Handler) error {
	bound := make([]bool, h.fn.Type().NumIn())
	if d.CtxIndex >= 0 {
		bound[d.CtxIndex] = true
	}
	if d.ReqIndex >= 0 {
		bound[d.ReqIndex] = true
	}
	if d.Body != nil {
		bound[d.Body.Index] = true
	}
	for _, p := range d.PathParams {
		if p.Index >= 0 {
			bound[p.Index] = true
		}
	}
	for _, p := range d.QueryParams {
		bound[p.Index] = true
	}
	for i, ok := range bound {
		if !ok {
			return fmt.Errorf("parameter `%s` is not bound by the route, query parameters, or request body", h.paramNames[i])
		}
	}
	return nil
}

// render builds the Operation Object from the collected metadata,
// registering component schemas along the way.
func (d *Descriptor) render(ext *Extension) error {
	op := &openapi.Operation{
		OperationID: d.OperationID,
		Summary:     d.Summary,
		Description: d.Description,
		Tags:        d.Tags,
		Responses:   make(map[string]*openapi.Response),
	}

	for _, p := range d.PathParams {
		if d.ignored[p.Name] {
			continue
		}
		op.Parameters = append(op.Parameters, &openapi.Parameter{
			Name:        p.Name,
			In:          "path",
			Description: p.Description,
			Required:    true,
			Schema:      &openapi.Schema{Type: parameterType(p.Type)},
		})
	}
	for _, p := range d.QueryParams {
		op.Parameters = append(op.Parameters, &openapi.Parameter{
			Name:        p.Name,
			In:          "query",
			Description: p.Description,
			Required:    !p.Optional,
			Schema:      &openapi.Schema{Type: parameterType(p.Type)},
		})
	}

	switch {
	case d.Body != nil:
		schema, err := ext.converter.Convert(d.Body.Type)
		if err != nil {
			return err
		}
		content := make(map[string]*openapi.MediaType, len(d.Body.Mimetypes))
		for _, mime := range d.Body.Mimetypes {
			content[mime] = &openapi.MediaType{Schema: schema}
		}
		op.RequestBody = &openapi.RequestBody{
			Description: d.handler.doc.Params[d.Body.Name],
			Content:     content,
			Required:    true,
		}
		op.CodegenRequestBodyName = "body"
	case d.FileMimetype != "":
		op.RequestBody = &openapi.RequestBody{
			Content: map[string]*openapi.MediaType{
				d.FileMimetype: {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
			},
		}
	}

	for _, req := range d.Security {
		op.Security = append(op.Security, openapi.SecurityRequirement{req.Scheme: req.Scopes})
	}

	for t, codes := range d.Responses {
		for code, meta := range codes {
			resp := &openapi.Response{Description: meta.Description}
			if resp.Description == "" {
				resp.Description = t.Name()
			}
			if t == fileResponseType {
				mime := meta.Mimetype
				if mime == "" {
					mime = "application/octet-stream"
				}
				resp.Content = map[string]*openapi.MediaType{
					mime: {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
				}
			} else {
				schema, err := ext.converter.Convert(t)
				if err != nil {
					return err
				}
				resp.Content = map[string]*openapi.MediaType{
					"application/json": {Schema: schema},
				}
			}
			op.Responses[strconv.Itoa(code)] = resp
		}
	}

	d.operation = op
	return nil
}

func normalizeType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func parameterType(t reflect.Type) string {
	if normalizeType(t) == intType {
		return "integer"
	}
	return "string"
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
