package muxbind

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/accord/contract"
)

// operationHandler wraps a descriptor into the handler mounted for its
// route. Failures anywhere in the request flow are routed through the error
// handler table.
func (b *Binder) operationHandler(d *contract.Descriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.serveOperation(w, r, d); err != nil {
			b.writeError(w, r, err)
		}
	}
}

func (b *Binder) serveOperation(w http.ResponseWriter, r *http.Request, d *contract.Descriptor) error {
	if err := b.enforceSecurity(r, d); err != nil {
		return err
	}
	args, err := b.buildArguments(r, d)
	if err != nil {
		return err
	}
	result, err := d.Call(args)
	if err != nil {
		return err
	}
	payload, code, mimetype, err := b.pipeline.Resolve(d, result)
	if err != nil {
		return err
	}
	return b.writeResult(w, r, payload, code, mimetype)
}

// enforceSecurity runs the enforcers behind the operation's security
// requirements in order. The first success authorizes the request; when all
// of them fail, the last error is returned. Operations without requirements
// are public.
func (b *Binder) enforceSecurity(r *http.Request, d *contract.Descriptor) error {
	var lastErr error
	for _, req := range d.Security {
		if err := b.enforcers[req.Scheme](r, req.Scopes); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// buildArguments assembles the handler's argument list: framework
// injections, the decoded request body, and coerced path and query
// parameters. Unbound slots stay zero, which the descriptor builder rules
// out for everything except optional query parameters.
func (b *Binder) buildArguments(r *http.Request, d *contract.Descriptor) ([]reflect.Value, error) {
	ft := d.Handler().Func().Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		args[i] = reflect.Zero(ft.In(i))
	}

	if d.CtxIndex >= 0 {
		args[d.CtxIndex] = reflect.ValueOf(r.Context())
	}
	if d.ReqIndex >= 0 {
		args[d.ReqIndex] = reflect.ValueOf(r)
	}

	if d.Body != nil {
		body, err := b.decodeBody(r, d.Body)
		if err != nil {
			return nil, err
		}
		args[d.Body.Index] = body
	}

	if err := bindPathParams(r, d, args); err != nil {
		return nil, err
	}
	if err := bindQueryParams(r, d, args); err != nil {
		return nil, err
	}
	return args, nil
}

// decodeBody loads the request body as a JSON-like primitive, validates it
// against the body type's schema, and decodes it into a value of that type.
// JSON and form bodies are understood; anything else is an unsupported media
// type.
func (b *Binder) decodeBody(r *http.Request, body *contract.BodyParam) (reflect.Value, error) {
	base := body.Type
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	var primitive any
	var raw []byte

	contentType := r.Header.Get("Content-Type")
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := json.Unmarshal(data, &primitive); err != nil {
			return reflect.Value{}, contract.NewClientError("The request body must be a JSON object")
		}
		if _, isString := primitive.(string); isString {
			return reflect.Value{}, contract.NewClientError("The request body must be a JSON object")
		}
		raw = data
	case "application/x-www-form-urlencoded", "multipart/form-data":
		form, err := formValues(r, mediaType)
		if err != nil {
			return reflect.Value{}, contract.NewClientError("The request body could not be parsed as a form")
		}
		primitive = formPrimitive(form, base)
	default:
		return reflect.Value{}, &contract.UnsupportedMediaTypeError{ContentType: contentType}
	}

	if fieldErrors := b.pipeline.Validator.ValidateAs(body.Type, primitive); fieldErrors != nil {
		return reflect.Value{}, &contract.InvalidFieldsError{Errors: fieldErrors}
	}

	if raw == nil {
		data, err := json.Marshal(primitive)
		if err != nil {
			return reflect.Value{}, err
		}
		raw = data
	}
	target := reflect.New(base)
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return reflect.Value{}, contract.NewClientError("%v", err)
	}

	if body.Type.Kind() == reflect.Pointer {
		return target, nil
	}
	return target.Elem(), nil
}

func formValues(r *http.Request, mediaType string) (url.Values, error) {
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

// formPrimitive converts submitted form values into a JSON-like map. Form
// fields arrive as strings, so values destined for numeric or boolean struct
// fields are coerced first; values that do not parse stay strings and fail
// schema validation with a type message instead of a parse panic.
func formPrimitive(values url.Values, t reflect.Type) map[string]any {
	kinds := make(map[string]reflect.Kind, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		kinds[fieldKey(field)] = ft.Kind()
	}

	out := make(map[string]any, len(values))
	for name := range values {
		value := values.Get(name)
		switch kinds[name] {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				out[name] = n
				continue
			}
		case reflect.Float32, reflect.Float64:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				out[name] = f
				continue
			}
		case reflect.Bool:
			if v, err := strconv.ParseBool(value); err == nil {
				out[name] = v
				continue
			}
		}
		out[name] = value
	}
	return out
}

// fieldKey returns the name a struct field carries on the wire: the json
// tag when present, the Go name otherwise.
func fieldKey(field reflect.StructField) string {
	tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if tag != "" && tag != "-" {
		return tag
	}
	return field.Name
}

func bindPathParams(r *http.Request, d *contract.Descriptor, args []reflect.Value) error {
	vars := mux.Vars(r)
	for _, p := range d.PathParams {
		if p.Index < 0 {
			continue
		}
		raw, ok := vars[p.Name]
		if !ok {
			continue
		}
		value, err := coerceParam(raw, p.Type, p.Name, "path")
		if err != nil {
			return err
		}
		args[p.Index] = value
	}
	return nil
}

func bindQueryParams(r *http.Request, d *contract.Descriptor, args []reflect.Value) error {
	query := r.URL.Query()
	for _, p := range d.QueryParams {
		if !query.Has(p.Name) {
			if p.Optional {
				continue
			}
			return contract.NewClientError("Missing query parameter `%s`", p.Name)
		}
		value, err := coerceParam(query.Get(p.Name), p.Type, p.Name, "query")
		if err != nil {
			return err
		}
		args[p.Index] = value
	}
	return nil
}

// coerceParam converts a raw parameter string into the declared type. The
// descriptor builder guarantees the type is string, int, or a pointer to
// either.
func coerceParam(raw string, t reflect.Type, name, in string) (reflect.Value, error) {
	base := t
	pointer := t.Kind() == reflect.Pointer
	if pointer {
		base = t.Elem()
	}

	var value reflect.Value
	if base.Kind() == reflect.Int {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return reflect.Value{}, contract.NewClientError("The value of %s parameter `%s` must be an integer", in, name)
		}
		value = reflect.ValueOf(n)
	} else {
		value = reflect.ValueOf(raw)
	}

	if pointer {
		p := reflect.New(base)
		p.Elem().Set(value)
		return p, nil
	}
	return value, nil
}
