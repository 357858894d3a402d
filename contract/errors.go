package contract

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"strings"
)

// ClientFault marks errors attributable to the contents of a request.
// The default error handlers map the family to 400-class responses and
// echo the error message to the caller.
type ClientFault interface {
	error
	ClientFault()
}

// ServerFault marks errors raised by the server while handling a valid
// request, including contract violations detected in handler return values.
// The default error handlers map the family to 500-class responses.
type ServerFault interface {
	error
	ServerFault()
}

// ClientError is a generic request error with a caller-visible message.
type ClientError struct {
	Message string
}

// NewClientError builds a ClientError from a format string.
func NewClientError(format string, args ...any) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

func (e *ClientError) Error() string { return e.Message }

func (*ClientError) ClientFault() {}

// UnsupportedMediaTypeError is returned when a request supplies a body of a
// content type the endpoint cannot parse. The default handlers map it to
// 415 rather than the generic 400.
type UnsupportedMediaTypeError struct {
	ContentType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	if e.ContentType == "" {
		return "unsupported media type"
	}
	return fmt.Sprintf("unsupported media type `%s`", e.ContentType)
}

func (*UnsupportedMediaTypeError) ClientFault() {}

// InvalidFieldsError reports request body fields that failed validation.
// Errors maps field names to the validation messages for that field.
type InvalidFieldsError struct {
	Errors map[string][]string
}

func (e *InvalidFieldsError) Error() string {
	return fmt.Sprintf("invalid input: `%v`", e.Errors)
}

func (*InvalidFieldsError) ClientFault() {}

// ServerError is a generic error raised by the server.
type ServerError struct {
	Message string
}

// NewServerError builds a ServerError from a format string.
func NewServerError(format string, args ...any) *ServerError {
	return &ServerError{Message: fmt.Sprintf(format, args...)}
}

func (e *ServerError) Error() string { return e.Message }

func (*ServerError) ServerFault() {}

// UnexpectedResponseError is returned by the response pipeline when a
// handler returns a value of a type that was never declared for the
// operation, or an explicit status code that was not registered for the
// type. Code is zero in the former case.
type UnexpectedResponseError struct {
	Type reflect.Type
	Code int
}

func (e *UnexpectedResponseError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("unexpected response class: `%s` (status code %d)", e.Type, e.Code)
	}
	return fmt.Sprintf("unexpected response class: `%s`", e.Type)
}

func (*UnexpectedResponseError) ServerFault() {}

// InvalidResponseError is returned by the response pipeline when a handler
// returns a value that fails its own declared schema, or when the intended
// status code cannot be determined.
type InvalidResponseError struct {
	Errors map[string][]string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response content: `%v`", e.Errors)
}

func (*InvalidResponseError) ServerFault() {}

// HTTPError carries an explicit HTTP status code. Adapters synthesize it for
// protocol-level failures such as 404 and 405, and applications may return
// it to respond with an arbitrary status.
type HTTPError struct {
	Code    int
	Message string
}

// NewHTTPError builds an HTTPError, defaulting the message to the standard
// status text when empty.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string { return e.Message }

// ConfigError reports incorrect use of the extension, such as configuration
// changes after it has been bound to an adapter.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// BuildError wraps an error encountered while building an operation
// descriptor, naming the failing operation.
type BuildError struct {
	Operation string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building operation `%s`: %v", e.Operation, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// FormatException renders an error in the shape carried by the debug_data
// field of error responses: the dynamic type, the message, and the stack of
// the calling goroutine.
func FormatException(err error) map[string]any {
	stack := strings.Split(strings.TrimRight(string(debug.Stack()), "\n"), "\n")
	return map[string]any{
		"exception_type":    fmt.Sprintf("%T", err),
		"exception_message": err.Error(),
		"traceback":         stack,
	}
}
