package contract

import (
	"net/http"
	"reflect"
)

// Result is a handler response variant: a payload plus an optional explicit
// status code. Handlers whose first return value is Result pick among the
// operation's registered responses at run time:
//
//	func deleteUser(ctx context.Context, id string) (contract.Result, error) {
//	    if !found {
//	        return contract.Respond(&NotFound{}).Status(404), nil
//	    }
//	    return contract.Respond(contract.EmptyResponse{}), nil
//	}
//
// Handlers with a fixed response type have their return value lifted into a
// Result with no explicit code.
type Result struct {
	payload any
	code    int
}

// Respond wraps payload in a Result with no explicit status code; the
// pipeline resolves the code from the operation's response table.
func Respond(payload any) Result {
	return Result{payload: payload}
}

// Status returns a copy of the result with an explicit status code.
func (r Result) Status(code int) Result {
	r.code = code
	return r
}

// Payload returns the wrapped response value.
func (r Result) Payload() any { return r.payload }

// Code returns the explicit status code and whether one was set.
func (r Result) Code() (int, bool) { return r.code, r.code != 0 }

// Pipeline resolves handler results against an operation's response table
// and validates payloads against their registered schemas.
//
// IsRaw lets the adapter exempt framework-native payloads from resolution
// entirely; such values pass through unvalidated. Validator may be nil, in
// which case payloads are not schema-checked.
type Pipeline struct {
	IsRaw     func(payload any) bool
	Validator *Validator
}

// Resolve determines the body, status code, and mimetype for a handler
// result.
//
// The payload's type (pointer-normalized) must appear in the descriptor's
// response table. Without an explicit code the type must be registered
// under exactly one code; an explicit code must be one the type is
// registered under. Payloads other than *FileResponse are validated against
// their registered schema.
func (p *Pipeline) Resolve(d *Descriptor, r Result) (any, int, string, error) {
	payload := r.payload
	code, hasCode := r.Code()

	if p.IsRaw != nil && p.IsRaw(payload) {
		if !hasCode {
			code = http.StatusOK
		}
		return payload, code, "", nil
	}

	t := normalizeType(reflect.TypeOf(payload))
	codes, ok := d.Responses[t]
	if !ok {
		return nil, 0, "", &UnexpectedResponseError{Type: reflect.TypeOf(payload)}
	}

	if !hasCode {
		if len(codes) > 1 {
			return nil, 0, "", &InvalidResponseError{
				Errors: map[string][]string{"status_code": {"Missing status code"}},
			}
		}
		for c := range codes {
			code = c
		}
	}

	meta, ok := codes[code]
	if !ok {
		return nil, 0, "", &UnexpectedResponseError{Type: reflect.TypeOf(payload), Code: code}
	}

	if p.Validator != nil && t != fileResponseType {
		if fieldErrors := p.Validator.ValidatePayload(payload); fieldErrors != nil {
			return nil, 0, "", &InvalidResponseError{Errors: fieldErrors}
		}
	}

	return payload, code, meta.Mimetype, nil
}
