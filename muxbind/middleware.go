package muxbind

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/vitalvas/accord/contract"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID assigned by the binder.
// Returns an empty string if no ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// assignRequestID generates or propagates a request ID. The ID is set on
// both the request (for downstream handlers, via header and context) and the
// response (for the caller).
func (b *Binder) assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if b.cfg.TrustRequestID {
			id = r.Header.Get(b.cfg.RequestIDHeader)
		}

		if id == "" {
			id = b.cfg.RequestIDFunc(r)
		}

		if id != "" {
			r.Header.Set(b.cfg.RequestIDHeader, id)
			w.Header().Set(b.cfg.RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
		}

		next.ServeHTTP(w, r)
	})
}

// recoverPanics recovers from panics in downstream handlers, logs the
// recovered value with the stack, and maps it through the error handler
// table. Values no handler matches produce a plain text response: HTTP
// errors keep their status code, everything else becomes a bare 500.
func (b *Binder) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			b.logger.Error("panic while handling request",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"stack", string(debug.Stack()),
			)

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			resp, code, matched := b.ext.ResponseFor(err)
			if !matched {
				var httpErr *contract.HTTPError
				if errors.As(err, &httpErr) {
					http.Error(w, httpErr.Message, httpErr.Code)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			writeJSON(w, code, "", resp)
		}()

		next.ServeHTTP(w, r)
	})
}

// newRequestID is the default request ID generator, a UUID v4 per request.
func newRequestID(_ *http.Request) string {
	return uuid.New().String()
}
