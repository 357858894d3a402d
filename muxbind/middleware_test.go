package muxbind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/accord/contract"
)

type idEcho struct {
	RequestID string `json:"request_id"`
}

func newEchoIDBinder(t *testing.T, cfg *Config) *Binder {
	t.Helper()

	b := New(contract.NewExtension(), testConfig(cfg))
	h := contract.NewHandler(func(ctx context.Context) (idEcho, error) {
		return idEcho{RequestID: RequestIDFromContext(ctx)}, nil
	}, "ctx").Named("whoAmI")
	require.NoError(t, b.Get("/whoami", h))
	return b
}

func decodeIDEcho(t *testing.T, rec *httptest.ResponseRecorder) idEcho {
	t.Helper()

	var body idEcho
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := context.WithValue(context.Background(), requestIDKey{}, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestBinderAssignsRequestID(t *testing.T) {
	b := newEchoIDBinder(t, nil)

	rec := serve(b, http.MethodGet, "/whoami", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	assert.Equal(t, id, decodeIDEcho(t, rec).RequestID)

	second := serve(b, http.MethodGet, "/whoami", nil, "")
	assert.NotEqual(t, id, second.Header().Get("X-Request-ID"))
}

func TestBinderTrustedRequestID(t *testing.T) {
	t.Run("trusted header is reused", func(t *testing.T) {
		b := newEchoIDBinder(t, &Config{TrustRequestID: true})

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		b.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "abc-123", decodeIDEcho(t, rec).RequestID)
	})

	t.Run("untrusted header is replaced", func(t *testing.T) {
		b := newEchoIDBinder(t, nil)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		b.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		assert.NotEmpty(t, got)
		assert.NotEqual(t, "abc-123", got)
	})

	t.Run("custom header name", func(t *testing.T) {
		b := newEchoIDBinder(t, &Config{RequestIDHeader: "X-Trace-ID"})

		rec := serve(b, http.MethodGet, "/whoami", nil, "")
		assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
		assert.Empty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("custom generator", func(t *testing.T) {
		b := newEchoIDBinder(t, &Config{
			RequestIDFunc: func(*http.Request) string { return "fixed" },
		})

		rec := serve(b, http.MethodGet, "/whoami", nil, "")
		assert.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "fixed", decodeIDEcho(t, rec).RequestID)
	})
}

func TestBinderPanicRecovery(t *testing.T) {
	logs := &bytes.Buffer{}
	b := New(contract.NewExtension(), &Config{Logger: slog.New(slog.NewTextHandler(logs, nil))})
	h := contract.NewHandler(func(ctx context.Context) (contract.EmptyResponse, error) {
		panic("kaboom")
	}, "ctx").Named("explode")
	require.NoError(t, b.Get("/explode", h))

	rec := serve(b, http.MethodGet, "/explode", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())

	out := logs.String()
	assert.Contains(t, out, "panic while handling request")
	assert.Contains(t, out, "kaboom")
	assert.Contains(t, out, "request_id=")
	assert.Contains(t, out, "stack=")
}

func TestBinderPanicAbortHandler(t *testing.T) {
	b := New(contract.NewExtension(), testConfig(nil))
	h := contract.NewHandler(func(ctx context.Context) (contract.EmptyResponse, error) {
		panic(http.ErrAbortHandler)
	}, "ctx").Named("abort")
	require.NoError(t, b.Get("/abort", h))

	req := httptest.NewRequest(http.MethodGet, "/abort", nil)
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		b.ServeHTTP(httptest.NewRecorder(), req)
	})
}

func newFlakyBinder(t *testing.T, cfg *Config) *Binder {
	t.Helper()

	b := New(contract.NewExtension(), cfg)
	flaky := contract.NewHandler(func(ctx context.Context) (contract.EmptyResponse, error) {
		return contract.EmptyResponse{}, errors.New("db gone")
	}, "ctx").Named("flaky")
	require.NoError(t, b.Get("/flaky", flaky))

	picky := contract.NewHandler(func(ctx context.Context, limit int) (contract.EmptyResponse, error) {
		return contract.EmptyResponse{}, nil
	}, "ctx", "limit").Named("picky")
	require.NoError(t, b.Get("/picky", picky, contract.AcceptsQueryParams("limit")))
	return b
}

func TestBinderErrorLogging(t *testing.T) {
	t.Run("server faults are logged", func(t *testing.T) {
		logs := &bytes.Buffer{}
		b := newFlakyBinder(t, &Config{Logger: slog.New(slog.NewTextHandler(logs, nil))})

		rec := serve(b, http.MethodGet, "/flaky", nil, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", decodeError(t, rec).Message)
		assert.Contains(t, logs.String(), "request failed")
		assert.Contains(t, logs.String(), "db gone")
	})

	t.Run("client faults are not logged", func(t *testing.T) {
		logs := &bytes.Buffer{}
		b := newFlakyBinder(t, &Config{Logger: slog.New(slog.NewTextHandler(logs, nil))})

		rec := serve(b, http.MethodGet, "/picky", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, logs.String())
	})

	t.Run("debug mode logs rejections and attaches debug data", func(t *testing.T) {
		logs := &bytes.Buffer{}
		b := newFlakyBinder(t, &Config{
			Logger: slog.New(slog.NewTextHandler(logs, nil)),
			Debug:  true,
		})

		rec := serve(b, http.MethodGet, "/picky", nil, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, logs.String(), "request rejected")

		resp := decodeError(t, rec)
		assert.Equal(t, "Missing query parameter `limit`", resp.Message)
		require.NotNil(t, resp.DebugData)
		assert.Equal(t, "*contract.ClientError", resp.DebugData["exception_type"])
		assert.Equal(t, "Missing query parameter `limit`", resp.DebugData["exception_message"])
		assert.NotEmpty(t, resp.DebugData["traceback"])
		assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.DebugData["request_id"])
	})

	t.Run("debug mode exposes server fault messages", func(t *testing.T) {
		b := newFlakyBinder(t, testConfig(&Config{Debug: true}))

		rec := serve(b, http.MethodGet, "/flaky", nil, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		resp := decodeError(t, rec)
		assert.Equal(t, "db gone", resp.Message)
		assert.Equal(t, "*errors.errorString", resp.DebugData["exception_type"])
	})
}

func TestBinderUnmatchedErrors(t *testing.T) {
	newBareBinder := func(t *testing.T) *Binder {
		t.Helper()

		ext := contract.NewExtension()
		require.NoError(t, ext.UseDefaultErrorHandlers(false))
		b := New(ext, testConfig(nil))
		h := contract.NewHandler(func(ctx context.Context) (contract.EmptyResponse, error) {
			return contract.EmptyResponse{}, errors.New("db gone")
		}, "ctx").Named("flaky")
		require.NoError(t, b.Get("/fail", h))
		return b
	}

	t.Run("handler errors become a bare 500", func(t *testing.T) {
		b := newBareBinder(t)

		rec := serve(b, http.MethodGet, "/fail", nil, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error\n", rec.Body.String())
	})

	t.Run("protocol errors keep their status", func(t *testing.T) {
		b := newBareBinder(t)

		rec := serve(b, http.MethodGet, "/nope", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not Found\n", rec.Body.String())
	})
}
