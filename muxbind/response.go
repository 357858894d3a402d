package muxbind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vitalvas/accord/contract"
)

// isRawPayload exempts framework-native payloads from response resolution: a
// handler may return any http.Handler to take over the response entirely.
func isRawPayload(payload any) bool {
	_, ok := payload.(http.Handler)
	return ok
}

// writeResult materializes a resolved response: raw handlers are served
// as-is, file responses are streamed, and everything else is encoded as
// JSON under the resolved status code and content type.
func (b *Binder) writeResult(w http.ResponseWriter, r *http.Request, payload any, code int, mimetype string) error {
	switch v := payload.(type) {
	case http.Handler:
		v.ServeHTTP(w, r)
		return nil
	case *contract.FileResponse:
		return b.writeFile(w, r, v, code, mimetype)
	case contract.FileResponse:
		return b.writeFile(w, r, &v, code, mimetype)
	}
	return writeJSON(w, code, mimetype, payload)
}

// writeJSON encodes v into a buffer and writes it under the given status
// code, so encoding failures can still be turned into an error response.
// An empty contentType means application/json.
func writeJSON(w http.ResponseWriter, code int, contentType string, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}

	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	w.Write(buf.Bytes())
	return nil
}

// writeFile streams a file response. The Content-Type precedence is the
// mimetype declared on the response, then FileResponse.Mimetype, then a
// guess from the filename. Path-backed responses are served from disk with
// range support; reader-backed responses are streamed and closed when the
// reader implements io.Closer.
func (b *Binder) writeFile(w http.ResponseWriter, r *http.Request, f *contract.FileResponse, code int, mimetype string) error {
	if f.AsAttachment {
		if f.Filename == "" {
			return contract.NewServerError("Missing attachment filename")
		}
		if strings.Contains(f.Filename, ",") {
			return contract.NewServerError("Filename should not contain commas")
		}
	}

	h := w.Header()
	switch {
	case mimetype != "":
		h.Set("Content-Type", mimetype)
	case f.Mimetype != "":
		h.Set("Content-Type", f.Mimetype)
	case f.Filename != "":
		if guessed := mime.TypeByExtension(filepath.Ext(f.Filename)); guessed != "" {
			h.Set("Content-Type", guessed)
		}
	}
	if !f.LastModified.IsZero() {
		h.Set("Last-Modified", f.LastModified.UTC().Format(http.TimeFormat))
	}
	if f.AsAttachment {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	}

	if f.Path != "" {
		return b.serveFilePath(w, r, f, code)
	}

	if f.Reader == nil {
		return contract.NewServerError("file response carries neither a path nor a reader")
	}
	if closer, ok := f.Reader.(io.Closer); ok {
		defer closer.Close()
	}
	w.WriteHeader(code)
	if _, err := io.Copy(w, f.Reader); err != nil {
		b.logger.Warn("streaming file response failed", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
	}
	return nil
}

// serveFilePath serves a path-backed file response. Responses with a plain
// 200 go through http.ServeContent for range and conditional request
// support; other status codes are written directly.
func (b *Binder) serveFilePath(w http.ResponseWriter, r *http.Request, f *contract.FileResponse, code int) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	if code == http.StatusOK {
		http.ServeContent(w, r, f.Path, f.LastModified, file)
		return nil
	}

	if st, err := file.Stat(); err == nil && st.Mode().IsRegular() {
		w.Header().Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	}
	w.WriteHeader(code)
	if _, err := io.Copy(w, file); err != nil {
		b.logger.Warn("streaming file response failed", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
	}
	return nil
}

// writeError routes err through the error handler table and writes the
// mapped response. Server faults are logged; client faults are logged only
// in debug mode. Errors no handler matches, possible only with the default
// handlers disabled, panic so the recovery middleware and any outer
// middleware see them.
func (b *Binder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp, code, ok := b.ext.ResponseFor(err)
	if !ok {
		panic(err)
	}

	id := RequestIDFromContext(r.Context())
	if code >= http.StatusInternalServerError {
		b.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", id)
	} else if b.ext.Debug() {
		b.logger.Warn("request rejected", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", id)
	}

	if resp.DebugData != nil && id != "" {
		resp.DebugData["request_id"] = id
	}
	if encodeErr := writeJSON(w, code, "", resp); encodeErr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// protocolError responds to requests that match no route or method with the
// given status through the error handler table.
func (b *Binder) protocolError(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.writeError(w, r, contract.NewHTTPError(code, ""))
	})
}
