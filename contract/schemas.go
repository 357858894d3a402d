package contract

import (
	"io"
	"time"
)

// ErrorResponse is the body of every error produced by the error registry
// and of raises-derived responses in the generated document.
type ErrorResponse struct {
	Message string `json:"message"`

	// DebugData carries the formatted exception in debug mode.
	DebugData map[string]any `json:"debug_data,omitempty"`
}

// EmptyResponse is an empty object body for operations with nothing to
// return. Handlers without a response return value respond with it
// implicitly; declare it with RespondsWith so the response table accepts it.
type EmptyResponse struct{}

// FileResponse instructs the adapter to stream a file instead of encoding a
// JSON body. In the generated document the response renders as a binary
// string under the declared mimetype. The pipeline never validates file
// responses against a schema.
type FileResponse struct {
	// Path names a file on disk to serve. It takes precedence over Reader.
	Path string

	// Reader supplies the body when Path is empty. It is streamed in chunks
	// and closed afterwards when it implements io.Closer.
	Reader io.Reader

	// Filename suggests a client-side file name. It is required when
	// AsAttachment is set and is used to guess the content type when
	// neither the response declaration nor Mimetype provide one.
	Filename string

	// AsAttachment adds a Content-Disposition: attachment header.
	AsAttachment bool

	// Mimetype sets the Content-Type header. A mimetype declared on the
	// response takes precedence.
	Mimetype string

	// LastModified is sent as the Last-Modified header when non-zero.
	LastModified time.Time
}
