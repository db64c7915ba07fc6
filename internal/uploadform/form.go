// Package uploadform submits document uploads to the document service and
// turns the answer into the message shown next to the upload form.
package uploadform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/docdesk/internal/backend"
)

// Messages shown after a submission.
const (
	MsgSuccess    = "File uploaded successfully!"
	MsgUnexpected = "An unexpected error occurred."
)

// Message classes.
const (
	ClassSuccess = "success"
	ClassError   = "error"
)

// Form is the content of an upload form: text fields and file inputs in
// document order.
type Form struct {
	Fields []backend.FormField
	Files  []backend.FormFile
}

// Value returns the first text field with the given name.
func (f *Form) Value(name string) string {
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld.Value
		}
	}
	return ""
}

// Reset clears the form to empty.
func (f *Form) Reset() {
	f.Fields = nil
	f.Files = nil
}

// Outcome is the message displayed after a submission.
type Outcome struct {
	Message string
	Class   string
	Reset   bool
}

// Uploader posts multipart uploads.
type Uploader interface {
	Upload(ctx context.Context, req backend.UploadRequest) (*backend.UploadResult, error)
}

// Handler submits upload forms.
type Handler struct {
	up     Uploader
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(up Uploader, logger *slog.Logger) *Handler {
	return &Handler{up: up, logger: logger}
}

// Submit posts the form. On a success status the form is reset; on an
// error status the server's message is echoed and the form is kept; when
// no usable answer arrives a generic message is shown. Nothing is retried.
func (h *Handler) Submit(ctx context.Context, form *Form) Outcome {
	res, err := h.up.Upload(ctx, backend.UploadRequest{Fields: form.Fields, Files: form.Files})
	if err != nil {
		h.logger.Error("upload failed", slog.String("error", err.Error()))
		return Outcome{Message: MsgUnexpected, Class: ClassError}
	}
	if !res.OK() {
		h.logger.Warn("upload rejected",
			slog.Int("status", res.StatusCode),
			slog.String("error", res.Error))
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		return Outcome{Message: "Error: " + msg, Class: ClassError}
	}

	form.Reset()
	return Outcome{Message: MsgSuccess, Class: ClassSuccess, Reset: true}
}

// ErrRejected is returned by UploadFiles when the service refused the upload.
var ErrRejected = errors.New("upload rejected")

// UploadFiles uploads a prepared form and requires both a success status and
// "success": true in the answer.
func (h *Handler) UploadFiles(ctx context.Context, form *Form) error {
	res, err := h.up.Upload(ctx, backend.UploadRequest{Fields: form.Fields, Files: form.Files})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, res.StatusCode, orUnknown(res.Error))
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrRejected, orUnknown(res.Error))
	}
	h.logger.Info("upload successful", slog.String("doc_id", form.Value("doc_id")))
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown error"
	}
	return s
}

// StaticFile returns a FormFile whose content is data.
func StaticFile(field, filename, contentType string, data []byte) backend.FormFile {
	return backend.FormFile{
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
