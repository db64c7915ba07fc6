package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/starford/docdesk/internal/apperr"
)

// FormField is a plain text field of a multipart upload.
type FormField struct {
	Name  string
	Value string
}

// FormFile is a file part of a multipart upload. Open is called once while
// the body is being encoded.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadRequest is the payload of POST /upload.
type UploadRequest struct {
	Fields []FormField
	Files  []FormFile
}

// UploadResult is the decoded answer of POST /upload.
type UploadResult struct {
	StatusCode int
	Success    bool
	Error      string
}

// OK reports whether the service answered with a success status.
func (r *UploadResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload posts the request as multipart/form-data. A non-nil error means no
// usable answer was received; HTTP failures are reported in UploadResult.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*UploadResult, error) {
	var buf bytes.Buffer
	contentType, err := encodeMultipart(&buf, up)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil, "upload"), &buf)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: POST /upload: %w: %w", apperr.ErrTransport, err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("backend: POST /upload: %w: %w", apperr.ErrDecode, err)
	}
	return &UploadResult{
		StatusCode: resp.StatusCode,
		Success:    body.Success,
		Error:      body.Error,
	}, nil
}

func encodeMultipart(buf *bytes.Buffer, up UploadRequest) (string, error) {
	w := multipart.NewWriter(buf)

	for _, f := range up.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return "", fmt.Errorf("backend: write field %s: %w", f.Name, err)
		}
	}

	for _, f := range up.Files {
		if err := writeFile(w, f); err != nil {
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("backend: close multipart: %w", err)
	}
	return w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, f FormFile) error {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Filename)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("backend: create part %s: %w", f.Field, err)
	}
	if f.Open == nil {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("backend: open %s: %w", f.Filename, err)
	}
	defer rc.Close()
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("backend: copy %s: %w", f.Filename, err)
	}
	return nil
}
