package uploadform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/docdesk/internal/apperr"
	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/models"
)

// DefaultChangeDescription is sent when the metadata has no change_description.
const DefaultChangeDescription = "Uploaded via client script"

// FileSet names the files of one upload on local disk.
type FileSet struct {
	PDFPath      string
	MetadataPath string
	HTMLPaths    []string
}

// Validate checks that every referenced file exists.
func (s *FileSet) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.PDFPath, validation.Required, validation.By(fileExists)),
		validation.Field(&s.MetadataPath, validation.Required, validation.By(fileExists)),
		validation.Field(&s.HTMLPaths, validation.Each(validation.By(fileExists))),
	)
}

func fileExists(value interface{}) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return fmt.Errorf("file not found at %s", p)
	}
	return nil
}

type metadataHeader struct {
	DocID             string
	ChangeDescription string
}

func (m metadataHeader) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.DocID, validation.Required.Error("metadata must contain a 'doc_id' field")),
	)
}

// FromFiles builds the upload form for a PDF, its metadata JSON file and
// optional HTML renderings. The metadata is sent verbatim; doc_id and
// change_description are lifted out of it into their own fields.
func FromFiles(set FileSet) (*Form, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}

	raw, err := os.ReadFile(set.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	hdr, compact, err := parseMetadata(raw)
	if err != nil {
		return nil, err
	}

	form := &Form{
		Fields: []backend.FormField{
			{Name: "doc_id", Value: hdr.DocID},
			{Name: "metadata", Value: compact},
			{Name: "change_description", Value: hdr.ChangeDescription},
		},
		Files: []backend.FormFile{diskFile("file", set.PDFPath, "application/pdf")},
	}
	for _, p := range set.HTMLPaths {
		form.Files = append(form.Files, diskFile("html_files", p, "text/html"))
	}
	return form, nil
}

func parseMetadata(raw []byte) (metadataHeader, string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return metadataHeader{}, "", fmt.Errorf("%w: metadata is not a JSON object: %w", apperr.ErrInvalid, err)
	}

	hdr := metadataHeader{ChangeDescription: DefaultChangeDescription}
	if v, ok := obj["doc_id"]; ok {
		if truthy(v) {
			hdr.DocID = models.RawText(v)
		}
	}
	if v, ok := obj["change_description"]; ok {
		var cd string
		if json.Unmarshal(v, &cd) == nil {
			hdr.ChangeDescription = cd
		}
	}
	if err := hdr.Validate(); err != nil {
		return metadataHeader{}, "", fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return metadataHeader{}, "", fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}
	return hdr, buf.String(), nil
}

// truthy reports whether a metadata value counts as present. Empty strings,
// zero, false, null and empty containers do not.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func diskFile(field, path, contentType string) backend.FormFile {
	return backend.FormFile{
		Field:       field,
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ReadMultipart reads a submitted multipart form into memory, keeping the
// order of its parts. File inputs left empty are kept as empty file parts.
func ReadMultipart(mr *multipart.Reader) (*Form, error) {
	form := &Form{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", part.FormName(), err)
		}

		if filename, ok := partFilename(part); ok {
			form.Files = append(form.Files,
				StaticFile(part.FormName(), filename, part.Header.Get("Content-Type"), data))
			continue
		}
		form.Fields = append(form.Fields, backend.FormField{Name: part.FormName(), Value: string(data)})
	}
}

func partFilename(p *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	if !ok || name == "" {
		return "", ok
	}
	return filepath.Base(name), true
}
