package uploadform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docdesk/internal/apperr"
	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(t *testing.T) (*Handler, *testutil.Backend) {
	t.Helper()
	fb := testutil.NewBackend(t)
	c, err := backend.New(fb.URL())
	require.NoError(t, err)
	return NewHandler(c, discardLogger()), fb
}

func sampleForm() *Form {
	return &Form{
		Fields: []backend.FormField{
			{Name: "doc_id", Value: "DOC-1"},
			{Name: "metadata", Value: `{"title":"Plan"}`},
			{Name: "change_description", Value: "first"},
		},
		Files: []backend.FormFile{StaticFile("file", "plan.pdf", "application/pdf", []byte("%PDF-1.4"))},
	}
}

func TestSubmit_SuccessResetsForm(t *testing.T) {
	h, fb := newHandler(t)
	form := sampleForm()

	out := h.Submit(context.Background(), form)

	assert.Equal(t, Outcome{Message: "File uploaded successfully!", Class: "success", Reset: true}, out)
	assert.Empty(t, form.Fields)
	assert.Empty(t, form.Files)

	ups := fb.Uploads()
	require.Len(t, ups, 1)
	assert.Equal(t, "DOC-1", ups[0].Fields["doc_id"])
	assert.Equal(t, "%PDF-1.4", ups[0].Bodies["plan.pdf"])
}

func TestSubmit_ErrorStatusKeepsForm(t *testing.T) {
	h, fb := newHandler(t)
	fb.SetUploadResponse(http.StatusBadRequest, "bad file")
	form := sampleForm()

	out := h.Submit(context.Background(), form)

	assert.Equal(t, "Error: bad file", out.Message)
	assert.Equal(t, "error", out.Class)
	assert.False(t, out.Reset)
	assert.Equal(t, "DOC-1", form.Value("doc_id"))
	assert.Len(t, form.Files, 1)
}

func TestSubmit_ErrorStatusWithoutMessage(t *testing.T) {
	h, fb := newHandler(t)
	fb.SetUploadResponse(http.StatusInternalServerError, "")

	out := h.Submit(context.Background(), sampleForm())

	assert.Equal(t, "Error: unknown error", out.Message)
	assert.False(t, out.Reset)
}

func TestSubmit_TransportFailure(t *testing.T) {
	c, err := backend.New("http://127.0.0.1:1")
	require.NoError(t, err)
	h := NewHandler(c, discardLogger())

	out := h.Submit(context.Background(), sampleForm())
	assert.Equal(t, Outcome{Message: "An unexpected error occurred.", Class: "error"}, out)
}

func TestSubmit_UndecodableBody(t *testing.T) {
	h, fb := newHandler(t)
	fb.SetBroken(true)

	out := h.Submit(context.Background(), sampleForm())
	assert.Equal(t, "An unexpected error occurred.", out.Message)
}

func TestFromFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "report.pdf", "%PDF")
	meta := testutil.WriteFile(t, dir, "report.json", `{
		"doc_id": "R-7",
		"title": "Report",
		"change_description": "initial import"
	}`)
	html := testutil.WriteFile(t, dir, "report.html", "<html></html>")

	form, err := FromFiles(FileSet{PDFPath: pdf, MetadataPath: meta, HTMLPaths: []string{html}})
	require.NoError(t, err)

	assert.Equal(t, "R-7", form.Value("doc_id"))
	assert.Equal(t, "initial import", form.Value("change_description"))
	assert.Equal(t, `{"doc_id":"R-7","title":"Report","change_description":"initial import"}`, form.Value("metadata"))
	require.Len(t, form.Files, 2)
	assert.Equal(t, "file", form.Files[0].Field)
	assert.Equal(t, "application/pdf", form.Files[0].ContentType)
	assert.Equal(t, "html_files", form.Files[1].Field)
	assert.Equal(t, "report.html", form.Files[1].Filename)
}

func TestFromFiles_DefaultChangeDescription(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "a.pdf", "%PDF")
	meta := testutil.WriteFile(t, dir, "a.json", `{"doc_id": "A"}`)

	form, err := FromFiles(FileSet{PDFPath: pdf, MetadataPath: meta})
	require.NoError(t, err)
	assert.Equal(t, DefaultChangeDescription, form.Value("change_description"))
}

func TestFromFiles_NonStringDocID(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "a.pdf", "%PDF")

	tests := []struct {
		meta string
		want string
	}{
		{`{"doc_id": 42, "title": "T"}`, "42"},
		{`{"doc_id": 4.5}`, "4.5"},
		{`{"doc_id": true}`, "true"},
		{`{"doc_id": ["x"]}`, `["x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.meta, func(t *testing.T) {
			meta := testutil.WriteFile(t, dir, "a.json", tt.meta)
			form, err := FromFiles(FileSet{PDFPath: pdf, MetadataPath: meta})
			require.NoError(t, err)
			assert.Equal(t, tt.want, form.Value("doc_id"))
		})
	}
}

func TestFromFiles_FalsyDocIDIsMissing(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "a.pdf", "%PDF")

	for _, v := range []string{`""`, `0`, `false`, `null`, `[]`, `{}`} {
		t.Run(v, func(t *testing.T) {
			meta := testutil.WriteFile(t, dir, "a.json", `{"doc_id": `+v+`}`)
			_, err := FromFiles(FileSet{PDFPath: pdf, MetadataPath: meta})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
			assert.Contains(t, err.Error(), "doc_id")
		})
	}
}

func TestFromFiles_Validation(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "a.pdf", "%PDF")
	noID := testutil.WriteFile(t, dir, "noid.json", `{"title": "x"}`)
	broken := testutil.WriteFile(t, dir, "broken.json", `{"doc_id": `)

	tests := []struct {
		name string
		set  FileSet
		want string
	}{
		{"missing pdf", FileSet{PDFPath: dir + "/nope.pdf", MetadataPath: noID}, "file not found"},
		{"missing html", FileSet{PDFPath: pdf, MetadataPath: noID, HTMLPaths: []string{dir + "/x.html"}}, "file not found"},
		{"no doc_id", FileSet{PDFPath: pdf, MetadataPath: noID}, "doc_id"},
		{"invalid json", FileSet{PDFPath: pdf, MetadataPath: broken}, "not a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFiles(tt.set)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUploadFiles(t *testing.T) {
	h, fb := newHandler(t)
	require.NoError(t, h.UploadFiles(context.Background(), sampleForm()))

	fb.SetUploadResponse(http.StatusBadRequest, "File type not allowed")
	err := h.UploadFiles(context.Background(), sampleForm())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "File type not allowed")
}

func TestReadMultipart_KeepsOrderAndFiles(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("doc_id", "A"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="a.pdf"`)
	h.Set("Content-Type", "application/pdf")
	p, err := w.CreatePart(h)
	require.NoError(t, err)
	_, _ = p.Write([]byte("%PDF"))

	empty := make(textproto.MIMEHeader)
	empty.Set("Content-Disposition", `form-data; name="html_files"; filename=""`)
	_, err = w.CreatePart(empty)
	require.NoError(t, err)

	require.NoError(t, w.WriteField("metadata", "{}"))
	require.NoError(t, w.Close())

	form, err := ReadMultipart(multipart.NewReader(&buf, w.Boundary()))
	require.NoError(t, err)

	assert.Equal(t, []backend.FormField{{Name: "doc_id", Value: "A"}, {Name: "metadata", Value: "{}"}}, form.Fields)
	require.Len(t, form.Files, 2)
	assert.Equal(t, "a.pdf", form.Files[0].Filename)
	assert.Equal(t, "application/pdf", form.Files[0].ContentType)
	assert.Equal(t, "", form.Files[1].Filename)
}
