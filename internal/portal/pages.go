package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/starford/docdesk/internal/docbrowser"
	"github.com/starford/docdesk/internal/models"
	"github.com/starford/docdesk/internal/uploadform"
	"github.com/starford/docdesk/internal/voteview"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	pageDocuments = "documents"
	pageConfirm   = "confirm"
	pageUpload    = "upload"
	pageVotes     = "votes"
)

type pages map[string]*template.Template

func loadPages() (pages, error) {
	out := make(pages)
	for _, name := range []string{pageDocuments, pageConfirm, pageUpload, pageVotes} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (p pages) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := p[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

type documentsPage struct {
	docbrowser.Table
	Notices        []string
	Open           []string
	ToggleLabel    string
	VersionHeaders []string
	VoteTypes      []models.VoteType
}

func newDocumentsPage(t docbrowser.Table, open, notices []string) documentsPage {
	return documentsPage{
		Table:          t,
		Notices:        notices,
		Open:           open,
		ToggleLabel:    docbrowser.ToggleLabel,
		VersionHeaders: docbrowser.VersionHeaders,
		VoteTypes:      []models.VoteType{models.VoteGood, models.VoteBad},
	}
}

// ToggleHref links to the same listing with docID flipped in the open set.
func (p documentsPage) ToggleHref(docID string) string {
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	for _, id := range toggled(p.Open, docID) {
		v.Add("open", id)
	}
	return withQuery("/", v)
}

// DeleteHref links to the confirmation page of one version.
func (p documentsPage) DeleteHref(docID string, version int) string {
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	return withQuery(deletePath(docID, version), v)
}

type confirmPage struct {
	Prompt string
	Action string
	Query  string
}

type uploadPage struct {
	Outcome           *uploadform.Outcome
	DocID             string
	Metadata          string
	ChangeDescription string
}

func newUploadPage(form *uploadform.Form, out *uploadform.Outcome) uploadPage {
	p := uploadPage{Outcome: out}
	if form != nil {
		p.DocID = form.Value("doc_id")
		p.Metadata = form.Value("metadata")
		p.ChangeDescription = form.Value("change_description")
	}
	return p
}

type votesPage struct {
	Table         voteview.Table
	Headers       []string
	DetailHeaders []string
	Open          []string
}

// ToggleHref links to the results with the group flipped in the open set.
func (p votesPage) ToggleHref(key string) string {
	v := url.Values{}
	for _, k := range toggled(p.Open, key) {
		v.Add("open", k)
	}
	return withQuery("/votes", v)
}

// toggled returns set with key removed when present and appended otherwise.
func toggled(set []string, key string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, s := range set {
		if s == key {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, key)
	}
	return out
}

func deletePath(docID string, version int) string {
	return "/documents/" + url.PathEscape(docID) + "/versions/" + strconv.Itoa(version) + "/delete"
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}
