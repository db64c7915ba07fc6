// Package testutil provides an in-memory fake of the document service for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docdesk/internal/models"
)

// Upload is one multipart request received by the fake service.
type Upload struct {
	Fields map[string]string
	Files  map[string][]string // field -> filenames
	Bodies map[string]string   // filename -> content
}

// Backend is a fake document service backed by an httptest.Server.
type Backend struct {
	mu        sync.Mutex
	docs      []models.Document
	votes     []models.Vote
	requests  []string
	uploads   []Upload
	broken    bool
	upStatus  int
	upError   string
	server    *httptest.Server
	voterInfo string
}

// NewBackend starts a fake service that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{voterInfo: "127.0.0.1"}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/documents", b.listDocuments)
	r.Get("/search", b.search)
	r.Delete("/documents/{docID}/versions/{version}", b.deleteVersion)
	r.Post("/vote", b.vote)
	r.Get("/vote_results", b.voteResults)
	r.Post("/upload", b.upload)
	r.Get("/uploads/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "file:"+chi.URLParam(r, "name"))
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of the fake service.
func (b *Backend) URL() string {
	return b.server.URL
}

// SetDocuments replaces the stored documents.
func (b *Backend) SetDocuments(docs ...models.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = docs
}

// Documents returns the stored documents.
func (b *Backend) Documents() []models.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Document(nil), b.docs...)
}

// SetVotes replaces the stored votes.
func (b *Backend) SetVotes(votes ...models.Vote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.votes = votes
}

// Votes returns the stored votes.
func (b *Backend) Votes() []models.Vote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Vote(nil), b.votes...)
}

// SetBroken makes every API endpoint answer 500 with a non-JSON body.
func (b *Backend) SetBroken(broken bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = broken
}

// SetUploadResponse forces the status and error returned by POST /upload.
func (b *Backend) SetUploadResponse(status int, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upStatus = status
	b.upError = errMsg
}

// Requests returns "METHOD /path?query" for every request received.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// Uploads returns every upload received.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		line := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			line += "?" + r.URL.RawQuery
		}
		b.mu.Lock()
		b.requests = append(b.requests, line)
		broken := b.broken && !strings.HasPrefix(r.URL.Path, "/uploads/")
		b.mu.Unlock()

		if broken {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>internal error</html>")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) listDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.Documents())
}

// search mirrors the service: a document matches when its metadata or any
// change description contains the query.
func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	out := []models.Document{}
	if q == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}
	for _, d := range b.Documents() {
		if documentMatches(d, q) {
			out = append(out, d)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func documentMatches(d models.Document, q string) bool {
	meta, _ := json.Marshal(d.Metadata)
	if strings.Contains(string(meta), q) {
		return true
	}
	for _, v := range d.Versions {
		if strings.Contains(v.ChangeDescription, q) {
			return true
		}
	}
	return false
}

func (b *Backend) deleteVersion(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ActionResult{Error: "Invalid version"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, d := range b.docs {
		if d.DocID != docID {
			continue
		}
		for j, v := range d.Versions {
			if v.Version != version {
				continue
			}
			kept := append([]models.Version(nil), d.Versions[:j]...)
			b.docs[i].Versions = append(kept, d.Versions[j+1:]...)
			writeJSON(w, http.StatusOK, models.ActionResult{
				Success: true,
				Message: "Version " + strconv.Itoa(version) + " of document " + docID + " deleted successfully",
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, models.ActionResult{Error: "Version not found"})
}

func (b *Backend) vote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ActionResult{Error: "Invalid JSON"})
		return
	}
	if !req.VoteType.Valid() {
		writeJSON(w, http.StatusBadRequest, models.ActionResult{Error: "Invalid vote type"})
		return
	}

	b.mu.Lock()
	b.votes = append(b.votes, models.Vote{
		DocID:     req.DocID,
		Version:   req.Version,
		VoteType:  req.VoteType,
		VoterInfo: b.voterInfo,
		CreatedAt: "2024-01-01 00:00:00",
	})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, models.ActionResult{Success: true, Message: "Vote recorded successfully"})
}

func (b *Backend) voteResults(w http.ResponseWriter, _ *http.Request) {
	votes := b.Votes()
	if votes == nil {
		votes = []models.Vote{}
	}
	writeJSON(w, http.StatusOK, votes)
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart"})
		return
	}

	up := Upload{
		Fields: map[string]string{},
		Files:  map[string][]string{},
		Bodies: map[string]string{},
	}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			up.Fields[k] = v[0]
		}
	}
	for field, headers := range r.MultipartForm.File {
		for _, h := range headers {
			up.Files[field] = append(up.Files[field], h.Filename)
			if f, err := h.Open(); err == nil {
				data, _ := io.ReadAll(f)
				f.Close()
				up.Bodies[h.Filename] = string(data)
			}
		}
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, up)
	status, errMsg := b.upStatus, b.upError
	b.mu.Unlock()

	if status != 0 && (status < 200 || status > 299) {
		writeJSON(w, status, map[string]string{"error": errMsg})
		return
	}
	if len(up.Files["file"]) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Doc builds a document with the given metadata pairs and versions.
func Doc(id string, meta []string, versions ...models.Version) models.Document {
	latest := 0
	for _, v := range versions {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return models.Document{
		DocID:         id,
		Metadata:      models.NewMetadata(meta...),
		LatestVersion: latest,
		Versions:      versions,
	}
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
