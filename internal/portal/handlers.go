package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docdesk/internal/docbrowser"
	"github.com/starford/docdesk/internal/models"
	"github.com/starford/docdesk/internal/sse"
	"github.com/starford/docdesk/internal/uploadform"
	"github.com/starford/docdesk/internal/voteview"
)

// Backend is the document service as seen by the portal.
type Backend interface {
	docbrowser.Source
	voteview.Source
	uploadform.Uploader
	BaseURL() *url.URL
}

// Events receives changes made through the portal and streams them to pages.
type Events interface {
	http.Handler
	PublishChange(c sse.Change)
}

// Handler serves the portal pages.
type Handler struct {
	backend Backend
	uploads *uploadform.Handler
	events  Events
	pages   pages
	logger  *slog.Logger

	maxUpload int64
}

// DefaultMaxUpload caps upload forms when WithMaxUpload is not given, 64 MiB.
const DefaultMaxUpload int64 = 64 << 20

// Option configures a Handler.
type Option func(*Handler)

// WithMaxUpload caps the size in bytes of a POST /upload body.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandler creates a Handler. events may be nil.
func NewHandler(b Backend, events Events, logger *slog.Logger, opts ...Option) (*Handler, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		backend:   b,
		uploads:   uploadform.NewHandler(b, logger),
		events:    events,
		pages:     p,
		logger:    logger,
		maxUpload: DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// noticeList collects browser notifications for the next render.
type noticeList []string

func (n *noticeList) Notify(msg string) { *n = append(*n, msg) }

// changeObserver forwards successful mutations to the event stream.
type changeObserver struct {
	events Events
}

func (o *changeObserver) Deleted(docID string, version int) {
	o.publish(sse.Change{Kind: sse.ChangeDeleted, DocID: docID, Version: version})
}

func (o *changeObserver) Voted(docID string, version int, _ models.VoteType) {
	o.publish(sse.Change{Kind: sse.ChangeVoted, DocID: docID, Version: version})
}

func (o *changeObserver) publish(c sse.Change) {
	if o.events != nil {
		o.events.PublishChange(c)
	}
}

func (h *Handler) browser(opts ...docbrowser.Option) *docbrowser.Browser {
	return docbrowser.New(h.backend, append([]docbrowser.Option{docbrowser.WithLogger(h.logger)}, opts...)...)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	if err := h.pages.render(w, status, name, data); err != nil {
		h.logger.Error("render failed", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Documents handles GET /. A failed fetch is logged and renders an empty table.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	open := r.URL.Query()["open"]

	b := h.browser()
	_ = b.Search(r.Context(), q)
	b.Expand(open...)

	h.render(w, http.StatusOK, pageDocuments, newDocumentsPage(b.View(), open, r.URL.Query()["notice"]))
}

// ConfirmDelete handles GET /documents/{docID}/versions/{version}/delete.
func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	docID, version, ok := versionParams(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, pageConfirm, confirmPage{
		Prompt: docbrowser.DeletePrompt(docID, version),
		Action: deletePath(docID, version),
		Query:  r.URL.Query().Get("q"),
	})
}

// DeleteVersion handles POST /documents/{docID}/versions/{version}/delete.
// Only confirm=yes deletes. Either way the browser is redirected back to the
// listing, carrying the outcome as notices, so a reload never deletes twice.
func (h *Handler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	docID, version, ok := versionParams(w, r)
	if !ok {
		return
	}
	q := r.PostFormValue("q")
	confirmed := r.PostFormValue("confirm") == "yes"

	var notices noticeList
	b := h.browser(
		docbrowser.WithQuery(q),
		docbrowser.WithConfirmer(docbrowser.ConfirmerFunc(func(string) bool { return confirmed })),
		docbrowser.WithNotifier(&notices),
		docbrowser.WithObserver(&changeObserver{events: h.events}),
	)
	b.Delete(r.Context(), docID, version)

	http.Redirect(w, r, homeURL(q, nil, notices), http.StatusSeeOther)
}

// Vote handles POST /vote and redirects back to the listing with the outcome.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.PostFormValue("version"))
	if err != nil {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return
	}
	docID := r.PostFormValue("doc_id")
	voteType := models.VoteBad
	if r.PostFormValue("vote_type") == string(models.VoteGood) {
		voteType = models.VoteGood
	}

	var notices noticeList
	b := h.browser(
		docbrowser.WithNotifier(&notices),
		docbrowser.WithObserver(&changeObserver{events: h.events}),
	)
	b.Vote(r.Context(), docID, version, voteType)

	http.Redirect(w, r, homeURL(r.PostFormValue("q"), r.PostForm["open"], notices), http.StatusSeeOther)
}

// UploadPage handles GET /upload.
func (h *Handler) UploadPage(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, pageUpload, newUploadPage(nil, nil))
}

// Upload handles POST /upload by forwarding the submitted multipart form.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart form", http.StatusBadRequest)
		return
	}
	form, err := uploadform.ReadMultipart(mr)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	docID := form.Value("doc_id")
	out := h.uploads.Submit(r.Context(), form)
	if out.Reset && h.events != nil {
		h.events.PublishChange(sse.Change{Kind: sse.ChangeUploaded, DocID: docID})
	}
	h.render(w, http.StatusOK, pageUpload, newUploadPage(form, &out))
}

// Votes handles GET /votes. Repeated open values are expanded group keys.
func (h *Handler) Votes(w http.ResponseWriter, r *http.Request) {
	open := r.URL.Query()["open"]

	v := voteview.NewViewer(h.backend, h.logger)
	_ = v.Load(r.Context())
	for _, s := range open {
		k, err := voteview.ParseKey(s)
		if err != nil {
			continue
		}
		v.Expand(k)
	}

	h.render(w, http.StatusOK, pageVotes, votesPage{
		Table:         v.View(),
		Headers:       voteview.Headers,
		DetailHeaders: voteview.DetailHeaders,
		Open:          open,
	})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody("ok"))
}

// Ready handles GET /health/ready: the document service must answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.backend.ListDocuments(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, statusBody("unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, statusBody("ok"))
}

func versionParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return "", 0, false
	}
	docID := chi.URLParam(r, "docID")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(docID); err == nil {
			docID = unescaped
		}
	}
	return docID, version, true
}

func homeURL(q string, open, notices []string) string {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	for _, id := range open {
		v.Add("open", id)
	}
	for _, n := range notices {
		v.Add("notice", n)
	}
	return withQuery("/", v)
}
