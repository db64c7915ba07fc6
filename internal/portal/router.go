package portal

import (
	"log/slog"
	"net/http"
	"net/http/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a chi router with all portal routes mounted.
// events, if non-nil, is mounted at GET /events and receives every change
// made through the portal.
func NewRouter(b Backend, events Events, logger *slog.Logger, opts ...Option) (chi.Router, error) {
	h, err := NewHandler(b, events, logger, opts...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	// Document browser.
	r.Get("/", h.Documents)
	r.Get("/documents/{docID}/versions/{version}/delete", h.ConfirmDelete)
	r.Post("/documents/{docID}/versions/{version}/delete", h.DeleteVersion)
	r.Post("/vote", h.Vote)

	// Upload form.
	r.Get("/upload", h.UploadPage)
	r.Post("/upload", h.Upload)

	// Vote results.
	r.Get("/votes", h.Votes)

	// Stored files live on the document service.
	r.Get("/uploads/{name}", uploadsProxy(b).ServeHTTP)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r, nil
}

func uploadsProxy(b Backend) http.Handler {
	target := b.BaseURL()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
	}
}
