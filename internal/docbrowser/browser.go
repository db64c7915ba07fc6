// Package docbrowser implements the document browser: listing and searching
// documents, expanding their versions, and deleting or voting on versions.
package docbrowser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/starford/docdesk/internal/models"
)

// Notification texts.
const (
	msgDeleteFailed  = "An error occurred while deleting the version."
	msgVoteFailed    = "An error occurred while sending your vote."
	msgDeleted       = "Version deleted."
	msgVoted         = "Vote recorded."
	msgUnknownServer = "unknown error"
)

// Source is the part of the document service the browser needs.
type Source interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	SearchDocuments(ctx context.Context, query string) ([]models.Document, error)
	DeleteVersion(ctx context.Context, docID string, version int) (*models.ActionResult, error)
	Vote(ctx context.Context, vote models.VoteRequest) (*models.ActionResult, error)
}

// Notifier shows a blocking notification to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify calls f(msg).
func (f NotifierFunc) Notify(msg string) { f(msg) }

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(prompt string) bool

// Confirm calls f(prompt).
func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// Observer is told about versions changed through the browser.
type Observer interface {
	Deleted(docID string, version int)
	Voted(docID string, version int, voteType models.VoteType)
}

// Option configures a Browser.
type Option func(*Browser)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(b *Browser) { b.notify = n }
}

// WithConfirmer sets the confirmation prompt.
func WithConfirmer(c Confirmer) Option {
	return func(b *Browser) { b.confirm = c }
}

// WithObserver registers an observer of successful deletes and votes.
func WithObserver(o Observer) Option {
	return func(b *Browser) { b.observer = o }
}

// WithQuery sets the initial search value without fetching.
func WithQuery(q string) Option {
	return func(b *Browser) { b.query = q }
}

// WithLogger sets the logger used for swallowed read failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// Browser holds the document list currently on display and which documents
// have their versions expanded. Rendering is a pure function of that state.
//
// Overlapping fetches are neither de-duplicated nor cancelled: whichever
// response resolves last replaces the table.
type Browser struct {
	src      Source
	notify   Notifier
	confirm  Confirmer
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	query    string
	docs     []models.Document
	expanded map[string]struct{}
}

// New creates a Browser over src. Without a Confirmer every delete is declined.
func New(src Source, opts ...Option) *Browser {
	b := &Browser{
		src:      src,
		notify:   NotifierFunc(func(string) {}),
		confirm:  ConfirmerFunc(func(string) bool { return false }),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		expanded: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load fetches the unfiltered document list.
func (b *Browser) Load(ctx context.Context) error {
	return b.Search(ctx, "")
}

// Search records query as the current search value and fetches the matching
// documents: the plain list when query is empty, the search endpoint
// otherwise. On failure the error is logged and the previous table is kept.
func (b *Browser) Search(ctx context.Context, query string) error {
	b.mu.Lock()
	b.query = query
	b.mu.Unlock()

	var (
		docs []models.Document
		err  error
	)
	if query == "" {
		docs, err = b.src.ListDocuments(ctx)
	} else {
		docs, err = b.src.SearchDocuments(ctx, query)
	}
	if err != nil {
		b.logger.Error("error fetching documents",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return fmt.Errorf("fetch documents: %w", err)
	}

	b.mu.Lock()
	b.docs = docs
	b.expanded = make(map[string]struct{})
	b.mu.Unlock()
	return nil
}

// Query returns the current search value.
func (b *Browser) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

// Documents returns the documents currently on display.
func (b *Browser) Documents() []models.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Document(nil), b.docs...)
}

// Toggle flips the versions visibility of one document and returns the new state.
func (b *Browser) Toggle(docID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.expanded[docID]; ok {
		delete(b.expanded, docID)
		return false
	}
	b.expanded[docID] = struct{}{}
	return true
}

// Expand marks documents as expanded.
func (b *Browser) Expand(docIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range docIDs {
		b.expanded[id] = struct{}{}
	}
}

// View renders the current state.
func (b *Browser) View() Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BuildTable(b.query, b.docs, func(id string) bool {
		_, ok := b.expanded[id]
		return ok
	})
}

// DeletePrompt is the confirmation text for deleting a version.
func DeletePrompt(docID string, version int) string {
	return fmt.Sprintf("Are you sure you want to delete version %d of document %s?", version, docID)
}

// Delete asks for confirmation and deletes one version. On success the list
// is re-fetched with the current search value. It returns false when the
// user declined and no request was made.
func (b *Browser) Delete(ctx context.Context, docID string, version int) bool {
	if !b.confirm.Confirm(DeletePrompt(docID, version)) {
		return false
	}

	res, err := b.src.DeleteVersion(ctx, docID, version)
	if err != nil {
		b.logger.Error("error deleting version",
			slog.String("doc_id", docID),
			slog.Int("version", version),
			slog.String("error", err.Error()))
		b.notify.Notify(msgDeleteFailed)
		return true
	}
	if !res.Success {
		b.notify.Notify(serverError(res))
		return true
	}

	b.notify.Notify(orDefault(res.Message, msgDeleted))
	if b.observer != nil {
		b.observer.Deleted(docID, version)
	}
	_ = b.Search(ctx, b.Query())
	return true
}

// Vote submits a vote for one version. The list is not refreshed.
func (b *Browser) Vote(ctx context.Context, docID string, version int, voteType models.VoteType) {
	res, err := b.src.Vote(ctx, models.VoteRequest{
		DocID:    docID,
		Version:  version,
		VoteType: voteType,
	})
	if err != nil {
		b.logger.Error("error sending vote",
			slog.String("doc_id", docID),
			slog.Int("version", version),
			slog.String("vote_type", string(voteType)),
			slog.String("error", err.Error()))
		b.notify.Notify(msgVoteFailed)
		return
	}
	if !res.Success {
		b.notify.Notify(serverError(res))
		return
	}
	b.notify.Notify(orDefault(res.Message, msgVoted))
	if b.observer != nil {
		b.observer.Voted(docID, version, voteType)
	}
}

func serverError(res *models.ActionResult) string {
	return "Error: " + orDefault(res.Error, msgUnknownServer)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
