// Package dropwatch uploads documents dropped into a directory. A document is
// a <stem>.pdf next to a <stem>.json metadata file, optionally with
// <stem>.html or <stem>.<name>.html renderings.
package dropwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/docdesk/internal/checksum"
	"github.com/starford/docdesk/internal/ledger"
	"github.com/starford/docdesk/internal/uploadform"
)

// Uploader sends a prepared upload form.
type Uploader interface {
	UploadFiles(ctx context.Context, form *uploadform.Form) error
}

// Ledger remembers uploaded content.
type Ledger interface {
	Has(checksum string) (bool, error)
	Record(e ledger.Entry) error
}

// Result reports what happened to one dropped document.
type Result struct {
	Stem     string
	DocID    string
	Checksum string
	Skipped  bool
	Err      error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithCallback registers a function called after each processed document.
func WithCallback(cb func(Result)) Option {
	return func(w *Watcher) { w.cb = cb }
}

// Watcher uploads documents found in a directory.
type Watcher struct {
	dir      string
	up       Uploader
	ledger   Ledger
	logger   *slog.Logger
	debounce time.Duration
	cb       func(Result)
}

// New creates a Watcher for dir.
func New(dir string, up Uploader, l Ledger, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		up:       up,
		ledger:   l,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Scan processes every complete document currently in the directory.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("dropwatch: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		w.process(ctx, strings.TrimSuffix(e.Name(), ".pdf"))
	}
	return nil
}

// Run scans the directory once and then processes changes until ctx is
// cancelled. Bursts of writes to the same document are debounced.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dropwatch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("dropwatch: watch %s: %w", w.dir, err)
	}
	w.logger.Info("dropwatch: started", slog.String("dir", w.dir))

	if err := w.Scan(ctx); err != nil {
		w.logger.Warn("dropwatch: initial scan failed", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var due <-chan time.Time

	schedule := func(stem string) {
		pending[stem] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			due = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("dropwatch: stopped")
			return nil

		case <-due:
			stems := make([]string, 0, len(pending))
			for s := range pending {
				stems = append(stems, s)
			}
			sort.Strings(stems)
			pending = make(map[string]struct{})
			for _, s := range stems {
				w.process(ctx, s)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			for _, stem := range w.stemsFor(filepath.Base(ev.Name)) {
				schedule(stem)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("dropwatch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// stemsFor maps a changed file name to the document stems it may belong to.
func (w *Watcher) stemsFor(name string) []string {
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return []string{strings.TrimSuffix(name, ".pdf")}
	case strings.HasSuffix(name, ".json"):
		return []string{strings.TrimSuffix(name, ".json")}
	case strings.HasSuffix(name, ".html"):
		if stem, ok := w.owner(name); ok {
			return []string{stem}
		}
	}
	return nil
}

// owner returns the longest stem with a PDF that an HTML file name extends.
// "a.b.html" belongs to a.b when a.b.pdf exists, otherwise to a.
func (w *Watcher) owner(name string) (string, bool) {
	cand := strings.TrimSuffix(name, ".html")
	for cand != "" {
		if _, err := os.Stat(filepath.Join(w.dir, cand+".pdf")); err == nil {
			return cand, true
		}
		i := strings.LastIndex(cand, ".")
		if i < 0 {
			break
		}
		cand = cand[:i]
	}
	return "", false
}

// artifacts returns the HTML renderings belonging to stem, sorted by name.
func (w *Watcher) artifacts(stem string) ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".html") {
			continue
		}
		if !strings.HasPrefix(n, stem+".") {
			continue
		}
		if owner, ok := w.owner(n); ok && owner == stem {
			out = append(out, filepath.Join(w.dir, n))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (w *Watcher) process(ctx context.Context, stem string) {
	pdf := filepath.Join(w.dir, stem+".pdf")
	meta := filepath.Join(w.dir, stem+".json")
	for _, p := range []string{pdf, meta} {
		if _, err := os.Stat(p); err != nil {
			w.logger.Debug("dropwatch: incomplete document", slog.String("stem", stem), slog.String("missing", p))
			return
		}
	}

	res := Result{Stem: stem}
	defer func() {
		if w.cb != nil {
			w.cb(res)
		}
	}()

	htmls, err := w.artifacts(stem)
	if err != nil {
		res.Err = err
		w.logger.Warn("dropwatch: list artifacts failed", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}

	sum, err := checksum.Files(append([]string{pdf, meta}, htmls...)...)
	if err != nil {
		res.Err = err
		w.logger.Warn("dropwatch: checksum failed", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}
	res.Checksum = sum

	seen, err := w.ledger.Has(sum)
	if err != nil {
		res.Err = err
		w.logger.Warn("dropwatch: ledger lookup failed", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}
	if seen {
		res.Skipped = true
		w.logger.Debug("dropwatch: already uploaded", slog.String("stem", stem))
		return
	}

	form, err := uploadform.FromFiles(uploadform.FileSet{PDFPath: pdf, MetadataPath: meta, HTMLPaths: htmls})
	if err != nil {
		res.Err = err
		w.logger.Warn("dropwatch: invalid document", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}
	res.DocID = form.Value("doc_id")

	if err := w.up.UploadFiles(ctx, form); err != nil {
		res.Err = err
		w.logger.Error("dropwatch: upload failed", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}

	if err := w.ledger.Record(ledger.Entry{Checksum: sum, Path: pdf, DocID: res.DocID}); err != nil {
		res.Err = err
		w.logger.Warn("dropwatch: ledger record failed", slog.String("stem", stem), slog.String("error", err.Error()))
		return
	}
	w.logger.Info("dropwatch: uploaded",
		slog.String("stem", stem),
		slog.String("doc_id", res.DocID),
		slog.Int("artifacts", len(htmls)))
}
