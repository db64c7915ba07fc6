// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/dropwatch"
	"github.com/starford/docdesk/internal/ledger"
	"github.com/starford/docdesk/internal/mcpserver"
	"github.com/starford/docdesk/internal/portal"
	"github.com/starford/docdesk/internal/sse"
	"github.com/starford/docdesk/internal/uploadform"
)

// Version is reported by the MCP server.
var Version = "dev"

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup builds the structured JSON logger and the document service client.
func (a *application) setup() (*slog.Logger, *backend.Client, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	client, err := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("init backend client: %w", err)
	}
	return logger, client, nil
}

// Run starts the web portal with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, client, err := app.setup()
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int64("max_upload", cfg.App.HTTP.MaxUpload),
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.Duration("backend_timeout", cfg.Backend.Timeout),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.App.EventThrottle)
	defer broker.Close()

	router, err := portal.NewRouter(client, broker, logger,
		portal.WithMaxUpload(cfg.App.HTTP.MaxUpload))
	if err != nil {
		return fmt.Errorf("init portal: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Open event streams would otherwise hold Shutdown until the timeout.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunWatch uploads documents dropped into the configured directory until
// ctx is cancelled or a shutdown signal arrives.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, client, err := app.setup()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
		return fmt.Errorf("create drop dir: %w", err)
	}

	db, err := ledger.Open(cfg.Watch.LedgerPath)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	logger.Info("Configuration loaded",
		slog.String("drop_dir", cfg.Watch.Dir),
		slog.String("ledger_path", cfg.Watch.LedgerPath),
		slog.String("backend_url", cfg.Backend.BaseURL))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := dropwatch.New(cfg.Watch.Dir, uploadform.NewHandler(client, logger), db, logger,
		dropwatch.WithDebounce(cfg.Watch.Debounce))
	return w.Run(ctx)
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the configured
// output, which must not be stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	logger, client, err := app.setup()
	if err != nil {
		return err
	}
	logger.Info("Starting MCP server", slog.String("backend_url", app.config.Backend.BaseURL))

	return mcpserver.New(client, Version, logger).ServeStdio()
}

// Upload sends one document with its metadata and optional HTML renderings.
func Upload(ctx context.Context, set uploadform.FileSet, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger, client, err := app.setup()
	if err != nil {
		return err
	}

	form, err := uploadform.FromFiles(set)
	if err != nil {
		return err
	}
	return uploadform.NewHandler(client, logger).UploadFiles(ctx, form)
}

// ListUploads writes the drop watcher's upload ledger to out, newest first.
// docID filters when non-empty.
func ListUploads(out io.Writer, docID string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := ledger.Open(app.config.Watch.LedgerPath)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	entries, err := db.List(docID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UPLOADED\tDOC_ID\tPATH\tCHECKSUM")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.UploadedAt.UTC().Format(time.RFC3339), e.DocID, e.Path, e.Checksum)
	}
	return tw.Flush()
}
