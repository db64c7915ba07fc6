package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/docdesk/internal"
	"github.com/starford/docdesk/internal/uploadform"
	pkgconfig "github.com/starford/docdesk/pkg/config"
)

// loadConfig reads the config file when present and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if base := cmd.String("base-url"); base != "" {
		cfg.Backend.BaseURL = base
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --base-url: %w", err)
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func upload(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("usage: docdesk upload <pdf> <metadata.json> [--html file ...]")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	set := uploadform.FileSet{
		PDFPath:      cmd.Args().Get(0),
		MetadataPath: cmd.Args().Get(1),
		HTMLPaths:    cmd.StringSlice("html"),
	}
	if err := internal.Upload(ctx, set, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Println("Upload successful!")
	return nil
}

func watch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Watch.Dir = dir
	}
	return internal.RunWatch(ctx, internal.WithConfig(cfg))
}

func uploads(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("usage: docdesk uploads [doc_id]")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ListUploads(os.Stdout, cmd.Args().First(), internal.WithConfig(cfg))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	baseURL := &cli.StringFlag{
		Name:    "base-url",
		Usage:   "Base URL of the document service (overrides backend.base_url)",
		Sources: cli.EnvVars("DOCDESK_BASE_URL"),
	}

	cmd := &cli.Command{
		Name:   "docdesk",
		Usage:  "Browse, upload and vote on versioned documents",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			baseURL,
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the web portal",
				Action: serve,
			},
			{
				Name:      "upload",
				Usage:     "Upload a PDF with its metadata and optional HTML files",
				ArgsUsage: "<pdf> <metadata.json>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "html",
						Usage: "HTML file to attach (repeatable)",
					},
				},
				Action: upload,
			},
			{
				Name:  "watch",
				Usage: "Upload documents dropped into a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to watch (overrides watch.dir)",
					},
				},
				Action: watch,
			},
			{
				Name:      "uploads",
				Usage:     "List documents the watcher has uploaded",
				ArgsUsage: "[doc_id]",
				Action:    uploads,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
