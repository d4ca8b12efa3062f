package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/eringen/folio"
)

// version is set at build time via ldflags.
var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"folio.yaml"`
	EnvFile string `help:"Environment file loaded before reading the environment" default:".env"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		Addr string `help:"Listen address (overrides config)"`
	} `cmd:"" default:"1" help:"Serve the sitemap, feeds and newsletter API"`

	Generate struct {
		Out string `short:"o" help:"Output directory" default:"./public"`
	} `cmd:"" help:"Write sitemap.xml, robots.txt and feeds to a directory"`

	Import struct {
		Dir string `short:"d" help:"Markdown content directory" required:""`
	} `cmd:"" help:"Load a markdown content directory into the SQLite database"`

	Version struct{} `cmd:"" help:"Print the folio version"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("folio"),
		kong.Description("Sitemap, feeds and newsletter service for a portfolio site"),
	)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if ctx.Command() == "version" {
		fmt.Printf("folio %s\n", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "serve":
		if CLI.Serve.Addr != "" {
			cfg.Addr = CLI.Serve.Addr
		}
		err = runServe(cfg, logger)
	case "generate":
		err = runGenerate(cfg, logger, CLI.Generate.Out)
	case "import":
		err = runImport(cfg, logger, CLI.Import.Dir)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

// loadConfig layers the YAML file and then the environment over defaults.
func loadConfig() (folio.SiteConfig, error) {
	var cfg folio.SiteConfig
	if err := godotenv.Load(CLI.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", CLI.EnvFile, err)
	}
	if err := folio.LoadConfigFile(CLI.Config, &cfg); err != nil {
		return cfg, err
	}
	if err := folio.ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runServe(cfg folio.SiteConfig, logger *slog.Logger) error {
	app := folio.New(cfg, folio.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		_ = app.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func runGenerate(cfg folio.SiteConfig, logger *slog.Logger, out string) error {
	app := folio.New(cfg, folio.WithLogger(logger))
	defer app.Close()

	files, err := app.WriteStatic(context.Background(), out)
	if err != nil {
		return err
	}
	for _, f := range files {
		slog.Info("Wrote", "file", f)
	}
	return nil
}

func runImport(cfg folio.SiteConfig, logger *slog.Logger, dir string) error {
	app := folio.New(cfg, folio.WithLogger(logger))
	defer app.Close()

	posts, projects, err := app.ImportDir(context.Background(), dir)
	if err != nil {
		return err
	}
	slog.Info("Imported content", "dir", dir, "posts", posts, "projects", projects, "database", app.Config.DatabasePath)
	return nil
}
