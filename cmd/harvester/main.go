// Package main provides the harvester command: one crawl of the configured
// search keyword, uploading every new article to the record store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/pipeline"
	"kornews/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "configs/harvester.yaml", "Path to YAML configuration file")
	keyword := flag.String("keyword", "", "Search keyword (overrides config)")
	maxPages := flag.Int("max-pages", 0, "Number of result pages to crawl (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Check the store and translate, but keep writes in memory")
	titleWidth := flag.Int("title-width", 40, "Display width of titles in status lines")

	flag.Parse()

	fmt.Printf("⚙️  Loading configuration from: %s\n", *configFile)

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)

		return 1
	}

	if *keyword != "" {
		cfg.Harvester.Site.Keyword = *keyword
	}

	fmt.Printf("✅ Configuration loaded: %s\n\n", cfg)

	log, err := newLogger(cfg.Harvester.Logging, *logLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid -log-level: %v\n", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := report.NewPrinter(os.Stdout, *titleWidth)

	p, closeStore, err := pipeline.Build(ctx, cfg, pipeline.BuildOptions{
		OnStatus: printer.Print,
		MaxPages: *maxPages,
		DryRun:   *dryRun,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize harvester: %v\n", err)

		return 1
	}
	defer closeStore()

	if *dryRun {
		fmt.Println("🧪 Dry run: nothing will be written to the store")
	}

	fmt.Printf("🚀 Harvesting %q from %s\n\n", cfg.Harvester.Site.Keyword, cfg.Harvester.Site.Origin)

	stats, err := p.Run(ctx)

	fmt.Println()
	printer.Summary(stats)

	switch {
	case err == nil:
		fmt.Println("\n✨ Harvest complete")

		return 0
	case errors.Is(err, pipeline.ErrOriginUnreachable), errors.Is(err, pipeline.ErrStoreUnreachable):
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "⚠️  Interrupted; completed uploads are kept")
	default:
		fmt.Fprintf(os.Stderr, "❌ Harvest failed: %v\n", err)
	}

	return 1
}

// newLogger builds the configured logger; a non-empty override replaces the configured level.
func newLogger(cfg config.LoggingConfig, override string, w io.Writer) (*logger.Logger, error) {
	log := logger.New(cfg.Level, cfg.Format, w)

	if override != "" {
		if err := log.SetLevel(override); err != nil {
			return nil, err
		}
	}

	return log, nil
}
