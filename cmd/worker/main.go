// Package main provides the long-running worker that harvests on a cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/pipeline"
)

func main() {
	configFile := flag.String("config", "configs/harvester.yaml", "Path to YAML configuration file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Keep writes in memory")

	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Harvester.Logging.Level, cfg.Harvester.Logging.Format, os.Stderr)

	if *logLevel != "" {
		if err := log.SetLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Invalid -log-level: %v\n", err)
			os.Exit(1)
		}
	}

	if cfg.Schedule.Cron == "" {
		log.Error("schedule.cron is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newScheduler(cfg.Schedule.Cron, func() { harvest(ctx, cfg, *dryRun, log) }, log)
	if err != nil {
		log.Error("Invalid cron schedule", "cron", cfg.Schedule.Cron, "error", err)
		os.Exit(1)
	}

	log.Info("🚀 Starting worker", "cron", cfg.Schedule.Cron, "keyword", cfg.Harvester.Site.Keyword, "run_on_start", cfg.Schedule.RunOnStart)

	s.Start(cfg.Schedule.RunOnStart)

	<-ctx.Done()

	log.Info("Shutting down, waiting for the running harvest")

	s.Stop()
}

func harvest(ctx context.Context, cfg *config.Config, dryRun bool, log *logger.Logger) {
	p, closeStore, err := pipeline.Build(ctx, cfg, pipeline.BuildOptions{DryRun: dryRun}, log)
	if err != nil {
		log.Error("Failed to initialize harvest", "error", err)

		return
	}
	defer closeStore()

	stats, err := p.Run(ctx)
	if err != nil {
		log.Error("Harvest aborted", "run_id", stats.RunID, "error", err)

		return
	}

	log.Info("✨ Harvest complete",
		"run_id", stats.RunID,
		"fragments", stats.Fragments,
		"uploaded", stats.Uploaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"failed_pages", stats.FailedPages,
		"duration", stats.Duration(),
	)
}
