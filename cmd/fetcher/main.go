package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cagedcli/internal/config"
	"cagedcli/internal/fetch"
	"cagedcli/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	paths := cfg.NewPaths()
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	logger, closer, err := infrastructure.SetupLogger(cfg.Logging, "fetch")
	if err != nil {
		slog.Error("failed to set up logger", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := fetch.NewFetcher(cfg.Fetch, paths, logger).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("fetch interrupted", "downloaded", summaryDownloaded(summary))
			os.Exit(1)
		}
		logger.Error("fetch run failed", "error", err)
		os.Exit(1)
	}

	if summary.Failed > 0 {
		logger.Warn("fetch finished with failures",
			"downloaded", summary.Downloaded,
			"failed", summary.Failed)
	}
}

func summaryDownloaded(s *fetch.Summary) int {
	if s == nil {
		return 0
	}
	return s.Downloaded
}
