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
	"cagedcli/internal/convert"
	"cagedcli/internal/infrastructure"
	"cagedcli/internal/pipeline"
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

	logger, closer, err := infrastructure.SetupLogger(cfg.Logging, "convert")
	if err != nil {
		slog.Error("failed to set up logger", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Run(ctx, logger, convert.NewConverter(paths, logger)); err != nil {
		if errors.Is(err, pipeline.ErrNoInputData) {
			logger.Warn("nothing to convert, run the fetcher first")
			os.Exit(1)
		}
		logger.Error("convert run failed", "error", err)
		os.Exit(1)
	}
}
