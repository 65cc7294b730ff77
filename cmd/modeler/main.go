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
	"cagedcli/internal/infrastructure"
	"cagedcli/internal/model"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
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

	logger, closer, err := infrastructure.SetupLogger(cfg.Logging, "model")
	if err != nil {
		slog.Error("failed to set up logger", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	st, err := store.Open(paths.StoreFile)
	if err != nil {
		logger.Error("failed to open store", "path", paths.StoreFile, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Run(ctx, logger, model.NewModeler(cfg.Model, st, logger)); err != nil {
		if errors.Is(err, pipeline.ErrNoInputData) {
			logger.Warn("store holds no aggregated periods, run the aggregator first")
			os.Exit(1)
		}
		logger.Error("model run failed", "error", err)
		os.Exit(1)
	}
}
