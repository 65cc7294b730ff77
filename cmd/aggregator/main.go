package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cagedcli/internal/aggregate"
	"cagedcli/internal/config"
	"cagedcli/internal/exporter"
	"cagedcli/internal/infrastructure"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars override)")
	export := flag.Bool("export", true, "write the researcher CSV and Excel exports after aggregating")
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

	logger, closer, err := infrastructure.SetupLogger(cfg.Logging, "aggregate")
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

	if err := pipeline.Run(ctx, logger, aggregate.NewAggregator(cfg.Aggregate, paths, st, logger)); err != nil {
		if errors.Is(err, pipeline.ErrNoInputData) {
			logger.Warn("no clean CSV files found, run the converter first")
			os.Exit(1)
		}
		logger.Error("aggregate run failed", "error", err)
		os.Exit(1)
	}

	if *export {
		if err := exporter.NewAggregateExporter(st, paths, logger).ExportAll(ctx); err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
	}
}
