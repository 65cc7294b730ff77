package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cagedcli/internal/config"
	"cagedcli/internal/infrastructure"
	"cagedcli/internal/store"
	transporthttp "cagedcli/internal/transport/http"
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

	logger, closer, err := infrastructure.SetupLogger(cfg.Logging, "web")
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

	srv := transporthttp.NewServer(cfg.Server, st, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("dashboard server failed", "error", err)
		os.Exit(1)
	}
}
