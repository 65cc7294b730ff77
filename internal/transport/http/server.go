package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"cagedcli/internal/config"
	apierrors "cagedcli/internal/errors"
)

// Server is the dashboard HTTP server. It owns the router, the handler
// wiring and the graceful shutdown sequence.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	srv    *http.Server
}

// NewServer wires the router against a read-only store view.
func NewServer(cfg config.ServerConfig, st StoreReader, logger *slog.Logger) *Server {
	errorHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apierrors.NewErrorMiddleware(logger).Handler)
	r.Use(apierrors.RecoveryMiddleware(errorHandler))

	dashboard := NewDashboardHandler(st, logger, errorHandler)
	health := NewHealthHandler(st, logger)

	// Set before any Route call so subrouters inherit the RFC 7807 handlers.
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", health.HealthCheck)
		r.Get("/version", health.Version)
		dashboard.Register(r)
	})

	r.Get("/", ServeDashboardPage())

	return &Server{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "http_server")),
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("dashboard stopped")
	return <-errCh
}
