package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"cagedcli/pkg/contracts"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store  StoreReader
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st StoreReader, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  st,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]interface{}{}

	min, max, ok, err := h.store.PeriodBounds(r.Context())
	switch {
	case err != nil:
		status = "degraded"
		checks["store"] = map[string]string{"status": "error", "error": err.Error()}
	case !ok:
		checks["store"] = map[string]string{"status": "empty"}
	default:
		checks["store"] = map[string]string{
			"status": "ok",
			"from":   min.String(),
			"to":     max.String(),
		}
	}

	if run, err := h.store.LatestRun(r.Context()); err == nil && run != nil {
		checks["model"] = map[string]string{
			"run_id":     run.ID,
			"started_at": run.StartedAt.Format(time.RFC3339),
		}
	} else {
		checks["model"] = map[string]string{"status": "no run yet"}
	}

	render.JSON(w, r, map[string]interface{}{
		"status":  status,
		"version": contracts.Version,
		"checks":  checks,
	})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
