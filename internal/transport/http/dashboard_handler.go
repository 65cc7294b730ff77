package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "cagedcli/internal/errors"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// DashboardHandler serves the aggregate, quality and model endpoints with
// RFC 7807 errors.
type DashboardHandler struct {
	store        StoreReader
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(st StoreReader, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		store:        st,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Register attaches the dashboard routes to an API router.
func (h *DashboardHandler) Register(r chi.Router) {
	r.Get("/dimensions", h.GetDimensions)
	r.Get("/periods", h.GetPeriods)
	r.Get("/aggregates", h.GetAggregates)
	r.Get("/quality", h.GetQuality)
	r.Get("/regressions", h.GetRegressions)

	r.Route("/projections/{dimension}/{category}", func(r chi.Router) {
		r.Use(h.DimensionCtx)
		r.Get("/", h.GetProjection)
	})
}

// DimensionCtx middleware validates the dimension URL parameter.
func (h *DashboardHandler) DimensionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := domain.ParseDimension(chi.URLParam(r, "dimension")); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("dimension", err.Error()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// dimensionPayload is the closed category list the page builds its
// selectors from.
type dimensionPayload struct {
	Dimension  domain.Dimension  `json:"dimension"`
	Baseline   string            `json:"baseline"`
	Categories []domain.Category `json:"categories"`
}

// GetDimensions handles GET /api/dimensions.
func (h *DashboardHandler) GetDimensions(w http.ResponseWriter, r *http.Request) {
	var out []dimensionPayload
	for _, dim := range domain.Dimensions() {
		out = append(out, dimensionPayload{
			Dimension:  dim,
			Baseline:   dim.Baseline(),
			Categories: dim.Categories(),
		})
	}
	render.JSON(w, r, map[string]interface{}{"dimensions": out})
}

// GetPeriods handles GET /api/periods: the covered period range.
func (h *DashboardHandler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	min, max, ok, err := h.store.PeriodBounds(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("period bounds", err))
		return
	}
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrPeriodNotFound)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"from": min,
		"to":   max,
	})
}

// aggregatePayload adds the derived means to the stored counters. Means are
// omitted for low-confidence groups.
type aggregatePayload struct {
	Period        domain.Period    `json:"period"`
	Dimension     domain.Dimension `json:"dimension"`
	Category      string           `json:"category"`
	CategoryName  string           `json:"category_name"`
	Admissions    int64            `json:"admissions"`
	MeanWage      *float64         `json:"mean_wage,omitempty"`
	MeanAge       *float64         `json:"mean_age,omitempty"`
	LowConfidence bool             `json:"low_confidence"`
}

// GetAggregates handles GET /api/aggregates with optional dimension,
// category, from and to query parameters.
func (h *DashboardHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := aggregateFilterFromQuery(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	rows, err := h.store.AggregateRows(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("aggregate query", err))
		return
	}

	out := make([]aggregatePayload, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		p := aggregatePayload{
			Period:        row.Period,
			Dimension:     row.Dimension,
			Category:      row.Category,
			CategoryName:  row.Dimension.CategoryName(row.Category),
			Admissions:    row.Admissions,
			LowConfidence: row.LowConfidence,
		}
		if wage, ok := row.MeanWage(); ok {
			p.MeanWage = &wage
		}
		if age, ok := row.MeanAge(); ok {
			p.MeanAge = &age
		}
		out = append(out, p)
	}

	h.logger.DebugContext(r.Context(), "aggregates served",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("rows", len(out)))
	render.JSON(w, r, map[string]interface{}{"aggregates": out})
}

// aggregateFilterFromQuery parses and validates the aggregate listing query.
func aggregateFilterFromQuery(r *http.Request) (store.AggregateFilter, *apierrors.APIError) {
	var filter store.AggregateFilter
	q := r.URL.Query()

	if s := q.Get("dimension"); s != "" {
		dim, err := domain.ParseDimension(s)
		if err != nil {
			return filter, apierrors.ErrValidation("dimension", err.Error())
		}
		filter.Dimension = dim
		filter.Category = q.Get("category")
	} else if q.Get("category") != "" {
		return filter, apierrors.ErrValidation("category", "category requires a dimension")
	}

	if s := q.Get("from"); s != "" {
		p, err := domain.ParsePeriod(s)
		if err != nil {
			return filter, apierrors.ErrValidation("from", err.Error())
		}
		filter.From = p
	}
	if s := q.Get("to"); s != "" {
		p, err := domain.ParsePeriod(s)
		if err != nil {
			return filter, apierrors.ErrValidation("to", err.Error())
		}
		filter.To = p
	}
	return filter, nil
}

// GetQuality handles GET /api/quality?period=yyyymm.
func (h *DashboardHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("period", "period is required"))
		return
	}
	period, err := domain.ParsePeriod(raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("period", err.Error()))
		return
	}

	report, err := h.store.QualityReport(r.Context(), period)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("quality query", err))
		return
	}
	if report == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrPeriodNotFound)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"quality": report,
		"weight":  report.Weight(),
	})
}

// GetRegressions handles GET /api/regressions: every dimension's wage
// regression from the latest model run.
func (h *DashboardHandler) GetRegressions(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("latest run", err))
		return
	}
	if run == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrModelRunNotFound)
		return
	}

	regressions, err := h.store.Regressions(r.Context(), run.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("regression query", err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"run":         run,
		"regressions": regressions,
	})
}

// GetProjection handles GET /api/projections/{dimension}/{category}.
func (h *DashboardHandler) GetProjection(w http.ResponseWriter, r *http.Request) {
	dim, _ := domain.ParseDimension(chi.URLParam(r, "dimension"))
	category := chi.URLParam(r, "category")

	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("latest run", err))
		return
	}
	if run == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrModelRunNotFound)
		return
	}

	proj, err := h.store.Projection(r.Context(), run.ID, dim, category)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.StoreError("projection query", err))
		return
	}
	if proj == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("projection"))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"run":        run,
		"projection": proj,
	})
}
