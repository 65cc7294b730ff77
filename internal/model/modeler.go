package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cagedcli/internal/config"
	apperrors "cagedcli/internal/errors"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// Modeler fits the wage regressions and salary projections from the stored
// aggregates and writes them back as one immutable model run. Fit problems
// in one slice never abort the run: they become status artifacts the
// dashboard can render as explained gaps.
type Modeler struct {
	cfg    config.ModelConfig
	store  *store.Store
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewModeler wires a modeler stage against an open store.
func NewModeler(cfg config.ModelConfig, st *store.Store, logger *slog.Logger) *Modeler {
	return &Modeler{
		cfg:    cfg,
		store:  st,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Name implements pipeline.Stage.
func (m *Modeler) Name() string { return "modeler" }

// Run implements pipeline.Stage. It returns pipeline.ErrNoInputData when no
// aggregated period exists yet.
func (m *Modeler) Run(ctx context.Context) error {
	from, to, ok, err := m.store.PeriodBounds(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no aggregated periods in store", pipeline.ErrNoInputData)
	}

	run := domain.ModelRun{
		ID:         m.newID(),
		StartedAt:  m.now().UTC(),
		FromPeriod: from,
		ToPeriod:   to,
	}
	m.logger.InfoContext(ctx, "model run starting",
		slog.String("run_id", run.ID),
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	quality, err := m.store.QualityReports(ctx)
	if err != nil {
		return err
	}

	var regressions []domain.RegressionArtifact
	var projections []domain.ProjectionArtifact
	for _, dim := range domain.Dimensions() {
		reg, err := m.fitDimension(ctx, run.ID, dim)
		if err != nil {
			return err
		}
		regressions = append(regressions, *reg)

		projs, err := m.projectDimension(ctx, run.ID, dim, quality)
		if err != nil {
			return err
		}
		projections = append(projections, projs...)
	}

	if err := m.store.SaveModelRun(ctx, run, regressions, projections); err != nil {
		return apperrors.NewStorageError("persist model run", err).
			WithContext("run_id", run.ID)
	}
	m.logger.InfoContext(ctx, "model run saved",
		slog.String("run_id", run.ID),
		slog.Int("regressions", len(regressions)),
		slog.Int("projections", len(projections)))

	// The status artifacts are saved either way so the dashboard can show
	// why each slice is missing, but a run where nothing fitted is an
	// operator-visible failure.
	if !anyFitted(regressions, projections) {
		return apperrors.NewModelingError("no regression or projection could be fitted", nil).
			WithContext("run_id", run.ID)
	}
	return nil
}

// anyFitted reports whether at least one artifact reached StatusOK.
func anyFitted(regressions []domain.RegressionArtifact, projections []domain.ProjectionArtifact) bool {
	for i := range regressions {
		if regressions[i].Status == domain.StatusOK {
			return true
		}
	}
	for i := range projections {
		if projections[i].Status == domain.StatusOK {
			return true
		}
	}
	return false
}

// fitDimension runs the cross-sectional wage regression for one dimension.
// Only store errors propagate; estimation failures become a status artifact.
func (m *Modeler) fitDimension(ctx context.Context, runID string, dim domain.Dimension) (*domain.RegressionArtifact, error) {
	groups, err := m.store.RegressionGroups(ctx, dim)
	if err != nil {
		return nil, err
	}

	art, err := FitRegression(dim, groups, m.cfg.Alpha)
	if err != nil {
		m.logger.WarnContext(ctx, "regression not fitted",
			slog.String("dimension", string(dim)),
			slog.String("reason", err.Error()))
		return &domain.RegressionArtifact{
			RunID:     runID,
			Dimension: dim,
			Status:    statusFor(err),
			Baseline:  dim.Baseline(),
			Message:   err.Error(),
		}, nil
	}
	art.RunID = runID
	m.logger.InfoContext(ctx, "regression fitted",
		slog.String("dimension", string(dim)),
		slog.Int("cells", art.N),
		slog.Float64("r_squared", art.RSquared))
	return art, nil
}

// projectDimension fits one SARIMA projection per category of the dimension.
func (m *Modeler) projectDimension(ctx context.Context, runID string, dim domain.Dimension,
	quality map[domain.Period]*domain.QualityReport) ([]domain.ProjectionArtifact, error) {

	rows, err := m.store.AggregateRows(ctx, store.AggregateFilter{Dimension: dim})
	if err != nil {
		return nil, err
	}

	var out []domain.ProjectionArtifact
	for _, cat := range dim.Categories() {
		if cat.Code == dim.UnknownCode() {
			continue // unknown buckets are quality telemetry, not a cohort
		}
		series := BuildSeries(rows, quality, m.cfg.MinQualityWeight, dim, cat.Code)
		out = append(out, m.project(ctx, runID, dim, cat.Code, series))
	}
	return out, nil
}

func (m *Modeler) project(ctx context.Context, runID string, dim domain.Dimension,
	category string, series *Series) domain.ProjectionArtifact {

	art := domain.ProjectionArtifact{RunID: runID, Dimension: dim, Category: category}

	fit, err := SearchSARIMA(series.Values)
	if err != nil {
		m.logger.WarnContext(ctx, "projection not fitted",
			slog.String("dimension", string(dim)),
			slog.String("category", category),
			slog.Int("observations", series.Len()),
			slog.String("reason", err.Error()))
		art.Status = statusFor(err)
		art.Message = err.Error()
		return art
	}

	point, low, high := fit.Forecast(m.cfg.Horizon, m.cfg.Alpha)

	art.Status = domain.StatusOK
	art.Order = fit.Order
	art.AIC = fit.AIC
	period := series.Start
	for _, v := range series.Values {
		art.Points = append(art.Points, domain.ProjectionPoint{Period: period, Value: v})
		period = period.Next()
	}
	for i := range point {
		art.Points = append(art.Points, domain.ProjectionPoint{
			Period:   period,
			Value:    point[i],
			Low:      low[i],
			High:     high[i],
			Forecast: true,
		})
		period = period.Next()
	}

	m.logger.InfoContext(ctx, "projection fitted",
		slog.String("dimension", string(dim)),
		slog.String("category", category),
		slog.Int("observations", series.Len()),
		slog.Float64("aic", fit.AIC))
	return art
}

// statusFor maps fit sentinels onto artifact statuses.
func statusFor(err error) domain.ArtifactStatus {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return domain.StatusInsufficientData
	case errors.Is(err, ErrInsufficientHistory):
		return domain.StatusInsufficientHistory
	default:
		return domain.StatusFitFailed
	}
}
