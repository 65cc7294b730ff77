package http

import (
	"context"

	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// StoreReader is the read side of the store the dashboard depends on.
// *store.Store satisfies it; tests substitute fakes.
type StoreReader interface {
	PeriodBounds(ctx context.Context) (min, max domain.Period, ok bool, err error)
	AggregateRows(ctx context.Context, f store.AggregateFilter) ([]domain.AggregateRow, error)
	QualityReport(ctx context.Context, period domain.Period) (*domain.QualityReport, error)
	LatestRun(ctx context.Context) (*domain.ModelRun, error)
	Regressions(ctx context.Context, runID string) ([]domain.RegressionArtifact, error)
	Projection(ctx context.Context, runID string, dim domain.Dimension, category string) (*domain.ProjectionArtifact, error)
}
