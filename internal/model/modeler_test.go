package model

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cagedcli/internal/config"
	apperrors "cagedcli/internal/errors"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Horizon:          12,
		Alpha:            0.05,
		MinQualityWeight: 0.6,
	}
}

// seedStore loads months of synthetic gender aggregates with a stable wage
// gap and seasonal drift, enough history for both model families.
func seedStore(t *testing.T, st *store.Store, months int) {
	t.Helper()
	ctx := context.Background()

	period := domain.MustParsePeriod("202101")
	for i := 0; i < months; i++ {
		meanBase := 2200 + 6*float64(i) + 90*math.Sin(2*math.Pi*float64(i)/12)

		var rows []domain.AggregateRow
		var groups []domain.RegressionGroup
		for _, cat := range []string{"1", "3"} {
			mean := meanBase
			if cat == "3" {
				mean *= 0.85
			}
			rows = append(rows, domain.AggregateRow{
				Period:     period,
				Dimension:  domain.DimensionGender,
				Category:   cat,
				Admissions: 800,
				WageSum:    mean * 800,
				AgeSum:     33 * 800,
			})
			for _, edu := range []string{"1", "5"} {
				for _, reg := range []string{"SUDESTE", "SUL"} {
					cellMean := mean
					if edu == "5" {
						cellMean *= 1.2
					}
					if reg == "SUL" {
						cellMean *= 0.97
					}
					age := 26 + float64(len(groups)*7%11)
					groups = append(groups, domain.RegressionGroup{
						Period:     period,
						Dimension:  domain.DimensionGender,
						Category:   cat,
						Education:  edu,
						Region:     reg,
						Admissions: 200,
						WageSum:    cellMean * 200,
						AgeSum:     age * 200,
					})
				}
			}
		}
		quality := &domain.QualityReport{
			Period:       period,
			TotalRows:    2000,
			IncludedRows: 1900,
			OutlierRows:  100,
			WageMedian:   meanBase,
			WageP90:      meanBase * 2,
			UnknownShare: map[domain.Dimension]float64{domain.DimensionGender: 0.01},
		}
		require.NoError(t, st.ReplacePeriod(ctx, period, rows, groups, quality))
		period = period.Next()
	}
}

func TestModelerRun(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "caged.db"))
	require.NoError(t, err)
	defer st.Close()

	seedStore(t, st, 36)

	m := NewModeler(testModelConfig(), st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.newID = func() string { return "run-1" }
	m.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	require.NoError(t, m.Run(ctx))

	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.MustParsePeriod("202101"), run.FromPeriod)
	assert.Equal(t, domain.MustParsePeriod("202312"), run.ToPeriod)

	regressions, err := st.Regressions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, regressions, len(domain.Dimensions()))

	byDim := make(map[domain.Dimension]domain.RegressionArtifact)
	for _, reg := range regressions {
		byDim[reg.Dimension] = reg
	}

	gender := byDim[domain.DimensionGender]
	assert.Equal(t, domain.StatusOK, gender.Status)
	assert.Equal(t, "1", gender.Baseline)
	var gapTerm *domain.RegressionTerm
	for i := range gender.Terms {
		if gender.Terms[i].Name == "gender_3" {
			gapTerm = &gender.Terms[i]
		}
	}
	require.NotNil(t, gapTerm)
	// Seeded with a multiplicative 0.85 gap: log(0.85) ~ -0.163.
	assert.InDelta(t, math.Log(0.85), gapTerm.Estimate, 0.02)
	assert.Less(t, gapTerm.CIHigh, 0.0)

	// Dimensions with no data get explained gaps, not failures.
	assert.Equal(t, domain.StatusInsufficientData, byDim[domain.DimensionRace].Status)
	assert.NotEmpty(t, byDim[domain.DimensionRace].Message)

	proj, err := st.Projection(ctx, run.ID, domain.DimensionGender, "1")
	require.NoError(t, err)
	require.NotNil(t, proj)
	assert.Equal(t, domain.StatusOK, proj.Status)
	assert.Equal(t, 12, proj.Order.SeasonalPeriod)
	require.Len(t, proj.Points, 36+12)

	var forecasts int
	for i, pt := range proj.Points {
		if i > 0 {
			assert.True(t, proj.Points[i-1].Period.Before(pt.Period), "points out of order at %d", i)
		}
		if pt.Forecast {
			forecasts++
			assert.LessOrEqual(t, pt.Low, pt.Value)
			assert.GreaterOrEqual(t, pt.High, pt.Value)
		}
	}
	assert.Equal(t, 12, forecasts)

	// No gender category series exists for the unknown bucket.
	unknown, err := st.Projection(ctx, run.ID, domain.DimensionGender, domain.CodeUnknown)
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestModelerRunNothingFitted(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "caged.db"))
	require.NoError(t, err)
	defer st.Close()

	// One month: far too short for projections, and only two regression
	// cells against three coefficients.
	ctx := context.Background()
	period := domain.MustParsePeriod("202401")
	rows := []domain.AggregateRow{
		{Period: period, Dimension: domain.DimensionGender, Category: "1", Admissions: 500, WageSum: 2400 * 500, AgeSum: 33 * 500},
		{Period: period, Dimension: domain.DimensionGender, Category: "3", Admissions: 400, WageSum: 2000 * 400, AgeSum: 30 * 400},
	}
	groups := []domain.RegressionGroup{
		{Period: period, Dimension: domain.DimensionGender, Category: "1", Education: "1", Region: "SUDESTE", Admissions: 500, WageSum: 2400 * 500, AgeSum: 33 * 500},
		{Period: period, Dimension: domain.DimensionGender, Category: "3", Education: "1", Region: "SUDESTE", Admissions: 400, WageSum: 2000 * 400, AgeSum: 30 * 400},
	}
	report := &domain.QualityReport{Period: period, TotalRows: 1000, IncludedRows: 900, OutlierRows: 100}
	require.NoError(t, st.ReplacePeriod(ctx, period, rows, groups, report))

	m := NewModeler(testModelConfig(), st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.newID = func() string { return "run-hollow" }

	err = m.Run(ctx)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeModeling, appErr.Type)
	assert.Equal(t, "run-hollow", appErr.Context["run_id"])

	// The status artifacts are still persisted for the dashboard.
	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-hollow", run.ID)

	regressions, err := st.Regressions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, regressions, len(domain.Dimensions()))
	for _, reg := range regressions {
		assert.NotEqual(t, domain.StatusOK, reg.Status)
		assert.NotEmpty(t, reg.Message)
	}
}

func TestModelerRunEmptyStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "caged.db"))
	require.NoError(t, err)
	defer st.Close()

	m := NewModeler(testModelConfig(), st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err = m.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrNoInputData)
}
