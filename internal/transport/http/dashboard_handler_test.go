package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cagedcli/internal/config"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// fakeStore implements StoreReader from fixed fixtures.
type fakeStore struct {
	rows        []domain.AggregateRow
	quality     map[domain.Period]*domain.QualityReport
	run         *domain.ModelRun
	regressions []domain.RegressionArtifact
	projections map[string]*domain.ProjectionArtifact
	lastFilter  store.AggregateFilter
}

func (f *fakeStore) PeriodBounds(context.Context) (domain.Period, domain.Period, bool, error) {
	if len(f.rows) == 0 {
		return domain.Period{}, domain.Period{}, false, nil
	}
	min, max := f.rows[0].Period, f.rows[0].Period
	for _, r := range f.rows {
		if r.Period.Before(min) {
			min = r.Period
		}
		if max.Before(r.Period) {
			max = r.Period
		}
	}
	return min, max, true, nil
}

func (f *fakeStore) AggregateRows(_ context.Context, filter store.AggregateFilter) ([]domain.AggregateRow, error) {
	f.lastFilter = filter
	var out []domain.AggregateRow
	for _, r := range f.rows {
		if filter.Dimension != "" && r.Dimension != filter.Dimension {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) QualityReport(_ context.Context, period domain.Period) (*domain.QualityReport, error) {
	return f.quality[period], nil
}

func (f *fakeStore) LatestRun(context.Context) (*domain.ModelRun, error) {
	return f.run, nil
}

func (f *fakeStore) Regressions(context.Context, string) ([]domain.RegressionArtifact, error) {
	return f.regressions, nil
}

func (f *fakeStore) Projection(_ context.Context, _ string, dim domain.Dimension, category string) (*domain.ProjectionArtifact, error) {
	return f.projections[string(dim)+"/"+category], nil
}

func seededFakeStore() *fakeStore {
	period := domain.MustParsePeriod("202401")
	wage := 2500.0
	return &fakeStore{
		rows: []domain.AggregateRow{
			{Period: period, Dimension: domain.DimensionGender, Category: "1", Admissions: 1000, WageSum: wage * 1000, AgeSum: 33000},
			{Period: period, Dimension: domain.DimensionGender, Category: "3", Admissions: 900, WageSum: 2100 * 900, AgeSum: 29700},
			{Period: period, Dimension: domain.DimensionRace, Category: "1", Admissions: 800, WageSum: 2600 * 800, AgeSum: 26400},
			{Period: period.Next(), Dimension: domain.DimensionGender, Category: "1", Admissions: 5, WageSum: 0, AgeSum: 0, LowConfidence: true},
		},
		quality: map[domain.Period]*domain.QualityReport{
			period: {
				Period:       period,
				TotalRows:    2000,
				IncludedRows: 1880,
				OutlierRows:  120,
				WageMedian:   2100,
				WageP90:      5200,
				UnknownShare: map[domain.Dimension]float64{domain.DimensionGender: 0.02},
			},
		},
		run: &domain.ModelRun{
			ID:         "run-7",
			StartedAt:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			FromPeriod: period,
			ToPeriod:   period.Next(),
		},
		regressions: []domain.RegressionArtifact{
			{
				RunID:     "run-7",
				Dimension: domain.DimensionGender,
				Status:    domain.StatusOK,
				Baseline:  "1",
				N:         24,
				RSquared:  0.91,
				Terms: []domain.RegressionTerm{
					{Name: "gender_3", Estimate: -0.17, StdErr: 0.02, TValue: -8.5, PValue: 0.0001, CILow: -0.21, CIHigh: -0.13},
				},
			},
		},
		projections: map[string]*domain.ProjectionArtifact{
			"gender/1": {
				RunID:     "run-7",
				Dimension: domain.DimensionGender,
				Category:  "1",
				Status:    domain.StatusOK,
				Order:     domain.SARIMAOrder{P: 1, D: 1, SD: 1, SeasonalPeriod: 12},
				AIC:       312.4,
				Points: []domain.ProjectionPoint{
					{Period: period, Value: 2500},
					{Period: period.Next(), Value: 2540, Low: 2460, High: 2620, Forecast: true},
				},
			},
			"race/2": {
				RunID:     "run-7",
				Dimension: domain.DimensionRace,
				Category:  "2",
				Status:    domain.StatusInsufficientHistory,
				Message:   "11 observations, need 24",
			},
		},
	}
}

func testServer(fs *fakeStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ServerConfig{Port: 0, ShutdownTimeout: time.Second}
	return NewServer(cfg, fs, logger).Handler()
}

func doGet(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return w, body
}

func TestGetPeriods(t *testing.T) {
	t.Run("bounds", func(t *testing.T) {
		w, body := doGet(t, testServer(seededFakeStore()), "/api/periods")
		assert.Equal(t, http.StatusOK, w.Code)
		from := body["from"].(map[string]interface{})
		assert.Equal(t, float64(2024), from["year"])
		assert.Equal(t, float64(1), from["month"])
	})

	t.Run("empty store is a problem", func(t *testing.T) {
		w, body := doGet(t, testServer(&fakeStore{}), "/api/periods")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PERIOD_NOT_FOUND", body["error_code"])
	})
}

func TestGetAggregates(t *testing.T) {
	fs := seededFakeStore()
	handler := testServer(fs)

	t.Run("filters by dimension", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/aggregates?dimension=gender")
		assert.Equal(t, http.StatusOK, w.Code)

		aggs := body["aggregates"].([]interface{})
		require.Len(t, aggs, 3)
		first := aggs[0].(map[string]interface{})
		assert.Equal(t, "Masculino", first["category_name"])
		assert.InDelta(t, 2500, first["mean_wage"].(float64), 0.001)
	})

	t.Run("low confidence rows omit means", func(t *testing.T) {
		_, body := doGet(t, handler, "/api/aggregates?dimension=gender")
		aggs := body["aggregates"].([]interface{})
		last := aggs[len(aggs)-1].(map[string]interface{})
		assert.Equal(t, true, last["low_confidence"])
		_, hasWage := last["mean_wage"]
		assert.False(t, hasWage)
	})

	t.Run("invalid dimension rejected", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/aggregates?dimension=zodiac")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "/errors/validation", body["type"])
	})

	t.Run("category without dimension rejected", func(t *testing.T) {
		w, _ := doGet(t, handler, "/api/aggregates?category=1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid period rejected", func(t *testing.T) {
		w, _ := doGet(t, handler, "/api/aggregates?from=never")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetQuality(t *testing.T) {
	handler := testServer(seededFakeStore())

	t.Run("known period", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/quality?period=202401")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.InDelta(t, 0.94, body["weight"].(float64), 0.001)
	})

	t.Run("missing period parameter", func(t *testing.T) {
		w, _ := doGet(t, handler, "/api/quality")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown period", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/quality?period=209912")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PERIOD_NOT_FOUND", body["error_code"])
	})
}

func TestGetRegressions(t *testing.T) {
	t.Run("latest run", func(t *testing.T) {
		w, body := doGet(t, testServer(seededFakeStore()), "/api/regressions")
		assert.Equal(t, http.StatusOK, w.Code)

		run := body["run"].(map[string]interface{})
		assert.Equal(t, "run-7", run["id"])
		regs := body["regressions"].([]interface{})
		require.Len(t, regs, 1)
		terms := regs[0].(map[string]interface{})["terms"].([]interface{})
		assert.Equal(t, "gender_3", terms[0].(map[string]interface{})["name"])
	})

	t.Run("no run yet", func(t *testing.T) {
		fs := seededFakeStore()
		fs.run = nil
		w, body := doGet(t, testServer(fs), "/api/regressions")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "MODEL_RUN_NOT_FOUND", body["error_code"])
	})
}

func TestGetProjection(t *testing.T) {
	handler := testServer(seededFakeStore())

	t.Run("fitted projection", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/projections/gender/1")
		assert.Equal(t, http.StatusOK, w.Code)

		proj := body["projection"].(map[string]interface{})
		assert.Equal(t, "ok", proj["status"])
		points := proj["points"].([]interface{})
		require.Len(t, points, 2)
		assert.Equal(t, true, points[1].(map[string]interface{})["forecast"])
	})

	t.Run("status artifact passes through", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/projections/race/2")
		assert.Equal(t, http.StatusOK, w.Code)
		proj := body["projection"].(map[string]interface{})
		assert.Equal(t, "insufficient_history", proj["status"])
	})

	t.Run("unknown dimension rejected", func(t *testing.T) {
		w, _ := doGet(t, handler, "/api/projections/zodiac/1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing projection", func(t *testing.T) {
		w, _ := doGet(t, handler, "/api/projections/disability/1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthAndPage(t *testing.T) {
	handler := testServer(seededFakeStore())

	t.Run("health", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("dimensions", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/dimensions")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, body["dimensions"].([]interface{}), 4)
	})

	t.Run("dashboard page", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "CAGED Pulse")
	})

	t.Run("unknown route is rfc7807", func(t *testing.T) {
		w, body := doGet(t, handler, "/api/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "/errors/not-found", body["type"])
	})
}
