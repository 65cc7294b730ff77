package aggregate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cagedcli/internal/config"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

func testConfig() config.AggregateConfig {
	return config.AggregateConfig{
		MinAge:        14,
		MaxAge:        80,
		MaxWage:       200000,
		MinSampleSize: 3,
	}
}

func record(gender string, wage float64, age int) *domain.MovementRecord {
	return &domain.MovementRecord{
		Period:       domain.MustParsePeriod("202301"),
		Municipality: "355030",
		Education:    "5",
		Age:          age,
		Race:         "1",
		Gender:       gender,
		Wage:         wage,
		Disability:   "0",
	}
}

func feed(records []*domain.MovementRecord) func() (*domain.MovementRecord, error) {
	i := 0
	return func() (*domain.MovementRecord, error) {
		if i >= len(records) {
			return nil, nil
		}
		rec := records[i]
		i++
		return rec, nil
	}
}

func findRow(rows []domain.AggregateRow, dim domain.Dimension, category string) *domain.AggregateRow {
	for i := range rows {
		if rows[i].Dimension == dim && rows[i].Category == category {
			return &rows[i]
		}
	}
	return nil
}

func TestAggregate(t *testing.T) {
	period := domain.MustParsePeriod("202301")

	t.Run("sums and counts per group", func(t *testing.T) {
		records := []*domain.MovementRecord{
			record("1", 2000, 30),
			record("1", 3000, 40),
			record("1", 2500, 35),
			record("3", 1800, 28),
			record("3", 2200, 32),
			record("3", 2000, 30),
		}
		result, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)

		male := findRow(result.Rows, domain.DimensionGender, "1")
		require.NotNil(t, male)
		assert.Equal(t, int64(3), male.Admissions)
		assert.InDelta(t, 7500, male.WageSum, 1e-9)
		assert.InDelta(t, 105, male.AgeSum, 1e-9)
		assert.False(t, male.LowConfidence)

		wage, ok := male.MeanWage()
		require.True(t, ok)
		assert.InDelta(t, 2500, wage, 1e-9)

		// Admissions across a dimension's groups always sum to included rows.
		for _, dim := range domain.Dimensions() {
			var total int64
			for _, row := range result.Rows {
				if row.Dimension == dim {
					total += row.Admissions
				}
			}
			assert.Equal(t, result.Quality.IncludedRows, total, "dimension %s", dim)
		}
	})

	t.Run("outliers counted but excluded from sums", func(t *testing.T) {
		records := []*domain.MovementRecord{
			record("1", 2000, 30),
			record("1", 2000, 30),
			record("1", 2000, 30),
			record("1", -50, 30),    // non-positive wage
			record("1", 2000, 12),   // under MinAge
			record("1", 2000, 95),   // over MaxAge
			record("1", 250000, 30), // over MaxWage
		}
		result, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)

		assert.Equal(t, int64(7), result.Quality.TotalRows)
		assert.Equal(t, int64(3), result.Quality.IncludedRows)
		assert.Equal(t, int64(4), result.Quality.OutlierRows)

		male := findRow(result.Rows, domain.DimensionGender, "1")
		require.NotNil(t, male)
		assert.Equal(t, int64(3), male.Admissions)
		assert.InDelta(t, 6000, male.WageSum, 1e-9)
	})

	t.Run("small groups flagged low confidence", func(t *testing.T) {
		records := []*domain.MovementRecord{
			record("1", 2000, 30),
			record("1", 2000, 30),
			record("1", 2000, 30),
			record("3", 9000, 30),
		}
		result, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)

		female := findRow(result.Rows, domain.DimensionGender, "3")
		require.NotNil(t, female)
		assert.True(t, female.LowConfidence)
		_, ok := female.MeanWage()
		assert.False(t, ok)

		male := findRow(result.Rows, domain.DimensionGender, "1")
		require.NotNil(t, male)
		assert.False(t, male.LowConfidence)
	})

	t.Run("quality report tracks unknown shares and wage quantiles", func(t *testing.T) {
		records := []*domain.MovementRecord{
			record("1", 1000, 30),
			record("1", 2000, 30),
			record("9", 3000, 30), // unknown gender
			record("1", 4000, 30),
		}
		result, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)

		q := result.Quality
		assert.InDelta(t, 0.25, q.UnknownShare[domain.DimensionGender], 1e-9)
		assert.Zero(t, q.UnknownShare[domain.DimensionRace])
		assert.InDelta(t, 2500, q.WageMedian, 1e-9)
		// No outliers, so the worst unknown share sets the weight.
		assert.InDelta(t, 0.75, q.Weight(), 1e-9)
	})

	t.Run("regression cells cross category with education and region", func(t *testing.T) {
		recA := record("1", 2000, 30)
		recB := record("1", 3000, 40)
		recB.Education = "7"
		recC := record("3", 1800, 28)
		recC.Municipality = "410690" // SUL

		result, err := Aggregate(testConfig(), period, feed([]*domain.MovementRecord{recA, recB, recC}))
		require.NoError(t, err)

		var genderCells []domain.RegressionGroup
		for _, g := range result.Groups {
			if g.Dimension == domain.DimensionGender {
				genderCells = append(genderCells, g)
			}
		}
		require.Len(t, genderCells, 3)
		assert.Equal(t, "1", genderCells[0].Category)
		assert.Equal(t, "5", genderCells[0].Education)
		assert.Equal(t, "SUDESTE", genderCells[0].Region)
		assert.Equal(t, "7", genderCells[1].Education)
		assert.Equal(t, "SUL", genderCells[2].Region)
	})

	t.Run("stray period is an error", func(t *testing.T) {
		stray := record("1", 2000, 30)
		stray.Period = domain.MustParsePeriod("202302")
		_, err := Aggregate(testConfig(), period, feed([]*domain.MovementRecord{stray}))
		assert.ErrorContains(t, err, "clean file")
	})

	t.Run("empty input reports no data", func(t *testing.T) {
		_, err := Aggregate(testConfig(), period, feed(nil))
		assert.ErrorIs(t, err, pipeline.ErrNoInputData)
	})

	t.Run("deterministic output for identical input", func(t *testing.T) {
		records := []*domain.MovementRecord{
			record("1", 2000, 30),
			record("3", 1800, 28),
			record("9", 1500, 22),
		}
		a, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)
		b, err := Aggregate(testConfig(), period, feed(records))
		require.NoError(t, err)
		assert.Equal(t, a.Rows, b.Rows)
		assert.Equal(t, a.Groups, b.Groups)
	})
}

func TestAggregatorRun(t *testing.T) {
	dir := t.TempDir()
	paths := &config.Paths{
		DataDir:      dir,
		DownloadsDir: filepath.Join(dir, "downloads"),
		CleanDir:     filepath.Join(dir, "clean"),
		ExportsDir:   filepath.Join(dir, "exports"),
		StoreFile:    filepath.Join(dir, "caged.db"),
		ManifestFile: filepath.Join(dir, "manifest.txt"),
	}
	require.NoError(t, paths.EnsureDirectories())

	st, err := store.Open(paths.StoreFile)
	require.NoError(t, err)
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := NewAggregator(testConfig(), paths, st, logger)

	t.Run("no clean files reports no input", func(t *testing.T) {
		assert.ErrorIs(t, agg.Run(context.Background()), pipeline.ErrNoInputData)
	})

	writeClean := func(period string, rows ...string) {
		header := "competencia_mov,municipio,cnae20subclasse,cbo2002ocupacao,grau_instrucao,idade,raca_cor,genero,salario,tipo_movimentacao,tipo_deficiencia"
		content := header + "\n" + strings.Join(rows, "\n") + "\n"
		require.NoError(t, os.WriteFile(paths.CleanCSVPath(period), []byte(content), 0644))
	}

	t.Run("aggregates clean files into the store", func(t *testing.T) {
		writeClean("202301",
			"202301,355030,4711301,521110,5,30,1,1,2000.00,10,0",
			"202301,355030,4711301,521110,5,40,1,1,3000.00,10,0",
			"202301,355030,4711301,521110,5,35,1,1,2500.00,10,0",
			"202301,410690,4711301,521110,7,28,2,3,1800.00,10,0",
		)

		require.NoError(t, agg.Run(context.Background()))

		ctx := context.Background()
		rows, err := st.AggregateRows(ctx, store.AggregateFilter{Dimension: domain.DimensionGender})
		require.NoError(t, err)
		male := findRow(rows, domain.DimensionGender, "1")
		require.NotNil(t, male)
		assert.Equal(t, int64(3), male.Admissions)

		q, err := st.QualityReport(ctx, domain.MustParsePeriod("202301"))
		require.NoError(t, err)
		assert.Equal(t, int64(4), q.TotalRows)
	})

	t.Run("re-running replaces the period wholesale", func(t *testing.T) {
		writeClean("202301",
			"202301,355030,4711301,521110,5,30,1,1,2000.00,10,0",
		)

		require.NoError(t, agg.Run(context.Background()))

		rows, err := st.AggregateRows(context.Background(), store.AggregateFilter{Dimension: domain.DimensionGender})
		require.NoError(t, err)
		male := findRow(rows, domain.DimensionGender, "1")
		require.NotNil(t, male)
		assert.Equal(t, int64(1), male.Admissions)
		assert.Nil(t, findRow(rows, domain.DimensionGender, "3"))
	})
}
