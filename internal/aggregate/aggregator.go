// Package aggregate builds the per-period summary tables: admission count,
// wage sum and age sum per demographic group, for each of the four
// dimensions independently (no cross-product). The outlier policy lives
// here rather than in conversion so raw admission counts stay complete.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/montanaflynn/stats"

	"cagedcli/internal/config"
	"cagedcli/internal/convert"
	"cagedcli/internal/pipeline"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// Aggregator owns the aggregation stage.
type Aggregator struct {
	cfg    config.AggregateConfig
	paths  *config.Paths
	store  *store.Store
	logger *slog.Logger
}

// NewAggregator builds the aggregation stage.
func NewAggregator(cfg config.AggregateConfig, paths *config.Paths, st *store.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		paths:  paths,
		store:  st,
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

// Name implements pipeline.Stage.
func (a *Aggregator) Name() string { return "aggregate" }

var cleanFilePattern = regexp.MustCompile(`CAGEDMOV_clean_(\d{6})\.csv$`)

// Run aggregates every clean CSV into the store, overwriting each period's
// rows wholesale so re-runs are idempotent.
func (a *Aggregator) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(a.paths.CleanDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("glob clean files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("clean directory %s: %w", a.paths.CleanDir, pipeline.ErrNoInputData)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		match := cleanFilePattern.FindStringSubmatch(path)
		if match == nil {
			a.logger.Warn("ignoring unrecognized file in clean directory",
				slog.String("file", filepath.Base(path)))
			continue
		}
		period, err := domain.ParsePeriod(match[1])
		if err != nil {
			return err
		}

		result, err := a.aggregateFile(path, period)
		if err != nil {
			return err
		}
		if err := a.store.ReplacePeriod(ctx, period, result.Rows, result.Groups, result.Quality); err != nil {
			return err
		}
		a.logger.Info("aggregated period",
			slog.String("period", period.Key()),
			slog.Int64("rows", result.Quality.TotalRows),
			slog.Int64("outliers", result.Quality.OutlierRows),
			slog.Int("groups", len(result.Rows)))
	}
	return nil
}

func (a *Aggregator) aggregateFile(path string, period domain.Period) (*Result, error) {
	r, err := convert.OpenClean(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return Aggregate(a.cfg, period, func() (*domain.MovementRecord, error) {
		rec, err := r.Next()
		if err == io.EOF {
			return nil, nil
		}
		return rec, err
	})
}

// Result is one period's aggregation output.
type Result struct {
	Rows    []domain.AggregateRow
	Groups  []domain.RegressionGroup
	Quality *domain.QualityReport
}

type groupAcc struct {
	count   int64
	wageSum float64
	ageSum  float64
}

// cellKey keys a regression cell within one dimension.
type cellKey struct {
	category  string
	education string
	region    string
}

// Aggregate consumes records from next (which returns nil, nil at the end)
// and produces the period's aggregate rows and quality report. It is a pure
// function of its input: identical input yields identical output, which is
// what makes re-aggregation idempotent.
func Aggregate(cfg config.AggregateConfig, period domain.Period, next func() (*domain.MovementRecord, error)) (*Result, error) {
	groups := make(map[domain.Dimension]map[string]*groupAcc)
	cells := make(map[domain.Dimension]map[cellKey]*groupAcc)
	unknowns := make(map[domain.Dimension]int64)
	for _, dim := range domain.Dimensions() {
		groups[dim] = make(map[string]*groupAcc)
		cells[dim] = make(map[cellKey]*groupAcc)
	}

	quality := &domain.QualityReport{
		Period:       period,
		UnknownShare: make(map[domain.Dimension]float64),
	}
	var wages []float64

	for {
		rec, err := next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if rec.Period != period {
			// Clean files are per-period; a stray row signals converter
			// breakage, not bad source data.
			return nil, fmt.Errorf("record for %s in clean file of %s", rec.Period.Key(), period.Key())
		}
		quality.TotalRows++

		if isOutlier(cfg, rec) {
			quality.OutlierRows++
			continue
		}
		quality.IncludedRows++
		wages = append(wages, rec.Wage)

		region := rec.Region()
		for _, dim := range domain.Dimensions() {
			code := rec.CategoryCode(dim)
			if code == dim.UnknownCode() {
				unknowns[dim]++
			}
			acc := groups[dim][code]
			if acc == nil {
				acc = &groupAcc{}
				groups[dim][code] = acc
			}
			acc.count++
			acc.wageSum += rec.Wage
			acc.ageSum += float64(rec.Age)

			key := cellKey{category: code, education: rec.Education, region: region}
			cell := cells[dim][key]
			if cell == nil {
				cell = &groupAcc{}
				cells[dim][key] = cell
			}
			cell.count++
			cell.wageSum += rec.Wage
			cell.ageSum += float64(rec.Age)
		}
	}

	if quality.TotalRows == 0 {
		return nil, fmt.Errorf("period %s: %w", period.Key(), pipeline.ErrNoInputData)
	}

	if quality.IncludedRows > 0 {
		for _, dim := range domain.Dimensions() {
			quality.UnknownShare[dim] = float64(unknowns[dim]) / float64(quality.IncludedRows)
		}
		quality.WageMedian, _ = stats.Median(wages)
		quality.WageP90, _ = stats.Percentile(wages, 90)
	}

	var rows []domain.AggregateRow
	for _, dim := range domain.Dimensions() {
		for code, acc := range groups[dim] {
			rows = append(rows, domain.AggregateRow{
				Period:        period,
				Dimension:     dim,
				Category:      code,
				Admissions:    acc.count,
				WageSum:       acc.wageSum,
				AgeSum:        acc.ageSum,
				LowConfidence: acc.count < cfg.MinSampleSize,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Dimension != rows[j].Dimension {
			return rows[i].Dimension < rows[j].Dimension
		}
		return rows[i].Category < rows[j].Category
	})

	var regGroups []domain.RegressionGroup
	for _, dim := range domain.Dimensions() {
		for key, acc := range cells[dim] {
			regGroups = append(regGroups, domain.RegressionGroup{
				Period:     period,
				Dimension:  dim,
				Category:   key.category,
				Education:  key.education,
				Region:     key.region,
				Admissions: acc.count,
				WageSum:    acc.wageSum,
				AgeSum:     acc.ageSum,
			})
		}
	}
	sort.Slice(regGroups, func(i, j int) bool {
		a, b := regGroups[i], regGroups[j]
		if a.Dimension != b.Dimension {
			return a.Dimension < b.Dimension
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Education != b.Education {
			return a.Education < b.Education
		}
		return a.Region < b.Region
	})

	return &Result{Rows: rows, Groups: regGroups, Quality: quality}, nil
}

// isOutlier applies the documented exclusion policy: implausible ages and
// non-positive or implausibly large wages are kept out of metric sums but
// still counted as raw admissions.
func isOutlier(cfg config.AggregateConfig, rec *domain.MovementRecord) bool {
	if rec.Age < cfg.MinAge || rec.Age > cfg.MaxAge {
		return true
	}
	return rec.Wage <= 0 || rec.Wage >= cfg.MaxWage
}
