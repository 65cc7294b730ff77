package store

import (
	"context"
	"database/sql"
	"fmt"

	"cagedcli/pkg/contracts/domain"
)

// ReplacePeriod atomically replaces a period's aggregate rows, regression
// groups and quality report. This is the aggregation stage's idempotency
// mechanism: running it twice on the same input leaves identical rows.
func (s *Store) ReplacePeriod(ctx context.Context, period domain.Period, rows []domain.AggregateRow, groups []domain.RegressionGroup, quality *domain.QualityReport) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		key := period.Key()
		if _, err := tx.ExecContext(ctx, `DELETE FROM aggregate_rows WHERE period = ?`, key); err != nil {
			return fmt.Errorf("clear period %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM regression_groups WHERE period = ?`, key); err != nil {
			return fmt.Errorf("clear regression groups %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quality_reports WHERE period = ?`, key); err != nil {
			return fmt.Errorf("clear quality %s: %w", key, err)
		}

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO aggregate_rows
				(period, dimension, category, admissions, wage_sum, age_sum, mean_wage, mean_age, low_confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer insert.Close()

		for _, row := range rows {
			var meanWage, meanAge sql.NullFloat64
			if v, ok := row.MeanWage(); ok {
				meanWage = sql.NullFloat64{Float64: v, Valid: true}
			}
			if v, ok := row.MeanAge(); ok {
				meanAge = sql.NullFloat64{Float64: v, Valid: true}
			}
			if _, err := insert.ExecContext(ctx,
				key, string(row.Dimension), row.Category,
				row.Admissions, row.WageSum, row.AgeSum,
				meanWage, meanAge, boolToInt(row.LowConfidence),
			); err != nil {
				return fmt.Errorf("insert aggregate row: %w", err)
			}
		}

		insertGroup, err := tx.PrepareContext(ctx, `
			INSERT INTO regression_groups
				(period, dimension, category, education, region, admissions, wage_sum, age_sum)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare group insert: %w", err)
		}
		defer insertGroup.Close()

		for _, g := range groups {
			if _, err := insertGroup.ExecContext(ctx,
				key, string(g.Dimension), g.Category, g.Education, g.Region,
				g.Admissions, g.WageSum, g.AgeSum,
			); err != nil {
				return fmt.Errorf("insert regression group: %w", err)
			}
		}

		if quality != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO quality_reports
					(period, total_rows, included_rows, outlier_rows, wage_median, wage_p90,
					 unknown_gender, unknown_race, unknown_education, unknown_disability)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				key, quality.TotalRows, quality.IncludedRows, quality.OutlierRows,
				quality.WageMedian, quality.WageP90,
				quality.UnknownShare[domain.DimensionGender],
				quality.UnknownShare[domain.DimensionRace],
				quality.UnknownShare[domain.DimensionEducation],
				quality.UnknownShare[domain.DimensionDisability],
			); err != nil {
				return fmt.Errorf("insert quality report: %w", err)
			}
		}
		return nil
	})
}

// AggregateFilter narrows AggregateRows queries. Zero values mean no bound.
type AggregateFilter struct {
	Dimension domain.Dimension
	Category  string
	From      domain.Period
	To        domain.Period
}

// AggregateRows returns rows matching the filter ordered by period, then
// dimension, then category.
func (s *Store) AggregateRows(ctx context.Context, f AggregateFilter) ([]domain.AggregateRow, error) {
	query := `
		SELECT period, dimension, category, admissions, wage_sum, age_sum, low_confidence
		FROM aggregate_rows WHERE 1=1`
	var args []any
	if f.Dimension != "" {
		query += ` AND dimension = ?`
		args = append(args, string(f.Dimension))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		query += ` AND period >= ?`
		args = append(args, f.From.Key())
	}
	if !f.To.IsZero() {
		query += ` AND period <= ?`
		args = append(args, f.To.Key())
	}
	query += ` ORDER BY period, dimension, category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregate rows: %w", err)
	}
	defer rows.Close()

	var out []domain.AggregateRow
	for rows.Next() {
		var (
			periodKey, dimension string
			row                  domain.AggregateRow
			lowConfidence        int
		)
		if err := rows.Scan(&periodKey, &dimension, &row.Category,
			&row.Admissions, &row.WageSum, &row.AgeSum, &lowConfidence); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		period, err := parsePeriodKey(periodKey)
		if err != nil {
			return nil, err
		}
		row.Period = period
		row.Dimension = domain.Dimension(dimension)
		row.LowConfidence = lowConfidence != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// PeriodBounds returns the earliest and latest period with aggregate rows.
// ok is false when the store is empty.
func (s *Store) PeriodBounds(ctx context.Context) (min, max domain.Period, ok bool, err error) {
	var minKey, maxKey sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT MIN(period), MAX(period) FROM aggregate_rows`)
	if err := row.Scan(&minKey, &maxKey); err != nil {
		return min, max, false, fmt.Errorf("query period bounds: %w", err)
	}
	if !minKey.Valid || !maxKey.Valid {
		return min, max, false, nil
	}
	if min, err = parsePeriodKey(minKey.String); err != nil {
		return min, max, false, err
	}
	if max, err = parsePeriodKey(maxKey.String); err != nil {
		return min, max, false, err
	}
	return min, max, true, nil
}

// QualityReport returns the quality report for one period, or nil when the
// period has none.
func (s *Store) QualityReport(ctx context.Context, period domain.Period) (*domain.QualityReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT total_rows, included_rows, outlier_rows, wage_median, wage_p90,
		       unknown_gender, unknown_race, unknown_education, unknown_disability
		FROM quality_reports WHERE period = ?`, period.Key())

	q := &domain.QualityReport{Period: period, UnknownShare: make(map[domain.Dimension]float64)}
	var g, r, e, d float64
	err := row.Scan(&q.TotalRows, &q.IncludedRows, &q.OutlierRows,
		&q.WageMedian, &q.WageP90, &g, &r, &e, &d)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query quality report: %w", err)
	}
	q.UnknownShare[domain.DimensionGender] = g
	q.UnknownShare[domain.DimensionRace] = r
	q.UnknownShare[domain.DimensionEducation] = e
	q.UnknownShare[domain.DimensionDisability] = d
	return q, nil
}

// QualityReports returns all quality reports keyed by period.
func (s *Store) QualityReports(ctx context.Context) (map[domain.Period]*domain.QualityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, total_rows, included_rows, outlier_rows, wage_median, wage_p90,
		       unknown_gender, unknown_race, unknown_education, unknown_disability
		FROM quality_reports`)
	if err != nil {
		return nil, fmt.Errorf("query quality reports: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Period]*domain.QualityReport)
	for rows.Next() {
		var key string
		q := &domain.QualityReport{UnknownShare: make(map[domain.Dimension]float64)}
		var g, r, e, d float64
		if err := rows.Scan(&key, &q.TotalRows, &q.IncludedRows, &q.OutlierRows,
			&q.WageMedian, &q.WageP90, &g, &r, &e, &d); err != nil {
			return nil, fmt.Errorf("scan quality report: %w", err)
		}
		period, err := parsePeriodKey(key)
		if err != nil {
			return nil, err
		}
		q.Period = period
		q.UnknownShare[domain.DimensionGender] = g
		q.UnknownShare[domain.DimensionRace] = r
		q.UnknownShare[domain.DimensionEducation] = e
		q.UnknownShare[domain.DimensionDisability] = d
		out[period] = q
	}
	return out, rows.Err()
}

// RegressionGroups returns one dimension's regression cells pooled across
// all periods: the modeler fits on pooled cells, so the store does the
// cross-period summation server-side the way the original pipeline did.
func (s *Store) RegressionGroups(ctx context.Context, dim domain.Dimension) ([]domain.RegressionGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, education, region,
		       SUM(admissions), SUM(wage_sum), SUM(age_sum)
		FROM regression_groups
		WHERE dimension = ? AND admissions > 0 AND wage_sum > 0
		GROUP BY category, education, region
		ORDER BY category, education, region`, string(dim))
	if err != nil {
		return nil, fmt.Errorf("query regression groups: %w", err)
	}
	defer rows.Close()

	var out []domain.RegressionGroup
	for rows.Next() {
		g := domain.RegressionGroup{Dimension: dim}
		if err := rows.Scan(&g.Category, &g.Education, &g.Region,
			&g.Admissions, &g.WageSum, &g.AgeSum); err != nil {
			return nil, fmt.Errorf("scan regression group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// parsePeriodKey converts the stored yyyy-mm key back to a Period.
func parsePeriodKey(key string) (domain.Period, error) {
	if len(key) == 7 && key[4] == '-' {
		return domain.ParsePeriod(key[:4] + key[5:])
	}
	return domain.Period{}, fmt.Errorf("malformed period key %q", key)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
