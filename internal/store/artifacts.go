package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cagedcli/pkg/contracts/domain"
)

// SaveModelRun persists a modeler invocation and its artifacts in one
// transaction. Earlier runs stay untouched; readers always pick the latest
// run, so artifacts are superseded rather than mutated.
func (s *Store) SaveModelRun(ctx context.Context, run domain.ModelRun,
	regressions []domain.RegressionArtifact, projections []domain.ProjectionArtifact) error {

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO model_runs (id, started_at, from_period, to_period)
			VALUES (?, ?, ?, ?)`,
			run.ID, run.StartedAt.UTC().Format(time.RFC3339),
			run.FromPeriod.Key(), run.ToPeriod.Key(),
		); err != nil {
			return fmt.Errorf("insert model run: %w", err)
		}

		for _, reg := range regressions {
			if err := insertRegression(ctx, tx, run.ID, reg); err != nil {
				return err
			}
		}
		for _, proj := range projections {
			if err := insertProjection(ctx, tx, run.ID, proj); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRegression(ctx context.Context, tx *sql.Tx, runID string, reg domain.RegressionArtifact) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO regression_results (run_id, dimension, status, baseline, n, r_squared, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, string(reg.Dimension), string(reg.Status), reg.Baseline,
		reg.N, reg.RSquared, reg.Message,
	); err != nil {
		return fmt.Errorf("insert regression result: %w", err)
	}

	for _, term := range reg.Terms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO regression_terms
				(run_id, dimension, name, estimate, std_err, t_value, p_value, ci_low, ci_high)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(reg.Dimension), term.Name,
			term.Estimate, term.StdErr, term.TValue, term.PValue, term.CILow, term.CIHigh,
		); err != nil {
			return fmt.Errorf("insert regression term %s: %w", term.Name, err)
		}
	}
	return nil
}

func insertProjection(ctx context.Context, tx *sql.Tx, runID string, proj domain.ProjectionArtifact) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections
			(run_id, dimension, category, status, p, d, q, sp, sd, sq, m, aic, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(proj.Dimension), proj.Category, string(proj.Status),
		proj.Order.P, proj.Order.D, proj.Order.Q,
		proj.Order.SP, proj.Order.SD, proj.Order.SQ, proj.Order.SeasonalPeriod,
		proj.AIC, proj.Message,
	); err != nil {
		return fmt.Errorf("insert projection: %w", err)
	}

	for _, pt := range proj.Points {
		var low, high sql.NullFloat64
		if pt.Forecast {
			low = sql.NullFloat64{Float64: pt.Low, Valid: true}
			high = sql.NullFloat64{Float64: pt.High, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projection_points
				(run_id, dimension, category, period, value, low, high, forecast)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(proj.Dimension), proj.Category, pt.Period.Key(),
			pt.Value, low, high, boolToInt(pt.Forecast),
		); err != nil {
			return fmt.Errorf("insert projection point: %w", err)
		}
	}
	return nil
}

// LatestRun returns the most recent model run, or nil when none exists.
func (s *Store) LatestRun(ctx context.Context) (*domain.ModelRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, from_period, to_period
		FROM model_runs ORDER BY started_at DESC, id DESC LIMIT 1`)

	var run domain.ModelRun
	var startedAt, fromKey, toKey string
	err := row.Scan(&run.ID, &startedAt, &fromKey, &toKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parse run timestamp: %w", err)
	}
	if run.FromPeriod, err = parsePeriodKey(fromKey); err != nil {
		return nil, err
	}
	if run.ToPeriod, err = parsePeriodKey(toKey); err != nil {
		return nil, err
	}
	return &run, nil
}

// Regressions returns the regression artifacts of a run.
func (s *Store) Regressions(ctx context.Context, runID string) ([]domain.RegressionArtifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dimension, status, baseline, n, r_squared, message
		FROM regression_results WHERE run_id = ? ORDER BY dimension`, runID)
	if err != nil {
		return nil, fmt.Errorf("query regressions: %w", err)
	}

	var out []domain.RegressionArtifact
	for rows.Next() {
		var reg domain.RegressionArtifact
		var dim, status string
		if err := rows.Scan(&dim, &status, &reg.Baseline, &reg.N, &reg.RSquared, &reg.Message); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan regression: %w", err)
		}
		reg.RunID = runID
		reg.Dimension = domain.Dimension(dim)
		reg.Status = domain.ArtifactStatus(status)
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate regressions: %w", err)
	}
	// The pool holds a single connection; the cursor must be released
	// before the per-dimension term queries can run.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close regressions: %w", err)
	}

	for i := range out {
		if out[i].Terms, err = s.regressionTerms(ctx, runID, out[i].Dimension); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) regressionTerms(ctx context.Context, runID string, dim domain.Dimension) ([]domain.RegressionTerm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, estimate, std_err, t_value, p_value, ci_low, ci_high
		FROM regression_terms WHERE run_id = ? AND dimension = ? ORDER BY name`,
		runID, string(dim))
	if err != nil {
		return nil, fmt.Errorf("query regression terms: %w", err)
	}
	defer rows.Close()

	var terms []domain.RegressionTerm
	for rows.Next() {
		var t domain.RegressionTerm
		if err := rows.Scan(&t.Name, &t.Estimate, &t.StdErr, &t.TValue, &t.PValue, &t.CILow, &t.CIHigh); err != nil {
			return nil, fmt.Errorf("scan regression term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// Projection returns one category's projection artifact from a run, or nil
// when the modeler produced none for that slice.
func (s *Store) Projection(ctx context.Context, runID string, dim domain.Dimension, category string) (*domain.ProjectionArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, p, d, q, sp, sd, sq, m, aic, message
		FROM projections WHERE run_id = ? AND dimension = ? AND category = ?`,
		runID, string(dim), category)

	proj := &domain.ProjectionArtifact{RunID: runID, Dimension: dim, Category: category}
	var status string
	err := row.Scan(&status,
		&proj.Order.P, &proj.Order.D, &proj.Order.Q,
		&proj.Order.SP, &proj.Order.SD, &proj.Order.SQ, &proj.Order.SeasonalPeriod,
		&proj.AIC, &proj.Message)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query projection: %w", err)
	}
	proj.Status = domain.ArtifactStatus(status)

	points, err := s.db.QueryContext(ctx, `
		SELECT period, value, low, high, forecast
		FROM projection_points
		WHERE run_id = ? AND dimension = ? AND category = ?
		ORDER BY period`, runID, string(dim), category)
	if err != nil {
		return nil, fmt.Errorf("query projection points: %w", err)
	}
	defer points.Close()

	for points.Next() {
		var pt domain.ProjectionPoint
		var key string
		var low, high sql.NullFloat64
		var forecast int
		if err := points.Scan(&key, &pt.Value, &low, &high, &forecast); err != nil {
			return nil, fmt.Errorf("scan projection point: %w", err)
		}
		if pt.Period, err = parsePeriodKey(key); err != nil {
			return nil, err
		}
		pt.Low, pt.High = low.Float64, high.Float64
		pt.Forecast = forecast != 0
		proj.Points = append(proj.Points, pt)
	}
	return proj, points.Err()
}
