package domain

// AggregateRow is one summarized demographic group in one reference month.
// Exactly one row exists per (period, dimension, category); re-aggregating a
// period replaces its rows wholesale so the invariant survives re-runs.
type AggregateRow struct {
	Period     Period    `json:"period"`
	Dimension  Dimension `json:"dimension"`
	Category   string    `json:"category"`
	Admissions int64     `json:"admissions"`
	WageSum    float64   `json:"wage_sum"`
	AgeSum     float64   `json:"age_sum"`

	// LowConfidence marks groups below the minimum sample size. Their mean
	// wage and age are stored as NULL so small-sample artifacts never reach
	// the dashboard as if they were solid estimates.
	LowConfidence bool `json:"low_confidence"`
}

// MeanWage returns the group's mean wage, or NaN-free zero value semantics:
// ok=false when the group is empty or low-confidence.
func (r *AggregateRow) MeanWage() (float64, bool) {
	if r.LowConfidence || r.Admissions == 0 {
		return 0, false
	}
	return r.WageSum / float64(r.Admissions), true
}

// MeanAge returns the group's mean age when the group is usable.
func (r *AggregateRow) MeanAge() (float64, bool) {
	if r.LowConfidence || r.Admissions == 0 {
		return 0, false
	}
	return r.AgeSum / float64(r.Admissions), true
}

// RegressionGroup is the cross-tabulated cell the wage regression is fit
// on: one dimension category crossed with the education and region
// controls in one period. The aggregator produces these alongside the
// per-dimension AggregateRows; only the modeler reads them.
type RegressionGroup struct {
	Period     Period    `json:"period"`
	Dimension  Dimension `json:"dimension"`
	Category   string    `json:"category"`
	Education  string    `json:"education"`
	Region     string    `json:"region"`
	Admissions int64     `json:"admissions"`
	WageSum    float64   `json:"wage_sum"`
	AgeSum     float64   `json:"age_sum"`
}

// MeanWage returns the cell's mean wage; ok is false for empty cells.
func (g *RegressionGroup) MeanWage() (float64, bool) {
	if g.Admissions == 0 {
		return 0, false
	}
	return g.WageSum / float64(g.Admissions), true
}

// QualityReport summarizes what conversion and outlier policy did to a
// period's raw rows. The dashboard shows it next to every chart, and the
// modeler uses Weight to keep badly covered months out of the series.
type QualityReport struct {
	Period       Period  `json:"period"`
	TotalRows    int64   `json:"total_rows"`    // normalized rows read
	IncludedRows int64   `json:"included_rows"` // rows inside the outlier policy
	OutlierRows  int64   `json:"outlier_rows"`  // excluded by wage/age bounds
	WageMedian   float64 `json:"wage_median"`
	WageP90      float64 `json:"wage_p90"`

	// UnknownShare is the fraction of included rows whose code on each
	// dimension was mapped to the explicit unknown category.
	UnknownShare map[Dimension]float64 `json:"unknown_share"`
}

// Weight is the month's quality weight in [0,1]: the share of rows that
// survived the outlier policy, discounted by the worst unknown share.
// Months below the series cutoff are excluded from SARIMA inputs.
func (q *QualityReport) Weight() float64 {
	if q.TotalRows == 0 {
		return 0
	}
	w := float64(q.IncludedRows) / float64(q.TotalRows)
	for _, share := range q.UnknownShare {
		if penalty := 1 - share; penalty < w {
			w = penalty
		}
	}
	if w < 0 {
		return 0
	}
	return w
}
