package domain

import "time"

// ArtifactStatus tells the dashboard whether a model slice is usable or why
// it is not. A missing model is a visible gap, never a handler error.
type ArtifactStatus string

const (
	StatusOK                  ArtifactStatus = "ok"
	StatusInsufficientData    ArtifactStatus = "insufficient_data"
	StatusInsufficientHistory ArtifactStatus = "insufficient_history"
	StatusFitFailed           ArtifactStatus = "fit_failed"
)

// ModelRun records one modeler invocation. Artifacts reference it so the
// dashboard can tell which fit superseded which; rows are never updated in
// place.
type ModelRun struct {
	ID         string    `json:"id"` // uuid
	StartedAt  time.Time `json:"started_at"`
	FromPeriod Period    `json:"from_period"`
	ToPeriod   Period    `json:"to_period"`
}

// RegressionTerm is one estimated coefficient of the wage regression.
// Coefficients are on log mean wage, so 100*coef reads as an approximate
// percent wage gap relative to the term's baseline level.
type RegressionTerm struct {
	Name     string  `json:"name"` // e.g. "gender_3", "region_SUL", "mean_age"
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
	CILow    float64 `json:"ci_low"`  // 95% interval
	CIHigh   float64 `json:"ci_high"`
}

// RegressionArtifact is the fitted cross-sectional wage model for one
// demographic dimension with education/region/age controls.
type RegressionArtifact struct {
	RunID     string           `json:"run_id"`
	Dimension Dimension        `json:"dimension"`
	Status    ArtifactStatus   `json:"status"`
	Baseline  string           `json:"baseline"` // held-out category code
	Terms     []RegressionTerm `json:"terms,omitempty"`
	N         int              `json:"n"`         // groups in the design
	RSquared  float64          `json:"r_squared"`
	Message   string           `json:"message,omitempty"` // set when Status != ok
}

// ProjectionPoint is one month of a salary series: either observed history
// (Forecast false) or a forecast with its prediction interval.
type ProjectionPoint struct {
	Period   Period  `json:"period"`
	Value    float64 `json:"value"`
	Low      float64 `json:"low,omitempty"`
	High     float64 `json:"high,omitempty"`
	Forecast bool    `json:"forecast"`
}

// SARIMAOrder is the (p,d,q)(P,D,Q)m order of a fitted seasonal model.
type SARIMAOrder struct {
	P              int `json:"p"`
	D              int `json:"d"`
	Q              int `json:"q"`
	SP             int `json:"sp"`
	SD             int `json:"sd"`
	SQ             int `json:"sq"`
	SeasonalPeriod int `json:"m"`
}

// ProjectionArtifact is the fitted SARIMA projection of mean wage for one
// demographic category.
type ProjectionArtifact struct {
	RunID     string            `json:"run_id"`
	Dimension Dimension         `json:"dimension"`
	Category  string            `json:"category"`
	Status    ArtifactStatus    `json:"status"`
	Order     SARIMAOrder       `json:"order"`
	AIC       float64           `json:"aic"`
	Points    []ProjectionPoint `json:"points,omitempty"`
	Message   string            `json:"message,omitempty"`
}
