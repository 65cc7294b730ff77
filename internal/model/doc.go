// Package model fits the statistical models on aggregated CAGED data:
// cross-sectional OLS wage-gap regressions per demographic dimension, and
// per-category SARIMA wage projections with a fixed 12-month season.
//
// Fitting functions are pure (aggregate data in, artifact out); all store
// I/O happens in the Modeler orchestration so the math is independently
// testable. Slices that cannot be modeled come back as artifacts with an
// explanatory status, never as panics: the dashboard shows them as gaps.
package model
