// Package config provides the pipeline configuration loaded from a YAML
// file with CAGED_* environment overrides, including the documented
// statistical policy constants (outlier bounds, minimum sample size,
// quality cutoff) and the shared data directory layout.
package config
