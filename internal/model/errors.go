package model

import "errors"

var (
	// ErrInsufficientData signals a regression design with too few groups
	// or a rank-deficient design matrix (a category with zero
	// representation collapses a dummy column).
	ErrInsufficientData = errors.New("insufficient data for regression")

	// ErrInsufficientHistory signals a series shorter than two full
	// seasonal cycles, on which a seasonal fit would be noise.
	ErrInsufficientHistory = errors.New("insufficient history for seasonal model")

	// ErrFitFailed signals that the numerical optimization produced no
	// usable parameters for any candidate order.
	ErrFitFailed = errors.New("model fit failed")
)
