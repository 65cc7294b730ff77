// Package pipeline holds the small amount of shared machinery between the
// stage CLIs: the sequential runner and the errors stages use to signal
// run-level outcomes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoInputData is returned by a stage that found nothing to process.
// It is the one non-recoverable condition in the pipeline: every other
// failure degrades to a skipped file, a flagged group or a gap artifact.
var ErrNoInputData = errors.New("no input data")

// Stage is one batch step. Stages run to completion or fail the run; there
// is no partial resume, idempotent re-execution is the recovery mechanism.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context) error
}

func (s StageFunc) Name() string                  { return s.StageName }
func (s StageFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// Run executes stages strictly in order, logging duration per stage. The
// first failure aborts the run; downstream stages never see partial input
// because each stage only reads its predecessor's committed output.
func Run(ctx context.Context, logger *slog.Logger, stages ...Stage) error {
	for _, stage := range stages {
		start := time.Now()
		logger.Info("stage starting", slog.String("stage", stage.Name()))

		if err := stage.Run(ctx); err != nil {
			logger.Error("stage failed",
				slog.String("stage", stage.Name()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()))
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		logger.Info("stage finished",
			slog.String("stage", stage.Name()),
			slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}
