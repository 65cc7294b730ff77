package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun(t *testing.T) {
	t.Run("runs stages in order", func(t *testing.T) {
		var order []string
		step := func(name string) Stage {
			return StageFunc{StageName: name, Fn: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			}}
		}
		err := Run(context.Background(), discard(), step("convert"), step("aggregate"), step("model"))
		require.NoError(t, err)
		assert.Equal(t, []string{"convert", "aggregate", "model"}, order)
	})

	t.Run("first failure aborts the run", func(t *testing.T) {
		boom := errors.New("boom")
		ran := false
		err := Run(context.Background(), discard(),
			StageFunc{StageName: "broken", Fn: func(ctx context.Context) error { return boom }},
			StageFunc{StageName: "after", Fn: func(ctx context.Context) error { ran = true; return nil }},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "stage broken")
		assert.False(t, ran)
	})

	t.Run("no-input sentinel is preserved through wrapping", func(t *testing.T) {
		err := Run(context.Background(), discard(),
			StageFunc{StageName: "aggregate", Fn: func(ctx context.Context) error {
				return ErrNoInputData
			}})
		assert.ErrorIs(t, err, ErrNoInputData)
	})
}
