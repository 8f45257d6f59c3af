package common

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/service"
)

func fastRetryOptions(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return nil
		}, fastRetryOptions(3))
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors until success", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			if calls < 3 {
				return ErrAnchorNotFound
			}
			return nil
		}, fastRetryOptions(5))
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return ErrPageNotRendered
		}, fastRetryOptions(4))
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 4, calls)
	})

	t.Run("non-retryable error returns immediately", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("broken schema")
		err := WithRetry(ctx, func() error {
			calls++
			return sentinel
		}, fastRetryOptions(4))
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("superseded is never retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return ErrSuperseded
		}, fastRetryOptions(4))
		assert.ErrorIs(t, err, ErrSuperseded)
		assert.Equal(t, 1, calls)
	})

	t.Run("honors context cancellation between attempts", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		err := WithRetry(cancelCtx, func() error {
			calls++
			cancel()
			return ErrAnchorNotFound
		}, fastRetryOptions(10))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryTask(t *testing.T) {
	ctx := context.Background()

	t.Run("runs while generation is current", func(t *testing.T) {
		var gen atomic.Uint64
		gen.Store(7)

		calls := 0
		task := RetryTask{
			Gen:     7,
			Current: func() Generation { return Generation(gen.Load()) },
			Op: func() error {
				calls++
				if calls < 2 {
					return ErrAnchorNotFound
				}
				return nil
			},
		}
		require.NoError(t, task.Run(ctx, fastRetryOptions(5)))
		assert.Equal(t, 2, calls)
	})

	t.Run("stops as soon as a newer generation exists", func(t *testing.T) {
		var gen atomic.Uint64
		gen.Store(7)

		calls := 0
		task := RetryTask{
			Gen:     7,
			Current: func() Generation { return Generation(gen.Load()) },
			Op: func() error {
				calls++
				// Something newer takes over after the first attempt.
				gen.Store(8)
				return ErrAnchorNotFound
			},
		}
		err := task.Run(ctx, fastRetryOptions(10))
		assert.ErrorIs(t, err, ErrSuperseded)
		assert.Equal(t, 1, calls)
	})

	t.Run("stale task never runs its op", func(t *testing.T) {
		calls := 0
		task := RetryTask{
			Gen:     3,
			Current: func() Generation { return 4 },
			Op: func() error {
				calls++
				return nil
			},
		}
		err := task.Run(ctx, fastRetryOptions(5))
		assert.ErrorIs(t, err, ErrSuperseded)
		assert.Zero(t, calls)
	})

	t.Run("nil Current disables the generation guard", func(t *testing.T) {
		task := RetryTask{
			Gen: 99,
			Op:  func() error { return nil },
		}
		require.NoError(t, task.Run(ctx, fastRetryOptions(3)))
	})
}
