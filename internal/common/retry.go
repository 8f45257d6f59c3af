package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/service"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Generation is a monotonically increasing token for asynchronous work.
// A retry chain records the generation it was started under and stops
// as soon as a newer generation exists, so a late-firing retry from a
// superseded request cannot override newer state.
type Generation uint64

// RetryTask is a bounded retry chain guarded by a generation check.
// Before every attempt it compares its own generation against the
// current one; a superseded task stops silently with ErrSuperseded.
type RetryTask struct {
	Current func() Generation
	Op      func() error
	Gen     Generation
}

// Run executes the task under the given retry policy. A nil Current
// function disables the generation check.
func (t RetryTask) Run(ctx context.Context, opts service.RetryOptions) error {
	return WithRetry(ctx, func() error {
		if t.Current != nil && t.Current() != t.Gen {
			return ErrSuperseded
		}
		return t.Op()
	}, opts)
}

// WithRetry executes an operation with configurable retry behavior.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
		}

		slog.Debug("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return ErrMaxRetries
}
