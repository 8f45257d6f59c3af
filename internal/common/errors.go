// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Anchoring errors.
	ErrAnchorNotFound  = errors.New("anchor not found")
	ErrEmptySelection  = errors.New("empty selection")
	ErrPageNotRendered = errors.New("page not rendered")

	// Selection and reconciliation errors.
	ErrSuperseded = errors.New("operation superseded")

	// Category errors.
	ErrLastCategory = errors.New("cannot delete the last remaining category")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Superseded work is never retried; the newer generation owns the
	// state now.
	if errors.Is(err, ErrSuperseded) {
		return false
	}

	if errors.Is(err, ErrAnchorNotFound) ||
		errors.Is(err, ErrPageNotRendered) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
