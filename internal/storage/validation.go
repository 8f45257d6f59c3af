// Package storage provides the data persistence layer for annotations
// and categories, keyed by document namespace.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrCategoryNotFound = errors.New("category not found")
	ErrIncompleteOrder  = errors.New("reorder must list every category exactly once")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAnnotation validates a single annotation record.
func validateAnnotation(a *model.Annotation) error {
	if a == nil {
		return fmt.Errorf("%w: annotation", ErrNilParameter)
	}
	return a.Validate()
}

// validateAnnotations validates a slice of annotations.
func validateAnnotations(annotations []model.Annotation) error {
	if annotations == nil {
		return fmt.Errorf("%w: annotations", ErrNilParameter)
	}
	if len(annotations) == 0 {
		return fmt.Errorf("%w: annotations", ErrEmptySlice)
	}

	for i, a := range annotations {
		if err := validateAnnotation(&a); err != nil {
			return fmt.Errorf("annotation at index %d: %w", i, err)
		}
	}
	return nil
}

// validateCategory validates a category record.
func validateCategory(c *model.Category) error {
	if c == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if err := validateString(c.ID, "category id"); err != nil {
		return err
	}
	if err := validateString(c.Name, "category name"); err != nil {
		return err
	}
	if !model.IsHexColor(c.Color) {
		return fmt.Errorf("%w: color %q", ErrInvalidCategory, c.Color)
	}
	return nil
}
