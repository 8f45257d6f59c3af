package model

import "errors"

// Validation errors surfaced at operation boundaries before any state
// is mutated.
var (
	ErrMissingID      = errors.New("annotation id cannot be empty")
	ErrInvalidType    = errors.New("invalid annotation type")
	ErrInvalidPage    = errors.New("page number must be positive")
	ErrEmptySignature = errors.New("anchorable annotation requires a non-empty signature")
	ErrInvalidColor   = errors.New("color must be a hex value or a legacy color name")
)
