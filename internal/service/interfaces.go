// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Storage defines the contract for the persistence layer. All
// operations are scoped to a document namespace, derived from the
// document's path and a content prefix.
type Storage interface {
	// Annotation operations
	SaveAnnotation(ctx context.Context, namespace string, annotation *model.Annotation) error
	SaveAnnotations(ctx context.Context, namespace string, annotations []model.Annotation) error
	GetAnnotations(ctx context.Context, namespace string) ([]model.Annotation, error)
	GetAnnotationByID(ctx context.Context, namespace, id string) (*model.Annotation, error)
	GetAnnotationsByPage(ctx context.Context, namespace string, pageNumber int) ([]model.Annotation, error)
	UpdateAnnotation(ctx context.Context, namespace string, annotation *model.Annotation) error
	RecolorAnnotationsByCategory(ctx context.Context, namespace, categoryID, color string) (int, error)
	DeleteAnnotation(ctx context.Context, namespace, id string) error
	MigrateLegacyColors(ctx context.Context, namespace string) (int, error)

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	UpdateCategory(ctx context.Context, category *model.Category) error
	ReorderCategories(ctx context.Context, orderedIDs []string) error
	DeleteCategory(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
}

// TokenTagger is the styling half of the render-surface contract: the
// engine stamps annotation identity and style onto contiguous token
// ranges and clears them by annotation ID. Both operations must be
// idempotent; the engine calls them redundantly during reconciliation.
type TokenTagger interface {
	TagRange(pageNumber int, rng model.TokenRange, tag model.Tag)
	ClearTag(annotationID string)
}

// RenderSurface is the full contract with the external document
// renderer. The renderer regenerates page tokens from scratch on every
// zoom, repaint, and reload; Tokens reports the current token texts for
// a page when that page has been rendered at least once.
type RenderSurface interface {
	TokenTagger
	Tokens(pageNumber int) ([]string, bool)
	ScrollTo(pageNumber int)
}

// RetryOptions configures retry behavior for operations. A Multiplier
// of 1.0 yields a fixed delay between attempts.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
