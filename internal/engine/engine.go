// Package engine implements the annotation engine: anchoring persisted
// annotations onto regenerated render output, maintaining the exclusive
// selection, and propagating category styling.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Neroli1108/intellidoc-reader/internal/anchor"
	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
	"github.com/Neroli1108/intellidoc-reader/internal/service"
)

// Config holds configuration options for the annotation engine.
type Config struct {
	// Reconcile bounds retries for pages whose tokens have not settled.
	Reconcile service.RetryOptions
}

// DefaultConfig returns the default configuration: five anchor attempts
// spaced by a fixed 200ms, for both reconciliation and jump requests.
func DefaultConfig() Config {
	return Config{
		Reconcile: service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Multiplier:   1.0,
		},
	}
}

// anchoredRange records where an annotation currently sits on screen.
// Rebuilt on every reconciliation pass; never trusted across a repaint.
type anchoredRange struct {
	Range      model.TokenRange
	PageNumber int
}

// Engine owns all live annotation state for one open document.
//
// The render surface may regenerate any page's tokens at any time; user
// events and render-completion callbacks interleave arbitrarily. All
// state transitions happen under a single mutex, and every asynchronous
// retry chain carries a generation so late retries from superseded
// render passes or jump requests discard themselves.
type Engine struct {
	store     service.Storage
	surface   service.RenderSurface
	ctx       context.Context
	cancel    context.CancelFunc
	namespace string

	mu          sync.Mutex
	annotations map[string]*model.Annotation
	categories  map[string]*model.Category
	anchored    map[string]anchoredRange
	selectedID  string
	jumpGen     common.Generation
	pageGen     map[int]common.Generation

	cfg Config
}

// New creates an annotation engine for the document namespace.
func New(store service.Storage, surface service.RenderSurface, namespace string) *Engine {
	return NewWithConfig(store, surface, namespace, DefaultConfig())
}

// NewWithConfig creates an annotation engine with custom retry policy.
func NewWithConfig(store service.Storage, surface service.RenderSurface, namespace string, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:       store,
		surface:     surface,
		ctx:         ctx,
		cancel:      cancel,
		namespace:   namespace,
		annotations: make(map[string]*model.Annotation),
		categories:  make(map[string]*model.Category),
		anchored:    make(map[string]anchoredRange),
		pageGen:     make(map[int]common.Generation),
		cfg:         cfg,
	}
}

// Close cancels all pending retry chains.
func (e *Engine) Close() {
	e.cancel()
}

// Namespace returns the document namespace this engine is bound to.
func (e *Engine) Namespace() string {
	return e.namespace
}

// Load pulls the document's annotations and the category table from
// storage, applying the legacy color compatibility mapping first so the
// engine only ever sees the category representation.
func (e *Engine) Load(ctx context.Context) error {
	if _, err := e.store.MigrateLegacyColors(ctx, e.namespace); err != nil {
		return fmt.Errorf("failed to migrate legacy colors: %w", err)
	}

	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	annotations, err := e.store.GetAnnotations(ctx, e.namespace)
	if err != nil {
		return fmt.Errorf("failed to load annotations: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.categories = make(map[string]*model.Category, len(categories))
	for i := range categories {
		e.categories[categories[i].ID] = &categories[i]
	}

	e.annotations = make(map[string]*model.Annotation, len(annotations))
	for i := range annotations {
		e.annotations[annotations[i].ID] = &annotations[i]
	}

	e.anchored = make(map[string]anchoredRange)
	e.selectedID = ""

	slog.Info("loaded document annotations",
		"namespace", e.namespace,
		"annotations", len(annotations),
		"categories", len(categories))
	return nil
}

// Annotations returns a snapshot of all annotations, ordered by page
// then creation time.
func (e *Engine) Annotations() []model.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Annotation, 0, len(e.annotations))
	for _, a := range e.annotations {
		out = append(out, *a)
	}
	sortAnnotations(out)
	return out
}

// Categories returns a snapshot of the category table in display order.
func (e *Engine) Categories() []model.Category {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Category, 0, len(e.categories))
	for _, c := range e.categories {
		out = append(out, *c)
	}
	sortCategories(out)
	return out
}

// Add creates an annotation from a live text selection. The signature
// is captured from the tokens currently on screen, the record is
// persisted, anchored immediately against those same tokens, and the
// new annotation becomes the selection.
func (e *Engine) Add(ctx context.Context, sel model.Selection, annType model.AnnotationType, categoryID string) (*model.Annotation, error) {
	if !annType.Anchorable() {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidType, annType)
	}

	tokens, ok := e.surface.Tokens(sel.PageNumber)
	if !ok {
		return nil, fmt.Errorf("page %d: %w", sel.PageNumber, common.ErrPageNotRendered)
	}

	captured, err := anchor.Capture(sel, tokens)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()

	color := ""
	if categoryID != "" {
		cat, found := e.categories[categoryID]
		if !found {
			e.mu.Unlock()
			return nil, fmt.Errorf("category %s: %w", categoryID, common.ErrNotFound)
		}
		color = cat.Color
	}

	now := time.Now()
	annotation := &model.Annotation{
		ID:         uuid.NewString(),
		PageNumber: sel.PageNumber,
		Type:       annType,
		CategoryID: categoryID,
		Color:      color,
		Text:       captured.Text,
		Signature:  captured.Signature,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	e.annotations[annotation.ID] = annotation

	// The source tokens are already on screen, so anchor immediately
	// instead of waiting for a future reconciliation pass.
	e.anchored[annotation.ID] = anchoredRange{PageNumber: sel.PageNumber, Range: captured.Range}
	e.surface.TagRange(sel.PageNumber, captured.Range, e.baseTagLocked(annotation))

	// Auto-selecting the new annotation is a fresh user intent; it
	// supersedes any jump still waiting on a render.
	e.jumpGen++
	e.selectLocked(annotation.ID)
	record := *annotation
	e.mu.Unlock()

	// Persistence failures keep the live view as source of truth.
	if err := e.store.SaveAnnotation(ctx, e.namespace, &record); err != nil {
		common.LogError(err, "failed to persist annotation", common.Fields{"id": record.ID})
	}

	return &record, nil
}

// UpdateNote replaces the note attached to an annotation.
func (e *Engine) UpdateNote(ctx context.Context, id, note string) error {
	e.mu.Lock()
	annotation, ok := e.annotations[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	annotation.Note = note
	annotation.UpdatedAt = time.Now()
	record := *annotation
	e.mu.Unlock()

	if err := e.store.UpdateAnnotation(ctx, e.namespace, &record); err != nil {
		common.LogError(err, "failed to persist note update", common.Fields{"id": id})
	}
	return nil
}

// UpdateColor sets a direct color on an annotation, detaching it from
// its category so the explicit choice is not overridden by a later
// category recolor. No propagation is needed; the single record is
// persisted once and restyled in place if currently anchored.
func (e *Engine) UpdateColor(ctx context.Context, id, color string) error {
	if !model.IsHexColor(color) {
		if _, legacy := model.LegacyCategoryID(color); !legacy {
			return fmt.Errorf("%w: %q", model.ErrInvalidColor, color)
		}
	}

	e.mu.Lock()
	annotation, ok := e.annotations[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	annotation.Color = color
	annotation.CategoryID = ""
	annotation.UpdatedAt = time.Now()

	if at, isAnchored := e.anchored[id]; isAnchored {
		e.surface.TagRange(at.PageNumber, at.Range, e.baseTagLocked(annotation))
		if id == e.selectedID {
			e.surface.TagRange(at.PageNumber, at.Range, e.overlayTagLocked(annotation))
		}
	}
	record := *annotation
	e.mu.Unlock()

	if err := e.store.UpdateAnnotation(ctx, e.namespace, &record); err != nil {
		common.LogError(err, "failed to persist color update", common.Fields{"id": id})
	}
	return nil
}

// RecolorCategory changes a category's color and propagates it to every
// annotation referencing the category: one batch persistence write for
// the whole set, then a single restyle pass over already-anchored
// ranges. No re-matching happens here; unanchored annotations pick up
// the new color at their next successful reconciliation.
func (e *Engine) RecolorCategory(ctx context.Context, categoryID, color string) error {
	if !model.IsHexColor(color) {
		return fmt.Errorf("%w: %q", model.ErrInvalidColor, color)
	}

	e.mu.Lock()
	cat, ok := e.categories[categoryID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("category %s: %w", categoryID, common.ErrNotFound)
	}

	cat.Color = color
	for _, annotation := range e.annotations {
		if annotation.CategoryID != categoryID {
			continue
		}
		annotation.Color = color
		if at, isAnchored := e.anchored[annotation.ID]; isAnchored {
			e.surface.TagRange(at.PageNumber, at.Range, e.baseTagLocked(annotation))
			if annotation.ID == e.selectedID {
				e.surface.TagRange(at.PageNumber, at.Range, e.overlayTagLocked(annotation))
			}
		}
	}
	record := *cat
	e.mu.Unlock()

	if err := e.store.UpdateCategory(ctx, &record); err != nil {
		common.LogError(err, "failed to persist category recolor", common.Fields{"category_id": categoryID})
	}
	if _, err := e.store.RecolorAnnotationsByCategory(ctx, e.namespace, categoryID, color); err != nil {
		common.LogError(err, "failed to persist annotation recolor", common.Fields{"category_id": categoryID})
	}
	return nil
}

// Delete removes an annotation: visual tags are stripped first so the
// UI never shows a zombie highlight for a deleted record, the selection
// is cleared if it pointed at the annotation, and only then is the
// record removed from the store.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	if _, ok := e.annotations[id]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	e.surface.ClearTag(id)
	if e.selectedID == id {
		e.selectedID = ""
	}
	delete(e.anchored, id)
	delete(e.annotations, id)
	e.mu.Unlock()

	if err := e.store.DeleteAnnotation(ctx, e.namespace, id); err != nil {
		common.LogError(err, "failed to delete annotation record", common.Fields{"id": id})
	}
	return nil
}

// baseTagLocked builds the base-style tag for an annotation. Callers
// must hold e.mu.
func (e *Engine) baseTagLocked(a *model.Annotation) model.Tag {
	return model.Tag{
		AnnotationID: a.ID,
		Type:         a.Type,
		Color:        a.ResolveColor(e.categories),
	}
}

// overlayTagLocked builds the selection overlay tag: a strict superset
// of the base style, never a replacement that loses type information.
func (e *Engine) overlayTagLocked(a *model.Annotation) model.Tag {
	tag := e.baseTagLocked(a)
	tag.Selected = true
	return tag
}

func sortAnnotations(annotations []model.Annotation) {
	sort.Slice(annotations, func(i, j int) bool {
		if annotations[i].PageNumber != annotations[j].PageNumber {
			return annotations[i].PageNumber < annotations[j].PageNumber
		}
		return annotations[i].CreatedAt.Before(annotations[j].CreatedAt)
	})
}

func sortCategories(categories []model.Category) {
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Order != categories[j].Order {
			return categories[i].Order < categories[j].Order
		}
		return categories[i].Name < categories[j].Name
	})
}
