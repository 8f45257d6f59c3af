package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
	"github.com/Neroli1108/intellidoc-reader/internal/service"
)

const testNamespace = "test-namespace"

// fastConfig keeps retry chains quick enough for tests.
func fastConfig() Config {
	return Config{
		Reconcile: service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 2 * time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   1.0,
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *MockSurface, *MockStorage) {
	t.Helper()
	store := NewMockStorage()
	surface := NewMockSurface()
	e := NewWithConfig(store, surface, testNamespace, fastConfig())
	t.Cleanup(e.Close)

	require.NoError(t, e.Load(context.Background()))
	return e, surface, store
}

// addAnnotation is a helper that renders a page and creates a highlight
// over the given character range.
func addAnnotation(t *testing.T, e *Engine, surface *MockSurface, page int, tokens []string, start, end int) *model.Annotation {
	t.Helper()
	surface.SetTokens(page, tokens)
	annotation, err := e.Add(context.Background(),
		model.Selection{PageNumber: page, Start: start, End: end},
		model.AnnotationHighlight, "cat-yellow")
	require.NoError(t, err)
	return annotation
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("creates, anchors, persists and selects", func(t *testing.T) {
		e, surface, store := newTestEngine(t)
		tokens := []string{"The", "attention", "mechanism", "allows", "modeling"}

		annotation := addAnnotation(t, e, surface, 1, tokens, 4, 23)

		assert.NotEmpty(t, annotation.ID)
		assert.Equal(t, model.AnnotationHighlight, annotation.Type)
		assert.Equal(t, []string{"attention", "mechanism"}, annotation.Signature)
		assert.Equal(t, "attention mechanism", annotation.Text)
		assert.Equal(t, "cat-yellow", annotation.CategoryID)
		assert.Equal(t, "#FACC15", annotation.Color)

		// Anchored immediately against the on-screen tokens.
		page, rng, ok := e.AnchoredRange(annotation.ID)
		require.True(t, ok)
		assert.Equal(t, 1, page)
		assert.Equal(t, model.TokenRange{Start: 1, End: 3}, rng)

		// Auto-selected with the overlay applied.
		assert.Equal(t, annotation.ID, e.SelectedID())
		assert.Equal(t, []string{annotation.ID}, surface.OverlayHolders())

		// Persisted once.
		assert.Equal(t, 1, store.SaveCalls)
		saved, err := store.GetAnnotationByID(ctx, testNamespace, annotation.ID)
		require.NoError(t, err)
		assert.Equal(t, annotation.Signature, saved.Signature)
	})

	t.Run("rejects unrendered page", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		_, err := e.Add(ctx, model.Selection{PageNumber: 7, Start: 0, End: 5},
			model.AnnotationHighlight, "")
		assert.ErrorIs(t, err, common.ErrPageNotRendered)
	})

	t.Run("rejects collapsed selection", func(t *testing.T) {
		e, surface, _ := newTestEngine(t)
		surface.SetTokens(1, []string{"alpha", "beta"})
		_, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 3, End: 3},
			model.AnnotationHighlight, "")
		assert.ErrorIs(t, err, common.ErrEmptySelection)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		e, surface, _ := newTestEngine(t)
		surface.SetTokens(1, []string{"alpha", "beta"})
		_, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 0, End: 5},
			model.AnnotationHighlight, "cat-nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("rejects note-only type", func(t *testing.T) {
		e, surface, _ := newTestEngine(t)
		surface.SetTokens(1, []string{"alpha", "beta"})
		_, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 0, End: 5},
			model.AnnotationNote, "")
		assert.ErrorIs(t, err, model.ErrInvalidType)
	})
}

func TestUpdateNote(t *testing.T) {
	ctx := context.Background()
	e, surface, store := newTestEngine(t)
	annotation := addAnnotation(t, e, surface, 1, []string{"alpha", "beta", "gamma"}, 0, 10)

	require.NoError(t, e.UpdateNote(ctx, annotation.ID, "key insight"))

	saved, err := store.GetAnnotationByID(ctx, testNamespace, annotation.ID)
	require.NoError(t, err)
	assert.Equal(t, "key insight", saved.Note)

	assert.ErrorIs(t, e.UpdateNote(ctx, "missing", "x"), common.ErrNotFound)
}

func TestUpdateColorDetachesCategory(t *testing.T) {
	ctx := context.Background()
	e, surface, _ := newTestEngine(t)
	annotation := addAnnotation(t, e, surface, 1, []string{"alpha", "beta", "gamma"}, 0, 10)

	require.NoError(t, e.UpdateColor(ctx, annotation.ID, "#123456"))

	got := e.Annotations()
	require.Len(t, got, 1)
	assert.Equal(t, "#123456", got[0].Color)
	assert.Empty(t, got[0].CategoryID)

	// Restyled in place: the applied tag carries the new color.
	tag, ok := surface.CurrentTag(annotation.ID)
	require.True(t, ok)
	assert.Equal(t, "#123456", tag.Color)

	// A later recolor of the old category no longer touches it.
	require.NoError(t, e.RecolorCategory(ctx, "cat-yellow", "#000000"))
	got = e.Annotations()
	assert.Equal(t, "#123456", got[0].Color)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting the selected annotation clears selection and tags", func(t *testing.T) {
		e, surface, store := newTestEngine(t)
		annotation := addAnnotation(t, e, surface, 1, []string{"alpha", "beta"}, 0, 10)
		require.Equal(t, annotation.ID, e.SelectedID())

		require.NoError(t, e.Delete(ctx, annotation.ID))

		assert.Empty(t, e.SelectedID())
		_, _, anchored := e.AnchoredRange(annotation.ID)
		assert.False(t, anchored)
		_, tagged := surface.CurrentTag(annotation.ID)
		assert.False(t, tagged)
		_, err := store.GetAnnotationByID(ctx, testNamespace, annotation.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("deleting a non-selected annotation leaves selection alone", func(t *testing.T) {
		e, surface, _ := newTestEngine(t)
		first := addAnnotation(t, e, surface, 1, []string{"alpha", "beta", "gamma", "delta"}, 0, 10)
		second := addAnnotation(t, e, surface, 1, []string{"alpha", "beta", "gamma", "delta"}, 11, 22)
		require.Equal(t, second.ID, e.SelectedID())

		require.NoError(t, e.Delete(ctx, first.ID))

		assert.Equal(t, second.ID, e.SelectedID())
		assert.Equal(t, []string{second.ID}, surface.OverlayHolders())
	})

	t.Run("unknown id is rejected", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		assert.ErrorIs(t, e.Delete(ctx, "missing"), common.ErrNotFound)
	})
}

func TestPersistenceFailureKeepsLiveView(t *testing.T) {
	ctx := context.Background()
	e, surface, store := newTestEngine(t)
	surface.SetTokens(1, []string{"alpha", "beta"})
	store.FailWrites(true)

	annotation, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 0, End: 10},
		model.AnnotationUnderline, "")
	require.NoError(t, err)

	// The live view is the source of truth; a failed write does not
	// roll back the in-memory record or its anchor.
	assert.Len(t, e.Annotations(), 1)
	_, _, anchored := e.AnchoredRange(annotation.ID)
	assert.True(t, anchored)

	require.NoError(t, e.UpdateNote(ctx, annotation.ID, "still here"))
	got := e.Annotations()
	assert.Equal(t, "still here", got[0].Note)
}

func TestRecolorCategory(t *testing.T) {
	ctx := context.Background()
	e, surface, store := newTestEngine(t)
	tokens := []string{"one", "two", "three", "four", "five", "six"}

	surface.SetTokens(1, tokens)
	a, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 0, End: 3}, model.AnnotationHighlight, "cat-yellow")
	require.NoError(t, err)
	b, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 4, End: 7}, model.AnnotationHighlight, "cat-yellow")
	require.NoError(t, err)
	other, err := e.Add(ctx, model.Selection{PageNumber: 1, Start: 8, End: 13}, model.AnnotationHighlight, "cat-blue")
	require.NoError(t, err)

	store.RecolorCalls = 0
	store.UpdateCalls = 0

	require.NoError(t, e.RecolorCategory(ctx, "cat-yellow", "#ABCDEF"))

	// Every annotation in the category resolves to the new color; the
	// other category is untouched.
	for _, got := range e.Annotations() {
		switch got.ID {
		case a.ID, b.ID:
			assert.Equal(t, "#ABCDEF", got.Color)
		case other.ID:
			assert.Equal(t, "#3B82F6", got.Color)
		}
	}

	// Exactly one batched annotation write, however many records share
	// the category.
	assert.Equal(t, 1, store.RecolorCalls)

	// Anchored ranges were restyled in place, no re-matching.
	tagA, ok := surface.CurrentTag(a.ID)
	require.True(t, ok)
	assert.Equal(t, "#ABCDEF", tagA.Color)
	tagOther, ok := surface.CurrentTag(other.ID)
	require.True(t, ok)
	assert.Equal(t, "#3B82F6", tagOther.Color)

	t.Run("unknown category rejected before mutation", func(t *testing.T) {
		err := e.RecolorCategory(ctx, "cat-missing", "#111111")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid color rejected", func(t *testing.T) {
		err := e.RecolorCategory(ctx, "cat-yellow", "chartreuse")
		assert.ErrorIs(t, err, model.ErrInvalidColor)
	})
}

func TestLoadAppliesLegacyColorTable(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()
	now := time.Now()
	require.NoError(t, store.SaveAnnotation(ctx, testNamespace, &model.Annotation{
		ID:         "legacy-1",
		PageNumber: 2,
		Type:       model.AnnotationHighlight,
		Color:      "yellow",
		Text:       "old highlight",
		Signature:  []string{"old", "highlight"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	surface := NewMockSurface()
	e := NewWithConfig(store, surface, testNamespace, fastConfig())
	t.Cleanup(e.Close)
	require.NoError(t, e.Load(ctx))

	got := e.Annotations()
	require.Len(t, got, 1)
	assert.Equal(t, "cat-yellow", got[0].CategoryID)
}
