package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// seedAnnotation writes a persisted-looking record straight into the
// store, simulating a previous session.
func seedAnnotation(t *testing.T, store *MockStorage, id string, page int, signature []string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.SaveAnnotation(context.Background(), testNamespace, &model.Annotation{
		ID:         id,
		PageNumber: page,
		Type:       model.AnnotationHighlight,
		CategoryID: "cat-yellow",
		Color:      "#FACC15",
		Text:       "",
		Signature:  signature,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func TestPageRendered(t *testing.T) {
	t.Run("anchors stored annotations against fresh tokens", func(t *testing.T) {
		store := NewMockStorage()
		seedAnnotation(t, store, "a1", 1, []string{"attention", "mechanism"})
		seedAnnotation(t, store, "a2", 1, []string{"modeling"})
		seedAnnotation(t, store, "other-page", 2, []string{"attention"})

		surface := NewMockSurface()
		e := NewWithConfig(store, surface, testNamespace, fastConfig())
		t.Cleanup(e.Close)
		require.NoError(t, e.Load(context.Background()))

		tokens := []string{"The", "attention", "mechanism", "allows", "modeling"}
		surface.SetTokens(1, tokens)
		e.PageRendered(1, tokens)

		page, rng, ok := e.AnchoredRange("a1")
		require.True(t, ok)
		assert.Equal(t, 1, page)
		assert.Equal(t, model.TokenRange{Start: 1, End: 3}, rng)

		_, rng, ok = e.AnchoredRange("a2")
		require.True(t, ok)
		assert.Equal(t, model.TokenRange{Start: 4, End: 5}, rng)

		// Annotations on other pages are not touched by this pass.
		_, _, ok = e.AnchoredRange("other-page")
		assert.False(t, ok)

		// No selection exists after load, so no overlay was applied.
		assert.Empty(t, surface.OverlayHolders())
		tag, ok := surface.CurrentTag("a1")
		require.True(t, ok)
		assert.Equal(t, "#FACC15", tag.Color)
	})

	t.Run("duplicate signature anchors at first occurrence", func(t *testing.T) {
		store := NewMockStorage()
		seedAnnotation(t, store, "dup", 1, []string{"the", "model"})

		surface := NewMockSurface()
		e := NewWithConfig(store, surface, testNamespace, fastConfig())
		t.Cleanup(e.Close)
		require.NoError(t, e.Load(context.Background()))

		tokens := []string{"the", "model", "refines", "the", "model", "state"}
		surface.SetTokens(1, tokens)
		e.PageRendered(1, tokens)

		_, rng, ok := e.AnchoredRange("dup")
		require.True(t, ok)
		assert.Equal(t, model.TokenRange{Start: 0, End: 2}, rng)
	})
}

func TestPageRenderedIdempotent(t *testing.T) {
	e, surface, _ := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma", "delta"}
	a := addAnnotation(t, e, surface, 1, tokens, 0, 10)
	b := addAnnotation(t, e, surface, 1, tokens, 11, 22)

	e.PageRendered(1, tokens)
	_, firstA, _ := e.AnchoredRange(a.ID)
	_, firstB, _ := e.AnchoredRange(b.ID)

	// Rendering identical tokens again must reproduce the exact same
	// anchors and leave the overlay invariant intact.
	e.PageRendered(1, tokens)

	_, againA, okA := e.AnchoredRange(a.ID)
	require.True(t, okA)
	assert.Equal(t, firstA, againA)
	_, againB, okB := e.AnchoredRange(b.ID)
	require.True(t, okB)
	assert.Equal(t, firstB, againB)
	assert.Equal(t, []string{b.ID}, surface.OverlayHolders())
}

func TestPageRenderedRelocatesAfterEdit(t *testing.T) {
	e, surface, _ := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma"}
	a := addAnnotation(t, e, surface, 1, tokens, 6, 16) // "beta gamma"

	_, before, ok := e.AnchoredRange(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.TokenRange{Start: 1, End: 3}, before)

	// Text inserted ahead of the annotation shifts its tokens right.
	edited := []string{"intro", "words", "alpha", "beta", "gamma"}
	surface.SetTokens(1, edited)
	e.PageRendered(1, edited)

	_, after, ok := e.AnchoredRange(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.TokenRange{Start: 3, End: 5}, after)
}

func TestPageRenderedUnmatchedClearsStaleTag(t *testing.T) {
	e, surface, store := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma"}
	a := addAnnotation(t, e, surface, 1, tokens, 0, 10)
	e.Deselect()

	// The annotated text was edited away entirely.
	gone := []string{"completely", "different", "content"}
	surface.SetTokens(1, gone)
	e.PageRendered(1, gone)

	_, _, anchored := e.AnchoredRange(a.ID)
	assert.False(t, anchored)
	_, tagged := surface.CurrentTag(a.ID)
	assert.False(t, tagged)

	// Unanchored is not deleted: the record survives in memory and in
	// the store, ready to re-anchor if the text comes back.
	assert.Len(t, e.Annotations(), 1)
	_, err := store.GetAnnotationByID(context.Background(), testNamespace, a.ID)
	require.NoError(t, err)

	// And it does come back.
	surface.SetTokens(1, tokens)
	e.PageRendered(1, tokens)
	_, rng, ok := e.AnchoredRange(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.TokenRange{Start: 0, End: 2}, rng)
}

func TestPageRenderedRetriesUntilTokensSettle(t *testing.T) {
	e, surface, _ := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma"}
	a := addAnnotation(t, e, surface, 1, tokens, 0, 10)
	e.Deselect()

	// A mid-render callback delivers a partial token list that does
	// not contain the signature yet.
	partial := []string{"alpha"}
	surface.SetTokens(1, partial)
	e.PageRendered(1, partial)

	// The retry chain re-reads the surface, so publishing the settled
	// tokens is enough for it to anchor.
	surface.SetTokens(1, tokens)

	require.Eventually(t, func() bool {
		_, _, ok := e.AnchoredRange(a.ID)
		return ok
	}, time.Second, time.Millisecond)

	_, rng, _ := e.AnchoredRange(a.ID)
	assert.Equal(t, model.TokenRange{Start: 0, End: 2}, rng)
}

func TestPageRenderedGivesUpSilently(t *testing.T) {
	e, surface, _ := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma"}
	a := addAnnotation(t, e, surface, 1, tokens, 0, 10)

	gone := []string{"nothing", "matches", "here"}
	surface.SetTokens(1, gone)
	e.PageRendered(1, gone)

	// Exhaust the bounded retry chain, then confirm nothing changed.
	time.Sleep(50 * time.Millisecond)

	_, _, anchored := e.AnchoredRange(a.ID)
	assert.False(t, anchored)
	assert.Len(t, e.Annotations(), 1)
}

func TestPageRenderedSupersedesOlderRetryChain(t *testing.T) {
	e, surface, _ := newTestEngine(t)
	tokens := []string{"alpha", "beta", "gamma"}
	a := addAnnotation(t, e, surface, 1, tokens, 0, 10)
	e.Deselect()

	// First render misses the signature and spawns a retry chain.
	partial := []string{"alpha"}
	surface.SetTokens(1, partial)
	e.PageRendered(1, partial)

	// A newer render of the same page settles with shifted content.
	shifted := []string{"intro", "alpha", "beta", "gamma"}
	surface.SetTokens(1, shifted)
	e.PageRendered(1, shifted)

	// Whatever the stale chain does, the anchor must reflect the
	// newest tokens.
	require.Eventually(t, func() bool {
		_, rng, ok := e.AnchoredRange(a.ID)
		return ok && rng == (model.TokenRange{Start: 1, End: 3})
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	_, rng, ok := e.AnchoredRange(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.TokenRange{Start: 1, End: 3}, rng)
}
