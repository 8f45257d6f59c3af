package engine

import (
	"sync"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// SurfaceOp is one recorded styling operation, in call order.
type SurfaceOp struct {
	Kind         string // "tag" or "clear"
	AnnotationID string
	Tag          model.Tag
	Range        model.TokenRange
	PageNumber   int
}

// appliedTag is the current styling of one annotation on the mock surface.
type appliedTag struct {
	Tag        model.Tag
	Range      model.TokenRange
	PageNumber int
}

// MockSurface is a render surface double for engine tests. It serves
// token lists per page, records every tag/clear operation in order, and
// tracks the tags currently in effect so tests can assert both the
// observable operation ordering and the end state.
type MockSurface struct {
	mu       sync.Mutex
	pages    map[int][]string
	tags     map[string]appliedTag
	ops      []SurfaceOp
	scrolled []int
}

// NewMockSurface creates an empty mock surface with no rendered pages.
func NewMockSurface() *MockSurface {
	return &MockSurface{
		pages: make(map[int][]string),
		tags:  make(map[string]appliedTag),
	}
}

// SetTokens marks a page as rendered with the given token texts.
func (m *MockSurface) SetTokens(pageNumber int, tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageNumber] = tokens
}

// ClearPage simulates a page whose render output is gone (mid-repaint).
func (m *MockSurface) ClearPage(pageNumber int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pageNumber)
}

// Tokens returns the current token list for a page, if rendered.
func (m *MockSurface) Tokens(pageNumber int) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens, ok := m.pages[pageNumber]
	return tokens, ok
}

// ScrollTo records the scroll request.
func (m *MockSurface) ScrollTo(pageNumber int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolled = append(m.scrolled, pageNumber)
}

// TagRange records and applies a styling operation. Idempotent: the
// latest tag for an annotation wins.
func (m *MockSurface) TagRange(pageNumber int, rng model.TokenRange, tag model.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, SurfaceOp{
		Kind:         "tag",
		AnnotationID: tag.AnnotationID,
		PageNumber:   pageNumber,
		Range:        rng,
		Tag:          tag,
	})
	m.tags[tag.AnnotationID] = appliedTag{PageNumber: pageNumber, Range: rng, Tag: tag}
}

// ClearTag records and applies tag removal. Idempotent.
func (m *MockSurface) ClearTag(annotationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, SurfaceOp{Kind: "clear", AnnotationID: annotationID})
	delete(m.tags, annotationID)
}

// Ops returns a copy of the recorded operation log.
func (m *MockSurface) Ops() []SurfaceOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SurfaceOp, len(m.ops))
	copy(out, m.ops)
	return out
}

// ResetOps clears the operation log but keeps pages and applied tags.
func (m *MockSurface) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// TaggedRange returns the range an annotation is currently styled on.
func (m *MockSurface) TaggedRange(annotationID string) (int, model.TokenRange, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.tags[annotationID]
	return at.PageNumber, at.Range, ok
}

// CurrentTag returns the tag currently applied for an annotation.
func (m *MockSurface) CurrentTag(annotationID string) (model.Tag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.tags[annotationID]
	return at.Tag, ok
}

// OverlayHolders returns the IDs whose current tag carries the
// selection overlay. The exclusivity invariant demands this never
// exceeds one element.
func (m *MockSurface) OverlayHolders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, at := range m.tags {
		if at.Tag.Selected {
			out = append(out, id)
		}
	}
	return out
}

// Scrolled returns the pages scrolled to, in order.
func (m *MockSurface) Scrolled() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.scrolled))
	copy(out, m.scrolled)
	return out
}
