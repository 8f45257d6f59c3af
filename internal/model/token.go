package model

// TokenRange is a half-open range [Start, End) of token indices on a
// single page. Ranges are recomputed every reconciliation pass and are
// never trusted to survive a repaint.
type TokenRange struct {
	Start int
	End   int
}

// Len returns the number of tokens covered by the range.
func (r TokenRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether the token index falls inside the range.
func (r TokenRange) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Tag is the visual payload stamped onto a matched token range: the
// owning annotation's identity, its type, the resolved base color, and
// whether the selection overlay is active on top of the base style.
type Tag struct {
	AnnotationID string
	Type         AnnotationType
	Color        string
	Selected     bool
}

// Selection is a half-open character range within a page's text,
// produced by the user dragging across rendered tokens. Collapsed
// selections (Start == End) produce no annotation.
type Selection struct {
	PageNumber int
	Start      int
	End        int
}

// IsCollapsed reports whether the selection covers no characters.
func (s Selection) IsCollapsed() bool {
	return s.End <= s.Start
}
