package model

import (
	"strings"
	"time"
)

// AnnotationType identifies the visual treatment of an annotation.
type AnnotationType string

const (
	// AnnotationHighlight renders a background tint over the matched tokens.
	AnnotationHighlight AnnotationType = "highlight"
	// AnnotationUnderline renders an underline rule beneath the matched tokens.
	AnnotationUnderline AnnotationType = "underline"
	// AnnotationStrikethrough renders a strike-through rule across the matched tokens.
	AnnotationStrikethrough AnnotationType = "strikethrough"
	// AnnotationNote carries a note without any anchored visual treatment.
	AnnotationNote AnnotationType = "note"
)

// IsValid reports whether the type is one of the known annotation types.
func (t AnnotationType) IsValid() bool {
	switch t {
	case AnnotationHighlight, AnnotationUnderline, AnnotationStrikethrough, AnnotationNote:
		return true
	}
	return false
}

// Anchorable reports whether annotations of this type are matched against
// rendered tokens. Note-only annotations are stored but never anchored.
func (t AnnotationType) Anchorable() bool {
	return t == AnnotationHighlight || t == AnnotationUnderline || t == AnnotationStrikethrough
}

// Annotation is the durable unit of user intent: a span of document text
// marked with a visual treatment and an optional note.
//
// Identity across re-renders is carried by Signature, the ordered token
// texts captured from the render surface at creation time. The render
// surface regenerates its nodes from scratch on zoom, repaint, and
// reload, so no element reference is ever stored. Signature must not be
// mutated after creation.
type Annotation struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ID         string
	Type       AnnotationType
	CategoryID string
	Color      string
	Text       string
	Note       string
	Signature  []string
	PageNumber int
}

// HasNote reports whether the annotation carries a non-empty note.
func (a *Annotation) HasNote() bool {
	return strings.TrimSpace(a.Note) != ""
}

// ResolveColor returns the display color for the annotation: the
// category color when a category is attached and known, otherwise the
// annotation's own color value.
func (a *Annotation) ResolveColor(categories map[string]*Category) string {
	if a.CategoryID != "" {
		if cat, ok := categories[a.CategoryID]; ok {
			return cat.Color
		}
	}
	return a.Color
}

// Validate checks structural invariants at the operation boundary.
func (a *Annotation) Validate() error {
	if a.ID == "" {
		return ErrMissingID
	}
	if !a.Type.IsValid() {
		return ErrInvalidType
	}
	if a.PageNumber < 1 {
		return ErrInvalidPage
	}
	if a.Type.Anchorable() && len(a.Signature) == 0 {
		return ErrEmptySignature
	}
	return nil
}
