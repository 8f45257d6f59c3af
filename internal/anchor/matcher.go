// Package anchor re-locates annotation signatures inside regenerated
// render output. The render surface rebuilds its token sequence from
// scratch on every zoom, repaint, and reload, so annotations are found
// again by content, never by element identity.
package anchor

import (
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Locate finds the first contiguous occurrence of signature in tokens
// and returns its half-open token range. The comparison is an exact
// element-wise sequence match; the lowest starting index always wins,
// so a phrase that appears twice on a page deterministically anchors to
// the earlier occurrence. This first-match policy is deliberate:
// changing the tie-break would silently relocate existing annotations.
//
// Returns false when no exact contiguous match exists, either because
// the page has not finished rendering or because token boundaries
// shifted since capture.
func Locate(signature, tokens []string) (model.TokenRange, bool) {
	if len(signature) == 0 || len(signature) > len(tokens) {
		return model.TokenRange{}, false
	}

	for i := 0; i+len(signature) <= len(tokens); i++ {
		if matchesAt(signature, tokens, i) {
			return model.TokenRange{Start: i, End: i + len(signature)}, true
		}
	}

	return model.TokenRange{}, false
}

func matchesAt(signature, tokens []string, start int) bool {
	for j, want := range signature {
		if tokens[start+j] != want {
			return false
		}
	}
	return true
}
