package anchor

import (
	"strings"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Captured is the result of extracting a signature from a live text
// selection: the ordered token texts the selection intersects, the
// literal substring selected, and the token range covered at capture
// time. Only Signature and Text are durable; the range is valid for the
// current render only.
type Captured struct {
	Text      string
	Signature []string
	Range     model.TokenRange
}

// Capture extracts the ordered token texts under a text selection.
// The selection is a character range over the page text formed by
// joining tokens with single spaces, which is how the render surface
// lays tokens out. Token granularity is fixed by the render surface; a
// selection that clips a token still captures the whole token text.
//
// A collapsed selection, or one that intersects no token, produces
// ErrEmptySelection and no annotation.
func Capture(sel model.Selection, tokens []string) (Captured, error) {
	if sel.IsCollapsed() {
		return Captured{}, common.ErrEmptySelection
	}

	start, end := -1, -1
	offset := 0
	for i, tok := range tokens {
		tokStart := offset
		tokEnd := offset + len(tok)
		if tokEnd > sel.Start && tokStart < sel.End {
			if start == -1 {
				start = i
			}
			end = i + 1
		}
		offset = tokEnd + 1 // single separator between tokens
	}

	if start == -1 {
		return Captured{}, common.ErrEmptySelection
	}

	captured := make([]string, end-start)
	copy(captured, tokens[start:end])

	pageText := strings.Join(tokens, " ")
	lo, hi := sel.Start, sel.End
	if lo < 0 {
		lo = 0
	}
	if hi > len(pageText) {
		hi = len(pageText)
	}

	return Captured{
		Signature: captured,
		Text:      pageText[lo:hi],
		Range:     model.TokenRange{Start: start, End: end},
	}, nil
}
