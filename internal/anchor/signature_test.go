package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

func TestCapture(t *testing.T) {
	// Page text: "The attention mechanism allows modeling"
	//             0123456789...
	tokens := []string{"The", "attention", "mechanism", "allows", "modeling"}

	tests := []struct {
		name          string
		sel           model.Selection
		wantSignature []string
		wantText      string
		wantRange     model.TokenRange
		wantErr       error
	}{
		{
			name:          "selection spanning two whole tokens",
			sel:           model.Selection{PageNumber: 1, Start: 4, End: 23},
			wantSignature: []string{"attention", "mechanism"},
			wantText:      "attention mechanism",
			wantRange:     model.TokenRange{Start: 1, End: 3},
		},
		{
			name:          "selection clipping into tokens captures whole tokens",
			sel:           model.Selection{PageNumber: 1, Start: 6, End: 16},
			wantSignature: []string{"attention", "mechanism"},
			wantText:      "tention me",
			wantRange:     model.TokenRange{Start: 1, End: 3},
		},
		{
			name:          "selection of a single token",
			sel:           model.Selection{PageNumber: 1, Start: 0, End: 3},
			wantSignature: []string{"The"},
			wantText:      "The",
			wantRange:     model.TokenRange{Start: 0, End: 1},
		},
		{
			name:          "selection running past the end of the page",
			sel:           model.Selection{PageNumber: 1, Start: 31, End: 200},
			wantSignature: []string{"modeling"},
			wantText:      "modeling",
			wantRange:     model.TokenRange{Start: 4, End: 5},
		},
		{
			name:    "collapsed selection",
			sel:     model.Selection{PageNumber: 1, Start: 7, End: 7},
			wantErr: common.ErrEmptySelection,
		},
		{
			name:    "inverted selection",
			sel:     model.Selection{PageNumber: 1, Start: 10, End: 4},
			wantErr: common.ErrEmptySelection,
		},
		{
			name:    "selection entirely past the end of the page",
			sel:     model.Selection{PageNumber: 1, Start: 500, End: 510},
			wantErr: common.ErrEmptySelection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Capture(tt.sel, tokens)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSignature, got.Signature)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantRange, got.Range)
		})
	}
}

func TestCaptureIsPure(t *testing.T) {
	tokens := []string{"alpha", "beta", "gamma"}
	sel := model.Selection{PageNumber: 1, Start: 0, End: 10}

	got, err := Capture(sel, tokens)
	require.NoError(t, err)

	// The captured signature is an independent copy; mutating the
	// source tokens afterwards must not change it.
	tokens[0] = "mutated"
	assert.Equal(t, []string{"alpha", "beta"}, got.Signature)
}

func TestCaptureRoundTripsThroughLocate(t *testing.T) {
	tokens := []string{"Deep", "nets", "learn", "hierarchical", "features"}
	sel := model.Selection{PageNumber: 3, Start: 10, End: 27}

	got, err := Capture(sel, tokens)
	require.NoError(t, err)

	rng, found := Locate(got.Signature, tokens)
	require.True(t, found)
	assert.Equal(t, got.Range, rng)
}
