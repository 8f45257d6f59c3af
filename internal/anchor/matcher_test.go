package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name      string
		signature []string
		tokens    []string
		want      model.TokenRange
		wantFound bool
	}{
		{
			name:      "match in the middle of a page",
			signature: []string{"The", "attention", "mechanism"},
			tokens:    []string{"Introduction", ".", "The", "attention", "mechanism", "allows", "modeling"},
			want:      model.TokenRange{Start: 2, End: 5},
			wantFound: true,
		},
		{
			name:      "same signature after leading tokens are removed",
			signature: []string{"The", "attention", "mechanism"},
			tokens:    []string{"The", "attention", "mechanism", "allows", "modeling"},
			want:      model.TokenRange{Start: 0, End: 3},
			wantFound: true,
		},
		{
			name:      "match at the very end",
			signature: []string{"allows", "modeling"},
			tokens:    []string{"The", "attention", "mechanism", "allows", "modeling"},
			want:      model.TokenRange{Start: 3, End: 5},
			wantFound: true,
		},
		{
			name:      "single token signature",
			signature: []string{"attention"},
			tokens:    []string{"The", "attention", "mechanism"},
			want:      model.TokenRange{Start: 1, End: 2},
			wantFound: true,
		},
		{
			name:      "no contiguous match",
			signature: []string{"attention", "allows"},
			tokens:    []string{"The", "attention", "mechanism", "allows"},
			wantFound: false,
		},
		{
			name:      "signature longer than token list",
			signature: []string{"a", "b", "c"},
			tokens:    []string{"a", "b"},
			wantFound: false,
		},
		{
			name:      "empty token list",
			signature: []string{"a"},
			tokens:    nil,
			wantFound: false,
		},
		{
			name:      "empty signature never matches",
			signature: nil,
			tokens:    []string{"a", "b"},
			wantFound: false,
		},
		{
			name:      "partial prefix overlap does not count",
			signature: []string{"the", "signal", "decays"},
			tokens:    []string{"the", "signal", "holds", "the", "signal", "decays"},
			want:      model.TokenRange{Start: 3, End: 6},
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Locate(tt.signature, tt.tokens)
			require.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLocateDuplicatePhraseResolvesToFirstOccurrence(t *testing.T) {
	signature := []string{"to", "be"}
	tokens := []string{"to", "be", "or", "not", "to", "be"}

	// The earlier occurrence always wins, even across repeated calls.
	for i := 0; i < 10; i++ {
		got, found := Locate(signature, tokens)
		require.True(t, found)
		assert.Equal(t, model.TokenRange{Start: 0, End: 2}, got)
	}
}

func TestLocateIsPositionIndependent(t *testing.T) {
	signature := []string{"gradient", "descent"}

	before := []string{"We", "use", "gradient", "descent", "here"}
	after := []string{"gradient", "descent", "here"}

	got, found := Locate(signature, before)
	require.True(t, found)
	assert.Equal(t, model.TokenRange{Start: 2, End: 4}, got)

	got, found = Locate(signature, after)
	require.True(t, found)
	assert.Equal(t, model.TokenRange{Start: 0, End: 2}, got)
}
