package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinSimilarity_Score(t *testing.T) {
	sim := LevenshteinSimilarity{}

	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "corin blanchard", b: "corin blanchard", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "corin", b: "", want: 0.0},
		{name: "completely different", a: "abc", b: "xyz", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sim.Score(tt.a, tt.b), 1e-9)
		})
	}
}

func TestLevenshteinSimilarity_NearMatches(t *testing.T) {
	sim := LevenshteinSimilarity{}

	// One transposed letter in a 15-char name stays above the 0.9 bar.
	score := sim.Score("corin blanchard", "corin blanchrad")
	assert.Greater(t, score, 0.85)

	// A different surname falls well below it.
	score = sim.Score("corin blanchard", "corin henderson")
	assert.Less(t, score, 0.9)

	// Symmetry
	assert.Equal(t, sim.Score("ab", "ba"), sim.Score("ba", "ab"))
}
