package matching

import (
	"github.com/agnivade/levenshtein"
)

// Similarity scores how alike two normalized names are, 0.0 (unrelated) to
// 1.0 (identical). The matcher only consumes scores, so the algorithm and
// threshold can be swapped without touching matcher logic.
type Similarity interface {
	Score(a, b string) float64
}

// LevenshteinSimilarity scores names by edit distance relative to the
// longer string.
type LevenshteinSimilarity struct{}

var _ Similarity = LevenshteinSimilarity{}

func (LevenshteinSimilarity) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
