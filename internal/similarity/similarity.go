// Package similarity scores how alike two file names are.
//
// The score is a normalized Levenshtein ratio over the normalized base
// names (extension stripped, lower-cased, NFC). This is the sole signal for
// "same logical file, different name" - there is no content awareness here.
package similarity

import (
	"github.com/dupescout/dupescout/internal/namenorm"
)

// Ratio returns a similarity score in [0, 1] between two file names.
// Extensions are excluded before comparison. Two empty names score 1.0.
// Ratio is symmetric: Ratio(a, b) == Ratio(b, a).
func Ratio(a, b string) float64 {
	ra := []rune(namenorm.Name(a))
	rb := []rune(namenorm.Name(b))

	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the edit distance between two rune slices with
// unit-cost insertions, deletions and substitutions. Two-row dynamic
// programming keeps space at O(min(len(a), len(b))).
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range a {
		curr[0] = i + 1
		for j, cb := range b {
			ins := prev[j+1] + 1
			del := curr[j] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
