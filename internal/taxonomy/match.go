package taxonomy

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// fuzzyCutoff is the minimum similarity ratio for a near-miss
// subcategory label to be corrected to a valid one.
const fuzzyCutoff = 0.4

// similarity returns a 0-1 ratio between two strings based on rune-level
// edit distance. Identical strings score 1.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// closestMatch finds the single best candidate whose similarity to s is
// at or above cutoff. Earlier candidates win ties.
func closestMatch(s string, candidates []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := -1.0
	for _, c := range candidates {
		if score := similarity(s, c); score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore < cutoff {
		return "", false
	}
	return best, true
}
