// Package similarity provides the normalized string similarity primitives
// used by every candidate matcher. The scorer is symmetric, case and
// whitespace insensitive, and carries no entity-kind knowledge.
package similarity

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, trims it and collapses runs of whitespace into
// single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Score returns the normalized similarity of a and b in [0,1]. Identical
// strings (after normalization) score 1.0, disjoint strings approach 0.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	dist := levenshtein(na, nb)
	maxLen := max(len([]rune(na)), len([]rune(nb)))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(maxLen)
}

// Contains reports whether needle occurs inside haystack after normalization.
// Empty needles never match.
func Contains(haystack, needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Normalize(haystack), n)
}

// BestPairScore returns the highest pairwise Score across the two name lists.
// Either list being empty yields 0.
func BestPairScore(a, b []string) float64 {
	best := 0.0
	for _, x := range a {
		for _, y := range b {
			if s := Score(x, y); s > best {
				best = s
			}
		}
	}
	return best
}

// levenshtein computes the edit distance between two normalized strings
// using the classic two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
