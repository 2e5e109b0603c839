package resolver

import (
	"github.com/pmezard/go-difflib/difflib"
)

// fuzzyCutoff is the minimum similarity ratio a key must reach.
const fuzzyCutoff = 0.5

// ratio returns the sequence-matcher similarity of a and b in [0, 1],
// computed over characters: 2*M/T where M is the number of matched
// characters and T the combined length.
func ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	rs := []rune(s)
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// closestKey returns the candidate most similar to query if its ratio
// reaches cutoff. Equal scores resolve to the lexicographically greater key.
func closestKey(query string, candidates []string, cutoff float64) (string, float64, bool) {
	var (
		best      string
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		score := ratio(c, query)
		if score < cutoff {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c > best) {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}
