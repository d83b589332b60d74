// Package fuzzy scores approximate string matches on a 0-100 scale.
//
// Scores are a Levenshtein-distance ratio over the lowercased, trimmed
// inputs: 100 means equal, 0 means nothing in common (or an empty input).
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Score returns the similarity between query and candidate in [0, 100].
func Score(query, candidate string) int {
	a := strings.ToLower(strings.TrimSpace(query))
	b := strings.ToLower(strings.TrimSpace(candidate))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	dist := matchr.Levenshtein(a, b)
	score := (longest - dist) * 100 / longest
	if score < 0 {
		return 0
	}
	return score
}

// ExtractOne returns the candidate with the highest score against query,
// along with that score. Ties keep the earliest candidate. An empty
// candidate list yields ("", 0).
func ExtractOne(query string, candidates []string) (string, int) {
	best := ""
	bestScore := 0
	for _, candidate := range candidates {
		if score := Score(query, candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, bestScore
}
