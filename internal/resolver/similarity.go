package resolver

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a normalized edit-distance ratio in [0, 1] between
// the two strings, ignoring case and surrounding whitespace. 1 means the
// strings are equal.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
