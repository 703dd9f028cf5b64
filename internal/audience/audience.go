package audience

import (
	"strings"

	"github.com/audiencer/audiencer/internal/criteria"
)

// Interest is a candidate interest matched against the vocabulary. It is
// immutable after creation and belongs to exactly one theme/section pair.
type Interest struct {
	Original               string  `json:"original"`
	Name                   string  `json:"name"`
	ID                     string  `json:"id"`
	Score                  float64 `json:"score"`
	Path                   []string `json:"path,omitempty"`
	Topic                  string  `json:"topic,omitempty"`
	AudienceSizeLowerBound int64   `json:"audience_size_lower_bound,omitempty"`
	AudienceSizeUpperBound int64   `json:"audience_size_upper_bound,omitempty"`
}

// Section is an ordered list of resolved interests, OR-ed together.
type Section struct {
	Name      string     `json:"name"`
	Interests []Interest `json:"interests"`
}

// Theme groups sections; themes are AND-ed in the final expression.
type Theme struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// Structure is the terminal machine-consumable aggregate. Theme, section
// and interest order is the extraction order and must not be reordered.
type Structure struct {
	Fields criteria.Fields `json:"fields"`
	Themes []Theme         `json:"themes"`
}

// CountInterests returns the total number of interests in the structure.
func (s *Structure) CountInterests() int {
	count := 0
	for _, theme := range s.Themes {
		for _, section := range theme.Sections {
			count += len(section.Interests)
		}
	}
	return count
}

// duplicates reports whether two resolved interests point at the same
// vocabulary entry: identical ids, names equal ignoring case, or one name
// contained in the other ignoring case.
func duplicates(a, b Interest) bool {
	if a.ID == b.ID {
		return true
	}

	na := strings.ToLower(a.Name)
	nb := strings.ToLower(b.Name)

	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}
