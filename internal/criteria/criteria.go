package criteria

import (
	"regexp"
	"strings"
)

// SentinelAll is the value a demographic field takes when the generator
// left it unconstrained.
const SentinelAll = "All"

// SectionBroad is the label of the broad interest cluster inside a theme.
// Refinement sections use SectionNarrowPrefix followed by an integer.
const (
	SectionBroad        = "TargetingClusters"
	SectionNarrowPrefix = "NarrowFurther"
)

// Fields holds the sociodemographic part of the audience. Values are
// normalized to SentinelAll when the generator reports them as missing.
type Fields struct {
	Gender      string `json:"gender" mapstructure:"gender"`
	Geolocation string `json:"geolocation" mapstructure:"geolocation"`
	Age         string `json:"age" mapstructure:"age"`
}

// Section is a named, ordered list of candidate interests inside a theme.
type Section struct {
	Name      string   `json:"name"`
	Interests []string `json:"interests"`
}

// Theme groups related sections. Themes are AND-ed together in the final
// targeting expression; interests inside a section are OR-ed.
type Theme struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// Criteria is the canonical extraction result. Theme, section and interest
// order is preserved from the generator output and is load-bearing: the
// duplicate gate keeps the first occurrence in this order.
type Criteria struct {
	Fields Fields  `json:"fields"`
	Themes []Theme `json:"themes"`
}

var notSpecifiedRe = regexp.MustCompile(`(?i)^(not\s+specified|none|n/?a|empty|undefined|unknown)$`)

// AllFields returns fields with every attribute set to the sentinel.
func AllFields() Fields {
	return Fields{Gender: SentinelAll, Geolocation: SentinelAll, Age: SentinelAll}
}

// Normalize maps absent or "not specified"-style values to SentinelAll.
func (f Fields) Normalize() Fields {
	return Fields{
		Gender:      normalizeField(f.Gender),
		Geolocation: normalizeField(f.Geolocation),
		Age:         normalizeField(f.Age),
	}
}

func normalizeField(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || notSpecifiedRe.MatchString(v) {
		return SentinelAll
	}
	return v
}

// CountInterests returns the total number of candidate interests across
// all themes and sections.
func (c *Criteria) CountInterests() int {
	count := 0
	for _, theme := range c.Themes {
		for _, section := range theme.Sections {
			count += len(section.Interests)
		}
	}
	return count
}

// ContextHint joins every candidate interest into a single disambiguation
// string handed to the generator when searching for alternative phrasings.
func (c *Criteria) ContextHint() string {
	parts := make([]string, 0, len(c.Themes))
	for _, theme := range c.Themes {
		interests := make([]string, 0)
		for _, section := range theme.Sections {
			interests = append(interests, section.Interests...)
		}
		if len(interests) > 0 {
			parts = append(parts, strings.Join(interests, ", "))
		}
	}
	return strings.Join(parts, "; ")
}
