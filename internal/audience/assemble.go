package audience

import (
	"fmt"
	"strings"
)

const (
	textHeader = "INCLUDE people who match ALL of the following criteria:"

	// EmptyAudienceText is the defined terminal output when nothing
	// survives filtering. It is not an error.
	EmptyAudienceText = "No valid audience found."
)

// Audience is the final artifact: a human-readable boolean expression and
// the matching machine-consumable structure.
type Audience struct {
	Text      string    `json:"text"`
	Structure Structure `json:"structure"`
}

// Assemble renders the filtered structure. Themes become implicit AND
// blocks; interests within a section are OR-ed explicitly.
func Assemble(s Structure) *Audience {
	if len(s.Themes) == 0 {
		return &Audience{
			Text:      EmptyAudienceText,
			Structure: Structure{Fields: s.Fields, Themes: []Theme{}},
		}
	}

	lines := []string{
		textHeader,
		"",
		fmt.Sprintf("Gender: %s | Geolocation: %s | Age: %s",
			s.Fields.Gender, s.Fields.Geolocation, s.Fields.Age),
		"",
	}

	for _, theme := range s.Themes {
		lines = append(lines, theme.Name+" :")
		for _, section := range theme.Sections {
			names := make([]string, 0, len(section.Interests))
			for _, interest := range section.Interests {
				names = append(names, fmt.Sprintf("%q", interest.Name))
			}
			lines = append(lines, fmt.Sprintf("  - %s : %s", section.Name, strings.Join(names, " OR ")))
		}
		lines = append(lines, "")
	}

	return &Audience{
		Text:      strings.TrimRight(strings.Join(lines, "\n"), "\n"),
		Structure: s,
	}
}
