package criteria

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Extract parses the raw generator payload into a Criteria structure. It
// never fails: parsing strategies are tried in priority order (strict JSON
// with themes, legacy JSON with groups, line-oriented text scan) and a
// wholly unparseable payload degrades to sentinel fields with no themes.
func Extract(raw string) *Criteria {
	payload := decodeObject(raw)
	if payload != nil {
		if c, ok := fromThemesJSON(payload); ok {
			return c
		}
		if c, ok := fromGroupsJSON(payload); ok {
			return c
		}
	}

	return fromText(raw)
}

// decodeObject tries to interpret the payload as a single JSON object,
// tolerating markdown code fences around it.
func decodeObject(raw string) map[string]any {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil
	}
	return payload
}

func fromThemesJSON(payload map[string]any) (*Criteria, bool) {
	rawThemes, ok := lookupKey(payload, "themes")
	if !ok {
		return nil, false
	}

	list, ok := rawThemes.([]any)
	if !ok {
		return nil, false
	}

	themes := make([]Theme, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		theme := Theme{}
		sections := make([]Section, 0, len(obj))
		for key, value := range obj {
			if strings.EqualFold(key, "name") {
				if s, ok := value.(string); ok {
					theme.Name = strings.TrimSpace(s)
				}
				continue
			}
			interests := stringSlice(value)
			if len(interests) == 0 {
				continue
			}
			sections = append(sections, Section{Name: key, Interests: interests})
		}

		// JSON object order is lost by the decoder; restore the documented
		// section order deterministically.
		sort.SliceStable(sections, func(i, j int) bool {
			return sectionLess(sections[i].Name, sections[j].Name)
		})

		if theme.Name == "" && len(sections) == 0 {
			continue
		}
		theme.Sections = sections
		themes = append(themes, theme)
	}

	return &Criteria{
		Fields: extractFields(payload),
		Themes: themes,
	}, true
}

// legacyGroups is the older generator shape: flat groups of interests.
// mapstructure matches the keys case-insensitively.
type legacyGroups struct {
	Groups []struct {
		Name      string   `mapstructure:"name"`
		Interests []string `mapstructure:"interests"`
	} `mapstructure:"groups"`
}

func fromGroupsJSON(payload map[string]any) (*Criteria, bool) {
	var legacy legacyGroups
	if err := mapstructure.Decode(payload, &legacy); err != nil || len(legacy.Groups) == 0 {
		return nil, false
	}

	themes := make([]Theme, 0, len(legacy.Groups))
	for _, group := range legacy.Groups {
		interests := trimAll(group.Interests)
		if len(interests) == 0 {
			continue
		}
		themes = append(themes, Theme{
			Name:     strings.TrimSpace(group.Name),
			Sections: []Section{{Name: SectionBroad, Interests: interests}},
		})
	}

	return &Criteria{
		Fields: extractFields(payload),
		Themes: themes,
	}, true
}

// extractFields locates the sociodemographic block under any of the key
// spellings the generator has been seen to produce.
func extractFields(payload map[string]any) Fields {
	candidate, ok := lookupKey(payload, "fields")
	if !ok {
		for key, value := range payload {
			collapsed := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key))
			if strings.Contains(collapsed, "extractedfields") {
				candidate = value
				ok = true
				break
			}
		}
	}
	if !ok {
		return AllFields()
	}

	var fields Fields
	if err := mapstructure.Decode(candidate, &fields); err != nil {
		return AllFields()
	}
	return fields.Normalize()
}

var (
	fieldLineRe   = regexp.MustCompile(`(?i)^(gender|geolocation|age)\s*:\s*(.*)$`)
	themeLineRe   = regexp.MustCompile(`(?i)^\**\s*theme\s+(\d+)\s*[–—-]\s*(.+?)\s*\**$`)
	sectionLineRe = regexp.MustCompile(`(?i)^\s*-?\s*(targetingclusters|narrowfurther\d*)\s*:?\s*(.*)$`)
)

// fromText runs a single-pass stateful scan over quasi-structured text.
// Lines outside any open section that match nothing are ignored.
func fromText(raw string) *Criteria {
	c := &Criteria{Fields: AllFields()}

	var current *Theme
	sectionOpen := false

	flush := func() {
		if current != nil {
			current.Sections = pruneSections(current.Sections)
			if current.Name != "" || len(current.Sections) > 0 {
				c.Themes = append(c.Themes, *current)
			}
		}
		current = nil
		sectionOpen = false
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := fieldLineRe.FindStringSubmatch(line); m != nil {
			value := normalizeField(m[2])
			switch strings.ToLower(m[1]) {
			case "gender":
				c.Fields.Gender = value
			case "geolocation":
				c.Fields.Geolocation = value
			case "age":
				c.Fields.Age = value
			}
			continue
		}

		if m := themeLineRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Theme{Name: "Theme " + m[1] + " – " + strings.TrimSpace(m[2])}
			continue
		}

		if current == nil {
			continue
		}

		if m := sectionLineRe.FindStringSubmatch(line); m != nil {
			name := canonicalSectionName(m[1])
			current.Sections = append(current.Sections, Section{Name: name})
			sectionOpen = true
			if rest := strings.TrimSpace(m[2]); rest != "" {
				appendInterests(current, rest)
			}
			continue
		}

		if sectionOpen {
			appendInterests(current, line)
		}
	}
	flush()

	return c
}

func appendInterests(theme *Theme, line string) {
	idx := len(theme.Sections) - 1
	if idx < 0 {
		return
	}
	for _, piece := range strings.Split(line, ",") {
		piece = strings.Trim(strings.TrimSpace(piece), `"'`)
		piece = strings.TrimPrefix(piece, "- ")
		if piece != "" {
			theme.Sections[idx].Interests = append(theme.Sections[idx].Interests, piece)
		}
	}
}

func canonicalSectionName(matched string) string {
	lower := strings.ToLower(matched)
	if lower == strings.ToLower(SectionBroad) {
		return SectionBroad
	}
	suffix := strings.TrimPrefix(lower, strings.ToLower(SectionNarrowPrefix))
	return SectionNarrowPrefix + suffix
}

// sectionLess orders the broad cluster first, then refinement sections by
// their numeric suffix, then anything else lexicographically.
func sectionLess(a, b string) bool {
	ra, na := sectionRank(a)
	rb, nb := sectionRank(b)
	if ra != rb {
		return ra < rb
	}
	if ra == 1 && na != nb {
		return na < nb
	}
	return a < b
}

func sectionRank(name string) (int, int) {
	if strings.EqualFold(name, SectionBroad) {
		return 0, 0
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, strings.ToLower(SectionNarrowPrefix)) {
		n, err := strconv.Atoi(strings.TrimPrefix(lower, strings.ToLower(SectionNarrowPrefix)))
		if err != nil {
			n = 0
		}
		return 1, n
	}
	return 2, 0
}

func lookupKey(payload map[string]any, name string) (any, bool) {
	for key, value := range payload {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func pruneSections(sections []Section) []Section {
	out := sections[:0]
	for _, section := range sections {
		if len(section.Interests) > 0 {
			out = append(out, section)
		}
	}
	return out
}
