package gemini

import (
	"encoding/json"
	"strings"
)

const maxAlternatives = 3

// parseAlternatives extracts alternative phrasings from the model output.
// Both a bare JSON array and an {"alternatives": [...]} wrapper are
// accepted; anything else yields no alternatives.
func parseAlternatives(raw string) []string {
	cleaned := extractJSON(raw)

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		var wrapper struct {
			Alternatives []string `json:"alternatives"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
			return nil
		}
		list = wrapper.Alternatives
	}

	out := make([]string, 0, maxAlternatives)
	for _, alt := range list {
		if alt = strings.TrimSpace(alt); alt == "" {
			continue
		}
		out = append(out, alt)
		if len(out) == maxAlternatives {
			break
		}
	}
	return out
}

// extractJSON strips markdown code fences the model sometimes wraps its
// JSON in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
