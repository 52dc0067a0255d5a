package llm

import (
	"encoding/json"
	"strings"

	"millionx-backend/application/ports"
)

// prereqItem is the expected item shape in the model's JSON response
type prereqItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParsePrerequisites extracts child topics from a model response.
// The strict path expects JSON; when the model returns prose anyway,
// a comma-split fallback salvages plausible titles rather than
// failing the whole expansion.
func ParsePrerequisites(raw string) []ports.Prerequisite {
	cleaned := stripCodeFence(raw)

	if items := parseStrict(cleaned); len(items) > 0 {
		return items
	}
	return parseFallback(cleaned)
}

// parseStrict tries the JSON shapes the prompt asks for
func parseStrict(s string) []ports.Prerequisite {
	// {"prerequisites": [{"title": ..., "description": ...}]}
	var wrapped struct {
		Prerequisites []prereqItem `json:"prerequisites"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil {
		if items := toPrerequisites(wrapped.Prerequisites); len(items) > 0 {
			return items
		}
	}

	// {"prerequisites": ["a", "b"]}
	var wrappedStrings struct {
		Prerequisites []string `json:"prerequisites"`
	}
	if err := json.Unmarshal([]byte(s), &wrappedStrings); err == nil {
		if items := fromTitles(wrappedStrings.Prerequisites); len(items) > 0 {
			return items
		}
	}

	// Bare arrays of either shape
	var objects []prereqItem
	if err := json.Unmarshal([]byte(s), &objects); err == nil {
		if items := toPrerequisites(objects); len(items) > 0 {
			return items
		}
	}
	var titles []string
	if err := json.Unmarshal([]byte(s), &titles); err == nil {
		return fromTitles(titles)
	}
	return nil
}

// parseFallback splits non-JSON output on commas and keeps pieces
// that look like topic titles
func parseFallback(s string) []ports.Prerequisite {
	s = strings.Trim(s, "[]{}\" \n\t")
	var items []ports.Prerequisite
	for _, part := range strings.Split(s, ",") {
		title := strings.Trim(strings.TrimSpace(part), `"'`)
		if len(title) >= 1 && len(title) < 100 {
			items = append(items, ports.Prerequisite{Title: title})
		}
	}
	return items
}

func toPrerequisites(raw []prereqItem) []ports.Prerequisite {
	var items []ports.Prerequisite
	for _, item := range raw {
		title := strings.TrimSpace(item.Title)
		if title == "" || len(title) >= 100 {
			continue
		}
		items = append(items, ports.Prerequisite{
			Title:       title,
			Description: strings.TrimSpace(item.Description),
		})
	}
	return items
}

func fromTitles(titles []string) []ports.Prerequisite {
	var items []ports.Prerequisite
	for _, t := range titles {
		title := strings.TrimSpace(t)
		if title == "" || len(title) >= 100 {
			continue
		}
		items = append(items, ports.Prerequisite{Title: title})
	}
	return items
}

// stripCodeFence removes a surrounding markdown code fence if present
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
