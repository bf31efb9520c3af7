package memory

import (
	"encoding/json"
	"strings"
)

// ContextFromSummary resolves dot-path field references (for example
// "user_profile.preferences" or "key_facts") against the summary and
// formats the resolved values as text for prompt augmentation.
// Unresolvable or empty paths are skipped, not errored. A nil summary
// resolves nothing.
func ContextFromSummary(summary *SessionSummary, fields []string) string {
	if summary == nil || len(fields) == 0 {
		return ""
	}

	// Round-trip through JSON so paths address the wire field names.
	data, err := json.Marshal(summary)
	if err != nil {
		return ""
	}
	var summaryMap map[string]any
	if err := json.Unmarshal(data, &summaryMap); err != nil {
		return ""
	}

	var parts []string
	for _, field := range fields {
		value := resolvePath(summaryMap, field)
		if value == "" {
			continue
		}
		parts = append(parts, field+": "+value)
	}
	return strings.Join(parts, "\n")
}

func resolvePath(m map[string]any, path string) string {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}
	return formatValue(current)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		var items []string
		for _, item := range val {
			if s := formatValue(item); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, ", ")
	case map[string]any:
		var items []string
		for key, item := range val {
			if s := formatValue(item); s != "" {
				items = append(items, key+": "+s)
			}
		}
		return strings.Join(items, "; ")
	default:
		return ""
	}
}
