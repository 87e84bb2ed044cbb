// Package structured recovers typed data from free-form model output.
//
// Generation backends are instructed to reply with JSON but do not reliably
// comply. Recovery is tiered: whole-text parse, then first well-bracketed
// substring, then line-oriented heuristics. Callers normalize the result and
// must treat an empty final sequence as a parsing failure, never as success.
package structured

import (
	"encoding/json"
	"regexp"
	"strings"
)

var markdownCodeRE = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON returns the first valid JSON object or array embedded in s, or
// "" when none is found. Markdown code fences are tried first since models
// habitually wrap JSON in them, then balanced-bracket scanning that honors
// string and escape context.
func ExtractJSON(s string) string {
	if strings.Contains(s, "```") {
		if m := markdownCodeRE.FindStringSubmatch(s); len(m) > 1 {
			candidate := strings.TrimSpace(m[1])
			if (strings.HasPrefix(candidate, "{") && strings.HasSuffix(candidate, "}")) ||
				(strings.HasPrefix(candidate, "[") && strings.HasSuffix(candidate, "]")) {
				if json.Valid([]byte(candidate)) {
					return candidate
				}
			}
		}
	}
	if c := scanBalanced(s, '[', ']'); c != "" {
		return c
	}
	return scanBalanced(s, '{', '}')
}

// scanBalanced finds the first balanced open..close span that parses as JSON.
func scanBalanced(s string, open, close byte) string {
	for i := 0; i < len(s); i++ {
		if s[i] != open {
			continue
		}
		level := 0
		inString := false
		escaped := false
		for j := i; j < len(s); j++ {
			if escaped {
				escaped = false
				continue
			}
			switch s[j] {
			case '\\':
				escaped = true
			case '"':
				inString = !inString
			case open:
				if !inString {
					level++
				}
			case close:
				if !inString {
					level--
					if level == 0 {
						candidate := s[i : j+1]
						if json.Valid([]byte(candidate)) {
							return candidate
						}
						j = len(s) // invalid span, restart from next opener
					}
				}
			}
		}
	}
	return ""
}

// DecodeItems runs tiers 1 and 2: parse the whole text as a JSON array of
// objects, or the first bracketed array found inside it. A bare object is
// accepted and wrapped as a single-item sequence.
func DecodeItems(text string) ([]map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if items, ok := decodeItemsJSON(text); ok {
		return items, true
	}
	if extracted := ExtractJSON(text); extracted != "" && extracted != text {
		if items, ok := decodeItemsJSON(extracted); ok {
			return items, true
		}
	}
	return nil, false
}

func decodeItemsJSON(text string) ([]map[string]any, bool) {
	var arr []map[string]any
	if err := json.Unmarshal([]byte(text), &arr); err == nil && len(arr) > 0 {
		return arr, true
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && len(obj) > 0 {
		// Some models wrap the array in a keyed envelope ({"items": [...]}).
		for _, v := range obj {
			if raw, ok := v.([]any); ok && len(raw) > 0 {
				items := make([]map[string]any, 0, len(raw))
				for _, el := range raw {
					if m, ok := el.(map[string]any); ok {
						items = append(items, m)
					}
				}
				if len(items) > 0 {
					return items, true
				}
			}
		}
		return []map[string]any{obj}, true
	}
	return nil, false
}

// DecodeObject parses text (or its first embedded JSON object) into a map.
func DecodeObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && len(obj) > 0 {
		return obj, true
	}
	if extracted := ExtractJSON(text); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &obj); err == nil && len(obj) > 0 {
			return obj, true
		}
	}
	return nil, false
}
