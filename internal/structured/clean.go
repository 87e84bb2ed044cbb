package structured

import (
	"strconv"
	"strings"
)

// CleanText trims whitespace, collapses internal runs of blanks and control
// characters to single spaces, and caps the result at max runes (0 = no cap).
func CleanText(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r < 32 || r == 127 {
			r = ' '
		}
		if r == ' ' || r == '\t' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if max > 0 {
		runes := []rune(out)
		if len(runes) > max {
			out = string(runes[:max])
		}
	}
	return out
}

// Str pulls a trimmed string field out of a loosely-typed decoded item.
func Str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

// StrSlice pulls a []string field, tolerating []any payloads.
func StrSlice(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case []string:
			return vv
		case []any:
			out := make([]string, 0, len(vv))
			for _, el := range vv {
				if s, ok := el.(string); ok {
					if t := strings.TrimSpace(s); t != "" {
						out = append(out, t)
					}
				}
			}
			return out
		}
	}
	return nil
}

// Num pulls a numeric field, tolerating JSON float64 and string digits.
func Num(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case float64:
			return vv, true
		case int:
			return float64(vv), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// CoerceEnum lower-cases v and returns it when allowed, else def.
func CoerceEnum(v string, allowed []string, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
