package agents

import (
	"strings"
	"unicode/utf8"
)

const elisionMarker = "\n\n[... content truncated ...]\n\n"

// capBytes bounds s to at most n bytes, backing off so a multi-byte UTF-8
// sequence is never split.
func capBytes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// truncateMiddle bounds s to roughly budget characters by keeping a head
// fraction and the remaining tail, joined with an elision marker. Keeping
// both ends preserves introduction and conclusion context for the model.
func truncateMiddle(s string, budget int, headFrac float64) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	if headFrac <= 0 || headFrac >= 1 {
		headFrac = 0.7
	}
	head := int(float64(budget) * headFrac)
	tail := budget - head
	if tail < 0 {
		tail = 0
	}
	out := capBytes(s, head)
	if tail > 0 {
		start := len(s) - tail
		for start < len(s) && !utf8.RuneStart(s[start]) {
			start++
		}
		out += elisionMarker + s[start:]
	}
	return out
}

// lastTurns bounds a conversation window to the most recent n entries.
func lastTurns[T any](turns []T, n int) []T {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// normalizeKey lowercases and collapses a string for case-insensitive
// dedup comparisons.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
