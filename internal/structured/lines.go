package structured

import (
	"regexp"
	"strings"
)

// LineItem is one entry recovered by the tier-3 heuristic parser: the text of
// the marker line and the accumulated body lines that followed it.
type LineItem struct {
	Title string
	Body  string
}

var (
	numberedRE = regexp.MustCompile(`^\s*\d+[\.\)]\s+(.+)$`)
	bulletRE   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
	headingRE  = regexp.MustCompile(`^#{1,4}\s+(.+)$`)
	boldRE     = regexp.MustCompile(`^\*\*(.+?)\*\*:?\s*(.*)$`)
)

// LineItems is the last-resort recovery tier: scan a prose response line by
// line, treat numbering/bullets/headings as item boundaries, and fold the
// following non-marker lines into the open item's body.
func LineItems(text string) []LineItem {
	var items []LineItem
	var current *LineItem
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, " "))
		items = append(items, *current)
		current = nil
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if title, rest, ok := markerLine(trimmed); ok {
			flush()
			current = &LineItem{Title: title}
			if rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if current != nil {
			body = append(body, trimmed)
		}
	}
	flush()
	return items
}

func markerLine(line string) (title, rest string, ok bool) {
	if m := numberedRE.FindStringSubmatch(line); m != nil {
		return splitTitle(m[1])
	}
	if m := bulletRE.FindStringSubmatch(line); m != nil {
		return splitTitle(m[1])
	}
	if m := headingRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), "", true
	}
	if m := boldRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", "", false
}

// splitTitle separates "Concept: description" marker lines so the concept
// name does not swallow its own description.
func splitTitle(s string) (string, string, bool) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{": ", " - ", " — "} {
		if idx := strings.Index(s, sep); idx > 0 && idx < 120 {
			return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(sep):]), true
		}
	}
	return s, "", true
}
