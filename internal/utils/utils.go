package utils

import "strings"

// Preview renders s as a single line of at most limit runes for log fields.
// Runs of whitespace, newlines included, collapse to one space. A cut preview ends with "...".
func Preview(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
