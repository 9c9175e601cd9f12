// Package suggest handles the inline suggestion markup convention used by the
// assistant: clickable suggestions are embedded in bot text as "👉 [text]".
//
// The same pattern is shared by the display layer (which extracts the buttons)
// and the speech path (which strips the markers before synthesis).
package suggest

import (
	"regexp"
	"strings"
)

// markerPattern matches one suggestion marker including the pointing emoji and
// the bracketed label.
var markerPattern = regexp.MustCompile(`👉\s*\[[^\]]+\]`)

// labelPattern captures the label inside one suggestion marker.
var labelPattern = regexp.MustCompile(`👉\s*\[([^\]]+)\]`)

// Strip removes all suggestion markers from text and trims the result.
func Strip(text string) string {
	return strings.TrimSpace(markerPattern.ReplaceAllString(text, ""))
}

// Extract returns the suggestion labels embedded in text, in order.
func Extract(text string) []string {
	matches := labelPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, m[1])
	}
	return labels
}
