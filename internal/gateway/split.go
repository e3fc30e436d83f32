package gateway

import "strings"

// splitMessage breaks text into parts of at most maxLen bytes for the
// transport. Split points prefer a blank-line (paragraph) boundary within
// the window, then a line boundary, then a hard cut. Leading newlines on
// continuation parts are trimmed; parts are never empty.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		window := remaining[:maxLen]
		splitAt := strings.LastIndex(window, "\n\n")
		if splitAt <= 0 {
			splitAt = strings.LastIndex(window, "\n")
		}
		if splitAt <= 0 {
			splitAt = maxLen
		}

		parts = append(parts, remaining[:splitAt])
		remaining = strings.TrimLeft(remaining[splitAt:], "\n")
	}

	return parts
}
