package textutil

import "strings"

// Truncate bounds text to max runes, appending an ellipsis when anything was
// cut. Non-positive max returns the trimmed input unchanged.
func Truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
