package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CleanTitle normalizes a scraped video title: control characters are dropped,
// whitespace runs collapse to single spaces, and all-caps titles are rewritten
// in title case. Returns "" for empty input so callers can pick a fallback.
func CleanTitle(raw string) string {
	cleaned := strings.Builder{}
	prevSpace := true
	hasLower := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
		default:
			cleaned.WriteRune(r)
			prevSpace = false
			if unicode.IsLower(r) {
				hasLower = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	if !hasLower && strings.IndexFunc(title, unicode.IsUpper) >= 0 {
		title = cases.Title(language.Und).String(strings.ToLower(title))
	}
	return title
}
