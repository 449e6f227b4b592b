package textutil

import "testing"

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "How Compilers Work", "How Compilers Work"},
		{"collapses whitespace", "  How\tCompilers\n\nWork  ", "How Compilers Work"},
		{"drops control characters", "How\x00 Compilers\x1b Work", "How Compilers Work"},
		{"title-cases shouty titles", "HOW COMPILERS WORK", "How Compilers Work"},
		{"keeps mixed case", "iPhone 16 Review", "iPhone 16 Review"},
		{"digits only untouched", "2024", "2024"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanTitle(tc.in); got != tc.want {
				t.Fatalf("CleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than limit", "short", 10, "short"},
		{"exactly at limit", "exact", 5, "exact"},
		{"cut with ellipsis", "a longer sentence", 8, "a longer…"},
		{"trailing space before cut trimmed", "abc def", 4, "abc…"},
		{"non-positive max", "anything at all", 0, "anything at all"},
		{"multibyte safe", "héllo wörld", 7, "héllo w…"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truncate(tc.in, tc.max); got != tc.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
