package repository

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateSummary(t *testing.T) {
	cases := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short unchanged", "prepayment updated", 400, "prepayment updated"},
		{"whitespace trimmed", "  done  ", 400, "done"},
		{"ascii overflow", strings.Repeat("a", 10), 4, "aaaa..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateSummary(tc.text, tc.max); got != tc.want {
				t.Errorf("TruncateSummary(%q, %d) = %q, want %q", tc.text, tc.max, got, tc.want)
			}
		})
	}
}

func TestTruncateSummaryCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("игра", 30)

	got := TruncateSummary(text, 100)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated summary is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("got %q, want ellipsis suffix", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 100 {
		t.Errorf("kept %d runes, want 100", n)
	}
}
