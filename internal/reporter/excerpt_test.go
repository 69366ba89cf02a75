package reporter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"empty", "", 10, ""},
		{"shorter than limit", "abc", 10, "abc"},
		{"exactly the limit", "abcdefghij", 10, "abcdefghij"},
		{"one over the limit", "abcdefghijk", 10, "...efghijk"},
		{"minimum limit", "abcdef", 4, "...f"},
		{"keeps the tail", strings.Repeat("a", 20000) + "end", 100, "..." + strings.Repeat("a", 94) + "end"},
		{"counts runes not bytes", "héllo wörld", 8, "...wörld"},
		{"multibyte under limit", "ééé", 3, "ééé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Excerpt(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcerpt_LengthAndIdempotence(t *testing.T) {
	inputs := []string{
		"",
		"short",
		strings.Repeat("x", 99),
		strings.Repeat("xy", 500),
		strings.Repeat("ü", 300),
		"\xff\xfe" + strings.Repeat("b", 200),
	}

	for _, max := range []int{4, 5, 10, 100, 1000} {
		for _, in := range inputs {
			got := Excerpt(in, max)
			if utf8.RuneCountInString(in) <= max {
				assert.Equal(t, in, got)
			} else {
				assert.Equal(t, max, utf8.RuneCountInString(got))
				assert.True(t, strings.HasPrefix(got, "..."))
				assert.True(t, strings.HasSuffix(in, got[3:]))
			}
			assert.Equal(t, got, Excerpt(got, max), "excerpt should be idempotent")
		}
	}
}

func TestHead(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"exactly the limit", "abcdefghij", 10, "abcdefghij"},
		{"keeps the front", "abcdefghijk", 10, "abcdefg..."},
		{"minimum limit", "abcdef", 4, "a..."},
		{"counts runes not bytes", "wörld héllo", 8, "wörld..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Head(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.limit)
		})
	}
}
