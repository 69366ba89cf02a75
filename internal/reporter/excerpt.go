package reporter

import "unicode/utf8"

const (
	// DefaultStringMaxLength is the default excerpt length for captured output.
	DefaultStringMaxLength = 4096

	// MinStringMaxLength leaves room for the ellipsis and one character.
	MinStringMaxLength = 4

	ellipsis = "..."
)

// Excerpt returns the last limit characters of s. Output longer than limit is
// cut to the ellipsis followed by its last limit-3 characters, so the result
// is always exactly limit characters. Bytes that are not valid UTF-8 count as
// one character each.
func Excerpt(s string, limit int) string {
	n := utf8.RuneCountInString(s)
	if n <= limit {
		return s
	}

	// Skip runes from the front until limit-3 remain.
	skip := n - (limit - len(ellipsis))
	i := 0
	for ; skip > 0; skip-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return ellipsis + s[i:]
}

// Head returns the first limit characters of s, replacing the end with the
// ellipsis when s is longer. Launch errors are cut this way so the errno
// prefix survives.
func Head(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	keep := limit - len(ellipsis)
	i := 0
	for ; keep > 0; keep-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i] + ellipsis
}
