package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString normalizes a single-line field such as a name, city or search
// term. Control characters are dropped, whitespace runs collapse to one space and
// the result is capped at maxRunes characters when maxRunes is positive.
func SanitizeString(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r), r == utf8.RuneError:
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return truncateRunes(b.String(), maxRunes)
}

// SanitizeMultiline keeps line breaks for free-text notes and dispute reasons.
// Each line is cleaned like SanitizeString and blank lines at the edges are removed.
func SanitizeMultiline(input string, maxRunes int) string {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = SanitizeString(line, 0)
	}
	return truncateRunes(strings.Trim(strings.Join(lines, "\n"), "\n"), maxRunes)
}

// SanitizeCode normalizes identifiers buyers type by hand, such as coupon codes
// and GSTINs: all whitespace is removed and letters are upper-cased.
func SanitizeCode(input string, maxRunes int) string {
	code := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, input)
	return truncateRunes(code, maxRunes)
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return strings.TrimRight(s[:i], " ")
		}
		n++
	}
	return s
}
