package validation

import (
	"strings"
	"unicode"
)

// StripUnprintable removes non-printable characters, keeping tab, newline and
// carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanText strips unprintable characters and surrounding whitespace from
// user-entered text such as notes, comments and tag names.
func CleanText(s string) string {
	return strings.TrimSpace(StripUnprintable(s))
}
