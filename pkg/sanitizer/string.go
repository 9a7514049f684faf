package sanitizer

import (
	"strings"
	"unicode"
)

// Trim removes leading and trailing whitespace.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveControlChars drops control characters, keeping newlines and tabs.
func RemoveControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// SingleLine joins lines with spaces and collapses runs of whitespace.
// Used for values that end up in mail headers.
func SingleLine(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// LimitLength truncates s to at most maxLength runes.
func LimitLength(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}

// Text is the pipeline applied to free-form user text.
var Text = Compose(RemoveControlChars, Trim)
