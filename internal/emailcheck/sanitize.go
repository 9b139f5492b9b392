package emailcheck

import (
	"strings"
	"unicode/utf8"

	"github.com/kennygrant/sanitize"
)

// MaxEmailLen is the longest address accepted after sanitization (RFC 5321 path limit).
const MaxEmailLen = 254

var stripChars = strings.NewReplacer(
	"<", "", ">", "",
	"'", "", `"`, "", "`", "",
	";", "",
	"(", "", ")", "",
	"{", "", "}", "",
	"[", "", "]", "",
)

// Sanitize strips HTML tags and a fixed set of dangerous characters from s,
// trims surrounding whitespace, and truncates the result to MaxEmailLen
// runes. It does not lowercase; callers normalize case separately.
//
// An empty result means the caller supplied nothing usable.
func Sanitize(s string) string {
	s = sanitize.HTML(s)
	s = stripChars.Replace(s)
	s = strings.TrimSpace(s)
	return Truncate(s, MaxEmailLen)
}

// Truncate returns s cut to at most max runes. A max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
