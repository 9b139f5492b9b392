package emailcheck

import (
	"regexp"
	"strings"
)

// emailPattern is intentionally conservative: ASCII only, a dotted domain
// whose labels do not start or end with '-', and an alphabetic final label.
var emailPattern = regexp.MustCompile(
	`^[A-Za-z0-9._%+\-]+@` +
		`[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?` +
		`(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*` +
		`\.[A-Za-z]+$`,
)

// ValidFormat reports whether email has the local-part@domain.tld shape.
func ValidFormat(email string) bool {
	return emailPattern.MatchString(email)
}

// Domain returns the lowercased part after the last '@', or "" if there is none.
func Domain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}
