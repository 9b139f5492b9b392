// Package emailcheck holds the pure predicates applied to an untrusted email
// string before it reaches the record store: a content-safety screen, a
// sanitizer, a conservative format check, and a disposable-domain denylist.
//
// None of the functions here touch I/O except LoadDenylist, which reads an
// optional extension file at startup.
package emailcheck

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// unsafePatterns flag markup and script-injection indicators. Any match
// rejects the submission outright; the sanitizer is never asked to repair it.
var unsafePatterns = []*regexp.Regexp{
	// script tags
	regexp.MustCompile(`(?i)<\s*/?\s*script`),
	// event handler attributes: onload=, onerror=, ...
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	// dangerous URI schemes
	regexp.MustCompile(`(?i)(?:javascript|vbscript|data)\s*:`),
	// CSS expression() / url()
	regexp.MustCompile(`(?i)(?:expression|url)\s*\(`),
	// embedded content
	regexp.MustCompile(`(?i)<\s*/?\s*(?:iframe|object|embed|svg|img|style|link|meta|base|form)\b`),
	// raw and percent-encoded angle brackets
	regexp.MustCompile(`[<>]`),
	regexp.MustCompile(`(?i)%3[ce]`),
	// HTML entities (&lt; &#60; &#x3c;)
	regexp.MustCompile(`(?i)&#?[a-z0-9]+;`),
}

// Unsafe reports whether raw contains any markup or injection indicator.
//
// The input is checked as received and again after NFKC folding, so that
// compatibility forms such as fullwidth "＜script＞" cannot slip past the
// ASCII patterns.
func Unsafe(raw string) bool {
	if raw == "" {
		return false
	}
	if matchAny(raw) {
		return true
	}
	if folded := norm.NFKC.String(raw); folded != raw {
		return matchAny(folded)
	}
	return false
}

func matchAny(s string) bool {
	for _, re := range unsafePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
