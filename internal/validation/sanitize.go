package validation

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun    = regexp.MustCompile(`\s+`)
	emailInvalidChar = regexp.MustCompile(`[^A-Za-z0-9@._+\-]`)
)

// SanitizeString strips null bytes, trims, and collapses whitespace runs to
// a single space.
func SanitizeString(input string) string {
	if input == "" {
		return ""
	}
	sanitized := strings.ReplaceAll(input, "\x00", "")
	sanitized = strings.TrimSpace(sanitized)
	return whitespaceRun.ReplaceAllString(sanitized, " ")
}

// SanitizeEmail lower-cases and trims an address, then drops every
// character outside [A-Za-z0-9@._+-].
func SanitizeEmail(email string) string {
	sanitized := strings.ToLower(strings.TrimSpace(email))
	return emailInvalidChar.ReplaceAllString(sanitized, "")
}
