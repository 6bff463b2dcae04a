package identity

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLen       = 254
	maxDisplayNameLen = 80
)

// NormalizeEmail canonicalizes an address for uniqueness checks.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validEmail accepts a bare addr-spec; display-name forms like "A <a@b>" are refused.
func validEmail(s string) bool {
	if s == "" || len(s) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// cleanDisplayName collapses whitespace and bounds the length in runes.
func cleanDisplayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxDisplayNameLen {
		return s
	}
	return string([]rune(s)[:maxDisplayNameLen])
}
