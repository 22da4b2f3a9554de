package ringer

import (
	"regexp"
	"strings"
)

// significantDigits is how many trailing digits identify a number.
const significantDigits = 10

// numericSender matches senders that are a bare phone number.
var numericSender = regexp.MustCompile(`^\+?\d+$`)

// NormalizeNumber strips every non-digit character.
func NormalizeNumber(number string) string {
	var b strings.Builder

	b.Grow(len(number))

	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// NumberKey returns the last ten digits of the normalized number.
func NumberKey(number string) string {
	digits := NormalizeNumber(number)
	if len(digits) > significantDigits {
		return digits[len(digits)-significantDigits:]
	}

	return digits
}

// MatchesNumber reports whether an incoming number belongs to a stored number.
// The incoming number must end with the last ten digits of the stored one.
// A stored number without digits never matches.
func MatchesNumber(incoming, stored string) bool {
	key := NumberKey(stored)
	if key == "" {
		return false
	}

	return strings.HasSuffix(NormalizeNumber(incoming), key)
}

// ExtractNumber returns the sender when it is a bare numeric token like "+15551234567".
func ExtractNumber(sender string) (string, bool) {
	sender = strings.TrimSpace(sender)
	if !numericSender.MatchString(sender) {
		return "", false
	}

	return sender, true
}

// NumberFromURI extracts the number from a "tel:" URI.
func NumberFromURI(uri string) (string, bool) {
	uri = strings.TrimSpace(uri)

	scheme, rest, found := strings.Cut(uri, ":")
	if !found || !strings.EqualFold(scheme, "tel") {
		return "", false
	}

	// Drop URI parameters such as ";phone-context=".
	rest, _, _ = strings.Cut(rest, ";")
	rest = strings.TrimPrefix(rest, "//")

	if NormalizeNumber(rest) == "" {
		return "", false
	}

	return rest, true
}
