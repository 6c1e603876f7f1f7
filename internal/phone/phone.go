// Package phone normalizes North American phone numbers to the
// +1XXXXXXXXXX form used throughout the roster.
package phone

import "strings"

// Normalize strips everything but digits and returns the number in
// +1XXXXXXXXXX form. Accepted inputs: 10 digits, 11 digits starting with 1
// (with or without a leading +). Anything else is rejected.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "+1" + digits, true
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits, true
	}
	return "", false
}
