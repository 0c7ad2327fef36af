// Package meetingcode generates and validates the short human-enterable
// codes used to join a meeting.
package meetingcode

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// alphabet excludes visually confusable characters (I, O, 0, 1).
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	segments      = 2
	segmentLength = 4
)

var codeRx = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

// New returns a fresh code in canonical XXXX-XXXX form.
func New() (string, error) {
	buf := make([]byte, segments*segmentLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("meetingcode: %w", err)
	}
	var b strings.Builder
	for i, c := range buf {
		if i > 0 && i%segmentLength == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

// Valid reports whether code is a well-formed meeting code. Input is
// canonicalized first, so lowercase and missing hyphens are accepted.
func Valid(code string) bool {
	return codeRx.MatchString(Canonical(code))
}

// Canonical strips separators, uppercases, and re-inserts the hyphen. Input
// that cannot form an 8-character code is returned uppercased as-is so the
// caller's error message shows what the user typed.
func Canonical(code string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() != segments*segmentLength {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	s := cleaned.String()
	return s[:segmentLength] + "-" + s[segmentLength:]
}
