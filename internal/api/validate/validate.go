package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// languageRx accepts BCP-47-ish tags like "en" or "en-US".
var languageRx = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// Title validates a meeting title: non-blank after trimming, at most
// 200 bytes.
func Title(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("title is required")
	}
	if len(v) > 200 {
		return fmt.Errorf("title exceeds 200 characters")
	}
	return nil
}

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

// Language validates a transcription language tag.
func Language(v string) error {
	if v == "" {
		return fmt.Errorf("language is required")
	}
	if !languageRx.MatchString(v) {
		return fmt.Errorf("invalid language tag %q", v)
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// SegmentText validates transcript segment input: non-blank, bounded.
func SegmentText(v string) error {
	if err := NonEmpty("text", v); err != nil {
		return err
	}
	return MaxLen("text", v, 9000)
}

// Profile validates profile upsert input.
func Profile(userID, email, displayName string) error {
	if err := NonEmpty("userId", userID); err != nil {
		return err
	}
	if err := Email(email); err != nil {
		return err
	}
	if err := NonEmpty("displayName", displayName); err != nil {
		return err
	}
	return MaxLen("displayName", displayName, 100)
}
