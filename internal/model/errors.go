package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrPermission marks host- or admin-only operations attempted by
	// someone else. Rejected before any write happens.
	ErrPermission = errors.New("permission denied")

	// ErrMeetingEnded marks operations that require an active meeting.
	ErrMeetingEnded = errors.New("meeting has ended")

	// ErrMuted marks a segment append from a muted speaker.
	ErrMuted = errors.New("speaker is muted")
)
