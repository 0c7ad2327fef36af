package model

import "time"

// Profile is the directory record for an account.
type Profile struct {
	UserID            string    `json:"userId"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"displayName"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty"`
	CreationTime      time.Time `json:"creationTime"`
}

// Meeting is the root aggregate. Participants and MutedParticipants are sets;
// mutation goes through the store's atomic add/remove primitives, never
// through whole-document writes.
type Meeting struct {
	MeetingID         string     `json:"meetingId"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	ShareCode         string     `json:"shareCode,omitempty"`
	CreatedBy         string     `json:"createdBy"`
	Participants      []string   `json:"participants"`
	MutedParticipants []string   `json:"mutedParticipants,omitempty"`
	IsActive          bool       `json:"isActive"`
	IsScheduled       bool       `json:"isScheduled"`
	ScheduledFor      *time.Time `json:"scheduledFor,omitempty"`
	Language          string     `json:"language,omitempty"`
	Summary           *Summary   `json:"summary,omitempty"`
	CreationTime      time.Time  `json:"creationTime"`
	EndedTime         *time.Time `json:"endedTime,omitempty"`
	Deleted           bool       `json:"deleted,omitempty"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	DeletedBy         string     `json:"deletedBy,omitempty"`
}

// Phase reports the lifecycle phase derived from the flag pair. Exactly one
// of IsActive/IsScheduled may be set; an ended meeting carries neither.
func (m *Meeting) Phase() Phase {
	switch {
	case m.IsActive:
		return PhaseActive
	case m.IsScheduled:
		return PhaseScheduled
	default:
		return PhaseEnded
	}
}

// HasParticipant reports membership in the participant set.
func (m *Meeting) HasParticipant(userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsMuted reports whether userID is barred from appending segments.
func (m *Meeting) IsMuted(userID string) bool {
	for _, p := range m.MutedParticipants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsHost reports whether userID owns host privileges.
func (m *Meeting) IsHost(userID string) bool { return userID == m.CreatedBy }

// Phase is the meeting lifecycle phase.
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseActive    Phase = "active"
	PhaseEnded     Phase = "ended"
)

// TranscriptSegment is an immutable unit of finalized speech. Seq is assigned
// by the store on append and is the authoritative order; Timestamp is the
// client capture time and is for display only.
type TranscriptSegment struct {
	SegmentID   string    `json:"segmentId"`
	MeetingID   string    `json:"meetingId"`
	Seq         int64     `json:"seq"`
	SpeakerID   string    `json:"speakerId"`
	SpeakerName string    `json:"speakerName"`
	Text        string    `json:"text"`
	Timestamp   int64     `json:"timestamp"`
	StoredTime  time.Time `json:"storedTime"`
}

// Summary is the structured summarization result. Writes replace the whole
// value; fields are never merged across invocations.
type Summary struct {
	Overview             string                `json:"overview"`
	KeyPoints            []string              `json:"keyPoints"`
	ActionItems          []string              `json:"actionItems"`
	Decisions            []string              `json:"decisions"`
	SpeakerContributions []SpeakerContribution `json:"speakerContributions"`
	GeneratedAt          time.Time             `json:"generatedAt"`
}

// SpeakerContribution summarizes one speaker's part of the meeting.
type SpeakerContribution struct {
	Speaker      string `json:"speaker"`
	Contribution string `json:"contribution"`
}

// Participant is a resolved directory entry for display. Synthesized entries
// (profile record missing) carry Placeholder=true.
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	IsHost      bool   `json:"isHost"`
	IsMuted     bool   `json:"isMuted"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ListMeetingsRequest captures filters used when listing meetings.
type ListMeetingsRequest struct {
	UserID  string
	Phase   Phase
	Deleted bool
	Limit   int
}
