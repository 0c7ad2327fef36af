package store

import (
	"context"
	"time"

	"github.com/meetscribe/meetscribe/server/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (memory, sqlite,
// postgres). Every mutating method is a single atomic primitive: appends are
// append-one-element, set mutations are add/remove-one-member, and field
// updates are conditional single-field replacements. Nothing here
// read-modify-writes a whole meeting document, which is what keeps
// concurrent writers from losing updates.
type Store interface {
	Profiles() Profiles
	Meetings() Meetings
	Segments() Segments

	// Ping verifies backend connectivity for health probes.
	Ping(ctx context.Context) error
}

type Profiles interface {
	Upsert(ctx context.Context, p *model.Profile) (*model.Profile, error)
	Get(ctx context.Context, userID string) (*model.Profile, error)
	// GetBatch resolves many profiles at once. Missing records are simply
	// absent from the result map; partial resolution is not an error.
	GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error)
}

type Meetings interface {
	Create(ctx context.Context, m *model.Meeting) (*model.Meeting, error)
	Get(ctx context.Context, meetingID string) (*model.Meeting, error)
	GetByShareCode(ctx context.Context, code string) (*model.Meeting, error)
	List(ctx context.Context, req model.ListMeetingsRequest) ([]*model.Meeting, error)

	// AddParticipant and RemoveParticipant are atomic set operations, so
	// concurrent joins by different users commute without lost updates.
	// Removal also clears the user's muted flag.
	AddParticipant(ctx context.Context, meetingID, userID string) error
	RemoveParticipant(ctx context.Context, meetingID, userID string) error

	// SetMuted atomically adds or removes userID from the muted set.
	SetMuted(ctx context.Context, meetingID, userID string, muted bool) error

	// Start advances scheduled → active. Starting an already-active meeting
	// is a no-op; starting an ended meeting returns model.ErrMeetingEnded.
	Start(ctx context.Context, meetingID string) error

	// End advances to ended and is idempotent: ending an already-ended
	// meeting is a no-op, not an error.
	End(ctx context.Context, meetingID string, endedAt time.Time) error

	SetLanguage(ctx context.Context, meetingID, language string) error

	// ReplaceSummary writes the summary as a single atomic field
	// replacement. Any prior summary is discarded wholesale.
	ReplaceSummary(ctx context.Context, meetingID string, s *model.Summary) error

	// UpdateSummaryOverview rewrites only the overview text of an existing
	// summary (the admin hand-edit path). model.ErrConflict if no summary
	// has been stored yet.
	UpdateSummaryOverview(ctx context.Context, meetingID, overview string) error

	// Archive soft-deletes an ended meeting; Restore reverses it; Purge
	// permanently removes an archived meeting and its segments.
	Archive(ctx context.Context, meetingID, deletedBy string, at time.Time) error
	Restore(ctx context.Context, meetingID string) error
	Purge(ctx context.Context, meetingID string) error
}

type Segments interface {
	// Append atomically adds one segment and assigns its Seq. The write is
	// conditional on the meeting being active and the speaker being an
	// unmuted participant; violations surface as model.ErrMeetingEnded,
	// model.ErrMuted or model.ErrPermission with no partial write.
	Append(ctx context.Context, seg *model.TranscriptSegment) (*model.TranscriptSegment, error)

	// List returns segments in authoritative store order (Seq ascending).
	List(ctx context.Context, meetingID string) ([]*model.TranscriptSegment, error)
}
