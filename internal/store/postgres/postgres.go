// Package postgres implements the store on PostgreSQL via the pgx stdlib
// driver. It is the default driver for the cloud build target.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver, verifies
// connectivity and applies the schema.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id            TEXT PRIMARY KEY,
    email              TEXT NOT NULL,
    display_name       TEXT NOT NULL,
    preferred_language TEXT NOT NULL DEFAULT '',
    creation_time      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
    meeting_id    TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    share_code    TEXT UNIQUE,
    created_by    TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT FALSE,
    is_scheduled  BOOLEAN NOT NULL DEFAULT FALSE,
    scheduled_for TIMESTAMPTZ,
    language      TEXT NOT NULL DEFAULT '',
    summary_json  JSONB,
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_time    TIMESTAMPTZ,
    deleted       BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at    TIMESTAMPTZ,
    deleted_by    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meeting_participants (
    meeting_id TEXT NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL,
    muted      BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (meeting_id, user_id)
);

CREATE TABLE IF NOT EXISTS meeting_segments (
    seq          BIGSERIAL PRIMARY KEY,
    segment_id   TEXT NOT NULL UNIQUE,
    meeting_id   TEXT NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
    speaker_id   TEXT NOT NULL,
    speaker_name TEXT NOT NULL,
    text         TEXT NOT NULL,
    ts_millis    BIGINT NOT NULL,
    stored_time  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON meeting_segments(meeting_id, seq);
`

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Profiles() store.Profiles { return &profiles{db: s.db} }
func (s *pgStore) Meetings() store.Meetings { return &meetings{db: s.db} }
func (s *pgStore) Segments() store.Segments { return &segments{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Profiles ---

type profiles struct{ db *sql.DB }

func (p *profiles) Upsert(ctx context.Context, in *model.Profile) (*model.Profile, error) {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, email, display_name, preferred_language)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id) DO UPDATE SET
            email=EXCLUDED.email,
            display_name=EXCLUDED.display_name,
            preferred_language=EXCLUDED.preferred_language
    `, in.UserID, in.Email, in.DisplayName, in.PreferredLanguage)
	if err != nil {
		return nil, err
	}
	return p.Get(ctx, in.UserID)
}

func (p *profiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	var out model.Profile
	row := p.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, preferred_language, creation_time
        FROM profiles WHERE user_id=$1
    `, userID)
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.PreferredLanguage, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (p *profiles) GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT user_id, email, display_name, preferred_language, creation_time
        FROM profiles WHERE user_id = ANY($1)
    `, userIDs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var prof model.Profile
		if err := rows.Scan(&prof.UserID, &prof.Email, &prof.DisplayName, &prof.PreferredLanguage, &prof.CreationTime); err != nil {
			return nil, err
		}
		out[prof.UserID] = &prof
	}
	return out, rows.Err()
}

// --- Meetings ---

type meetings struct{ db *sql.DB }

func (m *meetings) Create(ctx context.Context, in *model.Meeting) (*model.Meeting, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shareCode any
	if in.ShareCode != "" {
		shareCode = in.ShareCode
	}
	var created any
	if !in.CreationTime.IsZero() {
		created = in.CreationTime
	} else {
		created = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO meetings (meeting_id, title, description, share_code, created_by,
                              is_active, is_scheduled, scheduled_for, language, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, in.MeetingID, in.Title, in.Description, shareCode, in.CreatedBy,
		in.IsActive, in.IsScheduled, in.ScheduledFor, in.Language, created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO meeting_participants (meeting_id, user_id) VALUES ($1,$2)
    `, in.MeetingID, in.CreatedBy); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m.Get(ctx, in.MeetingID)
}

func (m *meetings) Get(ctx context.Context, meetingID string) (*model.Meeting, error) {
	return m.getWhere(ctx, "meeting_id=$1", meetingID)
}

func (m *meetings) GetByShareCode(ctx context.Context, code string) (*model.Meeting, error) {
	return m.getWhere(ctx, "share_code=$1", code)
}

func (m *meetings) getWhere(ctx context.Context, where string, arg any) (*model.Meeting, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT meeting_id, title, description, share_code, created_by, is_active, is_scheduled,
               scheduled_for, language, summary_json, creation_time, ended_time, deleted, deleted_at, deleted_by
        FROM meetings WHERE `+where, arg)
	out, err := scanMeeting(row)
	if err != nil {
		return nil, err
	}
	if err := m.loadParticipants(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanMeeting(row rowScanner) (*model.Meeting, error) {
	var (
		out         model.Meeting
		shareCode   sql.NullString
		summaryJSON []byte
	)
	err := row.Scan(&out.MeetingID, &out.Title, &out.Description, &shareCode, &out.CreatedBy,
		&out.IsActive, &out.IsScheduled, &out.ScheduledFor, &out.Language, &summaryJSON,
		&out.CreationTime, &out.EndedTime, &out.Deleted, &out.DeletedAt, &out.DeletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.ShareCode = shareCode.String
	if len(summaryJSON) > 0 {
		var s model.Summary
		if err := json.Unmarshal(summaryJSON, &s); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out.Summary = &s
	}
	return &out, nil
}

func (m *meetings) loadParticipants(ctx context.Context, mt *model.Meeting) error {
	rows, err := m.db.QueryContext(ctx, `
        SELECT user_id, muted FROM meeting_participants WHERE meeting_id=$1 ORDER BY user_id
    `, mt.MeetingID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	mt.Participants = nil
	mt.MutedParticipants = nil
	for rows.Next() {
		var userID string
		var muted bool
		if err := rows.Scan(&userID, &muted); err != nil {
			return err
		}
		mt.Participants = append(mt.Participants, userID)
		if muted {
			mt.MutedParticipants = append(mt.MutedParticipants, userID)
		}
	}
	return rows.Err()
}

func (m *meetings) List(ctx context.Context, req model.ListMeetingsRequest) ([]*model.Meeting, error) {
	q := `
        SELECT mt.meeting_id, mt.title, mt.description, mt.share_code, mt.created_by, mt.is_active,
               mt.is_scheduled, mt.scheduled_for, mt.language, mt.summary_json, mt.creation_time,
               mt.ended_time, mt.deleted, mt.deleted_at, mt.deleted_by
        FROM meetings mt`
	args := []any{req.Deleted}
	where := " WHERE mt.deleted=$1"
	if req.UserID != "" {
		q += ` JOIN meeting_participants mp ON mp.meeting_id = mt.meeting_id`
		args = append(args, req.UserID)
		where += fmt.Sprintf(" AND mp.user_id=$%d", len(args))
	}
	switch req.Phase {
	case model.PhaseActive:
		where += " AND mt.is_active"
	case model.PhaseScheduled:
		where += " AND mt.is_scheduled"
	case model.PhaseEnded:
		where += " AND NOT mt.is_active AND NOT mt.is_scheduled"
	}
	q += where + " ORDER BY mt.creation_time DESC"
	if req.Limit > 0 {
		args = append(args, req.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Meeting
	for rows.Next() {
		mt, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, mt := range out {
		if err := m.loadParticipants(ctx, mt); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *meetings) AddParticipant(ctx context.Context, meetingID, userID string) error {
	res, err := m.db.ExecContext(ctx, `
        INSERT INTO meeting_participants (meeting_id, user_id)
        SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM meetings WHERE meeting_id=$1)
        ON CONFLICT (meeting_id, user_id) DO NOTHING
    `, meetingID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return m.requireExists(ctx, meetingID)
	}
	return nil
}

func (m *meetings) RemoveParticipant(ctx context.Context, meetingID, userID string) error {
	if err := m.requireExists(ctx, meetingID); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, `
        DELETE FROM meeting_participants WHERE meeting_id=$1 AND user_id=$2
    `, meetingID, userID)
	return err
}

func (m *meetings) SetMuted(ctx context.Context, meetingID, userID string, muted bool) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meeting_participants SET muted=$1 WHERE meeting_id=$2 AND user_id=$3
    `, muted, meetingID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := m.requireExists(ctx, meetingID); err != nil {
			return err
		}
		if muted {
			return model.ErrPermission // not a participant
		}
	}
	return nil
}

func (m *meetings) Start(ctx context.Context, meetingID string) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meetings SET is_active=TRUE, is_scheduled=FALSE
        WHERE meeting_id=$1 AND is_scheduled AND NOT deleted
    `, meetingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	mt, err := m.Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if mt.IsActive {
		return nil // already running
	}
	return model.ErrMeetingEnded
}

func (m *meetings) End(ctx context.Context, meetingID string, endedAt time.Time) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meetings SET is_active=FALSE, is_scheduled=FALSE, ended_time=$1
        WHERE meeting_id=$2 AND (is_active OR is_scheduled)
    `, endedAt.UTC(), meetingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return m.requireExists(ctx, meetingID) // already ended is a no-op
	}
	return nil
}

func (m *meetings) SetLanguage(ctx context.Context, meetingID, language string) error {
	return m.updateField(ctx, `UPDATE meetings SET language=$1 WHERE meeting_id=$2`, language, meetingID)
}

func (m *meetings) ReplaceSummary(ctx context.Context, meetingID string, s *model.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return m.updateField(ctx, `UPDATE meetings SET summary_json=$1 WHERE meeting_id=$2`, data, meetingID)
}

func (m *meetings) UpdateSummaryOverview(ctx context.Context, meetingID, overview string) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meetings SET summary_json = jsonb_set(summary_json, '{overview}', to_jsonb($1::text))
        WHERE meeting_id=$2 AND summary_json IS NOT NULL
    `, overview, meetingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := m.requireExists(ctx, meetingID); err != nil {
			return err
		}
		return model.ErrConflict // no summary stored yet
	}
	return nil
}

func (m *meetings) Archive(ctx context.Context, meetingID, deletedBy string, at time.Time) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meetings SET deleted=TRUE, deleted_at=$1, deleted_by=$2
        WHERE meeting_id=$3 AND NOT is_active AND NOT is_scheduled AND NOT deleted
    `, at.UTC(), deletedBy, meetingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		mt, err := m.Get(ctx, meetingID)
		if err != nil {
			return err
		}
		if mt.Deleted {
			return nil
		}
		return model.ErrConflict
	}
	return nil
}

func (m *meetings) Restore(ctx context.Context, meetingID string) error {
	return m.updateField(ctx, `UPDATE meetings SET deleted=FALSE, deleted_at=NULL, deleted_by='' WHERE meeting_id=$1`, meetingID)
}

func (m *meetings) Purge(ctx context.Context, meetingID string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM meetings WHERE meeting_id=$1 AND deleted`, meetingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := m.requireExists(ctx, meetingID); err != nil {
			return err
		}
		return model.ErrConflict // exists but not archived
	}
	return nil
}

func (m *meetings) updateField(ctx context.Context, query string, args ...any) error {
	res, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *meetings) requireExists(ctx context.Context, meetingID string) error {
	var one int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE meeting_id=$1`, meetingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Segments ---

type segments struct{ db *sql.DB }

func (s *segments) Append(ctx context.Context, seg *model.TranscriptSegment) (*model.TranscriptSegment, error) {
	// Guarded single-statement insert: the row lands only if the meeting is
	// active and the speaker is an unmuted participant.
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO meeting_segments (segment_id, meeting_id, speaker_id, speaker_name, text, ts_millis)
        SELECT $1, $2, $3, $4, $5, $6
        WHERE EXISTS (SELECT 1 FROM meetings m WHERE m.meeting_id=$2 AND m.is_active AND NOT m.deleted)
          AND EXISTS (SELECT 1 FROM meeting_participants p WHERE p.meeting_id=$2 AND p.user_id=$3 AND NOT p.muted)
        RETURNING seq, stored_time
    `, seg.SegmentID, seg.MeetingID, seg.SpeakerID, seg.SpeakerName, seg.Text, seg.Timestamp)

	var seq int64
	var stored time.Time
	if err := row.Scan(&seq, &stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.diagnoseAppendFailure(ctx, seg)
		}
		return nil, err
	}
	out := *seg
	out.Seq = seq
	out.StoredTime = stored
	return &out, nil
}

// diagnoseAppendFailure maps a refused guarded insert to the sentinel the
// caller can act on.
func (s *segments) diagnoseAppendFailure(ctx context.Context, seg *model.TranscriptSegment) error {
	var isActive, deleted bool
	err := s.db.QueryRowContext(ctx, `
        SELECT is_active, deleted FROM meetings WHERE meeting_id=$1
    `, seg.MeetingID).Scan(&isActive, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !isActive || deleted {
		return model.ErrMeetingEnded
	}
	var muted bool
	err = s.db.QueryRowContext(ctx, `
        SELECT muted FROM meeting_participants WHERE meeting_id=$1 AND user_id=$2
    `, seg.MeetingID, seg.SpeakerID).Scan(&muted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPermission
	}
	if err != nil {
		return err
	}
	if muted {
		return model.ErrMuted
	}
	return model.ErrConflict
}

func (s *segments) List(ctx context.Context, meetingID string) ([]*model.TranscriptSegment, error) {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE meeting_id=$1`, meetingID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT seq, segment_id, meeting_id, speaker_id, speaker_name, text, ts_millis, stored_time
        FROM meeting_segments WHERE meeting_id=$1 ORDER BY seq ASC
    `, meetingID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []*model.TranscriptSegment{}
	for rows.Next() {
		var seg model.TranscriptSegment
		if err := rows.Scan(&seg.Seq, &seg.SegmentID, &seg.MeetingID, &seg.SpeakerID,
			&seg.SpeakerName, &seg.Text, &seg.Timestamp, &seg.StoredTime); err != nil {
			return nil, err
		}
		out = append(out, &seg)
	}
	return out, rows.Err()
}
