// Package sqlite implements the store on an embedded SQLite database. It is
// the default driver for the local build target.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
)

// Open opens (or creates) a SQLite database at the given path, enables WAL
// journal mode and applies the schema.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
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
    creation_time      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS meetings (
    meeting_id    TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    share_code    TEXT UNIQUE,
    created_by    TEXT NOT NULL,
    is_active     INTEGER NOT NULL DEFAULT 0,
    is_scheduled  INTEGER NOT NULL DEFAULT 0,
    scheduled_for TIMESTAMP,
    language      TEXT NOT NULL DEFAULT '',
    summary_json  TEXT,
    creation_time TIMESTAMP NOT NULL,
    ended_time    TIMESTAMP,
    deleted       INTEGER NOT NULL DEFAULT 0,
    deleted_at    TIMESTAMP,
    deleted_by    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meeting_participants (
    meeting_id TEXT NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL,
    muted      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (meeting_id, user_id)
);

CREATE TABLE IF NOT EXISTS meeting_segments (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    segment_id   TEXT NOT NULL UNIQUE,
    meeting_id   TEXT NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
    speaker_id   TEXT NOT NULL,
    speaker_name TEXT NOT NULL,
    text         TEXT NOT NULL,
    ts_millis    INTEGER NOT NULL,
    stored_time  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON meeting_segments(meeting_id, seq);
`

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &sqlStore{db: db} }

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Profiles() store.Profiles { return &profiles{db: s.db} }
func (s *sqlStore) Meetings() store.Meetings { return &meetings{db: s.db} }
func (s *sqlStore) Segments() store.Segments { return &segments{db: s.db} }

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Profiles ---

type profiles struct{ db *sql.DB }

func (p *profiles) Upsert(ctx context.Context, in *model.Profile) (*model.Profile, error) {
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, email, display_name, preferred_language, creation_time)
        VALUES (?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET
            email=excluded.email,
            display_name=excluded.display_name,
            preferred_language=excluded.preferred_language
    `, in.UserID, in.Email, in.DisplayName, in.PreferredLanguage, now)
	if err != nil {
		return nil, err
	}
	return p.Get(ctx, in.UserID)
}

func (p *profiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	var out model.Profile
	row := p.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, preferred_language, creation_time
        FROM profiles WHERE user_id=?
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
	for _, id := range userIDs {
		prof, err := p.Get(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = prof
	}
	return out, nil
}

// --- Meetings ---

type meetings struct{ db *sql.DB }

func (m *meetings) Create(ctx context.Context, in *model.Meeting) (*model.Meeting, error) {
	created := in.CreationTime
	if created.IsZero() {
		created = time.Now().UTC()
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shareCode any
	if in.ShareCode != "" {
		shareCode = in.ShareCode
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO meetings (meeting_id, title, description, share_code, created_by,
                              is_active, is_scheduled, scheduled_for, language, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?,?)
    `, in.MeetingID, in.Title, in.Description, shareCode, in.CreatedBy,
		in.IsActive, in.IsScheduled, in.ScheduledFor, in.Language, created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	// createdBy is always a participant
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO meeting_participants (meeting_id, user_id) VALUES (?,?)
    `, in.MeetingID, in.CreatedBy); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m.Get(ctx, in.MeetingID)
}

func (m *meetings) Get(ctx context.Context, meetingID string) (*model.Meeting, error) {
	return m.getWhere(ctx, "meeting_id=?", meetingID)
}

func (m *meetings) GetByShareCode(ctx context.Context, code string) (*model.Meeting, error) {
	return m.getWhere(ctx, "share_code=?", code)
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
		summaryJSON sql.NullString
		deletedBy   sql.NullString
	)
	err := row.Scan(&out.MeetingID, &out.Title, &out.Description, &shareCode, &out.CreatedBy,
		&out.IsActive, &out.IsScheduled, &out.ScheduledFor, &out.Language, &summaryJSON,
		&out.CreationTime, &out.EndedTime, &out.Deleted, &out.DeletedAt, &deletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.ShareCode = shareCode.String
	out.DeletedBy = deletedBy.String
	if summaryJSON.Valid && summaryJSON.String != "" {
		var s model.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &s); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out.Summary = &s
	}
	return &out, nil
}

func (m *meetings) loadParticipants(ctx context.Context, mt *model.Meeting) error {
	rows, err := m.db.QueryContext(ctx, `
        SELECT user_id, muted FROM meeting_participants WHERE meeting_id=? ORDER BY user_id
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
	args := []any{}
	where := " WHERE mt.deleted=?"
	args = append(args, req.Deleted)
	if req.UserID != "" {
		q += ` JOIN meeting_participants mp ON mp.meeting_id = mt.meeting_id`
		where += " AND mp.user_id=?"
		args = append(args, req.UserID)
	}
	switch req.Phase {
	case model.PhaseActive:
		where += " AND mt.is_active=1"
	case model.PhaseScheduled:
		where += " AND mt.is_scheduled=1"
	case model.PhaseEnded:
		where += " AND mt.is_active=0 AND mt.is_scheduled=0"
	}
	q += where + " ORDER BY mt.creation_time DESC"
	if req.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, req.Limit)
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
        SELECT ?, ? WHERE EXISTS (SELECT 1 FROM meetings WHERE meeting_id=?)
        ON CONFLICT(meeting_id, user_id) DO NOTHING
    `, meetingID, userID, meetingID)
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
        DELETE FROM meeting_participants WHERE meeting_id=? AND user_id=?
    `, meetingID, userID)
	return err
}

func (m *meetings) SetMuted(ctx context.Context, meetingID, userID string, muted bool) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meeting_participants SET muted=? WHERE meeting_id=? AND user_id=?
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
        UPDATE meetings SET is_active=1, is_scheduled=0
        WHERE meeting_id=? AND is_scheduled=1 AND deleted=0
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
        UPDATE meetings SET is_active=0, is_scheduled=0, ended_time=?
        WHERE meeting_id=? AND (is_active=1 OR is_scheduled=1)
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
	return m.updateField(ctx, `UPDATE meetings SET language=? WHERE meeting_id=?`, language, meetingID)
}

func (m *meetings) ReplaceSummary(ctx context.Context, meetingID string, s *model.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return m.updateField(ctx, `UPDATE meetings SET summary_json=? WHERE meeting_id=?`, string(data), meetingID)
}

func (m *meetings) UpdateSummaryOverview(ctx context.Context, meetingID, overview string) error {
	mt, err := m.Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if mt.Summary == nil {
		return model.ErrConflict
	}
	mt.Summary.Overview = overview
	return m.ReplaceSummary(ctx, meetingID, mt.Summary)
}

func (m *meetings) Archive(ctx context.Context, meetingID, deletedBy string, at time.Time) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE meetings SET deleted=1, deleted_at=?, deleted_by=?
        WHERE meeting_id=? AND is_active=0 AND is_scheduled=0 AND deleted=0
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
	return m.updateField(ctx, `UPDATE meetings SET deleted=0, deleted_at=NULL, deleted_by='' WHERE meeting_id=?`, meetingID)
}

func (m *meetings) Purge(ctx context.Context, meetingID string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM meetings WHERE meeting_id=? AND deleted=1`, meetingID)
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
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE meeting_id=?`, meetingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Segments ---

type segments struct{ db *sql.DB }

func (s *segments) Append(ctx context.Context, seg *model.TranscriptSegment) (*model.TranscriptSegment, error) {
	stored := time.Now().UTC()
	// Guarded single-statement insert: the row lands only if the meeting is
	// active and the speaker is an unmuted participant.
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO meeting_segments (segment_id, meeting_id, speaker_id, speaker_name, text, ts_millis, stored_time)
        SELECT ?, ?, ?, ?, ?, ?, ?
        WHERE EXISTS (SELECT 1 FROM meetings m WHERE m.meeting_id=? AND m.is_active=1 AND m.deleted=0)
          AND EXISTS (SELECT 1 FROM meeting_participants p WHERE p.meeting_id=? AND p.user_id=? AND p.muted=0)
        RETURNING seq
    `, seg.SegmentID, seg.MeetingID, seg.SpeakerID, seg.SpeakerName, seg.Text, seg.Timestamp, stored,
		seg.MeetingID, seg.MeetingID, seg.SpeakerID)

	var seq int64
	if err := row.Scan(&seq); err != nil {
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
        SELECT is_active, deleted FROM meetings WHERE meeting_id=?
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
        SELECT muted FROM meeting_participants WHERE meeting_id=? AND user_id=?
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
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE meeting_id=?`, meetingID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT seq, segment_id, meeting_id, speaker_id, speaker_name, text, ts_millis, stored_time
        FROM meeting_segments WHERE meeting_id=? ORDER BY seq ASC
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

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
