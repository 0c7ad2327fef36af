package localstate

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Spool is a durable buffer for finalized segments that could not be
// delivered to the service. Segments are drained in enqueue order per
// meeting so server-side sequencing still reflects capture order.
type Spool struct {
	db *sql.DB
}

// OpenSpool opens (or creates) the spool database at the default location.
func OpenSpool() (*Spool, error) {
	path, err := DBPath()
	if err != nil {
		return nil, err
	}
	return OpenSpoolAt(path)
}

// OpenSpoolAt opens the spool database at an explicit path.
func OpenSpoolAt(path string) (*Spool, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureDefaultPrefs(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Spool{db: db}, nil
}

// Close closes the underlying database.
func (s *Spool) Close() error { return s.db.Close() }

// DB exposes the handle for preference access.
func (s *Spool) DB() *sql.DB { return s.db }

// Enqueue stores one finalized segment for later delivery.
func (s *Spool) Enqueue(meetingID, speakerName, text string, timestamp int64) error {
	_, err := s.db.Exec(`INSERT INTO PendingSegments (MeetingId, SpeakerName, Text, Timestamp, EnqueuedTime)
        VALUES (?,?,?,?,?)`, meetingID, speakerName, text, timestamp, time.Now().UTC())
	return err
}

// PendingCount reports the number of spooled segments for a meeting.
func (s *Spool) PendingCount(meetingID string) (int, error) {
	var cnt int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM PendingSegments WHERE MeetingId = ?`, meetingID).Scan(&cnt)
	return cnt, err
}

// Drain delivers spooled segments for a meeting in enqueue order. deliver is
// called once per segment; the row is deleted only after a nil return. The
// first delivery error stops the drain so order is preserved across retries.
func (s *Spool) Drain(meetingID string, deliver func(speakerName, text string, timestamp int64) error) error {
	rows, err := s.db.Query(`SELECT Id, SpeakerName, Text, Timestamp FROM PendingSegments
        WHERE MeetingId = ? ORDER BY Id`, meetingID)
	if err != nil {
		return err
	}

	type pending struct {
		id          int64
		speakerName string
		text        string
		timestamp   int64
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.speakerName, &p.text, &p.timestamp); err != nil {
			_ = rows.Close()
			return err
		}
		batch = append(batch, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, p := range batch {
		if err := deliver(p.speakerName, p.text, p.timestamp); err != nil {
			return err
		}
		if _, err := s.db.Exec(`DELETE FROM PendingSegments WHERE Id = ?`, p.id); err != nil {
			return err
		}
	}
	return nil
}

// MeetingSink adapts the spool to a per-meeting segment sink so a capture
// recorder can fall back to it when the service is offline.
type MeetingSink struct {
	spool     *Spool
	meetingID string
}

// Sink returns a sink that spools into the given meeting.
func (s *Spool) Sink(meetingID string) *MeetingSink {
	return &MeetingSink{spool: s, meetingID: meetingID}
}

// Append satisfies the capture segment sink contract.
func (m *MeetingSink) Append(speakerName, text string, timestamp int64) error {
	return m.spool.Enqueue(m.meetingID, speakerName, text, timestamp)
}
