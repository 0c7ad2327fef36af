package localstate

import (
	"database/sql"
)

// EnsureSQLiteSchema creates the spool tables if they do not exist. The spool
// holds finalized segments captured while the service was unreachable.
func EnsureSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS PendingSegments (
            Id INTEGER PRIMARY KEY AUTOINCREMENT,
            MeetingId TEXT NOT NULL,
            SpeakerName TEXT NOT NULL,
            Text TEXT NOT NULL,
            Timestamp INTEGER NOT NULL,
            EnqueuedTime TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS PendingSegments_Meeting_Idx ON PendingSegments(MeetingId, Id);`,
		`CREATE TABLE IF NOT EXISTS CapturePrefs (
            Key TEXT PRIMARY KEY,
            Value TEXT NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultPrefs seeds capture preferences for a fresh install. No-op if
// any preference is already set.
func EnsureDefaultPrefs(db *sql.DB) error {
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(1) FROM CapturePrefs`).Scan(&cnt); err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	defaults := map[string]string{
		"language": "en-US",
		"mode":     "collaborative",
	}
	for k, v := range defaults {
		if _, err := db.Exec(`INSERT INTO CapturePrefs (Key, Value) VALUES (?,?)`, k, v); err != nil {
			return err
		}
	}
	return nil
}

// GetPref returns the preference value for key, or fallback when unset.
func GetPref(db *sql.DB, key, fallback string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT Value FROM CapturePrefs WHERE Key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetPref upserts a preference.
func SetPref(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT INTO CapturePrefs (Key, Value) VALUES (?,?)
        ON CONFLICT(Key) DO UPDATE SET Value = excluded.Value`, key, value)
	return err
}
