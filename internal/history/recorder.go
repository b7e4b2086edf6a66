package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    trigger_kind TEXT NOT NULL,
    sent INTEGER NOT NULL,
    halted INTEGER NOT NULL,
    errored INTEGER NOT NULL,
    mirror_pushes INTEGER NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_history_started_at ON sync_history(started_at);
`

// Recorder persists sync cycle entries.
type Recorder struct {
	db      *sql.DB
	enabled bool
	mu      sync.Mutex
}

// NewRecorder opens or creates the history database at dbPath.
// If enabled is false, Record becomes a no-op but reads still work.
func NewRecorder(dbPath string, enabled bool) (*Recorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Recorder{db: db, enabled: enabled}, nil
}

// Close closes the database connection
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record persists an entry. No-op when recording is disabled.
func (r *Recorder) Record(e Entry) error {
	if !r.enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO sync_history (started_at, finished_at, trigger_kind, sent, halted, errored, mirror_pushes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.StartedAt.Unix(), e.FinishedAt.Unix(), string(e.Trigger),
		e.Sent, boolToInt(e.Halted), e.Errored, e.MirrorPushes, nullString(e.Error))
	return err
}

// Recent returns the newest entries, most recent first.
func (r *Recorder) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, trigger_kind, sent, halted, errored, mirror_pushes, COALESCE(error, '')
		FROM sync_history ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished int64
		var halted int
		var trigger string
		if err := rows.Scan(&e.ID, &started, &finished, &trigger, &e.Sent, &halted, &e.Errored, &e.MirrorPushes, &e.Error); err != nil {
			return nil, err
		}
		e.StartedAt = time.Unix(started, 0)
		e.FinishedAt = time.Unix(finished, 0)
		e.Trigger = Trigger(trigger)
		e.Halted = halted != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup removes entries older than the retention period.
// Returns the number of deleted entries.
func (r *Recorder) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().Unix() - int64(retentionDays*86400)

	result, err := r.db.Exec("DELETE FROM sync_history WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	_, _ = r.db.Exec("VACUUM")

	return deleted, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
