// Package sqlite implements store.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"mindmate/store"
	"mindmate/task"
)

// Store persists tasks, queued actions and list mappings in a single
// database file so the whole engine state survives process restarts.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			category TEXT DEFAULT '',
			priority INTEGER DEFAULT 0,
			duration_minutes INTEGER DEFAULT 0,
			due_date TEXT,
			reminder_at TEXT,
			start_date TEXT,
			parent_id TEXT DEFAULT '',
			archived INTEGER DEFAULT 0,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			sync_status TEXT NOT NULL DEFAULT 'unsynced',
			external_task_id TEXT DEFAULT '',
			external_list_id TEXT DEFAULT '',
			last_external_sync_at TEXT,
			PRIMARY KEY (user_id, id)
		);

		CREATE TABLE IF NOT EXISTS sync_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			action TEXT NOT NULL,
			payload TEXT NOT NULL,
			enqueued_at TEXT NOT NULL,
			attempts INTEGER DEFAULT 0,
			last_error TEXT DEFAULT '',
			failed INTEGER DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS list_mappings (
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			list_id TEXT NOT NULL,
			archived INTEGER DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, category)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
		CREATE INDEX IF NOT EXISTS idx_queue_user ON sync_queue(user_id, id);
	`

	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := s.db.Exec(schema)
	return err
}

// timeToNullString converts a *time.Time to sql.NullString for storage.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// parseOptionalDate parses a nullable date string into a *time.Time.
func parseOptionalDate(str sql.NullString) *time.Time {
	if str.Valid && str.String != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, str.String); err == nil {
			return &parsed
		}
	}
	return nil
}

// PutTask inserts or replaces a task record.
func (s *Store) PutTask(ctx context.Context, t *task.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tasks (
			id, user_id, title, description, category, priority, duration_minutes,
			due_date, reminder_at, start_date, parent_id, archived, completed_at,
			created_at, modified_at, sync_status, external_task_id, external_list_id,
			last_external_sync_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, t.Category, t.Priority, t.DurationMinutes,
		timeToNullString(t.DueDate), timeToNullString(t.ReminderAt), timeToNullString(t.StartDate),
		t.ParentID, boolToInt(t.Archived), timeToNullString(t.CompletedAt),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
		string(t.SyncStatus), t.ExternalTaskID, t.ExternalListID,
		timeToNullString(t.LastExternalSyncAt),
	)
	return err
}

const taskColumns = `id, user_id, title, description, category, priority, duration_minutes,
	due_date, reminder_at, start_date, parent_id, archived, completed_at,
	created_at, modified_at, sync_status, external_task_id, external_list_id,
	last_external_sync_at`

// scanner is satisfied by both *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*task.Task, error) {
	var t task.Task
	var dueStr, reminderStr, startStr, completedStr, lastExtStr sql.NullString
	var createdStr, modifiedStr, status string
	var archived int

	err := sc.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Category, &t.Priority, &t.DurationMinutes,
		&dueStr, &reminderStr, &startStr, &t.ParentID, &archived, &completedStr,
		&createdStr, &modifiedStr, &status, &t.ExternalTaskID, &t.ExternalListID,
		&lastExtStr,
	)
	if err != nil {
		return nil, err
	}

	t.Archived = archived != 0
	t.SyncStatus = task.SyncStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, modifiedStr)
	t.DueDate = parseOptionalDate(dueStr)
	t.ReminderAt = parseOptionalDate(reminderStr)
	t.StartDate = parseOptionalDate(startStr)
	t.CompletedAt = parseOptionalDate(completedStr)
	t.LastExternalSyncAt = parseOptionalDate(lastExtStr)
	return &t, nil
}

// GetTask returns a task by id, or nil if not found.
func (s *Store) GetTask(ctx context.Context, userID, taskID string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? AND id = ?",
		userID, taskID,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTasks returns all tasks for a user.
func (s *Store) GetTasks(ctx context.Context, userID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY created_at",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}

	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task record.
func (s *Store) DeleteTask(ctx context.Context, userID, taskID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ? AND id = ?", userID, taskID)
	return err
}

// AppendAction durably appends a queued action and assigns its id.
func (s *Store) AppendAction(ctx context.Context, a *task.OfflineAction) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (user_id, task_id, action, payload, enqueued_at, attempts, last_error, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.TaskID, string(a.Type), string(payload),
		a.EnqueuedAt.Format(time.RFC3339Nano), a.Attempts, a.LastError, boolToInt(a.Failed),
	)
	if err != nil {
		return err
	}

	a.ID, err = res.LastInsertId()
	return err
}

func scanAction(sc scanner) (*task.OfflineAction, error) {
	var a task.OfflineAction
	var actionStr, payloadStr, enqueuedStr string
	var failed int

	err := sc.Scan(&a.ID, &a.UserID, &a.TaskID, &actionStr, &payloadStr, &enqueuedStr, &a.Attempts, &a.LastError, &failed)
	if err != nil {
		return nil, err
	}

	a.Type = task.ActionType(actionStr)
	a.Failed = failed != 0
	a.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueuedStr)
	if err := json.Unmarshal([]byte(payloadStr), &a.Payload); err != nil {
		return nil, err
	}
	return &a, nil
}

const actionColumns = "id, user_id, task_id, action, payload, enqueued_at, attempts, last_error, failed"

// PendingActions returns all queued actions for a user in enqueue order,
// failed ones included (the queue decides what to skip).
func (s *Store) PendingActions(ctx context.Context, userID string) ([]task.OfflineAction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM sync_queue WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var actions []task.OfflineAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}

	if actions == nil {
		actions = []task.OfflineAction{}
	}
	return actions, rows.Err()
}

// ActionsForTask returns queued actions for one task in enqueue order.
func (s *Store) ActionsForTask(ctx context.Context, userID, taskID string) ([]task.OfflineAction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM sync_queue WHERE user_id = ? AND task_id = ? ORDER BY id",
		userID, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var actions []task.OfflineAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// UpdateAction mutates a queued action in place (payload, attempts, error state).
func (s *Store) UpdateAction(ctx context.Context, a *task.OfflineAction) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_queue SET action = ?, payload = ?, attempts = ?, last_error = ?, failed = ?
		 WHERE id = ?`,
		string(a.Type), string(payload), a.Attempts, a.LastError, boolToInt(a.Failed), a.ID,
	)
	return err
}

// DeleteAction removes a queued action after a confirmed acknowledgment.
func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id)
	return err
}

// ClearActions removes all queued actions for a user and reports how many.
func (s *Store) ClearActions(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetListMapping returns the mapping for a category, or nil if none exists.
func (s *Store) GetListMapping(ctx context.Context, userID, category string) (*task.ListMapping, error) {
	var m task.ListMapping
	var archived int
	var createdStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, category, list_id, archived, created_at FROM list_mappings WHERE user_id = ? AND category = ?",
		userID, category,
	).Scan(&m.UserID, &m.Category, &m.ListID, &archived, &createdStr)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.Archived = archived != 0
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return &m, nil
}

// PutListMapping inserts or replaces a category mapping.
func (s *Store) PutListMapping(ctx context.Context, m *task.ListMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO list_mappings (user_id, category, list_id, archived, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.UserID, m.Category, m.ListID, boolToInt(m.Archived), m.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify interface compliance at compile time
var _ store.Store = (*Store)(nil)
