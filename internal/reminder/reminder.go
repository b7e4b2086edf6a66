// Package reminder fires notifications for tasks whose reminder time has
// arrived, and tracks dismissals so a reminder triggers once.
package reminder

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mindmate/internal/notification"
	"mindmate/task"
)

// DefaultUpcomingWindow bounds how far ahead Upcoming looks.
const DefaultUpcomingWindow = 24 * time.Hour

// Notifier delivers the reminder. Implemented by the notification manager.
type Notifier interface {
	Send(n notification.Notification) error
}

// Service evaluates task reminder times against stored dismissals. It keeps
// its own handle on the task database; dismissals live in a separate table
// and never touch the task rows.
type Service struct {
	db       *sql.DB
	notifier Notifier
	now      func() time.Time
}

// NewService opens the dismissal store at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reminder_dismissals (
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			dismissed_at TEXT NOT NULL,
			PRIMARY KEY (user_id, task_id)
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create reminder_dismissals table: %w", err)
	}

	return &Service{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetNotifier sets the notification sink. Without one, Check still reports
// due reminders but delivers nothing.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// eligible reports whether a task can remind at all.
func eligible(t *task.Task) bool {
	return t.ReminderAt != nil && !t.Completed() && !t.Archived
}

// Check finds tasks whose reminder time has passed, sends a notification for
// each, and records the dismissal so the reminder does not fire again.
func (s *Service) Check(tasks []task.Task) ([]task.Task, error) {
	now := s.now()
	var triggered []task.Task

	for i := range tasks {
		t := &tasks[i]
		if !eligible(t) || t.ReminderAt.After(now) {
			continue
		}

		dismissed, err := s.isDismissed(t.UserID, t.ID)
		if err != nil {
			return nil, err
		}
		if dismissed {
			continue
		}

		triggered = append(triggered, *t)

		if s.notifier != nil {
			msg := t.Title
			if t.DueDate != nil {
				msg = fmt.Sprintf("%s - Due: %s", t.Title, t.DueDate.Format("2006-01-02"))
			}
			_ = s.notifier.Send(notification.Notification{
				Type:      notification.TypeReminder,
				Title:     "Task Reminder",
				Message:   msg,
				Timestamp: now,
			})
		}

		if err := s.Dismiss(t.UserID, t.ID); err != nil {
			return nil, err
		}
	}

	return triggered, nil
}

// Upcoming returns tasks whose reminder falls within the window, most
// imminent first. Already-dismissed reminders are excluded. A non-positive
// window uses DefaultUpcomingWindow.
func (s *Service) Upcoming(tasks []task.Task, window time.Duration) ([]task.Task, error) {
	if window <= 0 {
		window = DefaultUpcomingWindow
	}
	now := s.now()
	limit := now.Add(window)

	var upcoming []task.Task
	for i := range tasks {
		t := &tasks[i]
		if !eligible(t) || t.ReminderAt.After(limit) {
			continue
		}

		dismissed, err := s.isDismissed(t.UserID, t.ID)
		if err != nil {
			return nil, err
		}
		if dismissed {
			continue
		}
		upcoming = append(upcoming, *t)
	}

	for i := 1; i < len(upcoming); i++ {
		for j := i; j > 0 && upcoming[j].ReminderAt.Before(*upcoming[j-1].ReminderAt); j-- {
			upcoming[j], upcoming[j-1] = upcoming[j-1], upcoming[j]
		}
	}

	return upcoming, nil
}

// Dismiss records that the user has seen the reminder for a task.
func (s *Service) Dismiss(userID, taskID string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO reminder_dismissals (user_id, task_id, dismissed_at)
		VALUES (?, ?, ?)
	`, userID, taskID, s.now().UTC().Format(time.RFC3339Nano))
	return err
}

// Restore clears a dismissal so the reminder can fire again, used when the
// reminder time is moved.
func (s *Service) Restore(userID, taskID string) error {
	_, err := s.db.Exec(`
		DELETE FROM reminder_dismissals WHERE user_id = ? AND task_id = ?
	`, userID, taskID)
	return err
}

func (s *Service) isDismissed(userID, taskID string) (bool, error) {
	var dismissedAt string
	err := s.db.QueryRow(`
		SELECT dismissed_at FROM reminder_dismissals
		WHERE user_id = ? AND task_id = ?
	`, userID, taskID).Scan(&dismissedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
