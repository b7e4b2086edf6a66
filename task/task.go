// Package task defines the canonical task record and the mutation intents
// that flow through the sync engine.
package task

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks where a task stands relative to the primary remote store.
type SyncStatus string

const (
	StatusUnsynced SyncStatus = "unsynced"
	StatusPending  SyncStatus = "pending"
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusError    SyncStatus = "error"
)

// Task is the canonical record. The local store is the source of truth for
// what the user sees; the primary remote store and the external mirror both
// converge toward it.
type Task struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    int    `json:"priority,omitempty"`

	// DurationMinutes is the user's estimate for the task.
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	ReminderAt      *time.Time `json:"reminderAt,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`

	// ParentID links a sub-task to its parent (single level).
	ParentID string `json:"parentId,omitempty"`
	Archived bool   `json:"archived,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	SyncStatus SyncStatus `json:"syncStatus"`

	// Identity of the mirror record in the external task service. A non-empty
	// ExternalTaskID must correspond to exactly one live record under
	// ExternalListID; when the list turns out not to exist anymore, both ids
	// are cleared and the task re-enters unsynced.
	ExternalTaskID     string     `json:"externalTaskId,omitempty"`
	ExternalListID     string     `json:"externalListId,omitempty"`
	LastExternalSyncAt *time.Time `json:"lastExternalSyncAt,omitempty"`
}

// Completed reports whether the task has been marked done.
func (t *Task) Completed() bool {
	return t.CompletedAt != nil
}

// ClearExternal drops the stale mirror identity so the next push recreates it.
func (t *Task) ClearExternal() {
	t.ExternalTaskID = ""
	t.ExternalListID = ""
	t.LastExternalSyncAt = nil
	t.SyncStatus = StatusUnsynced
}

// ActionType discriminates queued mutation intents.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
)

// OfflineAction is a durably recorded mutation that could not be confirmed
// against the primary remote store. Owned by the offline queue: created when
// a remote write fails or connectivity is absent, removed only after a
// confirmed acknowledgment, and mutated in place on retry.
type OfflineAction struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"userId"`
	TaskID     string     `json:"taskId"`
	Type       ActionType `json:"type"`
	Payload    Task       `json:"payload"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"lastError,omitempty"`

	// Failed marks an action whose attempts exceeded the bounded threshold.
	// It stays in the queue for inspection but is never retried.
	Failed bool `json:"failed,omitempty"`
}

// ListMapping records which external list a category is provisioned into.
// Mappings are created once per category and never deleted automatically,
// since the external list may hold externally-visible history.
type ListMapping struct {
	UserID    string    `json:"userId"`
	Category  string    `json:"category"`
	ListID    string    `json:"listId"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArchivedCategory is the reserved mapping key for the archived list.
const ArchivedCategory = "__archived"

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}
