// Package store defines the local durable store the sync engine writes to
// before any network call is attempted.
package store

import (
	"context"

	"mindmate/task"
)

// Store is the gateway to the local record store. Every mutation lands here
// first; a failure is fatal to the operation and is not retried.
type Store interface {
	// Task records, keyed by (userID, taskID).
	PutTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, userID, taskID string) (*task.Task, error)
	GetTasks(ctx context.Context, userID string) ([]task.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error

	// Offline action queue, FIFO per user.
	AppendAction(ctx context.Context, a *task.OfflineAction) error
	PendingActions(ctx context.Context, userID string) ([]task.OfflineAction, error)
	ActionsForTask(ctx context.Context, userID, taskID string) ([]task.OfflineAction, error)
	UpdateAction(ctx context.Context, a *task.OfflineAction) error
	DeleteAction(ctx context.Context, id int64) error
	ClearActions(ctx context.Context, userID string) (int, error)

	// External list mappings, keyed by (userID, category).
	GetListMapping(ctx context.Context, userID, category string) (*task.ListMapping, error)
	PutListMapping(ctx context.Context, m *task.ListMapping) error

	Close() error
}
