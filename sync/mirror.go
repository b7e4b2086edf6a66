package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"mindmate/gtasks"
	"mindmate/internal/utils"
	"mindmate/store"
	"mindmate/task"
)

// defaultCategory is used for tasks that have no category set.
const defaultCategory = "Tasks"

// TaskService is the subset of the external client the mirror needs.
type TaskService interface {
	CreateTask(ctx context.Context, userID, listID string, t *gtasks.Task) (*gtasks.Task, error)
	UpdateTask(ctx context.Context, userID, listID string, t *gtasks.Task) (*gtasks.Task, error)
	DeleteTask(ctx context.Context, userID, listID, taskID string) error
	MoveTask(ctx context.Context, userID, listID, taskID, parentID string) error
}

// Mirror maintains the external-service copy of locally canonical tasks.
// It is best-effort and eventually consistent: its failures never roll back
// or block the primary local/remote path.
type Mirror struct {
	store    store.Store
	registry *Registry
	client   TaskService
	log      *utils.Logger

	mu    gosync.Mutex
	locks map[string]*gosync.Mutex
}

// NewMirror creates the external sync adapter.
func NewMirror(st store.Store, registry *Registry, client TaskService) *Mirror {
	return &Mirror{
		store:    st,
		registry: registry,
		client:   client,
		log:      utils.GetLogger(),
		locks:    make(map[string]*gosync.Mutex),
	}
}

// taskLock returns the per-task push mutex. Pushes run as independent
// goroutines; two concurrent pushes for a task with no mirror record yet
// would otherwise both see an empty external id and both create.
func (m *Mirror) taskLock(userID, taskID string) *gosync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "/" + taskID
	lock, ok := m.locks[key]
	if !ok {
		lock = &gosync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// translate maps the canonical task onto the external schema.
func translate(t *task.Task) *gtasks.Task {
	ext := &gtasks.Task{
		ID:     t.ExternalTaskID,
		Title:  t.Title,
		Notes:  t.Description,
		Status: "needsAction",
	}

	if t.Completed() {
		ext.Status = "completed"
	}

	// The external "due" carries the reminder timestamp when one is set,
	// falling back to the due date.
	if t.ReminderAt != nil {
		ext.Due = t.ReminderAt.Format(time.RFC3339)
	} else if t.DueDate != nil {
		ext.Due = t.DueDate.Format(time.RFC3339)
	}

	return ext
}

// Push mirrors the task's current local state into the external service.
// The task is re-read from the store so a push always reflects the latest
// local write.
func (m *Mirror) Push(ctx context.Context, userID, taskID string) error {
	lock := m.taskLock(userID, taskID)
	lock.Lock()
	defer lock.Unlock()

	t, err := m.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		// Deleted locally before the push ran; nothing to mirror.
		return nil
	}

	listID, err := m.resolveList(ctx, t)
	if err != nil {
		return err
	}

	// A category change moves the task to a different list. The external API
	// has no cross-list move, so remove the old record and recreate.
	if t.ExternalTaskID != "" && t.ExternalListID != "" && t.ExternalListID != listID {
		if err := m.Remove(ctx, userID, t.ExternalTaskID, t.ExternalListID); err != nil {
			return err
		}
		t.ExternalTaskID = ""
		t.ExternalListID = ""
	}

	ext := translate(t)

	if t.ExternalTaskID == "" {
		created, err := m.client.CreateTask(ctx, userID, listID, ext)
		if err != nil {
			return err
		}
		t.ExternalTaskID = created.ID
	} else {
		_, err := m.client.UpdateTask(ctx, userID, listID, ext)
		if errors.Is(err, gtasks.ErrNotFound) {
			// The record (or its whole list) was deleted out-of-band. Clear
			// the stale identity and retry once as a fresh create.
			m.log.Debug("external task %s is gone, recreating", t.ExternalTaskID)
			t.ClearExternal()
			m.registry.InvalidateRoster(userID)
			if listID, err = m.resolveList(ctx, t); err != nil {
				return err
			}
			ext.ID = ""
			created, err := m.client.CreateTask(ctx, userID, listID, ext)
			if err != nil {
				return err
			}
			t.ExternalTaskID = created.ID
		} else if err != nil {
			return err
		}
	}

	t.ExternalListID = listID

	if err := m.reparent(ctx, t, listID); err != nil {
		return err
	}

	now := time.Now().UTC()
	t.LastExternalSyncAt = &now
	if err := m.store.PutTask(ctx, t); err != nil {
		return fmt.Errorf("failed to record mirror state: %w", err)
	}
	return nil
}

// resolveList picks the target list: the archived list for archived tasks,
// otherwise the category's list.
func (m *Mirror) resolveList(ctx context.Context, t *task.Task) (string, error) {
	if t.Archived {
		return m.registry.ArchivedList(ctx, t.UserID)
	}

	category := t.Category
	if category == "" {
		category = defaultCategory
	}
	return m.registry.ListFor(ctx, t.UserID, category)
}

// reparent issues the external move call when the local parent has its own
// mirror record in the same list. Re-parenting is a separate call in the
// external API and must follow the successful write.
func (m *Mirror) reparent(ctx context.Context, t *task.Task, listID string) error {
	if t.ParentID == "" {
		return nil
	}

	parent, err := m.store.GetTask(ctx, t.UserID, t.ParentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.ExternalTaskID == "" || parent.ExternalListID != listID {
		// Parent not mirrored yet (or living in another list); the child
		// stays top-level until a later push finds it.
		return nil
	}

	return m.client.MoveTask(ctx, t.UserID, listID, t.ExternalTaskID, parent.ExternalTaskID)
}

// Remove deletes the mirror record. Already-gone records are fine.
func (m *Mirror) Remove(ctx context.Context, userID, externalTaskID, externalListID string) error {
	if externalTaskID == "" || externalListID == "" {
		return nil
	}

	err := m.client.DeleteTask(ctx, userID, externalListID, externalTaskID)
	if errors.Is(err, gtasks.ErrNotFound) {
		return nil
	}
	return err
}
