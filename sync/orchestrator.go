package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"mindmate/internal/connectivity"
	"mindmate/internal/utils"
	"mindmate/store"
	"mindmate/task"
)

// RemoteService is the subset of the primary remote store client the
// orchestrator needs.
type RemoteService interface {
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, taskID string) error
}

// MirrorService is the adapter that maintains the external mirror.
type MirrorService interface {
	Push(ctx context.Context, userID, taskID string) error
	Remove(ctx context.Context, userID, externalTaskID, externalListID string) error
}

// Orchestrator is the façade the UI calls. Every mutation lands in the local
// store first, then either goes straight to the primary remote store or into
// the offline queue, and independently triggers a best-effort mirror push.
type Orchestrator struct {
	store  store.Store
	remote RemoteService
	queue  *Queue
	mirror MirrorService
	oracle connectivity.Oracle
	log    *utils.Logger

	wg gosync.WaitGroup
}

// NewOrchestrator wires the engine together.
func NewOrchestrator(st store.Store, remote RemoteService, queue *Queue, mirror MirrorService, oracle connectivity.Oracle) *Orchestrator {
	return &Orchestrator{
		store:  st,
		remote: remote,
		queue:  queue,
		mirror: mirror,
		oracle: oracle,
		log:    utils.GetLogger(),
	}
}

// sendHandlers dispatches a queued action onto the matching remote call.
var sendHandlers = map[task.ActionType]func(o *Orchestrator, ctx context.Context, a *task.OfflineAction) error{
	task.ActionCreate: func(o *Orchestrator, ctx context.Context, a *task.OfflineAction) error {
		return o.remote.CreateTask(ctx, &a.Payload)
	},
	task.ActionUpdate: func(o *Orchestrator, ctx context.Context, a *task.OfflineAction) error {
		return o.remote.UpdateTask(ctx, &a.Payload)
	},
	task.ActionDelete: func(o *Orchestrator, ctx context.Context, a *task.OfflineAction) error {
		return o.remote.DeleteTask(ctx, a.TaskID)
	},
}

// CreateTask records a new task locally, syncs or queues it, and triggers
// the mirror push. The local write always succeeds first; its failure is
// fatal and surfaced as-is.
func (o *Orchestrator) CreateTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	if t.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = task.GenerateID()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	t.SyncStatus = task.StatusUnsynced

	if err := o.store.PutTask(ctx, t); err != nil {
		return nil, utils.ErrLocalStore(err)
	}

	if err := o.syncOrQueue(ctx, t, task.ActionCreate); err != nil {
		return nil, err
	}

	o.mirrorPush(ctx, t.UserID, t.ID)
	return t, nil
}

// UpdateTask merges an edit into the local record, syncs or queues it, and
// triggers the mirror push. An edit to a task in the error state always
// re-attempts sync.
func (o *Orchestrator) UpdateTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	existing, err := o.store.GetTask(ctx, t.UserID, t.ID)
	if err != nil {
		return nil, utils.ErrLocalStore(err)
	}
	if existing == nil {
		return nil, utils.ErrTaskNotFound(t.ID)
	}

	// Sync-internal fields belong to the engine, not the caller.
	t.CreatedAt = existing.CreatedAt
	t.ExternalTaskID = existing.ExternalTaskID
	t.ExternalListID = existing.ExternalListID
	t.LastExternalSyncAt = existing.LastExternalSyncAt
	t.UpdatedAt = time.Now().UTC()
	t.SyncStatus = task.StatusUnsynced

	if err := o.store.PutTask(ctx, t); err != nil {
		return nil, utils.ErrLocalStore(err)
	}

	if err := o.syncOrQueue(ctx, t, task.ActionUpdate); err != nil {
		return nil, err
	}

	o.mirrorPush(ctx, t.UserID, t.ID)
	return t, nil
}

// ToggleComplete flips the completion state of a task.
func (o *Orchestrator) ToggleComplete(ctx context.Context, userID, taskID string) (*task.Task, error) {
	existing, err := o.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, utils.ErrLocalStore(err)
	}
	if existing == nil {
		return nil, utils.ErrTaskNotFound(taskID)
	}

	if existing.Completed() {
		existing.CompletedAt = nil
	} else {
		now := time.Now().UTC()
		existing.CompletedAt = &now
	}

	return o.UpdateTask(ctx, existing)
}

// DeleteTask removes the task locally, syncs or queues the deletion, and
// removes the mirror record.
func (o *Orchestrator) DeleteTask(ctx context.Context, userID, taskID string) error {
	existing, err := o.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return utils.ErrLocalStore(err)
	}
	if existing == nil {
		return utils.ErrTaskNotFound(taskID)
	}

	if err := o.store.DeleteTask(ctx, userID, taskID); err != nil {
		return utils.ErrLocalStore(err)
	}

	sent := false
	if connectivity.FullyOnline(ctx, o.oracle) {
		if err := o.remote.DeleteTask(ctx, taskID); err != nil {
			o.log.Debug("remote delete failed, queueing: %v", err)
		} else {
			sent = true
			// Stale queued actions for the task would recreate it on the
			// next drain.
			if err := o.queue.Supersede(ctx, userID, taskID); err != nil {
				return utils.ErrLocalStore(err)
			}
		}
	}
	if !sent {
		action := &task.OfflineAction{
			UserID:  userID,
			TaskID:  taskID,
			Type:    task.ActionDelete,
			Payload: *existing,
		}
		if err := o.queue.Enqueue(ctx, action); err != nil {
			return utils.ErrLocalStore(err)
		}
	}

	o.mirrorRemove(ctx, userID, existing.ExternalTaskID, existing.ExternalListID)
	return nil
}

// Tasks returns all local tasks for display, sync status included.
func (o *Orchestrator) Tasks(ctx context.Context, userID string) ([]task.Task, error) {
	return o.store.GetTasks(ctx, userID)
}

// GetTask returns one local task, or nil.
func (o *Orchestrator) GetTask(ctx context.Context, userID, taskID string) (*task.Task, error) {
	return o.store.GetTask(ctx, userID, taskID)
}

// syncOrQueue attempts the direct remote call when fully online, falling
// back to the offline queue on any failure (a timeout is treated identically
// to a connection failure). The task's sync status always ends up synced or
// pending.
func (o *Orchestrator) syncOrQueue(ctx context.Context, t *task.Task, actionType task.ActionType) error {
	if connectivity.FullyOnline(ctx, o.oracle) {
		t.SyncStatus = task.StatusSyncing
		if err := o.store.PutTask(ctx, t); err != nil {
			return utils.ErrLocalStore(err)
		}

		handler := sendHandlers[actionType]
		if err := handler(o, ctx, &task.OfflineAction{UserID: t.UserID, TaskID: t.ID, Type: actionType, Payload: *t}); err == nil {
			// The direct send reflects the latest local state; queued actions
			// from an earlier offline stretch must not replay over it.
			if err := o.queue.Supersede(ctx, t.UserID, t.ID); err != nil {
				return utils.ErrLocalStore(err)
			}
			t.SyncStatus = task.StatusSynced
			if err := o.store.PutTask(ctx, t); err != nil {
				return utils.ErrLocalStore(err)
			}
			return nil
		} else {
			o.log.Debug("remote %s failed, queueing: %v", actionType, err)
		}
	}

	action := &task.OfflineAction{
		UserID:  t.UserID,
		TaskID:  t.ID,
		Type:    actionType,
		Payload: *t,
	}
	if err := o.queue.Enqueue(ctx, action); err != nil {
		return utils.ErrLocalStore(err)
	}

	t.SyncStatus = task.StatusPending
	if err := o.store.PutTask(ctx, t); err != nil {
		return utils.ErrLocalStore(err)
	}
	return nil
}

// DrainQueue replays pending actions against the primary remote store. It is
// invoked when connectivity returns or on an explicit retry trigger.
func (o *Orchestrator) DrainQueue(ctx context.Context, userID string) (*DrainResult, error) {
	result, err := o.queue.Drain(ctx, userID, o.sendAction)
	if result != nil {
		// Actions that exhausted their retries surface as task-level errors.
		for i := range result.Errored {
			a := &result.Errored[i]
			if a.Type == task.ActionDelete {
				continue
			}
			if t, err := o.store.GetTask(ctx, userID, a.TaskID); err == nil && t != nil {
				t.SyncStatus = task.StatusError
				if putErr := o.store.PutTask(ctx, t); putErr != nil {
					o.log.Warn("failed to mark task %s as errored: %v", a.TaskID, putErr)
				}
			}
		}
	}
	return result, err
}

// sendAction applies one queued action and, once confirmed, settles the
// task's status and triggers the matching mirror operation.
func (o *Orchestrator) sendAction(ctx context.Context, a *task.OfflineAction) error {
	handler, ok := sendHandlers[a.Type]
	if !ok {
		return fmt.Errorf("unknown action type: %s", a.Type)
	}

	if err := handler(o, ctx, a); err != nil {
		return err
	}

	switch a.Type {
	case task.ActionDelete:
		// The local record is long gone; the payload still carries the
		// mirror identity captured at delete time.
		o.mirrorRemove(ctx, a.UserID, a.Payload.ExternalTaskID, a.Payload.ExternalListID)
	default:
		if t, err := o.store.GetTask(ctx, a.UserID, a.TaskID); err == nil && t != nil {
			t.SyncStatus = task.StatusSynced
			if putErr := o.store.PutTask(ctx, t); putErr != nil {
				o.log.Warn("failed to mark task %s as synced: %v", a.TaskID, putErr)
			}
		}
		o.mirrorPush(ctx, a.UserID, a.TaskID)
	}
	return nil
}

// mirrorPush triggers the external mirror without blocking the primary path.
// Mirror failures are reported as warnings only; they never change the
// primary sync status.
func (o *Orchestrator) mirrorPush(ctx context.Context, userID, taskID string) {
	if o.mirror == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.mirror.Push(ctx, userID, taskID); err != nil {
			o.log.Warn("external mirror push for task %s failed: %v", taskID, err)
		}
	}()
}

// mirrorRemove triggers removal of the mirror record without blocking.
func (o *Orchestrator) mirrorRemove(ctx context.Context, userID, externalTaskID, externalListID string) {
	if o.mirror == nil || externalTaskID == "" {
		return
	}

	ctx = context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.mirror.Remove(ctx, userID, externalTaskID, externalListID); err != nil {
			o.log.Warn("external mirror removal of %s failed: %v", externalTaskID, err)
		}
	}()
}

// RetryMirror re-pushes every task whose mirror record is missing or stale.
// Used by the manual sync command after connectivity or authorization comes
// back. Returns how many pushes were triggered.
func (o *Orchestrator) RetryMirror(ctx context.Context, userID string) (int, error) {
	if o.mirror == nil {
		return 0, nil
	}

	tasks, err := o.store.GetTasks(ctx, userID)
	if err != nil {
		return 0, utils.ErrLocalStore(err)
	}

	triggered := 0
	for i := range tasks {
		t := &tasks[i]
		if t.ExternalTaskID != "" && t.LastExternalSyncAt != nil && !t.UpdatedAt.After(*t.LastExternalSyncAt) {
			continue
		}
		o.mirrorPush(ctx, userID, t.ID)
		triggered++
	}
	return triggered, nil
}

// Wait blocks until all outstanding mirror operations finish. The CLI calls
// this before exiting.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Queue exposes the offline queue for status commands.
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}
