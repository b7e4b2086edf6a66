// Package sync implements the resilient task synchronization engine: the
// offline action queue, the external list registry, the external mirror
// adapter and the orchestrator that ties them to the local store.
package sync

import (
	"context"
	"time"

	"mindmate/internal/utils"
	"mindmate/store"
	"mindmate/task"
)

// DefaultMaxAttempts bounds retries for a queued action before it is marked
// failed and surfaced instead of retried forever.
const DefaultMaxAttempts = 5

// Queue durably records mutation intents that could not be confirmed against
// the primary remote store and replays them in order once connectivity
// returns.
type Queue struct {
	store       store.Store
	maxAttempts int
	log         *utils.Logger
}

// NewQueue creates a queue backed by the given store.
func NewQueue(st store.Store, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Queue{
		store:       st,
		maxAttempts: maxAttempts,
		log:         utils.GetLogger(),
	}
}

// Enqueue appends an action durably and returns immediately. A pending
// action for the same task is coalesced rather than duplicated:
//
//	UPDATE after pending CREATE  -> the CREATE's payload is replaced
//	UPDATE after pending UPDATE  -> the UPDATE's payload is replaced
//	DELETE after pending CREATE  -> both are dropped (never reached the remote)
//	DELETE after pending UPDATE  -> the UPDATE is removed, the DELETE queued
func (q *Queue) Enqueue(ctx context.Context, a *task.OfflineAction) error {
	existing, err := q.store.ActionsForTask(ctx, a.UserID, a.TaskID)
	if err != nil {
		return err
	}

	switch a.Type {
	case task.ActionUpdate:
		for i := range existing {
			prior := &existing[i]
			if prior.Type != task.ActionCreate && prior.Type != task.ActionUpdate {
				continue
			}
			// A fresh edit revives a permanently failed action: the payload is
			// new, so it gets a full set of attempts again.
			prior.Payload = a.Payload
			prior.Attempts = 0
			prior.LastError = ""
			prior.Failed = false
			return q.store.UpdateAction(ctx, prior)
		}

	case task.ActionDelete:
		hadPendingCreate := false
		for i := range existing {
			prior := &existing[i]
			if prior.Type == task.ActionCreate {
				hadPendingCreate = true
			}
			if prior.Type == task.ActionCreate || prior.Type == task.ActionUpdate {
				if err := q.store.DeleteAction(ctx, prior.ID); err != nil {
					return err
				}
			}
		}
		if hadPendingCreate {
			// The create was never confirmed remotely, so there is nothing
			// to delete there either.
			q.log.Debug("superseded pending create for task %s, delete not queued", a.TaskID)
			return nil
		}
	}

	if a.EnqueuedAt.IsZero() {
		a.EnqueuedAt = time.Now().UTC()
	}
	return q.store.AppendAction(ctx, a)
}

// Supersede removes pending CREATE and UPDATE actions for a task whose full
// current state was just confirmed directly against the remote store. The
// direct send already carried the latest payload, so replaying an earlier
// queued action would resurrect a stale write (or a deleted task).
func (q *Queue) Supersede(ctx context.Context, userID, taskID string) error {
	existing, err := q.store.ActionsForTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	for i := range existing {
		prior := &existing[i]
		if prior.Type != task.ActionCreate && prior.Type != task.ActionUpdate {
			continue
		}
		q.log.Debug("direct send superseded queued %s for task %s", prior.Type, prior.TaskID)
		if err := q.store.DeleteAction(ctx, prior.ID); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns all queued actions for a user in enqueue order.
func (q *Queue) Pending(ctx context.Context, userID string) ([]task.OfflineAction, error) {
	return q.store.PendingActions(ctx, userID)
}

// Clear removes all queued actions for a user and reports how many.
func (q *Queue) Clear(ctx context.Context, userID string) (int, error) {
	return q.store.ClearActions(ctx, userID)
}

// SendFunc applies one action against the primary remote store.
type SendFunc func(ctx context.Context, a *task.OfflineAction) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Sent    int
	Halted  bool                 // an action below the retry bound failed; drain stopped to preserve order
	Errored []task.OfflineAction // actions that exceeded the retry bound this pass
}

// Drain replays queued actions strictly in enqueue order. An action is
// removed only after send confirms it. On failure the action is mutated in
// place (attempts incremented) and the drain halts for this user, so a later
// action never applies before an earlier one that keeps failing. An action
// whose attempts reach the bound is marked failed, reported in the result,
// and skipped from then on.
func (q *Queue) Drain(ctx context.Context, userID string, send SendFunc) (*DrainResult, error) {
	actions, err := q.store.PendingActions(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{}
	for i := range actions {
		a := &actions[i]
		if a.Failed {
			continue
		}

		if err := send(ctx, a); err != nil {
			a.Attempts++
			a.LastError = err.Error()

			if a.Attempts >= q.maxAttempts {
				a.Failed = true
				result.Errored = append(result.Errored, *a)
				q.log.Warn("giving up on queued %s for task %s after %d attempts: %v", a.Type, a.TaskID, a.Attempts, err)
				if err := q.store.UpdateAction(ctx, a); err != nil {
					return result, err
				}
				// A permanently failed action no longer blocks the queue.
				continue
			}

			q.log.Debug("queued %s for task %s failed (attempt %d): %v", a.Type, a.TaskID, a.Attempts, err)
			if err := q.store.UpdateAction(ctx, a); err != nil {
				return result, err
			}
			result.Halted = true
			return result, nil
		}

		if err := q.store.DeleteAction(ctx, a.ID); err != nil {
			return result, err
		}
		result.Sent++
	}

	return result, nil
}
