package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindmate/task"
)

func enqueue(t *testing.T, q *Queue, typ task.ActionType, taskID, title string) {
	t.Helper()
	a := &task.OfflineAction{
		UserID: "u1",
		TaskID: taskID,
		Type:   typ,
		Payload: task.Task{
			ID:     taskID,
			UserID: "u1",
			Title:  title,
		},
	}
	if err := q.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue(%s %s) error = %v", typ, taskID, err)
	}
}

func TestEnqueueSetsEnqueuedAt(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)
	before := time.Now().UTC()

	enqueue(t, q, task.ActionCreate, "t1", "A")

	pending, err := q.Pending(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 action, got %d", len(pending))
	}
	if pending[0].EnqueuedAt.Before(before.Add(-time.Second)) {
		t.Errorf("EnqueuedAt not set: %v", pending[0].EnqueuedAt)
	}
}

func TestEnqueueCoalescesUpdateIntoCreate(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "Original")
	enqueue(t, q, task.ActionUpdate, "t1", "Edited")

	pending, err := q.Pending(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected coalesced queue of 1, got %d", len(pending))
	}
	if pending[0].Type != task.ActionCreate {
		t.Errorf("the pending create should absorb the update, got %s", pending[0].Type)
	}
	if pending[0].Payload.Title != "Edited" {
		t.Errorf("payload should carry the latest edit, got %q", pending[0].Payload.Title)
	}
}

func TestEnqueueCoalescesUpdateIntoUpdate(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)

	enqueue(t, q, task.ActionUpdate, "t1", "First edit")
	enqueue(t, q, task.ActionUpdate, "t1", "Second edit")

	pending, _ := q.Pending(context.Background(), "u1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 action, got %d", len(pending))
	}
	if pending[0].Payload.Title != "Second edit" {
		t.Errorf("expected latest payload, got %q", pending[0].Payload.Title)
	}
}

func TestEnqueueDeleteSupersedesPendingCreate(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)

	enqueue(t, q, task.ActionCreate, "t1", "Short lived")
	enqueue(t, q, task.ActionDelete, "t1", "Short lived")

	// The create never reached the remote, so nothing remains to send.
	pending, _ := q.Pending(context.Background(), "u1")
	if len(pending) != 0 {
		t.Errorf("expected empty queue, got %+v", pending)
	}
}

func TestEnqueueDeleteReplacesPendingUpdate(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)

	enqueue(t, q, task.ActionUpdate, "t1", "Edited")
	enqueue(t, q, task.ActionDelete, "t1", "Edited")

	pending, _ := q.Pending(context.Background(), "u1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 action, got %d", len(pending))
	}
	if pending[0].Type != task.ActionDelete {
		t.Errorf("expected the delete to remain, got %s", pending[0].Type)
	}
}

func TestEnqueueDifferentTasksDoNotCoalesce(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)

	enqueue(t, q, task.ActionUpdate, "t1", "A")
	enqueue(t, q, task.ActionUpdate, "t2", "B")

	pending, _ := q.Pending(context.Background(), "u1")
	if len(pending) != 2 {
		t.Errorf("expected 2 independent actions, got %d", len(pending))
	}
}

func TestDrainSendsInOrder(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "A")
	enqueue(t, q, task.ActionCreate, "t2", "B")
	enqueue(t, q, task.ActionCreate, "t3", "C")

	var sent []string
	result, err := q.Drain(ctx, "u1", func(ctx context.Context, a *task.OfflineAction) error {
		sent = append(sent, a.TaskID)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if result.Sent != 3 || result.Halted {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(sent) != 3 || sent[0] != "t1" || sent[1] != "t2" || sent[2] != "t3" {
		t.Errorf("expected strict enqueue order, got %v", sent)
	}

	pending, _ := q.Pending(ctx, "u1")
	if len(pending) != 0 {
		t.Errorf("confirmed actions should be removed, got %+v", pending)
	}
}

func TestDrainHaltsOnFailure(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "A")
	enqueue(t, q, task.ActionCreate, "t2", "B")

	var sent []string
	result, err := q.Drain(ctx, "u1", func(ctx context.Context, a *task.OfflineAction) error {
		if a.TaskID == "t1" {
			return errors.New("boom")
		}
		sent = append(sent, a.TaskID)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if !result.Halted || result.Sent != 0 {
		t.Errorf("drain should halt on the first failure: %+v", result)
	}
	if len(sent) != 0 {
		t.Errorf("a later action must never apply before an earlier one, sent %v", sent)
	}

	// The failed action stays queued with its attempt recorded.
	pending, _ := q.Pending(ctx, "u1")
	if len(pending) != 2 {
		t.Fatalf("expected both actions still queued, got %d", len(pending))
	}
	if pending[0].Attempts != 1 || pending[0].LastError == "" {
		t.Errorf("failure not recorded on action: %+v", pending[0])
	}
}

func TestDrainMarksFailedAtBound(t *testing.T) {
	q := NewQueue(newTestStore(t), 2)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "Doomed")
	enqueue(t, q, task.ActionCreate, "t2", "Fine")

	fail := func(ctx context.Context, a *task.OfflineAction) error {
		if a.TaskID == "t1" {
			return errors.New("boom")
		}
		return nil
	}

	// First attempt: halt.
	result, err := q.Drain(ctx, "u1", fail)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Halted || len(result.Errored) != 0 {
		t.Fatalf("first pass should halt, got %+v", result)
	}

	// Second attempt reaches the bound: the action is marked failed, skipped,
	// and no longer blocks the rest of the queue.
	result, err = q.Drain(ctx, "u1", fail)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errored) != 1 || result.Errored[0].TaskID != "t1" {
		t.Fatalf("expected t1 to give up, got %+v", result)
	}
	if result.Halted {
		t.Error("a permanently failed action must not halt the drain")
	}
	if result.Sent != 1 {
		t.Errorf("the later action should have been sent, got %d", result.Sent)
	}

	// Failed actions stay visible for inspection but are never retried.
	pending, _ := q.Pending(ctx, "u1")
	if len(pending) != 1 || !pending[0].Failed {
		t.Fatalf("expected the failed action retained, got %+v", pending)
	}
	calls := 0
	if _, err := q.Drain(ctx, "u1", func(ctx context.Context, a *task.OfflineAction) error {
		calls++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("failed action must be skipped, got %d sends", calls)
	}
}

func TestEnqueueRevivesFailedAction(t *testing.T) {
	q := NewQueue(newTestStore(t), 1)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "First try")

	// One failed attempt reaches the bound and marks the action failed.
	result, err := q.Drain(ctx, "u1", func(ctx context.Context, a *task.OfflineAction) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errored) != 1 {
		t.Fatalf("expected the action to give up, got %+v", result)
	}

	// A fresh edit coalesces into the failed action and revives it.
	enqueue(t, q, task.ActionUpdate, "t1", "Edited after failure")

	pending, _ := q.Pending(ctx, "u1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 action, got %d", len(pending))
	}
	if pending[0].Failed || pending[0].Attempts != 0 || pending[0].LastError != "" {
		t.Errorf("edit should reset the failure state, got %+v", pending[0])
	}

	var sent []string
	result, err = q.Drain(ctx, "u1", func(ctx context.Context, a *task.OfflineAction) error {
		sent = append(sent, a.Payload.Title)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Sent != 1 || len(sent) != 1 || sent[0] != "Edited after failure" {
		t.Errorf("revived edit was not sent: result=%+v sent=%v", result, sent)
	}
}

func TestSupersedeDropsPendingCreateAndUpdate(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)
	ctx := context.Background()

	enqueue(t, q, task.ActionCreate, "t1", "A")
	enqueue(t, q, task.ActionCreate, "t2", "B")

	if err := q.Supersede(ctx, "u1", "t1"); err != nil {
		t.Fatalf("Supersede() error = %v", err)
	}

	pending, _ := q.Pending(ctx, "u1")
	if len(pending) != 1 || pending[0].TaskID != "t2" {
		t.Errorf("only t1's actions should be dropped, got %+v", pending)
	}
}

func TestClear(t *testing.T) {
	q := NewQueue(newTestStore(t), 0)

	enqueue(t, q, task.ActionCreate, "t1", "A")
	enqueue(t, q, task.ActionCreate, "t2", "B")

	n, err := q.Clear(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}
