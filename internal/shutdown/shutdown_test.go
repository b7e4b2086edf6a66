package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTriggerCancelsContext(t *testing.T) {
	m := NewManager()

	if m.Triggered() {
		t.Fatal("new manager must not be triggered")
	}

	m.Trigger()

	select {
	case <-m.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Trigger")
	}
	if !m.Triggered() {
		t.Fatal("Triggered should report true")
	}
}

func TestTriggerIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Trigger()
	m.Trigger() // must not panic
}

func TestCleanupsRunInLIFOOrder(t *testing.T) {
	m := NewManager()

	var order []string
	m.RegisterCleanup("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.RegisterCleanup("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	m.Trigger()
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("expected LIFO order, got %v", order)
	}
}

func TestCleanupErrorDoesNotStopOthers(t *testing.T) {
	m := NewManager()

	ran := false
	m.RegisterCleanup("survivor", func(ctx context.Context) error {
		ran = true
		return nil
	})
	m.RegisterCleanup("broken", func(ctx context.Context) error {
		return errors.New("boom")
	})

	m.Trigger()
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("remaining cleanup should still run after a failure")
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	m := NewManager()

	m.RegisterCleanup("slow", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	m.Trigger()
	if err := m.Wait(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
}
