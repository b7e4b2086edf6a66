package cache

import (
	"testing"
	"time"

	"mindmate/gtasks"
)

func TestGetMissesWhenEmpty(t *testing.T) {
	c := NewListCache(time.Minute)
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestPutThenGet(t *testing.T) {
	c := NewListCache(time.Minute)
	c.Put("u1", []gtasks.List{{ID: "l1", Title: "MindMate_Work"}})

	lists, ok := c.Get("u1")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(lists) != 1 || lists[0].ID != "l1" {
		t.Fatalf("unexpected roster: %+v", lists)
	}

	// Another user's roster is separate.
	if _, ok := c.Get("u2"); ok {
		t.Fatal("expected miss for other user")
	}
}

func TestExpiry(t *testing.T) {
	c := NewListCache(time.Minute)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("u1", []gtasks.List{{ID: "l1"}})

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("u1"); !ok {
		t.Fatal("expected hit before ttl")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss after ttl")
	}
}

func TestAddAppendsToExistingRoster(t *testing.T) {
	c := NewListCache(time.Minute)

	// Add without a roster is a no-op; a later Get must not report a
	// partial roster.
	c.Add("u1", gtasks.List{ID: "l9"})
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss, Add must not create a roster")
	}

	c.Put("u1", []gtasks.List{{ID: "l1"}})
	c.Add("u1", gtasks.List{ID: "l2"})

	lists, ok := c.Get("u1")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(lists) != 2 || lists[1].ID != "l2" {
		t.Fatalf("unexpected roster: %+v", lists)
	}
}

func TestInvalidate(t *testing.T) {
	c := NewListCache(time.Minute)
	c.Put("u1", []gtasks.List{{ID: "l1"}})
	c.Invalidate("u1")
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := NewListCache(time.Minute)
	c.Put("u1", []gtasks.List{{ID: "l1", Title: "A"}})

	lists, _ := c.Get("u1")
	lists[0].Title = "mutated"

	again, _ := c.Get("u1")
	if again[0].Title != "A" {
		t.Fatal("cache contents must not be mutable through Get")
	}
}
