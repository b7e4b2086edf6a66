// Package cache provides short-lived caching of external list metadata.
// The list registry consults the external service before every mirror write;
// caching the list roster keeps that check from costing a network call each
// time.
package cache

import (
	"sync"
	"time"

	"mindmate/gtasks"
)

// DefaultTTL is how long a cached roster stays valid.
const DefaultTTL = 30 * time.Second

type entry struct {
	lists     []gtasks.List
	fetchedAt time.Time
}

// ListCache holds the external list roster per user with a freshness bound.
type ListCache struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	entries map[string]entry
}

// NewListCache creates a cache with the given freshness bound. A zero ttl
// uses DefaultTTL.
func NewListCache(ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ListCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached roster for a user if it is still fresh.
func (c *ListCache) Get(userID string) ([]gtasks.List, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		return nil, false
	}

	lists := make([]gtasks.List, len(e.lists))
	copy(lists, e.lists)
	return lists, true
}

// Put stores a freshly fetched roster.
func (c *ListCache) Put(userID string, lists []gtasks.List) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]gtasks.List, len(lists))
	copy(stored, lists)
	c.entries[userID] = entry{lists: stored, fetchedAt: c.now()}
}

// Add appends a newly created list to the cached roster, if one is present.
// The freshness clock is not reset.
func (c *ListCache) Add(userID string, list gtasks.List) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return
	}
	e.lists = append(e.lists, list)
	c.entries[userID] = e
}

// Invalidate drops the cached roster for a user.
func (c *ListCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}
