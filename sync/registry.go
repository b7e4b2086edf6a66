package sync

import (
	"context"
	"time"

	"mindmate/gtasks"
	"mindmate/internal/cache"
	"mindmate/internal/utils"
	"mindmate/store"
	"mindmate/task"
)

// DefaultListPrefix is prepended to category names when provisioning
// external lists.
const DefaultListPrefix = "MindMate_"

// archivedListName is the title of the reserved archived list, without prefix.
const archivedListName = "Archived"

// ListService is the subset of the external client the registry needs.
type ListService interface {
	GetLists(ctx context.Context, userID string) ([]gtasks.List, error)
	CreateList(ctx context.Context, userID, title string) (*gtasks.List, error)
}

// Registry maps local categories to external list ids. Lists are created
// lazily, verified against the service before reuse, and recreated when they
// were deleted out-of-band. Mappings are persisted and never deleted
// automatically.
//
// Existence checks are served from a short-TTL roster cache, so a list
// deleted out-of-band can pass verification until the cache expires. The
// mirror's not-found self-heal calls InvalidateRoster and retries, which
// closes that window.
//
// The check-then-create is not transactional against the external service:
// two near-simultaneous calls for a brand-new category can each create a
// list before either persists the mapping. The API offers no idempotency key
// for list creation, so the duplicate is logged rather than prevented; only
// one mapping wins and is used for subsequent tasks.
type Registry struct {
	store  store.Store
	client ListService
	prefix string
	lists  *cache.ListCache
	log    *utils.Logger
}

// NewRegistry creates a registry.
func NewRegistry(st store.Store, client ListService, prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultListPrefix
	}
	return &Registry{
		store:  st,
		client: client,
		prefix: prefix,
		lists:  cache.NewListCache(0),
		log:    utils.GetLogger(),
	}
}

// roster returns the external list roster, served from cache when fresh.
func (r *Registry) roster(ctx context.Context, userID string) ([]gtasks.List, error) {
	if lists, ok := r.lists.Get(userID); ok {
		return lists, nil
	}
	lists, err := r.client.GetLists(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.lists.Put(userID, lists)
	return lists, nil
}

// ListFor returns the external list id for a category, provisioning the list
// on first use.
func (r *Registry) ListFor(ctx context.Context, userID, category string) (string, error) {
	return r.resolve(ctx, userID, category, r.prefix+category, false)
}

// ArchivedList returns the reserved archived list id, provisioning it on
// first use.
func (r *Registry) ArchivedList(ctx context.Context, userID string) (string, error) {
	return r.resolve(ctx, userID, task.ArchivedCategory, r.prefix+archivedListName, true)
}

func (r *Registry) resolve(ctx context.Context, userID, category, title string, archived bool) (string, error) {
	mapping, err := r.store.GetListMapping(ctx, userID, category)
	if err != nil {
		return "", err
	}

	if mapping != nil {
		// Confirm the list still exists; it may have been deleted in the
		// external service's own UI.
		lists, err := r.roster(ctx, userID)
		if err != nil {
			return "", err
		}
		for _, l := range lists {
			if l.ID == mapping.ListID {
				return mapping.ListID, nil
			}
		}
		r.log.Warn("external list %s for category %q no longer exists, recreating", mapping.ListID, category)
	}

	created, err := r.client.CreateList(ctx, userID, title)
	if err != nil {
		return "", err
	}
	r.lists.Add(userID, *created)

	// Persist immediately to shrink the duplicate-creation window.
	newMapping := &task.ListMapping{
		UserID:    userID,
		Category:  category,
		ListID:    created.ID,
		Archived:  archived,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.PutListMapping(ctx, newMapping); err != nil {
		return "", err
	}

	r.log.Debug("provisioned external list %q (%s) for category %q", title, created.ID, category)
	return created.ID, nil
}

// InvalidateRoster drops the cached roster so the next resolve re-verifies
// against the service. Called after the service reports a missing list.
func (r *Registry) InvalidateRoster(userID string) {
	r.lists.Invalidate(userID)
}
