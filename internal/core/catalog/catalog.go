// Package catalog wraps RemoteClient's menu endpoints behind a small
// TTL cache so that a burst of sessions browsing the same branch doesn't
// hammer the backend: concurrent refreshes for the same branch are
// coalesced into a single in-flight RemoteClient call via singleflight,
// exactly the "coalesced refresh to avoid thundering herd" requirement.
package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"whatsapp-commerce-gateway/internal/core/remote"
)

// MenuCatalog is the capability the FSM's browsing handlers depend on.
// Implementations must be safe for concurrent use across sessions.
type MenuCatalog interface {
	GetMenuTree(ctx context.Context, subDomain, localID string) (*remote.MenuTree, error)
	GetProductDetails(ctx context.Context, subDomain, localID string, productIDs []string) ([]remote.ProductDetail, error)
}

// RemoteBackedCatalog is the concrete MenuCatalog: a RemoteClient plus a
// per-branch TTL cache for the (expensive, slow-changing) menu tree.
// Product detail lookups are not cached — they're per-conversation and
// keyed by a variable id set, so caching them gains little.
type RemoteBackedCatalog struct {
	client *remote.Client
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
}

type cacheEntry struct {
	tree      *remote.MenuTree
	expiresAt time.Time
}

// DefaultTTL matches how often restaurant menus realistically change
// within a single service day.
const DefaultTTL = 5 * time.Minute

// New builds a RemoteBackedCatalog. ttl <= 0 uses DefaultTTL.
func New(client *remote.Client, ttl time.Duration) *RemoteBackedCatalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RemoteBackedCatalog{
		client:  client,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(subDomain, localID string) string { return subDomain + "/" + localID }

// GetMenuTree returns the cached tree for (subDomain, localID) when fresh,
// otherwise fetches once per key even under concurrent callers.
func (c *RemoteBackedCatalog) GetMenuTree(ctx context.Context, subDomain, localID string) (*remote.MenuTree, error) {
	key := cacheKey(subDomain, localID)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.tree, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		tree, err := c.client.GetMenuBotStructure(ctx, subDomain, localID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{tree: tree, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		// A stale-but-present entry is still useful if the refresh failed
		// transiently; callers that need strict freshness should check
		// the error themselves.
		if ok {
			return entry.tree, nil
		}
		return nil, err
	}
	return v.(*remote.MenuTree), nil
}

// GetProductDetails always goes straight to RemoteClient.
func (c *RemoteBackedCatalog) GetProductDetails(ctx context.Context, subDomain, localID string, productIDs []string) ([]remote.ProductDetail, error) {
	return c.client.GetProductDetails(ctx, subDomain, localID, productIDs)
}

// Invalidate drops the cached tree for a branch, forcing the next
// GetMenuTree call to refresh. Nothing in this module calls it on a
// schedule; cached trees otherwise refresh only once their TTL expires.
func (c *RemoteBackedCatalog) Invalidate(subDomain, localID string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(subDomain, localID))
	c.mu.Unlock()
}
