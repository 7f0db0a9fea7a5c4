package service

import (
	"context"
	"sync"

	"stockyard/internal/repository"
)

// SellerCache maps CRM vendor ids to local seller ids. Entries are added
// lazily and live for the process lifetime; there is no eviction. Reset
// exists for tests.
type SellerCache struct {
	mu    sync.RWMutex
	byExt map[string]uint64
}

func NewSellerCache() *SellerCache {
	return &SellerCache{byExt: make(map[string]uint64)}
}

// Resolve returns the local seller id for a CRM vendor id, consulting the
// cache first and storage on a miss. An unknown vendor yields (0, nil):
// the caller skips the record and self-heals once the seller is onboarded.
func (c *SellerCache) Resolve(ctx context.Context, store repository.Repository, externalID string) (uint64, error) {
	if externalID == "" {
		return 0, nil
	}
	c.mu.RLock()
	id, ok := c.byExt[externalID]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := store.FindSellerIDByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// Misses are not cached: the seller may be onboarded between runs.
		return 0, nil
	}

	c.mu.Lock()
	c.byExt[externalID] = id
	c.mu.Unlock()
	return id, nil
}

// Reset clears the cache. Only tests call this; in production the cache
// lives until process restart.
func (c *SellerCache) Reset() {
	c.mu.Lock()
	c.byExt = make(map[string]uint64)
	c.mu.Unlock()
}

func (c *SellerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byExt)
}
