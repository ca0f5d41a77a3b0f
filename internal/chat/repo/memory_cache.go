package repo

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
)

// MemoryEnrichmentCache keeps enrichment payloads in process memory.
type MemoryEnrichmentCache struct {
	cache *cache.Cache
}

// NewMemoryEnrichmentCache creates a cache whose entries expire after ttl
// unless Set passes its own, with expired entries purged every cleanup.
func NewMemoryEnrichmentCache(ttl, cleanup time.Duration) *MemoryEnrichmentCache {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryEnrichmentCache{cache: cache.New(ttl, cleanup)}
}

func (c *MemoryEnrichmentCache) Get(_ context.Context, key string) (*model.EnrichmentPayload, bool, error) {
	if x, found := c.cache.Get(key); found {
		return x.(*model.EnrichmentPayload), true, nil
	}
	return nil, false, nil
}

// Set stores payload. A zero ttl uses the cache default.
func (c *MemoryEnrichmentCache) Set(_ context.Context, key string, payload *model.EnrichmentPayload, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	c.cache.Set(key, payload, ttl)
	return nil
}

// Len reports the number of cached entries, expired ones included until the
// next cleanup.
func (c *MemoryEnrichmentCache) Len() int {
	return c.cache.ItemCount()
}

var _ model.EnrichmentCache = (*MemoryEnrichmentCache)(nil)
