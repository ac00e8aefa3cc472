package repomap

import (
	"context"
	"sync"
	"time"
)

// SummaryCache persists a generated summary by the content hash of the
// code it describes, so a re-run over unchanged code never re-pays for
// an LLM call. internal/cache.RedisCache satisfies this directly.
type SummaryCache interface {
	GetSummary(ctx context.Context, contentHash string) (string, error)
	SetSummary(ctx context.Context, contentHash, summary string, ttl time.Duration) error
}

// summaryCacheTTL is the entry lifetime used when a builder's cache is
// backed by a TTL-aware store (e.g. Redis); an in-memory cache ignores it.
const summaryCacheTTL = 30 * 24 * time.Hour

// InMemorySummaryCache is a process-local SummaryCache, sufficient for a
// single build when no shared cache (e.g. Redis) is configured.
type InMemorySummaryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewInMemorySummaryCache creates an empty cache.
func NewInMemorySummaryCache() *InMemorySummaryCache {
	return &InMemorySummaryCache{store: make(map[string]string)}
}

func (c *InMemorySummaryCache) GetSummary(ctx context.Context, contentHash string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store[contentHash], nil
}

func (c *InMemorySummaryCache) SetSummary(ctx context.Context, contentHash, summary string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[contentHash] = summary
	return nil
}
