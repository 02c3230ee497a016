package cache

import (
	"context"
	"sync"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// MemoryBlobCache is a map-backed BlobCache used by tests and local dry
// runs. It mirrors the platform's append-only semantics: saving to an
// existing key is silently ignored.
type MemoryBlobCache struct {
	mu      sync.Mutex
	entries map[string]*bundle.SnapshotBundle
}

// NewMemoryBlobCache returns an empty in-memory cache.
func NewMemoryBlobCache() *MemoryBlobCache {
	return &MemoryBlobCache{entries: make(map[string]*bundle.SnapshotBundle)}
}

func (c *MemoryBlobCache) Restore(ctx context.Context, key bundle.CacheKey) (*bundle.SnapshotBundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry.Clone(), nil
}

func (c *MemoryBlobCache) Save(ctx context.Context, key bundle.CacheKey, b *bundle.SnapshotBundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key.String()]; exists {
		return nil
	}
	c.entries[key.String()] = b.Clone()
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryBlobCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
