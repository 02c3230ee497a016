// Package cache provides the content-addressed blob cache holding baseline
// snapshot bundles.
package cache

import (
	"context"
	"errors"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// ErrCacheMiss reports that no entry exists for a key. A miss is a normal
// outcome that triggers baseline regeneration, not a failure.
var ErrCacheMiss = errors.New("cache: miss")

// BlobCache stores snapshot bundles under commit-derived keys. Entries are
// append-only: callers derive a fresh key per commit rather than rewriting
// existing keys.
type BlobCache interface {
	// Restore returns the bundle stored under key, or ErrCacheMiss.
	Restore(ctx context.Context, key bundle.CacheKey) (*bundle.SnapshotBundle, error)

	// Save persists a bundle under key. Callers treat failures as
	// best-effort: a failed save is logged and never fails the run.
	Save(ctx context.Context, key bundle.CacheKey, b *bundle.SnapshotBundle) error
}
