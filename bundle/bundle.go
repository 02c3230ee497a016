// Package bundle defines the snapshot bundle data model shared by the cache,
// the shard runner, and the aggregator.
package bundle

import (
	"sort"
	"strings"
)

// SnapshotBundle is a tree of named binary blobs addressed by slash-separated
// relative paths. Paths within a bundle are unique; adding an existing path
// replaces the previous blob.
type SnapshotBundle struct {
	blobs map[string][]byte
}

// New returns an empty bundle.
func New() *SnapshotBundle {
	return &SnapshotBundle{blobs: make(map[string][]byte)}
}

// Add stores a blob under path, replacing any previous blob at that path.
func (b *SnapshotBundle) Add(path string, data []byte) {
	if b.blobs == nil {
		b.blobs = make(map[string][]byte)
	}
	b.blobs[path] = data
}

// Get returns the blob stored under path.
func (b *SnapshotBundle) Get(path string) ([]byte, bool) {
	if b == nil {
		return nil, false
	}
	data, ok := b.blobs[path]
	return data, ok
}

// Len reports the number of blobs in the bundle.
func (b *SnapshotBundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.blobs)
}

// Empty reports whether the bundle holds no blobs.
func (b *SnapshotBundle) Empty() bool {
	return b.Len() == 0
}

// Paths returns every blob path in sorted order.
func (b *SnapshotBundle) Paths() []string {
	if b == nil {
		return nil
	}
	paths := make([]string, 0, len(b.blobs))
	for path := range b.blobs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Merge copies every blob of src into b. Colliding paths resolve
// last-writer-wins; onCollision, when non-nil, is invoked for each
// overwritten path so callers can log the event.
func (b *SnapshotBundle) Merge(src *SnapshotBundle, onCollision func(path string)) {
	if src == nil {
		return
	}
	for _, path := range src.Paths() {
		if _, exists := b.Get(path); exists && onCollision != nil {
			onCollision(path)
		}
		data, _ := src.Get(path)
		b.Add(path, data)
	}
}

// Select returns the subset of blobs whose path contains marker as a
// directory segment. An empty selection is a valid, empty bundle.
func (b *SnapshotBundle) Select(marker string) *SnapshotBundle {
	selected := New()
	if b == nil || marker == "" {
		return selected
	}
	for path, data := range b.blobs {
		if hasSegment(path, marker) {
			selected.Add(path, data)
		}
	}
	return selected
}

// Clone returns an independent copy of the bundle. Blob contents are copied
// so the caller owns the result outright.
func (b *SnapshotBundle) Clone() *SnapshotBundle {
	copied := New()
	if b == nil {
		return copied
	}
	for path, data := range b.blobs {
		dup := make([]byte, len(data))
		copy(dup, data)
		copied.Add(path, dup)
	}
	return copied
}

// PathsEqual reports whether two bundles hold the same set of paths.
func PathsEqual(a, b *SnapshotBundle) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, path := range a.Paths() {
		if _, ok := b.Get(path); !ok {
			return false
		}
	}
	return true
}

func hasSegment(path, segment string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
