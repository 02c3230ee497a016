package state

import "time"

// Run is one coordination run recorded for history.
type Run struct {
	ID         string
	Platform   string
	Event      string
	HeadCommit string
	BaseCommit string
	Status     string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// ShardResultRecord captures the terminal outcome of one shard.
type ShardResultRecord struct {
	ShardIndex  int
	TotalShards int
	Status      string
	BlobCount   int
	DiffCount   int
}

// CacheEvent records one blob-cache interaction during a run.
type CacheEvent struct {
	Op  string
	Key string
}

// Cache event operations.
const (
	CacheOpHit        = "hit"
	CacheOpMiss       = "miss"
	CacheOpSave       = "save"
	CacheOpSaveFailed = "save_failed"
)
