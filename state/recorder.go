package state

import (
	"context"
	"time"
)

// Recorder persists run history. Recording is a best-effort side channel:
// callers log and ignore its errors so history never affects run status.
type Recorder interface {
	CreateRun(ctx context.Context, run Run) error
	RecordShardResult(ctx context.Context, runID string, result ShardResultRecord) error
	RecordCacheEvent(ctx context.Context, runID string, event CacheEvent) error
	FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error
}

// NoopRecorder discards all history. It is the default when no database is
// configured.
type NoopRecorder struct{}

func (NoopRecorder) CreateRun(ctx context.Context, run Run) error { return nil }

func (NoopRecorder) RecordShardResult(ctx context.Context, runID string, result ShardResultRecord) error {
	return nil
}

func (NoopRecorder) RecordCacheEvent(ctx context.Context, runID string, event CacheEvent) error {
	return nil
}

func (NoopRecorder) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error {
	return nil
}
