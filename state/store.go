// Package state persists run history to Postgres. The store is append-only:
// runs, shard results, and cache events are inserted once and never updated
// except to mark a run finished.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row cannot be located.
var ErrNotFound = errors.New("state: not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, platform, event, head_commit, base_commit, status)
VALUES ($1, $2, $3, $4, $5, $6)
`, run.ID, run.Platform, run.Event, run.HeadCommit, nullable(run.BaseCommit), run.Status)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) RecordShardResult(ctx context.Context, runID string, result ShardResultRecord) error {
	if runID == "" {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO shard_results (run_id, shard_index, total_shards, status, blob_count, diff_count)
VALUES ($1, $2, $3, $4, $5, $6)
`, runID, result.ShardIndex, result.TotalShards, result.Status, result.BlobCount, result.DiffCount)
	if err != nil {
		return fmt.Errorf("record shard %d: %w", result.ShardIndex, err)
	}
	return nil
}

func (s *Store) RecordCacheEvent(ctx context.Context, runID string, event CacheEvent) error {
	if runID == "" {
		return errors.New("run id required")
	}
	if event.Op == "" || event.Key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_events (run_id, op, cache_key)
VALUES ($1, $2, $3)
`, runID, event.Op, event.Key)
	if err != nil {
		return fmt.Errorf("record cache event: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = $2, finished_at = $3 WHERE id = $1
`, runID, status, finishedAt)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

// GetRun returns a recorded run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	var base sql.NullString
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
SELECT id, platform, event, head_commit, base_commit, status, created_at, finished_at
FROM runs WHERE id = $1
`, runID).Scan(&run.ID, &run.Platform, &run.Event, &run.HeadCommit, &base, &run.Status, &run.CreatedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return Run{}, err
	}
	if base.Valid {
		run.BaseCommit = base.String
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}

// ListShardResults returns the recorded shard outcomes for a run ordered by
// shard index.
func (s *Store) ListShardResults(ctx context.Context, runID string) ([]ShardResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT shard_index, total_shards, status, blob_count, diff_count
FROM shard_results WHERE run_id = $1 ORDER BY shard_index
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ShardResultRecord
	for rows.Next() {
		var r ShardResultRecord
		if err := rows.Scan(&r.ShardIndex, &r.TotalShards, &r.Status, &r.BlobCount, &r.DiffCount); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
