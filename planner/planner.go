// Package planner partitions the test suite into independent shards.
package planner

import "errors"

// ErrInvalidShardCount is returned when the configured shard count cannot
// produce a valid plan. It aborts the run before any shard executes.
var ErrInvalidShardCount = errors.New("planner: shard count must be at least 1")

// ShardPlan describes one partition of the test suite. ShardIndex is always
// in [0, TotalShards).
type ShardPlan struct {
	ShardIndex     int
	TotalShards    int
	EnableParallel bool
}

// Plan emits the shard plans for a run. With the execution credential present
// it fans out to totalShardsConfigured parallel shards. Without it, forked or
// untrusted runs collapse to a single serial shard so at least one
// verification pass still happens.
func Plan(totalShardsConfigured int, hasExecutionCredential bool) ([]ShardPlan, error) {
	if totalShardsConfigured < 1 {
		return nil, ErrInvalidShardCount
	}

	if !hasExecutionCredential {
		return []ShardPlan{{ShardIndex: 0, TotalShards: 1, EnableParallel: false}}, nil
	}

	plans := make([]ShardPlan, 0, totalShardsConfigured)
	for i := 0; i < totalShardsConfigured; i++ {
		plans = append(plans, ShardPlan{
			ShardIndex:     i,
			TotalShards:    totalShardsConfigured,
			EnableParallel: true,
		})
	}
	return plans, nil
}
