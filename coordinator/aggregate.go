package coordinator

import (
	"log/slog"
	"sort"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// DefaultDiffMarker is the directory name conventionally holding
// failure-diff output in shard bundles.
const DefaultDiffMarker = "__diff_output__"

// Merge joins shard results into one aggregate. Shards write disjoint path
// subtrees by construction; if a collision still occurs, the later-indexed
// shard's blob wins and a warning is logged. Merging zero results yields a
// successful, empty aggregate.
func Merge(results []ShardResult, diffMarker string, logger *slog.Logger) AggregateResult {
	if diffMarker == "" {
		diffMarker = DefaultDiffMarker
	}

	ordered := make([]ShardResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ShardIndex < ordered[j].ShardIndex
	})

	merged := bundle.New()
	overall := StatusSuccess
	for _, result := range ordered {
		if result.Status == StatusFailure {
			overall = StatusFailure
		}
		shardIndex := result.ShardIndex
		merged.Merge(result.Output, func(path string) {
			if logger != nil {
				logger.Warn("shard output path collision",
					"event", "merge_collision",
					"path", path,
					"winning_shard", shardIndex)
			}
		})
	}

	return AggregateResult{
		OverallStatus: overall,
		Merged:        merged,
		Diffs:         merged.Select(diffMarker),
	}
}
