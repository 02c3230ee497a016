package coordinator

import "github.com/izavyalov-dev/snapshard/bundle"

// Status is the pass/fail outcome of a shard or a whole run.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// ShardResult is the immutable outcome of one shard execution. Output is
// always captured, pass or fail: failure evidence is exactly what must
// propagate downstream. A crashed shard is recorded as a Failure with an
// empty output bundle, never omitted.
type ShardResult struct {
	ShardIndex int
	Status     Status
	Output     *bundle.SnapshotBundle
}

// AggregateResult joins all shard results. Diffs is the subset of Merged
// whose paths carry the failure-evidence marker directory.
type AggregateResult struct {
	OverallStatus Status
	Merged        *bundle.SnapshotBundle
	Diffs         *bundle.SnapshotBundle
}
