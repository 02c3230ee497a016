// Package runner invokes the external visual-diff test runner and loads its
// output into snapshot bundles.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/izavyalov-dev/snapshard/bundle"
	"github.com/izavyalov-dev/snapshard/coordinator"
	"github.com/izavyalov-dev/snapshard/internal/observability"
	"github.com/izavyalov-dev/snapshard/planner"
)

// Environment variables passed to the external runner command.
const (
	EnvShardIndex  = "SHARD_INDEX"
	EnvShardCount  = "SHARD_COUNT"
	EnvBaselineDir = "BASELINE_DIR"
	EnvOutputDir   = "SHARD_OUTPUT_DIR"
)

// ExecRunner shells out to the external test-runner collaborator once per
// shard. The shard contract is environment-based: index, total count, the
// baseline directory (absent when there is no baseline), and the directory
// the runner must write its output bundle to.
type ExecRunner struct {
	Command   string
	Workdir   string
	OutputDir string
	Logger    *slog.Logger
}

// RunShard executes the command for one shard and captures its output
// bundle regardless of pass or fail. Only setup problems (temp dirs, output
// collection) are returned as errors; a nonzero runner exit is a Failure
// result, not an error.
func (r *ExecRunner) RunShard(ctx context.Context, shard planner.ShardPlan, baseline *bundle.SnapshotBundle) (coordinator.ShardResult, error) {
	if r.Command == "" {
		return coordinator.ShardResult{}, fmt.Errorf("runner command is required")
	}
	logger := r.Logger
	if logger == nil {
		logger = observability.NewLogger("runner")
	}
	logger = observability.WithShard(logger, shard.ShardIndex, shard.TotalShards)

	baselineDir := ""
	if baseline != nil && !baseline.Empty() {
		dir, err := os.MkdirTemp("", "snapshard-baseline-")
		if err != nil {
			return coordinator.ShardResult{}, fmt.Errorf("baseline dir: %w", err)
		}
		defer os.RemoveAll(dir)
		if err := materialize(dir, baseline); err != nil {
			return coordinator.ShardResult{}, fmt.Errorf("materialize baseline: %w", err)
		}
		baselineDir = dir
	}

	// The output dir is collected wholesale after the run, so leftovers
	// from an earlier invocation would end up in the bundle.
	outputDir := filepath.Join(r.OutputDir, fmt.Sprintf("shard-%d", shard.ShardIndex))
	if err := os.RemoveAll(outputDir); err != nil {
		return coordinator.ShardResult{}, fmt.Errorf("clear output dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return coordinator.ShardResult{}, fmt.Errorf("output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	cmd.Dir = r.Workdir
	cmd.Env = append(os.Environ(),
		EnvShardIndex+"="+strconv.Itoa(shard.ShardIndex),
		EnvShardCount+"="+strconv.Itoa(shard.TotalShards),
		EnvBaselineDir+"="+baselineDir,
		EnvOutputDir+"="+outputDir,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()

	status := coordinator.StatusSuccess
	if runErr != nil {
		status = coordinator.StatusFailure
		logger.Info("runner exited nonzero", "event", "shard_runner_failed", "error", runErr)
	}

	// Output is collected even when the runner failed: diff images are the
	// evidence the rest of the pipeline needs.
	output, err := loadDir(outputDir)
	if err != nil {
		return coordinator.ShardResult{}, fmt.Errorf("collect shard output: %w", err)
	}

	return coordinator.ShardResult{
		ShardIndex: shard.ShardIndex,
		Status:     status,
		Output:     output,
	}, nil
}

// ExecBaseliner regenerates reference snapshots by running a command that
// writes them into OutputDir.
type ExecBaseliner struct {
	Command   string
	Workdir   string
	OutputDir string
}

func (b *ExecBaseliner) Regenerate(ctx context.Context) (*bundle.SnapshotBundle, error) {
	if b.Command == "" {
		return nil, fmt.Errorf("baseline command is required")
	}
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("baseline output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", b.Command)
	cmd.Dir = b.Workdir
	cmd.Env = append(os.Environ(), EnvOutputDir+"="+b.OutputDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("baseline command: %w", err)
	}

	regenerated, err := loadDir(b.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("collect baseline output: %w", err)
	}
	return regenerated, nil
}
