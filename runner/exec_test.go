package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/izavyalov-dev/snapshard/bundle"
	"github.com/izavyalov-dev/snapshard/coordinator"
	"github.com/izavyalov-dev/snapshard/planner"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := &ExecRunner{
		Command:   `printf "shot" > "$SHARD_OUTPUT_DIR/screen-$SHARD_INDEX-of-$SHARD_COUNT.png"`,
		OutputDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 2, TotalShards: 4, EnableParallel: true}, nil)
	if err != nil {
		t.Fatalf("run shard failed: %v", err)
	}
	if result.Status != coordinator.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.ShardIndex != 2 {
		t.Fatalf("unexpected shard index: %d", result.ShardIndex)
	}
	if !reflect.DeepEqual(result.Output.Paths(), []string{"screen-2-of-4.png"}) {
		t.Fatalf("unexpected output paths: %v", result.Output.Paths())
	}
}

func TestExecRunnerFailureStillCapturesOutput(t *testing.T) {
	r := &ExecRunner{
		Command:   `mkdir -p "$SHARD_OUTPUT_DIR/__diff_output__" && printf "diff" > "$SHARD_OUTPUT_DIR/__diff_output__/screen.png" && exit 1`,
		OutputDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 0, TotalShards: 1}, nil)
	if err != nil {
		t.Fatalf("run shard failed: %v", err)
	}
	if result.Status != coordinator.StatusFailure {
		t.Fatalf("expected failure, got %s", result.Status)
	}
	if !reflect.DeepEqual(result.Output.Paths(), []string{"__diff_output__/screen.png"}) {
		t.Fatalf("failure evidence not captured: %v", result.Output.Paths())
	}
}

func TestExecRunnerClearsStaleOutput(t *testing.T) {
	outputRoot := t.TempDir()
	staleDir := filepath.Join(outputRoot, "shard-0")
	if err := os.MkdirAll(staleDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(staleDir, "stale.png"), []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}

	r := &ExecRunner{
		Command:   `printf "shot" > "$SHARD_OUTPUT_DIR/fresh.png"`,
		OutputDir: outputRoot,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 0, TotalShards: 1}, nil)
	if err != nil {
		t.Fatalf("run shard failed: %v", err)
	}
	if !reflect.DeepEqual(result.Output.Paths(), []string{"fresh.png"}) {
		t.Fatalf("stale output leaked into bundle: %v", result.Output.Paths())
	}
}

func TestExecRunnerMaterializesBaseline(t *testing.T) {
	baseline := bundle.New()
	baseline.Add("ref/screen.png", []byte("reference"))

	r := &ExecRunner{
		Command:   `cp "$BASELINE_DIR/ref/screen.png" "$SHARD_OUTPUT_DIR/copied.png"`,
		OutputDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 0, TotalShards: 1}, baseline)
	if err != nil {
		t.Fatalf("run shard failed: %v", err)
	}
	data, ok := result.Output.Get("copied.png")
	if !ok || string(data) != "reference" {
		t.Fatalf("baseline not visible to runner, got %q", data)
	}
}

func TestExecRunnerEmptyBaselineOmitsDir(t *testing.T) {
	r := &ExecRunner{
		Command:   `test -z "$BASELINE_DIR"`,
		OutputDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 0, TotalShards: 1}, bundle.New())
	if err != nil {
		t.Fatalf("run shard failed: %v", err)
	}
	if result.Status != coordinator.StatusSuccess {
		t.Fatal("expected empty BASELINE_DIR for absent baseline")
	}
}

func TestExecRunnerMissingCommand(t *testing.T) {
	r := &ExecRunner{OutputDir: t.TempDir()}
	if _, err := r.RunShard(context.Background(), planner.ShardPlan{ShardIndex: 0, TotalShards: 1}, nil); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestExecBaselinerRegenerates(t *testing.T) {
	b := &ExecBaseliner{
		Command:   `printf "ref" > "$SHARD_OUTPUT_DIR/base.png"`,
		OutputDir: t.TempDir(),
	}

	regenerated, err := b.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if !reflect.DeepEqual(regenerated.Paths(), []string{"base.png"}) {
		t.Fatalf("unexpected baseline paths: %v", regenerated.Paths())
	}
}

func TestExecBaselinerCommandFailure(t *testing.T) {
	b := &ExecBaseliner{
		Command:   `exit 3`,
		OutputDir: t.TempDir(),
	}
	if _, err := b.Regenerate(context.Background()); err == nil {
		t.Fatal("expected error from failing baseline command")
	}
}
