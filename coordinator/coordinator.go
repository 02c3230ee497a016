// Package coordinator drives a full snapshot-comparison run: baseline
// restore, sharded execution, aggregation, conditional cache persistence,
// and failure reporting.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/izavyalov-dev/snapshard/bundle"
	"github.com/izavyalov-dev/snapshard/cache"
	"github.com/izavyalov-dev/snapshard/internal/observability"
	"github.com/izavyalov-dev/snapshard/planner"
	"github.com/izavyalov-dev/snapshard/state"
	"github.com/izavyalov-dev/snapshard/trigger"
)

// Runner invokes the external test-runner collaborator for one shard. The
// baseline bundle is the comparison reference; a nil baseline means every
// comparison is treated as new, not as a failure.
type Runner interface {
	RunShard(ctx context.Context, shard planner.ShardPlan, baseline *bundle.SnapshotBundle) (ShardResult, error)
}

// Baseliner regenerates reference snapshots when the cache has no entry for
// the restore key.
type Baseliner interface {
	Regenerate(ctx context.Context) (*bundle.SnapshotBundle, error)
}

// ArtifactPublisher uploads a bundle to durable storage and returns its
// location.
type ArtifactPublisher interface {
	Upload(ctx context.Context, name string, b *bundle.SnapshotBundle, retentionDays int) (string, error)
}

// CoverageUploader publishes one coverage report blob captured in shard
// output. Upload failures are best-effort and never fail the run.
type CoverageUploader interface {
	Upload(ctx context.Context, path string, data []byte) error
}

// Config carries the run-wide settings for a Coordinator.
type Config struct {
	Platform       string
	TotalShards    int
	DiffMarker     string
	ArtifactName   string
	RetentionDays  int
	CoveragePrefix string
}

func (c Config) withDefaults() Config {
	if c.Platform == "" {
		c.Platform = "chrome"
	}
	if c.DiffMarker == "" {
		c.DiffMarker = DefaultDiffMarker
	}
	if c.ArtifactName == "" {
		c.ArtifactName = "snapshot-diffs"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CoveragePrefix == "" {
		c.CoveragePrefix = "coverage/"
	}
	return c
}

// Coordinator wires the cache, planner, runner, and reporting side channels
// for one run. The trigger context is fixed at construction; no component
// reads the ambient environment.
type Coordinator struct {
	cfg       Config
	trig      trigger.Context
	cache     cache.BlobCache
	runner    Runner
	baseliner Baseliner
	publisher ArtifactPublisher
	coverage  CoverageUploader
	notifier  Notifier
	recorder  state.Recorder
	ids       IDGenerator
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option customizes optional collaborators of a Coordinator.
type Option func(*Coordinator)

// WithBaseliner sets the baseline regeneration collaborator.
func WithBaseliner(b Baseliner) Option {
	return func(c *Coordinator) { c.baseliner = b }
}

// WithArtifactPublisher sets the failure-evidence publisher.
func WithArtifactPublisher(p ArtifactPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithCoverageUploader sets the coverage side channel.
func WithCoverageUploader(u CoverageUploader) Option {
	return func(c *Coordinator) { c.coverage = u }
}

// WithNotifier replaces the default log notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithRecorder sets the run-history recorder.
func WithRecorder(r state.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New constructs a coordinator with sensible defaults for every optional
// collaborator.
func New(cfg Config, trig trigger.Context, blobCache cache.BlobCache, runner Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg.withDefaults(),
		trig:   trig,
		cache:  blobCache,
		runner: runner,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewLogger("coordinator")
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{Logger: c.logger}
	}
	if c.recorder == nil {
		c.recorder = state.NoopRecorder{}
	}
	if c.ids == nil {
		c.ids = RandomIDGenerator{}
	}
	return c
}

// Execute runs the full coordination sequence and returns the aggregate
// outcome. It returns an error only for fatal pre-shard conditions such as
// an invalid shard count; shard failures are reported through
// AggregateResult.OverallStatus.
func (c *Coordinator) Execute(ctx context.Context) (AggregateResult, error) {
	plans, err := planner.Plan(c.cfg.TotalShards, c.trig.HasExecutionCredential)
	if err != nil {
		return AggregateResult{}, err
	}

	runID := c.ids.RunID()
	logger := observability.WithRun(c.logger, runID)
	logger.Info("run started",
		"event", "run_started",
		"platform", c.cfg.Platform,
		"trigger", string(c.trig.Event),
		"head_commit", c.trig.HeadCommit,
		"shards", len(plans),
		"parallel", plans[0].EnableParallel)

	c.record(ctx, logger, func() error {
		return c.recorder.CreateRun(ctx, state.Run{
			ID:         runID,
			Platform:   c.cfg.Platform,
			Event:      string(c.trig.Event),
			HeadCommit: c.trig.HeadCommit,
			BaseCommit: c.trig.BaseCommit,
			Status:     "RUNNING",
		})
	})

	baseline := c.restoreBaseline(ctx, runID, logger)
	results := c.runShards(ctx, logger, plans, baseline)
	agg := Merge(results, c.cfg.DiffMarker, logger)

	for _, result := range results {
		c.metrics.IncShard(strings.ToLower(string(result.Status)))
		record := state.ShardResultRecord{
			ShardIndex:  result.ShardIndex,
			TotalShards: len(plans),
			Status:      string(result.Status),
			BlobCount:   result.Output.Len(),
			DiffCount:   result.Output.Select(c.cfg.DiffMarker).Len(),
		}
		c.record(ctx, logger, func() error {
			return c.recorder.RecordShardResult(ctx, runID, record)
		})
	}

	artifactURL := c.publishDiffs(ctx, logger, agg)
	c.uploadCoverage(ctx, logger, agg.Merged)
	c.maybeSave(ctx, runID, logger, agg)

	if agg.OverallStatus == StatusFailure {
		c.notifier.NotifyFailure(ctx, agg, artifactURL)
	}

	c.metrics.IncRun(strings.ToLower(string(agg.OverallStatus)))
	c.record(ctx, logger, func() error {
		return c.recorder.FinishRun(ctx, runID, string(agg.OverallStatus), time.Now().UTC())
	})

	logger.Info("run finished",
		"event", "run_finished",
		"status", string(agg.OverallStatus),
		"merged_blobs", agg.Merged.Len(),
		"diff_blobs", agg.Diffs.Len())

	return agg, nil
}

// restoreBaseline fetches the reference bundle for the restore key. A miss
// triggers regeneration through the Baseliner when one is configured;
// regeneration failure degrades to a nil baseline and the run continues.
func (c *Coordinator) restoreBaseline(ctx context.Context, runID string, logger *slog.Logger) *bundle.SnapshotBundle {
	key := c.trig.RestoreKey(c.cfg.Platform)

	restored, err := c.cache.Restore(ctx, key)
	switch {
	case err == nil:
		logger.Info("baseline restored", "event", "cache_hit", "cache_key", key.String(), "blobs", restored.Len())
		c.metrics.IncCacheOp(state.CacheOpHit)
		c.recordCacheEvent(ctx, runID, logger, state.CacheOpHit, key.String())
		return restored
	case errors.Is(err, cache.ErrCacheMiss):
		logger.Info("baseline missing", "event", "cache_miss", "cache_key", key.String())
		c.metrics.IncCacheOp(state.CacheOpMiss)
		c.recordCacheEvent(ctx, runID, logger, state.CacheOpMiss, key.String())
	default:
		logger.Warn("baseline restore failed, treating as miss", "event", "cache_restore_failed", "cache_key", key.String(), "error", err)
		c.metrics.IncCacheOp(state.CacheOpMiss)
	}

	if c.baseliner == nil {
		return nil
	}

	regenerated, err := c.baseliner.Regenerate(ctx)
	if err != nil {
		logger.Warn("baseline regeneration failed, comparisons will be treated as new",
			"event", "baseline_regeneration_failed", "error", err)
		c.metrics.IncFailure("regeneration")
		return nil
	}
	logger.Info("baseline regenerated", "event", "baseline_regenerated", "blobs", regenerated.Len())

	// Without a base commit the restore key coincides with the persist key.
	// Saves are append-only, so writing the regenerated bundle here would
	// leave the post-run persist a silent no-op; keep the key free instead.
	if c.trig.Event == trigger.EventPush && key.String() == c.trig.PersistKey(c.cfg.Platform).String() {
		logger.Info("baseline save skipped, key reserved for post-run persist", "event", "cache_save_skipped", "cache_key", key.String())
		return regenerated
	}

	if err := c.cache.Save(ctx, key, regenerated); err != nil {
		logger.Warn("baseline save failed", "event", "cache_save_failed", "cache_key", key.String(), "error", err)
		c.metrics.IncCacheOp(state.CacheOpSaveFailed)
		c.recordCacheEvent(ctx, runID, logger, state.CacheOpSaveFailed, key.String())
	} else {
		c.metrics.IncCacheOp(state.CacheOpSave)
		c.recordCacheEvent(ctx, runID, logger, state.CacheOpSave, key.String())
	}

	return regenerated
}

// runShards fans the plans out as independent parallel tasks and joins all
// of them before returning. Failure is captured as data: a shard whose
// runner errors out yields a Failure result with an empty bundle.
func (c *Coordinator) runShards(ctx context.Context, logger *slog.Logger, plans []planner.ShardPlan, baseline *bundle.SnapshotBundle) []ShardResult {
	results := make([]ShardResult, len(plans))

	var group errgroup.Group
	for i, plan := range plans {
		i, plan := i, plan
		group.Go(func() error {
			shardLogger := observability.WithShard(logger, plan.ShardIndex, plan.TotalShards)

			result, err := c.runner.RunShard(ctx, plan, baseline)
			if err != nil {
				shardLogger.Warn("shard runner error", "event", "shard_error", "error", err)
				result = ShardResult{
					ShardIndex: plan.ShardIndex,
					Status:     StatusFailure,
					Output:     bundle.New(),
				}
			}
			if result.Output == nil {
				result.Output = bundle.New()
			}

			shardLogger.Info("shard finished",
				"event", "shard_finished",
				"status", string(result.Status),
				"blobs", result.Output.Len())
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	return results
}

// publishDiffs uploads failure evidence and returns its location. Publishing
// is best-effort and only happens when there is something to show.
func (c *Coordinator) publishDiffs(ctx context.Context, logger *slog.Logger, agg AggregateResult) string {
	if c.publisher == nil || agg.OverallStatus != StatusFailure || agg.Diffs.Empty() {
		return ""
	}

	url, err := c.publisher.Upload(ctx, c.cfg.ArtifactName, agg.Diffs, c.cfg.RetentionDays)
	if err != nil {
		logger.Warn("diff artifact upload failed", "event", "artifact_upload_failed", "error", err)
		c.metrics.IncFailure("artifact_upload")
		return ""
	}
	logger.Info("diff artifact uploaded", "event", "artifact_uploaded", "url", url, "blobs", agg.Diffs.Len())
	return url
}

func (c *Coordinator) uploadCoverage(ctx context.Context, logger *slog.Logger, merged *bundle.SnapshotBundle) {
	if c.coverage == nil {
		return
	}
	for _, path := range merged.Paths() {
		if !strings.HasPrefix(path, c.cfg.CoveragePrefix) {
			continue
		}
		data, _ := merged.Get(path)
		if err := c.coverage.Upload(ctx, path, data); err != nil {
			logger.Warn("coverage upload failed", "event", "coverage_upload_failed", "path", path, "error", err)
			c.metrics.IncFailure("coverage_upload")
		}
	}
}

// maybeSave persists the merged bundle as the new baseline. Only a direct
// push after a fully green run produces a new cache entry; the key derives
// from the head commit so later runs restore from it.
func (c *Coordinator) maybeSave(ctx context.Context, runID string, logger *slog.Logger, agg AggregateResult) {
	if c.trig.Event != trigger.EventPush || agg.OverallStatus == StatusFailure {
		return
	}

	key := c.trig.PersistKey(c.cfg.Platform)
	if err := c.cache.Save(ctx, key, agg.Merged); err != nil {
		logger.Warn("cache save failed", "event", "cache_save_failed", "cache_key", key.String(), "error", err)
		c.metrics.IncCacheOp(state.CacheOpSaveFailed)
		c.metrics.IncFailure("cache_save")
		c.recordCacheEvent(ctx, runID, logger, state.CacheOpSaveFailed, key.String())
		return
	}
	logger.Info("baseline persisted", "event", "cache_saved", "cache_key", key.String(), "blobs", agg.Merged.Len())
	c.metrics.IncCacheOp(state.CacheOpSave)
	c.recordCacheEvent(ctx, runID, logger, state.CacheOpSave, key.String())
}

func (c *Coordinator) recordCacheEvent(ctx context.Context, runID string, logger *slog.Logger, op, key string) {
	c.record(ctx, logger, func() error {
		return c.recorder.RecordCacheEvent(ctx, runID, state.CacheEvent{Op: op, Key: key})
	})
}

// record runs a history write and downgrades its failure to a warning.
func (c *Coordinator) record(ctx context.Context, logger *slog.Logger, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("history record failed", "event", "history_record_failed", "error", err)
		c.metrics.IncFailure("history")
	}
}
