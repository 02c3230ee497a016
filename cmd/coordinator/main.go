package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gopkg.in/yaml.v3"

	"github.com/izavyalov-dev/snapshard/cache"
	"github.com/izavyalov-dev/snapshard/coordinator"
	"github.com/izavyalov-dev/snapshard/internal/observability"
	"github.com/izavyalov-dev/snapshard/internal/vcs/github"
	"github.com/izavyalov-dev/snapshard/planner"
	"github.com/izavyalov-dev/snapshard/runner"
	"github.com/izavyalov-dev/snapshard/runner/artifacts"
	"github.com/izavyalov-dev/snapshard/state"
	"github.com/izavyalov-dev/snapshard/trigger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		status, err := runCommand(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			os.Exit(2)
		}
		if status == coordinator.StatusFailure {
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: coordinator run [flags]")
}

// fileConfig mirrors the run flags for YAML-based configuration. Flags set
// explicitly on the command line override file values.
type fileConfig struct {
	Platform        string `yaml:"platform"`
	Shards          int    `yaml:"shards"`
	DiffMarker      string `yaml:"diff_marker"`
	RunnerCommand   string `yaml:"runner_command"`
	BaselineCommand string `yaml:"baseline_command"`
	Workdir         string `yaml:"workdir"`
	OutputDir       string `yaml:"output_dir"`
	BaselineDir     string `yaml:"baseline_dir"`

	Cache struct {
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
		Region string `yaml:"region"`
	} `yaml:"cache"`

	Artifacts struct {
		Bucket        string `yaml:"bucket"`
		Prefix        string `yaml:"prefix"`
		Region        string `yaml:"region"`
		Name          string `yaml:"name"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"artifacts"`

	Coverage struct {
		Endpoint string   `yaml:"endpoint"`
		Name     string   `yaml:"name"`
		Flags    []string `yaml:"flags"`
	} `yaml:"coverage"`

	GitHub struct {
		Repo    string `yaml:"repo"` // owner/name
		Context string `yaml:"context"`
	} `yaml:"github"`

	DatabaseURL string `yaml:"database_url"`
}

func runCommand(args []string) (coordinator.Status, error) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flags.String("config", "", "Path to YAML config file")
	platform := flags.String("platform", "", "Snapshot platform name")
	shards := flags.Int("shards", -1, "Configured shard count")
	diffMarker := flags.String("diff-marker", "", "Directory name marking failure-diff output")
	runnerCmd := flags.String("runner-cmd", "", "Shell command invoking the test runner per shard")
	baselineCmd := flags.String("baseline-cmd", "", "Shell command regenerating baseline snapshots on cache miss")
	workdir := flags.String("workdir", "", "Working directory for runner execution")
	outputDir := flags.String("output-dir", "", "Directory shards write output bundles to")
	baselineDir := flags.String("baseline-dir", "", "Directory the baseline command writes to")
	cacheBucket := flags.String("cache-bucket", "", "S3 bucket for the snapshot cache")
	cachePrefix := flags.String("cache-prefix", "", "S3 key prefix for the snapshot cache")
	cacheRegion := flags.String("cache-region", "", "AWS region for the snapshot cache")
	artifactBucket := flags.String("artifact-bucket", "", "S3 bucket for diff-evidence artifacts")
	artifactPrefix := flags.String("artifact-prefix", "", "S3 key prefix for artifacts")
	artifactRegion := flags.String("artifact-region", "", "AWS region for artifacts")
	artifactName := flags.String("artifact-name", "", "Artifact name for the diff bundle")
	retentionDays := flags.Int("retention-days", -1, "Artifact retention in days")
	coverageEndpoint := flags.String("coverage-endpoint", "", "Coverage collection endpoint")
	githubRepo := flags.String("github-repo", os.Getenv("GITHUB_REPOSITORY"), "GitHub repository (owner/name) for status reporting")
	databaseURL := flags.String("database-url", os.Getenv("DATABASE_URL"), "Postgres DSN for run history (optional)")
	metricsListen := flags.String("metrics-listen", "", "Optional listen address for /metrics")
	_ = flags.Parse(args)

	cfg := fileConfig{}
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			return "", fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("parse config: %w", err)
		}
	}

	applyString(&cfg.Platform, *platform, "chrome")
	applyInt(&cfg.Shards, *shards, 4)
	applyString(&cfg.DiffMarker, *diffMarker, "")
	applyString(&cfg.RunnerCommand, *runnerCmd, "")
	applyString(&cfg.BaselineCommand, *baselineCmd, "")
	applyString(&cfg.Workdir, *workdir, ".")
	applyString(&cfg.OutputDir, *outputDir, ".snapshard/output")
	applyString(&cfg.BaselineDir, *baselineDir, ".snapshard/baseline")
	applyString(&cfg.Cache.Bucket, *cacheBucket, "")
	applyString(&cfg.Cache.Prefix, *cachePrefix, "snapshot-cache")
	applyString(&cfg.Cache.Region, *cacheRegion, "")
	applyString(&cfg.Artifacts.Bucket, *artifactBucket, "")
	applyString(&cfg.Artifacts.Prefix, *artifactPrefix, "artifacts")
	applyString(&cfg.Artifacts.Region, *artifactRegion, "")
	applyString(&cfg.Artifacts.Name, *artifactName, "")
	applyInt(&cfg.Artifacts.RetentionDays, *retentionDays, 0)
	applyString(&cfg.Coverage.Endpoint, *coverageEndpoint, "")
	applyString(&cfg.GitHub.Repo, *githubRepo, "")
	applyString(&cfg.DatabaseURL, *databaseURL, "")

	if cfg.RunnerCommand == "" {
		return "", errors.New("runner-cmd (or runner_command in the config file) is required")
	}

	logger := observability.NewLogger("coordinator")
	metrics := observability.NewMetrics(nil)
	ctx := context.Background()

	trig, err := trigger.FromEnviron(os.LookupEnv)
	if err != nil {
		return "", err
	}

	// Validate the shard count before wiring any external clients.
	if _, err := planner.Plan(cfg.Shards, trig.HasExecutionCredential); err != nil {
		return "", err
	}

	if *metricsListen != "" {
		go serveMetrics(*metricsListen, logger)
	}

	blobCache, err := buildCache(ctx, cfg)
	if err != nil {
		return "", err
	}

	shardRunner := &runner.ExecRunner{
		Command:   cfg.RunnerCommand,
		Workdir:   cfg.Workdir,
		OutputDir: cfg.OutputDir,
		Logger:    logger,
	}

	opts := []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(metrics),
	}

	if cfg.BaselineCommand != "" {
		opts = append(opts, coordinator.WithBaseliner(&runner.ExecBaseliner{
			Command:   cfg.BaselineCommand,
			Workdir:   cfg.Workdir,
			OutputDir: cfg.BaselineDir,
		}))
	}

	if cfg.Artifacts.Bucket != "" {
		publisher, err := artifacts.NewS3Publisher(ctx, artifacts.S3Config{
			Bucket: cfg.Artifacts.Bucket,
			Prefix: cfg.Artifacts.Prefix,
			Region: cfg.Artifacts.Region,
		})
		if err != nil {
			return "", fmt.Errorf("init artifact publisher: %w", err)
		}
		opts = append(opts, coordinator.WithArtifactPublisher(publisher))
	}

	if cfg.Coverage.Endpoint != "" {
		coverage := artifacts.NewCoveragePublisher(cfg.Coverage.Endpoint, os.Getenv("COVERAGE_TOKEN"))
		coverage.Flags = cfg.Coverage.Flags
		coverage.Name = cfg.Coverage.Name
		opts = append(opts, coordinator.WithCoverageUploader(coverage))
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" && cfg.GitHub.Repo != "" {
		owner, repo, ok := strings.Cut(cfg.GitHub.Repo, "/")
		if !ok {
			return "", fmt.Errorf("github repo must be owner/name, got %q", cfg.GitHub.Repo)
		}
		opts = append(opts, coordinator.WithNotifier(&github.StatusNotifier{
			Client:  github.NewClient(token),
			Owner:   owner,
			Repo:    repo,
			SHA:     trig.HeadCommit,
			Context: cfg.GitHub.Context,
			Logger:  logger,
		}))
	}

	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return "", err
		}
		defer db.Close()

		store := state.NewStore(db)
		if err := store.ApplyMigrations(ctx); err != nil {
			return "", err
		}
		opts = append(opts, coordinator.WithRecorder(store))
	}

	c := coordinator.New(coordinator.Config{
		Platform:      cfg.Platform,
		TotalShards:   cfg.Shards,
		DiffMarker:    cfg.DiffMarker,
		ArtifactName:  cfg.Artifacts.Name,
		RetentionDays: cfg.Artifacts.RetentionDays,
	}, trig, blobCache, shardRunner, opts...)

	agg, err := c.Execute(ctx)
	if err != nil {
		return "", err
	}
	return agg.OverallStatus, nil
}

func buildCache(ctx context.Context, cfg fileConfig) (cache.BlobCache, error) {
	if cfg.Cache.Bucket == "" {
		// Local dry runs work against an in-memory cache: every run starts
		// from a miss and nothing is persisted across processes.
		return cache.NewMemoryBlobCache(), nil
	}
	return cache.NewS3BlobCache(ctx, cache.S3Config{
		Bucket: cfg.Cache.Bucket,
		Prefix: cfg.Cache.Prefix,
		Region: cfg.Cache.Region,
	})
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func serveMetrics(listen string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Warn("metrics listener stopped", "event", "metrics_listener_stopped", "error", err)
	}
}

// applyString sets target to the flag value when given, otherwise keeps the
// file value, otherwise falls back to the default.
func applyString(target *string, flagValue, fallback string) {
	if flagValue != "" {
		*target = flagValue
		return
	}
	if *target == "" {
		*target = fallback
	}
}

// applyInt mirrors applyString for integer flags. Int flags default to -1 so
// an explicit zero on the command line is distinguishable from unset and
// reaches validation instead of being replaced by the fallback.
func applyInt(target *int, flagValue, fallback int) {
	if flagValue >= 0 {
		*target = flagValue
		return
	}
	if *target == 0 {
		*target = fallback
	}
}
