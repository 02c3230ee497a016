package coordinator

import (
	"context"
	"log/slog"

	"github.com/izavyalov-dev/snapshard/internal/observability"
)

// Notifier reports a failed run and where its diff evidence was published.
// Implementations are best-effort and must never return an error or panic;
// notification failure cannot mask the shard-derived run status.
type Notifier interface {
	NotifyFailure(ctx context.Context, result AggregateResult, artifactURL string)
}

// LogNotifier emits a single structured error-level message. It is the
// default when no external notifier is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyFailure(ctx context.Context, result AggregateResult, artifactURL string) {
	logger := n.Logger
	if logger == nil {
		logger = observability.NewLogger("coordinator.notify")
	}
	logger.Error("visual regression detected",
		"event", "run_failed",
		"diff_count", result.Diffs.Len(),
		"artifact_url", artifactURL)
}
