package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/izavyalov-dev/snapshard/coordinator"
	"github.com/izavyalov-dev/snapshard/internal/observability"
)

// StatusNotifier publishes a failing commit status pointing at the uploaded
// diff evidence. It satisfies coordinator.Notifier and never propagates an
// error: status reporting is a best-effort closing step.
type StatusNotifier struct {
	Client  *Client
	Owner   string
	Repo    string
	SHA     string
	Context string
	Logger  *slog.Logger
}

func (n *StatusNotifier) NotifyFailure(ctx context.Context, result coordinator.AggregateResult, artifactURL string) {
	logger := n.Logger
	if logger == nil {
		logger = observability.NewLogger("status.github")
	}
	if n.Client == nil || n.Owner == "" || n.Repo == "" || n.SHA == "" {
		logger.Warn("github status notifier not fully configured", "event", "github_status_skipped")
		return
	}

	statusContext := n.Context
	if statusContext == "" {
		statusContext = "snapshard"
	}

	payload := CommitStatusRequest{
		State:       "failure",
		TargetURL:   artifactURL,
		Description: fmt.Sprintf("%d visual diff(s) detected", result.Diffs.Len()),
		Context:     statusContext,
	}
	if err := n.Client.CreateCommitStatus(ctx, n.Owner, n.Repo, n.SHA, payload); err != nil {
		logger.Warn("github status post failed", "event", "github_status_failed", "sha", n.SHA, "error", err)
		return
	}
	logger.Info("github status posted", "event", "github_status_posted", "sha", n.SHA, "diff_count", result.Diffs.Len())
}
