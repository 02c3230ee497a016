package github

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/izavyalov-dev/snapshard/bundle"
	"github.com/izavyalov-dev/snapshard/coordinator"
)

func TestStatusNotifierPostsFailure(t *testing.T) {
	var gotPath string
	var gotPayload CommitStatusRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient("token")
	client.BaseURL = server.URL

	diffs := bundle.New()
	diffs.Add("shard-1/__diff_output__/a.png", []byte("d"))
	diffs.Add("shard-1/__diff_output__/b.png", []byte("d"))

	notifier := &StatusNotifier{
		Client: client,
		Owner:  "izavyalov-dev",
		Repo:   "snapshard",
		SHA:    "abc123",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	notifier.NotifyFailure(context.Background(), coordinator.AggregateResult{
		OverallStatus: coordinator.StatusFailure,
		Merged:        diffs,
		Diffs:         diffs,
	}, "s3://artifacts/snapshot-diffs")

	if gotPath != "/repos/izavyalov-dev/snapshard/statuses/abc123" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotPayload.State != "failure" {
		t.Fatalf("unexpected state: %s", gotPayload.State)
	}
	if gotPayload.TargetURL != "s3://artifacts/snapshot-diffs" {
		t.Fatalf("unexpected target url: %s", gotPayload.TargetURL)
	}
	if gotPayload.Context != "snapshard" {
		t.Fatalf("unexpected context: %s", gotPayload.Context)
	}
}

func TestStatusNotifierUnconfiguredIsNoop(t *testing.T) {
	notifier := &StatusNotifier{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	// Must not panic or make any call.
	notifier.NotifyFailure(context.Background(), coordinator.AggregateResult{
		Merged: bundle.New(),
		Diffs:  bundle.New(),
	}, "")
}

func TestCreateCommitStatusAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad")
	client.BaseURL = server.URL

	err := client.CreateCommitStatus(context.Background(), "o", "r", "sha", CommitStatusRequest{State: "failure"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
}
