package trigger

import (
	"strings"
	"testing"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func TestFromEnvironPush(t *testing.T) {
	ctx, err := FromEnviron(envLookup(map[string]string{
		EnvEventName:           "push",
		EnvHeadCommit:          "abc123",
		EnvExecutionCredential: "secret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Event != EventPush {
		t.Fatalf("expected push event, got %s", ctx.Event)
	}
	if !ctx.HasExecutionCredential {
		t.Fatal("expected execution credential present")
	}
	if ctx.HeadCommit != "abc123" {
		t.Fatalf("unexpected head commit: %s", ctx.HeadCommit)
	}
}

func TestFromEnvironPullRequestWithoutCredential(t *testing.T) {
	ctx, err := FromEnviron(envLookup(map[string]string{
		EnvEventName:  "pull_request",
		EnvHeadCommit: "head1",
		EnvBaseCommit: "base1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Event != EventPullRequest {
		t.Fatalf("expected pull_request event, got %s", ctx.Event)
	}
	if ctx.HasExecutionCredential {
		t.Fatal("expected no execution credential")
	}
	if ctx.BaseCommit != "base1" {
		t.Fatalf("unexpected base commit: %s", ctx.BaseCommit)
	}
}

func TestFromEnvironMergeQueue(t *testing.T) {
	ctx, err := FromEnviron(envLookup(map[string]string{
		EnvEventName:  "merge_group",
		EnvHeadCommit: "merge1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Event != EventMergeQueue {
		t.Fatalf("expected merge_queue event, got %s", ctx.Event)
	}
}

func TestFromEnvironUnsupportedEvent(t *testing.T) {
	_, err := FromEnviron(envLookup(map[string]string{
		EnvEventName:  "workflow_dispatch",
		EnvHeadCommit: "abc",
	}))
	if err == nil || !strings.Contains(err.Error(), "unsupported event") {
		t.Fatalf("expected unsupported event error, got %v", err)
	}
}

func TestFromEnvironMissingHeadCommit(t *testing.T) {
	_, err := FromEnviron(envLookup(map[string]string{
		EnvEventName: "push",
	}))
	if err == nil {
		t.Fatal("expected error for missing head commit")
	}
}

func TestRestoreKeyPullRequestUsesBase(t *testing.T) {
	ctx := Context{Event: EventPullRequest, HeadCommit: "head1", BaseCommit: "base1"}
	key := ctx.RestoreKey("chrome")
	if key.String() != "chrome-snapshots-base1" {
		t.Fatalf("unexpected restore key: %s", key.String())
	}
}

func TestRestoreKeyPushUsesBeforeCommit(t *testing.T) {
	ctx := Context{Event: EventPush, HeadCommit: "head1", BaseCommit: "before1"}
	key := ctx.RestoreKey("chrome")
	if key.String() != "chrome-snapshots-before1" {
		t.Fatalf("unexpected restore key: %s", key.String())
	}
	if key.String() == ctx.PersistKey("chrome").String() {
		t.Fatal("restore key must differ from persist key")
	}
}

func TestRestoreKeyFallsBackToHeadWithoutBase(t *testing.T) {
	ctx := Context{Event: EventPush, HeadCommit: "head1"}
	key := ctx.RestoreKey("chrome")
	if key.String() != "chrome-snapshots-head1" {
		t.Fatalf("unexpected restore key: %s", key.String())
	}
}

func TestPersistKeyAlwaysHead(t *testing.T) {
	ctx := Context{Event: EventPullRequest, HeadCommit: "head1", BaseCommit: "base1"}
	key := ctx.PersistKey("chrome")
	if key.String() != "chrome-snapshots-head1" {
		t.Fatalf("unexpected persist key: %s", key.String())
	}
}
