// Package trigger normalizes CI-provided trigger inputs into an immutable
// context value. No other package reads the process environment directly.
package trigger

import (
	"fmt"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// EventClass classifies the trigger that started the run.
type EventClass string

const (
	EventPush        EventClass = "push"
	EventPullRequest EventClass = "pull_request"
	EventMergeQueue  EventClass = "merge_queue"
)

// Environment variable names supplied by the host platform.
const (
	EnvEventName           = "GITHUB_EVENT_NAME"
	EnvHeadCommit          = "GITHUB_SHA"
	EnvBaseCommit          = "GITHUB_BASE_SHA"
	EnvExecutionCredential = "SNAPSHARD_TOKEN"
)

// Context captures the trigger inputs for one run. It is computed once at
// startup and passed into every component; it never changes afterwards.
type Context struct {
	Event                  EventClass
	HeadCommit             string
	BaseCommit             string
	HasExecutionCredential bool
}

// FromEnviron builds a Context from a lookup function, typically
// os.LookupEnv. Forked or untrusted runs lack the execution credential and
// are planned in degraded single-shard mode downstream.
func FromEnviron(lookup func(string) (string, bool)) (Context, error) {
	eventName, _ := lookup(EnvEventName)
	event, err := classifyEvent(eventName)
	if err != nil {
		return Context{}, err
	}

	head, ok := lookup(EnvHeadCommit)
	if !ok || head == "" {
		return Context{}, fmt.Errorf("trigger: %s is required", EnvHeadCommit)
	}

	base, _ := lookup(EnvBaseCommit)
	credential, _ := lookup(EnvExecutionCredential)

	return Context{
		Event:                  event,
		HeadCommit:             head,
		BaseCommit:             base,
		HasExecutionCredential: credential != "",
	}, nil
}

// RestoreKey derives the cache key used to restore the baseline at the start
// of the run. It prefers the pre-run commit (a pull request's base, a push's
// before-commit) so the restore key stays distinct from PersistKey; only when
// the platform supplies no base commit does it fall back to the head commit.
func (c Context) RestoreKey(platform string) bundle.CacheKey {
	commit := c.BaseCommit
	if commit == "" {
		commit = c.HeadCommit
	}
	return bundle.NewCacheKey(platform, commit)
}

// PersistKey derives the key a successful push persists the merged bundle
// under. It always derives from the head commit, which becomes the baseline
// for subsequent runs.
func (c Context) PersistKey(platform string) bundle.CacheKey {
	return bundle.NewCacheKey(platform, c.HeadCommit)
}

func classifyEvent(name string) (EventClass, error) {
	switch name {
	case "push":
		return EventPush, nil
	case "pull_request", "pull_request_target":
		return EventPullRequest, nil
	case "merge_group":
		return EventMergeQueue, nil
	case "":
		return "", fmt.Errorf("trigger: %s is required", EnvEventName)
	default:
		return "", fmt.Errorf("trigger: unsupported event %q", name)
	}
}
