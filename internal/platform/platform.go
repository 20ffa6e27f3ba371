// Package platform defines the remote execution platform that hosts actors, and
// helpers shared by its backends.
package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spachava753/actorgen/internal/models"
)

var (
	// ErrUnsupported is returned by backends that lack an operation.
	ErrUnsupported = errors.New("operation not supported by platform")
	// ErrNoTaskID is returned when a task URL carries no task identifier.
	ErrNoTaskID = errors.New("no task id in url")
	// ErrNoActorID is returned when an actor URL carries no actor identifier.
	ErrNoActorID = errors.New("no actor id in url")
)

// Terminal statuses shared by builds and runs.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED-OUT"
)

// IsTerminal reports whether status is final.
func IsTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// Platform is a client bound to one credential.
type Platform interface {
	// Name returns the backend name (e.g., "apify", "docker", "modal").
	Name() string

	// GetTask fetches the saved task a record points at.
	GetTask(ctx context.Context, taskID string) (models.TaskInfo, error)

	// CreateActor registers a new actor built from spec.Source.
	CreateActor(ctx context.Context, spec models.ActorSpec) (models.ActorHandle, error)

	// BuildActor builds version of the actor, waiting at most wait. A build still
	// in progress when the wait ends is reported with TimedOut set, not as an error.
	BuildActor(ctx context.Context, actorID, version string, wait time.Duration) (models.BuildResult, error)

	// RunActor starts a run with input and blocks until it reaches a terminal state.
	RunActor(ctx context.Context, actorID string, input map[string]any) (models.RunResult, error)

	// DatasetItemCount returns the cleaned item count of a dataset.
	DatasetItemCount(ctx context.Context, datasetID string) (int, error)

	// UpdateActor changes actor metadata.
	UpdateActor(ctx context.Context, actorID string, update models.ActorUpdate) error
}

// Factory builds a Platform client for a credential.
type Factory func(token string) (Platform, error)

var taskIDPattern = regexp.MustCompile(`tasks/(\w+)`)

// ParseTaskID extracts the task identifier from a console task URL such as
// https://console.apify.com/actors/tasks/<id>#/console.
func ParseTaskID(taskURL string) (string, error) {
	m := taskIDPattern.FindStringSubmatch(taskURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrNoTaskID, taskURL)
	}
	return m[1], nil
}

// ParseActorID returns the path segment after "actors/" in an actor URL.
func ParseActorID(actorURL string) (string, error) {
	_, rest, ok := strings.Cut(actorURL, "actors/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoActorID, actorURL)
	}
	if i := strings.IndexAny(rest, "/#?"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", fmt.Errorf("%w: %q", ErrNoActorID, actorURL)
	}
	return rest, nil
}

// ConsoleURL is the admin console link to an actor.
func ConsoleURL(host, ownerID, actorID string) string {
	return fmt.Sprintf("%s/admin/users/%s/actors/%s", strings.TrimSuffix(host, "/"), ownerID, actorID)
}
