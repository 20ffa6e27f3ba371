// Package docker runs actors as local containers built straight from their git
// source reference.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
)

// InputEnv is the variable carrying the run input into the container.
const InputEnv = "ACTOR_INPUT"

// Options configures the docker backend.
type Options struct {
	// TasksDir holds <task id>.json task definitions.
	TasksDir string
	// RunTimeout bounds a single run; zero means no bound.
	RunTimeout time.Duration
	// ImagePrefix is prepended to actor names to form image tags.
	ImagePrefix string
}

// Platform builds and runs actors with the docker CLI.
type Platform struct {
	opts     Options
	datasets *platform.Datasets

	mu     sync.Mutex
	actors map[string]models.ActorSpec
}

var _ platform.Platform = (*Platform)(nil)

// New creates a docker backend.
func New(opts Options) *Platform {
	if opts.ImagePrefix == "" {
		opts.ImagePrefix = "actorgen/"
	}
	return &Platform{
		opts:     opts,
		datasets: platform.NewDatasets(),
		actors:   make(map[string]models.ActorSpec),
	}
}

// Name returns the platform name.
func (p *Platform) Name() string {
	return "docker"
}

func (p *Platform) GetTask(ctx context.Context, taskID string) (models.TaskInfo, error) {
	return platform.LoadLocalTask(p.opts.TasksDir, taskID)
}

// CreateActor records the actor; the image is produced by BuildActor.
func (p *Platform) CreateActor(ctx context.Context, spec models.ActorSpec) (models.ActorHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actors[spec.Name] = spec
	return models.ActorHandle{ID: spec.Name, OwnerID: platform.LocalOwner, Name: spec.Name}, nil
}

func (p *Platform) actor(id string) (models.ActorSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec, ok := p.actors[id]
	if !ok {
		return models.ActorSpec{}, fmt.Errorf("unknown actor %s", id)
	}
	return spec, nil
}

// ImageTag is the local image of an actor version.
func (p *Platform) ImageTag(spec models.ActorSpec) string {
	tag := spec.BuildTag
	if tag == "" {
		tag = "latest"
	}
	return p.opts.ImagePrefix + spec.Name + ":" + tag
}

// BuildActor runs docker build against the git source reference, which docker
// accepts as a remote build context.
func (p *Platform) BuildActor(ctx context.Context, actorID, version string, wait time.Duration) (models.BuildResult, error) {
	spec, err := p.actor(actorID)
	if err != nil {
		return models.BuildResult{}, err
	}

	buildID := uuid.NewString()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	args := []string{"build", "-t", p.ImageTag(spec), "--label", "actorgen.version=" + version, spec.Source.String()}
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("building docker image", "actor", actorID, "source", spec.Source.String())
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.BuildResult{ID: buildID, Status: platform.StatusRunning, TimedOut: true}, nil
		}
		return models.BuildResult{ID: buildID, Status: platform.StatusFailed},
			fmt.Errorf("building docker image: %w: %s", err, lastLine(stderr.String()))
	}

	return models.BuildResult{ID: buildID, Status: platform.StatusSucceeded}, nil
}

// RunActor runs the image once with the input in ACTOR_INPUT and counts the
// JSON items printed on stdout into a new dataset.
func (p *Platform) RunActor(ctx context.Context, actorID string, input map[string]any) (models.RunResult, error) {
	spec, err := p.actor(actorID)
	if err != nil {
		return models.RunResult{}, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return models.RunResult{}, fmt.Errorf("encoding input: %w", err)
	}

	runID := uuid.NewString()
	run := models.RunResult{ID: runID, DatasetID: runID}

	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	args := []string{"run", "--rm", "--name", "actorgen-" + runID, "-e", InputEnv + "=" + string(payload)}
	if spec.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", spec.MemoryMB))
	}
	args = append(args, p.ImageTag(spec))

	cmd := exec.CommandContext(ctx, "docker", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return run, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return run, err
	}

	if err := cmd.Start(); err != nil {
		return run, fmt.Errorf("starting container: %w", err)
	}

	var count int
	var errOut bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		n, err := platform.CountItems(stdout)
		count = n
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errOut, stderr)
		return err
	})
	streamErr := g.Wait()
	waitErr := cmd.Wait()

	p.datasets.Put(runID, count)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		run.Status = platform.StatusTimedOut
	case waitErr != nil:
		slog.Warn("container exited with error", "run_id", runID, "error", waitErr, "stderr", lastLine(errOut.String()))
		run.Status = platform.StatusFailed
	case streamErr != nil:
		return run, fmt.Errorf("reading container output: %w", streamErr)
	default:
		run.Status = platform.StatusSucceeded
	}

	return run, nil
}

func (p *Platform) DatasetItemCount(ctx context.Context, datasetID string) (int, error) {
	return p.datasets.Count(datasetID)
}

func (p *Platform) UpdateActor(ctx context.Context, actorID string, update models.ActorUpdate) error {
	return fmt.Errorf("docker: update actor: %w", platform.ErrUnsupported)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
