// Package modal runs actors in Modal sandboxes.
package modal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modal-labs/libmodal/modal-go"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
)

// InputEnv is the variable carrying the run input into the sandbox.
const InputEnv = "ACTOR_INPUT"

// SourceDir is where the actor repository is cloned inside the image.
const SourceDir = "/opt/actor-src"

// ProviderConfig holds Modal-specific configuration.
type ProviderConfig struct {
	// AppName is the name of the Modal app to use.
	AppName string
	// Regions specifies the Modal regions (e.g., "us-east", "us-west").
	Regions []string
	// Verbose enables detailed sandbox logging.
	Verbose bool
	// CPU is the number of cores of a run sandbox.
	CPU float64
	// SetupCommands are Dockerfile commands run after the clone, in the actor directory.
	SetupCommands []string
	// Command starts the actor.
	Command []string
}

// ParseProviderConfig extracts Modal-specific config from the generic config map.
func ParseProviderConfig(config map[string]any) ProviderConfig {
	pc := ProviderConfig{
		AppName:       "actorgen",
		CPU:           1,
		SetupCommands: []string{"RUN npm install --omit=dev --no-audit"},
		Command:       []string{"npm", "start", "--silent"},
	}
	if config == nil {
		return pc
	}
	if v, ok := config["app_name"].(string); ok && v != "" {
		pc.AppName = v
	}
	if v, ok := config["region"].(string); ok {
		pc.Regions = []string{v}
	}
	if v, ok := config["regions"].([]any); ok {
		pc.Regions = stringList(v)
	}
	if v, ok := config["verbose"].(bool); ok {
		pc.Verbose = v
	}
	switch v := config["cpu"].(type) {
	case int:
		pc.CPU = float64(v)
	case float64:
		pc.CPU = v
	}
	if v, ok := config["setup_commands"].([]any); ok {
		pc.SetupCommands = stringList(v)
	}
	if v, ok := config["command"].([]any); ok && len(v) > 0 {
		pc.Command = stringList(v)
	}
	return pc
}

func stringList(values []any) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Options configures the Modal backend.
type Options struct {
	Config   ProviderConfig
	TasksDir string
	// RunTimeout bounds a single run; zero uses the sandbox maximum.
	RunTimeout time.Duration
}

// Platform implements the platform on Modal. Images are built from the actor's
// git source; each run gets a fresh sandbox.
type Platform struct {
	client   *modal.Client
	opts     Options
	datasets *platform.Datasets

	mu     sync.Mutex
	app    *modal.App
	actors map[string]models.ActorSpec
	images map[string]*modal.Image
}

var _ platform.Platform = (*Platform)(nil)

// MinImageBuilderVersion is the minimum required Modal image builder version.
// WORKDIR and other Dockerfile instructions require version 2025.06 or later.
const MinImageBuilderVersion = "2025.06"

// New creates a Modal backend. Credentials come from the Modal profile or
// MODAL_TOKEN_ID / MODAL_TOKEN_SECRET.
func New(opts Options) (*Platform, error) {
	if err := checkImageBuilderVersion(); err != nil {
		return nil, err
	}

	slog.Debug("initializing modal client")
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}
	return &Platform{
		client:   client,
		opts:     opts,
		datasets: platform.NewDatasets(),
		actors:   make(map[string]models.ActorSpec),
		images:   make(map[string]*modal.Image),
	}, nil
}

// ConfigReader reads Modal configuration.
type ConfigReader interface {
	ReadConfig() ([]byte, error)
}

// cliConfigReader reads config by executing the modal CLI.
type cliConfigReader struct{}

func (c *cliConfigReader) ReadConfig() ([]byte, error) {
	modalPath, err := exec.LookPath("modal")
	if err != nil {
		return nil, fmt.Errorf("modal CLI not found: %w", err)
	}
	cmd := exec.Command(modalPath, "config", "show")
	return cmd.Output()
}

var defaultConfigReader ConfigReader = &cliConfigReader{}

func checkImageBuilderVersion() error {
	return checkImageBuilderVersionWith(defaultConfigReader)
}

// checkImageBuilderVersionWith verifies the version using the provided ConfigReader.
func checkImageBuilderVersionWith(reader ConfigReader) error {
	output, err := reader.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to get modal config: %w", err)
	}

	var config struct {
		ImageBuilderVersion *string `json:"image_builder_version"`
	}
	if err := json.Unmarshal(output, &config); err != nil {
		return fmt.Errorf("failed to parse modal config: %w", err)
	}

	if config.ImageBuilderVersion == nil || *config.ImageBuilderVersion == "" {
		return fmt.Errorf("modal image_builder_version is not set; "+
			"WORKDIR support requires version %s or later. "+
			"Run: modal config set image_builder_version %s",
			MinImageBuilderVersion, MinImageBuilderVersion)
	}

	if *config.ImageBuilderVersion < MinImageBuilderVersion {
		return fmt.Errorf("modal image_builder_version %q is too old; "+
			"WORKDIR support requires version %s or later. "+
			"Run: modal config set image_builder_version %s",
			*config.ImageBuilderVersion, MinImageBuilderVersion, MinImageBuilderVersion)
	}

	slog.Debug("modal image builder version check passed", "version", *config.ImageBuilderVersion)
	return nil
}

// Name returns the platform name.
func (p *Platform) Name() string {
	return "modal"
}

func (p *Platform) GetTask(ctx context.Context, taskID string) (models.TaskInfo, error) {
	return platform.LoadLocalTask(p.opts.TasksDir, taskID)
}

func (p *Platform) CreateActor(ctx context.Context, spec models.ActorSpec) (models.ActorHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actors[spec.Name] = spec
	delete(p.images, spec.Name)
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

func (p *Platform) getApp(ctx context.Context) (*modal.App, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.app != nil {
		return p.app, nil
	}

	slog.Debug("creating modal app", "name", p.opts.Config.AppName)
	app, err := p.client.Apps.FromName(ctx, p.opts.Config.AppName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal app: %w", err)
	}
	p.app = app
	return app, nil
}

// BuildCommands are the Dockerfile commands layered on the base image: clone
// the source reference and prepare the actor directory.
func BuildCommands(src models.SourceReference, setup []string) []string {
	clone := fmt.Sprintf("RUN git clone --depth 1 %s %s", src.RepoURL, SourceDir)
	if src.Branch != "" {
		clone = fmt.Sprintf("RUN git clone --depth 1 --branch %s %s %s", src.Branch, src.RepoURL, SourceDir)
	}
	cmds := []string{clone, "WORKDIR " + ActorDir(src)}
	return append(cmds, setup...)
}

// ActorDir is the actor's directory inside the image.
func ActorDir(src models.SourceReference) string {
	return path.Join(SourceDir, src.Subpath, src.Slug)
}

// BuildActor builds the actor image. A build that outlasts wait keeps running
// on Modal and is picked up from the layer cache by the next run.
func (p *Platform) BuildActor(ctx context.Context, actorID, version string, wait time.Duration) (models.BuildResult, error) {
	spec, err := p.actor(actorID)
	if err != nil {
		return models.BuildResult{}, err
	}

	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	buildID := uuid.NewString()
	if _, err := p.buildImage(ctx, spec); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.BuildResult{ID: buildID, Status: platform.StatusRunning, TimedOut: true}, nil
		}
		return models.BuildResult{ID: buildID, Status: platform.StatusFailed}, err
	}
	return models.BuildResult{ID: buildID, Status: platform.StatusSucceeded}, nil
}

func (p *Platform) buildImage(ctx context.Context, spec models.ActorSpec) (*modal.Image, error) {
	p.mu.Lock()
	img, ok := p.images[spec.Name]
	p.mu.Unlock()
	if ok {
		return img, nil
	}

	app, err := p.getApp(ctx)
	if err != nil {
		return nil, err
	}

	cmds := BuildCommands(spec.Source, p.opts.Config.SetupCommands)
	slog.Debug("building modal image", "actor", spec.Name, "base_image", spec.Image, "commands", len(cmds))

	image := p.client.Images.FromRegistry(spec.Image, nil).DockerfileCommands(cmds, nil)
	built, err := image.Build(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("building image: %w", err)
	}

	p.mu.Lock()
	p.images[spec.Name] = built
	p.mu.Unlock()
	return built, nil
}

// RunActor executes the actor once in a new sandbox and counts the JSON items it
// prints on stdout.
func (p *Platform) RunActor(ctx context.Context, actorID string, input map[string]any) (models.RunResult, error) {
	spec, err := p.actor(actorID)
	if err != nil {
		return models.RunResult{}, err
	}

	image, err := p.buildImage(ctx, spec)
	if err != nil {
		return models.RunResult{}, err
	}
	app, err := p.getApp(ctx)
	if err != nil {
		return models.RunResult{}, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return models.RunResult{}, fmt.Errorf("encoding input: %w", err)
	}

	timeout := p.opts.RunTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour // Maximum allowed
	}
	memoryMiB := spec.MemoryMB
	if memoryMiB <= 0 {
		memoryMiB = 2048
	}

	createParams := &modal.SandboxCreateParams{
		CPU:       p.opts.Config.CPU,
		MemoryMiB: memoryMiB,
		Env:       map[string]string{InputEnv: string(payload)},
		Timeout:   timeout,
		Verbose:   p.opts.Config.Verbose,
		Regions:   p.opts.Config.Regions,
	}

	slog.Debug("creating modal sandbox",
		"actor", actorID,
		"cpus", createParams.CPU,
		"memory_mib", memoryMiB,
		"regions", p.opts.Config.Regions)

	sandbox, err := p.client.Sandboxes.Create(ctx, app, image, createParams)
	if err != nil {
		return models.RunResult{}, fmt.Errorf("creating modal sandbox: %w", err)
	}
	defer func() {
		if err := sandbox.Terminate(context.Background()); err != nil {
			slog.Warn("failed to terminate sandbox", "sandbox_id", sandbox.SandboxID, "error", err)
		}
	}()

	run := models.RunResult{ID: sandbox.SandboxID, DatasetID: sandbox.SandboxID}

	process, err := sandbox.Exec(ctx, p.opts.Config.Command, &modal.SandboxExecParams{
		Env:     map[string]string{InputEnv: string(payload)},
		Timeout: timeout,
		Workdir: ActorDir(spec.Source),
	})
	if err != nil {
		return run, fmt.Errorf("executing actor: %w", err)
	}

	var count int
	var stderr strings.Builder
	var g errgroup.Group
	g.Go(func() error {
		n, err := platform.CountItems(process.Stdout)
		count = n
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, process.Stderr)
		return err
	})
	streamErr := g.Wait()

	exitCode, err := process.Wait(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			run.Status = platform.StatusTimedOut
			p.datasets.Put(run.DatasetID, count)
			return run, nil
		}
		return run, fmt.Errorf("waiting for process: %w", err)
	}
	if streamErr != nil {
		return run, fmt.Errorf("reading sandbox output: %w", streamErr)
	}

	p.datasets.Put(run.DatasetID, count)

	run.Status = platform.StatusSucceeded
	if exitCode != 0 {
		slog.Warn("actor exited with non-zero code",
			"sandbox_id", sandbox.SandboxID,
			"exit_code", exitCode,
			"stderr", tail(stderr.String(), 500))
		run.Status = platform.StatusFailed
	}
	return run, nil
}

func (p *Platform) DatasetItemCount(ctx context.Context, datasetID string) (int, error) {
	return p.datasets.Count(datasetID)
}

func (p *Platform) UpdateActor(ctx context.Context, actorID string, update models.ActorUpdate) error {
	return fmt.Errorf("modal: update actor: %w", platform.ErrUnsupported)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
