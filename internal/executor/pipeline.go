package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spachava753/actorgen/internal/identity"
	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
	"github.com/spachava753/actorgen/internal/publish"
	"github.com/spachava753/actorgen/internal/template"
	"github.com/spachava753/actorgen/internal/util"
)

// Pipeline takes one task record from template to counted results.
type Pipeline struct {
	materializer *template.Materializer
	publisher    *publish.Publisher
	actor        models.ActorConfig
	actorDir     string
	consoleURL   string
}

// NewPipeline creates a provisioning pipeline.
func NewPipeline(m *template.Materializer, pub *publish.Publisher, cfg models.JobConfig) *Pipeline {
	return &Pipeline{
		materializer: m,
		publisher:    pub,
		actor:        cfg.Actor,
		actorDir:     cfg.ActorDir,
		consoleURL:   cfg.Platform.ConsoleURL,
	}
}

// Process runs every phase for rec. Failures are recorded on the result, which
// is always returned.
func (p *Pipeline) Process(ctx context.Context, rec models.TaskRecord, plat platform.Platform) *models.TaskResult {
	result := &models.TaskResult{
		Row:       rec.Row,
		Name:      rec.Name,
		TaskURL:   rec.TaskURL,
		StartedAt: time.Now(),
	}

	defer func() {
		result.EndedAt = time.Now()
		result.Durations.TotalSec = result.EndedAt.Sub(result.StartedAt).Seconds()
	}()

	// Phase 1: Resolve task
	var info models.TaskInfo
	var startURLs any
	err := timed(&result.Durations.ResolveSec, func() error {
		var err error
		info, startURLs, err = p.Resolve(ctx, rec, plat)
		return err
	})
	if err != nil {
		return fail(result, err)
	}

	// Phase 2: Materialize template
	ident := identity.New(rec.Name, p.actor.TitleSuffix)
	result.Identity = &ident
	err = timed(&result.Durations.MaterializeSec, func() error {
		slug, err := p.materializer.Materialize(ctx, template.Params{
			Input:     info.Input,
			Title:     ident.Title,
			SiteName:  rec.Name,
			SiteURL:   rec.SiteURL,
			StartURLs: startURLs,
		})
		if errors.Is(err, template.ErrInvalidSlug) {
			return models.NewStageError(models.StageMaterialize, models.ErrParse, err)
		}
		if err != nil {
			return models.NewStageError(models.StageMaterialize, models.ErrFileSystem, err)
		}
		ident.Slug = slug
		return nil
	})
	if err != nil {
		return fail(result, err)
	}

	// Phase 3: Publish
	var src models.SourceReference
	err = timed(&result.Durations.PublishSec, func() error {
		var err error
		src, err = p.publisher.Publish(ctx, ident.Title, filepath.Join(p.actorDir, ident.Slug))
		return err
	})
	if err != nil {
		return fail(result, err)
	}
	result.Source = src.String()

	// Phase 4: Create and build
	var handle models.ActorHandle
	err = timed(&result.Durations.ProvisionSec, func() error {
		var build models.BuildResult
		var err error
		handle, build, err = p.Provision(ctx, plat, ident, src)
		if handle.ID != "" {
			result.ActorID = handle.ID
		}
		if build.ID != "" {
			result.Build = &build
		}
		return err
	})
	if err != nil {
		return fail(result, err)
	}

	// Phase 5: Run and collect
	err = timed(&result.Durations.RunSec, func() error {
		outcome, err := p.Execute(ctx, plat, handle.ID, info.OwnerID, startURLs)
		if err != nil {
			return err
		}
		result.Outcome = &outcome
		return nil
	})
	if err != nil {
		return fail(result, err)
	}

	return result
}

// Resolve fetches the task a record points at and its start URLs.
func (p *Pipeline) Resolve(ctx context.Context, rec models.TaskRecord, plat platform.Platform) (models.TaskInfo, any, error) {
	taskID, err := platform.ParseTaskID(rec.TaskURL)
	if err != nil {
		return models.TaskInfo{}, nil, models.NewStageError(models.StageResolve, models.ErrParse, err)
	}

	info, err := plat.GetTask(ctx, taskID)
	if err != nil {
		return models.TaskInfo{}, nil, remoteError(models.StageResolve, err)
	}
	if info.ID == "" {
		info.ID = taskID
	}

	startURLs, err := info.StartURLs()
	if err != nil {
		return info, nil, models.NewStageError(models.StageResolve, models.ErrParse, err)
	}

	slog.Debug("resolved task", "task_id", taskID, "owner", info.OwnerID)
	return info, startURLs, nil
}

// Provision creates the actor from src and builds it with a bounded wait. A
// build still running when the wait ends is not an error.
func (p *Pipeline) Provision(ctx context.Context, plat platform.Platform, ident models.ActorIdentity, src models.SourceReference) (models.ActorHandle, models.BuildResult, error) {
	spec := models.ActorSpec{
		Name:        ident.Slug,
		Title:       ident.Title,
		IsPublic:    p.actor.Public,
		Categories:  p.actor.Categories,
		PictureURL:  p.actor.PictureURL,
		Version:     p.actor.Version,
		BuildTag:    p.actor.BuildTag,
		Image:       p.actor.Image,
		Source:      src,
		TimeoutSecs: p.actor.TimeoutSecs,
		MemoryMB:    p.actor.MemoryMB,
	}

	slog.Info("creating actor", "name", spec.Name, "source", src.String())
	handle, err := plat.CreateActor(ctx, spec)
	if err != nil {
		return models.ActorHandle{}, models.BuildResult{}, remoteError(models.StageCreate, err)
	}

	slog.Info("building actor", "actor_id", handle.ID, "version", spec.Version)
	build, err := plat.BuildActor(ctx, handle.ID, spec.Version, util.Seconds(p.actor.BuildWaitSec))
	if err != nil {
		return handle, build, remoteError(models.StageBuild, err)
	}

	switch {
	case build.TimedOut:
		slog.Warn("build did not finish within wait, continuing", "actor_id", handle.ID, "build_id", build.ID, "status", build.Status)
	case build.Status == platform.StatusFailed || build.Status == platform.StatusAborted:
		return handle, build, models.NewStageError(models.StageBuild, models.ErrRemoteAPI,
			fmt.Errorf("build %s ended with status %s", build.ID, build.Status))
	}

	return handle, build, nil
}

// Execute runs the actor synchronously and reads back its cleaned item count.
func (p *Pipeline) Execute(ctx context.Context, plat platform.Platform, actorID, ownerID string, startURLs any) (models.RunOutcome, error) {
	input := map[string]any{
		"startUrls":           startURLs,
		"maxArticlesPerCrawl": p.actor.MaxItems,
	}

	slog.Info("running actor", "actor_id", actorID)
	run, err := plat.RunActor(ctx, actorID, input)
	if err != nil {
		return models.RunOutcome{}, remoteError(models.StageRun, err)
	}
	if run.Status != platform.StatusSucceeded {
		slog.Warn("run did not succeed", "actor_id", actorID, "run_id", run.ID, "status", run.Status)
	}

	count, err := plat.DatasetItemCount(ctx, run.DatasetID)
	if err != nil {
		return models.RunOutcome{}, remoteError(models.StageCollect, err)
	}

	slog.Info("run finished", "actor_id", actorID, "results", count)
	return models.RunOutcome{
		ActorURL: platform.ConsoleURL(p.consoleURL, ownerID, actorID),
		Results:  count,
	}, nil
}

func timed(dst **float64, fn func() error) error {
	start := time.Now()
	err := fn()
	dur := time.Since(start).Seconds()
	*dst = &dur
	return err
}

func fail(result *models.TaskResult, err error) *models.TaskResult {
	te := &models.TaskError{
		Type:    models.ErrorTypeOf(err),
		Message: err.Error(),
	}
	var se *models.StageError
	if errors.As(err, &se) {
		te.Stage = se.Stage
	}
	result.Error = te
	return result
}

// remoteError tags a platform error, telling bounded-wait expiry apart.
func remoteError(stage models.Stage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewStageError(stage, models.ErrTimeoutExceeded, err)
	}
	return models.NewStageError(stage, models.ErrRemoteAPI, err)
}
