package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/actorgen/internal/config"
	"github.com/spachava753/actorgen/internal/dataset"
	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
	"github.com/spachava753/actorgen/internal/platform/backends"
	"github.com/spachava753/actorgen/internal/publish"
	"github.com/spachava753/actorgen/internal/registry"
	"github.com/spachava753/actorgen/internal/template"
)

// RecordProcessor handles one task record with a platform client bound to the
// record's credential.
type RecordProcessor interface {
	Process(ctx context.Context, rec models.TaskRecord, plat platform.Platform) *models.TaskResult
}

// Orchestrator drives the task list one record at a time.
type Orchestrator struct {
	cfg       models.JobConfig
	factory   platform.Factory
	processor RecordProcessor
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg models.JobConfig, factory platform.Factory, processor RecordProcessor) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		factory:   factory,
		processor: processor,
	}
}

// Run processes every record of the task list in order.
func (o *Orchestrator) Run(ctx context.Context) (*models.BatchResult, error) {
	startTime := time.Now()

	loader := dataset.NewLoader(o.cfg.Mode == models.ModeUpdate)
	ds, err := loader.LoadFromPath(ctx, o.cfg.TasksPath)
	if err != nil {
		return nil, fmt.Errorf("loading task list: %w", err)
	}

	// Create run output directory
	jobName := time.Now().Format("2006-01-02__15-04-05")
	if o.cfg.Name != nil {
		jobName = *o.cfg.Name
	}
	jobDir := filepath.Join(o.cfg.OutputDir, jobName)

	if _, err := os.Stat(jobDir); err == nil {
		return nil, fmt.Errorf("run directory already exists: %s (will not overwrite existing results)", jobDir)
	}
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := writeJSON(filepath.Join(jobDir, "config.json"), o.cfg); err != nil {
		return nil, err
	}

	batch := &models.BatchResult{
		RunID:          uuid.NewString(),
		JobName:        jobName,
		Mode:           o.cfg.Mode,
		TotalRecords:   len(ds.Records),
		FullResults:    []string{},
		PartialResults: []models.RunOutcome{},
		Failed:         []models.TaskResult{},
		StartedAt:      startTime,
	}

	slog.Info("starting batch", "run_id", batch.RunID, "name", jobName, "mode", o.cfg.Mode, "records", len(ds.Records))

	runErr := o.process(ctx, ds.Records, jobDir, batch)

	batch.EndedAt = time.Now()
	batch.TotalDurationSec = batch.EndedAt.Sub(batch.StartedAt).Seconds()

	if err := writeJSON(filepath.Join(jobDir, "result.json"), batch); err != nil {
		slog.Error("failed to write batch result", "error", err)
	}

	return batch, runErr
}

func (o *Orchestrator) process(ctx context.Context, records []models.TaskRecord, jobDir string, batch *models.BatchResult) error {
	started := o.cfg.ResumeFrom == ""

	for i, rec := range records {
		if ctx.Err() != nil {
			batch.Cancelled = true
			batch.SkippedRecords += len(records) - i
			slog.Warn("batch cancelled", "remaining", len(records)-i)
			return nil
		}

		if !started {
			if rec.ActorURL != o.cfg.ResumeFrom && rec.TaskURL != o.cfg.ResumeFrom {
				batch.SkippedRecords++
				continue
			}
			slog.Info("resuming", "row", rec.Row)
			started = true
		}

		logger := slog.With("row", rec.Row, "name", rec.Name)
		logger.Info("processing record")

		result := o.processRecord(ctx, rec)
		batch.ProcessedRecords++

		recordDir := filepath.Join(jobDir, fmt.Sprintf("row-%d", rec.Row))
		if err := os.MkdirAll(recordDir, 0755); err != nil {
			logger.Error("failed to create record directory", "error", err)
		} else if err := writeJSON(filepath.Join(recordDir, "result.json"), result); err != nil {
			logger.Error("failed to write record result", "error", err)
		}

		if result.Error != nil {
			batch.FailedRecords++
			batch.Failed = append(batch.Failed, *result)
			logger.Error("record failed", "stage", result.Error.Stage, "type", result.Error.Type, "error", result.Error.Message)
			if !o.cfg.ContinueOnError {
				return fmt.Errorf("row %d (%s): %s", rec.Row, rec.Name, result.Error.Message)
			}
			continue
		}

		if result.Outcome != nil {
			Classify(batch, *result.Outcome, o.cfg.Actor.MaxItems)
			logger.Info("fully generated actor", "url", result.Outcome.ActorURL, "results", result.Outcome.Results)
		} else {
			logger.Info("record done", "actor_id", result.ActorID)
		}
	}

	if !started {
		slog.Warn("resume point never found", "resume_from", o.cfg.ResumeFrom)
	}
	return nil
}

func (o *Orchestrator) processRecord(ctx context.Context, rec models.TaskRecord) *models.TaskResult {
	token := rec.AccessToken
	if token == "" {
		token = o.cfg.Platform.Token
	}

	plat, err := o.factory(token)
	if err != nil {
		now := time.Now()
		err = models.NewStageError(models.StageResolve, models.ErrRemoteAPI, fmt.Errorf("creating platform client: %w", err))
		return fail(&models.TaskResult{
			Row:       rec.Row,
			Name:      rec.Name,
			TaskURL:   rec.TaskURL,
			StartedAt: now,
			EndedAt:   now,
		}, err)
	}

	return o.processor.Process(ctx, rec, plat)
}

// Classify puts an outcome in the full bucket when the run hit the item cap,
// otherwise in the partial bucket.
func Classify(batch *models.BatchResult, outcome models.RunOutcome, maxItems int) {
	if outcome.Results == maxItems {
		batch.FullResults = append(batch.FullResults, outcome.ActorURL)
		return
	}
	batch.PartialResults = append(batch.PartialResults, outcome)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// NewProcessor builds the record processor for cfg.Mode. The returned cleanup
// removes any cloned template.
func NewProcessor(ctx context.Context, cfg models.JobConfig) (RecordProcessor, func(), error) {
	noop := func() {}

	if cfg.Mode == models.ModeUpdate {
		return NewUpdater(cfg.Update), noop, nil
	}

	templateDir, cleanup, err := registry.ResolveTemplate(ctx, cfg.Template)
	if err != nil {
		return nil, noop, fmt.Errorf("resolving template: %w", err)
	}

	m, err := template.NewMaterializer(templateDir, cfg.ActorDir, cfg.OnExisting)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	vcs, err := publish.New(cfg.Git)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	return NewPipeline(m, publish.NewPublisher(vcs, cfg.Git), cfg), cleanup, nil
}

// RunFromConfig loads a creator config file and executes the batch.
func RunFromConfig(ctx context.Context, configPath string) (*models.BatchResult, error) {
	cfg, err := config.LoadJobConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading job config: %w", err)
	}
	return RunWithConfig(ctx, cfg)
}

// RunWithConfig executes the batch described by an already finalized cfg.
func RunWithConfig(ctx context.Context, cfg models.JobConfig) (*models.BatchResult, error) {
	factory, err := backends.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}

	processor, cleanup, err := NewProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return NewOrchestrator(cfg, factory, processor).Run(ctx)
}
