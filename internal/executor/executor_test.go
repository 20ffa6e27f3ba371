package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/actorgen/internal/config"
	"github.com/spachava753/actorgen/internal/executor"
	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
	"github.com/spachava753/actorgen/internal/publish"
	"github.com/spachava753/actorgen/internal/template"
)

const testOwner = "owner-1"

// fakePlatform serves tasks from memory and reports a fixed item count per actor.
type fakePlatform struct {
	missingTasks map[string]bool
	counts       map[string]int
	build        models.BuildResult
	buildErr     error
	runStatus    string

	created []models.ActorSpec
	inputs  []map[string]any
	updates map[string]models.ActorUpdate
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		missingTasks: map[string]bool{},
		counts:       map[string]int{},
		build:        models.BuildResult{ID: "build-1", Status: platform.StatusSucceeded},
		runStatus:    platform.StatusSucceeded,
		updates:      map[string]models.ActorUpdate{},
	}
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) GetTask(_ context.Context, taskID string) (models.TaskInfo, error) {
	if f.missingTasks[taskID] {
		return models.TaskInfo{}, fmt.Errorf("task %s not found", taskID)
	}
	return models.TaskInfo{
		ID:      taskID,
		OwnerID: testOwner,
		Input: map[string]any{
			"startUrls":           []any{map[string]any{"url": "https://" + taskID + ".example.com"}},
			"maxArticlesPerCrawl": 10,
		},
	}, nil
}

func (f *fakePlatform) CreateActor(_ context.Context, spec models.ActorSpec) (models.ActorHandle, error) {
	f.created = append(f.created, spec)
	return models.ActorHandle{ID: spec.Name, OwnerID: testOwner, Name: spec.Name}, nil
}

func (f *fakePlatform) BuildActor(context.Context, string, string, time.Duration) (models.BuildResult, error) {
	return f.build, f.buildErr
}

func (f *fakePlatform) RunActor(_ context.Context, actorID string, input map[string]any) (models.RunResult, error) {
	f.inputs = append(f.inputs, input)
	return models.RunResult{ID: "run-" + actorID, Status: f.runStatus, DatasetID: "ds-" + actorID}, nil
}

func (f *fakePlatform) DatasetItemCount(_ context.Context, datasetID string) (int, error) {
	return f.counts[strings.TrimPrefix(datasetID, "ds-")], nil
}

func (f *fakePlatform) UpdateActor(_ context.Context, actorID string, update models.ActorUpdate) error {
	f.updates[actorID] = update
	return nil
}

type fakeVCS struct {
	commits []string
	pushErr error
}

func (v *fakeVCS) Stage(context.Context, string) error { return nil }

func (v *fakeVCS) Commit(_ context.Context, message string) error {
	v.commits = append(v.commits, message)
	return nil
}

func (v *fakeVCS) Push(context.Context) error { return v.pushErr }

type harness struct {
	cfg    models.JobConfig
	plat   *fakePlatform
	vcs    *fakeVCS
	tokens []string
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.js":           "const input = { INPUT_TOKEN_TO_REPLACE };\n",
		"README.md":         "# [TARGET WEBSITE NAME]\n",
		"INPUT_SCHEMA.json": `{"default":[START URLS]}`,
		".actor/actor.json": `{"name":"[ACTOR NAME]","title":"[ACTOR TITLE]","url":"[TARGET WEBSITE URL]"}`,
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func writeTasks(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	content := "task_url,name,url,access_token,actor_url\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newHarness(t *testing.T, tasksPath string, mutate func(*models.JobConfig)) *harness {
	t.Helper()

	name := "test-run"
	cfg := config.DefaultJobConfig()
	cfg.Name = &name
	cfg.TasksPath = tasksPath
	cfg.OutputDir = t.TempDir()
	cfg.ActorDir = t.TempDir()
	cfg.Template.Path = writeTemplate(t)
	cfg.Platform.Token = "global-token"
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, config.Finalize(&cfg))

	return &harness{cfg: cfg, plat: newFakePlatform(), vcs: &fakeVCS{}}
}

func (h *harness) factory(token string) (platform.Platform, error) {
	h.tokens = append(h.tokens, token)
	return h.plat, nil
}

func (h *harness) processor(t *testing.T) executor.RecordProcessor {
	t.Helper()
	if h.cfg.Mode == models.ModeUpdate {
		return executor.NewUpdater(h.cfg.Update)
	}
	m, err := template.NewMaterializer(h.cfg.Template.Path, h.cfg.ActorDir, h.cfg.OnExisting)
	require.NoError(t, err)
	return executor.NewPipeline(m, publish.NewPublisher(h.vcs, h.cfg.Git), h.cfg)
}

func (h *harness) run(t *testing.T, ctx context.Context) (*models.BatchResult, error) {
	t.Helper()
	return executor.NewOrchestrator(h.cfg, h.factory, h.processor(t)).Run(ctx)
}

func actorURL(slug string) string {
	return platform.ConsoleURL("https://console.apify.com", testOwner, slug)
}

func TestRunClassifiesResults(t *testing.T) {
	tasks := writeTasks(t,
		"https://console.apify.com/actors/tasks/alpha#/console,Alpha,alpha.com,tok-a,",
		"https://console.apify.com/actors/tasks/beta,Beta News,beta.com,tok-b,",
	)
	h := newHarness(t, tasks, nil)
	h.plat.counts["alpha-scraper"] = 100
	h.plat.counts["beta-news-scraper"] = 42

	result, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRecords)
	assert.Equal(t, 2, result.ProcessedRecords)
	assert.Zero(t, result.FailedRecords)
	assert.Equal(t, []string{actorURL("alpha-scraper")}, result.FullResults)
	assert.Equal(t, []models.RunOutcome{{ActorURL: actorURL("beta-news-scraper"), Results: 42}}, result.PartialResults)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []string{"tok-a", "tok-b"}, h.tokens)
	assert.Equal(t, []string{"Commiting Alpha Scraper", "Commiting Beta News Scraper"}, h.vcs.commits)

	require.Len(t, h.plat.created, 2)
	spec := h.plat.created[0]
	assert.Equal(t, "alpha-scraper", spec.Name)
	assert.Equal(t, "Alpha Scraper", spec.Title)
	assert.Equal(t, "https://github.com/Equidem/news-actor-creator.git#master:actors/alpha-scraper", spec.Source.String())
	assert.Equal(t, []string{"NEWS"}, spec.Categories)
	assert.Equal(t, 4096, spec.MemoryMB)

	require.Len(t, h.plat.inputs, 2)
	assert.Equal(t, 100, h.plat.inputs[0]["maxArticlesPerCrawl"])
	assert.Equal(t, []any{map[string]any{"url": "https://alpha.example.com"}}, h.plat.inputs[0]["startUrls"])

	// The actor directory carries the task input
	entry, err := os.ReadFile(filepath.Join(h.cfg.ActorDir, "alpha-scraper", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(entry), `...{"maxArticlesPerCrawl":10,`)

	jobDir := filepath.Join(h.cfg.OutputDir, "test-run")
	for _, name := range []string{"config.json", "result.json", "row-1/result.json", "row-2/result.json"} {
		assert.FileExists(t, filepath.Join(jobDir, name))
	}

	data, err := os.ReadFile(filepath.Join(jobDir, "row-2", "result.json"))
	require.NoError(t, err)
	var row models.TaskResult
	require.NoError(t, json.Unmarshal(data, &row))
	assert.Equal(t, "beta-news-scraper", row.ActorID)
	require.NotNil(t, row.Outcome)
	assert.Equal(t, 42, row.Outcome.Results)
	assert.NotNil(t, row.Durations.RunSec)
}

func TestRunTokenFallback(t *testing.T) {
	tasks := writeTasks(t, "https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,,")
	h := newHarness(t, tasks, nil)

	_, err := h.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"global-token"}, h.tokens)
}

func TestRunDirectoryOfTaskLists(t *testing.T) {
	dir := t.TempDir()
	header := "task_url,name,url,access_token,actor_url\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"),
		[]byte(header+"https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,tok,\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"),
		[]byte(header+"https://console.apify.com/actors/tasks/beta,Beta,beta.com,tok,\n"), 0644))

	h := newHarness(t, dir, nil)

	result, err := h.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedRecords)

	jobDir := filepath.Join(h.cfg.OutputDir, "test-run")
	for row, actorID := range map[int]string{1: "alpha-scraper", 2: "beta-scraper"} {
		data, err := os.ReadFile(filepath.Join(jobDir, fmt.Sprintf("row-%d", row), "result.json"))
		require.NoError(t, err)
		var rec models.TaskResult
		require.NoError(t, json.Unmarshal(data, &rec))
		assert.Equal(t, row, rec.Row)
		assert.Equal(t, actorID, rec.ActorID)
	}
}

func TestRunContinueOnError(t *testing.T) {
	rows := []string{
		"https://console.apify.com/actors/tasks/gone,Gone,gone.com,tok,",
		"https://console.apify.com/actors/tasks/beta,Beta,beta.com,tok,",
	}

	t.Run("continue", func(t *testing.T) {
		h := newHarness(t, writeTasks(t, rows...), nil)
		h.plat.missingTasks["gone"] = true
		h.plat.counts["beta-scraper"] = 100

		result, err := h.run(t, context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, result.ProcessedRecords)
		assert.Equal(t, 1, result.FailedRecords)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, models.ErrRemoteAPI, result.Failed[0].Error.Type)
		assert.Equal(t, models.StageResolve, result.Failed[0].Error.Stage)
		assert.Equal(t, []string{actorURL("beta-scraper")}, result.FullResults)
	})

	t.Run("stop", func(t *testing.T) {
		h := newHarness(t, writeTasks(t, rows...), func(cfg *models.JobConfig) {
			cfg.ContinueOnError = false
		})
		h.plat.missingTasks["gone"] = true

		result, err := h.run(t, context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 1 (Gone)")

		require.NotNil(t, result)
		assert.Equal(t, 1, result.ProcessedRecords)
		assert.Empty(t, h.plat.created)
		assert.FileExists(t, filepath.Join(h.cfg.OutputDir, "test-run", "result.json"))
	})
}

func TestRunResume(t *testing.T) {
	rows := []string{
		"https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,tok,",
		"https://console.apify.com/actors/tasks/beta,Beta,beta.com,tok,",
		"https://console.apify.com/actors/tasks/gamma,Gamma,gamma.com,tok,",
	}

	t.Run("found", func(t *testing.T) {
		h := newHarness(t, writeTasks(t, rows...), func(cfg *models.JobConfig) {
			cfg.ResumeFrom = "https://console.apify.com/actors/tasks/beta"
		})

		result, err := h.run(t, context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, result.SkippedRecords)
		assert.Equal(t, 2, result.ProcessedRecords)
		assert.Equal(t, []string{"Commiting Beta Scraper", "Commiting Gamma Scraper"}, h.vcs.commits)
	})

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, writeTasks(t, rows...), func(cfg *models.JobConfig) {
			cfg.ResumeFrom = "https://console.apify.com/actors/tasks/missing"
		})

		result, err := h.run(t, context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, result.SkippedRecords)
		assert.Zero(t, result.ProcessedRecords)
		assert.Empty(t, h.tokens)
	})
}

func TestRunCancelled(t *testing.T) {
	tasks := writeTasks(t,
		"https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,tok,",
		"https://console.apify.com/actors/tasks/beta,Beta,beta.com,tok,",
	)
	h := newHarness(t, tasks, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.run(t, ctx)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 2, result.SkippedRecords)
	assert.Zero(t, result.ProcessedRecords)
}

func TestRunRefusesExistingDirectory(t *testing.T) {
	tasks := writeTasks(t, "https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,tok,")
	h := newHarness(t, tasks, nil)

	existing := filepath.Join(h.cfg.OutputDir, "test-run")
	require.NoError(t, os.MkdirAll(existing, 0755))
	marker := filepath.Join(existing, "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("keep"), 0644))

	_, err := h.run(t, context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.FileExists(t, marker)
	assert.Empty(t, h.tokens)
}

func TestRunFactoryError(t *testing.T) {
	tasks := writeTasks(t, "https://console.apify.com/actors/tasks/alpha,Alpha,alpha.com,,")
	h := newHarness(t, tasks, nil)

	factory := func(string) (platform.Platform, error) {
		return nil, errors.New("no credential")
	}
	result, err := executor.NewOrchestrator(h.cfg, factory, h.processor(t)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, models.ErrRemoteAPI, result.Failed[0].Error.Type)
	assert.Equal(t, models.StageResolve, result.Failed[0].Error.Stage)
	assert.Contains(t, result.Failed[0].Error.Message, "no credential")
}

func TestRunUpdateMode(t *testing.T) {
	tasks := writeTasks(t,
		",Alpha,alpha.com,tok,https://console.apify.com/admin/users/u/actors/aaa111",
		",Done,done.com,tok,https://console.apify.com/actors/7Op5iRBmNqI7kywlp#/source",
	)
	h := newHarness(t, tasks, func(cfg *models.JobConfig) {
		cfg.Mode = models.ModeUpdate
	})

	result, err := h.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedRecords)
	assert.Zero(t, result.FailedRecords)
	require.Len(t, h.plat.updates, 1)
	update, ok := h.plat.updates["aaa111"]
	require.True(t, ok)
	assert.Contains(t, update.Description, "alpha.com")
	assert.Equal(t, h.cfg.Update.Pricing, update.PricingInfos)
}

func TestClassify(t *testing.T) {
	batch := &models.BatchResult{}
	executor.Classify(batch, models.RunOutcome{ActorURL: "full", Results: 100}, 100)
	executor.Classify(batch, models.RunOutcome{ActorURL: "short", Results: 99}, 100)
	executor.Classify(batch, models.RunOutcome{ActorURL: "empty", Results: 0}, 100)
	executor.Classify(batch, models.RunOutcome{ActorURL: "over", Results: 101}, 100)

	assert.Equal(t, []string{"full"}, batch.FullResults)
	assert.Equal(t, []models.RunOutcome{
		{ActorURL: "short", Results: 99},
		{ActorURL: "empty", Results: 0},
		{ActorURL: "over", Results: 101},
	}, batch.PartialResults)
}
