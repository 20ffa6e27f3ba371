package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/spachava753/actorgen/internal/config"
	"github.com/spachava753/actorgen/internal/models"
)

func TestLoadTemplateConfig(t *testing.T) {
	templateToml := `exclude = ["node_modules/**", "**/*.log"]

[entry]
file = "src/main.js"
token = "__INPUT__"
`

	fsys := fstest.MapFS{
		"template.toml": &fstest.MapFile{Data: []byte(templateToml)},
	}

	cfg, err := config.LoadTemplateConfig(fsys)
	if err != nil {
		t.Fatalf("LoadTemplateConfig failed: %v", err)
	}

	if cfg.Entry.File != "src/main.js" {
		t.Errorf("expected entry file src/main.js, got %s", cfg.Entry.File)
	}

	if cfg.Entry.Token != "__INPUT__" {
		t.Errorf("expected token __INPUT__, got %s", cfg.Entry.Token)
	}

	if len(cfg.Exclude) != 2 {
		t.Errorf("expected 2 exclude patterns, got %d", len(cfg.Exclude))
	}
}

func TestLoadTemplateConfigMissing(t *testing.T) {
	cfg, err := config.LoadTemplateConfig(fstest.MapFS{})
	if err != nil {
		t.Fatalf("LoadTemplateConfig failed: %v", err)
	}

	if cfg.Entry.File != "main.js" {
		t.Errorf("expected default entry file main.js, got %s", cfg.Entry.File)
	}

	if cfg.Entry.Token != "INPUT_TOKEN_TO_REPLACE" {
		t.Errorf("expected default token, got %s", cfg.Entry.Token)
	}
}

func TestLoadTemplateConfigUnknownKey(t *testing.T) {
	fsys := fstest.MapFS{
		"template.toml": &fstest.MapFile{Data: []byte("entyr = 1\n")},
	}

	_, err := config.LoadTemplateConfig(fsys)
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Errorf("expected unknown keys error, got %v", err)
	}
}

func TestLoadJobConfig(t *testing.T) {
	jobYaml := `name: nightly
mode: provision
tasks: data/task-data.csv
output_dir: test-output
actor_dir: /srv/actors
on_existing: overwrite
continue_on_error: false
resume_from: https://console.apify.com/admin/users/u1/actors/a1
template:
  git_url: https://github.com/example/template.git
  git_commit: abc123
git:
  backend: gogit
  branch: main
  repo_url: https://github.com/example/actors.git
platform:
  type: docker
  tasks_dir: ./tasks
actor:
  memory: 2G
  max_items: 50
  categories: [NEWS, AI]
update:
  skip_actor_ids: [x1, x2]
`

	// Write to temp file
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "creator.yaml")
	if err := os.WriteFile(tmpFile, []byte(jobYaml), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	cfg, err := config.LoadJobConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadJobConfig failed: %v", err)
	}

	if *cfg.Name != "nightly" {
		t.Errorf("expected name nightly, got %s", *cfg.Name)
	}

	if cfg.OnExisting != models.ExistingOverwrite {
		t.Errorf("expected on_existing overwrite, got %s", cfg.OnExisting)
	}

	if cfg.ContinueOnError {
		t.Error("expected continue_on_error false")
	}

	if cfg.Template.Path != "" {
		t.Errorf("expected no template path when git_url is set, got %s", cfg.Template.Path)
	}

	if cfg.Git.Backend != "gogit" || cfg.Git.Branch != "main" {
		t.Errorf("unexpected git config: %+v", cfg.Git)
	}

	if cfg.Git.Remote != "origin" {
		t.Errorf("expected default remote origin, got %s", cfg.Git.Remote)
	}

	if cfg.Git.WorkDir != "/srv/actors" {
		t.Errorf("expected git work_dir to default to actor_dir, got %s", cfg.Git.WorkDir)
	}

	if cfg.Platform.Type != "docker" {
		t.Errorf("expected platform docker, got %s", cfg.Platform.Type)
	}

	if cfg.Actor.MemoryMB != 2048 {
		t.Errorf("expected memory 2048 MiB, got %d", cfg.Actor.MemoryMB)
	}

	if cfg.Actor.MaxItems != 50 {
		t.Errorf("expected max_items 50, got %d", cfg.Actor.MaxItems)
	}

	if len(cfg.Actor.Categories) != 2 {
		t.Errorf("expected 2 categories, got %v", cfg.Actor.Categories)
	}

	if len(cfg.Update.SkipActorIDs) != 2 {
		t.Errorf("expected 2 skip ids, got %v", cfg.Update.SkipActorIDs)
	}

	if len(cfg.Update.Pricing) != 1 || cfg.Update.Pricing[0].PricePerUnitUSD != 20 {
		t.Errorf("expected default pricing schedule, got %+v", cfg.Update.Pricing)
	}
}

func TestLoadJobConfigInvalid(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{
			name:        "bad mode",
			yaml:        "mode: destroy\n",
			errContains: "unsupported mode",
		},
		{
			name:        "bad policy",
			yaml:        "on_existing: suffix\n",
			errContains: "unsupported on_existing",
		},
		{
			name:        "both template sources",
			yaml:        "template:\n  path: t\n  git_url: https://example.com/t.git\n",
			errContains: "specify only one of",
		},
		{
			name:        "registry without name",
			yaml:        "template:\n  registry: templates.json\n",
			errContains: "'name' is required",
		},
		{
			name:        "memory not power of two",
			yaml:        "actor:\n  memory: 3000M\n",
			errContains: "not a power of two",
		},
		{
			name:        "bad platform",
			yaml:        "platform:\n  type: lambda\n",
			errContains: "unsupported platform type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "creator.yaml")
			if err := os.WriteFile(tmpFile, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("writing temp file: %v", err)
			}

			_, err := config.LoadJobConfig(tmpFile)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestDefaultJobConfig(t *testing.T) {
	cfg := config.DefaultJobConfig()
	if err := config.Finalize(&cfg); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if cfg.Template.Path != config.DefaultTemplatePath {
		t.Errorf("expected default template path, got %s", cfg.Template.Path)
	}

	if cfg.Actor.MemoryMB != 4096 {
		t.Errorf("expected default memory 4096, got %d", cfg.Actor.MemoryMB)
	}

	if cfg.Actor.TimeoutSecs != 1800 {
		t.Errorf("expected default timeout 1800, got %d", cfg.Actor.TimeoutSecs)
	}

	if cfg.Actor.MaxItems != 100 {
		t.Errorf("expected default max_items 100, got %d", cfg.Actor.MaxItems)
	}

	if cfg.Git.Branch != "master" || cfg.Git.Remote != "origin" {
		t.Errorf("expected origin/master, got %s/%s", cfg.Git.Remote, cfg.Git.Branch)
	}

	if cfg.Platform.Type != "apify" {
		t.Errorf("expected default platform apify, got %s", cfg.Platform.Type)
	}

	if cfg.OnExisting != models.ExistingFail {
		t.Errorf("expected default on_existing fail, got %s", cfg.OnExisting)
	}
}
