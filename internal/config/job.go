package config

import (
	"fmt"
	"os"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/util"
	"gopkg.in/yaml.v3"
)

// DefaultTemplatePath is used when neither template.path nor template.git_url is set.
const DefaultTemplatePath = "repositories/template"

// DefaultJobConfig returns a JobConfig with default values.
func DefaultJobConfig() models.JobConfig {
	return models.JobConfig{
		Mode:            models.ModeProvision,
		TasksPath:       "task-data.csv",
		OutputDir:       "runs",
		ActorDir:        "repositories/actors",
		OnExisting:      models.ExistingFail,
		ContinueOnError: true,
		Git: models.GitConfig{
			Backend:     "cli",
			Remote:      "origin",
			Branch:      "master",
			RepoURL:     "https://github.com/Equidem/news-actor-creator.git",
			Subpath:     "actors",
			AuthorName:  "actorgen",
			AuthorEmail: "actorgen@users.noreply.github.com",
		},
		Platform: models.PlatformConfig{
			Type:       "apify",
			BaseURL:    "https://api.apify.com",
			ConsoleURL: "https://console.apify.com",
			RateLimit:  5,
			RunPollSec: 60,
		},
		Actor: models.ActorConfig{
			TitleSuffix:  " Scraper",
			Categories:   []string{"NEWS"},
			PictureURL:   "https://raw.githubusercontent.com/Equidem/news-actor-creator/master/pngtree-vector-newspaper-icon-png-image_1577280.jpg",
			Image:        "apify/actor-node-basic",
			Version:      "1.0",
			BuildTag:     "latest",
			Public:       true,
			TimeoutSecs:  1800,
			Memory:       "4G",
			BuildWaitSec: 60,
			MaxItems:     100,
		},
		Update: models.UpdateConfig{
			SkipActorIDs: []string{"7Op5iRBmNqI7kywlp"},
			Pricing: []models.PricingInfo{{
				PricingModel:          "FLAT_PRICE_PER_MONTH",
				PricePerUnitUSD:       20,
				ApifyMarginPercentage: 0,
				TrialMinutes:          10080,
			}},
		},
	}
}

// LoadJobConfig loads and parses a creator.yaml file.
func LoadJobConfig(path string) (models.JobConfig, error) {
	cfg := DefaultJobConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading job config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing job config: %w", err)
	}

	if err := Finalize(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Finalize applies defaults for missing values and validates cfg.
func Finalize(cfg *models.JobConfig) error {
	def := DefaultJobConfig()

	// Apply defaults for missing values
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.TasksPath == "" {
		cfg.TasksPath = def.TasksPath
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.ActorDir == "" {
		cfg.ActorDir = def.ActorDir
	}
	if cfg.Template.Path == "" && cfg.Template.GitURL == "" && cfg.Template.Registry == "" {
		cfg.Template.Path = DefaultTemplatePath
	}
	if cfg.OnExisting == "" {
		cfg.OnExisting = def.OnExisting
	}
	if cfg.Git.Backend == "" {
		cfg.Git.Backend = def.Git.Backend
	}
	if cfg.Git.WorkDir == "" {
		cfg.Git.WorkDir = cfg.ActorDir
	}
	if cfg.Git.Remote == "" {
		cfg.Git.Remote = def.Git.Remote
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = def.Git.Branch
	}
	if cfg.Platform.Type == "" {
		cfg.Platform.Type = def.Platform.Type
	}
	if cfg.Platform.RunPollSec <= 0 {
		cfg.Platform.RunPollSec = def.Platform.RunPollSec
	}
	if cfg.Actor.Version == "" {
		cfg.Actor.Version = def.Actor.Version
	}
	if cfg.Actor.BuildTag == "" {
		cfg.Actor.BuildTag = def.Actor.BuildTag
	}
	if cfg.Actor.MaxItems == 0 {
		cfg.Actor.MaxItems = def.Actor.MaxItems
	}

	// memory_mb wins over the human-readable memory field
	if cfg.Actor.MemoryMB == 0 {
		mb, err := util.ParseMemory(cfg.Actor.Memory)
		if err != nil {
			return fmt.Errorf("parsing actor memory %q: %w", cfg.Actor.Memory, err)
		}
		cfg.Actor.MemoryMB = mb
	}

	return Validate(*cfg)
}

// Validate checks a fully defaulted JobConfig.
func Validate(cfg models.JobConfig) error {
	switch cfg.Mode {
	case models.ModeProvision, models.ModeUpdate:
	default:
		return fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	switch cfg.OnExisting {
	case models.ExistingFail, models.ExistingOverwrite:
	default:
		return fmt.Errorf("unsupported on_existing policy: %s", cfg.OnExisting)
	}

	switch cfg.Git.Backend {
	case "cli", "gogit":
	default:
		return fmt.Errorf("unsupported git backend: %s", cfg.Git.Backend)
	}

	switch cfg.Platform.Type {
	case "apify", "docker", "modal":
	default:
		return fmt.Errorf("unsupported platform type: %s", cfg.Platform.Type)
	}

	sources := 0
	for _, s := range []string{cfg.Template.Path, cfg.Template.GitURL, cfg.Template.Registry} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("template: specify only one of 'path', 'git_url' and 'registry'")
	}
	if cfg.Template.Registry != "" && cfg.Template.Name == "" {
		return fmt.Errorf("template: 'name' is required with 'registry'")
	}

	if cfg.Mode == models.ModeProvision {
		if cfg.Git.RepoURL == "" {
			return fmt.Errorf("git: repo_url is required")
		}
		if err := util.ValidateActorMemory(cfg.Actor.MemoryMB); err != nil {
			return fmt.Errorf("actor: %w", err)
		}
	}

	if cfg.Actor.MaxItems < 0 {
		return fmt.Errorf("actor: max_items must be positive, got %d", cfg.Actor.MaxItems)
	}

	return nil
}
