package models

import "time"

// ExistingPolicy controls what happens when an actor directory already exists.
type ExistingPolicy string

const (
	ExistingFail      ExistingPolicy = "fail"
	ExistingOverwrite ExistingPolicy = "overwrite"
)

// Mode selects what the driver does with each record.
type Mode string

const (
	ModeProvision Mode = "provision"
	ModeUpdate    Mode = "update"
)

// JobConfig represents the parsed creator.yaml configuration.
type JobConfig struct {
	Name            *string        `yaml:"name,omitempty" json:"name,omitempty"`
	Mode            Mode           `yaml:"mode" json:"mode"`
	TasksPath       string         `yaml:"tasks" json:"tasks"`
	OutputDir       string         `yaml:"output_dir" json:"output_dir"`
	ActorDir        string         `yaml:"actor_dir" json:"actor_dir"`
	OnExisting      ExistingPolicy `yaml:"on_existing" json:"on_existing"`
	ContinueOnError bool           `yaml:"continue_on_error" json:"continue_on_error"`
	ResumeFrom      string         `yaml:"resume_from,omitempty" json:"resume_from,omitempty"`
	LogLevel        string         `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFile         string         `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	Template        TemplateSource `yaml:"template" json:"template"`
	Git             GitConfig      `yaml:"git" json:"git"`
	Platform        PlatformConfig `yaml:"platform" json:"platform"`
	Actor           ActorConfig    `yaml:"actor" json:"actor"`
	Update          UpdateConfig   `yaml:"update" json:"update"`
}

// TemplateSource says where the template project comes from: a local Path, a
// GitURL, or a named entry of a template Registry.
type TemplateSource struct {
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	GitURL    string `yaml:"git_url,omitempty" json:"git_url,omitempty"`
	GitCommit string `yaml:"git_commit,omitempty" json:"git_commit,omitempty"`
	// Subdir is the template root inside the cloned repository.
	Subdir string `yaml:"subdir,omitempty" json:"subdir,omitempty"`
	// Registry is a path or URL of a templates.json catalog.
	Registry string `yaml:"registry,omitempty" json:"registry,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Version  string `yaml:"version,omitempty" json:"version,omitempty"`
}

type GitConfig struct {
	Backend     string `yaml:"backend" json:"backend"` // cli or gogit
	WorkDir     string `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	Remote      string `yaml:"remote" json:"remote"`
	Branch      string `yaml:"branch" json:"branch"`
	RepoURL     string `yaml:"repo_url" json:"repo_url"`
	Subpath     string `yaml:"subpath" json:"subpath"`
	AuthorName  string `yaml:"author_name,omitempty" json:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty" json:"author_email,omitempty"`
	Token       string `yaml:"token,omitempty" json:"-"`
}

type PlatformConfig struct {
	Type           string         `yaml:"type" json:"type"`
	BaseURL        string         `yaml:"base_url" json:"base_url"`
	ConsoleURL     string         `yaml:"console_url" json:"console_url"`
	Token          string         `yaml:"token,omitempty" json:"-"`
	RateLimit      float64        `yaml:"rate_limit" json:"rate_limit"`
	RunPollSec     int            `yaml:"run_poll_sec" json:"run_poll_sec"`
	TasksDir       string         `yaml:"tasks_dir,omitempty" json:"tasks_dir,omitempty"`
	ProviderConfig map[string]any `yaml:"provider_config,omitempty" json:"provider_config,omitempty"`
}

type ActorConfig struct {
	TitleSuffix  string   `yaml:"title_suffix" json:"title_suffix"`
	Categories   []string `yaml:"categories" json:"categories"`
	PictureURL   string   `yaml:"picture_url,omitempty" json:"picture_url,omitempty"`
	Image        string   `yaml:"image" json:"image"`
	Version      string   `yaml:"version" json:"version"`
	BuildTag     string   `yaml:"build_tag" json:"build_tag"`
	Public       bool     `yaml:"public" json:"public"`
	TimeoutSecs  int      `yaml:"timeout_secs" json:"timeout_secs"`
	Memory       string   `yaml:"memory" json:"memory"`
	MemoryMB     int      `yaml:"memory_mb,omitempty" json:"memory_mb,omitempty"`
	BuildWaitSec float64  `yaml:"build_wait_sec" json:"build_wait_sec"`
	RunTimeout   float64  `yaml:"run_timeout_sec,omitempty" json:"run_timeout_sec,omitempty"`
	MaxItems     int      `yaml:"max_items" json:"max_items"`
}

type UpdateConfig struct {
	SkipActorIDs []string      `yaml:"skip_actor_ids" json:"skip_actor_ids"`
	Pricing      []PricingInfo `yaml:"pricing" json:"pricing"`
}

// TaskError is the error recorded for a failed record.
type TaskError struct {
	Type    ErrorType `json:"type"`
	Stage   Stage     `json:"stage,omitempty"`
	Message string    `json:"message"`
}

type Durations struct {
	TotalSec       float64  `json:"total_sec"`
	ResolveSec     *float64 `json:"resolve_sec"`
	MaterializeSec *float64 `json:"materialize_sec"`
	PublishSec     *float64 `json:"publish_sec"`
	ProvisionSec   *float64 `json:"provision_sec"`
	RunSec         *float64 `json:"run_sec"`
}

// TaskResult contains the outcome of processing one record.
type TaskResult struct {
	Row       int            `json:"row"`
	Name      string         `json:"name"`
	TaskURL   string         `json:"task_url"`
	Identity  *ActorIdentity `json:"identity,omitempty"`
	Source    string         `json:"source,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Build     *BuildResult   `json:"build,omitempty"`
	Outcome   *RunOutcome    `json:"outcome,omitempty"`
	Updated   *bool          `json:"updated,omitempty"`
	Error     *TaskError     `json:"error"`
	Durations Durations      `json:"durations"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

// BatchResult holds the outcome buckets of one driver run.
type BatchResult struct {
	RunID            string       `json:"run_id"`
	JobName          string       `json:"job_name"`
	Mode             Mode         `json:"mode"`
	Cancelled        bool         `json:"cancelled"`
	TotalRecords     int          `json:"total_records"`
	ProcessedRecords int          `json:"processed_records"`
	SkippedRecords   int          `json:"skipped_records"`
	FailedRecords    int          `json:"failed_records"`
	FullResults      []string     `json:"full_results"`
	PartialResults   []RunOutcome `json:"partial_results"`
	Failed           []TaskResult `json:"failed"`
	TotalDurationSec float64      `json:"total_duration_sec"`
	StartedAt        time.Time    `json:"started_at"`
	EndedAt          time.Time    `json:"ended_at"`
}
