package models

import "fmt"

// ActorIdentity is the display title of an actor and the slug derived from it.
// The slug doubles as directory name, remote actor name and commit subject.
type ActorIdentity struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// SourceReference locates a pushed actor directory inside a git repository.
type SourceReference struct {
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch"`
	Subpath string `json:"subpath"`
	Slug    string `json:"slug"`
}

// String renders the reference as <repo>.git#<branch>:<subpath>/<slug>, or just
// the repository when neither branch nor directory is set.
func (s SourceReference) String() string {
	dir := s.Slug
	if s.Subpath != "" {
		dir = s.Subpath + "/" + s.Slug
	}
	if s.Branch == "" && dir == "" {
		return s.RepoURL
	}
	return fmt.Sprintf("%s#%s:%s", s.RepoURL, s.Branch, dir)
}

// ActorSpec is everything needed to create an actor on the remote platform.
type ActorSpec struct {
	Name        string
	Title       string
	Description string
	IsPublic    bool
	Categories  []string
	PictureURL  string
	Version     string
	BuildTag    string
	Image       string
	Source      SourceReference
	TimeoutSecs int
	MemoryMB    int
}

// ActorHandle identifies an actor created on the remote platform.
type ActorHandle struct {
	ID      string `json:"id"`
	OwnerID string `json:"userId"`
	Name    string `json:"name"`
}

// BuildResult is the state of a build when the bounded wait ended.
type BuildResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// TimedOut is set when the wait elapsed before the build reached a terminal state.
	TimedOut bool `json:"timed_out"`
}

// RunResult is the terminal state of a run.
type RunResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DatasetID string `json:"defaultDatasetId"`
}

// RunOutcome is the final per-record output.
type RunOutcome struct {
	ActorURL string `json:"url"`
	Results  int    `json:"results"`
}

// PricingInfo is one entry of an actor pricing schedule.
type PricingInfo struct {
	PricingModel          string  `json:"pricingModel" yaml:"pricing_model"`
	PricePerUnitUSD       float64 `json:"pricePerUnitUsd" yaml:"price_per_unit_usd"`
	ApifyMarginPercentage float64 `json:"apifyMarginPercentage" yaml:"margin_percentage"`
	TrialMinutes          int     `json:"trialMinutes" yaml:"trial_minutes"`
}

// ActorUpdate carries the metadata changed by the maintenance path.
type ActorUpdate struct {
	Description  string        `json:"description"`
	PricingInfos []PricingInfo `json:"pricingInfos"`
}
