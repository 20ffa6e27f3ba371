// Package backends selects a platform implementation from configuration.
package backends

import (
	"fmt"
	"time"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
	"github.com/spachava753/actorgen/internal/platform/apify"
	"github.com/spachava753/actorgen/internal/platform/docker"
	"github.com/spachava753/actorgen/internal/platform/modal"
	"github.com/spachava753/actorgen/internal/util"
)

// New returns a factory for the backend named by cfg.Platform.Type. The apify
// factory makes a client per token; local backends ignore the token and share
// one instance.
func New(cfg models.JobConfig) (platform.Factory, error) {
	pc := cfg.Platform
	runTimeout := util.Seconds(cfg.Actor.RunTimeout)

	switch pc.Type {
	case "", "apify":
		opts := apify.Options{
			BaseURL:   pc.BaseURL,
			RateLimit: pc.RateLimit,
			PollWait:  time.Duration(pc.RunPollSec) * time.Second,
		}
		return func(token string) (platform.Platform, error) {
			if token == "" {
				return nil, fmt.Errorf("apify: no API token")
			}
			return apify.New(token, opts), nil
		}, nil

	case "docker":
		p := docker.New(docker.Options{
			TasksDir:   pc.TasksDir,
			RunTimeout: runTimeout,
		})
		return func(string) (platform.Platform, error) { return p, nil }, nil

	case "modal":
		var p *modal.Platform
		return func(string) (platform.Platform, error) {
			if p != nil {
				return p, nil
			}
			created, err := modal.New(modal.Options{
				Config:     modal.ParseProviderConfig(pc.ProviderConfig),
				TasksDir:   pc.TasksDir,
				RunTimeout: runTimeout,
			})
			if err != nil {
				return nil, err
			}
			p = created
			return p, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown platform type: %s", pc.Type)
	}
}
