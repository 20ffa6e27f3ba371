package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
)

// Updater rewrites the description and pricing of provisioned actors.
type Updater struct {
	skip    map[string]bool
	pricing []models.PricingInfo
}

// NewUpdater creates an Updater from the update settings.
func NewUpdater(cfg models.UpdateConfig) *Updater {
	skip := make(map[string]bool, len(cfg.SkipActorIDs))
	for _, id := range cfg.SkipActorIDs {
		skip[id] = true
	}
	return &Updater{skip: skip, pricing: cfg.Pricing}
}

// Description is the marketing description of an actor scraping siteURL.
func Description(siteURL string) string {
	return fmt.Sprintf("Scrape news data from %s with this unofficial API. "+
		"Extract articles, monitor their popularity and performance and automate the fight against fake news. "+
		"Filter the results by authors, topics, categories, or publication dates. "+
		"Preview or download the results in your preferred format.", siteURL)
}

// Update sends one update for the actor behind actorURL. It reports false
// without calling the platform when the actor is on the skip list.
func (u *Updater) Update(ctx context.Context, plat platform.Platform, actorURL, siteURL string) (bool, error) {
	actorID, err := platform.ParseActorID(actorURL)
	if err != nil {
		return false, models.NewStageError(models.StageUpdate, models.ErrParse, err)
	}

	if u.skip[actorID] {
		slog.Info("actor already updated, skipping", "actor_id", actorID)
		return false, nil
	}

	update := models.ActorUpdate{
		Description:  Description(siteURL),
		PricingInfos: u.pricing,
	}
	if err := plat.UpdateActor(ctx, actorID, update); err != nil {
		return false, remoteError(models.StageUpdate, err)
	}

	slog.Info("actor updated", "actor_id", actorID)
	return true, nil
}

// Process wraps Update in a per-record result.
func (u *Updater) Process(ctx context.Context, rec models.TaskRecord, plat platform.Platform) *models.TaskResult {
	result := &models.TaskResult{
		Row:       rec.Row,
		Name:      rec.Name,
		TaskURL:   rec.TaskURL,
		StartedAt: time.Now(),
	}

	updated, err := u.Update(ctx, plat, rec.ActorURL, rec.SiteURL)
	result.EndedAt = time.Now()
	result.Durations.TotalSec = result.EndedAt.Sub(result.StartedAt).Seconds()
	if err != nil {
		return fail(result, err)
	}
	if id, err := platform.ParseActorID(rec.ActorURL); err == nil {
		result.ActorID = id
	}
	result.Updated = &updated
	return result
}
