// Package publish commits generated actor directories and pushes them to the
// shared git remote the platform builds from.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spachava753/actorgen/internal/models"
)

// VCS is the version-control capability the publisher needs.
type VCS interface {
	// Stage adds path, relative to the working directory, to the index.
	Stage(ctx context.Context, path string) error

	// Commit records the staged changes.
	Commit(ctx context.Context, message string) error

	// Push sends the configured branch to the configured remote.
	Push(ctx context.Context) error
}

// New returns the VCS backend named by cfg.Backend.
func New(cfg models.GitConfig) (VCS, error) {
	switch cfg.Backend {
	case "", "cli":
		return NewCLI(cfg), nil
	case "gogit":
		return NewGoGit(cfg), nil
	default:
		return nil, fmt.Errorf("unknown git backend: %s", cfg.Backend)
	}
}

// Publisher stages, commits and pushes one actor directory at a time.
type Publisher struct {
	vcs     VCS
	workDir string
	repoURL string
	branch  string
	subpath string
}

// NewPublisher creates a Publisher that derives source references from cfg.
func NewPublisher(vcs VCS, cfg models.GitConfig) *Publisher {
	return &Publisher{
		vcs:     vcs,
		workDir: cfg.WorkDir,
		repoURL: cfg.RepoURL,
		branch:  cfg.Branch,
		subpath: cfg.Subpath,
	}
}

// Publish pushes dir and returns the reference the platform should build from.
// The remote is not inspected afterwards.
func (p *Publisher) Publish(ctx context.Context, title, dir string) (models.SourceReference, error) {
	rel, err := p.relative(dir)
	if err != nil {
		return models.SourceReference{}, vcsError(err)
	}

	slog.Info("publishing actor", "title", title, "path", rel)

	if err := p.vcs.Stage(ctx, rel); err != nil {
		return models.SourceReference{}, vcsError(fmt.Errorf("staging %s: %w", rel, err))
	}
	if err := p.vcs.Commit(ctx, CommitMessage(title)); err != nil {
		return models.SourceReference{}, vcsError(fmt.Errorf("committing %s: %w", rel, err))
	}
	if err := p.vcs.Push(ctx); err != nil {
		return models.SourceReference{}, vcsError(fmt.Errorf("pushing %s: %w", rel, err))
	}

	return models.SourceReference{
		RepoURL: p.repoURL,
		Branch:  p.branch,
		Subpath: p.subpath,
		Slug:    filepath.Base(dir),
	}, nil
}

// CommitMessage is the commit subject used for an actor title.
func CommitMessage(title string) string {
	return "Commiting " + title
}

func (p *Publisher) relative(dir string) (string, error) {
	if p.workDir == "" {
		return dir, nil
	}
	base, err := filepath.Abs(p.workDir)
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", fmt.Errorf("actor directory %s is outside %s: %w", dir, p.workDir, err)
	}
	return filepath.ToSlash(rel), nil
}

func vcsError(err error) error {
	return models.NewStageError(models.StagePublish, models.ErrVersionControl, err)
}
