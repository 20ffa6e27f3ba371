package publish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/spachava753/actorgen/internal/models"
)

// ErrNotFastForward is returned when the remote branch has diverged.
var ErrNotFastForward = errors.New("push rejected: not a fast-forward")

// GoGit implements VCS in-process with go-git.
type GoGit struct {
	workDir     string
	remote      string
	branch      string
	authorName  string
	authorEmail string
	token       string

	repo *git.Repository
}

// NewGoGit creates a go-git backend. The repository is opened lazily.
func NewGoGit(cfg models.GitConfig) *GoGit {
	return &GoGit{
		workDir:     cfg.WorkDir,
		remote:      cfg.Remote,
		branch:      cfg.Branch,
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
		token:       cfg.Token,
	}
}

func (g *GoGit) open() (*git.Repository, error) {
	if g.repo != nil {
		return g.repo, nil
	}
	dir := g.workDir
	if dir == "" {
		dir = "."
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	g.repo = repo
	return repo, nil
}

// Stage adds path, relative to the working directory, resolving it against the
// worktree root since the working directory may be a subdirectory.
func (g *GoGit) Stage(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := g.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	abs, err := filepath.Abs(filepath.Join(g.workDir, filepath.FromSlash(path)))
	if err != nil {
		return err
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return fmt.Errorf("resolving %s against worktree: %w", path, err)
	}

	if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("adding %s: %w", rel, err)
	}
	return nil
}

func (g *GoGit) Commit(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := g.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	sig := &object.Signature{
		Name:  g.authorName,
		Email: g.authorEmail,
		When:  time.Now(),
	}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}
	return nil
}

func (g *GoGit) Push(ctx context.Context) error {
	repo, err := g.open()
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("refs/heads/%s:refs/heads/%s", g.branch, g.branch)
	opts := &git.PushOptions{
		RemoteName: g.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref)},
		Auth:       g.auth(),
	}

	err = repo.PushContext(ctx, opts)
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return ErrNotFastForward
	default:
		return fmt.Errorf("pushing to %s: %w", g.remote, err)
	}
}

func (g *GoGit) auth() transport.AuthMethod {
	if g.token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.token}
}
