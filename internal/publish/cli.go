package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/spachava753/actorgen/internal/models"
)

// CLI drives the git binary in the working directory.
type CLI struct {
	workDir     string
	remote      string
	branch      string
	authorName  string
	authorEmail string
}

// NewCLI creates a git CLI backend.
func NewCLI(cfg models.GitConfig) *CLI {
	return &CLI{
		workDir:     cfg.WorkDir,
		remote:      cfg.Remote,
		branch:      cfg.Branch,
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
	}
}

func (c *CLI) Stage(ctx context.Context, path string) error {
	return c.git(ctx, "add", path)
}

func (c *CLI) Commit(ctx context.Context, message string) error {
	return c.git(ctx, "commit", "-m", message)
}

func (c *CLI) Push(ctx context.Context) error {
	return c.git(ctx, "push", c.remote, c.branch)
}

func (c *CLI) git(ctx context.Context, args ...string) error {
	var full []string
	if c.authorName != "" {
		full = append(full, "-c", "user.name="+c.authorName)
	}
	if c.authorEmail != "" {
		full = append(full, "-c", "user.email="+c.authorEmail)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = c.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running git", "args", args, "dir", c.workDir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
