// Package registry fetches template projects that live in git repositories.
package registry

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spachava753/actorgen/internal/models"
)

// Resolver clones template repositories into a private base directory.
type Resolver struct {
	baseDir string // Base directory for clones
}

// NewResolver creates a new Resolver.
// The baseDir will be created under os.TempDir() with a timestamp suffix.
func NewResolver() (*Resolver, error) {
	baseDir := filepath.Join(os.TempDir(), fmt.Sprintf("actorgen-templates-%d", time.Now().UnixNano()))
	slog.Debug("creating template resolver base directory", "path", baseDir)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	return &Resolver{baseDir: baseDir}, nil
}

// BaseDir returns the base directory where repositories are cloned.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Close removes every clone.
func (r *Resolver) Close() error {
	return os.RemoveAll(r.baseDir)
}

// Resolve clones the repository of src and returns the template root in it.
func (r *Resolver) Resolve(ctx context.Context, src models.TemplateSource) (string, error) {
	key := cloneKey{GitURL: src.GitURL, GitCommitID: src.GitCommit}
	clonePath, err := r.cloneRepo(ctx, key)
	if err != nil {
		return "", fmt.Errorf("cloning %s: %w", src.GitURL, err)
	}

	root := clonePath
	if src.Subdir != "" {
		root = filepath.Join(clonePath, filepath.FromSlash(src.Subdir))
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("template root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("template root %s is not a directory", src.Subdir)
	}

	slog.Debug("resolved template", "url", src.GitURL, "root", root)
	return root, nil
}

// ResolveTemplate returns a local template root for src. Registry entries and
// git sources are cloned; the cleanup func removes the clone.
func ResolveTemplate(ctx context.Context, src models.TemplateSource) (string, func(), error) {
	noop := func() {}

	if src.Registry != "" {
		templates, err := Load(ctx, src.Registry)
		if err != nil {
			return "", noop, err
		}
		entry, err := FindTemplate(templates, src.Name, src.Version)
		if err != nil {
			return "", noop, err
		}
		slog.Info("using registry template", "name", entry.Name, "version", entry.Version, "url", entry.GitURL)
		src.GitURL = entry.GitURL
		src.GitCommit = entry.GitCommitID
		src.Subdir = entry.Path
	}

	if src.GitURL == "" {
		return src.Path, noop, nil
	}

	r, err := NewResolver()
	if err != nil {
		return "", noop, err
	}
	cleanup := func() {
		if err := r.Close(); err != nil {
			slog.Warn("failed to remove template clone", "path", r.BaseDir(), "error", err)
		}
	}

	root, err := r.Resolve(ctx, src)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	return root, cleanup, nil
}

// cloneRepo clones a repository to baseDir. For specific commits, it does a full
// clone then checks out the commit. For HEAD, it does a shallow clone.
func (r *Resolver) cloneRepo(ctx context.Context, key cloneKey) (string, error) {
	dirName := r.cloneDirName(key)
	clonePath := filepath.Join(r.baseDir, dirName)

	// Check if already cloned (idempotent)
	if _, err := os.Stat(clonePath); err == nil {
		slog.Debug("repository already cloned", "url", key.GitURL, "path", clonePath)
		return clonePath, nil
	}

	if key.GitCommitID == "" {
		slog.Debug("cloning repository (shallow)", "url", key.GitURL, "dest", clonePath)
		if err := git(ctx, "", "clone", "--depth", "1", "--", key.GitURL, clonePath); err != nil {
			return "", err
		}
	} else {
		if strings.HasPrefix(key.GitCommitID, "-") {
			return "", fmt.Errorf("invalid git commit %q", key.GitCommitID)
		}
		slog.Debug("cloning repository (full)", "url", key.GitURL, "commit", key.GitCommitID, "dest", clonePath)
		if err := git(ctx, "", "clone", "--", key.GitURL, clonePath); err != nil {
			return "", err
		}

		slog.Debug("checking out commit", "commit", key.GitCommitID)
		if err := git(ctx, clonePath, "checkout", key.GitCommitID); err != nil {
			return "", err
		}
	}

	slog.Debug("repository cloned successfully", "url", key.GitURL, "path", clonePath)
	return clonePath, nil
}

func git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// cloneDirName generates a unique directory name for a clone key.
func (r *Resolver) cloneDirName(key cloneKey) string {
	// Hash the URL to get a short, filesystem-safe name
	h := sha256.Sum256([]byte(key.GitURL))
	urlHash := fmt.Sprintf("%x", h[:8])

	commitPart := "HEAD"
	if key.GitCommitID != "" {
		commitPart = key.GitCommitID
		if len(commitPart) > 12 {
			commitPart = commitPart[:12]
		}
	}

	// Extract repo name from URL for readability
	repoName := filepath.Base(strings.TrimSuffix(key.GitURL, ".git"))

	return fmt.Sprintf("%s-%s-%s", repoName, urlHash, commitPart)
}
