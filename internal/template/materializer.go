// Package template turns the template project into a customized actor directory.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spachava753/actorgen/internal/config"
	"github.com/spachava753/actorgen/internal/identity"
	"github.com/spachava753/actorgen/internal/models"
)

// Placeholders of the template file set.
const (
	PlaceholderSiteName  = "[TARGET WEBSITE NAME]"
	PlaceholderSiteURL   = "[TARGET WEBSITE URL]"
	PlaceholderStartURLs = "[START URLS]"
	PlaceholderActorName = "[ACTOR NAME]"
	PlaceholderTitle     = "[ACTOR TITLE]"
)

// Files of the template that receive substitutions, besides the entry file.
const (
	ReadmeFile      = "README.md"
	InputSchemaFile = "INPUT_SCHEMA.json"
	ActorManifest   = ".actor/actor.json"
)

// ErrDestinationExists is returned when the actor directory is already present and
// the policy is to fail.
var ErrDestinationExists = errors.New("actor directory already exists")

// ErrInvalidSlug is returned when a title does not yield a single path element.
var ErrInvalidSlug = errors.New("invalid actor slug")

// Params are the per-record values injected into the template.
type Params struct {
	Input     map[string]any
	Title     string
	SiteName  string
	SiteURL   string
	StartURLs any
}

// Materializer copies the template into <actorDir>/<slug> and customizes it.
type Materializer struct {
	templateDir string
	actorDir    string
	policy      models.ExistingPolicy
	cfg         models.TemplateConfig
}

// NewMaterializer checks the template root and loads its manifest.
func NewMaterializer(templateDir, actorDir string, policy models.ExistingPolicy) (*Materializer, error) {
	info, err := os.Stat(templateDir)
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template directory %s is not a directory", templateDir)
	}

	cfg, err := config.LoadTemplateConfig(os.DirFS(templateDir))
	if err != nil {
		return nil, fmt.Errorf("loading template config: %w", err)
	}

	return &Materializer{
		templateDir: templateDir,
		actorDir:    actorDir,
		policy:      policy,
		cfg:         cfg,
	}, nil
}

// Config returns the template manifest in effect.
func (m *Materializer) Config() models.TemplateConfig {
	return m.cfg
}

// Materialize creates the actor directory for p and returns its slug.
func (m *Materializer) Materialize(ctx context.Context, p Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	slug := identity.Slug(p.Title)
	if err := checkSlug(slug); err != nil {
		return "", fmt.Errorf("title %q: %w", p.Title, err)
	}
	dest := filepath.Join(m.actorDir, slug)

	if _, err := os.Stat(dest); err == nil {
		if m.policy != models.ExistingOverwrite {
			return "", fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}
		slog.Warn("overwriting existing actor directory", "path", dest)
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("removing existing actor directory: %w", err)
		}
	}

	if err := os.MkdirAll(m.actorDir, 0755); err != nil {
		return "", fmt.Errorf("creating actor root: %w", err)
	}

	exclude := append([]string{config.TemplateManifest}, m.cfg.Exclude...)
	slog.Debug("copying template", "src", m.templateDir, "dest", dest)
	if err := copyTree(m.templateDir, dest, exclude); err != nil {
		return "", fmt.Errorf("copying template: %w", err)
	}

	for _, sub := range m.Substitutions(p, slug) {
		if err := sub.Apply(dest); err != nil {
			return "", err
		}
	}

	return slug, nil
}

// checkSlug makes sure slug names a directory directly under the actor root.
func checkSlug(slug string) error {
	switch {
	case slug == "":
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	case slug == "." || slug == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	case strings.ContainsAny(slug, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSlug, slug)
	}
	return nil
}

// Substitutions lists the edits applied to a fresh copy of the template.
func (m *Materializer) Substitutions(p Params, slug string) []Substitution {
	return []Substitution{
		{
			File:     m.cfg.Entry.File,
			Encoding: Raw,
			Values: map[string]Value{
				m.cfg.Entry.Token: Spread(p.Input),
			},
		},
		{
			File:     ReadmeFile,
			Encoding: Raw,
			Values: map[string]Value{
				PlaceholderSiteName: Literal(p.SiteName),
				PlaceholderSiteURL:  Literal(p.SiteURL),
			},
		},
		{
			File:     InputSchemaFile,
			Encoding: Raw,
			Values: map[string]Value{
				PlaceholderStartURLs: JSON(p.StartURLs),
			},
		},
		{
			File:     ActorManifest,
			Encoding: JSONString,
			Values: map[string]Value{
				PlaceholderSiteURL:   Literal(p.SiteURL),
				PlaceholderActorName: Literal(slug),
				PlaceholderTitle:     Literal(p.Title),
			},
		},
	}
}
