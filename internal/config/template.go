package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/spachava753/actorgen/internal/models"
)

// TemplateManifest is the name of the optional manifest at the template root.
const TemplateManifest = "template.toml"

// DefaultTemplateConfig returns a TemplateConfig with default values.
func DefaultTemplateConfig() models.TemplateConfig {
	return models.TemplateConfig{
		Entry: models.EntryConfig{
			File:  "main.js",
			Token: "INPUT_TOKEN_TO_REPLACE",
		},
	}
}

// LoadTemplateConfig loads template.toml from the given filesystem. A missing
// manifest is not an error; the defaults are returned.
func LoadTemplateConfig(fsys fs.FS) (models.TemplateConfig, error) {
	cfg := DefaultTemplateConfig()

	data, err := fs.ReadFile(fsys, TemplateManifest)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", TemplateManifest, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", TemplateManifest, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parsing %s: unknown keys %v", TemplateManifest, undecoded)
	}

	if cfg.Entry.File == "" {
		cfg.Entry.File = "main.js"
	}
	if cfg.Entry.Token == "" {
		cfg.Entry.Token = "INPUT_TOKEN_TO_REPLACE"
	}

	return cfg, nil
}
