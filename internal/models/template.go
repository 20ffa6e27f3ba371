package models

// TemplateConfig represents the optional template.toml at the template root.
type TemplateConfig struct {
	Entry   EntryConfig `toml:"entry"`
	Exclude []string    `toml:"exclude,omitempty"`
}

type EntryConfig struct {
	File  string `toml:"file"`  // default: main.js
	Token string `toml:"token"` // default: INPUT_TOKEN_TO_REPLACE
}
