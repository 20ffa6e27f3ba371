package template

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/actorgen/internal/models"
)

func writeTemplate(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func defaultTemplateFiles() map[string]string {
	return map[string]string{
		"main.js":            "INPUT_TOKEN_TO_REPLACE",
		"README.md":          "# [TARGET WEBSITE NAME]\n\nScrapes [TARGET WEBSITE URL]. Visit [TARGET WEBSITE URL].\n",
		"INPUT_SCHEMA.json":  `{"properties":{"startUrls":{"default":[START URLS]}}}`,
		".actor/actor.json":  `{"name":"[ACTOR NAME]","title":"[ACTOR TITLE]","description":"News from [TARGET WEBSITE URL]"}`,
		".gitignore":         "node_modules\n",
		"src/routes/list.js": "export default {};\n",
	}
}

func examplePayload() Params {
	startURLs := []any{map[string]any{"url": "https://example.com"}}
	return Params{
		Input: map[string]any{
			"startUrls": startURLs,
			"selector":  `a[href*="/news/"]`,
			"note":      "line one\nline \"two\"",
		},
		Title:     "Example Scraper",
		SiteName:  "Example",
		SiteURL:   "example.com",
		StartURLs: startURLs,
	}
}

func TestMaterializeExample(t *testing.T) {
	tmpl := writeTemplate(t, defaultTemplateFiles())
	actorDir := t.TempDir()

	m, err := NewMaterializer(tmpl, actorDir, models.ExistingFail)
	require.NoError(t, err)

	p := examplePayload()
	slug, err := m.Materialize(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "example-scraper", slug)

	dest := filepath.Join(actorDir, slug)

	readme, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Example\n\nScrapes example.com. Visit example.com.\n", string(readme))

	for _, name := range []string{".gitignore", "src/routes/list.js"} {
		_, err := os.Stat(filepath.Join(dest, filepath.FromSlash(name)))
		assert.NoError(t, err, "expected %s to be copied", name)
	}

	var manifest map[string]string
	data, err := os.ReadFile(filepath.Join(dest, ".actor", "actor.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "example-scraper", manifest["name"])
	assert.Equal(t, "Example Scraper", manifest["title"])
	assert.Equal(t, "News from example.com", manifest["description"])

	var schema struct {
		Properties struct {
			StartURLs struct {
				Default []map[string]string `json:"default"`
			} `json:"startUrls"`
		} `json:"properties"`
	}
	data, err = os.ReadFile(filepath.Join(dest, "INPUT_SCHEMA.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, []map[string]string{{"url": "https://example.com"}}, schema.Properties.StartURLs.Default)
}

func TestMaterializeEntryRoundTrip(t *testing.T) {
	tmpl := writeTemplate(t, defaultTemplateFiles())
	actorDir := t.TempDir()

	m, err := NewMaterializer(tmpl, actorDir, models.ExistingFail)
	require.NoError(t, err)

	p := examplePayload()
	slug, err := m.Materialize(context.Background(), p)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(actorDir, slug, "main.js"))
	require.NoError(t, err)

	text := string(data)
	require.True(t, strings.HasPrefix(text, "..."), "entry should start with a spread: %s", text)
	require.True(t, strings.HasSuffix(text, ","), "entry should end with a comma: %s", text)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(text, "..."), ",")), &got))

	want := map[string]any{}
	raw, err := json.Marshal(p.Input)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &want))
	assert.Equal(t, want, got)
}

func TestMaterializeDeterministic(t *testing.T) {
	tmpl := writeTemplate(t, defaultTemplateFiles())
	p := examplePayload()

	read := func() map[string]string {
		actorDir := t.TempDir()
		m, err := NewMaterializer(tmpl, actorDir, models.ExistingFail)
		require.NoError(t, err)
		slug, err := m.Materialize(context.Background(), p)
		require.NoError(t, err)

		out := map[string]string{}
		for name := range defaultTemplateFiles() {
			data, err := os.ReadFile(filepath.Join(actorDir, slug, filepath.FromSlash(name)))
			require.NoError(t, err)
			out[name] = string(data)
		}
		return out
	}

	assert.Equal(t, read(), read())
}

func TestMaterializeExistingPolicy(t *testing.T) {
	tmpl := writeTemplate(t, defaultTemplateFiles())
	p := examplePayload()

	t.Run("fail", func(t *testing.T) {
		actorDir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(actorDir, "example-scraper"), 0755))

		m, err := NewMaterializer(tmpl, actorDir, models.ExistingFail)
		require.NoError(t, err)

		_, err = m.Materialize(context.Background(), p)
		assert.ErrorIs(t, err, ErrDestinationExists)
	})

	t.Run("overwrite", func(t *testing.T) {
		actorDir := t.TempDir()
		stale := filepath.Join(actorDir, "example-scraper", "stale.txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
		require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

		m, err := NewMaterializer(tmpl, actorDir, models.ExistingOverwrite)
		require.NoError(t, err)

		_, err = m.Materialize(context.Background(), p)
		require.NoError(t, err)

		_, err = os.Stat(stale)
		assert.True(t, os.IsNotExist(err), "stale file should be removed")
	})
}

func TestMaterializeRejectsEscapingSlug(t *testing.T) {
	tmpl := writeTemplate(t, defaultTemplateFiles())
	base := t.TempDir()
	actorDir := filepath.Join(base, "actors")
	require.NoError(t, os.MkdirAll(actorDir, 0755))

	sibling := filepath.Join(base, "precious-scraper", "keep.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(sibling), 0755))
	require.NoError(t, os.WriteFile(sibling, []byte("keep"), 0644))

	m, err := NewMaterializer(tmpl, actorDir, models.ExistingOverwrite)
	require.NoError(t, err)

	for _, title := range []string{"../Precious Scraper", "a/b Scraper", `a\b Scraper`, "..", ".", "   "} {
		t.Run(title, func(t *testing.T) {
			p := examplePayload()
			p.Title = title

			_, err := m.Materialize(context.Background(), p)
			require.ErrorIs(t, err, ErrInvalidSlug)
		})
	}

	assert.FileExists(t, sibling)
	entries, err := os.ReadDir(actorDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaterializeManifest(t *testing.T) {
	files := defaultTemplateFiles()
	delete(files, "main.js")
	files["src/main.ts"] = "const input = { __INPUT__ };"
	files["node_modules/dep/index.js"] = "x"
	files["template.toml"] = `exclude = ["node_modules/**", "node_modules"]

[entry]
file = "src/main.ts"
token = "__INPUT__"
`
	tmpl := writeTemplate(t, files)
	actorDir := t.TempDir()

	m, err := NewMaterializer(tmpl, actorDir, models.ExistingFail)
	require.NoError(t, err)
	assert.Equal(t, "src/main.ts", m.Config().Entry.File)

	p := examplePayload()
	p.Input = map[string]any{"maxItems": 5}
	slug, err := m.Materialize(context.Background(), p)
	require.NoError(t, err)

	dest := filepath.Join(actorDir, slug)
	data, err := os.ReadFile(filepath.Join(dest, "src", "main.ts"))
	require.NoError(t, err)
	assert.Equal(t, `const input = { ...{"maxItems":5}, };`, string(data))

	_, err = os.Stat(filepath.Join(dest, "node_modules"))
	assert.True(t, os.IsNotExist(err), "excluded directory should not be copied")
	_, err = os.Stat(filepath.Join(dest, "template.toml"))
	assert.True(t, os.IsNotExist(err), "manifest should not be copied")
}

func TestMaterializeErrors(t *testing.T) {
	t.Run("missing template root", func(t *testing.T) {
		_, err := NewMaterializer(filepath.Join(t.TempDir(), "nope"), t.TempDir(), models.ExistingFail)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing substitution target", func(t *testing.T) {
		files := defaultTemplateFiles()
		delete(files, "README.md")
		tmpl := writeTemplate(t, files)

		m, err := NewMaterializer(tmpl, t.TempDir(), models.ExistingFail)
		require.NoError(t, err)

		_, err = m.Materialize(context.Background(), examplePayload())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled", func(t *testing.T) {
		tmpl := writeTemplate(t, defaultTemplateFiles())
		m, err := NewMaterializer(tmpl, t.TempDir(), models.ExistingFail)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = m.Materialize(ctx, examplePayload())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSubstitutionApply(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte(`{"t":"[T]","u":"[T]","n":[N]}`), 0600))

	sub := Substitution{
		File:     "a.json",
		Encoding: JSONString,
		Values: map[string]Value{
			"[T]": Literal(`say "hi" [N]`),
			"[N]": JSON(3),
		},
	}
	require.NoError(t, sub.Apply(root))

	data, err := os.ReadFile(filepath.Join(root, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"t":"say \"hi\" [N]","u":"say \"hi\" [N]","n":3}`, string(data))

	info, err := os.Stat(filepath.Join(root, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
