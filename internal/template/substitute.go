package template

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Encoding says how a value is written at its placeholder.
type Encoding int

const (
	// Raw inserts the rendered value verbatim.
	Raw Encoding = iota
	// JSONString escapes the value for use inside a JSON string literal.
	JSONString
)

// Value is a typed substitution value.
type Value interface {
	Render(enc Encoding) (string, error)
}

// Literal is a plain string value.
type Literal string

func (l Literal) Render(enc Encoding) (string, error) {
	if enc != JSONString {
		return string(l), nil
	}
	b, err := json.Marshal(string(l))
	if err != nil {
		return "", err
	}
	return string(b[1 : len(b)-1]), nil
}

// JSON renders v as a JSON document.
func JSON(v any) Value {
	return jsonValue{v: v}
}

type jsonValue struct{ v any }

func (j jsonValue) Render(Encoding) (string, error) {
	b, err := json.Marshal(j.v)
	if err != nil {
		return "", fmt.Errorf("encoding value: %w", err)
	}
	return string(b), nil
}

// Spread renders an object as a JavaScript spread element, "...{...},", so it can
// be dropped into an object literal. JSON is valid JavaScript, which makes any
// string-literal escaping unnecessary.
func Spread(v map[string]any) Value {
	return spreadValue{v: v}
}

type spreadValue struct{ v map[string]any }

func (s spreadValue) Render(Encoding) (string, error) {
	obj := s.v
	if obj == nil {
		obj = map[string]any{}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encoding input: %w", err)
	}
	return "..." + string(b) + ",", nil
}

// Substitution replaces placeholders in a single file.
type Substitution struct {
	File     string
	Encoding Encoding
	Values   map[string]Value
}

// Apply rewrites the file under root in a single pass, replacing every occurrence
// of every placeholder. The replacement text is never rescanned.
func (s Substitution) Apply(root string) error {
	path := filepath.Join(root, filepath.FromSlash(s.File))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("substitution target %s: %w", s.File, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.File, err)
	}
	content := string(data)

	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		rendered, err := s.Values[k].Render(s.Encoding)
		if err != nil {
			return fmt.Errorf("rendering %s for %s: %w", k, s.File, err)
		}
		if !strings.Contains(content, k) {
			slog.Warn("placeholder not found in template file", "file", s.File, "placeholder", k)
		}
		pairs = append(pairs, k, rendered)
	}

	out := strings.NewReplacer(pairs...).Replace(content)

	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", s.File, err)
	}
	return nil
}
