package task

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spachava753/actorgen/internal/models"
)

// Column names of the task list.
const (
	ColTaskURL     = "task_url"
	ColName        = "name"
	ColURL         = "url"
	ColAccessToken = "access_token"
	ColActorURL    = "actor_url"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{ColTaskURL, ColName, ColURL, ColAccessToken}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Loader loads task records from CSV task lists.
type Loader struct {
	// RequireActorURL makes actor_url mandatory, as the update path needs it.
	RequireActorURL bool
}

// NewLoader creates a new task loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFile loads all records from a CSV file.
func (l *Loader) LoadFile(path string) ([]models.TaskRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task list: %w", err)
	}
	defer f.Close()

	records, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return records, nil
}

// Load reads a header row followed by one record per row.
func (l *Loader) Load(r io.Reader) ([]models.TaskRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty task list")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		// Spreadsheet exports sometimes prepend a BOM
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		index[h] = i
	}

	required := RequiredColumns
	if l.RequireActorURL {
		required = append(append([]string{}, required...), ColActorURL)
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []models.TaskRecord
	for n := 1; ; n++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", n, err)
		}

		rec := models.TaskRecord{
			TaskURL:     get(row, ColTaskURL),
			Name:        get(row, ColName),
			SiteURL:     get(row, ColURL),
			AccessToken: get(row, ColAccessToken),
			ActorURL:    get(row, ColActorURL),
			Row:         n,
		}
		if err := l.ValidateRecord(rec); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// ValidateRecord checks the fields every record needs.
func (l *Loader) ValidateRecord(rec models.TaskRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("name is empty")
	}
	if l.RequireActorURL {
		if rec.ActorURL == "" {
			return fmt.Errorf("actor_url is empty")
		}
		return nil
	}
	if rec.TaskURL == "" {
		return fmt.Errorf("task_url is empty")
	}
	return nil
}
