package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/task"
)

// Loader loads datasets from local paths.
type Loader struct {
	taskLoader *task.Loader
}

// NewLoader creates a new dataset loader. requireActorURL is passed on to the
// task loader.
func NewLoader(requireActorURL bool) *Loader {
	return &Loader{
		taskLoader: &task.Loader{RequireActorURL: requireActorURL},
	}
}

// LoadFromPath loads a task list from a CSV file, or from every *.csv file of a
// directory in lexical order.
func (l *Loader) LoadFromPath(ctx context.Context, datasetPath string) (*models.Dataset, error) {
	absPath, err := filepath.Abs(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading task list: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))

	if !info.IsDir() {
		records, err := l.taskLoader.LoadFile(absPath)
		if err != nil {
			return nil, err
		}
		return &models.Dataset{Name: name, Records: records}, nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var records []models.TaskRecord
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		recs, err := l.taskLoader.LoadFile(filepath.Join(absPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		// Rows are numbered across the whole dataset, not per file
		for i := range recs {
			recs[i].Row = len(records) + i + 1
		}
		records = append(records, recs...)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no task records found in %s", absPath)
	}

	return &models.Dataset{
		Name:    name,
		Records: records,
	}, nil
}
