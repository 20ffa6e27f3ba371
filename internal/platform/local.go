package platform

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spachava753/actorgen/internal/models"
)

// LocalOwner is the owner id reported by backends without accounts.
const LocalOwner = "local"

// LoadLocalTask reads <dir>/<id>.json, the task store of the local backends.
func LoadLocalTask(dir, id string) (models.TaskInfo, error) {
	path := filepath.Join(dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return models.TaskInfo{}, fmt.Errorf("reading task %s: %w", id, err)
	}

	var info models.TaskInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return models.TaskInfo{}, fmt.Errorf("parsing task %s: %w", path, err)
	}
	if info.ID == "" {
		info.ID = id
	}
	if info.OwnerID == "" {
		info.OwnerID = LocalOwner
	}
	return info, nil
}

// CountItems counts the JSON objects an actor prints on stdout, one per line.
// Other lines are ignored, as are items that are empty objects.
func CountItems(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal(line, &item); err != nil {
			continue
		}
		if len(item) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}

// Datasets holds item counts of runs executed by a local backend.
type Datasets struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewDatasets() *Datasets {
	return &Datasets{counts: make(map[string]int)}
}

func (d *Datasets) Put(id string, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[id] = count
}

func (d *Datasets) Count(id string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.counts[id]
	if !ok {
		return 0, fmt.Errorf("dataset %s not found", id)
	}
	return n, nil
}
