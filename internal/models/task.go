package models

import "fmt"

// TaskRecord is one row of the task list.
type TaskRecord struct {
	TaskURL     string `json:"task_url"`
	Name        string `json:"name"`
	SiteURL     string `json:"url"`
	AccessToken string `json:"-"`
	ActorURL    string `json:"actor_url,omitempty"`
	Row         int    `json:"row"`
}

// TaskInfo is what the remote platform knows about the task a record points at.
type TaskInfo struct {
	ID      string         `json:"id"`
	OwnerID string         `json:"userId"`
	Input   map[string]any `json:"input"`
}

// StartURLs returns the startUrls field of the task input.
func (t *TaskInfo) StartURLs() (any, error) {
	v, ok := t.Input["startUrls"]
	if !ok || v == nil {
		return nil, fmt.Errorf("task %s input has no startUrls", t.ID)
	}
	return v, nil
}

// Dataset is an ordered task list, possibly assembled from several files.
type Dataset struct {
	Name    string
	Records []TaskRecord
}
