// Package apify implements the platform over the Apify REST API v2.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/spachava753/actorgen/internal/models"
	"github.com/spachava753/actorgen/internal/platform"
)

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://api.apify.com"

// maxWaitSecs is the longest waitForFinish the API honours per request.
const maxWaitSecs = 60

// APIError is an error response of the API.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("apify: HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// RateLimit is the maximum requests per second; zero disables limiting.
	RateLimit float64
	// PollWait is the waitForFinish used while polling a run.
	PollWait   time.Duration
	HTTPClient *http.Client
}

// Client talks to the API with a single token.
type Client struct {
	baseURL  string
	token    string
	pollWait time.Duration
	http     *http.Client
	limiter  *rate.Limiter
}

var _ platform.Platform = (*Client)(nil)

// New creates a client for token.
func New(token string, opts Options) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		token:    token,
		pollWait: opts.PollWait,
		http:     opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.pollWait <= 0 || c.pollWait > maxWaitSecs*time.Second {
		c.pollWait = maxWaitSecs * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.pollWait + 30*time.Second}
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// Name returns the platform name.
func (c *Client) Name() string {
	return "apify"
}

func (c *Client) GetTask(ctx context.Context, taskID string) (models.TaskInfo, error) {
	var info models.TaskInfo
	if err := c.do(ctx, http.MethodGet, "/v2/actor-tasks/"+url.PathEscape(taskID), nil, nil, &info); err != nil {
		return models.TaskInfo{}, fmt.Errorf("getting task %s: %w", taskID, err)
	}
	return info, nil
}

type actorVersion struct {
	VersionNumber       string   `json:"versionNumber"`
	SourceType          string   `json:"sourceType"`
	GitRepoURL          string   `json:"gitRepoUrl"`
	EnvVars             []string `json:"envVars"`
	BaseDockerImage     string   `json:"baseDockerImage"`
	ApplyEnvVarsToBuild bool     `json:"applyEnvVarsToBuild"`
	BuildTag            string   `json:"buildTag"`
}

type runOptions struct {
	Build        string `json:"build"`
	TimeoutSecs  int    `json:"timeoutSecs"`
	MemoryMbytes int    `json:"memoryMbytes"`
}

type createActorRequest struct {
	Name              string         `json:"name"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	IsPublic          bool           `json:"isPublic"`
	Categories        []string       `json:"categories"`
	PictureURL        string         `json:"pictureUrl,omitempty"`
	Versions          []actorVersion `json:"versions"`
	DefaultRunOptions runOptions     `json:"defaultRunOptions"`
}

func (c *Client) CreateActor(ctx context.Context, spec models.ActorSpec) (models.ActorHandle, error) {
	req := createActorRequest{
		Name:        spec.Name,
		Title:       spec.Title,
		Description: spec.Description,
		IsPublic:    spec.IsPublic,
		Categories:  spec.Categories,
		PictureURL:  spec.PictureURL,
		Versions: []actorVersion{{
			VersionNumber:   spec.Version,
			SourceType:      "GIT_REPO",
			GitRepoURL:      spec.Source.String(),
			EnvVars:         []string{},
			BaseDockerImage: spec.Image,
			BuildTag:        spec.BuildTag,
		}},
		DefaultRunOptions: runOptions{
			Build:        spec.BuildTag,
			TimeoutSecs:  spec.TimeoutSecs,
			MemoryMbytes: spec.MemoryMB,
		},
	}

	var handle models.ActorHandle
	if err := c.do(ctx, http.MethodPost, "/v2/acts", nil, req, &handle); err != nil {
		return models.ActorHandle{}, fmt.Errorf("creating actor %s: %w", spec.Name, err)
	}
	return handle, nil
}

// BuildActor starts a build and waits for it in chunks of at most a minute.
func (c *Client) BuildActor(ctx context.Context, actorID, version string, wait time.Duration) (models.BuildResult, error) {
	deadline := time.Now().Add(wait)

	q := url.Values{}
	q.Set("version", version)
	q.Set("waitForFinish", waitParam(wait))

	var build models.BuildResult
	if err := c.do(ctx, http.MethodPost, "/v2/acts/"+url.PathEscape(actorID)+"/builds", q, nil, &build); err != nil {
		return models.BuildResult{}, fmt.Errorf("building actor %s: %w", actorID, err)
	}

	for !platform.IsTerminal(build.Status) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			build.TimedOut = true
			return build, nil
		}

		q := url.Values{}
		q.Set("waitForFinish", waitParam(remaining))
		if err := c.do(ctx, http.MethodGet, "/v2/actor-builds/"+url.PathEscape(build.ID), q, nil, &build); err != nil {
			return build, fmt.Errorf("waiting for build %s: %w", build.ID, err)
		}
	}

	return build, nil
}

// RunActor starts a run and polls until it finishes. There is no client-side
// bound; the run is limited by the actor's own timeout.
func (c *Client) RunActor(ctx context.Context, actorID string, input map[string]any) (models.RunResult, error) {
	var run models.RunResult
	if err := c.do(ctx, http.MethodPost, "/v2/acts/"+url.PathEscape(actorID)+"/runs", nil, input, &run); err != nil {
		return models.RunResult{}, fmt.Errorf("starting run of %s: %w", actorID, err)
	}

	slog.Debug("run started", "actor_id", actorID, "run_id", run.ID, "status", run.Status)

	q := url.Values{}
	q.Set("waitForFinish", waitParam(c.pollWait))
	for !platform.IsTerminal(run.Status) {
		if err := c.do(ctx, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(run.ID), q, nil, &run); err != nil {
			return run, fmt.Errorf("waiting for run %s: %w", run.ID, err)
		}
		slog.Debug("run status", "run_id", run.ID, "status", run.Status)
	}

	return run, nil
}

func (c *Client) DatasetItemCount(ctx context.Context, datasetID string) (int, error) {
	var ds struct {
		CleanItemCount int `json:"cleanItemCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/datasets/"+url.PathEscape(datasetID), nil, nil, &ds); err != nil {
		return 0, fmt.Errorf("getting dataset %s: %w", datasetID, err)
	}
	return ds.CleanItemCount, nil
}

func (c *Client) UpdateActor(ctx context.Context, actorID string, update models.ActorUpdate) error {
	if err := c.do(ctx, http.MethodPut, "/v2/acts/"+url.PathEscape(actorID), nil, update, nil); err != nil {
		return fmt.Errorf("updating actor %s: %w", actorID, err)
	}
	return nil
}

// do sends a request and decodes the "data" envelope of the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("decoding response: missing data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

func waitParam(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs > maxWaitSecs {
		secs = maxWaitSecs
	}
	return strconv.Itoa(secs)
}
