// Package dbtcloud implements a client for the dbt Cloud administrative
// API: fetching job definitions, triggering runs, and polling run status.
package dbtcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a job run.
type RunStatus int

// Run statuses as reported by the administrative API.
const (
	RunQueued    RunStatus = 1
	RunStarting  RunStatus = 2
	RunRunning   RunStatus = 3
	RunSuccess   RunStatus = 10
	RunError     RunStatus = 20
	RunCancelled RunStatus = 30
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunError || s == RunCancelled
}

// Job is a dbt Cloud job definition. The deferring environment is the
// environment whose artifacts CI runs compare against.
type Job struct {
	ID                     int64    `json:"id"`
	Name                   string   `json:"name"`
	DeferringEnvironmentID int64    `json:"deferring_environment_id"`
	ExecuteSteps           []string `json:"execute_steps"`
}

// Run is one execution of a job.
type Run struct {
	ID     int64     `json:"id"`
	Status RunStatus `json:"status"`
}

// TriggerPayload is the body of a trigger-run request.
type TriggerPayload struct {
	Cause               string   `json:"cause"`
	SchemaOverride      string   `json:"schema_override,omitempty"`
	GitBranch           string   `json:"git_branch,omitempty"`
	GithubPullRequestID int      `json:"github_pull_request_id,omitempty"`
	StepsOverride       []string `json:"steps_override,omitempty"`
}

// Client talks to the dbt Cloud administrative API.
type Client struct {
	baseURL      string
	token        string
	httpc        *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewClient creates an administrative API client for the given host
// (e.g. "cloud.getdbt.com").
func NewClient(host, serviceToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:      "https://" + strings.TrimPrefix(host, "https://") + "/api/v2",
		token:        serviceToken,
		httpc:        &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
		pollInterval: 15 * time.Second,
	}
}

// NewClientWithBaseURL creates a client against an explicit base URL.
// Used in tests.
func NewClientWithBaseURL(baseURL, serviceToken string, logger *slog.Logger) *Client {
	c := NewClient("", serviceToken, logger)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	c.pollInterval = 10 * time.Millisecond
	return c
}

// do issues one request and decodes the "data" payload into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("dbt cloud request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("dbt cloud request returned %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode dbt cloud response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode dbt cloud data: %w", err)
		}
	}
	return nil
}

// GetJob fetches a job definition.
func (c *Client) GetJob(ctx context.Context, accountID, jobID string) (*Job, error) {
	var job Job
	path := fmt.Sprintf("/accounts/%s/jobs/%s/", accountID, jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// TriggerJob starts a run of the job.
func (c *Client) TriggerJob(ctx context.Context, accountID, jobID string, payload TriggerPayload) (*Run, error) {
	c.logger.Info("triggering dbt cloud job",
		slog.String("job_id", jobID),
		slog.String("schema", payload.SchemaOverride),
		slog.Int("pr_id", payload.GithubPullRequestID))

	var run Run
	path := fmt.Sprintf("/accounts/%s/jobs/%s/run/", accountID, jobID)
	if err := c.do(ctx, http.MethodPost, path, payload, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, accountID string, runID int64) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/accounts/%s/runs/%d/", accountID, runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// WaitForRun polls the run until it reaches a terminal status or the
// context is cancelled.
func (c *Client) WaitForRun(ctx context.Context, accountID string, runID int64) (*Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, accountID, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		c.logger.Debug("run still in progress",
			slog.Int64("run_id", runID), slog.Int("status", int(run.Status)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
