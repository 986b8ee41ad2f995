package dbtcloud_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/columnci/internal/dbtcloud"
	"github.com/leapstack-labs/columnci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, dbtcloud.RunQueued.Terminal())
	assert.False(t, dbtcloud.RunStarting.Terminal())
	assert.False(t, dbtcloud.RunRunning.Terminal())
	assert.True(t, dbtcloud.RunSuccess.Terminal())
	assert.True(t, dbtcloud.RunError.Terminal())
	assert.True(t, dbtcloud.RunCancelled.Terminal())
}

func TestGetJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/100/jobs/200/", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data": {
			"id": 200,
			"name": "CI job",
			"deferring_environment_id": 42,
			"execute_steps": ["dbt build -s state:modified+"]
		}}`)
	}))
	t.Cleanup(srv.Close)

	c := dbtcloud.NewClientWithBaseURL(srv.URL, "secret", testutil.NewTestLogger(t))
	job, err := c.GetJob(context.Background(), "100", "200")
	require.NoError(t, err)

	assert.Equal(t, int64(200), job.ID)
	assert.Equal(t, "CI job", job.Name)
	assert.Equal(t, int64(42), job.DeferringEnvironmentID)
	assert.Equal(t, []string{"dbt build -s state:modified+"}, job.ExecuteSteps)
}

func TestTriggerJob(t *testing.T) {
	var got dbtcloud.TriggerPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/100/jobs/200/run/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"data": {"id": 9000, "status": 1}}`)
	}))
	t.Cleanup(srv.Close)

	c := dbtcloud.NewClientWithBaseURL(srv.URL, "secret", testutil.NewTestLogger(t))
	run, err := c.TriggerJob(context.Background(), "100", "200", dbtcloud.TriggerPayload{
		Cause:               "columnci",
		SchemaOverride:      "dbt_cloud_pr_200_7",
		GitBranch:           "feature/prune",
		GithubPullRequestID: 7,
		StepsOverride:       []string{"dbt build -s state:modified+ --exclude stg_orders"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(9000), run.ID)
	assert.Equal(t, dbtcloud.RunQueued, run.Status)
	assert.Equal(t, "columnci", got.Cause)
	assert.Equal(t, "dbt_cloud_pr_200_7", got.SchemaOverride)
	assert.Equal(t, 7, got.GithubPullRequestID)
	require.Len(t, got.StepsOverride, 1)
}

func TestWaitForRunPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/100/runs/9000/", r.URL.Path)
		status := 3
		if calls.Add(1) >= 3 {
			status = 10
		}
		fmt.Fprintf(w, `{"data": {"id": 9000, "status": %d}}`, status)
	}))
	t.Cleanup(srv.Close)

	c := dbtcloud.NewClientWithBaseURL(srv.URL, "secret", testutil.NewTestLogger(t))
	run, err := c.WaitForRun(context.Background(), "100", 9000)
	require.NoError(t, err)

	assert.Equal(t, dbtcloud.RunSuccess, run.Status)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitForRunContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": {"id": 9000, "status": 3}}`)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := dbtcloud.NewClientWithBaseURL(srv.URL, "secret", testutil.NewTestLogger(t))
	_, err := c.WaitForRun(ctx, "100", 9000)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status": {"user_message": "job not found"}}`)
	}))
	t.Cleanup(srv.Close)

	c := dbtcloud.NewClientWithBaseURL(srv.URL, "secret", testutil.NewTestLogger(t))
	_, err := c.GetJob(context.Background(), "100", "200")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
