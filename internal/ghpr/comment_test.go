package ghpr_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapstack-labs/columnci/internal/ghpr"
	"github.com/leapstack-labs/columnci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPRNumber(t *testing.T) {
	tests := []struct {
		ref  string
		want int
		ok   bool
	}{
		{"refs/pull/42/merge", 42, true},
		{"refs/pull/1/merge", 1, true},
		{"refs/heads/main", 0, false},
		{"refs/tags/v1.0.0", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			n, ok := ghpr.PRNumber(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestDryRunMessage(t *testing.T) {
	msg := ghpr.DryRunMessage([]string{"stg_orders", "dim_customers"})

	assert.Contains(t, msg, "would've been excluded from the build are: 2")
	assert.Contains(t, msg, "* dim_customers\n* stg_orders")
	assert.Contains(t, msg, "<details>")
}

func TestDryRunMessageEmpty(t *testing.T) {
	msg := ghpr.DryRunMessage(nil)
	assert.Contains(t, msg, "are: 0")
	assert.Contains(t, msg, "_No models excluded_")
}

func TestNewPoster(t *testing.T) {
	logger := testutil.NewTestLogger(t)

	_, ok := ghpr.NewPoster("", "owner/repo", "refs/pull/42/merge", logger)
	assert.False(t, ok, "missing token")

	_, ok = ghpr.NewPoster("tok", "", "refs/pull/42/merge", logger)
	assert.False(t, ok, "missing repository")

	_, ok = ghpr.NewPoster("tok", "owner/repo", "refs/heads/main", logger)
	assert.False(t, ok, "not a pull request ref")

	p, ok := ghpr.NewPoster("tok", "owner/repo", "refs/pull/42/merge", logger)
	require.True(t, ok)
	require.NotNil(t, p)
}

func TestComment(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	p, ok := ghpr.NewPoster("tok", "owner/repo", "refs/pull/42/merge", testutil.NewTestLogger(t))
	require.True(t, ok)
	p.SetBaseURL(srv.URL)

	require.NoError(t, p.Comment(context.Background(), "hello"))
	assert.Equal(t, "/repos/owner/repo/issues/42/comments", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, map[string]string{"body": "hello"}, gotBody)
}

func TestCommentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "forbidden"}`)
	}))
	t.Cleanup(srv.Close)

	p, ok := ghpr.NewPoster("tok", "owner/repo", "refs/pull/42/merge", testutil.NewTestLogger(t))
	require.True(t, ok)
	p.SetBaseURL(srv.URL)

	err := p.Comment(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
