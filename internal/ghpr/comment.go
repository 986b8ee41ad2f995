// Package ghpr posts analysis results as comments on the GitHub pull
// request that triggered the CI run.
package ghpr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// prRefPattern matches the GITHUB_REF of a pull-request merge ref.
var prRefPattern = regexp.MustCompile(`refs/pull/(\d+)/merge`)

// PRNumber extracts the pull request number from a GITHUB_REF value.
func PRNumber(ref string) (int, bool) {
	m := prRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DryRunMessage renders the would-be exclusion list as a markdown
// comment body.
func DryRunMessage(excluded []string) string {
	nodes := append([]string{}, excluded...)
	sort.Strings(nodes)

	var list string
	if len(nodes) > 0 {
		var sb strings.Builder
		for _, node := range nodes {
			sb.WriteString("* ")
			sb.WriteString(node)
			sb.WriteString("\n")
		}
		list = strings.TrimRight(sb.String(), "\n")
	} else {
		list = "_No models excluded_"
	}

	return fmt.Sprintf("## Column-aware CI Results (dry run)\n\n"+
		"The total number of models that would've been excluded from the build are: %d\n"+
		"<details>"+
		"<summary>Models that would've been excluded from the build are listed below:</summary>\n\n"+
		"%s\n</details>", len(excluded), list)
}

// Poster posts comments to one pull request.
type Poster struct {
	token      string
	repository string // owner/repo
	prNumber   int
	httpc      *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewPoster creates a poster for the pull request identified by the
// GITHUB_REPOSITORY and GITHUB_REF values of the workflow run. Returns
// false when any of the three inputs is missing or the ref is not a
// pull request.
func NewPoster(token, repository, ref string, logger *slog.Logger) (*Poster, bool) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	prNumber, ok := PRNumber(ref)
	if token == "" || repository == "" || !ok {
		return nil, false
	}
	return &Poster{
		token:      token,
		repository: repository,
		prNumber:   prNumber,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.github.com",
		logger:     logger,
	}, true
}

// SetBaseURL overrides the GitHub API base URL. Used in tests.
func (p *Poster) SetBaseURL(u string) {
	p.baseURL = strings.TrimSuffix(u, "/")
}

// Comment posts a markdown comment to the pull request.
func (p *Poster) Comment(ctx context.Context, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments", p.baseURL, p.repository, p.prNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github request returned %d: %s", resp.StatusCode, raw)
	}

	p.logger.Info("posted comment to pull request",
		slog.String("repository", p.repository), slog.Int("pr", p.prNumber))
	return nil
}
