// Package discovery implements a client for the dbt Cloud Discovery API,
// the GraphQL metadata endpoint that answers lineage and compiled-code
// queries.
package discovery

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

// pageSize is the number of models requested per compiled-code page.
const pageSize = 500

// Client talks to the Discovery API over GraphQL.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
	logger   *slog.Logger
}

// NewClient creates a Discovery API client for the given dbt Cloud host
// (e.g. "cloud.getdbt.com"). The metadata endpoint lives on the
// "metadata." subdomain of the account host.
func NewClient(host, serviceToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		endpoint: "https://metadata." + strings.TrimPrefix(host, "https://") + "/graphql",
		token:    serviceToken,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// NewClientWithEndpoint creates a client against an explicit GraphQL
// endpoint URL. Used in tests and for single-tenant deployments.
func NewClientWithEndpoint(endpoint, serviceToken string, logger *slog.Logger) *Client {
	c := NewClient("", serviceToken, logger)
	c.endpoint = endpoint
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// query posts one GraphQL request and decodes the "data" payload into out.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("discovery request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discovery request returned %d: %s", resp.StatusCode, payload)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode discovery response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("discovery query failed: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode discovery data: %w", err)
		}
	}
	return nil
}

// LineageEntry is one node of a column-lineage answer.
type LineageEntry struct {
	NodeUniqueID string `json:"nodeUniqueId"`
	Relationship string `json:"relationship"`
}

// ColumnLineage returns every node related to the given column, with its
// relationship to the queried node. Callers filter for descendants.
func (c *Client) ColumnLineage(ctx context.Context, environmentID, nodeID, columnName string) ([]LineageEntry, error) {
	c.logger.Debug("fetching column lineage",
		slog.String("environment_id", environmentID),
		slog.String("node_id", nodeID),
		slog.String("column", columnName))

	variables := map[string]any{
		"environmentId": environmentID,
		"nodeUniqueId":  nodeID,
		"filters":       map[string]any{"columnName": columnName},
	}

	var data struct {
		Column struct {
			Lineage []LineageEntry `json:"lineage"`
		} `json:"column"`
	}
	if err := c.query(ctx, queryColumnLineage, variables, &data); err != nil {
		return nil, err
	}
	return data.Column.Lineage, nil
}

// NodeLineage returns the unique IDs of every model downstream of the
// named models, excluding the models themselves. Names are bare model
// names, not unique IDs, matching the selector syntax of the API.
func (c *Client) NodeLineage(ctx context.Context, environmentID string, names []string) (map[string]struct{}, error) {
	c.logger.Debug("fetching node lineage",
		slog.String("environment_id", environmentID),
		slog.Int("node_count", len(names)))

	variables := map[string]any{
		"environmentId": environmentID,
		"filter": map[string]any{
			"select":  "--select " + strings.Join(names, "+ ") + "+",
			"exclude": "--exclude " + strings.Join(names, " "),
			"types":   []string{"Model"},
		},
	}

	var data struct {
		Environment struct {
			Applied struct {
				Lineage []struct {
					UniqueID string `json:"uniqueId"`
				} `json:"lineage"`
			} `json:"applied"`
		} `json:"environment"`
	}
	if err := c.query(ctx, queryNodeLineage, variables, &data); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(data.Environment.Applied.Lineage))
	for _, entry := range data.Environment.Applied.Lineage {
		ids[entry.UniqueID] = struct{}{}
	}
	return ids, nil
}

// CompiledCode returns the compiled SQL of the given models in the
// environment, keyed by unique ID. Results are fetched with cursor
// pagination.
func (c *Client) CompiledCode(ctx context.Context, environmentID string, uniqueIDs []string) (map[string]string, error) {
	c.logger.Debug("fetching compiled code",
		slog.String("environment_id", environmentID),
		slog.Int("node_count", len(uniqueIDs)))

	code := make(map[string]string)
	var after any

	for {
		variables := map[string]any{
			"first":         pageSize,
			"after":         after,
			"environmentId": environmentID,
			"filter":        map[string]any{"uniqueIds": uniqueIDs},
		}

		var data struct {
			Environment struct {
				Applied struct {
					Models struct {
						Edges []struct {
							Node struct {
								UniqueID     string `json:"uniqueId"`
								CompiledCode string `json:"compiledCode"`
							} `json:"node"`
						} `json:"edges"`
						PageInfo struct {
							EndCursor   string `json:"endCursor"`
							HasNextPage bool   `json:"hasNextPage"`
						} `json:"pageInfo"`
					} `json:"models"`
				} `json:"applied"`
			} `json:"environment"`
		}
		if err := c.query(ctx, queryCompiledCode, variables, &data); err != nil {
			return nil, err
		}

		models := data.Environment.Applied.Models
		for _, edge := range models.Edges {
			code[edge.Node.UniqueID] = edge.Node.CompiledCode
		}
		if !models.PageInfo.HasNextPage {
			break
		}
		after = models.PageInfo.EndCursor
	}

	c.logger.Info("retrieved compiled code",
		slog.Int("requested", len(uniqueIDs)), slog.Int("retrieved", len(code)))
	return code, nil
}
