// Package lineage exposes downstream-consumer queries as the narrow
// service the analyzer consumes, on top of the Discovery API client.
package lineage

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/columnci/internal/discovery"
)

// relationshipChild marks a lineage entry as a descendant of the
// queried node. Other relationships (parent, self) are ignored.
const relationshipChild = "child"

// Querier is the slice of the discovery client the service needs.
type Querier interface {
	ColumnLineage(ctx context.Context, environmentID, nodeID, columnName string) ([]discovery.LineageEntry, error)
	NodeLineage(ctx context.Context, environmentID string, names []string) (map[string]struct{}, error)
	CompiledCode(ctx context.Context, environmentID string, uniqueIDs []string) (map[string]string, error)
}

// Service answers lineage questions for one environment. It implements
// analyze.LineageService.
type Service struct {
	client        Querier
	environmentID string
	logger        *slog.Logger
}

// New creates a lineage service bound to an environment.
func New(client Querier, environmentID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{client: client, environmentID: environmentID, logger: logger}
}

// ColumnLineage returns the unique IDs of models that consume the given
// column of the given model.
func (s *Service) ColumnLineage(ctx context.Context, uniqueID, columnName string) (map[string]struct{}, error) {
	entries, err := s.client.ColumnLineage(ctx, s.environmentID, uniqueID, columnName)
	if err != nil {
		return nil, err
	}

	downstream := make(map[string]struct{})
	for _, entry := range entries {
		if entry.Relationship == relationshipChild {
			downstream[entry.NodeUniqueID] = struct{}{}
		}
	}

	if len(downstream) > 0 {
		ids := make([]string, 0, len(downstream))
		for id := range downstream {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		s.logger.Info("column is used downstream",
			slog.String("unique_id", uniqueID),
			slog.String("column", columnName),
			slog.String("consumers", strings.Join(ids, ", ")))
	} else {
		s.logger.Info("column is not used anywhere downstream",
			slog.String("unique_id", uniqueID),
			slog.String("column", columnName))
	}
	return downstream, nil
}

// NodeLineage returns the unique IDs of models downstream of any of the
// given models, excluding the models themselves. The batch query takes
// bare model names, the trailing segment of each unique ID.
func (s *Service) NodeLineage(ctx context.Context, uniqueIDs []string) (map[string]struct{}, error) {
	names := make([]string, 0, len(uniqueIDs))
	for _, id := range uniqueIDs {
		parts := strings.Split(id, ".")
		names = append(names, parts[len(parts)-1])
	}
	return s.client.NodeLineage(ctx, s.environmentID, names)
}

// CompiledCode returns the compiled SQL of the given models as last run
// in the environment, keyed by unique ID.
func (s *Service) CompiledCode(ctx context.Context, uniqueIDs []string) (map[string]string, error) {
	return s.client.CompiledCode(ctx, s.environmentID, uniqueIDs)
}
