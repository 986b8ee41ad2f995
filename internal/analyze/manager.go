package analyze

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// NodeManager owns the batch of modified nodes and the candidate
// downstream universe, and computes the final exclusion list.
type NodeManager struct {
	lineage LineageService
	tracker *ColumnTracker
	logger  *slog.Logger

	nodes        map[string]*Node
	allUniqueIDs map[string]struct{}
	impacted     map[string]struct{}
}

// NewNodeManager creates a manager for one run. allUniqueIDs is the set
// of models strictly downstream of any changed node, as reported by the
// build tool.
func NewNodeManager(nodes map[string]*Node, allUniqueIDs map[string]struct{}, lineage LineageService, logger *slog.Logger) *NodeManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NodeManager{
		lineage:      lineage,
		tracker:      NewColumnTracker(lineage, logger),
		logger:       logger,
		nodes:        nodes,
		allUniqueIDs: allUniqueIDs,
		impacted:     make(map[string]struct{}),
	}
}

// NodeUniqueIDs returns the unique IDs of the managed nodes, sorted.
func (m *NodeManager) NodeUniqueIDs() []string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns the managed nodes ordered by unique ID.
func (m *NodeManager) Nodes() []*Node {
	nodes := make([]*Node, 0, len(m.nodes))
	for _, id := range m.NodeUniqueIDs() {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes
}

// ExcludedNodes returns the bare names of downstream models that are not
// impacted by any change and can be excluded from the build. With no
// changed nodes or no known downstream universe there is nothing to
// decide and nothing is excluded.
func (m *NodeManager) ExcludedNodes(ctx context.Context) []string {
	if len(m.nodes) == 0 || len(m.allUniqueIDs) == 0 {
		return nil
	}

	// Column-level changes
	for _, node := range m.Nodes() {
		if len(node.ColumnChanges) == 0 {
			continue
		}
		for id := range m.tracker.Track(ctx, node) {
			m.impacted[id] = struct{}{}
		}
	}

	// Node-level changes: one batch lineage query for every node whose
	// changes could not be attributed to columns.
	var structural []string
	for _, node := range m.Nodes() {
		if node.IgnoreColumnChanges {
			structural = append(structural, node.UniqueID)
		}
	}
	if len(structural) > 0 {
		m.logger.Info("some nodes have node level breaking changes",
			slog.String("nodes", strings.Join(structural, ", ")))
		ids, err := m.lineage.NodeLineage(ctx, structural)
		if err != nil {
			m.logger.Error("node lineage lookup failed, assuming no impact",
				slog.Any("error", err))
		} else {
			for id := range ids {
				m.impacted[id] = struct{}{}
			}
		}
	}

	var excluded []string
	for id := range m.allUniqueIDs {
		if _, hit := m.impacted[id]; hit {
			continue
		}
		parts := strings.Split(id, ".")
		excluded = append(excluded, parts[len(parts)-1])
	}
	sort.Strings(excluded)
	return excluded
}
