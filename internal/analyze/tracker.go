package analyze

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LineageService answers downstream-consumer queries against the
// metadata platform.
type LineageService interface {
	// ColumnLineage returns the unique IDs of models that consume the
	// given column of the given model.
	ColumnLineage(ctx context.Context, uniqueID, columnName string) (map[string]struct{}, error)

	// NodeLineage returns the unique IDs of models downstream of any of
	// the given models, excluding the models themselves.
	NodeLineage(ctx context.Context, uniqueIDs []string) (map[string]struct{}, error)
}

// ColumnTracker deduplicates column-lineage lookups across one CI run
// and accumulates the impacted-node set. Queries for distinct columns
// are independent and issued concurrently; the tracked-key check and
// mark happens atomically before dispatch, so each unique_id.column pair
// is queried at most once per run.
type ColumnTracker struct {
	lineage LineageService
	logger  *slog.Logger

	mu       sync.Mutex
	tracked  map[string]struct{}
	impacted map[string]struct{}
}

// NewColumnTracker creates a tracker for one run.
func NewColumnTracker(lineage LineageService, logger *slog.Logger) *ColumnTracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ColumnTracker{
		lineage:  lineage,
		logger:   logger,
		tracked:  make(map[string]struct{}),
		impacted: make(map[string]struct{}),
	}
}

// Track queries lineage for every changed column of the node that has
// not been queried yet this run, and returns the impacted IDs found by
// this call only. A failed lookup degrades to no additional impact and
// is logged, never retried.
func (t *ColumnTracker) Track(ctx context.Context, node *Node) map[string]struct{} {
	delta := make(map[string]struct{})

	g, ctx := errgroup.WithContext(ctx)
	for column := range node.ColumnChanges {
		column := column
		key := node.UniqueID + "." + column

		t.mu.Lock()
		if _, done := t.tracked[key]; done {
			t.mu.Unlock()
			continue
		}
		t.tracked[key] = struct{}{}
		t.mu.Unlock()

		t.logger.Info("column has a change, finding downstream consumers",
			slog.String("unique_id", node.UniqueID), slog.String("column", column))

		// The metadata platform stores identifiers in the dialect's
		// folded form; the fold applies only to the query string.
		lookup := node.Dialect.LookupKey(column)

		g.Go(func() error {
			ids, err := t.lineage.ColumnLineage(ctx, node.UniqueID, lookup)
			if err != nil {
				t.logger.Error("column lineage lookup failed, assuming no impact",
					slog.String("unique_id", node.UniqueID),
					slog.String("column", column),
					slog.Any("error", err))
				return nil
			}
			t.mu.Lock()
			for id := range ids {
				delta[id] = struct{}{}
				t.impacted[id] = struct{}{}
			}
			t.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return delta
}

// ImpactedIDs returns a copy of every unique ID found impacted so far.
func (t *ColumnTracker) ImpactedIDs() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]struct{}, len(t.impacted))
	for id := range t.impacted {
		out[id] = struct{}{}
	}
	return out
}
