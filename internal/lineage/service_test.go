package lineage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/columnci/internal/discovery"
	"github.com/leapstack-labs/columnci/internal/lineage"
	"github.com/leapstack-labs/columnci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	entries []discovery.LineageEntry
	nodeIDs map[string]struct{}
	code    map[string]string
	err     error

	gotEnvironmentID string
	gotNodeID        string
	gotColumn        string
	gotNames         []string
	gotUniqueIDs     []string
}

func (f *fakeQuerier) ColumnLineage(_ context.Context, environmentID, nodeID, columnName string) ([]discovery.LineageEntry, error) {
	f.gotEnvironmentID = environmentID
	f.gotNodeID = nodeID
	f.gotColumn = columnName
	return f.entries, f.err
}

func (f *fakeQuerier) NodeLineage(_ context.Context, environmentID string, names []string) (map[string]struct{}, error) {
	f.gotEnvironmentID = environmentID
	f.gotNames = names
	return f.nodeIDs, f.err
}

func (f *fakeQuerier) CompiledCode(_ context.Context, environmentID string, uniqueIDs []string) (map[string]string, error) {
	f.gotEnvironmentID = environmentID
	f.gotUniqueIDs = uniqueIDs
	return f.code, f.err
}

func TestColumnLineageFiltersChildren(t *testing.T) {
	q := &fakeQuerier{entries: []discovery.LineageEntry{
		{NodeUniqueID: "model.p.parent", Relationship: "parent"},
		{NodeUniqueID: "model.p.a", Relationship: "self"},
		{NodeUniqueID: "model.p.b", Relationship: "child"},
		{NodeUniqueID: "model.p.c", Relationship: "child"},
	}}
	svc := lineage.New(q, "42", testutil.NewTestLogger(t))

	got, err := svc.ColumnLineage(context.Background(), "model.p.a", "REVENUE")
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{"model.p.b": {}, "model.p.c": {}}, got)
	assert.Equal(t, "42", q.gotEnvironmentID)
	assert.Equal(t, "model.p.a", q.gotNodeID)
	assert.Equal(t, "REVENUE", q.gotColumn)
}

func TestColumnLineageNoConsumers(t *testing.T) {
	q := &fakeQuerier{entries: []discovery.LineageEntry{
		{NodeUniqueID: "model.p.parent", Relationship: "parent"},
	}}
	svc := lineage.New(q, "42", testutil.NewTestLogger(t))

	got, err := svc.ColumnLineage(context.Background(), "model.p.a", "REVENUE")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestColumnLineagePropagatesError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("boom")}
	svc := lineage.New(q, "42", testutil.NewTestLogger(t))

	_, err := svc.ColumnLineage(context.Background(), "model.p.a", "REVENUE")
	require.Error(t, err)
}

func TestNodeLineageMapsIDsToNames(t *testing.T) {
	q := &fakeQuerier{nodeIDs: map[string]struct{}{"model.p.downstream": {}}}
	svc := lineage.New(q, "42", testutil.NewTestLogger(t))

	got, err := svc.NodeLineage(context.Background(), []string{
		"model.jaffle_shop.orders",
		"model.jaffle_shop.stg.payments",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{"model.p.downstream": {}}, got)
	// The batch selector takes bare model names.
	assert.Equal(t, []string{"orders", "payments"}, q.gotNames)
}

func TestCompiledCodePassthrough(t *testing.T) {
	q := &fakeQuerier{code: map[string]string{"model.p.a": "select 1"}}
	svc := lineage.New(q, "42", testutil.NewTestLogger(t))

	got, err := svc.CompiledCode(context.Background(), []string{"model.p.a"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"model.p.a": "select 1"}, got)
	assert.Equal(t, []string{"model.p.a"}, q.gotUniqueIDs)
	assert.Equal(t, "42", q.gotEnvironmentID)
}
