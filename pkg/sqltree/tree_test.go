package sqltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSelect builds SELECT amount AS revenue FROM orders WHERE amount > 0.
func buildSelect() *Node {
	sel := New(KindSelect, "")
	proj := New(KindProjection, "").Add(
		New(KindAlias, "revenue").Add(New(KindColumn, "amount")),
	)
	from := New(KindFrom, "").Add(New(KindTable, "orders"))
	where := New(KindWhere, "").Add(
		New(KindBinary, ">").Add(New(KindColumn, "amount"), New(KindLiteral, "0")),
	)
	return sel.Add(proj, from, where)
}

func TestAddSetsParentLinks(t *testing.T) {
	sel := buildSelect()
	require.Len(t, sel.Children(), 3)
	for _, c := range sel.Children() {
		assert.Same(t, sel, c.Parent())
	}
	assert.Nil(t, sel.Parent())
}

func TestAddSkipsNil(t *testing.T) {
	n := New(KindSelect, "")
	n.Add(nil, New(KindProjection, ""), nil)
	assert.Len(t, n.Children(), 1)
}

func TestPrepend(t *testing.T) {
	sel := buildSelect()
	with := New(KindWith, "").Add(New(KindCTE, "base"))
	sel.Prepend(with)

	require.Len(t, sel.Children(), 4)
	assert.Same(t, with, sel.Children()[0])
	assert.Same(t, sel, with.Parent())
	assert.Equal(t, KindProjection, sel.Children()[1].Kind)
}

func TestRootAndDepth(t *testing.T) {
	sel := buildSelect()
	col := sel.FindAll(KindColumn)[0]

	assert.Same(t, sel, col.Root())
	assert.Equal(t, 0, sel.Depth())
	assert.Equal(t, 3, col.Depth()) // Select > Projection > Alias > Column
}

func TestFindAncestor(t *testing.T) {
	sel := buildSelect()
	col := sel.FindAll(KindColumn)[0] // amount inside the alias

	alias := col.FindAncestor(KindAlias)
	require.NotNil(t, alias)
	assert.Equal(t, "revenue", alias.Name)

	assert.Nil(t, col.FindAncestor(KindCTE))
	assert.NotNil(t, col.FindAncestor(KindCTE, KindProjection))
}

func TestFindAll(t *testing.T) {
	sel := buildSelect()
	cols := sel.FindAll(KindColumn)
	require.Len(t, cols, 2)
	assert.Equal(t, "amount", cols[0].Name)
	assert.Len(t, sel.FindAll(KindCTE), 0)
}

func TestNodesPreorder(t *testing.T) {
	sel := buildSelect()
	nodes := sel.Nodes()
	assert.Equal(t, sel.Size(), len(nodes))
	assert.Same(t, sel, nodes[0])
	assert.Equal(t, KindProjection, nodes[1].Kind)
}

func TestWalkStopsDescent(t *testing.T) {
	sel := buildSelect()
	var visited []Kind
	sel.Walk(func(n *Node) bool {
		visited = append(visited, n.Kind)
		return n.Kind != KindProjection // do not descend into the projection
	})
	assert.Contains(t, visited, KindProjection)
	assert.NotContains(t, visited, KindAlias)
	assert.Contains(t, visited, KindFrom)
}

func TestSameLabel(t *testing.T) {
	a := New(KindColumn, "amount")
	b := New(KindColumn, "amount")
	c := New(KindColumn, "total")
	q := New(KindColumn, "amount")
	q.Qualifier = "o"

	assert.True(t, a.SameLabel(b))
	assert.False(t, a.SameLabel(c))
	assert.False(t, a.SameLabel(q))
	assert.False(t, a.SameLabel(New(KindLiteral, "amount")))
}

func TestString(t *testing.T) {
	sel := buildSelect()
	assert.Equal(t,
		"SELECT amount AS revenue FROM orders WHERE (amount > 0)",
		sel.String())
}

func TestStringQualified(t *testing.T) {
	col := New(KindColumn, "amount")
	col.Qualifier = "o"
	assert.Equal(t, "o.amount", col.String())

	star := New(KindStar, "")
	star.Qualifier = "t"
	assert.Equal(t, "t.*", star.String())
}

func TestStringDeterministic(t *testing.T) {
	a := buildSelect()
	b := buildSelect()
	assert.Equal(t, a.String(), b.String())
}
