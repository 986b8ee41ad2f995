package sqlparser_test

import (
	"testing"

	"github.com/leapstack-labs/columnci/pkg/dialect"
	"github.com/leapstack-labs/columnci/pkg/sqlparser"
	"github.com/leapstack-labs/columnci/pkg/sqltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDialect(t *testing.T, name string) *dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name)
	require.NoError(t, err)
	return d
}

func parse(t *testing.T, sql string) *sqltree.Node {
	t.Helper()
	tree, err := sqlparser.Parse(sql, mustDialect(t, "snowflake"))
	require.NoError(t, err, "sql: %s", sql)
	require.NotNil(t, tree)
	return tree
}

func TestParseNilDialect(t *testing.T) {
	_, err := sqlparser.Parse("SELECT 1", nil)
	require.ErrorIs(t, err, dialect.ErrUnknownDialect)
}

// Canonical rendering doubles as a compact structural assertion.
func TestParseRender(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "simple select",
			sql:  "select amount as revenue from orders where amount > 0",
			want: "SELECT amount AS revenue FROM orders WHERE (amount > 0)",
		},
		{
			name: "distinct",
			sql:  "SELECT DISTINCT customer_id FROM orders",
			want: "SELECT DISTINCT customer_id FROM orders",
		},
		{
			name: "qualified columns",
			sql:  "select o.amount from orders o",
			want: "SELECT o.amount FROM orders AS o",
		},
		{
			name: "star and qualified star",
			sql:  "select *, t.* from t",
			want: "SELECT *, t.* FROM t",
		},
		{
			name: "left join with on",
			sql:  "select a from t x left join u y on x.id = y.id",
			want: "SELECT a FROM t AS x LEFT JOIN u AS y ON (x.id = y.id)",
		},
		{
			name: "join using",
			sql:  "select a from t join u using (id, day)",
			want: "SELECT a FROM t JOIN u USING (id, day)",
		},
		{
			name: "group by having",
			sql:  "select customer_id, sum(amount) total from orders group by customer_id having sum(amount) > 100",
			want: "SELECT customer_id, SUM(amount) AS total FROM orders GROUP BY customer_id HAVING (SUM(amount) > 100)",
		},
		{
			name: "order limit offset",
			sql:  "select a from t order by a desc limit 10 offset 5",
			want: "SELECT a FROM t ORDER BY a DESC LIMIT 10 OFFSET 5",
		},
		{
			name: "cast operator",
			sql:  "select amount::decimal(10, 2) from t",
			want: "SELECT CAST(amount AS DECIMAL(10, 2)) FROM t",
		},
		{
			name: "cast function",
			sql:  "select cast(amount as varchar) from t",
			want: "SELECT CAST(amount AS VARCHAR) FROM t",
		},
		{
			name: "case expression",
			sql:  "select case when a > 0 then 'pos' else 'neg' end from t",
			want: "SELECT CASE WHEN (a > 0) THEN 'pos' ELSE 'neg' END FROM t",
		},
		{
			name: "in list",
			sql:  "select a from t where b in (1, 2, 3)",
			want: "SELECT a FROM t WHERE b IN (1, 2, 3)",
		},
		{
			name: "not between",
			sql:  "select a from t where b not between 1 and 10",
			want: "SELECT a FROM t WHERE b NOT BETWEEN 1 AND 10",
		},
		{
			name: "is not null",
			sql:  "select a from t where b is not null",
			want: "SELECT a FROM t WHERE b IS NOT NULL",
		},
		{
			name: "string concat",
			sql:  "select first || ' ' || last from t",
			want: "SELECT ((first || ' ') || last) FROM t",
		},
		{
			name: "qualify",
			sql:  "select a from t qualify row_number() over (partition by a) = 1",
			want: "SELECT a FROM t QUALIFY (ROW_NUMBER() OVER (a) = 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.sql)
			assert.Equal(t, tt.want, tree.String())
		})
	}
}

func TestParseCTE(t *testing.T) {
	tree := parse(t, `with base as (select amount from orders)
		select amount from base`)

	ctes := tree.FindAll(sqltree.KindCTE)
	require.Len(t, ctes, 1)
	assert.Equal(t, "base", ctes[0].Name)

	// The WITH clause is the first child of the outer select.
	require.NotEmpty(t, tree.Children())
	assert.Equal(t, sqltree.KindWith, tree.Children()[0].Kind)

	// The column inside the CTE has a CTE ancestor, the outer one does not.
	cols := tree.FindAll(sqltree.KindColumn)
	require.Len(t, cols, 2)
	var inside, outside int
	for _, c := range cols {
		if c.FindAncestor(sqltree.KindCTE) != nil {
			inside++
		} else {
			outside++
		}
	}
	assert.Equal(t, 1, inside)
	assert.Equal(t, 1, outside)
}

func TestParseMultipleCTEs(t *testing.T) {
	tree := parse(t, `with a as (select 1 x), b as (select x from a)
		select x from b`)
	ctes := tree.FindAll(sqltree.KindCTE)
	require.Len(t, ctes, 2)
	assert.Equal(t, "a", ctes[0].Name)
	assert.Equal(t, "b", ctes[1].Name)
}

func TestParseUnion(t *testing.T) {
	tree := parse(t, "select a from t union all select b from u")
	assert.Equal(t, sqltree.KindUnion, tree.Kind)
	assert.Equal(t, "UNION ALL", tree.Name)
	require.Len(t, tree.Children(), 2)
	assert.Equal(t, sqltree.KindSelect, tree.Children()[0].Kind)
	assert.Equal(t, sqltree.KindSelect, tree.Children()[1].Kind)
}

func TestParseCTEWithUnionBody(t *testing.T) {
	tree := parse(t, `with base as (select a from t)
		select a from base union select a from u`)
	require.Equal(t, sqltree.KindUnion, tree.Kind)
	// The WITH clause attaches to the first select of the body.
	first := tree.Children()[0]
	require.Equal(t, sqltree.KindSelect, first.Kind)
	assert.Equal(t, sqltree.KindWith, first.Children()[0].Kind)
}

func TestParseTableFunction(t *testing.T) {
	// flatten is table-valued in the snowflake dialect.
	tree := parse(t, "select value from flatten(input) f")
	fns := tree.FindAll(sqltree.KindTableFunc)
	require.Len(t, fns, 1)
	assert.Equal(t, "FLATTEN", fns[0].Name)
}

func TestParseAnyFunctionInFromIsTableValued(t *testing.T) {
	tree := parse(t, "select x from my_custom_udtf(1) t")
	fns := tree.FindAll(sqltree.KindTableFunc)
	require.Len(t, fns, 1)
	assert.Equal(t, "MY_CUSTOM_UDTF", fns[0].Name)
	assert.Empty(t, tree.FindAll(sqltree.KindFunc))
}

func TestParseScalarFunctionStaysScalar(t *testing.T) {
	tree := parse(t, "select upper(name) from t")
	assert.Empty(t, tree.FindAll(sqltree.KindTableFunc))
	fns := tree.FindAll(sqltree.KindFunc)
	require.Len(t, fns, 1)
	assert.Equal(t, "UPPER", fns[0].Name)
}

func TestParseWindowFunction(t *testing.T) {
	tree := parse(t, "select row_number() over (partition by a order by b desc) rn from t")
	windows := tree.FindAll(sqltree.KindWindow)
	require.Len(t, windows, 1)
	assert.Len(t, windows[0].FindAll(sqltree.KindOrderBy), 1)
}

func TestParseSubqueryInFrom(t *testing.T) {
	tree := parse(t, "select a from (select a from t) sub")
	subs := tree.FindAll(sqltree.KindSubquery)
	require.Len(t, subs, 1)
	alias := subs[0].Parent()
	require.NotNil(t, alias)
	assert.Equal(t, sqltree.KindTableAlias, alias.Kind)
	assert.Equal(t, "sub", alias.Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", ""},
		{"not a select", "42"},
		{"missing from target", "select a from"},
		{"unbalanced paren", "select a from (select a from t"},
		{"trailing tokens", "select a from t )"},
		{"bad with", "with select a from t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlparser.Parse(tt.sql, mustDialect(t, "snowflake"))
			require.Error(t, err)
		})
	}
}

func TestParseErrorHasPosition(t *testing.T) {
	_, err := sqlparser.Parse("select a from", mustDialect(t, "snowflake"))
	require.Error(t, err)
	var perr *sqlparser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Pos.Line)
}
