// Package analyze classifies SQL edits between two versions of a model
// as breaking or benign, resolves the output columns they affect, and
// computes the minimal set of downstream models that can be excluded
// from a CI build.
package analyze

import (
	"github.com/leapstack-labs/columnci/pkg/diff"
	"github.com/leapstack-labs/columnci/pkg/sqltree"
)

// BreakingChange wraps one edit that could affect downstream consumers:
// a removed or altered expression, or an insertion outside the top-level
// projection list.
type BreakingChange struct {
	Edit diff.Edit

	resolved bool
	column   string
	hasCol   bool
}

// NewBreakingChange wraps an edit.
func NewBreakingChange(edit diff.Edit) *BreakingChange {
	return &BreakingChange{Edit: edit}
}

// ColumnName returns the output column this change affects. The second
// return is false when the change is structural and cannot be pinned to
// a single column. The resolution is memoized on first call.
func (bc *BreakingChange) ColumnName() (string, bool) {
	if !bc.resolved {
		bc.column, bc.hasCol = resolveColumnName(bc.Edit.Expression())
		bc.resolved = true
	}
	return bc.column, bc.hasCol
}

// resolveColumnName walks upward from the anchor expression looking for
// the outermost column or alias node, the actual projection-list entry.
// Reaching the root without finding one means the edit sits in a filter,
// join condition or table reference and affects the whole model.
func resolveColumnName(expr *sqltree.Node) (string, bool) {
	for expr != nil {
		isColumn := expr.Kind == sqltree.KindColumn || expr.Kind == sqltree.KindAlias
		nested := expr.FindAncestor(sqltree.KindColumn, sqltree.KindAlias) != nil
		if isColumn && !nested {
			if cte := expr.FindAncestor(sqltree.KindCTE); cte != nil {
				// A CTE-local name is only visible outside through
				// the reference in the enclosing query.
				return externalColumnName(expr, cte), true
			}
			return expr.AliasOrName(), true
		}
		if expr.Depth() < 1 {
			return "", false
		}
		expr = expr.Parent()
	}
	return "", false
}

// externalColumnName resolves the externally visible name of a column
// defined inside a CTE: find the alias under which the CTE is referenced,
// then the outer-scope column reference carrying that qualifier, then any
// alias wrapping that reference. Falls back to the CTE-local name when
// the column is not referenced outside.
func externalColumnName(expr, cte *sqltree.Node) string {
	root := expr.Root()
	cteAlias := cteReferenceAlias(root, cte)
	local := expr.AliasOrName()

	for _, col := range root.FindAll(sqltree.KindColumn) {
		if col.FindAncestor(sqltree.KindCTE) != nil {
			continue
		}
		if col.Qualifier == cteAlias && col.Name == local {
			if outer := col.FindAncestor(sqltree.KindAlias); outer != nil {
				return outer.AliasOrName()
			}
			return col.AliasOrName()
		}
	}
	return local
}

// cteReferenceAlias returns the table alias under which the CTE is
// referenced in the query, or the CTE's own name if it is referenced
// without one.
func cteReferenceAlias(root, cte *sqltree.Node) string {
	for _, ta := range root.FindAll(sqltree.KindTableAlias) {
		for _, c := range ta.Children() {
			if c.Kind == sqltree.KindTable && c.Name == cte.Name {
				return ta.Name
			}
		}
	}
	return cte.Name
}
