package analyze

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/columnci/pkg/dialect"
	"github.com/leapstack-labs/columnci/pkg/diff"
	"github.com/leapstack-labs/columnci/pkg/sqlparser"
	"github.com/leapstack-labs/columnci/pkg/sqltree"
)

// Node is one modified model: the pre-change and post-change SQL plus
// everything derived from their difference. All derived fields are
// computed once by NewNode and read-only afterward.
type Node struct {
	UniqueID   string
	SourceCode string
	TargetCode string
	Dialect    *dialect.Dialect

	// Changes is the edit script between source and target. Empty when
	// either text fails to parse; a parse failure means no detectable
	// changes, not a fatal error.
	Changes []diff.Edit

	// BreakingChanges is the subset of Changes that could affect
	// downstream consumers.
	BreakingChanges []*BreakingChange

	// ColumnChanges holds the resolved output column names across all
	// breaking changes. Empty whenever IgnoreColumnChanges is true:
	// structural ambiguity wins over partial column attribution.
	ColumnChanges map[string]struct{}

	// IgnoreColumnChanges is true when any breaking change could not be
	// pinned to a single output column.
	IgnoreColumnChanges bool
}

// NewNode parses both versions, diffs them and classifies the edits.
func NewNode(uniqueID, sourceCode, targetCode string, d *dialect.Dialect, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n := &Node{
		UniqueID:      uniqueID,
		SourceCode:    sourceCode,
		TargetCode:    targetCode,
		Dialect:       d,
		ColumnChanges: make(map[string]struct{}),
	}

	source, errSrc := sqlparser.Parse(sourceCode, d)
	target, errTgt := sqlparser.Parse(targetCode, d)
	switch {
	case errSrc != nil:
		logger.Error("failed to parse source code, treating node as unchanged",
			slog.String("unique_id", uniqueID), slog.Any("error", errSrc))
	case errTgt != nil:
		logger.Error("failed to parse target code, treating node as unchanged",
			slog.String("unique_id", uniqueID), slog.Any("error", errTgt))
	default:
		n.Changes = diff.Trees(source, target)
	}

	n.BreakingChanges = classifyEdits(n.Changes)

	for _, bc := range n.BreakingChanges {
		name, ok := bc.ColumnName()
		if !ok {
			n.IgnoreColumnChanges = true
			continue
		}
		n.ColumnChanges[name] = struct{}{}
	}
	if n.IgnoreColumnChanges {
		n.ColumnChanges = make(map[string]struct{})
	}
	return n
}

// classifyEdits returns the breaking subset of an edit script.
//
// Every Remove, Update and Move is breaking. An Insert is breaking only
// when the inserted expression is table-valued (cardinality can change),
// or when it lands outside the top-level projection list and is not just
// an interior node of a larger freshly-inserted subtree.
func classifyEdits(edits []diff.Edit) []*BreakingChange {
	inserted := make(map[*sqltree.Node]struct{})
	for _, e := range edits {
		if ins, ok := e.(*diff.Insert); ok {
			inserted[ins.Node] = struct{}{}
		}
	}

	var breaking []*BreakingChange
	for _, e := range edits {
		ins, ok := e.(*diff.Insert)
		if !ok {
			breaking = append(breaking, NewBreakingChange(e))
			continue
		}
		if ins.Node.Kind == sqltree.KindTableFunc {
			breaking = append(breaking, NewBreakingChange(e))
			continue
		}
		parent := ins.Node.Parent()
		if parent == nil {
			breaking = append(breaking, NewBreakingChange(e))
			continue
		}
		if _, partOfInsert := inserted[parent]; parent.Kind != sqltree.KindProjection && !partOfInsert {
			breaking = append(breaking, NewBreakingChange(e))
		}
	}
	return breaking
}

// ModelCode carries the two SQL versions of one model as fetched from
// the environment.
type ModelCode struct {
	SourceCode string
	TargetCode string
}

// BuildNodes constructs analysis nodes for every model that has both a
// source and a target version.
func BuildNodes(models map[string]ModelCode, d *dialect.Dialect, logger *slog.Logger) map[string]*Node {
	nodes := make(map[string]*Node, len(models))
	for uniqueID, code := range models {
		if code.SourceCode == "" || code.TargetCode == "" {
			continue
		}
		nodes[uniqueID] = NewNode(uniqueID, code.SourceCode, code.TargetCode, d, logger)
	}
	return nodes
}
