// Package diff computes an edit script between two SQL expression trees.
//
// The matcher follows the change-distiller family of tree diff
// algorithms: a top-down pass matches identical subtrees by canonical
// rendering, then a bottom-up pass matches structurally similar inner
// nodes by the overlap of their already-matched descendants. The edit
// script is derived from the final matching.
package diff

import "github.com/leapstack-labs/columnci/pkg/sqltree"

// Edit is one entry of an edit script. Expression returns the anchor
// node for the edit: the source-tree node for removals and updates, the
// target-tree node for insertions.
type Edit interface {
	Expression() *sqltree.Node
}

// Insert records a node that exists only in the target tree. Every node
// of an added subtree yields its own Insert.
type Insert struct {
	Node *sqltree.Node
}

// Expression returns the inserted target-tree node.
func (e *Insert) Expression() *sqltree.Node { return e.Node }

// Remove records a node that exists only in the source tree. Every node
// of a removed subtree yields its own Remove.
type Remove struct {
	Node *sqltree.Node
}

// Expression returns the removed source-tree node.
func (e *Remove) Expression() *sqltree.Node { return e.Node }

// Update records a matched pair of nodes whose labels differ, e.g. a
// renamed alias or a changed literal.
type Update struct {
	Source *sqltree.Node
	Target *sqltree.Node
}

// Expression returns the source-tree node, so resolution against the
// pre-change tree sees the old name.
func (e *Update) Expression() *sqltree.Node { return e.Source }

// Move records a matched node whose parent changed between the trees.
type Move struct {
	Source *sqltree.Node
	Target *sqltree.Node
}

// Expression returns the source-tree node.
func (e *Move) Expression() *sqltree.Node { return e.Source }
