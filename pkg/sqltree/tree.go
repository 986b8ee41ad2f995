// Package sqltree defines a uniform expression tree for parsed SQL.
//
// Every syntactic construct is represented by the same Node type, tagged
// with a Kind. Nodes carry an upward parent link, which makes ancestor
// walks (alias resolution, CTE membership tests) cheap, and pointer
// identity doubles as node identity for set membership during diffing.
package sqltree

// Kind identifies the syntactic construct a Node represents.
type Kind int

// Node kinds. The comment after each kind describes the Name/Qualifier
// payload and the expected children.
const (
	KindSelect     Kind = iota // children: [With] Projection [From] [Where] [GroupBy] [Having] [Qualify] [OrderBy] [Limit] [Offset]
	KindUnion                  // Name: "UNION"|"UNION ALL"|"INTERSECT"|"EXCEPT"; children: left, right
	KindWith                   // children: CTEs
	KindCTE                    // Name: cte name; children: Select
	KindProjection             // Name: "DISTINCT" if set; children: select items
	KindColumn                 // Name: column name; Qualifier: table or alias
	KindAlias                  // Name: alias; children: aliased expression
	KindStar                   // Qualifier: optional table for t.*
	KindTable                  // Name: table name; Qualifier: schema
	KindTableAlias             // Name: alias; children: table reference
	KindFrom                   // children: source ref, joins
	KindJoin                   // Name: join keywords ("LEFT JOIN", ...); children: ref, [On|Using]
	KindOn                     // children: condition
	KindUsing                  // children: columns
	KindWhere                  // children: condition
	KindGroupBy                // children: grouping expressions
	KindHaving                 // children: condition
	KindQualify                // children: condition
	KindOrderBy                // children: Ordered items
	KindOrdered                // Name: ""|"ASC"|"DESC"; children: expression
	KindLimit                  // children: expression
	KindOffset                 // children: expression
	KindBinary                 // Name: operator; children: left, right
	KindUnary                  // Name: operator; children: operand
	KindFunc                   // Name: function name; children: arguments
	KindTableFunc              // Name: function name; children: arguments (table-valued)
	KindCase                   // children: [operand] When... [else expr]
	KindWhen                   // children: condition, result
	KindCast                   // Name: type name; children: expression
	KindIn                     // Name: "NOT" if negated; children: expr, values... or Subquery
	KindExists                 // Name: "NOT" if negated; children: Subquery
	KindBetween                // Name: "NOT" if negated; children: expr, low, high
	KindIsNull                 // Name: "NOT" if negated; children: expression
	KindLike                   // Name: "LIKE"|"NOT LIKE"|"ILIKE"|"NOT ILIKE"; children: expr, pattern
	KindLiteral                // Name: literal text as written ('x', 42, TRUE, NULL)
	KindParen                  // children: expression
	KindSubquery               // children: Select
	KindWindow                 // OVER clause; children: partition exprs, [OrderBy]
)

var kindNames = map[Kind]string{
	KindSelect:     "Select",
	KindUnion:      "Union",
	KindWith:       "With",
	KindCTE:        "CTE",
	KindProjection: "Projection",
	KindColumn:     "Column",
	KindAlias:      "Alias",
	KindStar:       "Star",
	KindTable:      "Table",
	KindTableAlias: "TableAlias",
	KindFrom:       "From",
	KindJoin:       "Join",
	KindOn:         "On",
	KindUsing:      "Using",
	KindWhere:      "Where",
	KindGroupBy:    "GroupBy",
	KindHaving:     "Having",
	KindQualify:    "Qualify",
	KindOrderBy:    "OrderBy",
	KindOrdered:    "Ordered",
	KindLimit:      "Limit",
	KindOffset:     "Offset",
	KindBinary:     "Binary",
	KindUnary:      "Unary",
	KindFunc:       "Func",
	KindTableFunc:  "TableFunc",
	KindCase:       "Case",
	KindWhen:       "When",
	KindCast:       "Cast",
	KindIn:         "In",
	KindExists:     "Exists",
	KindBetween:    "Between",
	KindIsNull:     "IsNull",
	KindLike:       "Like",
	KindLiteral:    "Literal",
	KindParen:      "Paren",
	KindSubquery:   "Subquery",
	KindWindow:     "Window",
}

// String returns the kind name for debugging.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Node is one node of the uniform SQL expression tree.
type Node struct {
	Kind      Kind
	Name      string // identifier payload, see Kind comments
	Qualifier string // table qualifier for columns, schema for tables

	parent   *Node
	children []*Node
}

// New creates a node with no children.
func New(kind Kind, name string) *Node {
	return &Node{Kind: kind, Name: name}
}

// Add appends children and sets their parent link. Nil children are skipped.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Prepend inserts children before the existing ones and sets their parent
// link. Nil children are skipped.
func (n *Node) Prepend(children ...*Node) *Node {
	var kept []*Node
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		kept = append(kept, c)
	}
	n.children = append(kept, n.children...)
	return n
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child slice. Callers must not mutate it.
func (n *Node) Children() []*Node {
	return n.children
}

// Root returns the root of the tree containing n.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Depth returns the number of ancestors above n. The root has depth 0.
func (n *Node) Depth() int {
	d := 0
	for cur := n.parent; cur != nil; cur = cur.parent {
		d++
	}
	return d
}

// FindAncestor returns the nearest ancestor whose kind is one of kinds,
// or nil if there is none.
func (n *Node) FindAncestor(kinds ...Kind) *Node {
	for cur := n.parent; cur != nil; cur = cur.parent {
		for _, k := range kinds {
			if cur.Kind == k {
				return cur
			}
		}
	}
	return nil
}

// Walk visits n and its descendants in preorder. Returning false from fn
// stops descent into the current node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// FindAll returns all nodes of the given kind in the subtree rooted at n,
// in preorder.
func (n *Node) FindAll(kind Kind) []*Node {
	var out []*Node
	n.Walk(func(node *Node) bool {
		if node.Kind == kind {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Nodes returns every node of the subtree rooted at n, in preorder.
func (n *Node) Nodes() []*Node {
	var out []*Node
	n.Walk(func(node *Node) bool {
		out = append(out, node)
		return true
	})
	return out
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// AliasOrName returns the exposed output name of a select-list entry:
// the alias for Alias nodes, the column name for Column nodes, and the
// Name payload otherwise.
func (n *Node) AliasOrName() string {
	return n.Name
}

// SameLabel reports whether two nodes carry identical kind and payload,
// ignoring children. Used by the differ to distinguish updates from moves.
func (n *Node) SameLabel(other *Node) bool {
	return n.Kind == other.Kind && n.Name == other.Name && n.Qualifier == other.Qualifier
}
