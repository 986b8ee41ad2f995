package sqltree

import "strings"

// String renders the subtree as canonical SQL-ish text. The output is
// deterministic for a given tree, which is what the differ relies on for
// subtree equality; it is also readable enough for logs and tests.
func (n *Node) String() string {
	var sb strings.Builder
	n.render(&sb)
	return sb.String()
}

func (n *Node) render(sb *strings.Builder) {
	switch n.Kind {
	case KindSelect:
		for i, c := range n.children {
			if i > 0 {
				sb.WriteByte(' ')
			}
			c.render(sb)
		}
	case KindUnion:
		n.children[0].render(sb)
		sb.WriteByte(' ')
		sb.WriteString(n.Name)
		sb.WriteByte(' ')
		n.children[1].render(sb)
	case KindWith:
		sb.WriteString("WITH ")
		n.renderList(sb, n.children, ", ")
	case KindCTE:
		sb.WriteString(n.Name)
		sb.WriteString(" AS (")
		n.children[0].render(sb)
		sb.WriteByte(')')
	case KindProjection:
		sb.WriteString("SELECT ")
		if n.Name == "DISTINCT" {
			sb.WriteString("DISTINCT ")
		}
		n.renderList(sb, n.children, ", ")
	case KindColumn:
		if n.Qualifier != "" {
			sb.WriteString(n.Qualifier)
			sb.WriteByte('.')
		}
		sb.WriteString(n.Name)
	case KindAlias:
		n.children[0].render(sb)
		sb.WriteString(" AS ")
		sb.WriteString(n.Name)
	case KindStar:
		if n.Qualifier != "" {
			sb.WriteString(n.Qualifier)
			sb.WriteByte('.')
		}
		sb.WriteByte('*')
	case KindTable:
		if n.Qualifier != "" {
			sb.WriteString(n.Qualifier)
			sb.WriteByte('.')
		}
		sb.WriteString(n.Name)
	case KindTableAlias:
		n.children[0].render(sb)
		sb.WriteString(" AS ")
		sb.WriteString(n.Name)
	case KindFrom:
		sb.WriteString("FROM ")
		n.renderList(sb, n.children, " ")
	case KindJoin:
		sb.WriteString(n.Name)
		sb.WriteByte(' ')
		n.renderList(sb, n.children, " ")
	case KindOn:
		sb.WriteString("ON ")
		n.children[0].render(sb)
	case KindUsing:
		sb.WriteString("USING (")
		n.renderList(sb, n.children, ", ")
		sb.WriteByte(')')
	case KindWhere:
		sb.WriteString("WHERE ")
		n.children[0].render(sb)
	case KindGroupBy:
		sb.WriteString("GROUP BY ")
		n.renderList(sb, n.children, ", ")
	case KindHaving:
		sb.WriteString("HAVING ")
		n.children[0].render(sb)
	case KindQualify:
		sb.WriteString("QUALIFY ")
		n.children[0].render(sb)
	case KindOrderBy:
		sb.WriteString("ORDER BY ")
		n.renderList(sb, n.children, ", ")
	case KindOrdered:
		n.children[0].render(sb)
		if n.Name != "" {
			sb.WriteByte(' ')
			sb.WriteString(n.Name)
		}
	case KindLimit:
		sb.WriteString("LIMIT ")
		n.children[0].render(sb)
	case KindOffset:
		sb.WriteString("OFFSET ")
		n.children[0].render(sb)
	case KindBinary:
		sb.WriteByte('(')
		n.children[0].render(sb)
		sb.WriteByte(' ')
		sb.WriteString(n.Name)
		sb.WriteByte(' ')
		n.children[1].render(sb)
		sb.WriteByte(')')
	case KindUnary:
		sb.WriteByte('(')
		sb.WriteString(n.Name)
		sb.WriteByte(' ')
		n.children[0].render(sb)
		sb.WriteByte(')')
	case KindFunc, KindTableFunc:
		args := n.children
		var window *Node
		if len(args) > 0 && args[len(args)-1].Kind == KindWindow {
			window = args[len(args)-1]
			args = args[:len(args)-1]
		}
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		if n.Qualifier == "DISTINCT" {
			sb.WriteString("DISTINCT ")
		}
		n.renderList(sb, args, ", ")
		sb.WriteByte(')')
		if window != nil {
			sb.WriteByte(' ')
			window.render(sb)
		}
	case KindCase:
		sb.WriteString("CASE")
		for _, c := range n.children {
			sb.WriteByte(' ')
			if c.Kind != KindWhen && c != n.children[0] {
				sb.WriteString("ELSE ")
			}
			c.render(sb)
		}
		sb.WriteString(" END")
	case KindWhen:
		sb.WriteString("WHEN ")
		n.children[0].render(sb)
		sb.WriteString(" THEN ")
		n.children[1].render(sb)
	case KindCast:
		sb.WriteString("CAST(")
		n.children[0].render(sb)
		sb.WriteString(" AS ")
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	case KindIn:
		n.children[0].render(sb)
		if n.Name == "NOT" {
			sb.WriteString(" NOT")
		}
		sb.WriteString(" IN (")
		n.renderList(sb, n.children[1:], ", ")
		sb.WriteByte(')')
	case KindExists:
		if n.Name == "NOT" {
			sb.WriteString("NOT ")
		}
		sb.WriteString("EXISTS ")
		n.children[0].render(sb)
	case KindBetween:
		n.children[0].render(sb)
		if n.Name == "NOT" {
			sb.WriteString(" NOT")
		}
		sb.WriteString(" BETWEEN ")
		n.children[1].render(sb)
		sb.WriteString(" AND ")
		n.children[2].render(sb)
	case KindIsNull:
		n.children[0].render(sb)
		sb.WriteString(" IS ")
		if n.Name == "NOT" {
			sb.WriteString("NOT ")
		}
		sb.WriteString("NULL")
	case KindLike:
		n.children[0].render(sb)
		sb.WriteByte(' ')
		sb.WriteString(n.Name)
		sb.WriteByte(' ')
		n.children[1].render(sb)
	case KindWindow:
		sb.WriteString("OVER (")
		n.renderList(sb, n.children, " ")
		sb.WriteByte(')')
	case KindLiteral:
		sb.WriteString(n.Name)
	case KindParen, KindSubquery:
		sb.WriteByte('(')
		n.children[0].render(sb)
		sb.WriteByte(')')
	default:
		sb.WriteString(n.Kind.String())
	}
}

func (n *Node) renderList(sb *strings.Builder, nodes []*Node, sep string) {
	for i, c := range nodes {
		if i > 0 {
			sb.WriteString(sep)
		}
		c.render(sb)
	}
}
