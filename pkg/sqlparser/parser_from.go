package sqlparser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/columnci/pkg/sqltree"
	"github.com/leapstack-labs/columnci/pkg/token"
)

// parseFrom parses FROM table_ref (join)*.
func (p *Parser) parseFrom() *sqltree.Node {
	p.expect(token.FROM)
	from := sqltree.New(sqltree.KindFrom, "").Add(p.parseTableRef())

	for {
		join := p.parseJoin()
		if join == nil {
			return from
		}
		from.Add(join)
	}
}

// parseJoin parses one join clause, or returns nil if the current token
// does not start one.
func (p *Parser) parseJoin() *sqltree.Node {
	var keywords []string

	switch p.token.Type {
	case token.COMMA:
		p.nextToken()
		return sqltree.New(sqltree.KindJoin, ",").Add(p.parseTableRef())

	case token.CROSS:
		p.nextToken()
		p.expect(token.JOIN)
		return sqltree.New(sqltree.KindJoin, "CROSS JOIN").Add(p.parseTableRef())

	case token.INNER:
		keywords = append(keywords, "INNER")
		p.nextToken()
	case token.LEFT, token.RIGHT, token.FULL:
		keywords = append(keywords, strings.ToUpper(p.token.Literal))
		p.nextToken()
		if p.match(token.OUTER) {
			keywords = append(keywords, "OUTER")
		}
	case token.JOIN:
		// bare JOIN
	default:
		return nil
	}

	if !p.expect(token.JOIN) {
		return nil
	}
	keywords = append(keywords, "JOIN")

	join := sqltree.New(sqltree.KindJoin, strings.Join(keywords, " "))
	join.Add(p.parseTableRef())

	switch p.token.Type {
	case token.ON:
		p.nextToken()
		join.Add(sqltree.New(sqltree.KindOn, "").Add(p.parseExpression()))
	case token.USING:
		p.nextToken()
		p.expect(token.LPAREN)
		using := sqltree.New(sqltree.KindUsing, "")
		for p.identLike() {
			using.Add(sqltree.New(sqltree.KindColumn, p.token.Literal))
			p.nextToken()
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		join.Add(using)
	}
	return join
}

// parseTableRef parses one source of a FROM clause: a table name, a
// derived table, or a table function, each with an optional alias.
func (p *Parser) parseTableRef() *sqltree.Node {
	p.match(token.LATERAL)

	var ref *sqltree.Node
	switch {
	case p.check(token.LPAREN):
		p.nextToken()
		ref = sqltree.New(sqltree.KindSubquery, "").Add(p.parseInnerStatement())
		p.expect(token.RPAREN)

	case p.identLike() && p.checkPeek(token.LPAREN):
		name := p.token.Literal
		p.nextToken()
		ref = p.parseFunctionCall(name)
		// Any function in table position produces rows.
		if ref != nil && ref.Kind == sqltree.KindFunc {
			ref.Kind = sqltree.KindTableFunc
		}

	case p.identLike():
		parts := []string{p.token.Literal}
		p.nextToken()
		for p.check(token.DOT) && p.checkPeek(token.IDENT) {
			p.nextToken()
			parts = append(parts, p.token.Literal)
			p.nextToken()
		}
		ref = sqltree.New(sqltree.KindTable, parts[len(parts)-1])
		if len(parts) > 1 {
			ref.Qualifier = strings.Join(parts[:len(parts)-1], ".")
		}

	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.IDENT))
		return nil
	}

	// [AS] alias
	if p.match(token.AS) {
		if !p.identLike() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.IDENT))
			return ref
		}
		alias := sqltree.New(sqltree.KindTableAlias, p.token.Literal).Add(ref)
		p.nextToken()
		return alias
	}
	if p.identLike() {
		alias := sqltree.New(sqltree.KindTableAlias, p.token.Literal).Add(ref)
		p.nextToken()
		return alias
	}
	return ref
}
