package sqlparser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/columnci/pkg/sqltree"
	"github.com/leapstack-labs/columnci/pkg/token"
)

// parseExpression parses an expression at the lowest precedence level.
func (p *Parser) parseExpression() *sqltree.Node {
	return p.parseOr()
}

// parseOr parses expr OR expr.
func (p *Parser) parseOr() *sqltree.Node {
	left := p.parseAnd()
	for p.match(token.OR) {
		right := p.parseAnd()
		left = sqltree.New(sqltree.KindBinary, "OR").Add(left, right)
	}
	return left
}

// parseAnd parses expr AND expr.
func (p *Parser) parseAnd() *sqltree.Node {
	left := p.parseNot()
	for p.check(token.AND) {
		p.nextToken()
		right := p.parseNot()
		left = sqltree.New(sqltree.KindBinary, "AND").Add(left, right)
	}
	return left
}

// parseNot parses NOT expr.
func (p *Parser) parseNot() *sqltree.Node {
	if p.match(token.NOT) {
		return sqltree.New(sqltree.KindUnary, "NOT").Add(p.parseNot())
	}
	return p.parseComparison()
}

// parseComparison parses comparison operators and the SQL predicate forms
// (IS NULL, IN, BETWEEN, LIKE).
func (p *Parser) parseComparison() *sqltree.Node {
	left := p.parseAdditive()

	for {
		switch p.token.Type {
		case token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE:
			op := p.token.Literal
			p.nextToken()
			right := p.parseAdditive()
			left = sqltree.New(sqltree.KindBinary, op).Add(left, right)

		case token.IS:
			p.nextToken()
			negated := p.match(token.NOT)
			name := ""
			if negated {
				name = "NOT"
			}
			switch p.token.Type {
			case token.NULL:
				p.nextToken()
				left = sqltree.New(sqltree.KindIsNull, name).Add(left)
			case token.TRUE, token.FALSE:
				op := "IS"
				if negated {
					op = "IS NOT"
				}
				lit := sqltree.New(sqltree.KindLiteral, strings.ToUpper(p.token.Literal))
				p.nextToken()
				left = sqltree.New(sqltree.KindBinary, op).Add(left, lit)
			default:
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.NULL))
				return left
			}

		case token.IN:
			left = p.parseIn(left, false)

		case token.BETWEEN:
			left = p.parseBetween(left, false)

		case token.LIKE, token.ILIKE:
			op := strings.ToUpper(p.token.Literal)
			p.nextToken()
			pattern := p.parseAdditive()
			left = sqltree.New(sqltree.KindLike, op).Add(left, pattern)

		case token.NOT:
			// expr NOT IN / NOT BETWEEN / NOT LIKE
			switch p.peek.Type {
			case token.IN:
				p.nextToken()
				left = p.parseIn(left, true)
			case token.BETWEEN:
				p.nextToken()
				left = p.parseBetween(left, true)
			case token.LIKE, token.ILIKE:
				p.nextToken()
				op := "NOT " + strings.ToUpper(p.token.Literal)
				p.nextToken()
				pattern := p.parseAdditive()
				left = sqltree.New(sqltree.KindLike, op).Add(left, pattern)
			default:
				return left
			}

		default:
			return left
		}
	}
}

// parseIn parses expr [NOT] IN (values | subquery). The IN token is current.
func (p *Parser) parseIn(left *sqltree.Node, negated bool) *sqltree.Node {
	p.expect(token.IN)
	name := ""
	if negated {
		name = "NOT"
	}
	in := sqltree.New(sqltree.KindIn, name).Add(left)
	p.expect(token.LPAREN)
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Add(sqltree.New(sqltree.KindSubquery, "").Add(p.parseInnerStatement()))
	} else {
		in.Add(p.parseExpressionList()...)
	}
	p.expect(token.RPAREN)
	return in
}

// parseBetween parses expr [NOT] BETWEEN low AND high. BETWEEN is current.
func (p *Parser) parseBetween(left *sqltree.Node, negated bool) *sqltree.Node {
	p.expect(token.BETWEEN)
	name := ""
	if negated {
		name = "NOT"
	}
	low := p.parseAdditive()
	p.expect(token.AND)
	high := p.parseAdditive()
	return sqltree.New(sqltree.KindBetween, name).Add(left, low, high)
}

// parseAdditive parses +, - and string concatenation.
func (p *Parser) parseAdditive() *sqltree.Node {
	left := p.parseMultiplicative()
	for p.check(token.PLUS) || p.check(token.MINUS) || p.check(token.DPIPE) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseMultiplicative()
		left = sqltree.New(sqltree.KindBinary, op).Add(left, right)
	}
	return left
}

// parseMultiplicative parses *, / and %.
func (p *Parser) parseMultiplicative() *sqltree.Node {
	left := p.parseUnary()
	for p.check(token.STAR) || p.check(token.SLASH) || p.check(token.PERCENT) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseUnary()
		left = sqltree.New(sqltree.KindBinary, op).Add(left, right)
	}
	return left
}

// parseUnary parses prefix - and +.
func (p *Parser) parseUnary() *sqltree.Node {
	if p.check(token.MINUS) || p.check(token.PLUS) {
		op := p.token.Literal
		p.nextToken()
		return sqltree.New(sqltree.KindUnary, op).Add(p.parseUnary())
	}
	return p.parsePostfix()
}

// parsePostfix parses the :: cast operator, which binds tighter than any
// arithmetic.
func (p *Parser) parsePostfix() *sqltree.Node {
	expr := p.parsePrimary()
	for p.match(token.DCOLON) {
		expr = sqltree.New(sqltree.KindCast, p.parseTypeName()).Add(expr)
	}
	return expr
}

// parsePrimary parses literals, column references, function calls,
// parenthesized expressions and scalar subqueries.
func (p *Parser) parsePrimary() *sqltree.Node {
	switch p.token.Type {
	case token.NUMBER:
		lit := sqltree.New(sqltree.KindLiteral, p.token.Literal)
		p.nextToken()
		return lit

	case token.STRING:
		lit := sqltree.New(sqltree.KindLiteral, "'"+p.token.Literal+"'")
		p.nextToken()
		return lit

	case token.TRUE, token.FALSE, token.NULL:
		lit := sqltree.New(sqltree.KindLiteral, strings.ToUpper(p.token.Literal))
		p.nextToken()
		return lit

	case token.CASE:
		return p.parseCase()

	case token.CAST:
		p.nextToken()
		p.expect(token.LPAREN)
		expr := p.parseExpression()
		p.expect(token.AS)
		typeName := p.parseTypeName()
		p.expect(token.RPAREN)
		return sqltree.New(sqltree.KindCast, typeName).Add(expr)

	case token.EXISTS:
		p.nextToken()
		p.expect(token.LPAREN)
		sub := sqltree.New(sqltree.KindSubquery, "").Add(p.parseInnerStatement())
		p.expect(token.RPAREN)
		return sqltree.New(sqltree.KindExists, "").Add(sub)

	case token.LPAREN:
		p.nextToken()
		if p.check(token.SELECT) || p.check(token.WITH) {
			sub := sqltree.New(sqltree.KindSubquery, "").Add(p.parseInnerStatement())
			p.expect(token.RPAREN)
			return sub
		}
		expr := p.parseExpression()
		p.expect(token.RPAREN)
		return sqltree.New(sqltree.KindParen, "").Add(expr)

	case token.IDENT:
		return p.parseReference()

	default:
		p.addError(fmt.Sprintf("unexpected token %s in expression", p.token.Type))
		p.nextToken()
		return nil
	}
}

// parseReference parses a possibly qualified column reference or a
// function call.
func (p *Parser) parseReference() *sqltree.Node {
	parts := []string{p.token.Literal}
	p.nextToken()

	for p.check(token.DOT) && p.checkPeek(token.IDENT) {
		p.nextToken() // consume dot
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	// Function call
	if len(parts) == 1 && p.check(token.LPAREN) {
		return p.parseFunctionCall(parts[0])
	}

	col := sqltree.New(sqltree.KindColumn, parts[len(parts)-1])
	if len(parts) > 1 {
		col.Qualifier = strings.Join(parts[:len(parts)-1], ".")
	}
	return col
}

// parseFunctionCall parses name(args) with an optional OVER clause. The
// LPAREN token is current. Table-valued functions are classified per the
// parser's dialect.
func (p *Parser) parseFunctionCall(name string) *sqltree.Node {
	kind := sqltree.KindFunc
	if p.dialect.IsTableFunction(name) {
		kind = sqltree.KindTableFunc
	}
	fn := sqltree.New(kind, strings.ToUpper(name))

	p.expect(token.LPAREN)
	if p.match(token.DISTINCT) {
		fn.Qualifier = "DISTINCT"
	}
	if !p.check(token.RPAREN) {
		for {
			if p.check(token.STAR) {
				p.nextToken()
				fn.Add(sqltree.New(sqltree.KindStar, ""))
			} else {
				fn.Add(p.parseExpression())
			}
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RPAREN)

	if p.match(token.OVER) {
		fn.Add(p.parseWindowSpec())
	}
	return fn
}

// parseWindowSpec parses ([PARTITION BY exprs] [ORDER BY items]). The
// OVER token has already been consumed.
func (p *Parser) parseWindowSpec() *sqltree.Node {
	window := sqltree.New(sqltree.KindWindow, "")
	p.expect(token.LPAREN)
	if p.check(token.PARTITION) {
		p.nextToken()
		p.expect(token.BY)
		window.Add(p.parseExpressionList()...)
	}
	if p.check(token.ORDER) {
		window.Add(p.parseOrderBy())
	}
	p.expect(token.RPAREN)
	return window
}

// parseCase parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCase() *sqltree.Node {
	p.expect(token.CASE)
	caseNode := sqltree.New(sqltree.KindCase, "")

	if !p.check(token.WHEN) {
		caseNode.Add(p.parseExpression())
	}
	for p.match(token.WHEN) {
		cond := p.parseExpression()
		p.expect(token.THEN)
		result := p.parseExpression()
		caseNode.Add(sqltree.New(sqltree.KindWhen, "").Add(cond, result))
	}
	if p.match(token.ELSE) {
		caseNode.Add(p.parseExpression())
	}
	p.expect(token.END)
	return caseNode
}

// parseTypeName parses a type name with an optional precision, e.g.
// VARCHAR(16) or DECIMAL(10, 2).
func (p *Parser) parseTypeName() string {
	if !p.identLike() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.IDENT))
		return ""
	}
	name := strings.ToUpper(p.token.Literal)
	p.nextToken()

	if p.match(token.LPAREN) {
		var args []string
		for p.check(token.NUMBER) {
			args = append(args, p.token.Literal)
			p.nextToken()
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		name += "(" + strings.Join(args, ", ") + ")"
	}
	return name
}
