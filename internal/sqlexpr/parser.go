package sqlexpr

import (
	"fmt"
	"strings"
)

// Parser parses a single SQL expression into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	errors []error
}

// NewParser creates a parser for the given expression text.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.next()
	p.next()
	return p
}

// ParseExpr parses a standalone expression. Trailing tokens after a complete
// expression are an error, so "age > 18; DROP TABLE x" does not parse.
func ParseExpr(input string) (Expr, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := NewParser(input)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if p.token.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected token after expression: %q", p.token.Literal)
	}
	return expr, nil
}

func (p *Parser) next() {
	p.token = p.peek
	p.peek = p.lexer.Next()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) bool {
	if p.match(t) {
		return true
	}
	p.addError(fmt.Sprintf("unexpected token %s, expected %s", p.token.Type, t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Errorf("parse error: %s", msg))
}

// parseExpression parses with precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parsePrecedence(PrecedenceNone + 1)
}

func (p *Parser) parsePrecedence(min int) Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for {
		prec := p.infixPrecedence()
		if prec < min {
			return left
		}
		left = p.parseInfix(left, prec)
		if left == nil {
			return nil
		}
	}
}

func (p *Parser) parsePrefix() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.next()
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parsePrecedence(PrecedenceNot)}
	case TOKEN_MINUS, TOKEN_PLUS, TOKEN_TILDE:
		op := p.token.Type
		p.next()
		return &UnaryExpr{Op: op, Expr: p.parsePrecedence(PrecedenceUnary)}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_DBLEQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE,
		TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE, TOKEN_NOT:
		return PrecedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_DSLASH, TOKEN_MOD:
		return PrecedenceMultiply
	case TOKEN_DCOLON:
		return PrecedencePostfix
	case TOKEN_COLONEQ:
		return PrecedenceOr
	default:
		return PrecedenceNone
	}
}

func (p *Parser) parseInfix(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		return p.parseNotInfix(left)
	case TOKEN_IS:
		return p.parseIs(left)
	case TOKEN_IN:
		p.next()
		return p.parseIn(left, false)
	case TOKEN_BETWEEN:
		p.next()
		return p.parseBetween(left, false)
	case TOKEN_LIKE:
		p.next()
		return p.parseLike(left, false, false)
	case TOKEN_ILIKE:
		p.next()
		return p.parseLike(left, false, true)
	case TOKEN_DCOLON:
		p.next()
		return &CastExpr{Expr: left, TypeName: p.parseTypeName()}
	case TOKEN_COLONEQ:
		return p.parseNamedArg(left)
	default:
		op := p.token.Type
		p.next()
		right := p.parsePrecedence(prec + 1)
		return &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

// parseNotInfix handles NOT IN / NOT BETWEEN / NOT LIKE / NOT ILIKE.
func (p *Parser) parseNotInfix(left Expr) Expr {
	p.next() // NOT
	switch p.token.Type {
	case TOKEN_IN:
		p.next()
		return p.parseIn(left, true)
	case TOKEN_BETWEEN:
		p.next()
		return p.parseBetween(left, true)
	case TOKEN_LIKE:
		p.next()
		return p.parseLike(left, true, false)
	case TOKEN_ILIKE:
		p.next()
		return p.parseLike(left, true, true)
	default:
		p.addError("expected IN, BETWEEN, LIKE or ILIKE after NOT")
		return left
	}
}

func (p *Parser) parseIs(left Expr) Expr {
	p.next() // IS
	not := p.match(TOKEN_NOT)
	switch p.token.Type {
	case TOKEN_NULL:
		p.next()
		return &IsNullExpr{Expr: left, Not: not}
	case TOKEN_TRUE:
		p.next()
		return &IsBoolExpr{Expr: left, Not: not, Value: true}
	case TOKEN_FALSE:
		p.next()
		return &IsBoolExpr{Expr: left, Not: not, Value: false}
	default:
		p.addError("expected NULL, TRUE or FALSE after IS")
		return left
	}
}

func (p *Parser) parseIn(left Expr, not bool) Expr {
	in := &InExpr{Expr: left, Not: not}
	if p.match(TOKEN_LPAREN) {
		in.Values = p.parseExpressionList()
		p.expect(TOKEN_RPAREN)
	} else if p.check(TOKEN_LBRACKET) {
		in.Values = []Expr{p.parseListLiteral()}
	} else {
		in.Values = []Expr{p.parsePrimary()}
	}
	return in
}

func (p *Parser) parseBetween(left Expr, not bool) Expr {
	b := &BetweenExpr{Expr: left, Not: not}
	b.Low = p.parsePrecedence(PrecedenceAddition)
	p.expect(TOKEN_AND)
	b.High = p.parsePrecedence(PrecedenceAddition)
	return b
}

func (p *Parser) parseLike(left Expr, not, ilike bool) Expr {
	return &LikeExpr{
		Expr:    left,
		Not:     not,
		ILike:   ilike,
		Pattern: p.parsePrecedence(PrecedenceAddition),
	}
}

func (p *Parser) parseNamedArg(left Expr) Expr {
	p.next() // :=
	name := ""
	if col, ok := left.(*ColumnRef); ok && col.Table == "" {
		name = col.Column
	} else {
		p.addError("left side of := must be a bare identifier")
	}
	return &NamedArg{Name: name, Value: p.parsePrecedence(PrecedenceOr + 1)}
}

// parsePrimary parses literals, column refs, function calls, CASE, CAST,
// list literals and parenthesized subexpressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Kind: LiteralNumber, Value: p.token.Literal}
		p.next()
		return lit
	case TOKEN_STRING:
		lit := &Literal{Kind: LiteralString, Value: p.token.Literal}
		p.next()
		return lit
	case TOKEN_TRUE:
		p.next()
		return &Literal{Kind: LiteralBool, Value: "true"}
	case TOKEN_FALSE:
		p.next()
		return &Literal{Kind: LiteralBool, Value: "false"}
	case TOKEN_NULL:
		p.next()
		return &Literal{Kind: LiteralNull}
	case TOKEN_CASE:
		return p.parseCase()
	case TOKEN_CAST:
		return p.parseCast()
	case TOKEN_LPAREN:
		p.next()
		inner := p.parseExpression()
		p.expect(TOKEN_RPAREN)
		return &ParenExpr{Expr: inner}
	case TOKEN_LBRACKET:
		return p.parseListLiteral()
	case TOKEN_IDENT:
		return p.parseIdentExpr()
	default:
		p.addError(fmt.Sprintf("unexpected token %s in expression", p.token.Type))
		return nil
	}
}

// parseIdentExpr parses a column reference (possibly table-qualified) or a
// function call.
func (p *Parser) parseIdentExpr() Expr {
	name := p.token.Literal
	p.next()

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(name)
	}

	if p.match(TOKEN_DOT) {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected identifier after '.'")
			return nil
		}
		col := p.token.Literal
		p.next()
		return &ColumnRef{Table: name, Column: col}
	}

	return &ColumnRef{Column: name}
}

func (p *Parser) parseFuncCall(name string) Expr {
	fn := &FuncCall{Name: name}
	p.next() // (

	if p.match(TOKEN_RPAREN) {
		return fn
	}
	if p.check(TOKEN_STAR) {
		p.next()
		fn.Star = true
		p.expect(TOKEN_RPAREN)
		return fn
	}
	if p.match(TOKEN_DISTINCT) {
		fn.Distinct = true
	}
	fn.Args = p.parseExpressionList()
	p.expect(TOKEN_RPAREN)
	return fn
}

func (p *Parser) parseCase() Expr {
	p.next() // CASE
	c := &CaseExpr{}

	if !p.check(TOKEN_WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(TOKEN_WHEN) {
		var w WhenClause
		w.Cond = p.parseExpression()
		p.expect(TOKEN_THEN)
		w.Result = p.parseExpression()
		c.Whens = append(c.Whens, w)
	}
	if len(c.Whens) == 0 {
		p.addError("CASE requires at least one WHEN clause")
	}
	if p.match(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(TOKEN_END)
	return c
}

func (p *Parser) parseCast() Expr {
	p.next() // CAST
	p.expect(TOKEN_LPAREN)
	inner := p.parseExpression()
	p.expect(TOKEN_AS)
	typeName := p.parseTypeName()
	p.expect(TOKEN_RPAREN)
	return &CastExpr{Expr: inner, TypeName: typeName}
}

func (p *Parser) parseListLiteral() Expr {
	p.next() // [
	list := &ListExpr{}
	if p.match(TOKEN_RBRACKET) {
		return list
	}
	list.Items = p.parseExpressionList()
	p.expect(TOKEN_RBRACKET)
	return list
}

func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		e := p.parseExpression()
		if e != nil {
			exprs = append(exprs, e)
		}
		if !p.match(TOKEN_COMMA) {
			return exprs
		}
	}
}

// parseTypeName reads a type name like VARCHAR, DOUBLE or DECIMAL(10, 2).
func (p *Parser) parseTypeName() string {
	if !p.check(TOKEN_IDENT) {
		p.addError("expected type name")
		return ""
	}
	var b strings.Builder
	b.WriteString(p.token.Literal)
	p.next()

	// Multi-word types: DOUBLE PRECISION, TIMESTAMP WITH TIME ZONE, ...
	for p.check(TOKEN_IDENT) {
		b.WriteByte(' ')
		b.WriteString(p.token.Literal)
		p.next()
	}

	if p.match(TOKEN_LPAREN) {
		b.WriteByte('(')
		first := true
		for p.check(TOKEN_NUMBER) {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(p.token.Literal)
			p.next()
			first = false
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		p.expect(TOKEN_RPAREN)
		b.WriteByte(')')
	}
	return b.String()
}
