package parser

import (
	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

// The expression hierarchy is shared between pattern-mode and
// function-mode bodies. Precedence, loosest first: ternary, boolean
// or/xor/and, bitwise or/xor/and, equality, relation, shift, additive,
// multiplicative, unary, cast, factor.

func (p *Parser) parseExpression() ast.Node {
	return p.parseTernary()
}

func (p *Parser) parseTernary() ast.Node {
	cond := p.parseBooleanOr()
	if !p.matchOp(tokens.OpTernary) {
		return cond
	}
	line := p.peek(-1).Line
	trueExpr := p.parseExpression()
	p.expectOp(tokens.OpColon, ":")
	falseExpr := p.parseExpression()
	return ast.At(line, &ast.Ternary{Cond: cond, True: trueExpr, False: falseExpr})
}

// binaryLevel builds one left-associative precedence level.
func (p *Parser) binaryLevel(next func() ast.Node, ops ...tokens.Operator) ast.Node {
	expr := next()
	for {
		matched := false
		for _, op := range ops {
			if p.matchOp(op) {
				line := p.peek(-1).Line
				rhs := next()
				expr = ast.At(line, &ast.MathOp{LHS: expr, RHS: rhs, Op: op})
				matched = true
				break
			}
		}
		if !matched {
			return expr
		}
	}
}

func (p *Parser) parseBooleanOr() ast.Node {
	return p.binaryLevel(p.parseBooleanXor, tokens.OpBoolOr)
}

func (p *Parser) parseBooleanXor() ast.Node {
	return p.binaryLevel(p.parseBooleanAnd, tokens.OpBoolXor)
}

func (p *Parser) parseBooleanAnd() ast.Node {
	return p.binaryLevel(p.parseBinaryOr, tokens.OpBoolAnd)
}

func (p *Parser) parseBinaryOr() ast.Node {
	return p.binaryLevel(p.parseBinaryXor, tokens.OpBitOr)
}

func (p *Parser) parseBinaryXor() ast.Node {
	return p.binaryLevel(p.parseBinaryAnd, tokens.OpBitXor)
}

func (p *Parser) parseBinaryAnd() ast.Node {
	return p.binaryLevel(p.parseEquality, tokens.OpBitAnd)
}

func (p *Parser) parseEquality() ast.Node {
	return p.binaryLevel(p.parseRelation, tokens.OpEqual, tokens.OpNotEqual)
}

func (p *Parser) parseRelation() ast.Node {
	return p.binaryLevel(p.parseShift,
		tokens.OpLess, tokens.OpLessEqual, tokens.OpGreater, tokens.OpGreaterEqual)
}

func (p *Parser) parseShift() ast.Node {
	return p.binaryLevel(p.parseAdditive, tokens.OpShiftLeft, tokens.OpShiftRight)
}

func (p *Parser) parseAdditive() ast.Node {
	return p.binaryLevel(p.parseMultiplicative, tokens.OpPlus, tokens.OpMinus)
}

func (p *Parser) parseMultiplicative() ast.Node {
	return p.binaryLevel(p.parseUnary, tokens.OpStar, tokens.OpSlash, tokens.OpPercent)
}

// parseCast parses `factor (as type)?`.
func (p *Parser) parseCast() ast.Node {
	expr := p.parseFactor()
	for p.matchKeyword(tokens.KwAs) {
		line := p.peek(-1).Line
		to := p.parseType()
		expr = ast.At(line, &ast.Cast{Expr: expr, To: to})
	}
	return expr
}

func (p *Parser) parseUnary() ast.Node {
	for _, op := range []tokens.Operator{tokens.OpMinus, tokens.OpPlus, tokens.OpBoolNot, tokens.OpBitNot} {
		if p.matchOp(op) {
			line := p.peek(-1).Line
			operand := p.parseUnary()
			return ast.At(line, &ast.UnaryOp{Op: op, Operand: operand})
		}
	}
	return p.parseCast()
}

func (p *Parser) parseFactor() ast.Node {
	t := p.peek(0)
	line := t.Line

	switch t.Type {
	case tokens.INTEGER, tokens.FLOAT, tokens.STRING, tokens.CHAR:
		p.advance()
		return ast.At(line, &ast.Literal{Val: t.Literal})

	case tokens.SEPARATOR:
		if t.Sep == tokens.SepRoundOpen {
			p.advance()
			expr := p.parseExpression()
			p.expectSep(tokens.SepRoundClose, ")")
			return expr
		}

	case tokens.OPERATOR:
		if t.Op == tokens.OpDollar {
			p.advance()
			return ast.At(line, &ast.Dollar{})
		}

	case tokens.KEYWORD:
		switch t.Keyword {
		case tokens.KwTrue:
			p.advance()
			return ast.At(line, &ast.Literal{Val: value.Bool(true)})
		case tokens.KwFalse:
			p.advance()
			return ast.At(line, &ast.Literal{Val: value.Bool(false)})
		case tokens.KwNull:
			p.advance()
			return ast.At(line, &ast.Literal{Val: value.Null})
		case tokens.KwSizeOf:
			p.advance()
			return p.parseTypeOperator(line, ast.OpSizeOf)
		case tokens.KwAddressOf:
			p.advance()
			return p.parseTypeOperator(line, ast.OpAddressOf)
		case tokens.KwParent, tokens.KwThis:
			return p.parseRValue()
		}

	case tokens.IDENTIFIER:
		// Function call or rvalue path. A call is an identifier chain
		// followed by '('.
		mark := p.save()
		name := t.Ident
		p.advance()
		for p.peekOp(tokens.OpScope, 0) && p.peek(1).Type == tokens.IDENTIFIER {
			p.advance()
			name += "::" + p.advance().Ident
		}
		if p.peekSep(tokens.SepRoundOpen, 0) {
			return p.parseFunctionCall(line, name)
		}
		p.restore(mark)
		return p.parseRValue()
	}

	p.errorHere("unrecognized expression")
	return nil
}

// parseTypeOperator parses sizeof(...) / addressof(...). sizeof also
// accepts a built-in type name.
func (p *Parser) parseTypeOperator(line uint32, op ast.TypeOperatorKind) ast.Node {
	p.expectSep(tokens.SepRoundOpen, "(")

	if op == ast.OpSizeOf && p.peek(0).Type == tokens.TYPE_KEYWORD {
		vt := p.advance().ValueType
		p.expectSep(tokens.SepRoundClose, ")")
		return ast.At(line, &ast.Literal{Val: value.Unsigned(vt.Size())})
	}

	expr := p.parseRValue()
	p.expectSep(tokens.SepRoundClose, ")")
	return ast.At(line, &ast.TypeOperator{Op: op, Expr: expr})
}

func (p *Parser) parseFunctionCall(line uint32, name string) ast.Node {
	p.expectSep(tokens.SepRoundOpen, "(")
	call := ast.At(line, &ast.FunctionCall{Name: name})

	if !p.peekSep(tokens.SepRoundClose, 0) {
		for {
			call.Args = append(call.Args, p.parseExpression())
			if !p.matchSep(tokens.SepComma) {
				break
			}
		}
	}
	p.expectSep(tokens.SepRoundClose, ")")
	return call
}

// parseRValue parses a path expression: `a::b.c[3].d`, `parent.x`,
// `this`. Scope-resolved prefixes address enum constants and
// namespaced globals.
func (p *Parser) parseRValue() ast.Node {
	line := p.peek(0).Line
	rv := ast.At(line, &ast.RValue{})

	for {
		t := p.peek(0)
		switch {
		case t.Type == tokens.KEYWORD && t.Keyword == tokens.KwParent:
			p.advance()
			rv.Path = append(rv.Path, ast.PathSegment{Kind: ast.SegParent})
		case t.Type == tokens.KEYWORD && t.Keyword == tokens.KwThis:
			p.advance()
			rv.Path = append(rv.Path, ast.PathSegment{Kind: ast.SegThis})
		case t.Type == tokens.IDENTIFIER:
			p.advance()
			name := t.Ident
			for p.peekOp(tokens.OpScope, 0) && p.peek(1).Type == tokens.IDENTIFIER {
				p.advance()
				name += "::" + p.advance().Ident
			}
			rv.Path = append(rv.Path, ast.PathSegment{Kind: ast.SegName, Name: name})
		default:
			p.errorHere("expected identifier in path expression")
		}

		for p.matchSep(tokens.SepSquareOpen) {
			idx := p.parseExpression()
			p.expectSep(tokens.SepSquareClose, "]")
			rv.Path = append(rv.Path, ast.PathSegment{Kind: ast.SegIndex, Index: idx})
		}

		if !p.matchOp(tokens.OpDot) {
			return rv
		}
	}
}
