package parser

import (
	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/tokens"
)

// parseFunctionDefinition parses `name(params) { body }` after the fn
// keyword. The declared name is stored fully qualified.
func (p *Parser) parseFunctionDefinition() ast.Node {
	line := p.peek(0).Line
	name := p.qualify(p.expectIdentifier("function name"))

	def := ast.At(line, &ast.FunctionDef{Name: name})

	p.expectSep(tokens.SepRoundOpen, "(")
	for !p.peekSep(tokens.SepRoundClose, 0) {
		ty := p.parseType()
		paramName := p.expectIdentifier("parameter name")

		if p.matchOp(tokens.OpEllipsis) {
			def.ParamPack = paramName
			_ = ty
			break
		}

		def.Params = append(def.Params, ast.FunctionParam{Name: paramName, Type: ty})
		if !p.matchSep(tokens.SepComma) {
			break
		}
	}
	p.expectSep(tokens.SepRoundClose, ")")

	p.expectSep(tokens.SepCurlyOpen, "{")
	for !p.matchSep(tokens.SepCurlyClose) {
		if p.atEnd() {
			p.errorHere("expected '}' at end of function body")
		}
		def.Body = append(def.Body, p.parseFunctionStatement()...)
	}

	return def
}

// parseFunctionStatement parses one function-mode statement. Variable
// declarations with initializers expand into a declaration plus an
// assignment, hence the slice result.
func (p *Parser) parseFunctionStatement() []ast.Node {
	line := p.peek(0).Line

	switch {
	case p.matchKeyword(tokens.KwReturn):
		node := ast.At(line, &ast.ControlFlow{Stmt: ast.FlowReturn})
		if !p.peekSep(tokens.SepSemicolon, 0) {
			node.Value = p.parseExpression()
		}
		p.expectSep(tokens.SepSemicolon, ";")
		return []ast.Node{node}

	case p.matchKeyword(tokens.KwBreak):
		p.expectSep(tokens.SepSemicolon, ";")
		return []ast.Node{ast.At(line, &ast.ControlFlow{Stmt: ast.FlowBreak})}

	case p.matchKeyword(tokens.KwContinue):
		p.expectSep(tokens.SepSemicolon, ";")
		return []ast.Node{ast.At(line, &ast.ControlFlow{Stmt: ast.FlowContinue})}

	case p.matchKeyword(tokens.KwIf):
		return []ast.Node{p.parseFunctionConditional()}

	case p.matchKeyword(tokens.KwWhile):
		p.expectSep(tokens.SepRoundOpen, "(")
		cond := p.parseExpression()
		p.expectSep(tokens.SepRoundClose, ")")
		node := ast.At(line, &ast.WhileLoop{Cond: cond})
		node.Body = p.parseFunctionBlock()
		return []ast.Node{node}

	case p.matchKeyword(tokens.KwFor):
		return []ast.Node{p.parseFunctionForLoop(line)}
	}

	// Local variable declaration: `T name [= expr];`.
	if p.peekVariableStart() {
		return p.parseFunctionVariableDecl()
	}

	// Assignment to `$` or a variable, or a bare call expression.
	if p.peekOp(tokens.OpDollar, 0) || p.peek(0).Type == tokens.IDENTIFIER {
		if stmt, ok := p.tryParseAssignment(); ok {
			p.expectSep(tokens.SepSemicolon, ";")
			return []ast.Node{stmt}
		}
	}

	expr := p.parseExpression()
	p.expectSep(tokens.SepSemicolon, ";")
	return []ast.Node{expr}
}

func (p *Parser) parseFunctionBlock() []ast.Node {
	if p.matchSep(tokens.SepCurlyOpen) {
		var body []ast.Node
		for !p.matchSep(tokens.SepCurlyClose) {
			if p.atEnd() {
				p.errorHere("expected '}' at end of block")
			}
			body = append(body, p.parseFunctionStatement()...)
		}
		return body
	}
	return p.parseFunctionStatement()
}

func (p *Parser) parseFunctionConditional() ast.Node {
	line := p.peek(-1).Line
	p.expectSep(tokens.SepRoundOpen, "(")
	cond := p.parseExpression()
	p.expectSep(tokens.SepRoundClose, ")")

	node := ast.At(line, &ast.Conditional{Cond: cond})
	node.TrueBody = p.parseFunctionBlock()
	if p.matchKeyword(tokens.KwElse) {
		if p.matchKeyword(tokens.KwIf) {
			node.FalseBody = []ast.Node{p.parseFunctionConditional()}
		} else {
			node.FalseBody = p.parseFunctionBlock()
		}
	}
	return node
}

// parseFunctionForLoop parses `for (init; cond; post) body`.
func (p *Parser) parseFunctionForLoop(line uint32) ast.Node {
	p.expectSep(tokens.SepRoundOpen, "(")

	node := ast.At(line, &ast.ForLoop{})

	init := p.parseForClause()
	p.expectSep(tokens.SepSemicolon, ";")
	node.Cond = p.parseExpression()
	p.expectSep(tokens.SepSemicolon, ";")
	post := p.parseForClause()
	p.expectSep(tokens.SepRoundClose, ")")

	node.Body = p.parseFunctionBlock()

	// The init clause may declare a variable with an initializer; both
	// resulting statements run before the first iteration.
	if len(init) > 0 {
		node.Init = wrapClause(init)
	}
	if len(post) > 0 {
		node.Post = wrapClause(post)
	}
	return node
}

// wrapClause packs a one-or-two statement clause into a single node.
func wrapClause(stmts []ast.Node) ast.Node {
	if len(stmts) == 1 {
		return stmts[0]
	}
	multi := &ast.MultiVariableDecl{Variables: stmts}
	return ast.At(stmts[0].Line(), multi)
}

// parseForClause parses the init/post clause of a for loop: a variable
// declaration, an assignment, or a call.
func (p *Parser) parseForClause() []ast.Node {
	if p.peekSep(tokens.SepSemicolon, 0) || p.peekSep(tokens.SepRoundClose, 0) {
		return nil
	}
	if p.peekVariableStart() {
		return p.parseFunctionVariableDeclBare()
	}
	if stmt, ok := p.tryParseAssignment(); ok {
		return []ast.Node{stmt}
	}
	return []ast.Node{p.parseExpression()}
}

// parseFunctionVariableDecl parses `T name [= expr];`.
func (p *Parser) parseFunctionVariableDecl() []ast.Node {
	stmts := p.parseFunctionVariableDeclBare()
	p.expectSep(tokens.SepSemicolon, ";")
	return stmts
}

func (p *Parser) parseFunctionVariableDeclBare() []ast.Node {
	line := p.peek(0).Line
	ty := p.parseType()
	name := p.expectIdentifier("variable name")

	if p.matchSep(tokens.SepSquareOpen) {
		size := p.parseExpression()
		p.expectSep(tokens.SepSquareClose, "]")
		return []ast.Node{ast.At(line, &ast.ArrayVariableDecl{Name: name, Type: ty, Size: size})}
	}

	decl := ast.At(line, &ast.VariableDecl{Name: name, Type: ty})
	stmts := []ast.Node{decl}

	if p.matchOp(tokens.OpAssign) {
		val := p.parseExpression()
		stmts = append(stmts, ast.At(line, &ast.Assignment{LValue: name, RValue: val}))
	}
	return stmts
}

// compoundOps maps compound assignment operators to the binary
// operation they expand to.
var compoundOps = map[tokens.Operator]tokens.Operator{
	tokens.OpPlusAssign:       tokens.OpPlus,
	tokens.OpMinusAssign:      tokens.OpMinus,
	tokens.OpStarAssign:       tokens.OpStar,
	tokens.OpSlashAssign:      tokens.OpSlash,
	tokens.OpPercentAssign:    tokens.OpPercent,
	tokens.OpShiftLeftAssign:  tokens.OpShiftLeft,
	tokens.OpShiftRightAssign: tokens.OpShiftRight,
	tokens.OpBitAndAssign:     tokens.OpBitAnd,
	tokens.OpBitOrAssign:      tokens.OpBitOr,
	tokens.OpBitXorAssign:     tokens.OpBitXor,
}

// tryParseAssignment recognizes `lvalue = expr` and compound variants,
// where lvalue is `$` or a plain identifier. It backtracks and reports
// false when the cursor is not on an assignment.
func (p *Parser) tryParseAssignment() (ast.Node, bool) {
	mark := p.save()
	line := p.peek(0).Line

	var lvalue string
	switch {
	case p.matchOp(tokens.OpDollar):
		lvalue = "$"
	case p.peek(0).Type == tokens.IDENTIFIER:
		lvalue = p.advance().Ident
	default:
		return nil, false
	}

	t := p.peek(0)
	if t.Type != tokens.OPERATOR {
		p.restore(mark)
		return nil, false
	}

	if t.Op == tokens.OpAssign {
		p.advance()
		rhs := p.parseExpression()
		return ast.At(line, &ast.Assignment{LValue: lvalue, RValue: rhs}), true
	}

	if binOp, ok := compoundOps[t.Op]; ok {
		p.advance()
		rhs := p.parseExpression()
		current := ast.At(line, &ast.RValue{Path: []ast.PathSegment{{Kind: ast.SegName, Name: lvalue}}})
		var lhs ast.Node = current
		if lvalue == "$" {
			lhs = ast.At(line, &ast.Dollar{})
		}
		expanded := ast.At(line, &ast.MathOp{LHS: lhs, RHS: rhs, Op: binOp})
		return ast.At(line, &ast.Assignment{LValue: lvalue, RValue: expanded}), true
	}

	p.restore(mark)
	return nil, false
}
