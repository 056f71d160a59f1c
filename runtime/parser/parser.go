// Package parser builds the syntax tree from the token stream.
//
// It is a recursive descent parser with unrestricted lookahead: the
// cursor can be saved and restored, so alternatives are tried in order
// and rolled back silently until one matches. The first unrecoverable
// mismatch unwinds to Parse with a line-tagged error.
package parser

import (
	"strings"

	"github.com/hexpat-lang/hexpat/core/ast"
	plerr "github.com/hexpat-lang/hexpat/core/errors"
	"github.com/hexpat-lang/hexpat/core/invariant"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

// Parser consumes one token stream. Create a fresh Parser per run.
type Parser struct {
	toks []tokens.Token
	pos  int

	// types maps fully qualified names to their shared declaration,
	// so later references resolve to the same node and forward
	// references can be filled in once the definition is seen.
	types map[string]*ast.TypeDecl

	namespace []string
}

// New creates a Parser over the given tokens. The stream must end with
// an EOF token.
func New(toks []tokens.Token) *Parser {
	invariant.Precondition(len(toks) > 0 && toks[len(toks)-1].Type == tokens.EOF,
		"token stream must be EOF terminated")
	return &Parser{toks: toks, types: map[string]*ast.TypeDecl{}}
}

// Types returns the type table built during parsing, keyed by
// qualified name.
func (p *Parser) Types() map[string]*ast.TypeDecl {
	return p.types
}

// Parse parses the whole translation unit.
func (p *Parser) Parse() (program []ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*plerr.Error); ok {
				program, err = nil, e
				return
			}
			panic(r)
		}
	}()

	for !p.atEnd() {
		program = append(program, p.parseStatement(topLevel)...)
	}
	return program, nil
}

// errorAt aborts parsing with a line-tagged error.
func (p *Parser) errorAt(line uint32, format string, args ...any) {
	panic(plerr.Newf(plerr.StageParser, line, format, args...))
}

func (p *Parser) errorHere(format string, args ...any) {
	p.errorAt(p.peek(0).Line, format, args...)
}

/* Cursor primitives */

func (p *Parser) atEnd() bool {
	return p.toks[p.pos].Type == tokens.EOF
}

// peek returns the token at the given lookahead without consuming it.
func (p *Parser) peek(offset int) tokens.Token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	if idx < 0 {
		idx = 0
	}
	return p.toks[idx]
}

func (p *Parser) advance() tokens.Token {
	t := p.peek(0)
	if !p.atEnd() {
		p.pos++
	}
	return t
}

// save and restore implement the backtracking used by the oneOf-style
// alternatives below.
func (p *Parser) save() int        { return p.pos }
func (p *Parser) restore(mark int) { p.pos = mark }

func (p *Parser) peekKeyword(kw tokens.Keyword, offset int) bool {
	t := p.peek(offset)
	return t.Type == tokens.KEYWORD && t.Keyword == kw
}

func (p *Parser) peekOp(op tokens.Operator, offset int) bool {
	t := p.peek(offset)
	return t.Type == tokens.OPERATOR && t.Op == op
}

func (p *Parser) peekSep(sep tokens.Separator, offset int) bool {
	t := p.peek(offset)
	return t.Type == tokens.SEPARATOR && t.Sep == sep
}

func (p *Parser) matchKeyword(kw tokens.Keyword) bool {
	if p.peekKeyword(kw, 0) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchOp(op tokens.Operator) bool {
	if p.peekOp(op, 0) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchSep(sep tokens.Separator) bool {
	if p.peekSep(sep, 0) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectSep(sep tokens.Separator, what string) {
	if !p.matchSep(sep) {
		p.errorHere("expected '%s'", what)
	}
}

func (p *Parser) expectOp(op tokens.Operator, what string) {
	if !p.matchOp(op) {
		p.errorHere("expected '%s'", what)
	}
}

func (p *Parser) expectIdentifier(what string) string {
	t := p.peek(0)
	if t.Type != tokens.IDENTIFIER {
		p.errorHere("expected %s", what)
	}
	p.advance()
	return t.Ident
}

/* Name qualification */

func (p *Parser) qualify(name string) string {
	if len(p.namespace) == 0 {
		return name
	}
	return strings.Join(p.namespace, "::") + "::" + name
}

// lookupType resolves a (possibly namespaced) type name against the
// current namespace stack, innermost scope first.
func (p *Parser) lookupType(name string) *ast.TypeDecl {
	for i := len(p.namespace); i >= 0; i-- {
		prefix := strings.Join(p.namespace[:i], "::")
		qualified := name
		if prefix != "" {
			qualified = prefix + "::" + name
		}
		if decl, ok := p.types[qualified]; ok {
			return decl
		}
	}
	return nil
}

// forwardType returns the registered declaration for name, creating an
// unresolved placeholder on first reference so that forward references
// share one node. The validator rejects placeholders that never get a
// definition.
func (p *Parser) forwardType(name string, line uint32) *ast.TypeDecl {
	if decl := p.lookupType(name); decl != nil {
		return decl
	}
	qualified := p.qualify(name)
	decl := ast.At(line, &ast.TypeDecl{Name: qualified})
	p.types[qualified] = decl
	return decl
}

// addType registers a named type definition, or fills in a forward
// placeholder created by an earlier reference.
func (p *Parser) addType(name string, line uint32, ty ast.Node, endian *value.Endian) *ast.TypeDecl {
	qualified := p.qualify(name)

	if existing, ok := p.types[qualified]; ok {
		if existing.Ty != nil {
			// Redefinition is also caught by the validator; report the
			// second definition site here for a better line number.
			p.errorAt(line, "redefinition of type '%s'", qualified)
		}
		existing.Ty = ty
		existing.Endian = endian
		return existing
	}

	decl := ast.At(line, &ast.TypeDecl{Name: qualified, Endian: endian, Ty: ty})
	p.types[qualified] = decl
	return decl
}

/* Statements */

type bodyKind int

const (
	topLevel bodyKind = iota
	structBody
	unionBody
)

// parseStatement parses one pattern-mode statement and returns it as a
// one-element slice; a conditional stays a single Conditional node.
func (p *Parser) parseStatement(kind bodyKind) []ast.Node {
	// Leading attributes attach to the declaration that follows.
	leading := p.parseAttributeList()

	var node ast.Node
	switch {
	case p.matchKeyword(tokens.KwUsing):
		node = p.parseUsing()

	case p.peekKeyword(tokens.KwStruct, 0),
		p.peekKeyword(tokens.KwUnion, 0),
		p.peekKeyword(tokens.KwEnum, 0),
		p.peekKeyword(tokens.KwBitfield, 0):
		node = p.parseTypeDefinition()

	case p.matchKeyword(tokens.KwFn):
		node = p.parseFunctionDefinition()

	case p.matchKeyword(tokens.KwNamespace):
		node = p.parseNamespace()
		p.attach(node, leading)
		p.matchSep(tokens.SepSemicolon)
		return []ast.Node{node}

	case p.matchKeyword(tokens.KwIf):
		node = p.parseConditional(kind)
		p.attach(node, leading)
		return []ast.Node{node}

	default:
		node = p.parseVariableStatement(kind)
	}

	p.attach(node, leading)
	trailing := p.parseAttributeList()
	p.attach(node, trailing)
	p.expectSep(tokens.SepSemicolon, ";")

	return []ast.Node{node}
}

// attach adds attributes to a declaration, rejecting sites that do not
// accept them.
func (p *Parser) attach(node ast.Node, attrs []*ast.Attribute) {
	if len(attrs) == 0 {
		return
	}
	target, ok := node.(ast.WithAttributes)
	if !ok {
		p.errorAt(attrs[0].Line(), "attribute cannot be applied here")
	}
	for _, a := range attrs {
		target.AddAttribute(a)
	}
}

// parseAttributeList parses zero or more [[key]] / [[key("value")]]
// groups.
func (p *Parser) parseAttributeList() []*ast.Attribute {
	var attrs []*ast.Attribute

	for p.peekSep(tokens.SepSquareOpen, 0) && p.peekSep(tokens.SepSquareOpen, 1) {
		p.advance()
		p.advance()

		for {
			line := p.peek(0).Line
			key := p.expectIdentifier("attribute name")
			attr := ast.At(line, &ast.Attribute{Key: key})

			if p.matchSep(tokens.SepRoundOpen) {
				t := p.peek(0)
				if t.Type != tokens.STRING {
					p.errorHere("expected string literal as attribute value")
				}
				p.advance()
				attr.Value = string(t.Literal.(value.String))
				attr.HasValue = true
				p.expectSep(tokens.SepRoundClose, ")")
			}
			attrs = append(attrs, attr)

			if !p.matchSep(tokens.SepComma) {
				break
			}
		}

		p.expectSep(tokens.SepSquareClose, "]]")
		p.expectSep(tokens.SepSquareClose, "]]")
	}

	return attrs
}

// parseUsing parses `using Alias = type` after the using keyword.
func (p *Parser) parseUsing() ast.Node {
	line := p.peek(0).Line
	name := p.expectIdentifier("alias name")
	p.expectOp(tokens.OpAssign, "=")
	target := p.parseType()
	return p.addType(name, line, target, target.Endian)
}

// parseTypeDefinition parses struct/union/enum/bitfield definitions.
func (p *Parser) parseTypeDefinition() ast.Node {
	t := p.advance()
	line := p.peek(0).Line
	name := p.expectIdentifier("type name")

	var body ast.Node
	switch t.Keyword {
	case tokens.KwStruct:
		body = p.parseStructBody(line)
	case tokens.KwUnion:
		body = p.parseUnionBody(line)
	case tokens.KwEnum:
		body = p.parseEnumBody(line)
	case tokens.KwBitfield:
		body = p.parseBitfieldBody(line)
	}

	return p.addType(name, line, body, nil)
}

func (p *Parser) parseStructBody(line uint32) ast.Node {
	p.expectSep(tokens.SepCurlyOpen, "{")
	s := ast.At(line, &ast.Struct{})
	for !p.matchSep(tokens.SepCurlyClose) {
		if p.atEnd() {
			p.errorHere("expected '}' at end of struct body")
		}
		s.Members = append(s.Members, p.parseStatement(structBody)...)
	}
	return s
}

func (p *Parser) parseUnionBody(line uint32) ast.Node {
	p.expectSep(tokens.SepCurlyOpen, "{")
	u := ast.At(line, &ast.Union{})
	for !p.matchSep(tokens.SepCurlyClose) {
		if p.atEnd() {
			p.errorHere("expected '}' at end of union body")
		}
		u.Members = append(u.Members, p.parseStatement(unionBody)...)
	}
	return u
}

// parseEnumBody parses `: underlying { Name = expr, Name, A = lo ... hi }`.
func (p *Parser) parseEnumBody(line uint32) ast.Node {
	p.expectOp(tokens.OpColon, ":")
	underlying := p.parseType()
	p.expectSep(tokens.SepCurlyOpen, "{")

	e := ast.At(line, &ast.Enum{Underlying: underlying})
	for !p.peekSep(tokens.SepCurlyClose, 0) {
		entryName := p.expectIdentifier("enum entry name")
		entry := ast.EnumEntry{Name: entryName}

		if p.matchOp(tokens.OpAssign) {
			entry.Value = p.parseExpression()
			if p.matchOp(tokens.OpEllipsis) {
				entry.Last = p.parseExpression()
			}
		}
		e.Entries = append(e.Entries, entry)

		if !p.matchSep(tokens.SepComma) {
			break
		}
	}
	p.expectSep(tokens.SepCurlyClose, "}")
	return e
}

// parseBitfieldBody parses `{ name : bits; padding : bits; }`.
func (p *Parser) parseBitfieldBody(line uint32) ast.Node {
	p.expectSep(tokens.SepCurlyOpen, "{")

	b := ast.At(line, &ast.Bitfield{})
	for !p.matchSep(tokens.SepCurlyClose) {
		if p.atEnd() {
			p.errorHere("expected '}' at end of bitfield body")
		}

		var fieldName string
		t := p.peek(0)
		if t.Type == tokens.TYPE_KEYWORD && t.ValueType == tokens.Padding {
			p.advance()
		} else {
			fieldName = p.expectIdentifier("bitfield field name")
		}

		p.expectOp(tokens.OpColon, ":")
		bits := p.parseExpression()
		p.expectSep(tokens.SepSemicolon, ";")

		b.Entries = append(b.Entries, ast.BitfieldEntry{Name: fieldName, Bits: bits})
	}
	return b
}

// parseNamespace parses `namespace a::b { ... }`. Declared names inside
// are stored fully qualified.
func (p *Parser) parseNamespace() ast.Node {
	line := p.peek(0).Line
	depth := 0
	for {
		name := p.expectIdentifier("namespace name")
		p.namespace = append(p.namespace, name)
		depth++
		if !p.matchOp(tokens.OpScope) {
			break
		}
	}

	p.expectSep(tokens.SepCurlyOpen, "{")
	ns := ast.At(line, &ast.Namespace{Name: strings.Join(p.namespace, "::")})
	for !p.matchSep(tokens.SepCurlyClose) {
		if p.atEnd() {
			p.errorHere("expected '}' at end of namespace")
		}
		ns.Body = append(ns.Body, p.parseStatement(topLevel)...)
	}

	p.namespace = p.namespace[:len(p.namespace)-depth]
	return ns
}

// parseConditional parses pattern-mode if/else; bodies contain member
// statements of the surrounding kind.
func (p *Parser) parseConditional(kind bodyKind) ast.Node {
	line := p.peek(0).Line
	p.expectSep(tokens.SepRoundOpen, "(")
	cond := p.parseExpression()
	p.expectSep(tokens.SepRoundClose, ")")

	node := ast.At(line, &ast.Conditional{Cond: cond})
	node.TrueBody = p.parseStatementBlock(kind)
	if p.matchKeyword(tokens.KwElse) {
		if p.matchKeyword(tokens.KwIf) {
			node.FalseBody = []ast.Node{p.parseConditional(kind)}
		} else {
			node.FalseBody = p.parseStatementBlock(kind)
		}
	}
	return node
}

func (p *Parser) parseStatementBlock(kind bodyKind) []ast.Node {
	if p.matchSep(tokens.SepCurlyOpen) {
		var body []ast.Node
		for !p.matchSep(tokens.SepCurlyClose) {
			if p.atEnd() {
				p.errorHere("expected '}' at end of block")
			}
			body = append(body, p.parseStatement(kind)...)
		}
		return body
	}
	return p.parseStatement(kind)
}

/* Variable declarations */

// parseType parses `[be|le] type-name` where type-name is a built-in
// keyword or a possibly namespaced custom type.
func (p *Parser) parseType() *ast.TypeDecl {
	line := p.peek(0).Line

	var endian *value.Endian
	if p.matchKeyword(tokens.KwBigEndian) {
		e := value.BigEndian
		endian = &e
	} else if p.matchKeyword(tokens.KwLittleEndian) {
		e := value.LittleEndian
		endian = &e
	}

	t := p.peek(0)
	switch t.Type {
	case tokens.TYPE_KEYWORD:
		p.advance()
		builtin := ast.At(line, &ast.BuiltinType{VT: t.ValueType})
		return ast.At(line, &ast.TypeDecl{Name: t.Ident, Endian: endian, Ty: builtin})

	case tokens.IDENTIFIER:
		name := p.parseTypeName()
		decl := p.forwardType(name, line)
		if endian == nil {
			return decl
		}
		// An endian prefix on a custom type wraps the shared
		// declaration rather than mutating it.
		return ast.At(line, &ast.TypeDecl{Name: decl.Name, Endian: endian, Ty: decl})

	default:
		p.errorHere("expected type name")
		return nil
	}
}

// parseTypeName consumes `a::b::C`.
func (p *Parser) parseTypeName() string {
	name := p.expectIdentifier("type name")
	for p.matchOp(tokens.OpScope) {
		name += "::" + p.expectIdentifier("type name")
	}
	return name
}

// peekVariableStart reports whether the cursor sits on the beginning of
// a variable declaration (endian prefix, builtin type or known custom
// type followed by a name).
func (p *Parser) peekVariableStart() bool {
	mark := p.save()
	defer p.restore(mark)

	if p.peekKeyword(tokens.KwBigEndian, 0) || p.peekKeyword(tokens.KwLittleEndian, 0) {
		p.advance()
	}
	t := p.peek(0)
	if t.Type == tokens.TYPE_KEYWORD {
		return true
	}
	if t.Type != tokens.IDENTIFIER {
		return false
	}
	p.advance()
	for p.peekOp(tokens.OpScope, 0) {
		p.advance()
		if p.peek(0).Type != tokens.IDENTIFIER {
			return false
		}
		p.advance()
	}
	t = p.peek(0)
	return t.Type == tokens.IDENTIFIER || (t.Type == tokens.OPERATOR && t.Op == tokens.OpStar)
}

// parseVariableStatement parses placement and member declarations:
// `T name @ expr;`, `T name[expr] @ expr;`, `T *name : Ptr @ expr;`,
// the member variants without placement, in/out globals and
// `padding[expr]`.
func (p *Parser) parseVariableStatement(kind bodyKind) ast.Node {
	line := p.peek(0).Line

	in := p.matchKeyword(tokens.KwIn)
	out := false
	if !in {
		out = p.matchKeyword(tokens.KwOut)
	}
	if (in || out) && kind != topLevel {
		p.errorAt(line, "in/out variables may only be declared at the top level")
	}

	ty := p.parseType()

	// padding[size] has no name.
	if bt, ok := ty.Ty.(*ast.BuiltinType); ok && bt.VT == tokens.Padding {
		p.expectSep(tokens.SepSquareOpen, "[")
		size := p.parseExpression()
		p.expectSep(tokens.SepSquareClose, "]")
		return ast.At(line, &ast.ArrayVariableDecl{Type: ty, Size: size})
	}

	// Pointer declaration.
	if p.matchOp(tokens.OpStar) {
		name := p.expectIdentifier("variable name")
		p.expectOp(tokens.OpColon, ":")
		sizeType := p.parseType()
		decl := ast.At(line, &ast.PointerVariableDecl{Name: name, Type: ty, SizeType: sizeType})
		decl.Placement = p.parsePlacement(kind, in, out)
		return decl
	}

	name := p.expectIdentifier("variable name")

	// Array declaration; '[[' opens a trailing attribute list instead.
	if p.peekSep(tokens.SepSquareOpen, 0) && !p.peekSep(tokens.SepSquareOpen, 1) {
		p.advance()
		decl := ast.At(line, &ast.ArrayVariableDecl{Name: name, Type: ty})
		switch {
		case p.matchKeyword(tokens.KwWhile):
			p.expectSep(tokens.SepRoundOpen, "(")
			decl.Cond = p.parseExpression()
			p.expectSep(tokens.SepRoundClose, ")")
		case p.matchKeyword(tokens.KwUntil):
			p.expectSep(tokens.SepRoundOpen, "(")
			decl.Cond = p.parseExpression()
			decl.Until = true
			p.expectSep(tokens.SepRoundClose, ")")
		case p.peekSep(tokens.SepSquareClose, 0):
			// Unsized: reads until the string terminator.
		default:
			decl.Size = p.parseExpression()
		}
		p.expectSep(tokens.SepSquareClose, "]")
		decl.Placement = p.parsePlacement(kind, in, out)
		return decl
	}

	// Several names of one type: `u8 x, y, z;` (members only).
	if p.peekSep(tokens.SepComma, 0) && kind != topLevel {
		multi := ast.At(line, &ast.MultiVariableDecl{})
		multi.Variables = append(multi.Variables, ast.At(line, &ast.VariableDecl{Name: name, Type: ty}))
		for p.matchSep(tokens.SepComma) {
			memberLine := p.peek(0).Line
			memberName := p.expectIdentifier("variable name")
			multi.Variables = append(multi.Variables,
				ast.At(memberLine, &ast.VariableDecl{Name: memberName, Type: ty}))
		}
		return multi
	}

	decl := ast.At(line, &ast.VariableDecl{Name: name, Type: ty, In: in, Out: out})
	decl.Placement = p.parsePlacement(kind, in, out)
	return decl
}

// parsePlacement parses the optional `@ expr` suffix. Placement is
// forbidden on in/out variables; a top level declaration without
// placement is a local working variable.
func (p *Parser) parsePlacement(kind bodyKind, in, out bool) ast.Node {
	if p.matchOp(tokens.OpAt) {
		if in || out {
			p.errorHere("in/out variables cannot be placed in memory")
		}
		return p.parseExpression()
	}
	return nil
}
