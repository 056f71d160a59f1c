package evaluator

import (
	"strings"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

/* Conversions with terminal errors */

func (e *Evaluator) toUnsigned(l value.Literal, line uint32) uint64 {
	v, err := value.ToUnsigned(l)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	return v
}

func (e *Evaluator) toSigned(l value.Literal, line uint32) int64 {
	v, err := value.ToSigned(l)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	return v
}

func (e *Evaluator) toBool(l value.Literal, line uint32) bool {
	v, err := value.ToBool(l)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	return v
}

/* Expression evaluation */

// evalExpr evaluates a pure expression to a literal.
func (e *Evaluator) evalExpr(node ast.Node) value.Literal {
	switch n := node.(type) {
	case *ast.Literal:
		return n.Val

	case *ast.Dollar:
		return value.Unsigned(e.currOffset)

	case *ast.MathOp:
		lhs := e.evalExpr(n.LHS)
		rhs := e.evalExpr(n.RHS)
		return e.evalBinary(n.Op, lhs, rhs, n.Line())

	case *ast.UnaryOp:
		return e.evalUnary(n)

	case *ast.Ternary:
		if e.toBool(e.evalExpr(n.Cond), n.Line()) {
			return e.evalExpr(n.True)
		}
		return e.evalExpr(n.False)

	case *ast.Cast:
		return e.evalCast(n)

	case *ast.TypeOperator:
		p := e.resolvePattern(n.Expr.(*ast.RValue))
		if n.Op == ast.OpSizeOf {
			return value.Unsigned(p.Size())
		}
		return value.Unsigned(p.Offset())

	case *ast.FunctionCall:
		result := e.call(n.Name, n.Args, n.Line())
		if result == nil {
			e.abortf(n.Line(), "function '%s' does not return a value", n.Name)
		}
		return result

	case *ast.RValue:
		return e.resolveValue(n)

	default:
		e.abortf(node.Line(), "invalid expression")
		return nil
	}
}

func (e *Evaluator) evalUnary(n *ast.UnaryOp) value.Literal {
	operand := e.evalExpr(n.Operand)

	switch n.Op {
	case tokens.OpPlus:
		return operand

	case tokens.OpMinus:
		switch v := operand.(type) {
		case value.Float:
			return value.Float(-v)
		default:
			return value.Signed(-e.toSigned(operand, n.Line()))
		}

	case tokens.OpBoolNot:
		return value.Bool(!e.toBool(operand, n.Line()))

	case tokens.OpBitNot:
		switch operand.(type) {
		case value.Float:
			e.abortf(n.Line(), "bitwise operation on floating point value")
		}
		if operand.Kind() == value.KindSigned {
			return value.Signed(^e.toSigned(operand, n.Line()))
		}
		return value.Unsigned(^e.toUnsigned(operand, n.Line()))
	}

	e.abortf(n.Line(), "invalid unary operator")
	return nil
}

// evalCast converts a literal to a built-in type, truncating integers
// to the target width.
func (e *Evaluator) evalCast(n *ast.Cast) value.Literal {
	operand := e.evalExpr(n.Expr)

	def, _, name, _ := e.resolveType(n.To, e.defaultEndian, n.Line())
	bt, ok := def.(*ast.BuiltinType)
	if !ok {
		e.abortf(n.Line(), "cannot cast to custom type '%s'", name)
	}

	vt := bt.VT
	switch {
	case vt.Float():
		f, err := value.ToFloat(operand)
		if err != nil {
			e.abortf(n.Line(), "%v", err)
		}
		if vt == tokens.Float32 {
			return value.Float(float64(float32(f)))
		}
		return value.Float(f)

	case vt == tokens.Boolean:
		return value.Bool(e.toBool(operand, n.Line()))

	case vt == tokens.Character:
		return value.Char(e.toUnsigned(operand, n.Line()))

	case vt == tokens.Character16:
		return value.Char16(e.toUnsigned(operand, n.Line()))

	case vt == tokens.Str:
		return value.String(operand.String())

	case vt.Unsigned():
		return value.Unsigned(truncate(e.toUnsigned(operand, n.Line()), vt.Size()))

	case vt.Signed():
		u := truncate(e.toUnsigned(operand, n.Line()), vt.Size())
		return value.Signed(signExtend(u, vt.Size()))
	}

	e.abortf(n.Line(), "cannot cast to type '%s'", vt)
	return nil
}

func truncate(v uint64, size uint64) uint64 {
	if size >= 8 {
		return v
	}
	return v & (1<<(size*8) - 1)
}

func signExtend(v uint64, size uint64) int64 {
	if size >= 8 {
		return int64(v)
	}
	bits := size * 8
	if v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}

/* Binary operators */

func (e *Evaluator) evalBinary(op tokens.Operator, lhs, rhs value.Literal, line uint32) value.Literal {
	switch op {
	case tokens.OpPlus:
		if lhs.Kind() == value.KindString || rhs.Kind() == value.KindString {
			ls, lok := lhs.(value.String)
			rs, rok := rhs.(value.String)
			if !lok || !rok {
				e.abortf(line, "cannot add value of type '%s' to a string", nonString(lhs, rhs).Kind())
			}
			return ls + rs
		}
		return e.arith(op, lhs, rhs, line)

	case tokens.OpMinus, tokens.OpStar, tokens.OpSlash, tokens.OpPercent:
		return e.arith(op, lhs, rhs, line)

	case tokens.OpShiftLeft, tokens.OpShiftRight,
		tokens.OpBitAnd, tokens.OpBitOr, tokens.OpBitXor:
		return e.bitwise(op, lhs, rhs, line)

	case tokens.OpEqual, tokens.OpNotEqual:
		eq, err := value.Equal(lhs, rhs)
		if err != nil {
			e.abortf(line, "%v", err)
		}
		if op == tokens.OpNotEqual {
			eq = !eq
		}
		return value.Bool(eq)

	case tokens.OpLess, tokens.OpLessEqual, tokens.OpGreater, tokens.OpGreaterEqual:
		return e.compare(op, lhs, rhs, line)

	case tokens.OpBoolAnd:
		return value.Bool(e.toBool(lhs, line) && e.toBool(rhs, line))
	case tokens.OpBoolOr:
		return value.Bool(e.toBool(lhs, line) || e.toBool(rhs, line))
	case tokens.OpBoolXor:
		return value.Bool(e.toBool(lhs, line) != e.toBool(rhs, line))
	}

	e.abortf(line, "invalid binary operator")
	return nil
}

func nonString(a, b value.Literal) value.Literal {
	if a.Kind() != value.KindString {
		return a
	}
	return b
}

func (e *Evaluator) arith(op tokens.Operator, lhs, rhs value.Literal, line uint32) value.Literal {
	pl, pr, err := value.Promote(lhs, rhs)
	if err != nil {
		e.abortf(line, "%v", err)
	}

	switch l := pl.(type) {
	case value.Float:
		r := pr.(value.Float)
		switch op {
		case tokens.OpPlus:
			return l + r
		case tokens.OpMinus:
			return l - r
		case tokens.OpStar:
			return l * r
		case tokens.OpSlash:
			if r == 0 {
				e.abortf(line, "division by zero")
			}
			return l / r
		case tokens.OpPercent:
			e.abortf(line, "modulo on floating point value")
		}

	case value.Signed:
		r := pr.(value.Signed)
		switch op {
		case tokens.OpPlus:
			return l + r
		case tokens.OpMinus:
			return l - r
		case tokens.OpStar:
			return l * r
		case tokens.OpSlash:
			if r == 0 {
				e.abortf(line, "division by zero")
			}
			return l / r
		case tokens.OpPercent:
			if r == 0 {
				e.abortf(line, "division by zero")
			}
			return l % r
		}

	case value.Unsigned:
		r := pr.(value.Unsigned)
		switch op {
		case tokens.OpPlus:
			return l + r
		case tokens.OpMinus:
			return l - r
		case tokens.OpStar:
			return l * r
		case tokens.OpSlash:
			if r == 0 {
				e.abortf(line, "division by zero")
			}
			return l / r
		case tokens.OpPercent:
			if r == 0 {
				e.abortf(line, "division by zero")
			}
			return l % r
		}
	}

	e.abortf(line, "invalid arithmetic operands")
	return nil
}

func (e *Evaluator) bitwise(op tokens.Operator, lhs, rhs value.Literal, line uint32) value.Literal {
	if lhs.Kind() == value.KindFloat || rhs.Kind() == value.KindFloat {
		e.abortf(line, "bitwise operation on floating point value")
	}

	l := e.toUnsigned(lhs, line)
	r := e.toUnsigned(rhs, line)

	var result uint64
	switch op {
	case tokens.OpShiftLeft:
		result = l << r
	case tokens.OpShiftRight:
		result = l >> r
	case tokens.OpBitAnd:
		result = l & r
	case tokens.OpBitOr:
		result = l | r
	case tokens.OpBitXor:
		result = l ^ r
	}

	if lhs.Kind() == value.KindSigned {
		return value.Signed(result)
	}
	return value.Unsigned(result)
}

func (e *Evaluator) compare(op tokens.Operator, lhs, rhs value.Literal, line uint32) value.Literal {
	if lhs.Kind() == value.KindString || rhs.Kind() == value.KindString {
		ls, lok := lhs.(value.String)
		rs, rok := rhs.(value.String)
		if !lok || !rok || op != tokens.OpLess {
			e.abortf(line, "invalid comparison on string values")
		}
		return value.Bool(ls < rs)
	}

	less, err := value.Less(lhs, rhs)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	eq, err := value.Equal(lhs, rhs)
	if err != nil {
		e.abortf(line, "%v", err)
	}

	switch op {
	case tokens.OpLess:
		return value.Bool(less)
	case tokens.OpLessEqual:
		return value.Bool(less || eq)
	case tokens.OpGreater:
		return value.Bool(!less && !eq)
	case tokens.OpGreaterEqual:
		return value.Bool(!less)
	}

	e.abortf(line, "invalid comparison operator")
	return nil
}

/* Path resolution */

// resolveValue resolves an rvalue path to a literal: locals read their
// stack slot, scalar patterns read the data, composites yield a
// pattern reference.
func (e *Evaluator) resolveValue(rv *ast.RValue) value.Literal {
	// Single-name paths may address locals, parameter packs and enum
	// constants before patterns.
	if len(rv.Path) == 1 && rv.Path[0].Kind == ast.SegName {
		name := rv.Path[0].Name

		if _, slot, ok := e.findLocal(name); ok {
			if e.stack[slot] == nil {
				// Declared but never assigned; slots default to zero.
				return value.Unsigned(0)
			}
			return e.stack[slot]
		}

		if strings.Contains(name, "::") {
			if lit, ok := e.resolveEnumConstant(name, rv.Line()); ok {
				return lit
			}
		}
	}

	p := e.resolvePattern(rv)
	return e.patternValue(p)
}

// patternValue converts a resolved pattern to its literal value.
func (e *Evaluator) patternValue(p pattern.Pattern) value.Literal {
	if p.Base().Local() {
		slot := int(p.Offset())
		if slot < len(e.stack) && e.stack[slot] != nil {
			return e.stack[slot]
		}
		return value.Unsigned(0)
	}

	switch p.(type) {
	case *pattern.Struct, *pattern.Union, *pattern.StaticArray, *pattern.DynamicArray, *pattern.Bitfield:
		return value.Ref{P: p}
	default:
		return p.Value()
	}
}

// findLocal searches for a local variable from the innermost scope
// outward, stopping at the nearest function boundary, then falls back
// to the global scope.
func (e *Evaluator) findLocal(name string) (pattern.Pattern, int, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		s := e.scopes[i]
		for _, p := range *s.Patterns {
			if p.Base().Local() && p.Base().VariableName() == name {
				return p, int(p.Offset()), true
			}
		}
		if s.boundary {
			break
		}
	}
	if !e.isGlobalScope() {
		for _, p := range *e.globalScope().Patterns {
			if p.Base().Local() && p.Base().VariableName() == name {
				return p, int(p.Offset()), true
			}
		}
	}
	return nil, 0, false
}

// resolveEnumConstant resolves Type::Entry to the entry's constant.
func (e *Evaluator) resolveEnumConstant(name string, line uint32) (value.Literal, bool) {
	idx := strings.LastIndex(name, "::")
	typeName, entryName := name[:idx], name[idx+2:]

	decl, ok := e.types[typeName]
	if !ok || decl.Ty == nil {
		return nil, false
	}
	enum, ok := decl.Ty.(*ast.Enum)
	if !ok {
		return nil, false
	}

	var next uint64
	for _, entry := range enum.Entries {
		first := next
		if entry.Value != nil {
			first = e.toUnsigned(e.evalExpr(entry.Value), line)
		}
		if entry.Name == entryName {
			return value.Unsigned(first), true
		}
		next = first + 1
	}
	return nil, false
}

// resolvePattern walks a path to the pattern it names.
func (e *Evaluator) resolvePattern(rv *ast.RValue) pattern.Pattern {
	var current pattern.Pattern

	for i, seg := range rv.Path {
		switch seg.Kind {
		case ast.SegThis:
			if i != 0 {
				e.abortf(rv.Line(), "'this' must start a path expression")
			}
			current = e.scope(0).Parent
			if current == nil {
				e.abortf(rv.Line(), "'this' can only be used inside a type")
			}

		case ast.SegParent:
			if i == 0 {
				if len(e.scopes) < 2 {
					e.abortf(rv.Line(), "no parent available at global scope")
				}
				current = e.scope(-1).Parent
				if current == nil {
					e.abortf(rv.Line(), "no parent pattern available")
				}
			} else {
				e.abortf(rv.Line(), "'parent' must start a path expression")
			}

		case ast.SegName:
			if i == 0 {
				current = e.findNamed(seg.Name, rv.Line())
			} else {
				current = e.member(current, seg.Name, rv.Line())
			}

		case ast.SegIndex:
			idx := e.toUnsigned(e.evalExpr(seg.Index), rv.Line())
			current = e.index(current, idx, rv.Line())
		}
	}

	if current == nil {
		e.abortf(rv.Line(), "invalid path expression")
	}
	return current
}

// findNamed resolves the first path segment against the current scope,
// then the global scope.
func (e *Evaluator) findNamed(name string, line uint32) pattern.Pattern {
	if p, _, ok := e.findLocal(name); ok {
		// A local holding a pattern reference continues the walk at
		// the referenced pattern.
		if ref, isRef := e.stack[int(p.Offset())].(value.Ref); isRef && ref.P != nil {
			return ref.P.(pattern.Pattern)
		}
		return p
	}

	scopes := []*Scope{e.scope(0)}
	if !e.isGlobalScope() {
		scopes = append(scopes, e.globalScope())
	}
	for _, s := range scopes {
		for _, p := range *s.Patterns {
			if p.Base().VariableName() == name {
				return p
			}
		}
	}

	e.abortf(line, "no variable named '%s' found", name)
	return nil
}

// member walks one named step into a composite pattern. Pointers
// dereference implicitly.
func (e *Evaluator) member(p pattern.Pattern, name string, line uint32) pattern.Pattern {
	if ptr, ok := p.(*pattern.Pointer); ok {
		p = ptr.Pointee
	}

	switch v := p.(type) {
	case *pattern.Struct:
		for _, m := range v.Members {
			if m.Base().VariableName() == name {
				return m
			}
		}
	case *pattern.Union:
		for _, m := range v.Members {
			if m.Base().VariableName() == name {
				return m
			}
		}
	case *pattern.Bitfield:
		for _, f := range v.Fields {
			if f.Base().VariableName() == name {
				return f
			}
		}
	default:
		e.abortf(line, "cannot access member '%s' of a non-composite pattern", name)
	}

	e.abortf(line, "no member named '%s' found in '%s'", name, p.DisplayName())
	return nil
}

// index walks one array-index step.
func (e *Evaluator) index(p pattern.Pattern, idx uint64, line uint32) pattern.Pattern {
	if ptr, ok := p.(*pattern.Pointer); ok {
		p = ptr.Pointee
	}

	switch v := p.(type) {
	case *pattern.StaticArray:
		if idx >= v.Count {
			e.abortf(line, "array index %d out of bounds of array with %d entries", idx, v.Count)
		}
		return v.Entry(idx)
	case *pattern.DynamicArray:
		if idx >= uint64(len(v.Entries)) {
			e.abortf(line, "array index %d out of bounds of array with %d entries", idx, len(v.Entries))
		}
		return v.Entries[idx]
	default:
		e.abortf(line, "cannot index into a non-array pattern")
		return nil
	}
}
