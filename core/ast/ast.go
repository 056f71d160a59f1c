// Package ast defines the syntax tree of the pattern language.
//
// Nodes are pure data: all evaluation logic lives in runtime/evaluator,
// which switches exhaustively over the node variants. Every node carries
// its source line and supports structural deep cloning; type
// declarations are shared (aliased) rather than cloned so that forward
// references across a translation unit resolve to one declaration.
package ast

import (
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Line() uint32
	Clone() Node
}

type base struct {
	Ln uint32
}

func (b base) Line() uint32 { return b.Ln }

// At attaches a source line to a node under construction.
func At[N Node](line uint32, n N) N {
	switch v := any(n).(type) {
	case interface{ setLine(uint32) }:
		v.setLine(line)
	}
	return n
}

func (b *base) setLine(l uint32) { b.Ln = l }

func cloneSlice(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneExpr(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

/* Expressions */

// Literal is a constant value.
type Literal struct {
	base
	Val value.Literal
}

func (n *Literal) Clone() Node { c := *n; return &c }

// Dollar evaluates to the evaluator's current read offset.
type Dollar struct {
	base
}

func (n *Dollar) Clone() Node { c := *n; return &c }

// SegmentKind tags one step of an rvalue path.
type SegmentKind int

const (
	SegName SegmentKind = iota
	SegIndex
	SegParent
	SegThis
)

// PathSegment is one step of an rvalue path such as a.b[3].c.
type PathSegment struct {
	Kind  SegmentKind
	Name  string
	Index Node
}

// RValue references a variable or a pattern member by path.
type RValue struct {
	base
	Path []PathSegment
}

func (n *RValue) Clone() Node {
	c := *n
	c.Path = make([]PathSegment, len(n.Path))
	for i, s := range n.Path {
		c.Path[i] = PathSegment{Kind: s.Kind, Name: s.Name, Index: cloneExpr(s.Index)}
	}
	return &c
}

// MathOp is a binary operation.
type MathOp struct {
	base
	LHS, RHS Node
	Op       tokens.Operator
}

func (n *MathOp) Clone() Node {
	c := *n
	c.LHS, c.RHS = cloneExpr(n.LHS), cloneExpr(n.RHS)
	return &c
}

// UnaryOp is a prefix operation.
type UnaryOp struct {
	base
	Op      tokens.Operator
	Operand Node
}

func (n *UnaryOp) Clone() Node {
	c := *n
	c.Operand = cloneExpr(n.Operand)
	return &c
}

// Ternary is cond ? a : b.
type Ternary struct {
	base
	Cond, True, False Node
}

func (n *Ternary) Clone() Node {
	c := *n
	c.Cond, c.True, c.False = cloneExpr(n.Cond), cloneExpr(n.True), cloneExpr(n.False)
	return &c
}

// Cast converts an expression to a built-in type: expr as u32.
type Cast struct {
	base
	Expr Node
	To   *TypeDecl
}

func (n *Cast) Clone() Node {
	c := *n
	c.Expr = cloneExpr(n.Expr)
	return &c
}

// TypeOperatorKind selects sizeof or addressof.
type TypeOperatorKind int

const (
	OpSizeOf TypeOperatorKind = iota
	OpAddressOf
)

// TypeOperator is sizeof(expr) or addressof(expr).
type TypeOperator struct {
	base
	Op   TypeOperatorKind
	Expr Node
}

func (n *TypeOperator) Clone() Node {
	c := *n
	c.Expr = cloneExpr(n.Expr)
	return &c
}

// FunctionCall calls a named function with evaluated arguments.
type FunctionCall struct {
	base
	Name string
	Args []Node
}

func (n *FunctionCall) Clone() Node {
	c := *n
	c.Args = cloneSlice(n.Args)
	return &c
}

/* Types */

// TypeDecl names a type and may carry an endianness override. Ty is the
// definition (BuiltinType, Struct, Union, Enum, Bitfield or another
// TypeDecl for using-aliases); it stays nil on forward declarations
// until the definition is parsed. TypeDecl pointers are shared between
// all sites referencing the type, so Clone returns the receiver.
type TypeDecl struct {
	base
	Attributable
	Name   string
	Endian *value.Endian
	Ty     Node
}

func (n *TypeDecl) Clone() Node { return n }

// BuiltinType is a primitive type keyword.
type BuiltinType struct {
	base
	VT tokens.ValueType
}

func (n *BuiltinType) Clone() Node { c := *n; return &c }

// Struct is an ordered list of member declarations.
type Struct struct {
	base
	Attributable
	Members []Node
}

func (n *Struct) Clone() Node {
	c := *n
	c.Members = cloneSlice(n.Members)
	return &c
}

// Union overlays its member declarations at one offset.
type Union struct {
	base
	Attributable
	Members []Node
}

func (n *Union) Clone() Node {
	c := *n
	c.Members = cloneSlice(n.Members)
	return &c
}

// EnumEntry maps a name to a constant expression, optionally a range.
type EnumEntry struct {
	Name  string
	Value Node
	Last  Node // non-nil for range entries: Name = Value ... Last
}

// Enum reads its underlying integer type and labels known values.
type Enum struct {
	base
	Attributable
	Underlying *TypeDecl
	Entries    []EnumEntry
}

func (n *Enum) Clone() Node {
	c := *n
	c.Entries = make([]EnumEntry, len(n.Entries))
	for i, e := range n.Entries {
		c.Entries[i] = EnumEntry{Name: e.Name, Value: cloneExpr(e.Value), Last: cloneExpr(e.Last)}
	}
	return &c
}

// BitfieldEntry is one field of a bitfield; an empty name declares
// anonymous padding bits.
type BitfieldEntry struct {
	Name string
	Bits Node
}

// Bitfield packs named sub-byte fields into an integer container.
type Bitfield struct {
	base
	Attributable
	Entries []BitfieldEntry
}

func (n *Bitfield) Clone() Node {
	c := *n
	c.Entries = make([]BitfieldEntry, len(n.Entries))
	for i, e := range n.Entries {
		c.Entries[i] = BitfieldEntry{Name: e.Name, Bits: cloneExpr(e.Bits)}
	}
	return &c
}

/* Declarations */

// VariableDecl declares a variable, optionally placed at an absolute
// offset. In/Out flag top-level declarations exchanged with the host.
type VariableDecl struct {
	base
	Attributable
	Name      string
	Type      *TypeDecl
	Placement Node
	In, Out   bool
}

func (n *VariableDecl) Clone() Node {
	c := *n
	c.Attributable = n.Attributable.clone()
	c.Placement = cloneExpr(n.Placement)
	return &c
}

// ArrayVariableDecl declares an array variable. At most one of Size or
// Cond is set: Size for static counts, Cond for while/until sized
// arrays (Until selects the post-checked sentinel form); neither for an
// unsized `char s[]` string read up to its terminator.
type ArrayVariableDecl struct {
	base
	Attributable
	Name      string
	Type      *TypeDecl
	Size      Node
	Cond      Node
	Until     bool
	Placement Node
}

func (n *ArrayVariableDecl) Clone() Node {
	c := *n
	c.Attributable = n.Attributable.clone()
	c.Size, c.Cond, c.Placement = cloneExpr(n.Size), cloneExpr(n.Cond), cloneExpr(n.Placement)
	return &c
}

// PointerVariableDecl declares a pointer variable whose pointee is
// resolved at evaluation time.
type PointerVariableDecl struct {
	base
	Attributable
	Name      string
	Type      *TypeDecl
	SizeType  *TypeDecl
	Placement Node
}

func (n *PointerVariableDecl) Clone() Node {
	c := *n
	c.Attributable = n.Attributable.clone()
	c.Placement = cloneExpr(n.Placement)
	return &c
}

// MultiVariableDecl declares several variables of one type in a single
// statement (function bodies only).
type MultiVariableDecl struct {
	base
	Variables []Node
}

func (n *MultiVariableDecl) Clone() Node {
	c := *n
	c.Variables = cloneSlice(n.Variables)
	return &c
}

// Namespace wraps declarations in a named scope. Declared names are
// additionally stored fully qualified by the parser.
type Namespace struct {
	base
	Name string
	Body []Node
}

func (n *Namespace) Clone() Node {
	c := *n
	c.Body = cloneSlice(n.Body)
	return &c
}

// FunctionParam is a named function parameter.
type FunctionParam struct {
	Name string
	Type *TypeDecl
}

// FunctionDef defines a callable function. ParamPack, when non-empty,
// names the variadic tail parameter.
type FunctionDef struct {
	base
	Name      string
	Params    []FunctionParam
	ParamPack string
	Body      []Node
}

func (n *FunctionDef) Clone() Node {
	c := *n
	c.Params = append([]FunctionParam(nil), n.Params...)
	c.Body = cloneSlice(n.Body)
	return &c
}

/* Statements */

// Assignment assigns to a function-local variable, a global local
// variable, or "$" for the current offset.
type Assignment struct {
	base
	LValue string
	RValue Node
}

func (n *Assignment) Clone() Node {
	c := *n
	c.RValue = cloneExpr(n.RValue)
	return &c
}

// Conditional is if/else, in both pattern and function bodies.
type Conditional struct {
	base
	Cond      Node
	TrueBody  []Node
	FalseBody []Node
}

func (n *Conditional) Clone() Node {
	c := *n
	c.Cond = cloneExpr(n.Cond)
	c.TrueBody, c.FalseBody = cloneSlice(n.TrueBody), cloneSlice(n.FalseBody)
	return &c
}

// WhileLoop is a function-mode while loop.
type WhileLoop struct {
	base
	Cond Node
	Body []Node
}

func (n *WhileLoop) Clone() Node {
	c := *n
	c.Cond = cloneExpr(n.Cond)
	c.Body = cloneSlice(n.Body)
	return &c
}

// ForLoop is a function-mode for loop.
type ForLoop struct {
	base
	Init, Cond, Post Node
	Body             []Node
}

func (n *ForLoop) Clone() Node {
	c := *n
	c.Init, c.Cond, c.Post = cloneExpr(n.Init), cloneExpr(n.Cond), cloneExpr(n.Post)
	c.Body = cloneSlice(n.Body)
	return &c
}

// ControlFlowKind tags break, continue and return statements.
type ControlFlowKind int

const (
	FlowReturn ControlFlowKind = iota
	FlowBreak
	FlowContinue
)

// ControlFlow unwinds the enclosing loop or function body.
type ControlFlow struct {
	base
	Stmt  ControlFlowKind
	Value Node // return value, may be nil
}

func (n *ControlFlow) Clone() Node {
	c := *n
	c.Value = cloneExpr(n.Value)
	return &c
}
