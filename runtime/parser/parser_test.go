package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
	"github.com/hexpat-lang/hexpat/runtime/lexer"
)

func parse(t *testing.T, source string) (*Parser, []ast.Node) {
	t.Helper()
	toks, err := lexer.New(source).Lex()
	require.NoError(t, err)
	p := New(toks)
	program, err := p.Parse()
	require.NoError(t, err)
	return p, program
}

func parseError(t *testing.T, source string) error {
	t.Helper()
	toks, err := lexer.New(source).Lex()
	require.NoError(t, err)
	_, err = New(toks).Parse()
	require.Error(t, err)
	return err
}

func TestVariablePlacement(t *testing.T) {
	_, program := parse(t, "u32 magic @ 0x00;")
	require.Len(t, program, 1)

	decl, ok := program[0].(*ast.VariableDecl)
	require.True(t, ok)
	assert.Equal(t, "magic", decl.Name)
	require.NotNil(t, decl.Placement)

	lit, ok := decl.Placement.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Unsigned(0), lit.Val)

	builtin, ok := decl.Type.Ty.(*ast.BuiltinType)
	require.True(t, ok)
	assert.Equal(t, tokens.U32, builtin.VT)
}

func TestEndianPrefix(t *testing.T) {
	_, program := parse(t, "be u16 x @ 0x02;")
	decl := program[0].(*ast.VariableDecl)
	require.NotNil(t, decl.Type.Endian)
	assert.Equal(t, value.BigEndian, *decl.Type.Endian)
}

func TestStructDefinition(t *testing.T) {
	p, program := parse(t, "struct Point { u8 x; u8 y; }; Point p @ 0x00;")
	require.Len(t, program, 2)

	decl, ok := p.Types()["Point"]
	require.True(t, ok)
	s, ok := decl.Ty.(*ast.Struct)
	require.True(t, ok)
	require.Len(t, s.Members, 2)

	// The variable references the shared declaration.
	v := program[1].(*ast.VariableDecl)
	assert.Same(t, decl, v.Type)
}

func TestForwardReference(t *testing.T) {
	p, _ := parse(t, "struct Outer { Inner i; }; struct Inner { u8 v; }; Outer o @ 0;")
	inner := p.Types()["Inner"]
	require.NotNil(t, inner.Ty)
}

func TestTypeRedefinitionRejected(t *testing.T) {
	err := parseError(t, "struct A { u8 x; }; struct A { u8 y; };")
	assert.Contains(t, err.Error(), "redefinition of type 'A'")
}

func TestUsingAlias(t *testing.T) {
	p, _ := parse(t, "using Word = be u16; Word w @ 0;")
	decl := p.Types()["Word"]
	require.NotNil(t, decl)
	require.NotNil(t, decl.Endian)
	assert.Equal(t, value.BigEndian, *decl.Endian)
}

func TestEnumDefinition(t *testing.T) {
	p, _ := parse(t, "enum Color : u8 { Red = 1, Green, Blue, Bulk = 0x10 ... 0x20 };")
	decl := p.Types()["Color"]
	e, ok := decl.Ty.(*ast.Enum)
	require.True(t, ok)
	require.Len(t, e.Entries, 4)
	assert.Equal(t, "Red", e.Entries[0].Name)
	assert.Nil(t, e.Entries[1].Value)
	assert.NotNil(t, e.Entries[3].Last)
}

func TestBitfieldDefinition(t *testing.T) {
	p, _ := parse(t, "bitfield Flags { low : 4; padding : 2; high : 2; };")
	decl := p.Types()["Flags"]
	b, ok := decl.Ty.(*ast.Bitfield)
	require.True(t, ok)
	require.Len(t, b.Entries, 3)
	assert.Equal(t, "low", b.Entries[0].Name)
	assert.Equal(t, "", b.Entries[1].Name)
}

func TestArrayForms(t *testing.T) {
	_, program := parse(t, `
		u8 sized[4] @ 0x00;
		u8 looped[while($ < 0x10)] @ 0x04;
		u8 sentinel[until($ == 0x20)] @ 0x14;
		char text[] @ 0x24;
	`)
	require.Len(t, program, 4)

	sized := program[0].(*ast.ArrayVariableDecl)
	assert.NotNil(t, sized.Size)
	assert.Nil(t, sized.Cond)

	looped := program[1].(*ast.ArrayVariableDecl)
	assert.Nil(t, looped.Size)
	assert.NotNil(t, looped.Cond)
	assert.False(t, looped.Until)

	sentinel := program[2].(*ast.ArrayVariableDecl)
	assert.True(t, sentinel.Until)

	text := program[3].(*ast.ArrayVariableDecl)
	assert.Nil(t, text.Size)
	assert.Nil(t, text.Cond)
}

func TestPointerDeclaration(t *testing.T) {
	_, program := parse(t, "u32 *ptr : u8 @ 0x00;")
	decl, ok := program[0].(*ast.PointerVariableDecl)
	require.True(t, ok)
	assert.Equal(t, "ptr", decl.Name)

	sizeType, ok := decl.SizeType.Ty.(*ast.BuiltinType)
	require.True(t, ok)
	assert.Equal(t, tokens.U8, sizeType.VT)
}

func TestPaddingMember(t *testing.T) {
	_, program := parse(t, "struct S { u8 a; padding[3]; u8 b; };")
	s := program[0].(*ast.TypeDecl).Ty.(*ast.Struct)
	require.Len(t, s.Members, 3)

	pad, ok := s.Members[1].(*ast.ArrayVariableDecl)
	require.True(t, ok)
	assert.Equal(t, "", pad.Name)
}

func TestAttributes(t *testing.T) {
	_, program := parse(t, `u32 v @ 0x00 [[color("FF0000"), hidden]];`)
	decl := program[0].(*ast.VariableDecl)

	color := decl.Attribute("color")
	require.NotNil(t, color)
	assert.True(t, color.HasValue)
	assert.Equal(t, "FF0000", color.Value)

	hidden := decl.Attribute("hidden")
	require.NotNil(t, hidden)
	assert.False(t, hidden.HasValue)
}

func TestLeadingAttributes(t *testing.T) {
	_, program := parse(t, `[[hidden]] u32 v @ 0x00;`)
	decl := program[0].(*ast.VariableDecl)
	assert.NotNil(t, decl.Attribute("hidden"))
}

func TestNamespaceQualification(t *testing.T) {
	p, program := parse(t, "namespace fmt { struct Header { u8 magic; }; fn check() { return true; }; }")
	require.Len(t, program, 1)

	_, ok := p.Types()["fmt::Header"]
	assert.True(t, ok)

	ns := program[0].(*ast.Namespace)
	assert.Equal(t, "fmt", ns.Name)

	var fn *ast.FunctionDef
	for _, node := range ns.Body {
		if def, isFn := node.(*ast.FunctionDef); isFn {
			fn = def
		}
	}
	require.NotNil(t, fn)
	assert.Equal(t, "fmt::check", fn.Name)
}

func TestFunctionDefinition(t *testing.T) {
	_, program := parse(t, "fn add(u32 a, u32 b) { return a + b; };")
	def := program[0].(*ast.FunctionDef)
	assert.Equal(t, "add", def.Name)
	require.Len(t, def.Params, 2)
	assert.Equal(t, "a", def.Params[0].Name)
	require.Len(t, def.Body, 1)

	ret := def.Body[0].(*ast.ControlFlow)
	assert.Equal(t, ast.FlowReturn, ret.Stmt)
}

func TestFunctionParameterPack(t *testing.T) {
	_, program := parse(t, "fn log(str fmt, auto args...) { return 0; };")
	def := program[0].(*ast.FunctionDef)
	require.Len(t, def.Params, 1)
	assert.Equal(t, "args", def.ParamPack)
}

func TestFunctionStatements(t *testing.T) {
	_, program := parse(t, `
		fn walk() {
			u32 total = 0;
			for (u8 i = 0; i < 4; i += 1)
				total += 2;
			while (total < 100) {
				total = total * 2;
				if (total == 64)
					break;
			}
			return total;
		};
	`)
	def := program[0].(*ast.FunctionDef)
	require.NotEmpty(t, def.Body)
}

func TestExpressionPrecedence(t *testing.T) {
	_, program := parse(t, "u8 v @ 1 + 2 * 3;")
	decl := program[0].(*ast.VariableDecl)

	add, ok := decl.Placement.(*ast.MathOp)
	require.True(t, ok)
	assert.Equal(t, tokens.OpPlus, add.Op)

	mul, ok := add.RHS.(*ast.MathOp)
	require.True(t, ok)
	assert.Equal(t, tokens.OpStar, mul.Op)
}

func TestTernaryAndCast(t *testing.T) {
	_, program := parse(t, "u8 v @ true ? 1 : 2 as u32;")
	decl := program[0].(*ast.VariableDecl)
	_, ok := decl.Placement.(*ast.Ternary)
	assert.True(t, ok)
}

func TestRValuePaths(t *testing.T) {
	_, program := parse(t, "u8 v @ hdr.entries[2].offset;")
	decl := program[0].(*ast.VariableDecl)
	rv, ok := decl.Placement.(*ast.RValue)
	require.True(t, ok)
	require.Len(t, rv.Path, 4)
	assert.Equal(t, ast.SegName, rv.Path[0].Kind)
	assert.Equal(t, ast.SegIndex, rv.Path[2].Kind)
	assert.Equal(t, "offset", rv.Path[3].Name)
}

func TestConditionalAtMemberScope(t *testing.T) {
	_, program := parse(t, `
		struct Packet {
			u8 kind;
			if (kind == 1) {
				u16 payload;
			} else {
				u8 raw;
			}
		};
	`)
	s := program[0].(*ast.TypeDecl).Ty.(*ast.Struct)
	require.Len(t, s.Members, 2)

	cond, ok := s.Members[1].(*ast.Conditional)
	require.True(t, ok)
	require.Len(t, cond.TrueBody, 1)
	require.Len(t, cond.FalseBody, 1)
}

func TestInOutDeclarations(t *testing.T) {
	_, program := parse(t, "in u32 threshold; out u32 result;")
	inDecl := program[0].(*ast.VariableDecl)
	assert.True(t, inDecl.In)
	outDecl := program[1].(*ast.VariableDecl)
	assert.True(t, outDecl.Out)
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"missing semicolon", "u8 a @ 0", "expected ';'"},
		{"unknown expression", "u8 a @ };", "unrecognized expression"},
		{"missing struct brace", "struct S u8 x; ;", "expected '{'"},
		{"in/out placement", "in u32 x @ 0;", "cannot be placed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(t, tt.source)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMultiVariableMembers(t *testing.T) {
	_, program := parse(t, "struct V { u8 x, y, z; };")
	s := program[0].(*ast.TypeDecl).Ty.(*ast.Struct)
	require.Len(t, s.Members, 1)

	multi, ok := s.Members[0].(*ast.MultiVariableDecl)
	require.True(t, ok)
	assert.Len(t, multi.Variables, 3)
}
