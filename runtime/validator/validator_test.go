package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpat-lang/hexpat/runtime/lexer"
	"github.com/hexpat-lang/hexpat/runtime/parser"
	"github.com/hexpat-lang/hexpat/runtime/stdlib"
)

func validate(t *testing.T, source string) error {
	t.Helper()
	toks, err := lexer.New(source).Lex()
	require.NoError(t, err)

	p := parser.New(toks)
	program, err := p.Parse()
	require.NoError(t, err)

	registry := stdlib.NewRegistry()
	stdlib.RegisterBuiltins(registry)
	return New(p.Types(), registry).Validate(program)
}

func TestValidProgram(t *testing.T) {
	err := validate(t, `
		struct Header { u8 magic; u16 size; };
		Header hdr @ 0x00;
		fn helper(u32 x) { return x; };
		fn main() { return helper(1); };
	`)
	assert.NoError(t, err)
}

func TestUnresolvedType(t *testing.T) {
	err := validate(t, "Mystery m @ 0x00;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot resolve type 'Mystery'")
}

func TestUnresolvedTypeSuggestion(t *testing.T) {
	err := validate(t, "struct Header { u8 magic; }; Headr h @ 0x00;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean 'Header'?")
}

func TestDuplicateMember(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "struct member",
			source: "struct S { u8 x; u16 x; }; S s @ 0;",
			want:   "redeclaration of 'x'",
		},
		{
			name:   "enum entry",
			source: "enum E : u8 { A, A }; E e @ 0;",
			want:   "redeclaration of enum entry 'A'",
		},
		{
			name:   "bitfield field",
			source: "bitfield B { f : 1; f : 2; }; B b @ 0;",
			want:   "redeclaration of bitfield field 'f'",
		},
		{
			name:   "union member",
			source: "union U { u8 v; u16 v; }; U u @ 0;",
			want:   "redeclaration of 'v'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(t, tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnknownFunction(t *testing.T) {
	err := validate(t, "fn main() { frobnicate(); };")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call to unknown function 'frobnicate'")
}

func TestBuiltinSuggestion(t *testing.T) {
	err := validate(t, "fn main() { std::prin(\"x\"); };")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean 'std::print'?")
}

func TestForwardFunctionCall(t *testing.T) {
	err := validate(t, `
		fn first() { return second(); };
		fn second() { return 1; };
	`)
	assert.NoError(t, err)
}

func TestDuplicateFunction(t *testing.T) {
	err := validate(t, "fn f() { return 1; }; fn f() { return 2; };")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redefinition of function 'f'")
}

func TestAttributeSiteDeferred(t *testing.T) {
	// Attribute misuse is checked when attributes are applied to the
	// produced pattern, not statically.
	err := validate(t, "u32 v @ 0 [[inline]];")
	assert.NoError(t, err)
}

func TestFunctionCallInsidePlacement(t *testing.T) {
	err := validate(t, "u8 v @ unknown_offset();")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function")
}
