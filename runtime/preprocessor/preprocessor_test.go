package preprocessor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineSubstitution(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "simple define",
			source: "#define X 42\nu8 v @ X;",
			want:   "u8 v @ 42;",
		},
		{
			name:   "longest name first",
			source: "#define AB 1\n#define ABC 2\nu8 v @ ABC;",
			want:   "u8 v @ 2;",
		},
		{
			name:   "value is rest of line",
			source: "#define SIZE 4 * 2\nu8 v @ SIZE;",
			want:   "u8 v @ 4 * 2;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New().Preprocess(tt.source, true)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestComments(t *testing.T) {
	out, err := New().Preprocess("u8 a @ 0; // trailing\nu8 b @ 1;", true)
	require.NoError(t, err)
	assert.NotContains(t, out, "trailing")
	assert.Contains(t, out, "u8 b @ 1;")

	out, err = New().Preprocess("u8 a @ 0; /* block\nstill block */ u8 b @ 1;", true)
	require.NoError(t, err)
	assert.NotContains(t, out, "block")
	assert.Contains(t, out, "u8 b @ 1;")
	// Newlines inside block comments are preserved for line numbering.
	assert.Equal(t, 2, strings.Count(out, "\n")+1)
}

func TestUnterminatedComment(t *testing.T) {
	_, err := New().Preprocess("/* never closed", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated comment")
}

func TestUnknownDirective(t *testing.T) {
	_, err := New().Preprocess("#frobnicate\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preprocessor directive")
}

func TestDirectiveInStringIsIgnored(t *testing.T) {
	out, err := New().Preprocess("u8 a @ 0;\nfn f() { std::print(\"#define X\"); };", true)
	require.NoError(t, err)
	assert.Contains(t, out, "#define X")
}

func TestPragmaDispatch(t *testing.T) {
	p := New()
	var got string
	p.AddPragmaHandler("endian", func(v string) bool {
		got = v
		return v == "big" || v == "little" || v == "native"
	})

	_, err := p.Preprocess("#pragma endian big\nu8 a @ 0;", true)
	require.NoError(t, err)
	assert.Equal(t, "big", got)

	_, err = New().Preprocess("#pragma frobnicate on\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no #pragma handler registered for type frobnicate")
}

func TestPragmaHandlerRejection(t *testing.T) {
	p := New()
	p.AddPragmaHandler("endian", func(v string) bool { return false })

	_, err := p.Preprocess("#pragma endian sideways\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value provided to 'endian' #pragma directive")
}

func TestMIMEPragma(t *testing.T) {
	_, err := New().Preprocess("#pragma MIME application/x-test\n", true)
	require.NoError(t, err)

	_, err = New().Preprocess("#pragma MIME \n", true)
	require.Error(t, err)
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.hexpat"),
		[]byte("struct Header {\n  u8 magic;\n};\n"), 0o644))

	p := New()
	p.AddIncludePath(dir)

	out, err := p.Preprocess("#include \"defs.hexpat\"\nHeader h @ 0;", true)
	require.NoError(t, err)
	assert.Contains(t, out, "struct Header")
	assert.Contains(t, out, "Header h @ 0;")
	// Inlined line breaks become spaces so outer line numbers hold.
	assert.NotContains(t, strings.Split(out, "\n")[0], "Header h")
}

func TestIncludeMissing(t *testing.T) {
	_, err := New().Preprocess("#include \"nope.hexpat\"\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such file or directory")

	_, err = New().Preprocess("#include <std/mem.hexpat>\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "standard library")
}

func TestPragmaOnceIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "once.hexpat"),
		[]byte("#pragma once\nstruct Only { u8 x; };\n"), 0o644))

	p := New()
	p.AddIncludePath(dir)

	twice, err := p.Preprocess("#include \"once.hexpat\"\n#include \"once.hexpat\"\nOnly o @ 0;", true)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(twice, "struct Only"))

	p2 := New()
	p2.AddIncludePath(dir)
	once, err := p2.Preprocess("#include \"once.hexpat\"\nOnly o @ 0;", true)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(once, "struct Only"), strings.Count(twice, "struct Only"))
}

func TestDefineErrors(t *testing.T) {
	_, err := New().Preprocess("#define\n", true)
	require.Error(t, err)

	_, err = New().Preprocess("#define NAME\n", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value given in #define directive")
}
