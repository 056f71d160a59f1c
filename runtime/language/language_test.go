package language

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/value"
	"github.com/hexpat-lang/hexpat/runtime/provider"
	"github.com/hexpat-lang/hexpat/runtime/stdlib"
)

// run executes source against data and requires success.
func run(t *testing.T, source string, data []byte) *Language {
	t.Helper()
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(data), source, nil, nil, true)
	if !ok {
		t.Fatalf("execution failed: %v", lang.Error())
	}
	return lang
}

// runError executes source and requires a hard error containing want.
func runError(t *testing.T, source string, data []byte, want string) *Language {
	t.Helper()
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(data), source, nil, nil, true)
	require.False(t, ok, "execution should have failed")
	require.NotNil(t, lang.Error())
	assert.Contains(t, lang.Error().Message, want)
	assert.Empty(t, lang.Patterns(), "no partial tree may leak")
	return lang
}

func bytesN(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

/* Seed scenarios */

func TestScenarioU32Placement(t *testing.T) {
	lang := run(t, "u32 value @ 0x00;", []byte{0x78, 0x56, 0x34, 0x12, 0, 0})

	patterns := lang.Patterns()
	require.Len(t, patterns, 1)

	p, ok := patterns[0].(*pattern.Unsigned)
	require.True(t, ok)
	assert.Equal(t, uint64(0), p.Offset())
	assert.Equal(t, uint64(4), p.Size())
	assert.Equal(t, "value", p.DisplayName())
	assert.Equal(t, value.Unsigned(0x12345678), p.Value())
}

func TestScenarioBigEndianU16(t *testing.T) {
	lang := run(t, "be u16 x @ 0x02;", []byte{0, 0, 0x01, 0x02, 0})

	p := lang.Patterns()[0].(*pattern.Unsigned)
	assert.Equal(t, uint64(2), p.Offset())
	assert.Equal(t, value.Unsigned(0x0102), p.Value())
}

func TestScenarioStruct(t *testing.T) {
	lang := run(t, "struct Point { u8 x; u8 y; }; Point p @ 0x00;", []byte{0x0A, 0x0B, 0})

	s, ok := lang.Patterns()[0].(*pattern.Struct)
	require.True(t, ok)
	assert.Equal(t, uint64(0), s.Offset())
	assert.Equal(t, uint64(2), s.Size())
	assert.Equal(t, "Point", s.TypeName())

	require.Len(t, s.Members, 2)
	assert.Equal(t, "x", s.Members[0].DisplayName())
	assert.Equal(t, uint64(0), s.Members[0].Offset())
	assert.Equal(t, value.Unsigned(0x0A), s.Members[0].Value())
	assert.Equal(t, "y", s.Members[1].DisplayName())
	assert.Equal(t, uint64(1), s.Members[1].Offset())
	assert.Equal(t, value.Unsigned(0x0B), s.Members[1].Value())
}

func TestScenarioStaticArray(t *testing.T) {
	lang := run(t, "u8 a[4] @ 0x00;", []byte{1, 2, 3, 4, 5})

	arr, ok := lang.Patterns()[0].(*pattern.StaticArray)
	require.True(t, ok)
	assert.Equal(t, uint64(4), arr.Size())
	assert.Equal(t, uint64(4), arr.Count)

	for i := uint64(0); i < 4; i++ {
		assert.Equal(t, value.Unsigned(i+1), arr.Entry(i).Value())
	}
}

func TestScenarioBitfield(t *testing.T) {
	lang := run(t, "bitfield F { low : 4; high : 4; }; F f @ 0x00;", []byte{0xA5})

	bf, ok := lang.Patterns()[0].(*pattern.Bitfield)
	require.True(t, ok)
	assert.Equal(t, uint64(1), bf.Size())
	require.Len(t, bf.Fields, 2)

	assert.Equal(t, "low", bf.Fields[0].DisplayName())
	assert.Equal(t, value.Unsigned(0x5), bf.Fields[0].Value())
	assert.Equal(t, "high", bf.Fields[1].DisplayName())
	assert.Equal(t, value.Unsigned(0xA), bf.Fields[1].Value())
}

func TestScenarioMainReturnValue(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), "fn main() { return 1; };", nil, nil, true)
	require.False(t, ok)
	require.NotNil(t, lang.Error())
	assert.Contains(t, lang.Error().Message, "non-success value returned from main: 1")
}

func TestScenarioDefine(t *testing.T) {
	lang := run(t, "#define X 42\nu8 v @ X;", bytesN(64))
	assert.Equal(t, uint64(42), lang.Patterns()[0].Offset())
}

/* Properties */

// treeShape projects a pattern tree onto exported fields so go-cmp can
// render a readable diff when two runs disagree.
type treeShape struct {
	Name     string
	Type     string
	Offset   uint64
	Size     uint64
	Value    string
	Children []treeShape
}

func shapeOf(p pattern.Pattern) treeShape {
	shape := treeShape{
		Name:   p.DisplayName(),
		Type:   p.TypeName(),
		Offset: p.Offset(),
		Size:   p.Size(),
		Value:  p.FormattedValue(),
	}
	for _, child := range p.Children() {
		shape.Children = append(shape.Children, shapeOf(child))
	}
	return shape
}

func shapesOf(patterns []pattern.Pattern) []treeShape {
	shapes := make([]treeShape, 0, len(patterns))
	for _, p := range patterns {
		shapes = append(shapes, shapeOf(p))
	}
	return shapes
}

func TestDeterministicOutput(t *testing.T) {
	source := `
		struct Entry { u8 kind; u16 size; };
		Entry entries[3] @ 0x00;
		u32 tail @ 0x10;
	`
	data := bytesN(32)

	first := run(t, source, data).Patterns()
	second := run(t, source, data).Patterns()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]), "pattern %d differs between runs", i)
	}

	if diff := cmp.Diff(shapesOf(first), shapesOf(second)); diff != "" {
		t.Errorf("pattern tree differs between runs (-first +second):\n%s", diff)
	}
}

func TestEndiannessRoundTrip(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	for _, tt := range []struct {
		source string
		endian value.Endian
		size   int
	}{
		{"u16 v @ 0;", value.LittleEndian, 2},
		{"be u16 v @ 0;", value.BigEndian, 2},
		{"u32 v @ 0;", value.LittleEndian, 4},
		{"be u64 v @ 0;", value.BigEndian, 8},
	} {
		t.Run(tt.source, func(t *testing.T) {
			lang := run(t, tt.source, data)
			want := value.ReadUnsigned(data[:tt.size], tt.endian)
			got, err := value.ToUnsigned(lang.Patterns()[0].Value())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func checkContainment(t *testing.T, parent pattern.Pattern) {
	if _, isPointer := parent.(*pattern.Pointer); isPointer {
		return
	}
	for _, child := range parent.Children() {
		assert.GreaterOrEqual(t, child.Offset(), parent.Offset())
		assert.LessOrEqual(t, child.Offset()+child.Size(), parent.Offset()+parent.Size())
		checkContainment(t, child)
	}
}

func TestContainment(t *testing.T) {
	lang := run(t, `
		struct Inner { u16 a; u16 b; };
		struct Outer { u8 tag; Inner inner; u8 pad_end; };
		Outer o[2] @ 0x00;
	`, bytesN(32))

	for _, p := range lang.Patterns() {
		checkContainment(t, p)
	}
}

func TestStructSiblingsDoNotOverlap(t *testing.T) {
	lang := run(t, "struct S { u8 a; u16 b; u32 c; }; S s @ 0;", bytesN(16))

	s := lang.Patterns()[0].(*pattern.Struct)
	for i := 0; i < len(s.Members); i++ {
		for j := i + 1; j < len(s.Members); j++ {
			a, b := s.Members[i], s.Members[j]
			disjoint := a.Offset()+a.Size() <= b.Offset() || b.Offset()+b.Size() <= a.Offset()
			assert.True(t, disjoint, "members %d and %d overlap", i, j)
		}
	}
}

func TestUnionCoincidence(t *testing.T) {
	lang := run(t, "union U { u8 small; u32 big; }; U u @ 0;", bytesN(8))

	u := lang.Patterns()[0].(*pattern.Union)
	assert.Equal(t, uint64(4), u.Size())
	require.Len(t, u.Members, 2)
	for _, m := range u.Members {
		assert.Equal(t, u.Offset(), m.Offset())
	}
}

func TestBitfieldTotality(t *testing.T) {
	lang := run(t, "bitfield B { a : 3; b : 5; c : 8; }; B b @ 0;", bytesN(4))

	bf := lang.Patterns()[0].(*pattern.Bitfield)
	assert.Equal(t, uint64(2), bf.Size())

	used := make([]bool, bf.Size()*8)
	for _, f := range bf.Fields {
		for bit := f.BitOffset; bit < f.BitOffset+f.BitSize; bit++ {
			require.Less(t, int(bit), len(used), "field exceeds container")
			assert.False(t, used[bit], "bit %d assigned twice", bit)
			used[bit] = true
		}
	}
}

func TestPatternLimitHonesty(t *testing.T) {
	runError(t, "#pragma pattern_limit 2\nu8 a @ 0; u8 b @ 1; u8 c @ 2;", bytesN(8),
		"exceeded maximum number of patterns")
}

func TestArrayLimit(t *testing.T) {
	runError(t, "#pragma array_limit 4\nu8 a[10] @ 0;", bytesN(32),
		"array grew past set limit")
}

func TestLoopLimit(t *testing.T) {
	runError(t, "#pragma loop_limit 4\nu8 a[while(true)] @ 0;", bytesN(64),
		"loop iterations exceeded set limit of 4")
}

func TestEvaluationDepthLimit(t *testing.T) {
	runError(t, "#pragma eval_depth 4\nstruct R { u8 v; R next; }; R r @ 0;", bytesN(64),
		"evaluation depth exceeded set limit of 4")
}

func TestDivisionByZero(t *testing.T) {
	runError(t, "fn main() { return 1 / 0; };", bytesN(4), "division by zero")
	runError(t, "fn main() { return 5 % 0; };", bytesN(4), "division by zero")
}

func TestReadPastEnd(t *testing.T) {
	runError(t, "u32 v @ 0x10;", bytesN(4), "out of bounds")
}

/* Language features */

func TestPragmaEndian(t *testing.T) {
	lang := run(t, "#pragma endian big\nu16 x @ 0;", []byte{0x01, 0x02})
	assert.Equal(t, value.Unsigned(0x0102), lang.Patterns()[0].Value())
}

func TestPragmaBaseAddress(t *testing.T) {
	lang := run(t, "#pragma base_address 0x100\nu8 x @ 0x100;", []byte{0xAB})
	p := lang.Patterns()[0]
	assert.Equal(t, uint64(0x100), p.Offset())
	assert.Equal(t, value.Unsigned(0xAB), p.Value())
}

func TestPragmaBitfieldOrder(t *testing.T) {
	lang := run(t, "#pragma bitfield_order left_to_right\nbitfield F { low : 4; high : 4; }; F f @ 0;",
		[]byte{0xA5})

	bf := lang.Patterns()[0].(*pattern.Bitfield)
	assert.Equal(t, value.Unsigned(0xA), bf.Fields[0].Value())
	assert.Equal(t, value.Unsigned(0x5), bf.Fields[1].Value())
}

func TestEnum(t *testing.T) {
	lang := run(t, "enum Color : u8 { Red = 1, Green, Blue }; Color c @ 0;", []byte{2})

	e, ok := lang.Patterns()[0].(*pattern.Enum)
	require.True(t, ok)
	assert.Equal(t, "Color", e.TypeName())
	assert.Equal(t, "Green", e.ValueName())
	assert.Contains(t, e.FormattedValue(), "Green")
}

func TestEnumRangeEntry(t *testing.T) {
	lang := run(t, "enum Kind : u8 { Low = 0x00 ... 0x0F, High = 0x10 ... 0xFF }; Kind k @ 0;", []byte{0x42})
	e := lang.Patterns()[0].(*pattern.Enum)
	assert.Equal(t, "High", e.ValueName())
}

func TestEnumConstantExpression(t *testing.T) {
	lang := run(t, "enum E : u8 { A = 5 }; u8 x @ E::A;", bytesN(16))
	assert.Equal(t, uint64(5), lang.Patterns()[0].Offset())
}

func TestCharStrings(t *testing.T) {
	lang := run(t, "char name[5] @ 0;", []byte("hello!"))
	s, ok := lang.Patterns()[0].(*pattern.String)
	require.True(t, ok)
	assert.Equal(t, value.String("hello"), s.Value())

	lang = run(t, "char s[] @ 0;", []byte{'h', 'i', 0, 0xFF})
	s = lang.Patterns()[0].(*pattern.String)
	assert.Equal(t, uint64(3), s.Size())
	assert.Equal(t, value.String("hi"), s.Value())
}

func TestLoopArrays(t *testing.T) {
	lang := run(t, "u8 head[while($ < 4)] @ 0;", bytesN(16))
	arr := lang.Patterns()[0].(*pattern.DynamicArray)
	assert.Len(t, arr.Entries, 4)

	lang = run(t, "u8 tail[until($ >= 3)] @ 0;", bytesN(16))
	arr = lang.Patterns()[0].(*pattern.DynamicArray)
	assert.Len(t, arr.Entries, 3)
}

func TestPointer(t *testing.T) {
	data := bytesN(16)
	data[0] = 0x04
	data[4] = 0xAA

	lang := run(t, "u8 *p : u8 @ 0x00;", data)
	ptr, ok := lang.Patterns()[0].(*pattern.Pointer)
	require.True(t, ok)
	assert.Equal(t, uint64(1), ptr.Size())
	assert.Equal(t, uint64(4), ptr.PointedAt)

	require.NotNil(t, ptr.Pointee)
	assert.Equal(t, uint64(4), ptr.Pointee.Offset())
	assert.Equal(t, value.Unsigned(0xAA), ptr.Pointee.Value())
}

func TestPointerBase(t *testing.T) {
	data := bytesN(16)
	data[0] = 0x04
	data[6] = 0xBB

	lang := run(t, `
		fn rebase(u32 v) { return 2; };
		u8 *p : u8 @ 0x00 [[pointer_base("rebase")]];
	`, data)

	ptr := lang.Patterns()[0].(*pattern.Pointer)
	assert.Equal(t, uint64(6), ptr.PointedAt)
	assert.Equal(t, value.Unsigned(0xBB), ptr.Pointee.Value())
}

func TestInOutVariables(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), `
		in u32 threshold;
		out u32 result;
		fn main() { result = threshold * 2; };
	`, nil, map[string]value.Literal{"threshold": value.Unsigned(21)}, true)
	require.True(t, ok, "error: %v", lang.Error())

	out := lang.OutVariables()
	require.Contains(t, out, "result")
	assert.Equal(t, value.Unsigned(42), out["result"])
}

func TestEnvVariables(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)),
		`out u32 v; fn main() { v = std::env("answer"); };`,
		map[string]value.Literal{"answer": value.Unsigned(42)}, nil, true)
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(42), lang.OutVariables()["v"])
}

func TestExecuteFunction(t *testing.T) {
	lang := New()
	ok, result := lang.ExecuteFunction(provider.NewMemory(bytesN(8)), "return 40 + 2;")
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(42), result)

	ok, result = lang.ExecuteFunction(provider.NewMemory(bytesN(8)),
		`return std::format("at {}", 7);`)
	require.True(t, ok)
	assert.Equal(t, value.String("at 7"), result)
}

func TestExecuteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.hexpat")
	require.NoError(t, os.WriteFile(path, []byte("u16 v @ 0;"), 0o644))

	lang := New()
	ok := lang.ExecuteFile(provider.NewMemory([]byte{0x34, 0x12}), path, nil, nil)
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(0x1234), lang.Patterns()[0].Value())

	ok = lang.ExecuteFile(provider.NewMemory(nil), filepath.Join(dir, "missing.hexpat"), nil, nil)
	assert.False(t, ok)
}

func TestIncludePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.hexpat"),
		[]byte("struct Header { u8 magic; u8 version; };\n"), 0o644))

	lang := New()
	lang.AddIncludePath(dir)
	ok := lang.ExecuteString(provider.NewMemory([]byte{0x7F, 0x01}),
		"#include \"defs.hexpat\"\nHeader h @ 0;", nil, nil, true)
	require.True(t, ok, "error: %v", lang.Error())

	s := lang.Patterns()[0].(*pattern.Struct)
	assert.Len(t, s.Members, 2)
}

func TestAttributes(t *testing.T) {
	lang := run(t, `
		struct Blob { u8 a; u8 b; };
		Blob blob @ 0 [[inline]];
		u8 secret @ 2 [[hidden]];
		u8 colored @ 3 [[color("FF0000")]];
		u8 named @ 4 [[name("pretty"), comment("a note")]];
	`, bytesN(16))

	patterns := lang.Patterns()
	require.Len(t, patterns, 4)

	assert.True(t, patterns[0].Base().Inlined())
	assert.True(t, patterns[1].Base().Hidden())
	assert.Equal(t, uint32(0xFF0000), patterns[2].Base().Color())
	assert.Equal(t, "pretty", patterns[3].DisplayName())
	assert.Equal(t, "a note", patterns[3].Base().Comment())
}

func TestAttributeMisuse(t *testing.T) {
	runError(t, "u8 v @ 0 [[inline]];", bytesN(4),
		"inline attribute can only be applied to nested types")
	runError(t, "u8 v @ 0 [[format_entries(\"std::error\")]];", bytesN(4),
		"can only be applied to array types")
	runError(t, "u8 v @ 0 [[pointer_base(\"std::error\")]];", bytesN(4),
		"may only be applied to a pointer")
}

func TestFormatAttribute(t *testing.T) {
	lang := run(t, `
		fn doubled(u32 x) { return x * 2; };
		u8 v @ 0 [[format("doubled")]];
	`, []byte{21})

	assert.Equal(t, "42", lang.Patterns()[0].FormattedValue())
}

func TestTransformAttribute(t *testing.T) {
	lang := run(t, `
		fn plusone(u32 x) { return x + 1; };
		u8 v @ 0 [[transform("plusone")]];
	`, []byte{41})

	assert.Equal(t, value.Unsigned(42), lang.Patterns()[0].Value())
}

func TestNoUniqueAddress(t *testing.T) {
	lang := run(t, "struct S { u8 a [[no_unique_address]]; u8 b; }; S s @ 0;", []byte{0x55, 0x66})

	s := lang.Patterns()[0].(*pattern.Struct)
	assert.Equal(t, uint64(1), s.Size())
	require.Len(t, s.Members, 2)
	assert.Equal(t, s.Members[0].Offset(), s.Members[1].Offset())
}

func TestConditionalMembers(t *testing.T) {
	source := `
		struct Packet {
			u8 kind;
			if (kind == 1) {
				u16 payload;
			} else {
				u8 raw;
			}
		};
		Packet p @ 0;
	`

	lang := run(t, source, []byte{0x01, 0xCD, 0xAB})
	s := lang.Patterns()[0].(*pattern.Struct)
	require.Len(t, s.Members, 2)
	assert.Equal(t, uint64(3), s.Size())
	assert.Equal(t, "payload", s.Members[1].DisplayName())

	lang = run(t, source, []byte{0x00, 0xCD, 0xAB})
	s = lang.Patterns()[0].(*pattern.Struct)
	assert.Equal(t, "raw", s.Members[1].DisplayName())
	assert.Equal(t, uint64(2), s.Size())
}

func TestSiblingReference(t *testing.T) {
	lang := run(t, `
		struct Sized {
			u8 count;
			u8 data[count];
		};
		Sized s @ 0;
	`, []byte{3, 0xAA, 0xBB, 0xCC, 0xDD})

	s := lang.Patterns()[0].(*pattern.Struct)
	assert.Equal(t, uint64(4), s.Size())
}

func TestParentReference(t *testing.T) {
	lang := run(t, `
		struct Inner { u8 data[parent.count]; };
		struct Outer { u8 count; Inner inner; };
		Outer o @ 0;
	`, []byte{2, 0xAA, 0xBB, 0xCC})

	outer := lang.Patterns()[0].(*pattern.Struct)
	assert.Equal(t, uint64(3), outer.Size())
}

func TestSizeofAddressof(t *testing.T) {
	lang := run(t, `
		u32 first @ 0;
		u8 second @ sizeof(first) + addressof(first);
	`, bytesN(16))

	assert.Equal(t, uint64(4), lang.Patterns()[1].Offset())
}

func TestPaddingPattern(t *testing.T) {
	lang := run(t, "struct S { u8 a; padding[3]; u8 b; }; S s @ 0;", bytesN(8))

	s := lang.Patterns()[0].(*pattern.Struct)
	assert.Equal(t, uint64(5), s.Size())

	pad, ok := s.Members[1].(*pattern.Padding)
	require.True(t, ok)
	assert.Equal(t, uint64(3), pad.Size())
	assert.Equal(t, uint64(4), s.Members[2].Offset())
}

func TestNamespaces(t *testing.T) {
	lang := run(t, `
		namespace img {
			struct Header { u8 magic; };
		}
		img::Header h @ 0;
	`, bytesN(4))

	assert.Equal(t, "img::Header", lang.Patterns()[0].TypeName())
}

func TestDanglingDangerousFunction(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)),
		`fn main() { std::file::read("/nonexistent"); };`, nil, nil, true)
	require.False(t, ok)
	assert.True(t, lang.DangerousFunctionBeenCalled())
	assert.Contains(t, lang.Error().Message, "not allowed")
}

func TestAllowedDangerousFunction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	lang := New()
	lang.AllowDangerousFunctions(true)
	ok, result := lang.ExecuteFunction(provider.NewMemory(bytesN(4)),
		"return std::file::read(\""+strings.ReplaceAll(path, `\`, `\\`)+"\");")
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.String("content"), result)
	assert.True(t, lang.DangerousFunctionBeenCalled())
}

func TestStdPrintLogsToConsole(t *testing.T) {
	lang := New()
	ok, _ := lang.ExecuteFunction(provider.NewMemory(bytesN(4)), `std::print("hello {}", 7); return 0;`)
	require.True(t, ok, "error: %v", lang.Error())

	var found bool
	for _, msg := range lang.ConsoleLog() {
		if strings.Contains(msg.Text, "hello 7") {
			found = true
		}
	}
	assert.True(t, found, "std::print output missing from console")
}

func TestHashBuiltin(t *testing.T) {
	lang := New()
	ok, result := lang.ExecuteFunction(provider.NewMemory(bytesN(8)),
		"return std::hash::blake2b(0, 4);")
	require.True(t, ok, "error: %v", lang.Error())

	digest, isString := result.(value.String)
	require.True(t, isString)
	assert.Len(t, string(digest), 64)
}

func TestUserFunctions(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), `
		out u32 result;
		fn fact(u32 n) {
			if (n <= 1) { return 1; }
			return n * fact(n - 1);
		};
		fn main() { result = fact(5); };
	`, nil, nil, true)
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(120), lang.OutVariables()["result"])
}

func TestParameterPack(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), `
		out u32 result;
		fn sum3(u32 a, u32 b, u32 c) { return a + b + c; };
		fn forward(auto args...) { return sum3(args); };
		fn main() { result = forward(1, 2, 3); };
	`, nil, nil, true)
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(6), lang.OutVariables()["result"])
}

func TestWhileAndForLoops(t *testing.T) {
	lang := New()
	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), `
		out u32 total;
		fn main() {
			u32 acc = 0;
			for (u8 i = 0; i < 5; i += 1) {
				acc += i;
			}
			while (acc < 100) {
				acc = acc * 2;
				if (acc == 40) { break; }
			}
			total = acc;
		};
	`, nil, nil, true)
	require.True(t, ok, "error: %v", lang.Error())
	assert.Equal(t, value.Unsigned(40), lang.OutVariables()["total"])
}

func TestAbortPromptness(t *testing.T) {
	lang := New()

	// Aborting before a run starts is a no-op.
	lang.Abort()

	// host::trip sets the abort flag mid-run; the next loop iteration
	// must observe it.
	err := lang.Registry().AddCustomFunction("host::trip", stdlib.Exactly(0),
		func(ctx stdlib.Context, args []value.Literal) (value.Literal, error) {
			lang.Abort()
			return nil, nil
		})
	require.NoError(t, err)

	ok := lang.ExecuteString(provider.NewMemory(bytesN(4)), `
		fn main() {
			host::trip();
			while (true) { }
		};
	`, nil, nil, true)
	require.False(t, ok)
	assert.Contains(t, lang.Error().Message, "evaluation aborted by user")
}
