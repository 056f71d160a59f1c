package tokens

// ValueType identifies a built-in type keyword. It carries the
// signedness and byte width the evaluator needs to materialize a
// primitive pattern; CustomType marks a user-defined type name.
type ValueType int

const (
	U8 ValueType = iota
	U16
	U24
	U32
	U48
	U64
	U96
	U128
	S8
	S16
	S24
	S32
	S48
	S64
	S96
	S128
	Float32
	Float64
	Boolean
	Character
	Character16
	Str
	Auto
	Padding
	CustomType
)

// ValueTypes maps built-in type keyword spellings to their ValueType.
var ValueTypes = map[string]ValueType{
	"u8":      U8,
	"u16":     U16,
	"u24":     U24,
	"u32":     U32,
	"u48":     U48,
	"u64":     U64,
	"u96":     U96,
	"u128":    U128,
	"s8":      S8,
	"s16":     S16,
	"s24":     S24,
	"s32":     S32,
	"s48":     S48,
	"s64":     S64,
	"s96":     S96,
	"s128":    S128,
	"float":   Float32,
	"double":  Float64,
	"bool":    Boolean,
	"char":    Character,
	"char16":  Character16,
	"str":     Str,
	"auto":    Auto,
	"padding": Padding,
}

var valueTypeNames = map[ValueType]string{}

func init() {
	for name, vt := range ValueTypes {
		valueTypeNames[vt] = name
	}
	valueTypeNames[CustomType] = "custom type"
}

func (vt ValueType) String() string {
	return valueTypeNames[vt]
}

// Size returns the byte width of the type, or 0 when the width is not
// fixed (str, auto, padding, custom types).
func (vt ValueType) Size() uint64 {
	switch vt {
	case U8, S8, Character, Boolean:
		return 1
	case U16, S16, Character16:
		return 2
	case U24, S24:
		return 3
	case U32, S32, Float32:
		return 4
	case U48, S48:
		return 6
	case U64, S64, Float64:
		return 8
	case U96, S96:
		return 12
	case U128, S128:
		return 16
	default:
		return 0
	}
}

// Signed reports whether the type reads as a signed integer.
func (vt ValueType) Signed() bool {
	switch vt {
	case S8, S16, S24, S32, S48, S64, S96, S128, Character:
		return true
	default:
		return false
	}
}

// Unsigned reports whether the type reads as an unsigned integer.
func (vt ValueType) Unsigned() bool {
	switch vt {
	case U8, U16, U24, U32, U48, U64, U96, U128, Character16, Boolean:
		return true
	default:
		return false
	}
}

// Float reports whether the type reads as a floating point number.
func (vt ValueType) Float() bool {
	return vt == Float32 || vt == Float64
}
