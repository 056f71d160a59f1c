// Package tokens defines the lexical token set of the pattern language.
package tokens

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/value"
)

// Type is the coarse token tag.
type Type int

const (
	EOF Type = iota
	KEYWORD
	IDENTIFIER
	INTEGER
	FLOAT
	STRING
	CHAR
	OPERATOR
	SEPARATOR
	TYPE_KEYWORD
)

var typeNames = [...]string{
	EOF:          "EOF",
	KEYWORD:      "KEYWORD",
	IDENTIFIER:   "IDENTIFIER",
	INTEGER:      "INTEGER",
	FLOAT:        "FLOAT",
	STRING:       "STRING",
	CHAR:         "CHAR",
	OPERATOR:     "OPERATOR",
	SEPARATOR:    "SEPARATOR",
	TYPE_KEYWORD: "TYPE_KEYWORD",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Keyword identifies a reserved word.
type Keyword int

const (
	KwStruct Keyword = iota
	KwUnion
	KwEnum
	KwBitfield
	KwUsing
	KwFn
	KwReturn
	KwBreak
	KwContinue
	KwIf
	KwElse
	KwWhile
	KwUntil
	KwFor
	KwIn
	KwOut
	KwNamespace
	KwBigEndian
	KwLittleEndian
	KwParent
	KwThis
	KwNull
	KwTrue
	KwFalse
	KwAddressOf
	KwSizeOf
	KwAs
)

// Keywords maps reserved words to their Keyword value. Identifiers that
// match are reclassified during lexing.
var Keywords = map[string]Keyword{
	"struct":    KwStruct,
	"union":     KwUnion,
	"enum":      KwEnum,
	"bitfield":  KwBitfield,
	"using":     KwUsing,
	"fn":        KwFn,
	"return":    KwReturn,
	"break":     KwBreak,
	"continue":  KwContinue,
	"if":        KwIf,
	"else":      KwElse,
	"while":     KwWhile,
	"until":     KwUntil,
	"for":       KwFor,
	"in":        KwIn,
	"out":       KwOut,
	"namespace": KwNamespace,
	"be":        KwBigEndian,
	"le":        KwLittleEndian,
	"parent":    KwParent,
	"this":      KwThis,
	"null":      KwNull,
	"true":      KwTrue,
	"false":     KwFalse,
	"addressof": KwAddressOf,
	"sizeof":    KwSizeOf,
	"as":        KwAs,
}

// Operator identifies an operator token. Multi-character operators are
// matched greedily by the lexer.
type Operator int

const (
	OpAt Operator = iota // @ (placement)
	OpAssign
	OpColon
	OpScope // ::
	OpPlus
	OpMinus
	OpStar
	OpSlash
	OpPercent
	OpShiftLeft
	OpShiftRight
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpBoolAnd
	OpBoolOr
	OpBoolXor // ^^
	OpBoolNot
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpTernary
	OpDot
	OpEllipsis // ... (parameter packs, enum ranges)
	OpDollar   // $ (current read offset)
	OpPlusAssign
	OpMinusAssign
	OpStarAssign
	OpSlashAssign
	OpPercentAssign
	OpShiftLeftAssign
	OpShiftRightAssign
	OpBitAndAssign
	OpBitOrAssign
	OpBitXorAssign
)

// Operators holds the textual spellings ordered longest first so the
// lexer can match greedily.
var Operators = []struct {
	Text string
	Op   Operator
}{
	{"...", OpEllipsis},
	{"<<=", OpShiftLeftAssign},
	{">>=", OpShiftRightAssign},
	{"::", OpScope},
	{"<<", OpShiftLeft},
	{">>", OpShiftRight},
	{"<=", OpLessEqual},
	{">=", OpGreaterEqual},
	{"==", OpEqual},
	{"!=", OpNotEqual},
	{"&&", OpBoolAnd},
	{"||", OpBoolOr},
	{"^^", OpBoolXor},
	{"+=", OpPlusAssign},
	{"-=", OpMinusAssign},
	{"*=", OpStarAssign},
	{"/=", OpSlashAssign},
	{"%=", OpPercentAssign},
	{"&=", OpBitAndAssign},
	{"|=", OpBitOrAssign},
	{"^=", OpBitXorAssign},
	{"@", OpAt},
	{"=", OpAssign},
	{":", OpColon},
	{"+", OpPlus},
	{"-", OpMinus},
	{"*", OpStar},
	{"/", OpSlash},
	{"%", OpPercent},
	{"&", OpBitAnd},
	{"|", OpBitOr},
	{"^", OpBitXor},
	{"~", OpBitNot},
	{"!", OpBoolNot},
	{"<", OpLess},
	{">", OpGreater},
	{"?", OpTernary},
	{".", OpDot},
	{"$", OpDollar},
}

// Separator identifies structural punctuation.
type Separator int

const (
	SepRoundOpen Separator = iota
	SepRoundClose
	SepCurlyOpen
	SepCurlyClose
	SepSquareOpen
	SepSquareClose
	SepComma
	SepSemicolon
)

// Separators maps single characters to separator values.
var Separators = map[byte]Separator{
	'(': SepRoundOpen,
	')': SepRoundClose,
	'{': SepCurlyOpen,
	'}': SepCurlyClose,
	'[': SepSquareOpen,
	']': SepSquareClose,
	',': SepComma,
	';': SepSemicolon,
}

// Token is a lexical token with its source line.
type Token struct {
	Type      Type
	Keyword   Keyword
	Op        Operator
	Sep       Separator
	ValueType ValueType
	Ident     string
	Literal   value.Literal
	Line      uint32
}

func (t Token) String() string {
	switch t.Type {
	case IDENTIFIER:
		return fmt.Sprintf("Token{%s %q line %d}", t.Type, t.Ident, t.Line)
	case INTEGER, FLOAT, STRING, CHAR:
		return fmt.Sprintf("Token{%s %v line %d}", t.Type, t.Literal, t.Line)
	default:
		return fmt.Sprintf("Token{%s line %d}", t.Type, t.Line)
	}
}
