package pattern

import (
	"fmt"
	"strings"

	"github.com/hexpat-lang/hexpat/core/value"
)

// Unsigned is an unsigned integer of 1, 2, 3, 4, 6, 8, 12 or 16 bytes.
type Unsigned struct {
	Common
}

func NewUnsigned(rt Runtime, offset, size uint64, endian value.Endian) *Unsigned {
	p := &Unsigned{Common: NewCommon(rt, offset, size, endian)}
	p.SetTypeName(fmt.Sprintf("u%d", size*8))
	return p
}

func (p *Unsigned) TypeName() string { return p.typeName }

func (p *Unsigned) Value() value.Literal {
	return p.transformed(value.Unsigned(value.ReadUnsigned(p.read(), p.endian)))
}

func (p *Unsigned) FormattedValue() string {
	if p.size > 8 {
		return format(p, value.FormatWide(p.read(), p.endian, false))
	}
	v, _ := value.ToUnsigned(p.Value())
	return format(p, defaultIntFormat(v))
}

func (p *Unsigned) Clone() Pattern    { c := *p; return &c }
func (p *Unsigned) Accept(v Visitor)  { v.VisitUnsigned(p) }
func (p *Unsigned) Equal(other Pattern) bool {
	o, ok := other.(*Unsigned)
	return ok && equalCommon(p, o)
}

// Signed is a signed integer of 1, 2, 3, 4, 6, 8, 12 or 16 bytes.
type Signed struct {
	Common
}

func NewSigned(rt Runtime, offset, size uint64, endian value.Endian) *Signed {
	p := &Signed{Common: NewCommon(rt, offset, size, endian)}
	p.SetTypeName(fmt.Sprintf("s%d", size*8))
	return p
}

func (p *Signed) TypeName() string { return p.typeName }

func (p *Signed) Value() value.Literal {
	return p.transformed(value.Signed(value.ReadSigned(p.read(), p.endian)))
}

func (p *Signed) FormattedValue() string {
	if p.size > 8 {
		return format(p, value.FormatWide(p.read(), p.endian, true))
	}
	v, _ := value.ToSigned(p.Value())
	return format(p, fmt.Sprintf("%d", v))
}

func (p *Signed) Clone() Pattern   { c := *p; return &c }
func (p *Signed) Accept(v Visitor) { v.VisitSigned(p) }
func (p *Signed) Equal(other Pattern) bool {
	o, ok := other.(*Signed)
	return ok && equalCommon(p, o)
}

// Float is a 4- or 8-byte IEEE 754 value.
type Float struct {
	Common
}

func NewFloat(rt Runtime, offset, size uint64, endian value.Endian) *Float {
	p := &Float{Common: NewCommon(rt, offset, size, endian)}
	if size == 4 {
		p.SetTypeName("float")
	} else {
		p.SetTypeName("double")
	}
	return p
}

func (p *Float) TypeName() string { return p.typeName }

func (p *Float) Value() value.Literal {
	return p.transformed(value.Float(value.ReadFloat(p.read(), p.endian)))
}

func (p *Float) FormattedValue() string {
	v, _ := value.ToFloat(p.Value())
	return format(p, fmt.Sprintf("%G", v))
}

func (p *Float) Clone() Pattern   { c := *p; return &c }
func (p *Float) Accept(v Visitor) { v.VisitFloat(p) }
func (p *Float) Equal(other Pattern) bool {
	o, ok := other.(*Float)
	return ok && equalCommon(p, o)
}

// Boolean is a single byte interpreted as true/false.
type Boolean struct {
	Common
}

func NewBoolean(rt Runtime, offset uint64) *Boolean {
	p := &Boolean{Common: NewCommon(rt, offset, 1, value.LittleEndian)}
	p.SetTypeName("bool")
	return p
}

func (p *Boolean) TypeName() string { return p.typeName }

func (p *Boolean) Value() value.Literal {
	return p.transformed(value.Bool(p.read()[0] != 0))
}

func (p *Boolean) FormattedValue() string {
	switch p.read()[0] {
	case 0:
		return format(p, "false")
	case 1:
		return format(p, "true")
	default:
		return format(p, "true*")
	}
}

func (p *Boolean) Clone() Pattern   { c := *p; return &c }
func (p *Boolean) Accept(v Visitor) { v.VisitBoolean(p) }
func (p *Boolean) Equal(other Pattern) bool {
	o, ok := other.(*Boolean)
	return ok && equalCommon(p, o)
}

// Character is a one-byte character.
type Character struct {
	Common
}

func NewCharacter(rt Runtime, offset uint64) *Character {
	p := &Character{Common: NewCommon(rt, offset, 1, value.LittleEndian)}
	p.SetTypeName("char")
	return p
}

func (p *Character) TypeName() string { return p.typeName }

func (p *Character) Value() value.Literal {
	return p.transformed(value.Char(p.read()[0]))
}

func (p *Character) FormattedValue() string {
	return format(p, fmt.Sprintf("'%c'", rune(p.read()[0])))
}

func (p *Character) Clone() Pattern   { c := *p; return &c }
func (p *Character) Accept(v Visitor) { v.VisitCharacter(p) }
func (p *Character) Equal(other Pattern) bool {
	o, ok := other.(*Character)
	return ok && equalCommon(p, o)
}

// WideCharacter is a two-byte character.
type WideCharacter struct {
	Common
}

func NewWideCharacter(rt Runtime, offset uint64, endian value.Endian) *WideCharacter {
	p := &WideCharacter{Common: NewCommon(rt, offset, 2, endian)}
	p.SetTypeName("char16")
	return p
}

func (p *WideCharacter) TypeName() string { return p.typeName }

func (p *WideCharacter) Value() value.Literal {
	return p.transformed(value.Char16(value.ReadUnsigned(p.read(), p.endian)))
}

func (p *WideCharacter) FormattedValue() string {
	v, _ := value.ToUnsigned(p.Value())
	return format(p, fmt.Sprintf("'%c'", rune(v)))
}

func (p *WideCharacter) Clone() Pattern   { c := *p; return &c }
func (p *WideCharacter) Accept(v Visitor) { v.VisitWideCharacter(p) }
func (p *WideCharacter) Equal(other Pattern) bool {
	o, ok := other.(*WideCharacter)
	return ok && equalCommon(p, o)
}

// String is a sized run of one-byte characters.
type String struct {
	Common
}

func NewString(rt Runtime, offset, size uint64) *String {
	p := &String{Common: NewCommon(rt, offset, size, value.LittleEndian)}
	p.SetTypeName("String")
	return p
}

func (p *String) TypeName() string { return p.typeName }

func (p *String) Value() value.Literal {
	buf := p.read()
	return p.transformed(value.String(strings.TrimRight(string(buf), "\x00")))
}

func (p *String) FormattedValue() string {
	s, _ := p.Value().(value.String)
	return format(p, fmt.Sprintf("%q", string(s)))
}

func (p *String) Clone() Pattern   { c := *p; return &c }
func (p *String) Accept(v Visitor) { v.VisitString(p) }
func (p *String) Equal(other Pattern) bool {
	o, ok := other.(*String)
	return ok && equalCommon(p, o)
}

// WideString is a sized run of two-byte characters.
type WideString struct {
	Common
}

func NewWideString(rt Runtime, offset, size uint64, endian value.Endian) *WideString {
	p := &WideString{Common: NewCommon(rt, offset, size, endian)}
	p.SetTypeName("String16")
	return p
}

func (p *WideString) TypeName() string { return p.typeName }

func (p *WideString) Value() value.Literal {
	buf := p.read()
	runes := make([]rune, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		c := value.ReadUnsigned(buf[i:i+2], p.endian)
		if c == 0 {
			break
		}
		runes = append(runes, rune(c))
	}
	return p.transformed(value.String(runes))
}

func (p *WideString) FormattedValue() string {
	s, _ := p.Value().(value.String)
	return format(p, fmt.Sprintf("%q", string(s)))
}

func (p *WideString) Clone() Pattern   { c := *p; return &c }
func (p *WideString) Accept(v Visitor) { v.VisitWideString(p) }
func (p *WideString) Equal(other Pattern) bool {
	o, ok := other.(*WideString)
	return ok && equalCommon(p, o)
}
