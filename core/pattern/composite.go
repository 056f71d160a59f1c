package pattern

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/value"
)

// EnumValue is one resolved enum constant; Last differs from First for
// range entries.
type EnumValue struct {
	Name        string
	First, Last uint64
}

// Enum is an integer pattern with a value-name table. The raw value is
// always kept for display even when no constant matches.
type Enum struct {
	Common
	Values []EnumValue
}

func NewEnum(rt Runtime, offset, size uint64, endian value.Endian) *Enum {
	return &Enum{Common: NewCommon(rt, offset, size, endian)}
}

func (p *Enum) TypeName() string { return p.typeName }

func (p *Enum) Value() value.Literal {
	return p.transformed(value.Unsigned(value.ReadUnsigned(p.read(), p.endian)))
}

// ValueName returns the name of the matching constant, or "".
func (p *Enum) ValueName() string {
	v := value.ReadUnsigned(p.read(), p.endian)
	for _, ev := range p.Values {
		if v >= ev.First && v <= ev.Last {
			return ev.Name
		}
	}
	return ""
}

func (p *Enum) FormattedValue() string {
	v := value.ReadUnsigned(p.read(), p.endian)
	name := p.ValueName()
	if name == "" {
		name = "???"
	}
	return format(p, fmt.Sprintf("%s::%s (0x%X)", p.typeName, name, v))
}

func (p *Enum) Clone() Pattern   { c := *p; c.Values = append([]EnumValue(nil), p.Values...); return &c }
func (p *Enum) Accept(v Visitor) { v.VisitEnum(p) }
func (p *Enum) Equal(other Pattern) bool {
	o, ok := other.(*Enum)
	if !ok || !equalCommon(p, o) || len(p.Values) != len(o.Values) {
		return false
	}
	for i := range p.Values {
		if p.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// BitfieldField is one sub-byte field of a bitfield container. Its
// offset and size describe the whole container; BitOffset/BitSize
// locate the field inside it. Container is a non-owning back
// reference.
type BitfieldField struct {
	Common
	BitOffset uint8
	BitSize   uint8
	Container *Bitfield
	// Values labels the field's value like an enum when non-nil.
	Values []EnumValue
	// Flag renders the field as a boolean.
	Flag bool
}

func NewBitfieldField(rt Runtime, offset uint64, bitOffset, bitSize uint8, container *Bitfield) *BitfieldField {
	p := &BitfieldField{
		Common:    NewCommon(rt, offset, 0, value.LittleEndian),
		BitOffset: bitOffset,
		BitSize:   bitSize,
		Container: container,
	}
	p.SetTypeName("bits")
	return p
}

func (p *BitfieldField) TypeName() string { return p.typeName }

// extract pulls the field's bits out of the container's raw integer.
func (p *BitfieldField) extract() uint64 {
	if p.Container == nil {
		return 0
	}
	raw := value.ReadUnsigned(p.Container.read(), p.Container.Endian())
	width := uint64(p.BitSize)
	if width >= 64 {
		return raw >> p.BitOffset
	}
	return (raw >> p.BitOffset) & ((1 << width) - 1)
}

func (p *BitfieldField) Value() value.Literal {
	return p.transformed(value.Unsigned(p.extract()))
}

func (p *BitfieldField) FormattedValue() string {
	v := p.extract()
	if p.Flag {
		if v != 0 {
			return format(p, "true")
		}
		return format(p, "false")
	}
	for _, ev := range p.Values {
		if v >= ev.First && v <= ev.Last {
			return format(p, fmt.Sprintf("%s (0x%X)", ev.Name, v))
		}
	}
	return format(p, defaultIntFormat(v))
}

func (p *BitfieldField) Clone() Pattern {
	c := *p
	c.Values = append([]EnumValue(nil), p.Values...)
	return &c
}
func (p *BitfieldField) Accept(v Visitor) { v.VisitBitfieldField(p) }
func (p *BitfieldField) Equal(other Pattern) bool {
	o, ok := other.(*BitfieldField)
	return ok && equalCommon(p, o) && p.BitOffset == o.BitOffset && p.BitSize == o.BitSize
}

// Bitfield is a byte-aligned integer container holding sub-byte fields.
type Bitfield struct {
	Common
	Fields []*BitfieldField
}

func NewBitfield(rt Runtime, offset, size uint64, endian value.Endian) *Bitfield {
	return &Bitfield{Common: NewCommon(rt, offset, size, endian)}
}

func (p *Bitfield) TypeName() string { return p.typeName }

func (p *Bitfield) Value() value.Literal {
	return p.transformed(value.Unsigned(value.ReadUnsigned(p.read(), p.endian)))
}

func (p *Bitfield) FormattedValue() string {
	buf := p.read()
	s := "{ "
	for _, b := range buf {
		s += fmt.Sprintf("%02X ", b)
	}
	return format(p, s+"}")
}

func (p *Bitfield) Children() []Pattern {
	out := make([]Pattern, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = f
	}
	return out
}

func (p *Bitfield) Clone() Pattern {
	c := *p
	c.Fields = make([]*BitfieldField, len(p.Fields))
	for i, f := range p.Fields {
		nf := f.Clone().(*BitfieldField)
		nf.Container = &c
		c.Fields[i] = nf
	}
	return &c
}
func (p *Bitfield) Accept(v Visitor) { v.VisitBitfield(p) }
func (p *Bitfield) Equal(other Pattern) bool {
	o, ok := other.(*Bitfield)
	return ok && equalCommon(p, o) && equalChildren(p.Children(), o.Children())
}

// Struct is an ordered list of member patterns.
type Struct struct {
	Common
	Members []Pattern
}

func NewStruct(rt Runtime, offset uint64, endian value.Endian) *Struct {
	return &Struct{Common: NewCommon(rt, offset, 0, endian)}
}

func (p *Struct) TypeName() string { return p.typeName }

func (p *Struct) Value() value.Literal { return value.Ref{P: p} }

func (p *Struct) FormattedValue() string {
	return format(p, fmt.Sprintf("struct %s", p.typeName))
}

func (p *Struct) Children() []Pattern { return p.Members }

func (p *Struct) Clone() Pattern {
	c := *p
	c.Members = cloneChildren(p.Members)
	return &c
}
func (p *Struct) Accept(v Visitor) { v.VisitStruct(p) }
func (p *Struct) Equal(other Pattern) bool {
	o, ok := other.(*Struct)
	return ok && equalCommon(p, o) && equalChildren(p.Members, o.Members)
}

// Union holds member patterns that overlap at one offset; its size is
// the maximum member size.
type Union struct {
	Common
	Members []Pattern
}

func NewUnion(rt Runtime, offset uint64, endian value.Endian) *Union {
	return &Union{Common: NewCommon(rt, offset, 0, endian)}
}

func (p *Union) TypeName() string { return p.typeName }

func (p *Union) Value() value.Literal { return value.Ref{P: p} }

func (p *Union) FormattedValue() string {
	return format(p, fmt.Sprintf("union %s", p.typeName))
}

func (p *Union) Children() []Pattern { return p.Members }

func (p *Union) Clone() Pattern {
	c := *p
	c.Members = cloneChildren(p.Members)
	return &c
}
func (p *Union) Accept(v Visitor) { v.VisitUnion(p) }
func (p *Union) Equal(other Pattern) bool {
	o, ok := other.(*Union)
	return ok && equalCommon(p, o) && equalChildren(p.Members, o.Members)
}
