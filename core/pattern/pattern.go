// Package pattern defines the typed, offset-bearing tree a pattern run
// produces. Every node describes a placed slice of the byte stream.
//
// Parents exclusively own their children (struct and union members,
// array entries, bitfield fields, a pointer's pointee); back references
// such as a bitfield field's pointer to its container are non-owning.
// The tree is handed to the host only after a run completes and is
// read-only from then on.
package pattern

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/value"
)

// Runtime gives patterns access to the byte source they were created
// against, for on-demand value rendering. The evaluator implements it;
// a nil runtime renders zero values.
type Runtime interface {
	ReadRaw(offset uint64, n int) []byte
}

// FormatFunc renders a pattern's display value; set by the [[format]]
// attribute.
type FormatFunc func(p Pattern) (string, error)

// TransformFunc rewrites a pattern's raw value before it is observed;
// set by the [[transform]] attribute.
type TransformFunc func(l value.Literal) (value.Literal, error)

// Pattern is implemented by every tree node variant.
type Pattern interface {
	Base() *Common
	Offset() uint64
	Size() uint64
	DisplayName() string
	TypeName() string

	// Value returns the typed raw value of the node, after the
	// transform function if one is attached.
	Value() value.Literal
	// FormattedValue returns the display string, through the
	// formatter function if one is attached.
	FormattedValue() string

	Children() []Pattern
	Clone() Pattern
	Equal(other Pattern) bool
	Accept(v Visitor)
}

// Visitor has one method per pattern variant.
type Visitor interface {
	VisitUnsigned(p *Unsigned)
	VisitSigned(p *Signed)
	VisitFloat(p *Float)
	VisitBoolean(p *Boolean)
	VisitCharacter(p *Character)
	VisitWideCharacter(p *WideCharacter)
	VisitString(p *String)
	VisitWideString(p *WideString)
	VisitEnum(p *Enum)
	VisitBitfield(p *Bitfield)
	VisitBitfieldField(p *BitfieldField)
	VisitStruct(p *Struct)
	VisitUnion(p *Union)
	VisitStaticArray(p *StaticArray)
	VisitDynamicArray(p *DynamicArray)
	VisitPointer(p *Pointer)
	VisitPadding(p *Padding)
	VisitError(p *Error)
}

// Common carries the state shared by all variants.
type Common struct {
	rt          Runtime
	offset      uint64
	size        uint64
	endian      value.Endian
	typeName    string
	varName     string
	displayName string
	comment     string
	color       uint32
	hasColor    bool
	hidden      bool
	inlined     bool
	local       bool
	formatter   FormatFunc
	transform   TransformFunc
}

// NewCommon creates the shared part of a pattern node.
func NewCommon(rt Runtime, offset, size uint64, endian value.Endian) Common {
	return Common{rt: rt, offset: offset, size: size, endian: endian}
}

func (c *Common) Base() *Common  { return c }
func (c *Common) Offset() uint64 { return c.offset }
func (c *Common) Size() uint64   { return c.size }

// SetOffset relocates the pattern; used while members are placed and by
// local variables, never after the run returns.
func (c *Common) SetOffset(offset uint64) { c.offset = offset }
func (c *Common) SetSize(size uint64)     { c.size = size }

func (c *Common) Endian() value.Endian          { return c.endian }
func (c *Common) SetEndian(e value.Endian)      { c.endian = e }
func (c *Common) VariableName() string          { return c.varName }
func (c *Common) SetVariableName(name string)   { c.varName = name }
func (c *Common) SetTypeName(name string)       { c.typeName = name }
func (c *Common) Comment() string               { return c.comment }
func (c *Common) SetComment(comment string)     { c.comment = comment }
func (c *Common) SetDisplayName(name string)    { c.displayName = name }
func (c *Common) Hidden() bool                  { return c.hidden }
func (c *Common) SetHidden(hidden bool)         { c.hidden = hidden }
func (c *Common) Inlined() bool                 { return c.inlined }
func (c *Common) SetInlined(inlined bool)       { c.inlined = inlined }
func (c *Common) Local() bool                   { return c.local }
func (c *Common) SetLocal(local bool)           { c.local = local }
func (c *Common) SetFormatter(f FormatFunc)     { c.formatter = f }
func (c *Common) Formatter() FormatFunc         { return c.formatter }
func (c *Common) SetTransform(f TransformFunc)  { c.transform = f }
func (c *Common) HasOverriddenColor() bool      { return c.hasColor }
func (c *Common) Color() uint32                 { return c.color }
func (c *Common) SetColor(color uint32)         { c.color = color; c.hasColor = true }

// DisplayName is the name override if set, else the variable name.
func (c *Common) DisplayName() string {
	if c.displayName != "" {
		return c.displayName
	}
	return c.varName
}

// Children is overridden by container variants.
func (c *Common) Children() []Pattern { return nil }

// read fetches the pattern's raw bytes; without a runtime it returns
// zeroes so value rendering stays total.
func (c *Common) read() []byte {
	if c.rt == nil || c.size == 0 {
		return make([]byte, c.size)
	}
	return c.rt.ReadRaw(c.offset, int(c.size))
}

// transformed applies the transform function when present.
func (c *Common) transformed(l value.Literal) value.Literal {
	if c.transform == nil {
		return l
	}
	out, err := c.transform(l)
	if err != nil {
		return l
	}
	return out
}

// format runs the formatter function, falling back to def.
func format(p Pattern, def string) string {
	if f := p.Base().formatter; f != nil {
		if s, err := f(p); err == nil {
			return s
		}
	}
	return def
}

// equalCommon compares the structural part two variants share.
func equalCommon(a, b Pattern) bool {
	ca, cb := a.Base(), b.Base()
	return ca.offset == cb.offset &&
		ca.size == cb.size &&
		ca.endian == cb.endian &&
		ca.varName == cb.varName &&
		ca.typeName == cb.typeName
}

func equalChildren(a, b []Pattern) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneChildren(ps []Pattern) []Pattern {
	if ps == nil {
		return nil
	}
	out := make([]Pattern, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

func defaultIntFormat(v uint64) string {
	return fmt.Sprintf("%d (0x%X)", v, v)
}
