package pattern

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/value"
)

// Pointer stores the pointer-value region and owns the pointee pattern.
// The pointee offset is resolved once at evaluation time, optionally
// through a pointer_base transform; later provider changes do not shift
// it. The pattern's size is the pointer field's size, never the
// pointee's.
type Pointer struct {
	Common
	PointedAt uint64
	Pointee   Pattern
}

func NewPointer(rt Runtime, offset, size uint64, endian value.Endian) *Pointer {
	return &Pointer{Common: NewCommon(rt, offset, size, endian)}
}

func (p *Pointer) TypeName() string {
	if p.Pointee != nil {
		return p.Pointee.TypeName() + "*"
	}
	return p.typeName + "*"
}

func (p *Pointer) Value() value.Literal {
	return p.transformed(value.Unsigned(p.PointedAt))
}

func (p *Pointer) FormattedValue() string {
	return format(p, fmt.Sprintf("*(0x%X)", p.PointedAt))
}

func (p *Pointer) Children() []Pattern {
	if p.Pointee == nil {
		return nil
	}
	return []Pattern{p.Pointee}
}

func (p *Pointer) Clone() Pattern {
	c := *p
	if p.Pointee != nil {
		c.Pointee = p.Pointee.Clone()
	}
	return &c
}
func (p *Pointer) Accept(v Visitor) { v.VisitPointer(p) }
func (p *Pointer) Equal(other Pattern) bool {
	o, ok := other.(*Pointer)
	if !ok || !equalCommon(p, o) || p.PointedAt != o.PointedAt {
		return false
	}
	if (p.Pointee == nil) != (o.Pointee == nil) {
		return false
	}
	return p.Pointee == nil || p.Pointee.Equal(o.Pointee)
}

// Padding is anonymous space between members.
type Padding struct {
	Common
}

func NewPadding(rt Runtime, offset, size uint64) *Padding {
	p := &Padding{Common: NewCommon(rt, offset, size, value.LittleEndian)}
	p.SetTypeName("padding")
	return p
}

func (p *Padding) TypeName() string     { return p.typeName }
func (p *Padding) Value() value.Literal { return value.Unsigned(0) }
func (p *Padding) FormattedValue() string {
	return format(p, fmt.Sprintf("(%d bytes)", p.size))
}
func (p *Padding) Clone() Pattern   { c := *p; return &c }
func (p *Padding) Accept(v Visitor) { v.VisitPadding(p) }
func (p *Padding) Equal(other Pattern) bool {
	o, ok := other.(*Padding)
	return ok && equalCommon(p, o)
}

// Error is a placeholder kept in the tree when a non-fatal evaluation
// failure was tolerable instead of aborting the run.
type Error struct {
	Common
	Message string
}

func NewError(rt Runtime, offset, size uint64, message string) *Error {
	p := &Error{Common: NewCommon(rt, offset, size, value.LittleEndian), Message: message}
	p.SetTypeName("error")
	return p
}

func (p *Error) TypeName() string     { return p.typeName }
func (p *Error) Value() value.Literal { return value.String(p.Message) }
func (p *Error) FormattedValue() string {
	return format(p, p.Message)
}
func (p *Error) Clone() Pattern   { c := *p; return &c }
func (p *Error) Accept(v Visitor) { v.VisitError(p) }
func (p *Error) Equal(other Pattern) bool {
	o, ok := other.(*Error)
	return ok && equalCommon(p, o) && p.Message == o.Message
}
