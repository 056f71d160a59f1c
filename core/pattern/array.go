package pattern

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/value"
)

// StaticArray represents count equally-sized elements of one primitive
// type. Entries share a single template pattern for display; Entry
// materializes an element on demand.
type StaticArray struct {
	Common
	Template Pattern
	Count    uint64
}

func NewStaticArray(rt Runtime, offset uint64, template Pattern, count uint64, endian value.Endian) *StaticArray {
	p := &StaticArray{
		Common:   NewCommon(rt, offset, template.Size()*count, endian),
		Template: template,
		Count:    count,
	}
	p.SetTypeName(template.TypeName())
	return p
}

func (p *StaticArray) TypeName() string { return p.typeName }

func (p *StaticArray) Value() value.Literal { return value.Ref{P: p} }

func (p *StaticArray) FormattedValue() string {
	return format(p, fmt.Sprintf("%s[%d]", p.typeName, p.Count))
}

// Entry returns the idx-th element as a standalone pattern.
func (p *StaticArray) Entry(idx uint64) Pattern {
	e := p.Template.Clone()
	e.Base().SetOffset(p.offset + idx*p.Template.Size())
	e.Base().SetVariableName(fmt.Sprintf("[%d]", idx))
	return e
}

func (p *StaticArray) Children() []Pattern {
	out := make([]Pattern, 0, p.Count)
	for i := uint64(0); i < p.Count; i++ {
		out = append(out, p.Entry(i))
	}
	return out
}

func (p *StaticArray) Clone() Pattern {
	c := *p
	c.Template = p.Template.Clone()
	return &c
}
func (p *StaticArray) Accept(v Visitor) { v.VisitStaticArray(p) }
func (p *StaticArray) Equal(other Pattern) bool {
	o, ok := other.(*StaticArray)
	return ok && equalCommon(p, o) && p.Count == o.Count && p.Template.Equal(o.Template)
}

// DynamicArray holds an explicit, possibly heterogeneous element list.
type DynamicArray struct {
	Common
	Entries []Pattern
}

func NewDynamicArray(rt Runtime, offset uint64, endian value.Endian) *DynamicArray {
	return &DynamicArray{Common: NewCommon(rt, offset, 0, endian)}
}

func (p *DynamicArray) TypeName() string { return p.typeName }

func (p *DynamicArray) Value() value.Literal { return value.Ref{P: p} }

func (p *DynamicArray) FormattedValue() string {
	return format(p, fmt.Sprintf("%s[%d]", p.typeName, len(p.Entries)))
}

func (p *DynamicArray) Children() []Pattern { return p.Entries }

func (p *DynamicArray) Clone() Pattern {
	c := *p
	c.Entries = cloneChildren(p.Entries)
	return &c
}
func (p *DynamicArray) Accept(v Visitor) { v.VisitDynamicArray(p) }
func (p *DynamicArray) Equal(other Pattern) bool {
	o, ok := other.(*DynamicArray)
	return ok && equalCommon(p, o) && equalChildren(p.Entries, o.Entries)
}
