package evaluator

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

// evalDeclaration evaluates one variable, array or pointer declaration
// in the current scope, appending the produced pattern to the scope's
// owner list.
func (e *Evaluator) evalDeclaration(node ast.Node) {
	switch n := node.(type) {
	case *ast.VariableDecl:
		e.evalVariableDecl(n)
	case *ast.ArrayVariableDecl:
		e.evalArrayDecl(n)
	case *ast.PointerVariableDecl:
		e.evalPointerDecl(n)
	case *ast.MultiVariableDecl:
		for _, v := range n.Variables {
			e.evalDeclaration(v)
		}
	case *ast.Conditional:
		if e.toBool(e.evalExpr(n.Cond), n.Line()) {
			e.evalMembers(n.TrueBody)
		} else {
			e.evalMembers(n.FalseBody)
		}
	default:
		e.abortf(node.Line(), "unexpected declaration")
	}
}

// evalMembers evaluates the member statements of a struct or union
// body (or a pattern-mode conditional branch).
func (e *Evaluator) evalMembers(nodes []ast.Node) {
	for _, node := range nodes {
		e.currLine = node.Line()
		e.evalDeclaration(node)
	}
}

func (e *Evaluator) evalVariableDecl(n *ast.VariableDecl) {
	// Globals without placement are local working variables.
	if n.Placement == nil && e.isGlobalScope() {
		e.createVariable(n.Name, n.Type, n.Out, n.Line())
		if n.In {
			if v, ok := e.inVars[n.Name]; ok {
				e.setVariable(n.Name, v, n.Line())
			}
		}
		return
	}

	if n.Placement != nil {
		restore := e.placeAt(n.Placement, n.Line())
		defer restore()
	}

	p := e.instantiate(n.Type, nil, n.Line())
	p.Base().SetVariableName(n.Name)
	e.addPattern(p)
	e.applyVariableAttributes(&n.Attributable, p, n.Line())
}

// placeAt evaluates a placement expression, moves the cursor there and
// returns a closure restoring the previous cursor.
func (e *Evaluator) placeAt(placement ast.Node, line uint32) func() {
	offset := e.toUnsigned(e.evalExpr(placement), line)
	prev := e.currOffset
	e.currOffset = offset
	return func() { e.currOffset = prev }
}

// addPattern appends a created pattern to the current scope's owner.
func (e *Evaluator) addPattern(p pattern.Pattern) {
	scope := e.scope(0)
	*scope.Patterns = append(*scope.Patterns, p)
}

/* Type instantiation */

// resolveType walks a TypeDecl alias chain and returns the concrete
// definition, the effective endianness and the display type name.
// Attributes found along the chain are collected innermost last so the
// outermost declaration wins.
func (e *Evaluator) resolveType(td *ast.TypeDecl, inherited value.Endian, line uint32) (def ast.Node, endian value.Endian, name string, attrs []*ast.Attributable) {
	endian = inherited
	current := td
	for {
		if current.Endian != nil {
			endian = *current.Endian
		}
		if current.Name != "" {
			name = current.Name
		}
		attrs = append(attrs, &current.Attributable)

		switch ty := current.Ty.(type) {
		case *ast.TypeDecl:
			current = ty
		case nil:
			e.abortf(line, "cannot resolve type '%s'", current.Name)
		default:
			return ty, endian, name, attrs
		}
	}
}

// instantiate creates one pattern of the given type at the current
// offset, advancing the cursor past it. endian overrides the inherited
// default when non-nil.
func (e *Evaluator) instantiate(td *ast.TypeDecl, endianOverride *value.Endian, line uint32) pattern.Pattern {
	inherited := e.defaultEndian
	if endianOverride != nil {
		inherited = *endianOverride
	}
	def, endian, typeName, attrs := e.resolveType(td, inherited, line)

	var p pattern.Pattern
	switch ty := def.(type) {
	case *ast.BuiltinType:
		p = e.createBuiltin(ty.VT, endian, line)
	case *ast.Struct:
		p = e.createStruct(ty, endian, line)
	case *ast.Union:
		p = e.createUnion(ty, endian, line)
	case *ast.Enum:
		p = e.createEnum(ty, endian, line)
	case *ast.Bitfield:
		p = e.createBitfield(ty, endian, line)
	default:
		e.abortf(line, "type '%s' cannot be instantiated", typeName)
	}

	if typeName != "" {
		p.Base().SetTypeName(typeName)
	}

	// Type-level attributes: the definition's own first, then alias
	// chain outward.
	switch ty := def.(type) {
	case *ast.Struct:
		e.applyTypeAttributes(&ty.Attributable, p, line)
	case *ast.Union:
		e.applyTypeAttributes(&ty.Attributable, p, line)
	case *ast.Enum:
		e.applyTypeAttributes(&ty.Attributable, p, line)
	case *ast.Bitfield:
		e.applyTypeAttributes(&ty.Attributable, p, line)
	}
	for i := len(attrs) - 1; i >= 0; i-- {
		e.applyTypeAttributes(attrs[i], p, line)
	}

	return p
}

// createBuiltin places one primitive pattern at the cursor.
func (e *Evaluator) createBuiltin(vt tokens.ValueType, endian value.Endian, line uint32) pattern.Pattern {
	offset := e.currOffset
	size := vt.Size()

	var p pattern.Pattern
	switch {
	case vt == tokens.Boolean:
		p = pattern.NewBoolean(e, offset)
	case vt == tokens.Character:
		p = pattern.NewCharacter(e, offset)
	case vt == tokens.Character16:
		p = pattern.NewWideCharacter(e, offset, endian)
	case vt == tokens.Float32 || vt == tokens.Float64:
		p = pattern.NewFloat(e, offset, size, endian)
	case vt.Unsigned():
		p = pattern.NewUnsigned(e, offset, size, endian)
	case vt.Signed():
		p = pattern.NewSigned(e, offset, size, endian)
	case vt == tokens.Str:
		e.abortf(line, "'str' cannot be placed in memory, use a sized char array instead")
	case vt == tokens.Auto:
		e.abortf(line, "'auto' may only be used for local variables")
	case vt == tokens.Padding:
		e.abortf(line, "'padding' requires a size, use padding[size]")
	default:
		e.abortf(line, "cannot instantiate type '%s'", vt)
	}

	// Primitive reads must stay inside the data.
	e.checkReadable(offset, size, line)

	e.patternCreated(line)
	e.currOffset = offset + size
	return p
}

// checkReadable aborts when [offset, offset+size) leaves the provider.
func (e *Evaluator) checkReadable(offset, size uint64, line uint32) {
	end := e.prov.BaseAddress() + e.prov.Size()
	if offset < e.prov.BaseAddress() || offset+size > end {
		e.abortf(line, "read of %d bytes at 0x%X is out of bounds of the data", size, offset)
	}
}

// createStruct lays the struct's members out sequentially. The
// struct's size is recomputed from the cursor after all members are
// placed, so a trailing [[no_unique_address]] member shrinks it.
func (e *Evaluator) createStruct(def *ast.Struct, endian value.Endian, line uint32) pattern.Pattern {
	start := e.currOffset
	s := pattern.NewStruct(e, start, endian)
	e.patternCreated(line)

	prevEndian := e.defaultEndian
	e.defaultEndian = endian
	e.PushScope(s, &s.Members)
	e.evalMembers(def.Members)
	e.PopScope()
	e.defaultEndian = prevEndian

	if e.currOffset > start {
		s.SetSize(e.currOffset - start)
	}
	return s
}

// createUnion overlays every member at the union's start; its size is
// the maximum member size.
func (e *Evaluator) createUnion(def *ast.Union, endian value.Endian, line uint32) pattern.Pattern {
	start := e.currOffset
	u := pattern.NewUnion(e, start, endian)
	e.patternCreated(line)

	prevEndian := e.defaultEndian
	e.defaultEndian = endian
	e.PushScope(u, &u.Members)

	var maxSize uint64
	for _, member := range def.Members {
		e.currOffset = start
		e.currLine = member.Line()
		e.evalDeclaration(member)
		if span := e.currOffset - start; span > maxSize {
			maxSize = span
		}
	}

	e.PopScope()
	e.defaultEndian = prevEndian

	u.SetSize(maxSize)
	e.currOffset = start + maxSize
	return u
}

// createEnum reads the underlying integer and attaches the resolved
// value-name table.
func (e *Evaluator) createEnum(def *ast.Enum, endian value.Endian, line uint32) pattern.Pattern {
	underlying, enumEndian, _, _ := e.resolveType(def.Underlying, endian, line)
	bt, ok := underlying.(*ast.BuiltinType)
	if !ok || (!bt.VT.Unsigned() && !bt.VT.Signed()) || bt.VT.Size() == 0 {
		e.abortf(line, "underlying type of an enum must be an integer type")
	}

	offset := e.currOffset
	size := bt.VT.Size()
	e.checkReadable(offset, size, line)

	enum := pattern.NewEnum(e, offset, size, enumEndian)
	e.patternCreated(line)

	var next uint64
	for _, entry := range def.Entries {
		first := next
		if entry.Value != nil {
			first = e.toUnsigned(e.evalExpr(entry.Value), line)
		}
		last := first
		if entry.Last != nil {
			last = e.toUnsigned(e.evalExpr(entry.Last), line)
		}
		enum.Values = append(enum.Values, pattern.EnumValue{Name: entry.Name, First: first, Last: last})
		next = first + 1
	}

	e.currOffset = offset + size
	return enum
}

// createBitfield reads the container as one integer and assigns bit
// offsets incrementally in the configured order.
func (e *Evaluator) createBitfield(def *ast.Bitfield, endian value.Endian, line uint32) pattern.Pattern {
	type fieldSpec struct {
		name string
		bits uint64
	}

	var specs []fieldSpec
	var totalBits uint64
	for _, entry := range def.Entries {
		bits := e.toUnsigned(e.evalExpr(entry.Bits), line)
		if bits == 0 {
			e.abortf(line, "bitfield field size must not be zero")
		}
		specs = append(specs, fieldSpec{name: entry.Name, bits: bits})
		totalBits += bits
	}
	if totalBits > 64 {
		e.abortf(line, "bitfield size exceeds maximum of 64 bits")
	}

	offset := e.currOffset
	size := (totalBits + 7) / 8
	e.checkReadable(offset, size, line)

	bf := pattern.NewBitfield(e, offset, size, endian)
	e.patternCreated(line)

	var cursor uint64
	for _, spec := range specs {
		var bitOffset uint64
		if e.bitfieldOrder == RightToLeft {
			bitOffset = cursor
		} else {
			bitOffset = size*8 - cursor - spec.bits
		}
		cursor += spec.bits

		if spec.name == "" {
			continue // anonymous padding bits
		}

		field := pattern.NewBitfieldField(e, offset, uint8(bitOffset), uint8(spec.bits), bf)
		field.SetVariableName(spec.name)
		e.patternCreated(line)
		bf.Fields = append(bf.Fields, field)
	}

	e.currOffset = offset + size
	return bf
}

/* Arrays */

func (e *Evaluator) evalArrayDecl(n *ast.ArrayVariableDecl) {
	if n.Placement != nil {
		restore := e.placeAt(n.Placement, n.Line())
		defer restore()
	}

	def, endian, typeName, _ := e.resolveType(n.Type, e.defaultEndian, n.Line())
	bt, isBuiltin := def.(*ast.BuiltinType)

	// padding[size] consumes anonymous space.
	if isBuiltin && bt.VT == tokens.Padding {
		size := e.toUnsigned(e.evalExpr(n.Size), n.Line())
		p := pattern.NewPadding(e, e.currOffset, size)
		e.patternCreated(n.Line())
		e.currOffset += size
		e.addPattern(p)
		return
	}

	// Character arrays are strings.
	if isBuiltin && (bt.VT == tokens.Character || bt.VT == tokens.Character16) {
		e.createStringArray(n, bt.VT, endian)
		return
	}

	var p pattern.Pattern
	switch {
	case n.Size != nil:
		p = e.createSizedArray(n, isBuiltin, endian, typeName)
	case n.Cond != nil:
		p = e.createLoopArray(n, endian, typeName)
	default:
		e.abortf(n.Line(), "array of type '%s' requires a size", typeName)
	}

	p.Base().SetVariableName(n.Name)
	e.addPattern(p)
	e.applyVariableAttributes(&n.Attributable, p, n.Line())
}

// createSizedArray instantiates a static-count array. Same-primitive
// element types collapse into a static array pattern sharing one
// template; everything else produces an explicit entry list.
func (e *Evaluator) createSizedArray(n *ast.ArrayVariableDecl, isPrimitive bool, endian value.Endian, typeName string) pattern.Pattern {
	count := e.toUnsigned(e.evalExpr(n.Size), n.Line())
	if count > e.arrayLimit {
		e.abortf(n.Line(), "array grew past set limit of %d entries", e.arrayLimit)
	}

	start := e.currOffset

	if isPrimitive {
		template := e.instantiate(n.Type, &endian, n.Line())
		arr := pattern.NewStaticArray(e, start, template, count, endian)
		e.patternCreated(n.Line())
		e.checkReadable(start, arr.Size(), n.Line())
		e.currOffset = start + arr.Size()
		return arr
	}

	arr := pattern.NewDynamicArray(e, start, endian)
	arr.SetTypeName(typeName)
	e.patternCreated(n.Line())

	for i := uint64(0); i < count; i++ {
		e.handleAbort()
		entry := e.instantiate(n.Type, &endian, n.Line())
		entry.Base().SetVariableName(indexName(i))
		arr.Entries = append(arr.Entries, entry)
	}
	arr.SetSize(e.currOffset - start)
	return arr
}

// createLoopArray expands while/until sized arrays. The while form
// checks the condition before each element; the until form checks it
// after, so at least one element is produced.
func (e *Evaluator) createLoopArray(n *ast.ArrayVariableDecl, endian value.Endian, typeName string) pattern.Pattern {
	start := e.currOffset

	arr := pattern.NewDynamicArray(e, start, endian)
	arr.SetTypeName(typeName)
	e.patternCreated(n.Line())

	var iterations uint64
	for {
		e.handleAbort()

		if iterations >= e.loopLimit {
			e.abortf(n.Line(), "loop iterations exceeded set limit of %d", e.loopLimit)
		}
		iterations++

		if !n.Until && !e.toBool(e.evalExpr(n.Cond), n.Line()) {
			break
		}

		if uint64(len(arr.Entries)) >= e.arrayLimit {
			e.abortf(n.Line(), "array grew past set limit of %d entries", e.arrayLimit)
		}

		entry := e.instantiate(n.Type, &endian, n.Line())
		entry.Base().SetVariableName(indexName(uint64(len(arr.Entries))))
		arr.Entries = append(arr.Entries, entry)

		if n.Until && e.toBool(e.evalExpr(n.Cond), n.Line()) {
			break
		}
	}

	arr.SetSize(e.currOffset - start)
	return arr
}

// createStringArray materializes char/char16 arrays as string
// patterns. An omitted size reads to the null terminator.
func (e *Evaluator) createStringArray(n *ast.ArrayVariableDecl, vt tokens.ValueType, endian value.Endian) {
	charSize := vt.Size()
	start := e.currOffset

	var size uint64
	switch {
	case n.Size != nil:
		count := e.toUnsigned(e.evalExpr(n.Size), n.Line())
		if count > e.arrayLimit {
			e.abortf(n.Line(), "array grew past set limit of %d entries", e.arrayLimit)
		}
		size = count * charSize

	case n.Cond != nil:
		e.abortf(n.Line(), "string arrays do not support loop sizing")

	default:
		// Scan for the terminator, bounded by the provider size.
		for {
			if uint64(size/charSize) >= e.arrayLimit {
				e.abortf(n.Line(), "array grew past set limit of %d entries", e.arrayLimit)
			}
			e.checkReadable(start+size, charSize, n.Line())
			buf := e.ReadRaw(start+size, int(charSize))
			size += charSize
			if value.ReadUnsigned(buf, endian) == 0 {
				break
			}
		}
	}

	e.checkReadable(start, size, n.Line())

	var p pattern.Pattern
	if vt == tokens.Character {
		p = pattern.NewString(e, start, size)
	} else {
		p = pattern.NewWideString(e, start, size, endian)
	}
	e.patternCreated(n.Line())
	e.currOffset = start + size

	p.Base().SetVariableName(n.Name)
	e.addPattern(p)
	e.applyVariableAttributes(&n.Attributable, p, n.Line())
}

/* Pointers */

func (e *Evaluator) evalPointerDecl(n *ast.PointerVariableDecl) {
	if n.Placement != nil {
		restore := e.placeAt(n.Placement, n.Line())
		defer restore()
	}

	sizeDef, ptrEndian, _, _ := e.resolveType(n.SizeType, e.defaultEndian, n.Line())
	bt, ok := sizeDef.(*ast.BuiltinType)
	if !ok || (!bt.VT.Unsigned() && !bt.VT.Signed()) || bt.VT.Size() == 0 || bt.VT.Size() > 8 {
		e.abortf(n.Line(), "pointer size type must be an integer type of at most 8 bytes")
	}

	offset := e.currOffset
	size := bt.VT.Size()
	e.checkReadable(offset, size, n.Line())

	raw := value.ReadUnsigned(e.ReadRaw(offset, int(size)), ptrEndian)

	ptr := pattern.NewPointer(e, offset, size, ptrEndian)
	ptr.SetVariableName(n.Name)
	e.patternCreated(n.Line())

	// pointer_base relocates the pointee before it is created.
	address := raw
	if attr := n.Attribute("pointer_base"); attr != nil {
		if !attr.HasValue {
			e.abortf(n.Line(), "attribute 'pointer_base' expected a parameter")
		}
		base := e.callFormatterFunction(attr.Value, value.Unsigned(raw), n.Line())
		address = e.toUnsigned(base, n.Line()) + raw
	}
	ptr.PointedAt = address

	prev := e.currOffset
	e.currOffset = address
	pointee := e.instantiate(n.Type, nil, n.Line())
	pointee.Base().SetVariableName("*" + n.Name)
	ptr.Pointee = pointee
	e.currOffset = prev + size

	e.addPattern(ptr)
	e.applyVariableAttributes(&n.Attributable, ptr, n.Line())
}

func indexName(i uint64) string {
	return fmt.Sprintf("[%d]", i)
}
