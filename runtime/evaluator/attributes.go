package evaluator

import (
	"fmt"
	"strconv"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/value"
)

// autoPalette backs [[single_color]]; colors rotate per run in
// registration order.
var autoPalette = []uint32{
	0x50C878, 0xE06C75, 0x61AFEF, 0xE5C07B,
	0xC678DD, 0x56B6C2, 0xD19A66, 0x98C379,
}

// applyTypeAttributes applies the attributes valid on type
// declarations to a freshly built pattern. Misuse on an unsupported
// pattern variant is a terminal error.
func (e *Evaluator) applyTypeAttributes(attrs *ast.Attributable, p pattern.Pattern, line uint32) {
	if attr := attrs.Attribute("inline"); attr != nil {
		e.rejectValue(attr, line)
		if !inlinable(p) {
			e.abortf(line, "inline attribute can only be applied to nested types")
		}
		p.Base().SetInlined(true)
	}

	if attr := attrs.Attribute("format"); attr != nil {
		name := e.requireValue(attr, line)
		e.requireUnaryFunction(name, "formatter", line)
		p.Base().SetFormatter(e.formatterFor(name, line))
	}

	if attr := attrs.Attribute("format_entries"); attr != nil {
		name := e.requireValue(attr, line)
		e.requireUnaryFunction(name, "formatter", line)
		arr, ok := p.(*pattern.DynamicArray)
		if !ok {
			e.abortf(line, "format_entries attribute can only be applied to array types")
		}
		for _, entry := range arr.Entries {
			entry.Base().SetFormatter(e.formatterFor(name, line))
		}
	}

	if attr := attrs.Attribute("transform"); attr != nil {
		name := e.requireValue(attr, line)
		e.requireUnaryFunction(name, "transform", line)
		p.Base().SetTransform(func(l value.Literal) (result value.Literal, err error) {
			// Transforms also run at display time, outside the run's
			// recover; contain the unwind here.
			defer func() {
				if r := recover(); r != nil {
					ee, ok := r.(evalError)
					if !ok {
						panic(r)
					}
					result, err = nil, ee.err
				}
			}()
			result = e.callWithValues(name, []value.Literal{l}, line)
			if result == nil {
				return nil, fmt.Errorf("transform function '%s' did not return a value", name)
			}
			return result, nil
		})
	}

	if attr := attrs.Attribute("pointer_base"); attr != nil {
		// The pointer declaration consumed this attribute before the
		// pointee was created; anywhere else it is misuse.
		if _, ok := p.(*pattern.Pointer); !ok {
			e.abortf(line, "pointer_base attribute may only be applied to a pointer")
		}
	}

	if attr := attrs.Attribute("hidden"); attr != nil {
		e.rejectValue(attr, line)
		p.Base().SetHidden(true)
	}

	if !p.Base().HasOverriddenColor() {
		if attr := attrs.Attribute("color"); attr != nil {
			p.Base().SetColor(e.parseColor(attr, line))
		} else if attr := attrs.Attribute("single_color"); attr != nil {
			e.rejectValue(attr, line)
			p.Base().SetColor(e.nextAutoColor())
		}
	}
}

// applyVariableAttributes applies attributes attached to a variable
// declaration. Display name and comment overrides exist only at
// variable scope.
func (e *Evaluator) applyVariableAttributes(attrs *ast.Attributable, p pattern.Pattern, line uint32) {
	e.applyTypeAttributes(attrs, p, line)

	if attr := attrs.Attribute("color"); attr != nil {
		p.Base().SetColor(e.parseColor(attr, line))
	} else if attr := attrs.Attribute("single_color"); attr != nil {
		p.Base().SetColor(e.nextAutoColor())
	}

	if attr := attrs.Attribute("name"); attr != nil {
		p.Base().SetDisplayName(e.requireValue(attr, line))
	}

	if attr := attrs.Attribute("comment"); attr != nil {
		p.Base().SetComment(e.requireValue(attr, line))
	}

	// no_unique_address rewinds the cursor so the next member
	// overlaps this one.
	if attr := attrs.Attribute("no_unique_address"); attr != nil {
		e.rejectValue(attr, line)
		e.currOffset -= p.Size()
	}
}

func inlinable(p pattern.Pattern) bool {
	switch p.(type) {
	case *pattern.Struct, *pattern.Union, *pattern.StaticArray, *pattern.DynamicArray, *pattern.Bitfield:
		return true
	default:
		return false
	}
}

func (e *Evaluator) requireValue(attr *ast.Attribute, line uint32) string {
	if !attr.HasValue {
		e.abortf(line, "attribute '%s' expected a parameter", attr.Key)
	}
	return attr.Value
}

func (e *Evaluator) rejectValue(attr *ast.Attribute, line uint32) {
	if attr.HasValue {
		e.abortf(line, "attribute '%s' did not expect a parameter", attr.Key)
	}
}

// requireUnaryFunction checks that the referenced function exists and
// takes exactly one argument.
func (e *Evaluator) requireUnaryFunction(name, role string, line uint32) {
	if def, ok := e.functions[name]; ok {
		if len(def.Params) != 1 || def.ParamPack != "" {
			e.abortf(line, "%s function needs exactly one parameter", role)
		}
		return
	}
	fn, ok := e.registry.Get(name)
	if !ok {
		e.abortf(line, "cannot find %s function '%s'", role, name)
	}
	if n, exact := fn.Params.Exact(); !exact || n != 1 {
		e.abortf(line, "%s function needs exactly one parameter", role)
	}
}

// formatterFor builds the display closure for [[format]]. Formatters
// run at display time, outside the run's recover, so the unwind is
// contained here.
func (e *Evaluator) formatterFor(name string, line uint32) pattern.FormatFunc {
	return func(p pattern.Pattern) (text string, err error) {
		defer func() {
			if r := recover(); r != nil {
				ee, ok := r.(evalError)
				if !ok {
					panic(r)
				}
				text, err = "", ee.err
			}
		}()
		result := e.callWithValues(name, []value.Literal{e.patternValue(p)}, line)
		if result == nil {
			return "", fmt.Errorf("formatter function '%s' did not return a value", name)
		}
		return result.String(), nil
	}
}

// callFormatterFunction invokes a one-argument function by name; used
// for pointer_base resolution.
func (e *Evaluator) callFormatterFunction(name string, arg value.Literal, line uint32) value.Literal {
	e.requireUnaryFunction(name, "pointer base", line)
	result := e.callWithValues(name, []value.Literal{arg}, line)
	if result == nil {
		e.abortf(line, "pointer base function did not return a value")
	}
	return result
}

// parseColor decodes an RRGGBB hex attribute value.
func (e *Evaluator) parseColor(attr *ast.Attribute, line uint32) uint32 {
	text := e.requireValue(attr, line)
	color, err := strconv.ParseUint(text, 16, 32)
	if err != nil {
		e.abortf(line, "invalid color value '%s', expected RRGGBB", text)
	}
	return uint32(color)
}

func (e *Evaluator) nextAutoColor() uint32 {
	color := autoPalette[e.nextColor%len(autoPalette)]
	e.nextColor++
	return color
}
