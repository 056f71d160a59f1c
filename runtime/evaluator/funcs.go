package evaluator

import (
	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

/* Local variables */

// createVariable declares a local variable in the current scope,
// backed by a value-stack slot. The pattern's offset field indexes the
// stack, not the data.
func (e *Evaluator) createVariable(name string, ty *ast.TypeDecl, outVariable bool, line uint32) {
	for _, p := range *e.scope(0).Patterns {
		if p.Base().VariableName() == name {
			e.abortf(line, "variable with name '%s' already exists", name)
		}
	}

	slot := len(e.stack)
	e.stack = append(e.stack, nil)

	p := e.localPattern(ty, line)
	p.Base().SetLocal(true)
	p.Base().SetVariableName(name)
	p.Base().SetOffset(uint64(slot))
	e.addPattern(p)

	if outVariable {
		if !e.isGlobalScope() {
			e.abortf(line, "out variables may only be declared at the top level")
		}
		e.outVars[name] = slot
	}
}

// localPattern creates the typed shell of a local variable without
// touching the data or the cursor.
func (e *Evaluator) localPattern(ty *ast.TypeDecl, line uint32) pattern.Pattern {
	def, endian, typeName, _ := e.resolveType(ty, e.defaultEndian, line)

	bt, ok := def.(*ast.BuiltinType)
	if !ok {
		// Composite locals hold a reference to a pattern value.
		p := pattern.NewUnsigned(nil, 0, 0, endian)
		p.SetTypeName(typeName)
		return p
	}

	vt := bt.VT
	switch {
	case vt == tokens.Boolean:
		return pattern.NewBoolean(nil, 0)
	case vt == tokens.Character:
		return pattern.NewCharacter(nil, 0)
	case vt == tokens.Character16:
		return pattern.NewWideCharacter(nil, 0, endian)
	case vt.Float():
		return pattern.NewFloat(nil, 0, vt.Size(), endian)
	case vt == tokens.Str:
		return pattern.NewString(nil, 0, 0)
	case vt == tokens.Auto:
		p := pattern.NewUnsigned(nil, 0, 0, endian)
		p.SetTypeName("auto")
		return p
	case vt.Signed():
		return pattern.NewSigned(nil, 0, vt.Size(), endian)
	case vt.Unsigned():
		return pattern.NewUnsigned(nil, 0, vt.Size(), endian)
	default:
		e.abortf(line, "type '%s' cannot be used for a local variable", vt)
		return nil
	}
}

// setVariable assigns a local variable, casting the value to the
// variable's declared type.
func (e *Evaluator) setVariable(name string, val value.Literal, line uint32) {
	p, slot, ok := e.findLocal(name)
	if !ok {
		// Placed globals are read-only.
		for _, g := range *e.globalScope().Patterns {
			if g.Base().VariableName() == name {
				e.abortf(line, "cannot modify global variable '%s' which has been placed in memory", name)
			}
		}
		e.abortf(line, "no variable named '%s' found", name)
	}

	e.stack[slot] = e.castToVariable(p, val, line)
}

// castToVariable coerces an assigned literal to the local's type.
func (e *Evaluator) castToVariable(p pattern.Pattern, val value.Literal, line uint32) value.Literal {
	if p.TypeName() == "auto" {
		return val
	}

	switch p.(type) {
	case *pattern.Unsigned:
		if ref, ok := val.(value.Ref); ok {
			return ref
		}
		return value.Unsigned(truncateToPattern(e.toUnsigned(val, line), p))
	case *pattern.Signed:
		return value.Signed(e.toSigned(val, line))
	case *pattern.Float:
		f, err := value.ToFloat(val)
		if err != nil {
			e.abortf(line, "cannot cast type '%s' to type '%s'", val.Kind(), p.TypeName())
		}
		return value.Float(f)
	case *pattern.Boolean:
		return value.Bool(e.toBool(val, line))
	case *pattern.Character:
		return value.Char(e.toUnsigned(val, line))
	case *pattern.WideCharacter:
		return value.Char16(e.toUnsigned(val, line))
	case *pattern.String:
		if s, ok := val.(value.String); ok {
			return s
		}
		e.abortf(line, "cannot cast type '%s' to type 'str'", val.Kind())
	}

	return val
}

func truncateToPattern(v uint64, p pattern.Pattern) uint64 {
	if size := p.Size(); size > 0 && size < 8 {
		return v & (1<<(size*8) - 1)
	}
	return v
}

/* Function calls */

// call invokes a function by name: AST definitions take precedence,
// then the host registry.
func (e *Evaluator) call(name string, args []ast.Node, line uint32) value.Literal {
	vals := e.evalArguments(args)

	if def, ok := e.functions[name]; ok {
		return e.callDefined(def, vals, line)
	}

	fn, ok := e.registry.Get(name)
	if !ok {
		e.abortf(line, "call to unknown function '%s'", name)
	}

	if !fn.Params.Check(len(vals)) {
		e.abortf(line, "function '%s' expects %s, got %d", name, fn.Params, len(vals))
	}

	if fn.Dangerous {
		if err := e.RequestDangerous(name); err != nil {
			e.abortf(line, "%v", err)
		}
	}

	result, err := fn.Fn(e, vals)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	return result
}

// evalArguments evaluates call arguments left to right, splicing a
// referenced parameter pack in place.
func (e *Evaluator) evalArguments(args []ast.Node) []value.Literal {
	var vals []value.Literal
	for _, arg := range args {
		if rv, ok := arg.(*ast.RValue); ok && len(rv.Path) == 1 && rv.Path[0].Kind == ast.SegName {
			if pack := e.scope(0).ParameterPack; pack != nil && pack.Name == rv.Path[0].Name {
				vals = append(vals, pack.Values...)
				continue
			}
		}
		vals = append(vals, e.evalExpr(arg))
	}
	return vals
}

// callDefined runs an AST-defined function body in a fresh call scope.
func (e *Evaluator) callDefined(def *ast.FunctionDef, vals []value.Literal, line uint32) value.Literal {
	if def.ParamPack == "" && len(vals) != len(def.Params) {
		e.abortf(line, "function '%s' expects %d parameters, got %d", def.Name, len(def.Params), len(vals))
	}
	if def.ParamPack != "" && len(vals) < len(def.Params) {
		e.abortf(line, "function '%s' expects at least %d parameters, got %d", def.Name, len(def.Params), len(vals))
	}

	var locals []pattern.Pattern
	e.PushScope(nil, &locals)
	e.scope(0).boundary = true
	defer e.PopScope()

	for i, param := range def.Params {
		e.createVariable(param.Name, param.Type, false, line)
		e.setVariable(param.Name, vals[i], line)
	}
	if def.ParamPack != "" {
		e.scope(0).ParameterPack = &ParameterPack{
			Name:   def.ParamPack,
			Values: vals[len(def.Params):],
		}
	}

	e.execStatements(def.Body)

	var result value.Literal
	if e.controlFlow == FlowReturn {
		result = e.returnValue
	}
	e.controlFlow = FlowNone
	e.returnValue = nil
	return result
}

// callWithValues invokes a function with pre-evaluated arguments; used
// by the attribute engine for formatter, transform and pointer-base
// functions.
func (e *Evaluator) callWithValues(name string, vals []value.Literal, line uint32) value.Literal {
	if def, ok := e.functions[name]; ok {
		return e.callDefined(def, vals, line)
	}
	fn, ok := e.registry.Get(name)
	if !ok {
		e.abortf(line, "call to unknown function '%s'", name)
	}
	if !fn.Params.Check(len(vals)) {
		e.abortf(line, "function '%s' expects %s, got %d", name, fn.Params, len(vals))
	}
	result, err := fn.Fn(e, vals)
	if err != nil {
		e.abortf(line, "%v", err)
	}
	return result
}

/* Statement execution (function bodies) */

// execStatements runs function-mode statements until the body ends or
// control flow unwinds.
func (e *Evaluator) execStatements(body []ast.Node) {
	for _, stmt := range body {
		if e.controlFlow != FlowNone {
			return
		}
		e.currLine = stmt.Line()
		e.execStatement(stmt)
	}
}

func (e *Evaluator) execStatement(stmt ast.Node) {
	switch n := stmt.(type) {
	case *ast.VariableDecl:
		if n.In || n.Out {
			e.abortf(n.Line(), "in/out variables may only be declared at the top level")
		}
		if n.Placement != nil {
			e.evalVariableDecl(n)
			return
		}
		e.createVariable(n.Name, n.Type, false, n.Line())

	case *ast.Assignment:
		val := e.evalExpr(n.RValue)
		if n.LValue == "$" {
			e.currOffset = e.toUnsigned(val, n.Line())
			return
		}
		e.setVariable(n.LValue, val, n.Line())

	case *ast.Conditional:
		e.execConditional(n)

	case *ast.WhileLoop:
		e.execWhile(n)

	case *ast.ForLoop:
		e.execFor(n)

	case *ast.ControlFlow:
		switch n.Stmt {
		case ast.FlowReturn:
			if n.Value != nil {
				e.returnValue = e.evalExpr(n.Value)
			}
			e.controlFlow = FlowReturn
		case ast.FlowBreak:
			e.controlFlow = FlowBreak
		case ast.FlowContinue:
			e.controlFlow = FlowContinue
		}

	case *ast.MultiVariableDecl:
		e.execStatements(n.Variables)

	case *ast.ArrayVariableDecl:
		e.abortf(n.Line(), "local array variables are not supported, use placed arrays instead")

	case *ast.FunctionCall:
		// A void call is a valid statement even though it is not a
		// valid expression.
		e.call(n.Name, n.Args, n.Line())

	default:
		// Bare expression statement; the value is discarded.
		e.evalExpr(stmt)
	}
}

// execConditional runs one branch in a nested scope so branch locals
// are discarded.
func (e *Evaluator) execConditional(n *ast.Conditional) {
	branch := n.FalseBody
	if e.toBool(e.evalExpr(n.Cond), n.Line()) {
		branch = n.TrueBody
	}

	var locals []pattern.Pattern
	e.PushScope(e.scope(0).Parent, &locals)
	defer e.PopScope()
	e.execStatements(branch)
}

func (e *Evaluator) execWhile(n *ast.WhileLoop) {
	var iterations uint64
	for {
		e.handleAbort()
		if iterations >= e.loopLimit {
			e.abortf(n.Line(), "loop iterations exceeded set limit of %d", e.loopLimit)
		}
		iterations++

		if !e.toBool(e.evalExpr(n.Cond), n.Line()) {
			return
		}

		e.execLoopBody(n.Body)
		if e.controlFlow == FlowBreak {
			e.controlFlow = FlowNone
			return
		}
		if e.controlFlow == FlowReturn {
			return
		}
	}
}

func (e *Evaluator) execFor(n *ast.ForLoop) {
	var locals []pattern.Pattern
	e.PushScope(e.scope(0).Parent, &locals)
	defer e.PopScope()

	if n.Init != nil {
		e.execStatement(n.Init)
	}

	var iterations uint64
	for {
		e.handleAbort()
		if iterations >= e.loopLimit {
			e.abortf(n.Line(), "loop iterations exceeded set limit of %d", e.loopLimit)
		}
		iterations++

		if n.Cond != nil && !e.toBool(e.evalExpr(n.Cond), n.Line()) {
			return
		}

		e.execLoopBody(n.Body)
		if e.controlFlow == FlowBreak {
			e.controlFlow = FlowNone
			return
		}
		if e.controlFlow == FlowReturn {
			return
		}

		if n.Post != nil {
			e.execStatement(n.Post)
		}
	}
}

// execLoopBody runs one iteration in its own scope; continue unwinds
// just the iteration.
func (e *Evaluator) execLoopBody(body []ast.Node) {
	var locals []pattern.Pattern
	e.PushScope(e.scope(0).Parent, &locals)
	defer e.PopScope()

	e.execStatements(body)
	if e.controlFlow == FlowContinue {
		e.controlFlow = FlowNone
	}
}
