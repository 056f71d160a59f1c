// Package evaluator walks the syntax tree against a byte provider and
// materializes the pattern tree.
//
// One Evaluator performs one run. Terminal errors unwind through
// panic/recover inside Evaluate, mirroring the language contract that
// the first hard error destroys the partially built tree; soft
// diagnostics go through the console without aborting.
package evaluator

import (
	"fmt"
	"sync/atomic"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/console"
	plerr "github.com/hexpat-lang/hexpat/core/errors"
	"github.com/hexpat-lang/hexpat/core/invariant"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/value"
	"github.com/hexpat-lang/hexpat/runtime/provider"
	"github.com/hexpat-lang/hexpat/runtime/stdlib"
)

// Default per-run limits, reset by the language layer before every
// execution.
const (
	DefaultEvaluationDepth = 32
	DefaultArrayLimit      = 0x1000
	DefaultPatternLimit    = 0x2000
	DefaultLoopLimit       = 0x1000
)

// DangerousPermission gates host functions flagged dangerous.
type DangerousPermission int

const (
	DangerousAsk DangerousPermission = iota
	DangerousDeny
	DangerousAllow
)

// ControlFlowStatement tracks the unwinding state of loops and
// function bodies.
type ControlFlowStatement int

const (
	FlowNone ControlFlowStatement = iota
	FlowContinue
	FlowBreak
	FlowReturn
)

// BitfieldOrder selects the direction bitfield fields fill their
// container.
type BitfieldOrder int

const (
	RightToLeft BitfieldOrder = iota
	LeftToRight
)

// ParameterPack carries variadic-tail arguments through a call scope.
type ParameterPack struct {
	Name   string
	Values []value.Literal
}

// Scope is one frame of the evaluation stack. Patterns created in the
// frame are owned by the list the frame points at.
type Scope struct {
	Parent        pattern.Pattern
	Patterns      *[]pattern.Pattern
	ParameterPack *ParameterPack

	// boundary marks a function call frame; local variable lookup
	// does not cross it into the caller.
	boundary bool

	// stackBase is the stack height when the scope was pushed, so
	// popping discards the frame's locals.
	stackBase int
}

// Evaluator holds the state of one run.
type Evaluator struct {
	prov     provider.Provider
	cons     *console.Console
	registry *stdlib.Registry
	types    map[string]*ast.TypeDecl

	currOffset    uint64
	defaultEndian value.Endian
	bitfieldOrder BitfieldOrder

	evalDepth    uint64
	arrayLimit   uint64
	patternLimit uint64
	loopLimit    uint64

	patternCount uint64
	aborted      atomic.Bool

	scopes []*Scope
	stack  []value.Literal

	functions  map[string]*ast.FunctionDef
	envVars    map[string]value.Literal
	inVars     map[string]value.Literal
	outVars    map[string]int
	outValues  map[string]value.Literal
	mainResult value.Literal

	dangerousPermission DangerousPermission
	dangerousCalled     bool

	controlFlow ControlFlowStatement
	returnValue value.Literal

	// currLine is the line of the node being evaluated, used to tag
	// errors raised from helpers without node context.
	currLine uint32

	// nextColor cycles the auto palette used by [[single_color]].
	nextColor int
}

// New creates an evaluator with default limits.
func New(prov provider.Provider, cons *console.Console, registry *stdlib.Registry) *Evaluator {
	invariant.NotNil(prov, "provider")
	invariant.NotNil(cons, "console")
	invariant.NotNil(registry, "registry")

	return &Evaluator{
		prov:          prov,
		cons:          cons,
		registry:      registry,
		defaultEndian: value.LittleEndian,
		evalDepth:     DefaultEvaluationDepth,
		arrayLimit:    DefaultArrayLimit,
		patternLimit:  DefaultPatternLimit,
		loopLimit:     DefaultLoopLimit,
	}
}

/* Configuration */

func (e *Evaluator) SetDefaultEndian(endian value.Endian) { e.defaultEndian = endian }
func (e *Evaluator) DefaultEndian() value.Endian          { return e.defaultEndian }
func (e *Evaluator) SetBitfieldOrder(order BitfieldOrder) { e.bitfieldOrder = order }
func (e *Evaluator) SetEvaluationDepth(depth uint64)      { e.evalDepth = depth }
func (e *Evaluator) SetArrayLimit(limit uint64)           { e.arrayLimit = limit }
func (e *Evaluator) SetPatternLimit(limit uint64)         { e.patternLimit = limit }
func (e *Evaluator) SetLoopLimit(limit uint64)            { e.loopLimit = limit }
func (e *Evaluator) PatternLimit() uint64                 { return e.patternLimit }
func (e *Evaluator) PatternCount() uint64                 { return e.patternCount }

// SetTypes hands the evaluator the parser's type table for enum
// constant resolution.
func (e *Evaluator) SetTypes(types map[string]*ast.TypeDecl) { e.types = types }

// SetEnvVariable exposes a host scalar to the run.
func (e *Evaluator) SetEnvVariable(name string, v value.Literal) {
	if e.envVars == nil {
		e.envVars = map[string]value.Literal{}
	}
	e.envVars[name] = v
}

// SetInVariables provides the values applied to `in` globals.
func (e *Evaluator) SetInVariables(vars map[string]value.Literal) {
	e.inVars = vars
}

// OutVariables returns the final values of `out` globals, captured
// when the run ended.
func (e *Evaluator) OutVariables() map[string]value.Literal {
	return e.outValues
}

// MainResult returns the value main returned, if main was defined.
func (e *Evaluator) MainResult() value.Literal { return e.mainResult }

// Console returns the run's diagnostics sink.
func (e *Evaluator) Console() *console.Console { return e.cons }

// Provider returns the byte source of the run.
func (e *Evaluator) Provider() provider.Provider { return e.prov }

// EnvVariable implements stdlib.Context.
func (e *Evaluator) EnvVariable(name string) (value.Literal, bool) {
	v, ok := e.envVars[name]
	return v, ok
}

/* Abort and dangerous functions */

// Abort requests a cooperative stop; the evaluator honors it at the
// next scope push, loop iteration or array expansion.
func (e *Evaluator) Abort() { e.aborted.Store(true) }

func (e *Evaluator) handleAbort() {
	if e.aborted.Load() {
		e.abortf(e.currLine, "evaluation aborted by user")
	}
}

// AllowDangerousFunctions flips the permission and resets the sticky
// called flag.
func (e *Evaluator) AllowDangerousFunctions(allow bool) {
	if allow {
		e.dangerousPermission = DangerousAllow
	} else {
		e.dangerousPermission = DangerousDeny
	}
	e.dangerousCalled = false
}

// DangerousFunctionCalled reports whether a dangerous function was
// invoked (or requested) during the run.
func (e *Evaluator) DangerousFunctionCalled() bool { return e.dangerousCalled }

// RequestDangerous implements stdlib.Context. Under Ask the request is
// recorded and denied, since this runtime has no interactive prompt.
func (e *Evaluator) RequestDangerous(name string) error {
	e.dangerousCalled = true
	if e.dangerousPermission == DangerousAllow {
		return nil
	}
	return fmt.Errorf("calling dangerous function '%s' is not allowed", name)
}

/* Error handling */

// evalError wraps the terminal error for the panic unwind.
type evalError struct {
	err *plerr.Error
}

// abortf raises the terminal error of the run.
func (e *Evaluator) abortf(line uint32, format string, args ...any) {
	panic(evalError{err: plerr.Newf(plerr.StageEvaluator, line, format, args...)})
}

/* Scopes */

// PushScope enters a new frame whose patterns are owned by owner.
func (e *Evaluator) PushScope(parent pattern.Pattern, owner *[]pattern.Pattern) {
	if uint64(len(e.scopes)) > e.evalDepth {
		e.abortf(e.currLine, "evaluation depth exceeded set limit of %d", e.evalDepth)
	}
	e.handleAbort()
	e.scopes = append(e.scopes, &Scope{Parent: parent, Patterns: owner, stackBase: len(e.stack)})
}

// PopScope leaves the current frame, discarding its locals.
func (e *Evaluator) PopScope() {
	invariant.Invariant(len(e.scopes) > 0, "scope stack must not underflow")
	top := e.scopes[len(e.scopes)-1]
	e.stack = e.stack[:top.stackBase]
	e.scopes = e.scopes[:len(e.scopes)-1]
}

func (e *Evaluator) scope(index int) *Scope {
	return e.scopes[len(e.scopes)-1+index]
}

func (e *Evaluator) globalScope() *Scope {
	return e.scopes[0]
}

func (e *Evaluator) isGlobalScope() bool {
	return len(e.scopes) == 1
}

/* Provider access */

// ReadRaw implements pattern.Runtime. Reads past the end of the data
// are terminal.
func (e *Evaluator) ReadRaw(offset uint64, n int) []byte {
	buf := make([]byte, n)
	if err := e.prov.Read(offset, buf); err != nil {
		e.abortf(e.currLine, "%v", err)
	}
	return buf
}

/* Pattern accounting */

func (e *Evaluator) patternCreated(line uint32) {
	e.patternCount++
	if e.patternCount > e.patternLimit {
		e.abortf(line, "exceeded maximum number of patterns allowed (%d)", e.patternLimit)
	}
}

/* Run entry */

// Evaluate processes the program and returns the placed patterns of
// the global scope. On a terminal error the partial tree is discarded
// and the error is recorded as the console's hard error.
func (e *Evaluator) Evaluate(program []ast.Node) (patterns []pattern.Pattern, err error) {
	var globals []pattern.Pattern

	defer func() {
		if r := recover(); r != nil {
			ee, ok := r.(evalError)
			if !ok {
				panic(r)
			}
			e.cons.SetHardError(ee.err)
			patterns, err = nil, ee.err
		}
	}()

	e.currOffset = e.prov.BaseAddress()
	e.patternCount = 0
	e.controlFlow = FlowNone
	e.functions = map[string]*ast.FunctionDef{}
	e.outVars = map[string]int{}
	e.stack = nil
	e.scopes = nil
	e.mainResult = nil

	e.PushScope(nil, &globals)
	defer e.PopScope()

	e.evaluateBody(program)

	if mainDef, ok := e.functions["main"]; ok {
		if len(mainDef.Params) != 0 || mainDef.ParamPack != "" {
			e.abortf(mainDef.Line(), "main function may not accept any arguments")
		}
		e.mainResult = e.call("main", nil, mainDef.Line())
	}

	// Capture out variables before the global scope's stack slots are
	// discarded.
	e.outValues = map[string]value.Literal{}
	for name, slot := range e.outVars {
		if v := e.stack[slot]; v != nil {
			e.outValues[name] = v
		} else {
			e.outValues[name] = value.Unsigned(0)
		}
	}

	// Local variables are working storage, not placed data.
	placed := make([]pattern.Pattern, 0, len(globals))
	for _, p := range globals {
		if !p.Base().Local() {
			placed = append(placed, p)
		}
	}
	return placed, nil
}

// evaluateBody processes top-level (or namespace) declarations in
// source order.
func (e *Evaluator) evaluateBody(nodes []ast.Node) {
	for _, node := range nodes {
		e.currLine = node.Line()
		switch n := node.(type) {
		case *ast.TypeDecl:
			// Types were registered at parse time.

		case *ast.FunctionDef:
			e.functions[n.Name] = n.Clone().(*ast.FunctionDef)

		case *ast.Namespace:
			e.evaluateBody(n.Body)

		case *ast.Conditional:
			cond := e.toBool(e.evalExpr(n.Cond), n.Line())
			if cond {
				e.evaluateBody(n.TrueBody)
			} else {
				e.evaluateBody(n.FalseBody)
			}

		case *ast.VariableDecl, *ast.ArrayVariableDecl, *ast.PointerVariableDecl:
			e.evalDeclaration(node)

		default:
			e.abortf(node.Line(), "unexpected statement at global scope")
		}
	}
}
