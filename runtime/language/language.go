// Package language wires the pipeline stages together behind the
// one-shot execution API the host consumes.
package language

import (
	"os"
	"strconv"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"

	"github.com/hexpat-lang/hexpat/core/ast"
	"github.com/hexpat-lang/hexpat/core/console"
	plerr "github.com/hexpat-lang/hexpat/core/errors"
	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/core/value"
	"github.com/hexpat-lang/hexpat/runtime/evaluator"
	"github.com/hexpat-lang/hexpat/runtime/lexer"
	"github.com/hexpat-lang/hexpat/runtime/parser"
	"github.com/hexpat-lang/hexpat/runtime/preprocessor"
	"github.com/hexpat-lang/hexpat/runtime/provider"
	"github.com/hexpat-lang/hexpat/runtime/stdlib"
	"github.com/hexpat-lang/hexpat/runtime/validator"
)

// Language executes pattern source against byte providers. The
// function registry and include paths persist across runs; everything
// else is reset by each Execute call.
type Language struct {
	registry     *stdlib.Registry
	includePaths []string

	cons     *console.Console
	patterns []pattern.Pattern
	currAST  []ast.Node
	outVars    map[string]value.Literal
	mainResult value.Literal
	err        *plerr.Error

	allowDangerous  bool
	dangerousCalled bool

	// running holds the evaluator of the in-flight run so Abort can
	// reach it from another goroutine.
	running atomic.Pointer[evaluator.Evaluator]
}

// New creates a Language with the std:: builtins registered.
func New() *Language {
	registry := stdlib.NewRegistry()
	stdlib.RegisterBuiltins(registry)

	return &Language{
		registry: registry,
		cons:     console.New(),
	}
}

// Registry exposes the function registry so hosts can add custom
// functions.
func (l *Language) Registry() *stdlib.Registry { return l.registry }

// AddIncludePath appends a directory to the include search list.
func (l *Language) AddIncludePath(dir string) {
	l.includePaths = append(l.includePaths, dir)
}

// ExecuteString runs source against prov. envVars become readable
// through std::env, inVars seed `in` globals, and with checkResult a
// non-zero main return fails the run. It returns false on any hard
// error; diagnostics and the error are available afterwards.
func (l *Language) ExecuteString(prov provider.Provider, source string, envVars, inVars map[string]value.Literal, checkResult bool) bool {
	l.cons.Clear()
	l.patterns = nil
	l.currAST = nil
	l.outVars = nil
	l.mainResult = nil
	l.err = nil

	eval := evaluator.New(prov, l.cons, l.registry)
	eval.SetInVariables(inVars)
	for name, v := range envVars {
		eval.SetEnvVariable(name, v)
	}
	if l.allowDangerous {
		eval.AllowDangerousFunctions(true)
	}

	l.running.Store(eval)
	defer func() {
		l.dangerousCalled = eval.DangerousFunctionCalled()
		l.running.Store(nil)
	}()

	pre := preprocessor.New()
	for _, dir := range l.includePaths {
		pre.AddIncludePath(dir)
	}
	registerEvaluatorPragmas(pre, eval, prov)

	expanded, err := pre.Preprocess(source, true)
	if err != nil {
		return l.fail(err)
	}

	toks, err := lexer.New(expanded).Lex()
	if err != nil {
		return l.fail(err)
	}

	pars := parser.New(toks)
	program, err := pars.Parse()
	if err != nil {
		return l.fail(err)
	}
	l.currAST = program

	if err := validator.New(pars.Types(), l.registry).Validate(program); err != nil {
		return l.fail(err)
	}

	eval.SetTypes(pars.Types())
	patterns, err := eval.Evaluate(program)
	if err != nil {
		// Evaluate already recorded the hard error on the console.
		if e, ok := err.(*plerr.Error); ok {
			l.err = e
		}
		return false
	}
	l.mainResult = eval.MainResult()

	if checkResult && eval.MainResult() != nil {
		code, convErr := value.ToSigned(eval.MainResult())
		if convErr == nil && code != 0 {
			hard := plerr.Newf(plerr.StageEvaluator, 0, "non-success value returned from main: %d", code)
			l.cons.SetHardError(hard)
			l.err = hard
			return false
		}
	}

	l.patterns = patterns
	l.outVars = eval.OutVariables()
	return true
}

// ExecuteFile reads a pattern file and executes it with checkResult
// enabled.
func (l *Language) ExecuteFile(prov provider.Provider, path string, envVars, inVars map[string]value.Literal) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		wrapped := pkgerrors.Wrapf(err, "failed to read pattern file '%s'", path)
		l.cons.Clear()
		return l.fail(plerr.New(plerr.StagePreprocessor, 0, wrapped.Error()))
	}
	return l.ExecuteString(prov, string(data), envVars, inVars, true)
}

// ExecuteFunction wraps a snippet in `fn main() { ... };`, runs it
// without result checking and returns main's value.
func (l *Language) ExecuteFunction(prov provider.Provider, snippet string) (bool, value.Literal) {
	source := "fn main() { " + snippet + " };"
	ok := l.ExecuteString(prov, source, nil, nil, false)
	return ok, l.mainResult
}

func (l *Language) fail(err error) bool {
	if e, ok := err.(*plerr.Error); ok {
		l.err = e
		l.cons.SetHardError(e)
	} else {
		l.err = plerr.New(plerr.StageEvaluator, 0, err.Error())
		l.cons.SetHardError(l.err)
	}
	return false
}

/* Results */

// Patterns returns the tree of the last successful run.
func (l *Language) Patterns() []pattern.Pattern { return l.patterns }

// CurrentAST returns the syntax tree of the last parse.
func (l *Language) CurrentAST() []ast.Node { return l.currAST }

// OutVariables returns the exported `out` globals of the last run.
func (l *Language) OutVariables() map[string]value.Literal { return l.outVars }

// ConsoleLog returns the diagnostics of the last run.
func (l *Language) ConsoleLog() []console.Message { return l.cons.Messages() }

// Error returns the hard error of the last run, or nil.
func (l *Language) Error() *plerr.Error { return l.err }

// Abort cooperatively stops the in-flight run.
func (l *Language) Abort() {
	if eval := l.running.Load(); eval != nil {
		eval.Abort()
	}
}

// AllowDangerousFunctions grants or revokes consent for dangerous
// host functions on subsequent runs.
func (l *Language) AllowDangerousFunctions(allow bool) {
	l.allowDangerous = allow
}

// DangerousFunctionBeenCalled reports whether the last run invoked (or
// attempted to invoke) a dangerous function.
func (l *Language) DangerousFunctionBeenCalled() bool {
	return l.dangerousCalled
}

/* Pragma wiring */

// registerEvaluatorPragmas connects the reserved pragma keys to the
// evaluator and provider for this run.
func registerEvaluatorPragmas(pre *preprocessor.Preprocessor, eval *evaluator.Evaluator, prov provider.Provider) {
	pre.AddPragmaHandler("endian", func(v string) bool {
		switch v {
		case "big":
			eval.SetDefaultEndian(value.BigEndian)
		case "little", "native":
			eval.SetDefaultEndian(value.LittleEndian)
		default:
			return false
		}
		return true
	})

	limit := func(apply func(uint64)) preprocessor.PragmaHandler {
		return func(v string) bool {
			n, err := strconv.ParseUint(v, 0, 64)
			if err != nil || n == 0 {
				return false
			}
			apply(n)
			return true
		}
	}
	pre.AddPragmaHandler("eval_depth", limit(eval.SetEvaluationDepth))
	pre.AddPragmaHandler("array_limit", limit(eval.SetArrayLimit))
	pre.AddPragmaHandler("pattern_limit", limit(eval.SetPatternLimit))
	pre.AddPragmaHandler("loop_limit", limit(eval.SetLoopLimit))

	pre.AddPragmaHandler("base_address", func(v string) bool {
		addr, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return false
		}
		prov.SetBaseAddress(addr)
		return true
	})

	pre.AddPragmaHandler("bitfield_order", func(v string) bool {
		switch v {
		case "left_to_right":
			eval.SetBitfieldOrder(evaluator.LeftToRight)
		case "right_to_left":
			eval.SetBitfieldOrder(evaluator.RightToLeft)
		default:
			return false
		}
		return true
	})
}
