// Package stdlib implements the host function registry consumed by the
// evaluator, plus the built-in std:: function library.
package stdlib

import (
	"fmt"

	"github.com/hexpat-lang/hexpat/core/console"
	"github.com/hexpat-lang/hexpat/core/value"
	"github.com/hexpat-lang/hexpat/runtime/provider"
)

// ParamCount describes a function's accepted arity, including the
// sentinel forms.
type ParamCount struct {
	kind paramKind
	n    int
}

type paramKind int

const (
	paramExact paramKind = iota
	paramNone
	paramUnlimited
	paramMoreThan
	paramLessThan
)

// Exactly accepts exactly n arguments.
func Exactly(n int) ParamCount { return ParamCount{kind: paramExact, n: n} }

// NoParameters accepts no arguments.
func NoParameters() ParamCount { return ParamCount{kind: paramNone} }

// UnlimitedParameters accepts any number of arguments.
func UnlimitedParameters() ParamCount { return ParamCount{kind: paramUnlimited} }

// MoreParametersThan accepts more than n arguments.
func MoreParametersThan(n int) ParamCount { return ParamCount{kind: paramMoreThan, n: n} }

// LessParametersThan accepts fewer than n arguments.
func LessParametersThan(n int) ParamCount { return ParamCount{kind: paramLessThan, n: n} }

// Check reports whether argc satisfies the arity.
func (p ParamCount) Check(argc int) bool {
	switch p.kind {
	case paramNone:
		return argc == 0
	case paramUnlimited:
		return true
	case paramMoreThan:
		return argc > p.n
	case paramLessThan:
		return argc < p.n
	default:
		return argc == p.n
	}
}

// Exact returns the exact arity and whether the count is exact.
func (p ParamCount) Exact() (int, bool) {
	return p.n, p.kind == paramExact
}

func (p ParamCount) String() string {
	switch p.kind {
	case paramNone:
		return "no parameters"
	case paramUnlimited:
		return "any number of parameters"
	case paramMoreThan:
		return fmt.Sprintf("more than %d parameters", p.n)
	case paramLessThan:
		return fmt.Sprintf("less than %d parameters", p.n)
	default:
		return fmt.Sprintf("%d parameters", p.n)
	}
}

// Context is the evaluator surface exposed to host functions.
type Context interface {
	// Console returns the run's diagnostics sink.
	Console() *console.Console
	// Provider returns the byte source of the run.
	Provider() provider.Provider
	// EnvVariable looks up a host-supplied environment scalar.
	EnvVariable(name string) (value.Literal, bool)
	// RequestDangerous asks permission to run the named dangerous
	// function, marking the sticky called flag. A denial is an error.
	RequestDangerous(name string) error
}

// Callback is a host function body. A nil literal result means the
// function returns no value.
type Callback func(ctx Context, args []value.Literal) (value.Literal, error)

// Function is one registered callable.
type Function struct {
	Name      string
	Params    ParamCount
	Fn        Callback
	Dangerous bool
}

// Registry maps qualified names to host functions. Lookup is by exact
// qualified name.
type Registry struct {
	funcs map[string]Function
	names []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Function{}}
}

// AddCustomFunction registers a callable; registering a name twice is
// an error.
func (r *Registry) AddCustomFunction(name string, params ParamCount, fn Callback) error {
	return r.add(Function{Name: name, Params: params, Fn: fn})
}

// AddDangerousFunction registers a callable guarded by the user
// consent flag.
func (r *Registry) AddDangerousFunction(name string, params ParamCount, fn Callback) error {
	return r.add(Function{Name: name, Params: params, Fn: fn, Dangerous: true})
}

func (r *Registry) add(f Function) error {
	if _, exists := r.funcs[f.Name]; exists {
		return fmt.Errorf("function '%s' is already registered", f.Name)
	}
	r.funcs[f.Name] = f
	r.names = append(r.names, f.Name)
	return nil
}

// Get returns the function registered under the exact qualified name.
func (r *Registry) Get(name string) (Function, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Exists reports whether a name is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
