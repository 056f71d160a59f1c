// Package validator performs the static structural checks that run
// after parsing and before evaluation: duplicate declarations,
// unresolved type aliases and unknown function references. Attribute
// site checks are deferred to attribute application, since they depend
// on the pattern variant produced.
package validator

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/hexpat-lang/hexpat/core/ast"
	plerr "github.com/hexpat-lang/hexpat/core/errors"
)

// FunctionTable reports which callable names the host registry knows.
type FunctionTable interface {
	Exists(name string) bool
	Names() []string
}

// Validator checks one parsed translation unit.
type Validator struct {
	types     map[string]*ast.TypeDecl
	functions FunctionTable

	defined map[string]bool // fn definitions in the AST
}

// New creates a validator over the parser's type table and the host
// function registry.
func New(types map[string]*ast.TypeDecl, functions FunctionTable) *Validator {
	return &Validator{types: types, functions: functions, defined: map[string]bool{}}
}

// Validate walks the program and returns the first structural error.
func (v *Validator) Validate(program []ast.Node) error {
	// Collect AST-defined functions first so forward calls resolve.
	if err := v.collectFunctions(program); err != nil {
		return err
	}

	for name, decl := range v.types {
		if decl.Ty == nil {
			return plerr.Newf(plerr.StageValidator, decl.Line(),
				"cannot resolve type '%s'%s", name, v.suggestType(name))
		}
	}

	return v.validateBody(program)
}

func (v *Validator) collectFunctions(nodes []ast.Node) error {
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.FunctionDef:
			if v.defined[n.Name] {
				return plerr.Newf(plerr.StageValidator, n.Line(), "redefinition of function '%s'", n.Name)
			}
			v.defined[n.Name] = true
		case *ast.Namespace:
			if err := v.collectFunctions(n.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) validateBody(nodes []ast.Node) error {
	seen := map[string]uint32{}

	for _, node := range nodes {
		name, line := declaredName(node)
		if name != "" {
			if prev, dup := seen[name]; dup {
				return plerr.Newf(plerr.StageValidator, line,
					"redeclaration of '%s', first declared on line %d", name, prev)
			}
			seen[name] = line
		}

		if err := v.validateNode(node); err != nil {
			return err
		}
	}
	return nil
}

func declaredName(node ast.Node) (string, uint32) {
	switch n := node.(type) {
	case *ast.VariableDecl:
		return n.Name, n.Line()
	case *ast.ArrayVariableDecl:
		return n.Name, n.Line()
	case *ast.PointerVariableDecl:
		return n.Name, n.Line()
	default:
		return "", 0
	}
}

func (v *Validator) validateNode(node ast.Node) error {
	switch n := node.(type) {
	case *ast.TypeDecl:
		if n.Ty == nil {
			return nil
		}
		return v.validateNode(n.Ty)

	case *ast.Struct:
		return v.validateBody(n.Members)

	case *ast.Union:
		return v.validateBody(n.Members)

	case *ast.Enum:
		seen := map[string]bool{}
		for _, entry := range n.Entries {
			if seen[entry.Name] {
				return plerr.Newf(plerr.StageValidator, n.Line(), "redeclaration of enum entry '%s'", entry.Name)
			}
			seen[entry.Name] = true
		}
		return nil

	case *ast.Bitfield:
		seen := map[string]bool{}
		for _, entry := range n.Entries {
			if entry.Name == "" {
				continue // anonymous padding bits
			}
			if seen[entry.Name] {
				return plerr.Newf(plerr.StageValidator, n.Line(), "redeclaration of bitfield field '%s'", entry.Name)
			}
			seen[entry.Name] = true
		}
		return nil

	case *ast.Namespace:
		return v.validateBody(n.Body)

	case *ast.FunctionDef:
		seen := map[string]bool{}
		for _, param := range n.Params {
			if seen[param.Name] {
				return plerr.Newf(plerr.StageValidator, n.Line(), "redeclaration of parameter '%s'", param.Name)
			}
			seen[param.Name] = true
		}
		return v.validateStatements(n.Body)

	case *ast.Conditional:
		if err := v.validateExpr(n.Cond); err != nil {
			return err
		}
		if err := v.validateBody(n.TrueBody); err != nil {
			return err
		}
		return v.validateBody(n.FalseBody)

	case *ast.VariableDecl:
		return v.validateExpr(n.Placement)
	case *ast.ArrayVariableDecl:
		for _, e := range []ast.Node{n.Size, n.Cond, n.Placement} {
			if err := v.validateExpr(e); err != nil {
				return err
			}
		}
		return nil
	case *ast.PointerVariableDecl:
		return v.validateExpr(n.Placement)
	case *ast.MultiVariableDecl:
		return v.validateStatements(n.Variables)

	default:
		return v.validateExpr(node)
	}
}

func (v *Validator) validateStatements(nodes []ast.Node) error {
	for _, node := range nodes {
		if err := v.validateNode(node); err != nil {
			return err
		}
	}
	return nil
}

// validateExpr checks function references inside expressions.
func (v *Validator) validateExpr(node ast.Node) error {
	switch n := node.(type) {
	case nil:
		return nil
	case *ast.FunctionCall:
		if !v.defined[n.Name] && !v.functions.Exists(n.Name) {
			return plerr.Newf(plerr.StageValidator, n.Line(),
				"call to unknown function '%s'%s", n.Name, v.suggestFunction(n.Name))
		}
		return v.validateStatements(n.Args)
	case *ast.MathOp:
		if err := v.validateExpr(n.LHS); err != nil {
			return err
		}
		return v.validateExpr(n.RHS)
	case *ast.UnaryOp:
		return v.validateExpr(n.Operand)
	case *ast.Ternary:
		for _, e := range []ast.Node{n.Cond, n.True, n.False} {
			if err := v.validateExpr(e); err != nil {
				return err
			}
		}
		return nil
	case *ast.Cast:
		return v.validateExpr(n.Expr)
	case *ast.TypeOperator:
		return v.validateExpr(n.Expr)
	case *ast.RValue:
		for _, seg := range n.Path {
			if err := v.validateExpr(seg.Index); err != nil {
				return err
			}
		}
		return nil
	case *ast.Assignment:
		return v.validateExpr(n.RValue)
	case *ast.ControlFlow:
		return v.validateExpr(n.Value)
	case *ast.WhileLoop:
		if err := v.validateExpr(n.Cond); err != nil {
			return err
		}
		return v.validateStatements(n.Body)
	case *ast.ForLoop:
		for _, e := range []ast.Node{n.Init, n.Cond, n.Post} {
			if err := v.validateExpr(e); err != nil {
				return err
			}
		}
		return v.validateStatements(n.Body)
	default:
		return nil
	}
}

// suggestFunction returns a ", did you mean ...?" suffix when a close
// registry or AST name exists.
func (v *Validator) suggestFunction(name string) string {
	candidates := append([]string(nil), v.functions.Names()...)
	for defined := range v.defined {
		candidates = append(candidates, defined)
	}
	return suggest(name, candidates)
}

func (v *Validator) suggestType(name string) string {
	candidates := make([]string, 0, len(v.types))
	for typeName, decl := range v.types {
		if decl.Ty != nil {
			candidates = append(candidates, typeName)
		}
	}
	return suggest(name, candidates)
}

func suggest(name string, candidates []string) string {
	matches := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	sort.Sort(matches)
	return ", did you mean '" + matches[0].Target + "'?"
}
