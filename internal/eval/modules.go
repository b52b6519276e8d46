package eval

import (
	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/parser"
	"qilang.dev/qi/internal/qerrors"
	"qilang.dev/qi/internal/token"
	"qilang.dev/qi/internal/value"
)

// ModuleLoader resolves a module name to its source text (e.g. reading
// name+".qi" off a search path). A nil Loader makes every "use" of a
// not-already-loaded module fail with a module-not-found error.
type ModuleLoader func(name string) (string, error)

// EvalProgram evaluates forms the way one source unit is evaluated
// (§4.8): a leading (module name) switches every def/defn that follows
// into that module's own frame; export records its public surface;
// use loads another module (exactly once) and binds names into the
// current frame per its import mode. Forms before any (module ...)
// land directly in frame, so a module-less script behaves exactly like
// calling Eval on each form in turn.
func (e *Evaluator) EvalProgram(forms []ast.Expr, frame *value.Frame) (value.Value, error) {
	var result value.Value = value.Nil{}
	var current *module.Module
	cur := frame
	for _, form := range forms {
		switch n := form.(type) {
		case ast.ModuleDecl:
			m, _, err := e.Modules.Begin(n.Name)
			if err != nil {
				return nil, qerrors.New(qerrors.Module, n.Pos(), "%s", err)
			}
			current, cur = m, m.Frame
			result = value.Nil{}
		case ast.Export:
			if current == nil {
				return nil, qerrors.New(qerrors.Module, n.Pos(), "export used outside of a module declaration")
			}
			current.Export(n.Names...)
			result = value.Nil{}
		case ast.Use:
			v, err := e.evalUse(n, cur)
			if err != nil {
				return nil, err
			}
			result = v
		default:
			v, err := e.Eval(form, cur)
			if err != nil {
				return nil, err
			}
			result = v
		}
	}
	if current != nil {
		e.Modules.Finish(current.Name)
	}
	return result, nil
}

// evalUse loads n.Module (if not already loaded) and binds its exports
// into into per n.Mode: all names bare, only the named subset, or every
// export under "alias/name" (§4.8's three import modes).
func (e *Evaluator) evalUse(n ast.Use, into *value.Frame) (value.Value, error) {
	m, err := e.loadModule(n.Module, n.Pos())
	if err != nil {
		return nil, err
	}
	bind := func(name, as string) error {
		v, _, err := m.Lookup(name)
		if err != nil {
			return qerrors.New(qerrors.Module, n.Pos(), "%s", err)
		}
		into.Define(as, v)
		return nil
	}
	switch n.Mode {
	case ast.UseOnly:
		for _, name := range n.Names {
			if err := bind(name, name); err != nil {
				return nil, err
			}
		}
	case ast.UseAliased:
		for _, name := range m.ExportedNames() {
			if err := bind(name, n.Alias+"/"+name); err != nil {
				return nil, err
			}
		}
	default: // ast.UseAll
		for _, name := range m.ExportedNames() {
			if err := bind(name, name); err != nil {
				return nil, err
			}
		}
	}
	return value.Nil{}, nil
}

// loadModule returns the module named name, loading its source through
// e.Loader exactly once. A module already fully loaded is returned
// straight from the registry (re-use is a no-op); a module currently
// mid-load further up the call stack surfaces as a cyclic-use error out
// of Registry.Begin, raised when the loaded source's own (module ...)
// form runs.
func (e *Evaluator) loadModule(name string, pos token.Pos) (*module.Module, error) {
	if m, ok := e.Modules.Get(name); ok {
		return m, nil
	}
	if e.Loader == nil {
		return nil, qerrors.New(qerrors.Module, pos, "module %q not found: no module loader configured", name)
	}
	src, err := e.Loader(name)
	if err != nil {
		return nil, qerrors.New(qerrors.Module, pos, "module %q not found: %s", name, err)
	}
	forms, err := parser.New(src).ParseProgram()
	if err != nil {
		return nil, err
	}
	if _, err := e.EvalProgram(forms, e.Global); err != nil {
		return nil, err
	}
	m, ok := e.Modules.Get(name)
	if !ok {
		return nil, qerrors.New(qerrors.Module, pos, "module %q's source never declared itself with (module %s)", name, name)
	}
	return m, nil
}
