// Package eval implements Qi's tree-walking evaluator (§4
// "Evaluation").
//
// nperez-losp's Evaluator (the old internal/eval/eval.go) interpreted
// directly off a token stream with no separate tree; Qi's Evaluator
// instead walks internal/ast.Expr nodes produced by internal/parser,
// because quote/macro/match all need a tree to operate on. What
// survives from nperez-losp is the overall shape: a struct holding the
// shared, mutable interpreter state (nperez-losp's Namespace+Store+
// Provider+AsyncRegistry bundle becomes a global Frame + module
// Registry + concurrency Registry + output/warn writers), configured
// through functional options (see options.go, grounded the same way
// nperez-losp's losp.Option/eval construction is), and dispatch written as a
// single big switch over node kind, matching nperez-losp's switch-on-
// BuiltinFunc-name dispatch in builtin.go.
package eval

import (
	"fmt"
	"io"
	"os"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/concurrency"
	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/qerrors"
	"qilang.dev/qi/internal/value"
)

// Evaluator holds the state shared across one program's evaluation.
type Evaluator struct {
	Global      *value.Frame
	Modules     *module.Registry
	Concurrency *concurrency.Registry
	Out         io.Writer
	Warn        io.Writer
	Loader      ModuleLoader
}

// New creates an Evaluator whose Global frame holds no natives yet;
// internal/builtin.Register installs them afterwards (pkg/qi.New does
// this). Output defaults to io.Discard and warnings to os.Stderr.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		Global: value.NewFrame(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Out == nil {
		e.Out = io.Discard
	}
	if e.Warn == nil {
		e.Warn = os.Stderr
	}
	if e.Concurrency == nil {
		reg, err := concurrency.NewRegistry(0)
		if err != nil {
			return nil, err
		}
		e.Concurrency = reg
	}
	if e.Modules == nil {
		e.Modules = module.NewRegistry(e.Global)
	}
	return e, nil
}

// recurSignal is returned up the call stack by a Recur node; Loop and
// function application catch it at their own boundary and restart with
// the new argument values, implementing the trampoline §4.5
// requires so recur never grows the Go call stack.
type recurSignal struct {
	args []value.Value
}

func (recurSignal) Error() string { return "recur used outside loop/fn tail position" }

// Eval evaluates e in frame.
func (e *Evaluator) Eval(expr ast.Expr, frame *value.Frame) (value.Value, error) {
	switch n := expr.(type) {
	case ast.Nil:
		return value.Nil{}, nil
	case ast.Bool:
		return value.Bool(n.Value), nil
	case ast.Int:
		return value.Int(n.Value), nil
	case ast.Float:
		return value.Float(n.Value), nil
	case ast.Str:
		return value.Str(n.Value), nil
	case ast.InterpStr:
		return e.evalInterpStr(n, frame)
	case ast.Keyword:
		return value.Keyword(n.Name), nil
	case ast.Symbol:
		return e.evalSymbol(n, frame)
	case ast.List:
		return e.evalSeqLiteral(n.Elems, frame, func(vs []value.Value) value.Value { return value.NewList(vs...) })
	case ast.Vector:
		return e.evalSeqLiteral(n.Elems, frame, func(vs []value.Value) value.Value { return value.NewVector(vs...) })
	case ast.Map:
		return e.evalMapLiteral(n, frame)
	case ast.Set:
		return e.evalSetLiteral(n, frame)
	case ast.Def:
		return e.evalDef(n, frame)
	case ast.Fn:
		return &value.Function{Name: n.Name, Params: paramNames(n.Params), Rest: n.Rest, IsVariadic: n.IsVariadic, Body: n.Body, Env: frame}, nil
	case ast.Let:
		return e.evalLet(n, frame)
	case ast.If:
		return e.evalIf(n, frame)
	case ast.Do:
		return e.evalBody(n.Exprs, frame)
	case ast.Match:
		return e.evalMatch(n, frame)
	case ast.Loop:
		return e.evalLoop(n, frame)
	case ast.Recur:
		return e.evalRecur(n, frame)
	case ast.Try:
		return e.evalTry(n, frame)
	case ast.Defer:
		return nil, qerrors.New(qerrors.Syntax, n.Pos(), "defer is only meaningful inside a body, not as a standalone expression")
	case ast.Spawn:
		return e.evalSpawn(n, frame)
	case ast.Quote:
		return exprToValue(n.Body), nil
	case ast.Quasiquote:
		return e.evalQuasiquote(n.Body, frame)
	case ast.Unquote:
		return e.Eval(n.Body, frame)
	case ast.UnquoteSplice:
		return e.Eval(n.Body, frame)
	case ast.Call:
		return e.evalCall(n, frame)
	case ast.MacroDef:
		frame.Define(n.Name, &value.Macro{Name: n.Name, Params: paramNames(n.Params), Rest: n.Rest, IsVariadic: n.IsVariadic, Body: n.Body, Env: frame})
		return value.Nil{}, nil
	case ast.ModuleDecl, ast.Export, ast.Use:
		return nil, fmt.Errorf("eval: %T must be handled by the module loader, not Eval directly", expr)
	}
	return nil, qerrors.New(qerrors.Syntax, expr.Pos(), "unhandled expression type %T", expr)
}

func paramNames(params []ast.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

func (e *Evaluator) evalSymbol(n ast.Symbol, frame *value.Frame) (value.Value, error) {
	v, ok := frame.Get(n.Name)
	if !ok {
		return nil, qerrors.New(qerrors.NameUnbound, n.Pos(), "unbound name %q", n.Name)
	}
	return v, nil
}

func (e *Evaluator) evalInterpStr(n ast.InterpStr, frame *value.Frame) (value.Value, error) {
	out := ""
	for _, c := range n.Chunks {
		if c.Literal {
			out += c.Text
			continue
		}
		v, err := e.Eval(c.Expr, frame)
		if err != nil {
			return nil, err
		}
		out += v.String()
	}
	return value.Str(out), nil
}

func (e *Evaluator) evalSeqLiteral(elems []ast.Expr, frame *value.Frame, build func([]value.Value) value.Value) (value.Value, error) {
	vs := make([]value.Value, len(elems))
	for i, el := range elems {
		v, err := e.Eval(el, frame)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return build(vs), nil
}

func (e *Evaluator) evalMapLiteral(n ast.Map, frame *value.Frame) (value.Value, error) {
	m := value.NewMap()
	for _, entry := range n.Entries {
		k, err := e.Eval(entry.Key, frame)
		if err != nil {
			return nil, err
		}
		v, err := e.Eval(entry.Value, frame)
		if err != nil {
			return nil, err
		}
		m = m.Set(k, v)
	}
	return m, nil
}

func (e *Evaluator) evalSetLiteral(n ast.Set, frame *value.Frame) (value.Value, error) {
	s := value.NewSet()
	for _, el := range n.Elems {
		v, err := e.Eval(el, frame)
		if err != nil {
			return nil, err
		}
		s = s.Add(v)
	}
	return s, nil
}

func (e *Evaluator) evalDef(n ast.Def, frame *value.Frame) (value.Value, error) {
	v, err := e.Eval(n.Value, frame)
	if err != nil {
		return nil, err
	}
	if redefined := frame.Define(n.Name, v); redefined {
		fmt.Fprintf(e.Warn, "warning: redefining %q (at %s)\n", n.Name, n.Pos())
	}
	return v, nil
}

func (e *Evaluator) evalLet(n ast.Let, frame *value.Frame) (value.Value, error) {
	child := frame.Child()
	for _, b := range n.Bindings {
		v, err := e.Eval(b.Value, child)
		if err != nil {
			return nil, err
		}
		child.Define(b.Name, v)
	}
	return e.evalBody(n.Body, child)
}

func (e *Evaluator) evalIf(n ast.If, frame *value.Frame) (value.Value, error) {
	test, err := e.Eval(n.Test, frame)
	if err != nil {
		return nil, err
	}
	if value.Truthy(test) {
		return e.Eval(n.Then, frame)
	}
	if n.Else == nil {
		return value.Nil{}, nil
	}
	return e.Eval(n.Else, frame)
}

// evalBody evaluates a sequence of body expressions in frame, running
// any ast.Defer expressions encountered innermost-first once the body
// finishes or errors (§4.6): deferred expressions are collected in
// source order as they're reached and run in reverse once the body's
// real result (or error) is known, so the last-registered defer runs
// first.
func (e *Evaluator) evalBody(body []ast.Expr, frame *value.Frame) (value.Value, error) {
	var deferred []ast.Expr
	var result value.Value = value.Nil{}
	var bodyErr error

	for _, stmt := range body {
		if d, ok := stmt.(ast.Defer); ok {
			deferred = append(deferred, d.Body)
			continue
		}
		result, bodyErr = e.Eval(stmt, frame)
		if bodyErr != nil {
			break
		}
	}

	for i := len(deferred) - 1; i >= 0; i-- {
		_, deferErr := e.Eval(deferred[i], frame)
		if deferErr != nil {
			fmt.Fprintf(e.Warn, "warning: deferred expression failed during unwind: %v\n", deferErr)
			bodyErr = qerrors.CombineUnwind(bodyErr, deferErr)
		}
	}
	if bodyErr != nil {
		return nil, bodyErr
	}
	return result, nil
}

func (e *Evaluator) evalLoop(n ast.Loop, frame *value.Frame) (value.Value, error) {
	child := frame.Child()
	names := make([]string, len(n.Bindings))
	for i, b := range n.Bindings {
		v, err := e.Eval(b.Value, child)
		if err != nil {
			return nil, err
		}
		names[i] = b.Name
		child.Define(b.Name, v)
	}
	for {
		result, err := e.evalBody(n.Body, child)
		if rs, ok := err.(recurSignal); ok {
			if len(rs.args) != len(names) {
				return nil, qerrors.New(qerrors.Arity, n.Pos(), "recur expects %d argument(s), got %d", len(names), len(rs.args))
			}
			for i, name := range names {
				child.Define(name, rs.args[i])
			}
			continue
		}
		return result, err
	}
}

func (e *Evaluator) evalRecur(n ast.Recur, frame *value.Frame) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.Eval(a, frame)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return nil, recurSignal{args: args}
}

// evalTry evaluates Body, turning any runtime error into a {:error
// message} map rather than propagating it. On success it returns the
// body's value directly, unwrapped — (try (+ 1 2)) is 3, not {:ok 3} —
// since |>? only ever needs to recognize the failure shape (§4.6 "try").
func (e *Evaluator) evalTry(n ast.Try, frame *value.Frame) (value.Value, error) {
	v, err := e.Eval(n.Body, frame)
	if err != nil {
		return value.NewMap().Set(value.Keyword("error"), value.Str(err.Error())), nil
	}
	return v, nil
}

func (e *Evaluator) evalCall(n ast.Call, frame *value.Frame) (value.Value, error) {
	if sym, ok := n.Func.(ast.Symbol); ok {
		if macroVal, found := frame.Get(sym.Name); found {
			if mac, ok := macroVal.(*value.Macro); ok {
				return e.expandAndEvalMacro(mac, n, frame)
			}
		}
	}
	fn, err := e.Eval(n.Func, frame)
	if err != nil {
		return nil, err
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.Eval(a, frame)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	result, err := e.Apply(fn, args)
	if err != nil {
		if qe, ok := err.(*qerrors.Error); ok {
			return nil, qe.WithFrame(callName(n.Func), n.Pos())
		}
		return nil, err
	}
	return result, nil
}

func callName(fn ast.Expr) string {
	if sym, ok := fn.(ast.Symbol); ok {
		return sym.Name
	}
	return "<anonymous>"
}

// Apply invokes fn with args, regardless of whether fn is a
// user-defined closure or a native function (§4.5, §4.10). It is
// exported so internal/builtin can pass it to internal/concurrency as
// the Applier callback concurrency operations need to call back into
// evaluated code without an import cycle.
func (e *Evaluator) Apply(fn value.Value, args []value.Value) (value.Value, error) {
	switch f := fn.(type) {
	case *value.Function:
		return e.applyFunction(f, args)
	case *value.NativeFunction:
		return f.Fn(args)
	case value.Keyword:
		// A keyword in function position looks itself up in its first
		// argument, so long as that argument is a map: (:k m) is m's
		// value at :k, or nil (§4.2, §4.5).
		if len(args) == 0 {
			return nil, fmt.Errorf("arity error: keyword lookup expects at least 1 argument, got 0")
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, fmt.Errorf("type error: keyword lookup expects a map, got %s", args[0].Type())
		}
		v, _ := m.Get(f)
		return v, nil
	default:
		return nil, fmt.Errorf("type error: %s is not callable", fn.Type())
	}
}

func (e *Evaluator) applyFunction(f *value.Function, args []value.Value) (value.Value, error) {
	min, variadic := f.Arity()
	if variadic {
		if len(args) < min {
			return nil, fmt.Errorf("arity error: %s expects at least %d argument(s), got %d", f.String(), min, len(args))
		}
	} else if len(args) != min {
		return nil, fmt.Errorf("arity error: %s expects %d argument(s), got %d", f.String(), min, len(args))
	}
	child := f.Env.Child()
	for i, name := range f.Params {
		child.Define(name, args[i])
	}
	if variadic {
		child.Define(f.Rest, value.NewVector(args[len(f.Params):]...))
	}
	for {
		result, err := e.evalBody(f.Body, child)
		rs, ok := err.(recurSignal)
		if !ok {
			return result, err
		}
		if variadic {
			if len(rs.args) < len(f.Params) {
				return nil, fmt.Errorf("arity error: recur expects at least %d argument(s), got %d", len(f.Params), len(rs.args))
			}
		} else if len(rs.args) != len(f.Params) {
			return nil, fmt.Errorf("arity error: recur expects %d argument(s), got %d", len(f.Params), len(rs.args))
		}
		for i, name := range f.Params {
			child.Define(name, rs.args[i])
		}
		if variadic {
			child.Define(f.Rest, value.NewVector(rs.args[len(f.Params):]...))
		}
	}
}

func (e *Evaluator) evalSpawn(n ast.Spawn, frame *value.Frame) (value.Value, error) {
	thunk := &value.NativeFunction{Name: "<spawned>", Fn: func(args []value.Value) (value.Value, error) {
		return e.Eval(n.Body, frame)
	}}
	h := e.Concurrency.Spawn(e.Apply, thunk, nil)
	return h, nil
}
