package eval

import (
	"fmt"

	"qilang.dev/qi/internal/ast"
	"qilang.dev/qi/internal/value"
)

// exprToValue converts a parsed expression tree into Qi data (§4.7
// "code as data"): the representation quote produces and the macro
// expander consumes. Scalars become scalar values, vector/map/set
// literals become the matching collection values, and every other node
// becomes a List (a call as its function followed by its arguments, a
// special form headed by a Sym naming the form) that valueToExpr turns
// back into code.
func exprToValue(e ast.Expr) value.Value {
	switch n := e.(type) {
	case ast.Nil:
		return value.Nil{}
	case ast.Bool:
		return value.Bool(n.Value)
	case ast.Int:
		return value.Int(n.Value)
	case ast.Float:
		return value.Float(n.Value)
	case ast.Str:
		return value.Str(n.Value)
	case ast.InterpStr:
		return value.Str(renderInterpLiteral(n))
	case ast.Keyword:
		return value.Keyword(n.Name)
	case ast.Symbol:
		return value.Sym(n.Name)
	case ast.List:
		return value.NewList(exprsToValues(n.Elems)...)
	case ast.Vector:
		return value.NewVector(exprsToValues(n.Elems)...)
	case ast.Map:
		m := value.NewMap()
		for _, entry := range n.Entries {
			m = m.Set(exprToValue(entry.Key), exprToValue(entry.Value))
		}
		return m
	case ast.Set:
		return value.NewSet(exprsToValues(n.Elems)...)
	case ast.Call:
		return value.NewList(append([]value.Value{exprToValue(n.Func)}, exprsToValues(n.Args)...)...)
	case ast.Def:
		return tagged("def", value.Sym(n.Name), exprToValue(n.Value))
	case ast.Fn:
		return tagged("fn", value.Sym(n.Name), paramsToValue(n.Params, n.Rest, n.IsVariadic), bodyToValue(n.Body))
	case ast.Let:
		return tagged("let", bindingsToValue(n.Bindings), bodyToValue(n.Body))
	case ast.If:
		elseV := value.Value(value.Nil{})
		if n.Else != nil {
			elseV = exprToValue(n.Else)
		}
		return tagged("if", exprToValue(n.Test), exprToValue(n.Then), elseV)
	case ast.Do:
		return tagged("do", bodyToValue(n.Exprs))
	case ast.Loop:
		return tagged("loop", bindingsToValue(n.Bindings), bodyToValue(n.Body))
	case ast.Recur:
		return tagged("recur", bodyToValue(n.Args))
	case ast.Try:
		return tagged("try", exprToValue(n.Body))
	case ast.Defer:
		return tagged("defer", exprToValue(n.Body))
	case ast.Spawn:
		return tagged("go", exprToValue(n.Body))
	case ast.Quote:
		return tagged("quote", exprToValue(n.Body))
	case ast.Quasiquote:
		return tagged("quasiquote", exprToValue(n.Body))
	case ast.Unquote:
		return tagged("unquote", exprToValue(n.Body))
	case ast.UnquoteSplice:
		return tagged("unquote-splice", exprToValue(n.Body))
	case ast.MacroDef:
		return tagged("macro", value.Sym(n.Name), paramsToValue(n.Params, n.Rest, n.IsVariadic), bodyToValue(n.Body))
	case ast.ModuleDecl:
		return tagged("module", value.Sym(n.Name))
	case ast.Export:
		return tagged("export", bodyToValue(namesToSymExprs(n.Names)))
	case ast.Use:
		return tagged("use", value.Sym(n.Module))
	}
	return value.Nil{}
}

func namesToSymExprs(names []string) []ast.Expr {
	out := make([]ast.Expr, len(names))
	for i, n := range names {
		out[i] = ast.Symbol{Name: n}
	}
	return out
}

func tagged(tag string, rest ...value.Value) value.Value {
	return value.NewList(append([]value.Value{value.Sym(tag)}, rest...)...)
}

func exprsToValues(elems []ast.Expr) []value.Value {
	out := make([]value.Value, len(elems))
	for i, e := range elems {
		out[i] = exprToValue(e)
	}
	return out
}

func bodyToValue(body []ast.Expr) value.Value {
	return value.NewList(exprsToValues(body)...)
}

func paramsToValue(params []ast.Param, rest string, variadic bool) value.Value {
	elems := make([]value.Value, 0, len(params)+1)
	for _, p := range params {
		elems = append(elems, value.Sym(p.Name))
	}
	if variadic {
		elems = append(elems, value.Sym("..."), value.Sym(rest))
	}
	return value.NewVector(elems...)
}

func bindingsToValue(bindings []ast.Binding) value.Value {
	elems := make([]value.Value, 0, len(bindings)*2)
	for _, b := range bindings {
		elems = append(elems, value.Sym(b.Name), exprToValue(b.Value))
	}
	return value.NewVector(elems...)
}

// renderInterpLiteral renders an interpolated string's literal-source
// shape when quoted (rather than evaluated): embedded expressions are
// re-rendered as "{<source is not retained>}" placeholders is avoided by
// simply concatenating literal chunks, since quoting doesn't evaluate
// the holes and Qi keeps no separate unparser.
func renderInterpLiteral(n ast.InterpStr) string {
	out := ""
	for _, c := range n.Chunks {
		if c.Literal {
			out += c.Text
		}
	}
	return out
}

// valueToExpr converts macro-expansion output (or quasiquote-substituted
// data) back into an executable tree, inverting exprToValue's encoding.
func valueToExpr(v value.Value) (ast.Expr, error) {
	switch t := v.(type) {
	case value.Nil:
		return ast.Nil{}, nil
	case value.Bool:
		return ast.Bool{Value: bool(t)}, nil
	case value.Int:
		return ast.Int{Value: int64(t)}, nil
	case value.Float:
		return ast.Float{Value: float64(t)}, nil
	case value.Str:
		return ast.Str{Value: string(t)}, nil
	case value.Keyword:
		return ast.Keyword{Name: string(t)}, nil
	case value.Sym:
		return ast.Symbol{Name: string(t)}, nil
	case *value.Vector:
		elems, err := valuesToExprs(t.Elems)
		if err != nil {
			return nil, err
		}
		return ast.Vector{Elems: elems}, nil
	case *value.Map:
		var entries []ast.MapEntry
		keys, vals := t.Entries()
		for i, k := range keys {
			ke, err := valueToExpr(k)
			if err != nil {
				return nil, err
			}
			ve, err := valueToExpr(vals[i])
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.MapEntry{Key: ke, Value: ve})
		}
		return ast.Map{Entries: entries}, nil
	case *value.Set:
		elems, err := valuesToExprs(t.Elems())
		if err != nil {
			return nil, err
		}
		return ast.Set{Elems: elems}, nil
	case *value.List:
		return listValueToExpr(t)
	}
	return nil, fmt.Errorf("macro expansion produced a non-code value of type %s", v.Type())
}

func valuesToExprs(vs []value.Value) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(vs))
	for i, v := range vs {
		e, err := valueToExpr(v)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// listValueToExpr reconstructs special forms tagged by exprToValue, and
// falls back to a plain call for any other list shape (e.g. one built by
// a macro with (list 'f a b) rather than through these tags).
func listValueToExpr(l *value.List) (ast.Expr, error) {
	if len(l.Elems) == 0 {
		return ast.List{}, nil
	}
	tag, isTag := l.Elems[0].(value.Sym)
	rest := l.Elems[1:]
	if isTag {
		switch string(tag) {
		case "def":
			v, err := valueToExpr(rest[1])
			if err != nil {
				return nil, err
			}
			return ast.Def{Name: string(rest[0].(value.Sym)), Value: v}, nil
		case "fn":
			return fnFromValues(rest)
		case "macro":
			fn, err := fnFromValues(rest)
			if err != nil {
				return nil, err
			}
			f := fn.(ast.Fn)
			return ast.MacroDef{Name: f.Name, Params: f.Params, Rest: f.Rest, IsVariadic: f.IsVariadic, Body: f.Body}, nil
		case "let":
			bindings, err := valuesToBindings(rest[0])
			if err != nil {
				return nil, err
			}
			body, err := valueSeqToExprs(rest[1])
			if err != nil {
				return nil, err
			}
			return ast.Let{Bindings: bindings, Body: body}, nil
		case "loop":
			bindings, err := valuesToBindings(rest[0])
			if err != nil {
				return nil, err
			}
			body, err := valueSeqToExprs(rest[1])
			if err != nil {
				return nil, err
			}
			return ast.Loop{Bindings: bindings, Body: body}, nil
		case "if":
			test, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			then, err := valueToExpr(rest[1])
			if err != nil {
				return nil, err
			}
			var elseExpr ast.Expr
			if len(rest) > 2 {
				if _, isNil := rest[2].(value.Nil); !isNil {
					elseExpr, err = valueToExpr(rest[2])
					if err != nil {
						return nil, err
					}
				}
			}
			return ast.If{Test: test, Then: then, Else: elseExpr}, nil
		case "do":
			body, err := valueSeqToExprs(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Do{Exprs: body}, nil
		case "recur":
			args, err := valueSeqToExprs(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Recur{Args: args}, nil
		case "try":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Try{Body: body}, nil
		case "defer":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Defer{Body: body}, nil
		case "go":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Spawn{Body: body}, nil
		case "quote":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Quote{Body: body}, nil
		case "quasiquote":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Quasiquote{Body: body}, nil
		case "unquote":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.Unquote{Body: body}, nil
		case "unquote-splice":
			body, err := valueToExpr(rest[0])
			if err != nil {
				return nil, err
			}
			return ast.UnquoteSplice{Body: body}, nil
		case "module":
			return ast.ModuleDecl{Name: string(rest[0].(value.Sym))}, nil
		case "use":
			return ast.Use{Module: string(rest[0].(value.Sym)), Mode: ast.UseAll}, nil
		case "export":
			names, err := valueSeqToExprs(rest[0])
			if err != nil {
				return nil, err
			}
			var out []string
			for _, n := range names {
				out = append(out, n.(ast.Symbol).Name)
			}
			return ast.Export{Names: out}, nil
		}
	}
	// Not a recognized tag: treat as an ordinary call, head included.
	fn, err := valueToExpr(l.Elems[0])
	if err != nil {
		return nil, err
	}
	args, err := valuesToExprs(rest)
	if err != nil {
		return nil, err
	}
	return ast.NewCall(fn.Pos(), fn, args), nil
}

func fnFromValues(rest []value.Value) (ast.Expr, error) {
	name := string(rest[0].(value.Sym))
	params, restName, variadic, err := valuesToParams(rest[1])
	if err != nil {
		return nil, err
	}
	body, err := valueSeqToExprs(rest[2])
	if err != nil {
		return nil, err
	}
	return ast.Fn{Name: name, Params: params, Rest: restName, IsVariadic: variadic, Body: body}, nil
}

func valuesToParams(v value.Value) ([]ast.Param, string, bool, error) {
	vec, ok := v.(*value.Vector)
	if !ok {
		return nil, "", false, fmt.Errorf("macro expansion: malformed parameter list")
	}
	var params []ast.Param
	rest := ""
	variadic := false
	for i := 0; i < len(vec.Elems); i++ {
		sym, ok := vec.Elems[i].(value.Sym)
		if !ok {
			return nil, "", false, fmt.Errorf("macro expansion: malformed parameter list")
		}
		if string(sym) == "..." {
			i++
			rest = string(vec.Elems[i].(value.Sym))
			variadic = true
			continue
		}
		params = append(params, ast.Param{Name: string(sym)})
	}
	return params, rest, variadic, nil
}

func valuesToBindings(v value.Value) ([]ast.Binding, error) {
	vec, ok := v.(*value.Vector)
	if !ok {
		return nil, fmt.Errorf("macro expansion: malformed binding vector")
	}
	var bindings []ast.Binding
	for i := 0; i+1 < len(vec.Elems); i += 2 {
		name := string(vec.Elems[i].(value.Sym))
		val, err := valueToExpr(vec.Elems[i+1])
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.Binding{Name: name, Value: val})
	}
	return bindings, nil
}

func valueSeqToExprs(v value.Value) ([]ast.Expr, error) {
	elems, ok := value.Seq(v)
	if !ok {
		return nil, fmt.Errorf("macro expansion: expected a sequence, got %s", v.Type())
	}
	return valuesToExprs(elems)
}

// evalQuasiquote evaluates a quasiquoted form: most of the tree is
// treated as literal data like quote, except unquote holes (evaluated
// against frame) and unquote-splice holes (evaluated and spliced inline
// into the enclosing list/vector) (§4.7). Nesting quasiquote inside
// quasiquote is not tracked by depth here; an inner quasiquote's own
// unquotes resolve against the same frame as the outer one.
func (e *Evaluator) evalQuasiquote(body ast.Expr, frame *value.Frame) (value.Value, error) {
	switch n := body.(type) {
	case ast.Unquote:
		return e.Eval(n.Body, frame)
	case ast.List:
		elems, err := e.quasiSeq(n.Elems, frame)
		if err != nil {
			return nil, err
		}
		return value.NewList(elems...), nil
	case ast.Vector:
		elems, err := e.quasiSeq(n.Elems, frame)
		if err != nil {
			return nil, err
		}
		return value.NewVector(elems...), nil
	case ast.Call:
		elems, err := e.quasiSeq(append([]ast.Expr{n.Func}, n.Args...), frame)
		if err != nil {
			return nil, err
		}
		return value.NewList(elems...), nil
	}
	return exprToValue(body), nil
}

func (e *Evaluator) quasiSeq(elems []ast.Expr, frame *value.Frame) ([]value.Value, error) {
	var out []value.Value
	for _, el := range elems {
		if splice, ok := el.(ast.UnquoteSplice); ok {
			v, err := e.Eval(splice.Body, frame)
			if err != nil {
				return nil, err
			}
			spliced, ok := value.Seq(v)
			if !ok {
				return nil, fmt.Errorf("type error: unquote-splice expects a list or vector, got %s", v.Type())
			}
			out = append(out, spliced...)
			continue
		}
		v, err := e.evalQuasiquote(el, frame)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// expandAndEvalMacro substitutes call.Args (as unevaluated code data)
// for mac's parameters, evaluates mac's body to produce new code, then
// evaluates that code in frame (§4.7: "macro parameters bind to
// the caller's unevaluated argument forms").
func (e *Evaluator) expandAndEvalMacro(mac *value.Macro, call ast.Call, frame *value.Frame) (value.Value, error) {
	min := len(mac.Params)
	if mac.IsVariadic {
		if len(call.Args) < min {
			return nil, fmt.Errorf("arity error: macro %s expects at least %d argument(s), got %d", mac.Name, min, len(call.Args))
		}
	} else if len(call.Args) != min {
		return nil, fmt.Errorf("arity error: macro %s expects %d argument(s), got %d", mac.Name, min, len(call.Args))
	}
	child := mac.Env.Child()
	for i, name := range mac.Params {
		child.Define(name, exprToValue(call.Args[i]))
	}
	if mac.IsVariadic {
		child.Define(mac.Rest, value.NewList(exprsToValues(call.Args[len(mac.Params):])...))
	}
	expansion, err := e.evalBody(mac.Body, child)
	if err != nil {
		return nil, err
	}
	generated, err := valueToExpr(expansion)
	if err != nil {
		return nil, err
	}
	return e.Eval(generated, frame)
}
