package value

import (
	"fmt"

	"qilang.dev/qi/internal/ast"
)

// Function is a user-defined closure: it carries its parameter list, the
// body it evaluates, and a reference (not a copy) to the Frame active at
// its definition site — §4.5 "fn snapshots the current environment
// reference ... and produces a function value."
type Function struct {
	Name       string
	Params     []string
	Rest       string
	IsVariadic bool
	Body       []ast.Expr
	Env        *Frame
}

func (*Function) Type() string { return "function" }
func (f *Function) String() string {
	name := f.Name
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("#<function:%s>", name)
}
func (*Function) valueNode() {}

// Arity reports the minimum argument count and whether more are allowed.
func (f *Function) Arity() (min int, variadic bool) {
	return len(f.Params), f.IsVariadic
}

// NativeFunc is the signature every native (host-implemented) function
// must satisfy (§4.10).
type NativeFunc func(args []Value) (Value, error)

// NativeFunction is a handle to a host callable, uniformly callable like
// any other function value.
type NativeFunction struct {
	Name string
	Fn   NativeFunc
}

func (*NativeFunction) Type() string     { return "native-function" }
func (n *NativeFunction) String() string { return fmt.Sprintf("#<native:%s>", n.Name) }
func (*NativeFunction) valueNode()       {}

// Macro is structurally identical to Function but is consumed by the
// expander, not applied like a normal function (§4.7).
type Macro struct {
	Name       string
	Params     []string
	Rest       string
	IsVariadic bool
	Body       []ast.Expr
	Env        *Frame
}

func (*Macro) Type() string     { return "macro" }
func (m *Macro) String() string { return fmt.Sprintf("#<macro:%s>", m.Name) }
func (*Macro) valueNode()       {}
