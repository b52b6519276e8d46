// Package builtin wires Qi's native-function bridge (§4.10 "Native
// function registration"): it populates an Evaluator's global frame with
// every function the language itself cannot express, grounded directly
// on nperez-losp's internal/eval/builtin.go getBuiltin switch, which
// dispatched a fixed catalog of name-to-implementation pairs the same
// way.
//
// Where nperez-losp's builtins operated on its own expr.Expr values
// hand-rolled with strconv/strings, Qi's native functions use
// github.com/samber/lo's Reverse for reverse and github.com/spf13/cast
// for permissive numeric coercion, because both appear across the
// example pack as the idiomatic way to avoid reimplementing that
// plumbing by hand; map/filter/reduce are plain loops that apply the
// Qi function through the evaluator.
package builtin

import (
	"fmt"

	"qilang.dev/qi/internal/eval"
	"qilang.dev/qi/internal/value"
)

// Register installs every native function into ev.Global. pkg/qi.New
// calls this once right after eval.New, before running any user code
// (cmd/qi gets its runtime through pkg/qi).
func Register(ev *eval.Evaluator) {
	registerArithmetic(ev.Global)
	registerPredicates(ev.Global)
	registerCollections(ev)
	registerStrings(ev.Global)
	registerIO(ev.Global, ev.Out)
	registerConcurrency(ev)
	registerErrors(ev.Global)
}

// def is a small helper so every registration file reads as a flat list
// of name/native pairs, matching nperez-losp's flat getBuiltin switch.
func def(frame *value.Frame, name string, fn value.NativeFunc) {
	frame.Define(name, &value.NativeFunction{Name: name, Fn: fn})
}

func arityErr(name string, want int, got int) error {
	return fmt.Errorf("arity error: %s expects %d argument(s), got %d", name, want, got)
}

func arityAtLeastErr(name string, want int, got int) error {
	return fmt.Errorf("arity error: %s expects at least %d argument(s), got %d", name, want, got)
}

func typeErr(name string, want string, got value.Value) error {
	return fmt.Errorf("type error: %s expects %s, got %s", name, want, got.Type())
}

func indexOutOfRange(name string, idx int64, length int) error {
	return fmt.Errorf("index error: %s index %d out of range for a collection of length %d", name, idx, length)
}
