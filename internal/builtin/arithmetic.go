package builtin

import (
	"fmt"

	"github.com/spf13/cast"

	"qilang.dev/qi/internal/value"
)

// numeric coerces v to a float64: Int and Float convert directly, and
// any other value's printed form is parsed with spf13/cast's
// ToFloat64E, a type error if that does not yield a number.
func numeric(name string, v value.Value) (float64, error) {
	switch t := v.(type) {
	case value.Int:
		return float64(t), nil
	case value.Float:
		return float64(t), nil
	default:
		f, err := cast.ToFloat64E(t.String())
		if err != nil {
			return 0, typeErr(name, "a number", v)
		}
		return f, nil
	}
}

func registerArithmetic(frame *value.Frame) {
	def(frame, "+", reduceNumeric("+", 0, func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b }))
	def(frame, "*", reduceNumeric("*", 1, func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b }))
	def(frame, "-", subtractLike)
	def(frame, "/", divideLike)
	def(frame, "mod", modLike)

	def(frame, "=", compareChain("=", func(a, b value.Value) bool { return value.Equal(a, b) }))
	def(frame, "<", numericCompareChain("<", func(a, b float64) bool { return a < b }))
	def(frame, "<=", numericCompareChain("<=", func(a, b float64) bool { return a <= b }))
	def(frame, ">", numericCompareChain(">", func(a, b float64) bool { return a > b }))
	def(frame, ">=", numericCompareChain(">=", func(a, b float64) bool { return a >= b }))
}

// reduceNumeric builds a variadic native that left-folds args with
// intFn when every argument is an Int (keeping arithmetic exact), and
// floatFn otherwise (§4.3 "integers widen to float on mixing").
func reduceNumeric(name string, identity int64, floatFn func(a, b float64) float64, intFn func(a, b int64) int64) value.NativeFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Int(identity), nil
		}
		allInt := true
		for _, a := range args {
			if _, ok := a.(value.Int); !ok {
				allInt = false
				break
			}
		}
		if allInt {
			acc := int64(args[0].(value.Int))
			for _, a := range args[1:] {
				acc = intFn(acc, int64(a.(value.Int)))
			}
			return value.Int(acc), nil
		}
		acc, err := numeric(name, args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			f, err := numeric(name, a)
			if err != nil {
				return nil, err
			}
			acc = floatFn(acc, f)
		}
		return value.Float(acc), nil
	}
}

func subtractLike(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return nil, arityAtLeastErr("-", 1, 0)
	}
	if len(args) == 1 {
		if i, ok := args[0].(value.Int); ok {
			return value.Int(-i), nil
		}
		f, err := numeric("-", args[0])
		if err != nil {
			return nil, err
		}
		return value.Float(-f), nil
	}
	if ai, ok := allInts(args); ok {
		acc := ai[0]
		for _, v := range ai[1:] {
			acc -= v
		}
		return value.Int(acc), nil
	}
	acc, err := numeric("-", args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		f, err := numeric("-", a)
		if err != nil {
			return nil, err
		}
		acc -= f
	}
	return value.Float(acc), nil
}

func allInts(args []value.Value) ([]int64, bool) {
	out := make([]int64, len(args))
	for i, a := range args {
		ival, ok := a.(value.Int)
		if !ok {
			return nil, false
		}
		out[i] = int64(ival)
	}
	return out, true
}

func divideLike(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return nil, arityAtLeastErr("/", 2, len(args))
	}
	acc, err := numeric("/", args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		f, err := numeric("/", a)
		if err != nil {
			return nil, err
		}
		if f == 0 {
			return nil, fmt.Errorf("arithmetic error: division by zero")
		}
		acc /= f
	}
	return value.Float(acc), nil
}

func modLike(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, arityErr("mod", 2, len(args))
	}
	a, aok := args[0].(value.Int)
	b, bok := args[1].(value.Int)
	if !aok || !bok {
		return nil, typeErr("mod", "two integers", args[0])
	}
	if b == 0 {
		return nil, fmt.Errorf("arithmetic error: modulo by zero")
	}
	return value.Int(int64(a) % int64(b)), nil
}

func compareChain(name string, eq func(a, b value.Value) bool) value.NativeFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return nil, arityAtLeastErr(name, 2, len(args))
		}
		for i := 1; i < len(args); i++ {
			if !eq(args[i-1], args[i]) {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}
}

func numericCompareChain(name string, cmp func(a, b float64) bool) value.NativeFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return nil, arityAtLeastErr(name, 2, len(args))
		}
		for i := 1; i < len(args); i++ {
			a, err := numeric(name, args[i-1])
			if err != nil {
				return nil, err
			}
			b, err := numeric(name, args[i])
			if err != nil {
				return nil, err
			}
			if !cmp(a, b) {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}
}
