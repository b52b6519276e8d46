package builtin

import (
	"strings"

	"github.com/spf13/cast"

	"qilang.dev/qi/internal/value"
)

func registerStrings(frame *value.Frame) {
	def(frame, "str", func(args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.String())
		}
		return value.Str(sb.String()), nil
	})

	def(frame, "upper", stringUnary("upper", strings.ToUpper))
	def(frame, "lower", stringUnary("lower", strings.ToLower))
	def(frame, "trim", stringUnary("trim", strings.TrimSpace))

	def(frame, "split", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("split", 2, len(args))
		}
		s, ok1 := args[0].(value.Str)
		sep, ok2 := args[1].(value.Str)
		if !ok1 || !ok2 {
			return nil, typeErr("split", "two strings", args[0])
		}
		parts := strings.Split(string(s), string(sep))
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.Str(p)
		}
		return value.NewVector(out...), nil
	})

	def(frame, "join", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("join", 2, len(args))
		}
		sep, ok := args[0].(value.Str)
		if !ok {
			return nil, typeErr("join", "a string separator", args[0])
		}
		elems, ok := value.Seq(args[1])
		if !ok {
			return nil, typeErr("join", "a list or vector", args[1])
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return value.Str(strings.Join(parts, string(sep))), nil
	})

	def(frame, "contains?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("contains?", 2, len(args))
		}
		switch t := args[0].(type) {
		case value.Str:
			needle, ok := args[1].(value.Str)
			if !ok {
				return nil, typeErr("contains?", "a string needle", args[1])
			}
			return value.Bool(strings.Contains(string(t), string(needle))), nil
		case *value.Set:
			return value.Bool(t.Has(args[1])), nil
		case *value.Map:
			_, found := t.Get(args[1])
			return value.Bool(found), nil
		}
		return nil, typeErr("contains?", "a string, set, or map", args[0])
	})

	def(frame, "str->num", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("str->num", 1, len(args))
		}
		s, ok := args[0].(value.Str)
		if !ok {
			return nil, typeErr("str->num", "a string", args[0])
		}
		if i, err := cast.ToInt64E(string(s)); err == nil {
			return value.Int(i), nil
		}
		f, err := cast.ToFloat64E(string(s))
		if err != nil {
			return nil, err
		}
		return value.Float(f), nil
	})

	def(frame, "num->str", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("num->str", 1, len(args))
		}
		return value.Str(args[0].String()), nil
	})
}

func stringUnary(name string, fn func(string) string) value.NativeFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr(name, 1, len(args))
		}
		s, ok := args[0].(value.Str)
		if !ok {
			return nil, typeErr(name, "a string", args[0])
		}
		return value.Str(fn(string(s))), nil
	}
}
