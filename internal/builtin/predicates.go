package builtin

import "qilang.dev/qi/internal/value"

func registerPredicates(frame *value.Frame) {
	def(frame, "nil?", typePredicate("nil?", func(v value.Value) bool { _, ok := v.(value.Nil); return ok }))
	def(frame, "bool?", typePredicate("bool?", func(v value.Value) bool { _, ok := v.(value.Bool); return ok }))
	def(frame, "int?", typePredicate("int?", func(v value.Value) bool { _, ok := v.(value.Int); return ok }))
	def(frame, "float?", typePredicate("float?", func(v value.Value) bool { _, ok := v.(value.Float); return ok }))
	def(frame, "number?", typePredicate("number?", func(v value.Value) bool {
		switch v.(type) {
		case value.Int, value.Float:
			return true
		}
		return false
	}))
	def(frame, "string?", typePredicate("string?", func(v value.Value) bool { _, ok := v.(value.Str); return ok }))
	def(frame, "keyword?", typePredicate("keyword?", func(v value.Value) bool { _, ok := v.(value.Keyword); return ok }))
	def(frame, "symbol?", typePredicate("symbol?", func(v value.Value) bool { _, ok := v.(value.Sym); return ok }))
	def(frame, "list?", typePredicate("list?", func(v value.Value) bool { _, ok := v.(*value.List); return ok }))
	def(frame, "vector?", typePredicate("vector?", func(v value.Value) bool { _, ok := v.(*value.Vector); return ok }))
	def(frame, "map?", typePredicate("map?", func(v value.Value) bool { _, ok := v.(*value.Map); return ok }))
	def(frame, "set?", typePredicate("set?", func(v value.Value) bool { _, ok := v.(*value.Set); return ok }))
	def(frame, "fn?", typePredicate("fn?", func(v value.Value) bool {
		switch v.(type) {
		case *value.Function, *value.NativeFunction:
			return true
		}
		return false
	}))
	def(frame, "error?", typePredicate("error?", func(v value.Value) bool {
		m, ok := v.(*value.Map)
		if !ok {
			return false
		}
		_, isErr := m.Get(value.Keyword("error"))
		return isErr
	}))

	def(frame, "not", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("not", 1, len(args))
		}
		return value.Bool(!value.Truthy(args[0])), nil
	})
}

func typePredicate(name string, check func(value.Value) bool) value.NativeFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr(name, 1, len(args))
		}
		return value.Bool(check(args[0])), nil
	}
}
