package builtin

import (
	"sort"

	"github.com/samber/lo"

	"qilang.dev/qi/internal/eval"
	"qilang.dev/qi/internal/value"
)

// registerCollections installs both pure data operations (count, first,
// conj, assoc, ...) and the higher-order ones (map, filter, reduce) that
// need ev.Apply to call back into evaluated Qi functions — exactly the
// split nperez-losp's internal/builtin has no equivalent of, but
// other_examples' small Lisp interpreters universally need, since a
// sequential "map" is just pmap's single-goroutine cousin.
func registerCollections(ev *eval.Evaluator) {
	frame := ev.Global

	def(frame, "count", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("count", 1, len(args))
		}
		switch t := args[0].(type) {
		case *value.Map:
			return value.Int(t.Len()), nil
		case *value.Set:
			return value.Int(t.Len()), nil
		default:
			elems, ok := value.Seq(args[0])
			if !ok {
				return nil, typeErr("count", "a collection", args[0])
			}
			return value.Int(len(elems)), nil
		}
	})

	def(frame, "first", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("first", 1, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("first", "a list or vector", args[0])
		}
		if len(elems) == 0 {
			return value.Nil{}, nil
		}
		return elems[0], nil
	})

	def(frame, "rest", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("rest", 1, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("rest", "a list or vector", args[0])
		}
		if len(elems) == 0 {
			return value.NewList(), nil
		}
		return value.NewList(elems[1:]...), nil
	})

	def(frame, "nth", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("nth", 2, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("nth", "a list or vector", args[0])
		}
		idx, ok := args[1].(value.Int)
		if !ok {
			return nil, typeErr("nth", "an integer index", args[1])
		}
		if int64(idx) < 0 || int(idx) >= len(elems) {
			return nil, indexOutOfRange("nth", int64(idx), len(elems))
		}
		return elems[idx], nil
	})

	def(frame, "conj", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return nil, arityAtLeastErr("conj", 1, 0)
		}
		switch t := args[0].(type) {
		case *value.Vector:
			return value.NewVector(append(append([]value.Value{}, t.Elems...), args[1:]...)...), nil
		case *value.List:
			prefixed := append([]value.Value{}, args[1:]...)
			return value.NewList(append(lo.Reverse(prefixed), t.Elems...)...), nil
		case *value.Set:
			out := t
			for _, a := range args[1:] {
				out = out.Add(a)
			}
			return out, nil
		}
		return nil, typeErr("conj", "a list, vector, or set", args[0])
	})

	def(frame, "get", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, arityErr("get", 2, len(args))
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, typeErr("get", "a map", args[0])
		}
		if v, found := m.Get(args[1]); found {
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return value.Nil{}, nil
	})

	def(frame, "assoc", func(args []value.Value) (value.Value, error) {
		if len(args) < 3 || len(args)%2 != 1 {
			return nil, typeErr("assoc", "a map followed by key/value pairs", args[0])
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, typeErr("assoc", "a map", args[0])
		}
		out := m
		for i := 1; i+1 < len(args); i += 2 {
			out = out.Set(args[i], args[i+1])
		}
		return out, nil
	})

	def(frame, "dissoc", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return nil, arityAtLeastErr("dissoc", 1, 0)
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, typeErr("dissoc", "a map", args[0])
		}
		out := m
		for _, k := range args[1:] {
			out = out.Delete(k)
		}
		return out, nil
	})

	def(frame, "keys", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("keys", 1, len(args))
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, typeErr("keys", "a map", args[0])
		}
		return value.NewVector(m.Keys()...), nil
	})

	def(frame, "vals", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("vals", 1, len(args))
		}
		m, ok := args[0].(*value.Map)
		if !ok {
			return nil, typeErr("vals", "a map", args[0])
		}
		_, vals := m.Entries()
		return value.NewVector(vals...), nil
	})

	def(frame, "range", func(args []value.Value) (value.Value, error) {
		var start, end int64
		switch len(args) {
		case 1:
			n, ok := args[0].(value.Int)
			if !ok {
				return nil, typeErr("range", "an integer", args[0])
			}
			start, end = 0, int64(n)
		case 2:
			lowVal, ok1 := args[0].(value.Int)
			hi, ok2 := args[1].(value.Int)
			if !ok1 || !ok2 {
				return nil, typeErr("range", "two integers", args[0])
			}
			start, end = int64(lowVal), int64(hi)
		default:
			return nil, arityErr("range", 2, len(args))
		}
		out := make([]value.Value, 0, max64(end-start, 0))
		for i := start; i < end; i++ {
			out = append(out, value.Int(i))
		}
		return value.NewVector(out...), nil
	})

	def(frame, "reverse", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("reverse", 1, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("reverse", "a list or vector", args[0])
		}
		return sameShape(args[0], lo.Reverse(append([]value.Value{}, elems...))), nil
	})

	def(frame, "concat", func(args []value.Value) (value.Value, error) {
		var out []value.Value
		for _, a := range args {
			elems, ok := value.Seq(a)
			if !ok {
				return nil, typeErr("concat", "a list or vector", a)
			}
			out = append(out, elems...)
		}
		return value.NewList(out...), nil
	})

	def(frame, "sort", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("sort", 1, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("sort", "a list or vector", args[0])
		}
		sorted := append([]value.Value{}, elems...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, errA := numeric("sort", sorted[i])
			b, errB := numeric("sort", sorted[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return sorted[i].String() < sorted[j].String()
		})
		return sameShape(args[0], sorted), nil
	})

	// map/filter/reduce call back into evaluated Qi code, so they take
	// ev.Apply as their invoker (§4.5 "higher-order natives").
	def(frame, "map", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("map", 2, len(args))
		}
		elems, ok := value.Seq(args[1])
		if !ok {
			return nil, typeErr("map", "a list or vector", args[1])
		}
		out := make([]value.Value, len(elems))
		for i, e := range elems {
			v, err := ev.Apply(args[0], []value.Value{e})
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return value.NewVector(out...), nil
	})

	def(frame, "filter", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("filter", 2, len(args))
		}
		elems, ok := value.Seq(args[1])
		if !ok {
			return nil, typeErr("filter", "a list or vector", args[1])
		}
		var out []value.Value
		for _, e := range elems {
			v, err := ev.Apply(args[0], []value.Value{e})
			if err != nil {
				return nil, err
			}
			if value.Truthy(v) {
				out = append(out, e)
			}
		}
		return value.NewVector(out...), nil
	})

	def(frame, "reduce", func(args []value.Value) (value.Value, error) {
		if len(args) != 3 {
			return nil, arityErr("reduce", 3, len(args))
		}
		elems, ok := value.Seq(args[2])
		if !ok {
			return nil, typeErr("reduce", "a list or vector", args[2])
		}
		acc := args[1]
		for _, e := range elems {
			v, err := ev.Apply(args[0], []value.Value{acc, e})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
}

func sameShape(original value.Value, elems []value.Value) value.Value {
	if _, ok := original.(*value.List); ok {
		return value.NewList(elems...)
	}
	return value.NewVector(elems...)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
