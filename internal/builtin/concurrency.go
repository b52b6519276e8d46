package builtin

import (
	"time"

	"github.com/google/uuid"

	"qilang.dev/qi/internal/concurrency"
	"qilang.dev/qi/internal/eval"
	"qilang.dev/qi/internal/value"
)

// registerConcurrency wires the internal/concurrency package's
// operations up as natives, supplying ev.Apply as the Applier callback
// every operation that invokes a Qi function needs (§4.9).
func registerConcurrency(ev *eval.Evaluator) {
	frame := ev.Global
	reg := ev.Concurrency

	def(frame, "atom", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("atom", 1, len(args))
		}
		return value.NewAtom(args[0]), nil
	})

	def(frame, "deref", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("deref", 1, len(args))
		}
		a, ok := args[0].(*value.Atom)
		if !ok {
			return nil, typeErr("deref", "an atom", args[0])
		}
		return a.Load(), nil
	})

	def(frame, "reset!", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("reset!", 2, len(args))
		}
		a, ok := args[0].(*value.Atom)
		if !ok {
			return nil, typeErr("reset!", "an atom", args[0])
		}
		a.Store(args[1])
		return args[1], nil
	})

	def(frame, "swap!", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return nil, arityAtLeastErr("swap!", 2, len(args))
		}
		a, ok := args[0].(*value.Atom)
		if !ok {
			return nil, typeErr("swap!", "an atom", args[0])
		}
		return concurrency.Swap(ev.Apply, a, args[1], args[2:])
	})

	def(frame, "chan", func(args []value.Value) (value.Value, error) {
		capacity := 0
		if len(args) == 1 {
			n, ok := args[0].(value.Int)
			if !ok {
				return nil, typeErr("chan", "an integer capacity", args[0])
			}
			capacity = int(n)
		}
		return value.NewChannel(capacity), nil
	})

	def(frame, "send!", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("send!", 2, len(args))
		}
		ch, ok := args[0].(*value.Channel)
		if !ok {
			return nil, typeErr("send!", "a channel", args[0])
		}
		if err := concurrency.Send(ch, args[1]); err != nil {
			return nil, err
		}
		return value.Nil{}, nil
	})

	def(frame, "recv!", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("recv!", 1, len(args))
		}
		ch, ok := args[0].(*value.Channel)
		if !ok {
			return nil, typeErr("recv!", "a channel", args[0])
		}
		v, open, err := concurrency.Recv(ch, 0)
		if err != nil {
			return nil, err
		}
		if !open {
			return value.Nil{}, nil
		}
		return v, nil
	})

	def(frame, "try-recv!", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("try-recv!", 1, len(args))
		}
		ch, ok := args[0].(*value.Channel)
		if !ok {
			return nil, typeErr("try-recv!", "a channel", args[0])
		}
		v, ok := concurrency.TryRecv(ch)
		if !ok {
			return value.Nil{}, nil
		}
		return v, nil
	})

	def(frame, "close!", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("close!", 1, len(args))
		}
		ch, ok := args[0].(*value.Channel)
		if !ok {
			return nil, typeErr("close!", "a channel", args[0])
		}
		concurrency.Close(ch)
		return value.Nil{}, nil
	})

	def(frame, "fan-out", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("fan-out", 2, len(args))
		}
		n, ok := args[1].(value.Int)
		if !ok {
			return nil, typeErr("fan-out", "an integer channel count", args[1])
		}
		chans := concurrency.FanOut(args[0], int(n))
		out := make([]value.Value, len(chans))
		for i, ch := range chans {
			out[i] = ch
		}
		return value.NewVector(out...), nil
	})

	def(frame, "fan-in", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("fan-in", 1, len(args))
		}
		elems, ok := value.Seq(args[0])
		if !ok {
			return nil, typeErr("fan-in", "a list or vector of channels", args[0])
		}
		chans := make([]*value.Channel, len(elems))
		for i, e := range elems {
			ch, ok := e.(*value.Channel)
			if !ok {
				return nil, typeErr("fan-in", "a channel", e)
			}
			chans[i] = ch
		}
		return concurrency.FanIn(chans), nil
	})

	def(frame, "await", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("await", 1, len(args))
		}
		h, ok := args[0].(*value.ThreadHandle)
		if !ok {
			return nil, typeErr("await", "a thread handle", args[0])
		}
		return concurrency.Await(h, 0)
	})

	def(frame, "all", func(args []value.Value) (value.Value, error) {
		handles, err := toHandles("all", args)
		if err != nil {
			return nil, err
		}
		results, err := concurrency.All(handles)
		if err != nil {
			return nil, err
		}
		return value.NewVector(results...), nil
	})

	def(frame, "race", func(args []value.Value) (value.Value, error) {
		handles, err := toHandles("race", args)
		if err != nil {
			return nil, err
		}
		return concurrency.Race(handles)
	})

	def(frame, "pmap", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("pmap", 2, len(args))
		}
		elems, ok := value.Seq(args[1])
		if !ok {
			return nil, typeErr("pmap", "a list or vector", args[1])
		}
		out, err := reg.PMap(ev.Apply, args[0], elems)
		if err != nil {
			return nil, err
		}
		return value.NewVector(out...), nil
	})

	def(frame, "pfilter", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("pfilter", 2, len(args))
		}
		elems, ok := value.Seq(args[1])
		if !ok {
			return nil, typeErr("pfilter", "a list or vector", args[1])
		}
		out, err := reg.PFilter(ev.Apply, args[0], elems)
		if err != nil {
			return nil, err
		}
		return value.NewVector(out...), nil
	})

	def(frame, "preduce", func(args []value.Value) (value.Value, error) {
		if len(args) != 3 {
			return nil, arityErr("preduce", 3, len(args))
		}
		elems, ok := value.Seq(args[2])
		if !ok {
			return nil, typeErr("preduce", "a list or vector", args[2])
		}
		return reg.PReduce(ev.Apply, args[0], args[1], elems)
	})

	def(frame, "make-scope", func(args []value.Value) (value.Value, error) {
		return value.NewScope(uuid.NewString()), nil
	})

	def(frame, "cancel!", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("cancel!", 1, len(args))
		}
		s, ok := args[0].(*value.Scope)
		if !ok {
			return nil, typeErr("cancel!", "a scope", args[0])
		}
		s.Cancel()
		return value.Nil{}, nil
	})

	def(frame, "cancelled?", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("cancelled?", 1, len(args))
		}
		s, ok := args[0].(*value.Scope)
		if !ok {
			return nil, typeErr("cancelled?", "a scope", args[0])
		}
		return value.Bool(s.Cancelled()), nil
	})

	def(frame, "sleep", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("sleep", 1, len(args))
		}
		ms, err := numeric("sleep", args[0])
		if err != nil {
			return nil, err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return value.Nil{}, nil
	})
}

func toHandles(name string, args []value.Value) ([]*value.ThreadHandle, error) {
	handles := make([]*value.ThreadHandle, len(args))
	for i, a := range args {
		h, ok := a.(*value.ThreadHandle)
		if !ok {
			return nil, typeErr(name, "a thread handle", a)
		}
		handles[i] = h
	}
	return handles, nil
}
