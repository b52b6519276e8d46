package builtin

import (
	"errors"

	"qilang.dev/qi/internal/value"
)

// registerErrors installs the one native user code raises failures
// through: (error "message") propagates like any other native error,
// so try/|>? catch it into the {:error ...} carrier shape the same way
// they catch an arithmetic or type error (§4.6 "user" error kind).
func registerErrors(frame *value.Frame) {
	def(frame, "error", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, arityErr("error", 1, len(args))
		}
		s, ok := args[0].(value.Str)
		if !ok {
			return nil, typeErr("error", "a string message", args[0])
		}
		return nil, errors.New(string(s))
	})
}
