package builtin

import (
	"fmt"
	"io"

	"qilang.dev/qi/internal/value"
)

// registerIO installs the output-producing natives, writing to out (the
// Evaluator's configured Out writer, §4.10 "print/println write to
// the runtime's configured output stream, not directly to stdout").
func registerIO(frame *value.Frame, out io.Writer) {
	def(frame, "print", func(args []value.Value) (value.Value, error) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(out, " ")
			}
			fmt.Fprint(out, a.String())
		}
		return value.Nil{}, nil
	})

	def(frame, "println", func(args []value.Value) (value.Value, error) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(out, " ")
			}
			fmt.Fprint(out, a.String())
		}
		fmt.Fprintln(out)
		return value.Nil{}, nil
	})
}
