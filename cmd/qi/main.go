// Command qi is Qi's CLI front end: run a file, run inline code, or
// drop into a minimal REPL (§6 "External interfaces"). This
// generalizes nperez-losp's cmd/losp/main.go, which wired the same
// three shapes (-f file, -e string, stdin/REPL fallback) off the
// standard flag package; Qi moves that wiring onto github.com/spf13/cobra
// (grounded in the example pack's termfx-morfx, the one repo built
// around a real CLI framework instead of flag.*) so run/eval/repl become
// proper subcommands instead of flag combinations.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"qilang.dev/qi/internal/value"
	"qilang.dev/qi/pkg/qi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qi",
		Short: "Qi language interpreter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.OutOrStdout())
		},
	}
	root.AddCommand(newRunCmd(), newEvalCmd(), newReplCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [file]",
		Short: "Run a Qi source file (- reads from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := qi.New(qi.WithOutput(cmd.OutOrStdout()), qi.WithWarnOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			path := args[0]
			if path == "-" {
				_, err = rt.EvalReader(os.Stdin)
			} else {
				_, err = rt.EvalFile(path)
			}
			return err
		},
	}
}

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <code>",
		Short: "Evaluate inline Qi code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := qi.New(qi.WithOutput(cmd.OutOrStdout()), qi.WithWarnOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			// Piped input alongside inline code pre-binds `stdin` to a
			// vector of lines (§6), rather than being read as the
			// program source the way "run -" treats it.
			if !isTerminal(os.Stdin) {
				lines, readErr := readLines(os.Stdin)
				if readErr != nil {
					return readErr
				}
				elems := make([]value.Value, len(lines))
				for i, l := range lines {
					elems[i] = value.Str(l)
				}
				rt.Global().Define("stdin", value.NewVector(elems...))
			}

			result, err := rt.Eval(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.OutOrStdout())
		},
	}
}

// runREPL is a minimal read-eval-print loop: no history, no hot-reload,
// no multi-line editing (§1 Non-goals explicitly excludes the full
// "REPL shell/history/hot-reload" experience; this is the bare
// interactive loop the core's external interface still requires).
func runREPL(out io.Writer) error {
	rt, err := qi.New(qi.WithOutput(out))
	if err != nil {
		return err
	}
	defer rt.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "qi> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result, err := rt.Eval(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		fmt.Fprintln(out, result.String())
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// isTerminal reports whether f looks like an interactive terminal
// rather than a pipe or redirected file, matching nperez-losp's own
// stdin-mode check in cmd/losp/main.go.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}
