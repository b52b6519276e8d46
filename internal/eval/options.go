package eval

import (
	"io"

	"qilang.dev/qi/internal/concurrency"
	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/value"
)

// Option configures an Evaluator at construction time, the same
// functional-options shape nperez-losp's pkg/losp.Option uses for
// losp.New.
type Option func(*Evaluator)

// WithOutputWriter sets the writer print-style natives write to.
func WithOutputWriter(w io.Writer) Option {
	return func(e *Evaluator) { e.Out = w }
}

// WithWarnWriter sets the writer non-fatal diagnostics (redefinition,
// failed defer during unwind) are written to.
func WithWarnWriter(w io.Writer) Option {
	return func(e *Evaluator) { e.Warn = w }
}

// WithGlobalFrame seeds the Evaluator's root frame, letting a caller
// (pkg/qi.WithGlobalFrame) supply bindings of its own before any user
// code runs; internal/builtin.Register adds the natives to it afterwards.
func WithGlobalFrame(f *value.Frame) Option {
	return func(e *Evaluator) { e.Global = f }
}

// WithWorkerPoolSize bounds the goroutine pool backing pmap/pfilter/
// preduce (§4.9); size<=0 uses the concurrency package's default.
func WithWorkerPoolSize(size int) Option {
	return func(e *Evaluator) {
		reg, err := concurrency.NewRegistry(size)
		if err == nil {
			e.Concurrency = reg
		}
	}
}

// WithModuleRegistry lets a caller share one module.Registry across
// multiple Evaluators (e.g. a REPL re-using previously loaded modules).
func WithModuleRegistry(r *module.Registry) Option {
	return func(e *Evaluator) { e.Modules = r }
}

// WithModuleLoader sets how "use" resolves a not-yet-loaded module name
// to source text (§4.8). Without one, every use of an unloaded module
// is a module-not-found error.
func WithModuleLoader(loader ModuleLoader) Option {
	return func(e *Evaluator) { e.Loader = loader }
}
