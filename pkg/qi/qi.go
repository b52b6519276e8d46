// Package qi is Qi's embeddable runtime facade, the public surface a
// host Go program (or cmd/qi) uses to run Qi source — directly
// generalizing nperez-losp's pkg/losp.Runtime, which wrapped its own
// internal/eval.Evaluator behind New/Eval/EvalFile/Close the same way.
package qi

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"qilang.dev/qi/internal/builtin"
	"qilang.dev/qi/internal/eval"
	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/parser"
	"qilang.dev/qi/internal/value"
)

// Runtime is one Qi interpreter instance: a global frame, module
// registry, and concurrency runtime, plus whatever natives Register
// installed.
type Runtime struct {
	evaluator *eval.Evaluator
	shutdown  time.Duration
	out       io.Writer
	warn      io.Writer
	poolSize  int
	modules   *module.Registry
	global    *value.Frame
	loader    eval.ModuleLoader
}

// New creates a Runtime with builtins registered and ready to evaluate.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{shutdown: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	evalOpts := r.evalOptions()
	ev, err := eval.New(evalOpts...)
	if err != nil {
		return nil, err
	}
	r.evaluator = ev
	builtin.Register(ev)
	return r, nil
}

// Eval parses source and evaluates its top-level forms in sequence
// (§6 "running a file evaluates top-level forms in sequence"),
// returning the last form's value. A leading (module name) and any
// use/export forms are handled by the module loader (internal/eval's
// EvalProgram), not by evaluating each form independently.
func (r *Runtime) Eval(source string) (value.Value, error) {
	forms, err := parser.New(source).ParseProgram()
	if err != nil {
		return nil, err
	}
	return r.evaluator.EvalProgram(forms, r.evaluator.Global)
}

// EvalReader reads all of r's content and evaluates it as one program.
func (r *Runtime) EvalReader(reader io.Reader) (value.Value, error) {
	src, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return r.Eval(string(src))
}

// EvalFile evaluates the named file's contents. If no module loader
// was configured, "use" resolves sibling modules from path's own
// directory, the same way most Lisps default their load path to the
// entry script's location.
func (r *Runtime) EvalFile(path string) (value.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if r.evaluator.Loader == nil {
		dir := filepath.Dir(path)
		r.evaluator.Loader = func(name string) (string, error) {
			src, err := os.ReadFile(filepath.Join(dir, name+".qi"))
			return string(src), err
		}
	}
	return r.EvalReader(f)
}

// Global exposes the runtime's top-level frame, e.g. so a host program
// can Define additional natives after New.
func (r *Runtime) Global() *value.Frame { return r.evaluator.Global }

// Modules exposes the runtime's module registry.
func (r *Runtime) Modules() *module.Registry { return r.evaluator.Modules }

// Close waits (up to the configured grace period) for outstanding
// spawned goroutines before releasing the worker pool (§4.9).
func (r *Runtime) Close() {
	r.evaluator.Concurrency.Shutdown(r.shutdown)
}
