package qi

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"qilang.dev/qi/internal/eval"
	"qilang.dev/qi/internal/module"
	"qilang.dev/qi/internal/value"
)

// Option configures a Runtime, the same functional-options shape
// nperez-losp's pkg/losp.Option uses (here scoped to what Qi actually has:
// output streams, worker pool sizing, and shutdown grace, rather than
// nperez-losp's store/provider plumbing, which has no Qi equivalent).
type Option func(*Runtime)

// WithOutput sets the writer print/println natives write to.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) { r.out = w }
}

// WithWarnOutput sets the writer non-fatal diagnostics are written to.
func WithWarnOutput(w io.Writer) Option {
	return func(r *Runtime) { r.warn = w }
}

// WithWorkerPoolSize bounds the pmap/pfilter/preduce worker pool.
func WithWorkerPoolSize(size int) Option {
	return func(r *Runtime) { r.poolSize = size }
}

// WithShutdownGrace sets how long Close waits for outstanding spawned
// goroutines before releasing the worker pool.
func WithShutdownGrace(d time.Duration) Option {
	return func(r *Runtime) { r.shutdown = d }
}

// WithModuleRegistry shares one module.Registry across Runtimes.
func WithModuleRegistry(reg *module.Registry) Option {
	return func(r *Runtime) { r.modules = reg }
}

// WithGlobalFrame seeds the Runtime's root frame before builtins are
// registered, e.g. so a host program can pre-bind values of its own.
func WithGlobalFrame(f *value.Frame) Option {
	return func(r *Runtime) { r.global = f }
}

// WithModuleSearchDir makes "use" resolve a module name by reading
// "<dir>/<name>.qi" (§4.8). Without this (or WithModuleLoader), using
// any not-yet-loaded module is a module-not-found error.
func WithModuleSearchDir(dir string) Option {
	return func(r *Runtime) {
		r.loader = func(name string) (string, error) {
			src, err := os.ReadFile(filepath.Join(dir, name+".qi"))
			return string(src), err
		}
	}
}

// WithModuleLoader sets a custom resolver from module name to source
// text, for hosts that keep module sources somewhere other than a
// plain directory (embedded assets, a remote store, ...).
func WithModuleLoader(loader eval.ModuleLoader) Option {
	return func(r *Runtime) { r.loader = loader }
}

func (r *Runtime) evalOptions() []eval.Option {
	var opts []eval.Option
	if r.out != nil {
		opts = append(opts, eval.WithOutputWriter(r.out))
	}
	if r.warn != nil {
		opts = append(opts, eval.WithWarnWriter(r.warn))
	}
	if r.poolSize > 0 {
		opts = append(opts, eval.WithWorkerPoolSize(r.poolSize))
	}
	if r.modules != nil {
		opts = append(opts, eval.WithModuleRegistry(r.modules))
	}
	if r.global != nil {
		opts = append(opts, eval.WithGlobalFrame(r.global))
	}
	if r.loader != nil {
		opts = append(opts, eval.WithModuleLoader(r.loader))
	}
	return opts
}
