// Package module implements Qi's namespace system: one root Frame per
// loaded module, an export list gating what use can see, and the
// cycle/re-load bookkeeping §4.8 requires.
//
// nperez-losp's eval.Namespace (internal/eval/namespace.go) is a single
// flat, global RWMutex-guarded map — there is exactly one namespace for
// the whole program. Qi generalizes that into many namespaces, one per
// module, each still guarded the same way (internal/value.Frame reuses
// nperez-losp's RWMutex-per-map discipline directly), with a Registry on
// top tracking load state across them.
package module

import (
	"fmt"
	"sync"

	"qilang.dev/qi/internal/value"
)

// LoadState tracks a module's position in the load lifecycle, used to
// detect cyclic use (§4.8 "a cyclic use chain is a module error").
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
)

// Module is one loaded namespace: its own root Frame (child of the
// global root so built-ins stay visible) plus the set of names it
// exports.
type Module struct {
	Name    string
	Frame   *value.Frame
	Exports map[string]bool
	State   LoadState
}

// Registry holds every module loaded in one runtime (§4.8).
type Registry struct {
	mu      sync.Mutex
	modules map[string]*Module
	root    *value.Frame
}

// NewRegistry creates a Registry whose modules all descend from root
// (the global frame holding built-ins).
func NewRegistry(root *value.Frame) *Registry {
	return &Registry{modules: make(map[string]*Module), root: root}
}

// Begin starts loading name, returning a module error if name is
// already mid-load on the current load chain (a cycle) and the existing
// module with alreadyLoaded=true if name is already fully loaded.
func (r *Registry) Begin(name string) (m *Module, alreadyLoaded bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.modules[name]; ok {
		switch existing.State {
		case Loading:
			return nil, false, fmt.Errorf("module error: cyclic use of %q", name)
		case Loaded:
			return existing, true, nil
		}
	}
	m = &Module{
		Name:    name,
		Frame:   r.root.Child(),
		Exports: make(map[string]bool),
		State:   Loading,
	}
	r.modules[name] = m
	return m, false, nil
}

// Finish marks name as fully loaded.
func (r *Registry) Finish(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[name]; ok {
		m.State = Loaded
	}
}

// Get returns the already-loaded module named name, if any.
func (r *Registry) Get(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[name]
	if !ok || m.State != Loaded {
		return nil, false
	}
	return m, true
}

// Export marks names as part of m's public surface (§4.8 "export").
func (m *Module) Export(names ...string) {
	for _, n := range names {
		m.Exports[n] = true
	}
}

// Lookup resolves name against m's bindings, gated by mode/names as
// described at the use site (§4.8's three import modes: all, only,
// aliased — aliasing is applied by the caller, which prefixes the
// looked-up name in its own frame).
func (m *Module) Lookup(name string) (value.Value, bool, error) {
	if !m.Exports[name] {
		return nil, false, fmt.Errorf("module error: %q is not exported by module %q", name, m.Name)
	}
	v, ok := m.Frame.Get(name)
	return v, ok, nil
}

// ExportedNames returns every exported name, for "use module" (UseAll).
func (m *Module) ExportedNames() []string {
	names := make([]string, 0, len(m.Exports))
	for n := range m.Exports {
		names = append(names, n)
	}
	return names
}
