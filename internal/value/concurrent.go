package value

import (
	"fmt"
	"sync/atomic"

	uberatomic "go.uber.org/atomic"
)

// valueBox lets Atom store a Value (an interface) behind a
// sync/atomic.Pointer, which requires a concrete pointee type; boxing
// sidesteps that restriction since *valueBox is always the same type
// regardless of what Value it holds.
type valueBox struct{ v Value }

// Atom is a shared mutable cell with identity and atomic update (§3,
// §4.9). The cell is a sync/atomic.Pointer[valueBox] so swap!'s
// compare-and-retry loop (internal/concurrency) can use CompareAndSwap
// instead of holding a mutex across the user-supplied update function.
// (go.uber.org/atomic is used below for the simpler Bool
// flags on Channel and Scope; Atom itself stays on the generic stdlib
// Pointer since its payload is an arbitrary interface value rather than
// one of the concrete types go.uber.org/atomic specializes.)
type Atom struct {
	cell atomic.Pointer[valueBox]
}

func NewAtom(initial Value) *Atom {
	a := &Atom{}
	a.cell.Store(&valueBox{v: initial})
	return a
}

func (*Atom) Type() string     { return "atom" }
func (a *Atom) String() string { return fmt.Sprintf("#<atom:%s>", a.Load().String()) }
func (*Atom) valueNode()       {}

func (a *Atom) Load() Value {
	return a.cell.Load().v
}

func (a *Atom) Store(v Value) {
	a.cell.Store(&valueBox{v: v})
}

// CompareAndSwap atomically replaces the cell's content with next if it
// is still old (by equality of the boxed value), returning whether it
// succeeded.
func (a *Atom) CompareAndSwap(old, next Value) bool {
	oldBox := a.cell.Load()
	if oldBox.v != old {
		return false
	}
	return a.cell.CompareAndSwap(oldBox, &valueBox{v: next})
}

// Channel is a shared FIFO queue, optionally bounded, closable from any
// holder (§4.9). Behavior (send!/recv!/close!) lives in
// internal/concurrency; Channel itself is pure state so that the Value
// sum type (this package) does not need to import the concurrency
// package, avoiding an import cycle.
type Channel struct {
	Ch       chan Value
	Capacity int // 0 means unbounded (Ch is created with a large buffer)
	closed   *uberatomic.Bool
}

func NewChannel(capacity int) *Channel {
	bufSize := capacity
	unbounded := capacity <= 0
	if unbounded {
		bufSize = 1 << 16 // spec treats "unbounded" as non-blocking in practice
	}
	return &Channel{
		Ch:       make(chan Value, bufSize),
		Capacity: capacity,
		closed:   uberatomic.NewBool(false),
	}
}

func (*Channel) Type() string     { return "channel" }
func (c *Channel) String() string { return "#<channel>" }
func (*Channel) valueNode()       {}

func (c *Channel) Closed() bool   { return c.closed.Load() }
func (c *Channel) MarkClosed() bool {
	return c.closed.CompareAndSwap(false, true)
}

// ThreadHandle is an opaque, joinable handle to a spawned computation
// (§3, §4.9 "go").
type ThreadHandle struct {
	ID     string
	Done   chan struct{}
	Result Value
	Err    error
}

func (*ThreadHandle) Type() string     { return "thread" }
func (t *ThreadHandle) String() string { return fmt.Sprintf("#<thread:%s>", t.ID) }
func (*ThreadHandle) valueNode()       {}

// Scope is a cancellation token, advisory and cooperative (§4.9).
type Scope struct {
	ID        string
	cancelled *uberatomic.Bool
}

func NewScope(id string) *Scope {
	return &Scope{ID: id, cancelled: uberatomic.NewBool(false)}
}

func (*Scope) Type() string     { return "scope" }
func (s *Scope) String() string { return fmt.Sprintf("#<scope:%s>", s.ID) }
func (*Scope) valueNode()       {}

func (s *Scope) Cancel()           { s.cancelled.Store(true) }
func (s *Scope) Cancelled() bool   { return s.cancelled.Load() }

// Opaque is a value the interpreter passes through but never inspects
// (e.g. a DB connection or file stream registered by a native module).
type Opaque struct {
	Tag  string
	Data any
}

func (*Opaque) Type() string     { return "opaque" }
func (o *Opaque) String() string { return fmt.Sprintf("#<opaque:%s>", o.Tag) }
func (*Opaque) valueNode()       {}
