// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package concurrency implements Qi's concurrency runtime: channels,
// spawned threads/promises, the pmap/pfilter/preduce family, atomic
// swap, and cancellation scopes (§4.9 "Concurrency").
//
// nperez-losp's internal/eval/async.go (AsyncRegistry/AsyncHandle) is
// the direct model for ThreadHandle bookkeeping here: an ID-keyed
// registry, a done channel per handle, and a WaitGroup-backed Shutdown
// with a timeout. Qi generalizes AsyncHandle's counter-based string ID
// to github.com/google/uuid (so handles stay unique across
// concurrently-created registries, not just within one process
// counter), and swaps nperez-losp's bespoke goroutine spawn for
// github.com/sourcegraph/conc (panic-safe: a goroutine that panics
// inside pmap/pfilter/go no longer takes the whole process down), and
// golang.org/x/sync/errgroup for the fan-in shapes (all, the parallel
// side of pmap/pfilter/preduce).
//
// concurrency cannot import internal/eval (eval imports concurrency's
// builtins indirectly through internal/builtin), so every operation
// that needs to invoke a Qi function value takes an Applier callback
// supplied by the caller instead of calling the evaluator directly.
package concurrency

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"qilang.dev/qi/internal/value"
)

// Applier invokes a Qi callable (Function, NativeFunction, or anything
// else the evaluator treats as applicable) with the given arguments.
// internal/builtin supplies the real implementation, backed by
// internal/eval, when it wires these operations up as native functions.
type Applier func(fn value.Value, args []value.Value) (value.Value, error)

// Registry tracks the goroutines spawned through one runtime, for
// Shutdown (§4.9 "the runtime waits for outstanding goroutines, up to a
// grace period, before exiting"), and owns the worker pool that
// pmap/pfilter/preduce submit into.
type Registry struct {
	wg      conc.WaitGroup
	pool    *ants.Pool
}

// NewRegistry creates a Registry backed by a bounded worker pool of the
// given size (0 uses ants' default).
func NewRegistry(poolSize int) (*Registry, error) {
	opts := []ants.Option{ants.WithNonblocking(false)}
	var pool *ants.Pool
	var err error
	if poolSize > 0 {
		pool, err = ants.NewPool(poolSize, opts...)
	} else {
		pool, err = ants.NewPool(ants.DefaultAntsPoolSize, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("concurrency: creating worker pool: %w", err)
	}
	return &Registry{pool: pool}, nil
}

// Shutdown waits for outstanding spawned work, releasing pool resources.
func (r *Registry) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
	r.pool.Release()
}

// Spawn runs apply(fn, args) on its own goroutine, returning immediately
// with a handle the caller can Await (§4.9 "go").
func (r *Registry) Spawn(apply Applier, fn value.Value, args []value.Value) *value.ThreadHandle {
	h := &value.ThreadHandle{ID: uuid.NewString(), Done: make(chan struct{})}
	r.wg.Go(func() {
		defer close(h.Done)
		defer func() {
			if rec := recover(); rec != nil {
				h.Err = fmt.Errorf("concurrency: goroutine panic: %v", rec)
			}
		}()
		result, err := apply(fn, args)
		h.Result, h.Err = result, err
	})
	return h
}

// Await blocks for h to finish, or until timeout elapses (timeout<=0
// means wait forever).
func Await(h *value.ThreadHandle, timeout time.Duration) (value.Value, error) {
	if timeout <= 0 {
		<-h.Done
		return h.Result, h.Err
	}
	select {
	case <-h.Done:
		return h.Result, h.Err
	case <-time.After(timeout):
		return nil, fmt.Errorf("concurrency: await timed out after %s", timeout)
	}
}

// All waits for every handle, returning the first error encountered (if
// any) via an errgroup so that a failing handle doesn't stall the
// others' completion detection (§4.9 "all").
func All(handles []*value.ThreadHandle) ([]value.Value, error) {
	results := make([]value.Value, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			v, err := Await(h, 0)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Race returns the value of whichever handle finishes first.
func Race(handles []*value.ThreadHandle) (value.Value, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("concurrency: race requires at least one handle")
	}
	cases := make([]reflect.SelectCase, len(handles))
	for i, h := range handles {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(h.Done)}
	}
	chosen, _, _ := reflect.Select(cases)
	return Await(handles[chosen], 0)
}

// pmapSequentialThreshold is the collection size below which
// pmap/pfilter run sequentially rather than paying goroutine/pool
// overhead.
const pmapSequentialThreshold = 8

// PMap applies fn to every element of elems, concurrently once the
// collection is large enough to be worth it (§4.9 "pmap").
func (r *Registry) PMap(apply Applier, fn value.Value, elems []value.Value) ([]value.Value, error) {
	if len(elems) < pmapSequentialThreshold {
		out := make([]value.Value, len(elems))
		for i, e := range elems {
			v, err := apply(fn, []value.Value{e})
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	out := make([]value.Value, len(elems))
	var g errgroup.Group
	for i, e := range elems {
		i, e := i, e
		g.Go(func() error {
			errCh := make(chan error, 1)
			submitErr := r.pool.Submit(func() {
				v, err := apply(fn, []value.Value{e})
				if err != nil {
					errCh <- err
					return
				}
				out[i] = v
				errCh <- nil
			})
			if submitErr != nil {
				return submitErr
			}
			return <-errCh
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PFilter keeps the elements of elems for which fn is truthy, preserving
// original order (§4.9 "pfilter").
func (r *Registry) PFilter(apply Applier, fn value.Value, elems []value.Value) ([]value.Value, error) {
	keep, err := r.PMap(apply, fn, elems)
	if err != nil {
		return nil, err
	}
	kept := make([]value.Value, 0, len(elems))
	for i, k := range keep {
		if value.Truthy(k) {
			kept = append(kept, elems[i])
		}
	}
	return kept, nil
}

// PReduce combines elems with fn starting from init, computing
// per-chunk partial results concurrently and then folding the partials
// sequentially (fn need not be commutative, only associative, so the
// final fold preserves left-to-right chunk order) (§4.9 "preduce").
func (r *Registry) PReduce(apply Applier, fn value.Value, init value.Value, elems []value.Value) (value.Value, error) {
	if len(elems) < pmapSequentialThreshold {
		acc := init
		for _, e := range elems {
			v, err := apply(fn, []value.Value{acc, e})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	}
	chunks := chunk(elems, pmapSequentialThreshold)
	partials := make([]value.Value, len(chunks))
	var g errgroup.Group
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			errCh := make(chan error, 1)
			submitErr := r.pool.Submit(func() {
				acc := c[0]
				var err error
				for _, e := range c[1:] {
					acc, err = apply(fn, []value.Value{acc, e})
					if err != nil {
						errCh <- err
						return
					}
				}
				partials[i] = acc
				errCh <- nil
			})
			if submitErr != nil {
				return submitErr
			}
			return <-errCh
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	acc := init
	for _, p := range partials {
		v, err := apply(fn, []value.Value{acc, p})
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

func chunk(elems []value.Value, size int) [][]value.Value {
	var chunks [][]value.Value
	for i := 0; i < len(elems); i += size {
		end := i + size
		if end > len(elems) {
			end = len(elems)
		}
		chunks = append(chunks, elems[i:end])
	}
	return chunks
}

// Swap runs the compare-and-retry loop behind swap! (§4.9): fn is
// applied to the atom's current value plus any extra args, and the
// result is installed only if the atom wasn't concurrently changed;
// otherwise fn re-runs against the new current value.
func Swap(apply Applier, atom *value.Atom, fn value.Value, extraArgs []value.Value) (value.Value, error) {
	for {
		old := atom.Load()
		args := append([]value.Value{old}, extraArgs...)
		next, err := apply(fn, args)
		if err != nil {
			return nil, err
		}
		if atom.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}

// NewAdmission builds a semaphore bounding how many concurrent
// goroutines a cancellation scope admits at once (§4.9's scopes are
// advisory cancellation tokens; bounding admission keeps a scope's fan-
// out from unbounded goroutine growth when max > 0).
func NewAdmission(max int64) *semaphore.Weighted {
	if max <= 0 {
		max = 1 << 20 // effectively unbounded
	}
	return semaphore.NewWeighted(max)
}

// --- Channel operations (§4.9 "send!/recv!/close!") ---

// Send pushes v onto ch, returning an error if ch is already closed.
func Send(ch *value.Channel, v value.Value) (err error) {
	if ch.Closed() {
		return fmt.Errorf("concurrency: send on closed channel")
	}
	defer func() {
		if recover() != nil {
			err = fmt.Errorf("concurrency: send on closed channel")
		}
	}()
	ch.Ch <- v
	return nil
}

// Recv waits for a value, or until timeout elapses (timeout<=0 waits
// forever), returning (value, true) or (nil, false) once the channel is
// closed and drained.
func Recv(ch *value.Channel, timeout time.Duration) (value.Value, bool, error) {
	if timeout <= 0 {
		v, ok := <-ch.Ch
		return v, ok, nil
	}
	select {
	case v, ok := <-ch.Ch:
		return v, ok, nil
	case <-time.After(timeout):
		return nil, false, fmt.Errorf("concurrency: recv timed out after %s", timeout)
	}
}

// TryRecv performs a non-blocking receive.
func TryRecv(ch *value.Channel) (value.Value, bool) {
	select {
	case v, ok := <-ch.Ch:
		return v, ok
	default:
		return nil, false
	}
}

// Close marks ch closed, idempotently (§4.9 "close! on an
// already-closed channel is a no-op").
func Close(ch *value.Channel) {
	if ch.MarkClosed() {
		close(ch.Ch)
	}
}

// FanOut creates n channels, each pre-loaded with its own copy of v
// (§4.9 "fan-out(value, n) creates n channels each carrying a copy").
func FanOut(v value.Value, n int) []*value.Channel {
	chans := make([]*value.Channel, n)
	for i := range chans {
		ch := value.NewChannel(1)
		ch.Ch <- v
		chans[i] = ch
	}
	return chans
}

// FanIn multiplexes every channel in chans into one returned channel,
// which closes once all of them have closed and drained (§4.9
// "fan-in(channels) multiplexes into one channel").
func FanIn(chans []*value.Channel) *value.Channel {
	out := value.NewChannel(0)
	var wg sync.WaitGroup
	wg.Add(len(chans))
	for _, ch := range chans {
		ch := ch
		go func() {
			defer wg.Done()
			for v := range ch.Ch {
				out.Ch <- v
			}
		}()
	}
	go func() {
		wg.Wait()
		Close(out)
	}()
	return out
}
