// SPDX-License-Identifier: MPL-2.0

// Package installer implements the keyed-future pool the loader's pass 1
// submits clone tasks to and pass 2 drains.
package installer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one completed task, holding the key it was
// submitted under for bookkeeping convenience.
type Result struct {
	Key string
	Err error
}

// Future is a handle to a background task. Await blocks until the task
// completes and consumes the future: a second Await on the same Future
// panics, matching the spec's "await consumes the future" contract.
type Future struct {
	key  string
	done chan struct{}
	err  error

	consumed bool
}

// Await blocks until the task completes and returns its error.
func (f *Future) Await() Result {
	if f.consumed {
		panic("installer: Future already awaited for key " + f.key)
	}
	<-f.done
	f.consumed = true
	return Result{Key: f.key, Err: f.err}
}

// Task is a unit of background work submitted under a key.
type Task func(ctx context.Context) error

// Pool runs at most one task per key concurrently, bounding the total
// number of tasks running at once to Concurrency via an errgroup.
// Submitting a new task under a key that is already in flight, or whose
// prior result has not been awaited, evicts the caller's hold on that
// key's previous future — the new task starts only once the previous
// task has finished, and the old future's result is simply dropped by
// whoever forgot to await it.
type Pool struct {
	mu      sync.Mutex
	pending map[string]*Future
	ctx     context.Context
	group   *errgroup.Group
}

// New creates a Pool whose tasks are run with ctx as their base context,
// at most concurrency of them at once (0 or negative means unbounded).
func New(ctx context.Context, concurrency int) *Pool {
	if ctx == nil {
		ctx = context.Background()
	}
	g := &errgroup.Group{}
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	return &Pool{
		pending: make(map[string]*Future),
		ctx:     ctx,
		group:   g,
	}
}

// Defer submits task under key, blocking only long enough to acquire a
// concurrency slot, and returns a Future for it, evicting any previous
// future registered under key.
func (p *Pool) Defer(key string, task Task) *Future {
	future := &Future{key: key, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.pending[key]
	p.pending[key] = future
	p.mu.Unlock()

	p.group.Go(func() error {
		defer close(future.done)
		if prev != nil {
			<-prev.done
		}
		future.err = task(p.ctx)
		return nil
	})

	return future
}

// Wait blocks until every task submitted so far has completed. It never
// returns an error itself — per-task errors live on their own Futures —
// it exists only so callers can synchronize pass 1's fan-out before
// starting pass 2's drain without awaiting each future up front.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// Pending returns the in-flight or undrained Future for key, if the
// caller lost track of one returned by an earlier Defer call.
func (p *Pool) Pending(key string) (*Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.pending[key]
	return f, ok
}

// Forget drops the bookkeeping entry for key once its future has been
// awaited, so Pending no longer reports it.
func (p *Pool) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, key)
}
