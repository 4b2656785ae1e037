// SPDX-License-Identifier: MPL-2.0

// Package hooks implements a named publish/subscribe bus: on, off, fire
// for the pipeline's lifecycle events.
package hooks

import (
	"log/slog"
	"sync"
)

// Event names the pipeline fires at each lifecycle point.
type Event string

const (
	PreResolve      Event = "pre-resolve"
	PostResolve     Event = "post-resolve"
	PreInstall      Event = "pre-install"
	PostInstall     Event = "post-install"
	PreLoad         Event = "pre-load"
	PostLoad        Event = "post-load"
	Ready           Event = "ready"
	PackageDisabled Event = "package-disabled"
)

// Handler reacts to a fired event. A returned error is logged but never
// halts the remaining handlers or the caller's pipeline.
type Handler func(args ...any) error

// Bus is a named pub/sub registry. Handlers registered under the same
// Event are deduplicated by the key passed to On: registering the same
// (event, key) pair again replaces the prior handler in place rather than
// appending a second one.
type Bus struct {
	mu       sync.Mutex
	handlers map[Event][]registration
	next     int
	logger   *slog.Logger
}

type registration struct {
	token   int
	key     string
	handler Handler
}

// New creates an empty Bus. logger receives a warning per failing
// handler; pass nil to use slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Event][]registration),
		logger:   logger,
	}
}

// On registers handler under event, keyed by key, and returns a token
// usable with Off. A second On call with the same (event, key) pair
// replaces the handler in its existing registration-order slot rather
// than appending another one.
func (b *Bus) On(event Event, key string, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	token := b.next

	regs := b.handlers[event]
	for i, r := range regs {
		if r.key == key {
			regs[i] = registration{token: token, key: key, handler: handler}
			return token
		}
	}
	b.handlers[event] = append(regs, registration{token: token, key: key, handler: handler})
	return token
}

// Off removes the handler registered under token, if any.
func (b *Bus) Off(event Event, token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[event]
	for i, r := range regs {
		if r.token == token {
			b.handlers[event] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Fire invokes every handler registered under event, in registration
// order, with args. A handler's error is logged and does not stop the
// remaining handlers from running.
func (b *Bus) Fire(event Event, args ...any) {
	b.mu.Lock()
	regs := append([]registration(nil), b.handlers[event]...)
	b.mu.Unlock()

	for _, r := range regs {
		if err := r.handler(args...); err != nil {
			b.logger.Warn("hook handler failed", "event", string(event), "error", err)
		}
	}
}
