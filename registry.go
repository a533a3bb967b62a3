// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"reflect"
	"sync"
)

// Shutdowner is implemented by services that need to release resources
// (file descriptors, background goroutines) when their owning Context
// shuts down.
type Shutdowner interface {
	Shutdown()
}

// serviceEntry pairs a stored service value with its registration order,
// so shutdown can run handlers in reverse creation order.
type serviceEntry struct {
	value any
	order int
}

// serviceRegistry is a type-keyed singleton table, one per *Context. It
// replaces the weak-pointer promise registry this package started from:
// services are not garbage-collected independently of their context, they
// are owned by it and torn down deterministically at shutdown.
type serviceRegistry struct {
	mu      sync.Mutex
	entries map[reflect.Type]*serviceEntry
	nextOrd int
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{entries: make(map[reflect.Type]*serviceEntry)}
}

func serviceKey[S any]() reflect.Type {
	return reflect.TypeFor[S]()
}

// UseService returns the context-scoped singleton of type S, constructing
// it with new on first use. Concurrent calls for the same type from
// different goroutines are serialized; the constructor runs at most once.
func UseService[S any](ctx *Context, new func(*Context) S) S {
	key := serviceKey[S]()

	r := ctx.services
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return e.value.(S)
	}
	r.mu.Unlock()

	// Construct outside the lock: constructors may recursively touch other
	// services or call back into the context.
	s := new(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		// Lost the race; discard our instance if it has teardown, since it
		// was never wired into anything.
		if sd, ok := any(s).(Shutdowner); ok {
			sd.Shutdown()
		}
		return e.value.(S)
	}
	r.entries[key] = &serviceEntry{value: s, order: r.nextOrd}
	r.nextOrd++
	return s
}

// FindService looks up a previously created service without constructing
// one.
func FindService[S any](ctx *Context) (S, bool) {
	var zero S
	key := serviceKey[S]()
	r := ctx.services
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return zero, false
	}
	return e.value.(S), true
}

// MakeService explicitly installs a service value, failing if one of that
// type is already registered.
func MakeService[S any](ctx *Context, s S) error {
	key := serviceKey[S]()
	r := ctx.services
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return ErrServiceAlreadyRegistered
	}
	r.entries[key] = &serviceEntry{value: s, order: r.nextOrd}
	r.nextOrd++
	return nil
}

// shutdownAll tears down every registered service in reverse creation
// order, matching typical service lifetime rules.
func (r *serviceRegistry) shutdownAll() {
	r.mu.Lock()
	ordered := make([]*serviceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		ordered = append(ordered, e)
	}
	r.entries = make(map[reflect.Type]*serviceEntry)
	r.mu.Unlock()

	// Sort descending by order (small N; services are few per context).
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].order < ordered[j].order; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	for _, e := range ordered {
		if sd, ok := e.value.(Shutdowner); ok {
			sd.Shutdown()
		}
	}
}
