// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

// Dispatcher accepts continuations for execution on whatever goroutine (or
// run-loop turn) it owns. *Context is the only Dispatcher implementation in
// this package, but the interface exists so Task[T] and the operation
// machinery never depend on the concrete type: an interface value here
// already carries the (data pointer, method table) pair a type-erased
// dispatcher handle needs, so no separate wrapper type is required.
type Dispatcher interface {
	// Dispatch posts fn to run later on this dispatcher's context.
	Dispatch(fn func())
}

// sameDispatcher reports whether a and b are backed by the same *Context.
// Continuations take the symmetric-transfer fast path only when this
// returns true: comparing interface values directly is not sufficient,
// since two distinct interface types wrapping an identical pointer must
// still be treated as the same dispatcher, matching the "equality
// iff data pointers are equal" invariant for any_dispatcher.
func sameDispatcher(a, b Dispatcher) bool {
	ca, aok := a.(*Context)
	cb, bok := b.(*Context)
	if !aok || !bok {
		return false
	}
	return ca == cb
}

// InlineDispatcher runs continuations synchronously on whatever goroutine
// calls Dispatch. It is useful in tests and for adapting callback-style
// code into the Task[T] protocol without a *Context.
type InlineDispatcher struct{}

func (InlineDispatcher) Dispatch(fn func()) { fn() }
