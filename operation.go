// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import "sync/atomic"

// Operation represents the state a single outstanding I/O call needs
// between the moment it is armed on
// the reactor and the moment its completion (or cancellation) resumes its
// caller. It is never heap-allocated on its own; StreamSocket (read, write
// and connect) and Acceptor (accept) each embed exactly the Operation
// fields their protocol needs, which is what
// enforces the "at most one read and one write operation may be
// outstanding per stream at a time" invariant: starting a second read
// reuses the same embedded Operation and is rejected outright.
type Operation struct {
	// fd is the platform descriptor this operation was last armed against.
	// It is not reset when the operation completes.
	fd int
	// events records which readiness this operation is waiting for.
	events IOEvents

	inFlight atomic.Bool
	ready    atomic.Bool
	canceled atomic.Bool

	dispatcher  Dispatcher
	deregister  func()
	cancelToken StopToken

	// resume is invoked at most once per arm, via complete, with the
	// syscall result (or ErrCanceled if a stop was requested meanwhile).
	resume func(n int, err error)
}

// arm marks the operation as outstanding, panicking with
// ErrOperationInFlight if one is already running — the concrete mechanism
// behind the "at most one read/write in flight" invariant.
func (op *Operation) arm(fd int, events IOEvents, dispatcher Dispatcher, tok StopToken, resume func(int, error)) {
	if !op.inFlight.CompareAndSwap(false, true) {
		panic(ErrOperationInFlight)
	}
	op.fd = fd
	op.events = events
	op.dispatcher = dispatcher
	op.resume = resume
	op.ready.Store(false)
	op.canceled.Store(false)
	op.cancelToken = tok

	if tok.CanBeStopped() {
		op.deregister = tok.OnStop(op.requestCancel)
	} else {
		op.deregister = nil
	}
}

// requestCancel is invoked by the owning StopToken's source when a stop is
// requested. It flags the operation as canceled; the reactor (or whatever
// polls next) observes the flag and delivers KindCanceled the next time it
// would otherwise deliver a completion, per the "exactly-once
// completion" invariant applying uniformly to both outcomes.
func (op *Operation) requestCancel() {
	op.canceled.Store(true)
}

// complete delivers exactly one completion to the operation's resume
// callback, via its dispatcher. Calling complete more than once for the
// same arm is a no-op, guarding the exactly-once invariant even if a
// reactor backend and a cancellation race to complete the same operation.
func (op *Operation) complete(n int, err error) {
	if !op.ready.CompareAndSwap(false, true) {
		return
	}
	if op.canceled.Load() && err == nil {
		err = ErrCanceled
	}
	if op.deregister != nil {
		op.deregister()
		op.deregister = nil
	}
	resume := op.resume
	dispatcher := op.dispatcher
	op.inFlight.Store(false)
	if resume == nil {
		return
	}
	if ctx, ok := dispatcher.(*Context); ok && ctx.runningInThisGoroutine() {
		resume(n, err)
		return
	}
	dispatcher.Dispatch(func() { resume(n, err) })
}

// InFlight reports whether this operation currently has an outstanding
// call armed against it.
func (op *Operation) InFlight() bool { return op.inFlight.Load() }
