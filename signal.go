// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"os"
	"os/signal"
	"sync"
)

// SignalSet bridges os/signal's process-wide delivery onto a Context,
// the way a signal_set adapts the platform's async signal
// mechanism: AsyncWait resolves the next time one of the registered
// signals arrives, one waiter at a time.
type SignalSet struct {
	ctx *Context

	mu         sync.Mutex
	sigs       []os.Signal
	relay      chan os.Signal
	waiting    *Task[os.Signal]
	pending    []os.Signal
	deregister func()
	closed     bool
}

// NewSignalSet creates a SignalSet bound to ctx, watching for the given
// signals. It does not start relaying until the first AsyncWait.
func NewSignalSet(ctx *Context, sigs ...os.Signal) *SignalSet {
	return &SignalSet{ctx: ctx, sigs: sigs}
}

// AsyncWait completes with the next signal delivered to this set. Only
// one AsyncWait may be outstanding at a time; arming a second before the
// first settles panics with ErrOperationInFlight, mirroring Operation's
// single-outstanding-call invariant.
//
// A signal that arrives with no AsyncWait outstanding is not lost: pump
// queues it as undelivered, and AsyncWait checks that queue before it ever
// arms a new wait, so a signal delivered just ahead of the call that would
// have observed it is still handed to the caller.
func (s *SignalSet) AsyncWait(tok StopToken) *Task[os.Signal] {
	s.mu.Lock()
	if s.waiting != nil {
		s.mu.Unlock()
		panic(ErrOperationInFlight)
	}
	if len(s.pending) > 0 {
		sig := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		task := newTask[os.Signal](s.ctx)
		task.complete(sig, nil)
		return task
	}
	if s.relay == nil {
		s.relay = make(chan os.Signal, 1)
		signal.Notify(s.relay, s.sigs...)
		s.ctx.onWorkStarted()
		go s.pump()
	}
	task := newTask[os.Signal](s.ctx)
	s.waiting = task
	if tok.CanBeStopped() {
		s.deregister = tok.OnStop(func() {
			s.mu.Lock()
			w := s.waiting
			s.waiting = nil
			s.deregister = nil
			s.mu.Unlock()
			if w != nil {
				s.ctx.DispatchInternal(func() { w.complete(nil, ErrCanceled) })
			}
		})
	} else {
		s.deregister = nil
	}
	s.mu.Unlock()

	return task
}

func (s *SignalSet) pump() {
	defer s.ctx.onWorkFinished()
	for sig := range s.relay {
		s.mu.Lock()
		w := s.waiting
		deregister := s.deregister
		s.waiting = nil
		s.deregister = nil
		closed := s.closed
		if w == nil && !closed {
			// No waiter: bank it as undelivered rather than dropping it,
			// so the next AsyncWait observes it immediately.
			s.pending = append(s.pending, sig)
		}
		s.mu.Unlock()
		if deregister != nil {
			deregister()
		}
		if w != nil {
			s.ctx.DispatchInternal(func() { w.complete(sig, nil) })
		}
		if closed {
			return
		}
	}
}

// Close stops relaying signals to this set, resolving any outstanding
// AsyncWait with ErrCanceled.
func (s *SignalSet) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	relay := s.relay
	w := s.waiting
	s.waiting = nil
	s.mu.Unlock()

	if relay != nil {
		signal.Stop(relay)
		close(relay)
	}
	if w != nil {
		s.ctx.DispatchInternal(func() { w.complete(nil, ErrCanceled) })
	}
}
