// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import "sync"

// StopToken lets an in-flight operation observe a cancellation request
// raised by its owning StopSource. It is the Go shape of the stop-token
// an operation record carries: a cheap value to pass down into
// ReadSome/WriteSome/Timer.Wait, backed by the same state as the
// StopSource that issued it.
//
// A zero StopToken (StopToken{}) never fires; it is the value endpoint
// methods use internally when a caller does not supply one.
type StopToken struct {
	src *StopSource
}

// Stopped reports whether the owning StopSource has requested a stop.
func (t StopToken) Stopped() bool {
	return t.src != nil && t.src.Stopped()
}

// OnStop registers a callback to run (synchronously, on whichever goroutine
// calls Stop) the first time a stop is requested. If a stop has already
// been requested, the callback runs immediately on the calling goroutine.
// OnStop returns a deregistration function; calling it before the callback
// has fired prevents it from firing.
//
// This is the Go analogue of a stop_callback: an Operation
// registers one of these to drive request_cancel() on its platform
// descriptor when the token fires.
func (t StopToken) OnStop(fn func()) (deregister func()) {
	if t.src == nil || fn == nil {
		return func() {}
	}
	return t.src.onStop(fn)
}

// CanBeStopped reports whether this token is backed by a live StopSource.
func (t StopToken) CanBeStopped() bool {
	return t.src != nil
}

// StopSource is the owning half of the stop-token pair: exactly one
// component (typically whoever issues a composed operation) creates a
// StopSource, hands out its Token() to the async calls it starts, and
// calls Stop() to request that they unwind early.
//
// Stop is idempotent and safe to call from any goroutine, including
// concurrently with Token()/OnStop registrations.
type StopSource struct {
	mu       sync.Mutex
	stopped  bool
	handlers []func()
}

// NewStopSource creates a fresh, unstopped StopSource.
func NewStopSource() *StopSource {
	return &StopSource{}
}

// Token returns a StopToken bound to this source. Multiple calls return
// tokens that observe the same underlying state.
func (s *StopSource) Token() StopToken {
	return StopToken{src: s}
}

// Stopped reports whether Stop has been called.
func (s *StopSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop requests cancellation. The first call runs every registered handler,
// in registration order, on the calling goroutine; subsequent calls are
// no-ops. Handlers must not block.
func (s *StopSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h()
		}
	}
}

func (s *StopSource) onStop(fn func()) func() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	idx := len(s.handlers)
	s.handlers = append(s.handlers, fn)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.handlers) {
			s.handlers[idx] = nil
		}
	}
}
