// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import "sync/atomic"

// ContextState is the lifecycle state of an execution context.
//
//	Idle (0) -> Running (3)       [Run entered]
//	Running (3) -> Idle (0)       [last concurrent Run returned]
//	any -> Stopping (4)           [Stop or Close called]
//	Stopping (4) -> Stopped (1)   [shutdown drained]
//	any -> Idle (0)               [Restart while not running]
//
// Sleeping (2) is defined, and accepted by Run as a starting state, but
// the run loop never enters it.
//
// Values are assigned in this order for parity with the run-loop this type
// is adapted from; the numbering itself carries no meaning outside this
// package.
type ContextState uint64

const (
	StateIdle     ContextState = 0
	StateStopped  ContextState = 1
	StateSleeping ContextState = 2
	StateRunning  ContextState = 3
	StateStopping ContextState = 4
)

func (s ContextState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// contextState is a lock-free state machine, cache-line padded to avoid
// false sharing with neighboring hot fields on *Context.
type contextState struct {
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newContextState() *contextState {
	s := &contextState{}
	s.v.Store(uint64(StateIdle))
	return s
}

func (s *contextState) Load() ContextState { return ContextState(s.v.Load()) }

func (s *contextState) Store(v ContextState) { s.v.Store(uint64(v)) }

func (s *contextState) TryTransition(from, to ContextState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *contextState) TransitionAny(validFrom []ContextState, to ContextState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

func (s *contextState) IsRunning() bool {
	switch s.Load() {
	case StateRunning, StateSleeping:
		return true
	default:
		return false
	}
}

func (s *contextState) CanAcceptWork() bool {
	switch s.Load() {
	case StateIdle, StateRunning, StateSleeping:
		return true
	default:
		return false
	}
}
