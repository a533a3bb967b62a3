// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package corosio's reactor registers file descriptors for readiness (or,
// on Windows, completion) notifications and dispatches exactly one
// IOCallback per event to the registering Operation.
//
// Each platform backend arms a descriptor for a single readiness episode
// at a time (epoll one-shot on Linux, EV_ONESHOT on Darwin, a completion
// key per overlapped call on Windows) rather than the level-triggered,
// persistent registration a generic multiplexer would use: a
// Operation protocol always re-arms explicitly after a short read or
// write, so a one-shot reactor matches the access pattern exactly and
// avoids spurious wakeups for operations that are not currently pending.
//
//   - reactor_linux.go (epoll)
//   - reactor_darwin.go (kqueue)
//   - reactor_windows.go (IOCP)
package corosio

import "errors"

// IOEvents is implemented per-platform in reactor_<os>.go; the event bits
// (EventRead, EventWrite, EventError, EventHangup) share the same meaning
// across platforms even though their underlying values differ.

var (
	ErrFDOutOfRange = errors.New("corosio: fd out of range")
	ErrPollerClosed = errors.New("corosio: reactor closed")
)
