// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package corosio

import (
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"
)

type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

type IOCallback func(IOEvents)

// Reactor wraps a Windows I/O completion port. Unlike the epoll/kqueue
// backends, IOCP dispatches by completion key rather than by descriptor:
// AssociateHandle hands back an opaque key that the caller threads
// through its overlapped calls, and Poll looks the callback up by that
// key in the byKey map. This is the direct analogue of a
// "handler key / I/O key" completion-key dispatch table.
type Reactor struct {
	iocp   windows.Handle
	mu     sync.RWMutex
	byKey  map[uintptr]IOCallback
	nextID atomic.Uintptr
	closed atomic.Bool
}

func (r *Reactor) init() error {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	r.iocp = iocp
	r.byKey = make(map[uintptr]IOCallback)
	r.nextID.Store(1)
	return nil
}

func (r *Reactor) Close() error {
	r.closed.Store(true)
	if r.iocp != 0 {
		return windows.CloseHandle(r.iocp)
	}
	return nil
}

// AssociateHandle associates a raw handle with the completion port and
// returns the completion key future completions against it will carry.
func (r *Reactor) AssociateHandle(h windows.Handle) (uintptr, error) {
	if r.closed.Load() {
		return 0, ErrPollerClosed
	}
	key := r.nextID.Add(1)
	if _, err := windows.CreateIoCompletionPort(h, r.iocp, key, 0); err != nil {
		return 0, err
	}
	return key, nil
}

// Register binds a callback to a completion key previously obtained from
// AssociateHandle.
func (r *Reactor) Register(key uintptr, cb IOCallback) {
	r.mu.Lock()
	r.byKey[key] = cb
	r.mu.Unlock()
}

// Unregister removes a completion key's callback.
func (r *Reactor) Unregister(key uintptr) {
	r.mu.Lock()
	delete(r.byKey, key)
	r.mu.Unlock()
}

// Poll blocks for a single completion packet and dispatches it.
func (r *Reactor) Poll(timeoutMs int) (int, error) {
	if r.closed.Load() {
		return 0, ErrPollerClosed
	}
	var timeout *uint32
	if timeoutMs >= 0 {
		t := uint32(timeoutMs)
		timeout = &t
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(r.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			if errno == windows.WAIT_TIMEOUT {
				return 0, nil
			}
			if errno == windows.ERROR_ABANDONED_WAIT_0 || errno == windows.ERROR_INVALID_HANDLE {
				return 0, ErrPollerClosed
			}
		}
		return 0, err
	}
	if overlapped == nil {
		// A PostQueuedCompletionStatus wakeup, not an I/O completion.
		return 0, nil
	}

	r.mu.RLock()
	cb := r.byKey[key]
	r.mu.RUnlock()
	if cb != nil {
		cb(EventRead | EventWrite)
	}
	return 1, nil
}

// Wakeup unblocks a pending Poll call from another goroutine.
func (r *Reactor) Wakeup() error {
	if r.closed.Load() {
		return ErrPollerClosed
	}
	return windows.PostQueuedCompletionStatus(r.iocp, 0, 0, nil)
}
