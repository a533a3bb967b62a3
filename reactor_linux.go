// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package corosio

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const maxFDs = 65536

// IOEvents is a bitset of readiness conditions a reactor registration
// cares about.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// IOCallback is invoked, at most once per registration, with the
// readiness bits observed. The Operation embedded in the calling
// endpoint is responsible for re-registering if it wants to keep
// watching the descriptor.
type IOCallback func(IOEvents)

type fdRegistration struct {
	callback IOCallback
	active   bool
}

// Reactor is the epoll-backed completion source for a Context. Every
// registration is one-shot (EPOLLONESHOT): once delivered, a descriptor
// must be explicitly re-armed via Rearm before it is observed again.
type Reactor struct { // betteralign:ignore
	_        [64]byte
	epfd     int32
	_        [60]byte
	eventBuf [256]unix.EpollEvent
	fds      [maxFDs]fdRegistration
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func (r *Reactor) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	r.epfd = int32(epfd)
	return nil
}

func (r *Reactor) Close() error {
	r.closed.Store(true)
	if r.epfd > 0 {
		return unix.Close(int(r.epfd))
	}
	return nil
}

// Register arms fd for a single delivery of events.
func (r *Reactor) Register(fd int, events IOEvents, cb IOCallback) error {
	if r.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	r.fdMu.Lock()
	r.fds[fd] = fdRegistration{callback: cb, active: true}
	r.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events) | unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(int(r.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		r.fdMu.Lock()
		r.fds[fd] = fdRegistration{}
		r.fdMu.Unlock()
		return err
	}
	return nil
}

// Rearm re-registers a fd previously delivered, for another single
// delivery of events.
func (r *Reactor) Rearm(fd int, events IOEvents) error {
	if r.closed.Load() {
		return ErrPollerClosed
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events) | unix.EPOLLONESHOT, Fd: int32(fd)}
	return unix.EpollCtl(int(r.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// Unregister removes fd from the reactor entirely. Callers close the fd
// themselves afterward.
func (r *Reactor) Unregister(fd int) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	r.fdMu.Lock()
	r.fds[fd] = fdRegistration{}
	r.fdMu.Unlock()
	return unix.EpollCtl(int(r.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// Poll blocks up to timeoutMs (negative blocks indefinitely) and
// dispatches any events observed, returning the number dispatched.
func (r *Reactor) Poll(timeoutMs int) (int, error) {
	if r.closed.Load() {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(int(r.epfd), r.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(r.eventBuf[i].Fd)
		r.fdMu.RLock()
		reg := r.fds[fd]
		r.fdMu.RUnlock()
		if reg.active && reg.callback != nil {
			reg.callback(epollToEvents(r.eventBuf[i].Events))
		}
	}
	return n, nil
}

func eventsToEpoll(events IOEvents) uint32 {
	e := uint32(unix.EPOLLET)
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
