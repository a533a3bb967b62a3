// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package corosio

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const maxFDs = 65536

type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

type IOCallback func(IOEvents)

type fdRegistration struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// Reactor is the kqueue-backed completion source for a Context. Every
// registration uses EV_ONESHOT: a descriptor fires at most once per
// Register/Rearm call.
type Reactor struct { // betteralign:ignore
	_        [64]byte
	kq       int32
	_        [60]byte
	eventBuf [256]unix.Kevent_t
	fds      [maxFDs]fdRegistration
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func (r *Reactor) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	r.kq = int32(kq)
	return nil
}

func (r *Reactor) Close() error {
	r.closed.Store(true)
	if r.kq > 0 {
		return unix.Close(int(r.kq))
	}
	return nil
}

func (r *Reactor) Register(fd int, events IOEvents, cb IOCallback) error {
	if r.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	r.fdMu.Lock()
	r.fds[fd] = fdRegistration{callback: cb, events: events, active: true}
	r.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(int(r.kq), kevents, nil, nil); err != nil {
			r.fdMu.Lock()
			r.fds[fd] = fdRegistration{}
			r.fdMu.Unlock()
			return err
		}
	}
	return nil
}

// Rearm re-registers fd for another one-shot delivery.
func (r *Reactor) Rearm(fd int, events IOEvents) error {
	r.fdMu.Lock()
	r.fds[fd] = fdRegistration{callback: r.fds[fd].callback, events: events, active: true}
	r.fdMu.Unlock()
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(int(r.kq), kevents, nil, nil)
	return err
}

func (r *Reactor) Unregister(fd int) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	r.fdMu.Lock()
	events := r.fds[fd].events
	r.fds[fd] = fdRegistration{}
	r.fdMu.Unlock()
	kevents := eventsToKevents(fd, events, unix.EV_DELETE)
	if len(kevents) > 0 {
		unix.Kevent(int(r.kq), kevents, nil, nil)
	}
	return nil
}

func (r *Reactor) Poll(timeoutMs int) (int, error) {
	if r.closed.Load() {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1000000)}
	}
	n, err := unix.Kevent(int(r.kq), nil, r.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(r.eventBuf[i].Ident)
		if fd < 0 || fd >= maxFDs {
			continue
		}
		r.fdMu.RLock()
		reg := r.fds[fd]
		r.fdMu.RUnlock()
		if reg.active && reg.callback != nil {
			reg.callback(keventToEvents(&r.eventBuf[i]))
		}
	}
	return n, nil
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
