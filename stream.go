// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package corosio

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// StreamSocket is a non-blocking, connection-oriented byte stream armed
// against its Context's reactor, translating async_read_some /
// async_write_some pair into ReadSome/WriteSome Tasks. Exactly one read
// and one write may be outstanding at a time (Operation.arm enforces
// this); a single fd registration multiplexes both directions, since a
// reactor registration is keyed per descriptor rather than per direction.
type StreamSocket struct {
	ctx *Context
	fd  int

	mu         sync.Mutex
	registered atomic.Bool

	readOp     Operation
	readBuf    []byte
	readStart  time.Time
	writeOp    Operation
	writeBuf   []byte
	writeStart time.Time
	connectOp  Operation

	closed atomic.Bool
}

func newStreamSocket(ctx *Context, fd int) *StreamSocket {
	return &StreamSocket{ctx: ctx, fd: fd}
}

// FD exposes the underlying descriptor, for adapters (such as the TLS
// bridge) that need to know identity but not perform raw I/O themselves.
func (s *StreamSocket) FD() int { return s.fd }

// ReadSome reads at most len(buf) bytes, completing as soon as any data is
// available (or the connection reports EOF, an error, or tok fires). Reading
// into a zero-length buffer completes immediately with (0, nil) without
// arming the reactor: there is nothing to read into, so it is neither EOF
// nor an error.
func (s *StreamSocket) ReadSome(tok StopToken, buf []byte) *Task[int] {
	task := newTask[int](s.ctx)
	if len(buf) == 0 {
		task.complete(0, nil)
		return task
	}
	s.readBuf = buf
	s.readStart = time.Now()
	s.readOp.arm(s.fd, EventRead, s.ctx, tok, func(n int, err error) {
		s.recordLatency(s.readStart)
		task.complete(n, err)
	})
	s.tryRead()
	return task
}

// WriteSome writes at most len(buf) bytes, completing as soon as any of it
// has been accepted by the kernel.
func (s *StreamSocket) WriteSome(tok StopToken, buf []byte) *Task[int] {
	task := newTask[int](s.ctx)
	s.writeBuf = buf
	s.writeStart = time.Now()
	s.writeOp.arm(s.fd, EventWrite, s.ctx, tok, func(n int, err error) {
		s.recordLatency(s.writeStart)
		task.complete(n, err)
	})
	s.tryWrite()
	return task
}

// Read repeatedly calls ReadSome until every buffer in bufs is filled, EOF
// is reached, or an error occurs, returning the total bytes read.
func (s *StreamSocket) Read(tok StopToken, bufs Buffers) *Task[int] {
	out := newTask[int](s.ctx)
	var total int
	var step func(b Buffers)
	step = func(b Buffers) {
		if b.Total() == 0 {
			out.complete(total, nil)
			return
		}
		s.ReadSome(tok, b[0]).Then(s.ctx, func(n int, err error) {
			total += n
			if err != nil {
				out.complete(total, err)
				return
			}
			step(b.Consume(n))
		})
	}
	step(bufs)
	return out
}

// Write repeatedly calls WriteSome until every byte in bufs has been
// written or an error occurs, returning the total bytes written.
func (s *StreamSocket) Write(tok StopToken, bufs Buffers) *Task[int] {
	out := newTask[int](s.ctx)
	var total int
	var step func(b Buffers)
	step = func(b Buffers) {
		if b.Total() == 0 {
			out.complete(total, nil)
			return
		}
		s.WriteSome(tok, b[0]).Then(s.ctx, func(n int, err error) {
			total += n
			if err != nil {
				out.complete(total, err)
				return
			}
			step(b.Consume(n))
		})
	}
	step(bufs)
	return out
}

func (s *StreamSocket) recordLatency(start time.Time) {
	if s.ctx.metrics != nil {
		s.ctx.metrics.recordCompletion(time.Since(start))
	}
}

func (s *StreamSocket) tryRead() {
	if !s.readOp.InFlight() {
		return
	}
	n, err := unix.Read(s.fd, s.readBuf)
	switch {
	case err == nil && n == 0:
		s.readOp.complete(0, ErrEOF)
	case err == nil:
		s.readOp.complete(n, nil)
	case err == unix.EAGAIN:
		if rerr := s.updateRegistration(); rerr != nil {
			s.readOp.complete(0, rerr)
		}
	default:
		s.readOp.complete(0, WrapPlatformError("read", err))
	}
}

func (s *StreamSocket) tryWrite() {
	if !s.writeOp.InFlight() {
		return
	}
	n, err := unix.Write(s.fd, s.writeBuf)
	switch {
	case err == nil:
		s.writeOp.complete(n, nil)
	case err == unix.EAGAIN:
		if rerr := s.updateRegistration(); rerr != nil {
			s.writeOp.complete(0, rerr)
		}
	default:
		s.writeOp.complete(0, WrapPlatformError("write", err))
	}
}

func (s *StreamSocket) tryConnect() {
	if !s.connectOp.InFlight() {
		return
	}
	if err := socketErrno(s.fd); err != nil {
		s.connectOp.complete(0, WrapPlatformError("connect", err))
		return
	}
	s.connectOp.complete(0, nil)
}

// updateRegistration (re)arms the reactor for the union of whichever
// directions currently have an Operation in flight. A single descriptor
// registration covers read, write and connect completion alike, since
// epoll/kqueue key registrations by fd rather than by direction.
func (s *StreamSocket) updateRegistration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var want IOEvents
	if s.readOp.InFlight() {
		want |= EventRead
	}
	if s.writeOp.InFlight() || s.connectOp.InFlight() {
		want |= EventWrite
	}
	if want == 0 {
		return nil
	}
	if s.registered.CompareAndSwap(false, true) {
		return s.ctx.reactor.Register(s.fd, want, s.onEvents)
	}
	return s.ctx.reactor.Rearm(s.fd, want)
}

func (s *StreamSocket) onEvents(events IOEvents) {
	if s.connectOp.InFlight() {
		s.tryConnect()
	}
	if events&(EventRead|EventError|EventHangup) != 0 {
		s.tryRead()
	}
	if events&(EventWrite|EventError|EventHangup) != 0 {
		s.tryWrite()
	}
	_ = s.updateRegistration()
}

// Close releases the socket. Any Operation still in flight is completed
// with ErrConnectionClosed; Close itself does not block waiting for the
// resulting continuations to run.
func (s *StreamSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.ctx.reactor.Unregister(s.fd)
	for _, op := range []*Operation{&s.readOp, &s.writeOp, &s.connectOp} {
		if op.InFlight() {
			op.complete(0, ErrConnectionClosed)
		}
	}
	return closeFD(s.fd)
}

// LocalAddr returns the socket's bound local address.
func (s *StreamSocket) LocalAddr() *net.TCPAddr {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil
	}
	return tcpAddrFromSockaddr(sa)
}

// RemoteAddr returns the socket's connected peer address.
func (s *StreamSocket) RemoteAddr() *net.TCPAddr {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return nil
	}
	return tcpAddrFromSockaddr(sa)
}

func (s *StreamSocket) registerConnect() error {
	return s.updateRegistration()
}
