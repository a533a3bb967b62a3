// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package corosio

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Acceptor listens for inbound connections and hands each one back as a
// *StreamSocket, the async counterpart of net.Listener.Accept.
type Acceptor struct {
	ctx        *Context
	fd         int
	acceptOp   Operation
	registered atomic.Bool
	closed     atomic.Bool
}

// Listen binds and starts listening on address ("host:port") for the
// given network ("tcp", "tcp4", or "tcp6").
func Listen(ctx *Context, network, address string) (*Acceptor, error) {
	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, err
	}
	sa, family, err := sockaddrFromTCPAddr(addr)
	if err != nil {
		return nil, err
	}
	fd, err := newNonblockingSocket(family, unix.SOCK_STREAM)
	if err != nil {
		return nil, WrapPlatformError("socket", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = closeFD(fd)
		return nil, WrapPlatformError("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = closeFD(fd)
		return nil, WrapPlatformError("listen", err)
	}
	return &Acceptor{ctx: ctx, fd: fd}, nil
}

// Accept waits for and returns the next inbound connection.
func (a *Acceptor) Accept(tok StopToken) *Task[*StreamSocket] {
	task := newTask[*StreamSocket](a.ctx)
	a.acceptOp.arm(a.fd, EventRead, a.ctx, tok, func(fd int, err error) {
		if err != nil {
			task.complete(nil, err)
			return
		}
		task.complete(newStreamSocket(a.ctx, fd), nil)
	})
	a.tryAccept()
	return task
}

func (a *Acceptor) tryAccept() {
	if !a.acceptOp.InFlight() {
		return
	}
	fd, err := acceptNonblocking(a.fd)
	switch {
	case err == nil:
		a.acceptOp.complete(fd, nil)
	case err == unix.EAGAIN:
		if rerr := a.register(); rerr != nil {
			a.acceptOp.complete(0, rerr)
		}
	default:
		a.acceptOp.complete(0, WrapPlatformError("accept", err))
	}
}

func (a *Acceptor) register() error {
	if a.registered.CompareAndSwap(false, true) {
		return a.ctx.reactor.Register(a.fd, EventRead, func(IOEvents) { a.tryAccept() })
	}
	return a.ctx.reactor.Rearm(a.fd, EventRead)
}

// LocalAddr returns the address the acceptor is bound to.
func (a *Acceptor) LocalAddr() *net.TCPAddr {
	sa, err := unix.Getsockname(a.fd)
	if err != nil {
		return nil
	}
	return tcpAddrFromSockaddr(sa)
}

// Close stops accepting new connections.
func (a *Acceptor) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = a.ctx.reactor.Unregister(a.fd)
	return closeFD(a.fd)
}
