// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package corosio

import (
	"net"

	"golang.org/x/sys/unix"
)

// Dial resolves address and establishes a non-blocking TCP connection to
// it, returning a *StreamSocket once the connection completes. Name
// resolution is blocking (net.ResolveTCPAddr uses the stdlib resolver), so
// it runs on a dedicated goroutine bridged back onto ctx exactly the way
// NewTask bridges arbitrary synchronous work; only the connect(2) call
// itself runs as a reactor-driven Operation.
func Dial(ctx *Context, tok StopToken, network, address string) *Task[*StreamSocket] {
	result := newTask[*StreamSocket](ctx)
	ctx.onWorkStarted()
	go func() {
		defer ctx.onWorkFinished()
		addr, err := net.ResolveTCPAddr(network, address)
		ctx.DispatchInternal(func() {
			if err != nil {
				result.complete(nil, err)
				return
			}
			startConnect(ctx, tok, addr, result)
		})
	}()
	return result
}

func startConnect(ctx *Context, tok StopToken, addr *net.TCPAddr, result *Task[*StreamSocket]) {
	sa, family, err := sockaddrFromTCPAddr(addr)
	if err != nil {
		result.complete(nil, err)
		return
	}
	fd, err := newNonblockingSocket(family, unix.SOCK_STREAM)
	if err != nil {
		result.complete(nil, WrapPlatformError("socket", err))
		return
	}
	s := newStreamSocket(ctx, fd)
	s.connectOp.arm(fd, EventWrite, ctx, tok, func(_ int, err error) {
		if err != nil {
			_ = s.Close()
			result.complete(nil, err)
			return
		}
		result.complete(s, nil)
	})

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		s.connectOp.complete(0, nil)
	case err == unix.EINPROGRESS:
		if rerr := s.registerConnect(); rerr != nil {
			s.connectOp.complete(0, rerr)
		}
	default:
		s.connectOp.complete(0, WrapPlatformError("connect", err))
	}
}
