// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package corosio

import "golang.org/x/sys/unix"

// acceptNonblocking accepts a connection and puts the new descriptor into
// non-blocking, close-on-exec mode. Darwin's accept(2) has no accept4(2)
// equivalent, so the two flags are set with separate fcntl calls.
func acceptNonblocking(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	if _, err := unix.FcntlInt(uintptr(nfd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}
