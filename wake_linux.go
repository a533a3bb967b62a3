// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package corosio

import "golang.org/x/sys/unix"

const (
	wakeCloexec  = unix.EFD_CLOEXEC
	wakeNonblock = unix.EFD_NONBLOCK
)

// createWakeFD returns a single eventfd used as both the read and write
// end of the context's wake channel: writing any value makes the reactor's
// next Poll return immediately.
func createWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, wakeCloexec|wakeNonblock)
	return fd, fd, err
}

func drainWakeFD(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func signalWakeFD(fd int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}
