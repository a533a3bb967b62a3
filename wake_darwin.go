// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package corosio

import "golang.org/x/sys/unix"

// createWakeFD returns a self-pipe: Darwin's kqueue has no eventfd
// equivalent, so a non-blocking pipe is the idiomatic substitute.
func createWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func drainWakeFD(fd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func signalWakeFD(fd int) error {
	var buf [1]byte
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}
