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

// newNonblockingSocket creates a non-blocking, close-on-exec socket for
// the given network family/type ("tcp4"/"tcp6" style addresses are
// resolved by the caller; this only needs the raw family/socktype pair).
func newNonblockingSocket(family, sotype int) (int, error) {
	fd, err := unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

// sockaddrFromTCPAddr converts a resolved *net.TCPAddr into the
// golang.org/x/sys/unix sockaddr form Connect/Bind expect, and reports the
// address family to use for the socket.
func sockaddrFromTCPAddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, unix.AF_INET, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], addr.IP.To16())
	return &sa, unix.AF_INET6, nil
}

// tcpAddrFromSockaddr is the inverse of sockaddrFromTCPAddr, used to report
// RemoteAddr/LocalAddr on an accepted or connected socket.
func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}

func socketErrno(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}
