//go:build linux || darwin

package corosio

import (
	"golang.org/x/sys/unix"
)

// closeFD closes a file descriptor on Unix systems.
func closeFD(fd int) error {
	return unix.Close(fd)
}
