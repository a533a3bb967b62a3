package corosio

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPlatformErrorClassifiesConnectionClosed(t *testing.T) {
	cases := []syscall.Errno{syscall.ECONNRESET, syscall.EPIPE, syscall.ENOTCONN, syscall.ESHUTDOWN}
	for _, errno := range cases {
		err := WrapPlatformError("read", errno)
		assert.Equal(t, KindConnectionClosed, err.Kind, "errno %v", errno)
		assert.ErrorIs(t, err, ErrConnectionClosed, "errno %v", errno)
	}
}

func TestWrapPlatformErrorClassifiesCanceled(t *testing.T) {
	err := WrapPlatformError("read", syscall.ECANCELED)
	assert.Equal(t, KindCanceled, err.Kind)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestWrapPlatformErrorDefaultsToPlatform(t *testing.T) {
	err := WrapPlatformError("read", syscall.EACCES)
	assert.Equal(t, KindPlatform, err.Kind)
	assert.Equal(t, syscall.EACCES, err.Errno)
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError("op", KindLogic, "wrapped")
	err.cause = cause

	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := NewError("read", KindEOF, "eof")
	b := NewError("write", KindEOF, "eof")
	c := NewError("read", KindPlatform, "other")

	assert.True(t, errors.Is(a, b), "errors with the same Kind should match via Is")
	assert.False(t, errors.Is(a, c), "errors with different Kinds should not match via Is")
}
