// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

// Buffers type-erases over a single buffer or a scatter/gather list of
// buffers, the way mutable/const buffer sequences do, so
// StreamSocket's Read/Write methods can accept either without the caller
// wrapping a single []byte in a slice.
type Buffers [][]byte

// Buffer wraps a single []byte as a one-element Buffers.
func Buffer(b []byte) Buffers { return Buffers{b} }

// Total returns the sum of every buffer's length.
func (b Buffers) Total() int {
	var n int
	for _, x := range b {
		n += len(x)
	}
	return n
}

// Consume returns a copy of b with the first n bytes logically removed,
// trimming or dropping leading buffers as needed; zero-length buffers at
// the front of the result are dropped too. It is used after a short read
// or write to advance a scatter/gather sequence without copying the
// underlying buffer contents.
func (b Buffers) Consume(n int) Buffers {
	if n < 0 {
		return b
	}
	out := b
	for len(out) > 0 && (n > 0 || len(out[0]) == 0) {
		if n < len(out[0]) {
			out = append(Buffers{out[0][n:]}, out[1:]...)
			return out
		}
		n -= len(out[0])
		out = out[1:]
	}
	return out
}
