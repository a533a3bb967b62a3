// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package corosio

// On Windows the reactor itself (Reactor.Wakeup, reactor_windows.go) uses
// PostQueuedCompletionStatus to unblock a pending Poll; there is no
// separate wake file descriptor to create.
func createWakeFD() (readFD, writeFD int, err error) { return -1, -1, nil }

func drainWakeFD(int) {}

func signalWakeFD(int) error { return nil }
