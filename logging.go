// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger is used by NewContext when no WithLogger option is given.
// It writes newline-delimited JSON to os.Stderr via stumpy, matching the
// construction pattern stumpy's own examples use.
var defaultLogger = stumpy.L.New(stumpy.L.WithStumpy()).Logger()

var defaultLoggerPtr atomic.Pointer[logiface.Logger[logiface.Event]]

func init() { defaultLoggerPtr.Store(defaultLogger) }

// SetLogger replaces the package-wide default logger used by Contexts
// constructed without an explicit WithLogger option. It does not affect
// Contexts that already exist.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	if l == nil {
		l = logiface.New[logiface.Event]()
	}
	defaultLoggerPtr.Store(l)
}

// contextLogger adapts a *logiface.Logger[logiface.Event] to the small set
// of calls the runtime (Context, reactor wiring, timer and signal services)
// needs to make, so the rest of the package never has to guard against a
// nil logger.
type contextLogger struct {
	l *logiface.Logger[logiface.Event]
}

func newContextLogger(l *logiface.Logger[logiface.Event]) *contextLogger {
	if l == nil {
		l = defaultLoggerPtr.Load()
	}
	return &contextLogger{l: l}
}

func (c *contextLogger) errf(format string, args ...any) {
	if c == nil || c.l == nil {
		return
	}
	if b := c.l.Err(); b.Enabled() {
		b.Logf(format, args...)
	}
}

func (c *contextLogger) debugf(format string, args ...any) {
	if c == nil || c.l == nil {
		return
	}
	if b := c.l.Debug(); b.Enabled() {
		b.Logf(format, args...)
	}
}

func (c *contextLogger) warnErr(op string, err error) {
	if c == nil || c.l == nil || err == nil {
		return
	}
	if b := c.l.Warning(); b.Enabled() {
		b.Str("op", op).Err(err).Log("operation failed")
	}
}
