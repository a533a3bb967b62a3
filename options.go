// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import "github.com/joeycumines/logiface"

// contextOptions holds resolved configuration for Context construction.
type contextOptions struct {
	strictDispatchOrdering bool
	metricsEnabled         bool
	logger                 *logiface.Logger[logiface.Event]
}

// ContextOption configures a Context at construction time via NewContext.
type ContextOption interface {
	applyContext(*contextOptions) error
}

type contextOptionFunc func(*contextOptions) error

func (f contextOptionFunc) applyContext(o *contextOptions) error { return f(o) }

// WithStrictDispatchOrdering controls whether posted continuations are
// drained after every completion (true) or batched for throughput
// (false, the default). Strict ordering trades latency for a stronger
// FIFO guarantee across Dispatch calls made from outside the context's
// goroutine.
func WithStrictDispatchOrdering(enabled bool) ContextOption {
	return contextOptionFunc(func(o *contextOptions) error {
		o.strictDispatchOrdering = enabled
		return nil
	})
}

// WithMetrics enables the context's runtime counters (queue depths,
// completion latency), retrievable via Context.Metrics.
func WithMetrics(enabled bool) ContextOption {
	return contextOptionFunc(func(o *contextOptions) error {
		o.metricsEnabled = enabled
		return nil
	})
}

// WithLogger installs a structured logger used for the context's lifecycle
// and error events. A nil logger (the default) selects the package-wide
// logger installed by SetLogger, which writes JSON to stderr unless
// replaced.
func WithLogger(l *logiface.Logger[logiface.Event]) ContextOption {
	return contextOptionFunc(func(o *contextOptions) error {
		o.logger = l
		return nil
	})
}

func resolveContextOptions(opts []ContextOption) (*contextOptions, error) {
	cfg := &contextOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyContext(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
