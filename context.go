// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Context is the execution context of this runtime: it owns a
// reactor, a service registry, and the queue of posted continuations that
// every completed Operation, Timer and SignalSet feeds back into. It is
// the sole implementation of Dispatcher in this package.
//
// Any number of goroutines may call Run/RunOne/Poll/PollOne on the same
// Context concurrently, mirroring an io_context's run() being
// callable from a thread pool: at most one of them is ever blocked inside
// the reactor's Poll at a time (the "active poller"), while the others
// drain the posted-continuation queue, so completions are never starved
// by another goroutine sleeping in the syscall.
type Context struct { // betteralign:ignore
	id uint64

	state    *contextState
	services *serviceRegistry
	posted   *ContinuationQueue

	reactor Reactor

	wakeReadFD  int
	wakeWriteFD int

	outstanding atomic.Int64

	pollerLock  sync.Mutex
	runnerCount atomic.Int32

	stopOnce  sync.Once
	closeOnce sync.Once
	doneCh    chan struct{}

	logger                 *contextLogger
	metrics                *contextMetrics
	strictDispatchOrdering bool
}

var contextIDCounter atomic.Uint64

// goroutineContextStack tracks, per calling goroutine, the stack of
// Contexts it is currently inside Run/RunOne for — the Go
// equivalent of a single-threaded run-loop's loopGoroutineID field,
// generalized because this runtime permits more than one Context (and more
// than one goroutine per Context) to be live at once.
var goroutineContextStack sync.Map // map[uint64][]*Context

// NewContext creates a Context with its own reactor and wake channel.
func NewContext(opts ...ContextOption) (*Context, error) {
	cfg, err := resolveContextOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeRead, wakeWrite, err := createWakeFD()
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		id:                     contextIDCounter.Add(1),
		state:                  newContextState(),
		services:               newServiceRegistry(),
		posted:                 NewContinuationQueue(),
		wakeReadFD:             wakeRead,
		wakeWriteFD:            wakeWrite,
		doneCh:                 make(chan struct{}),
		logger:                 newContextLogger(cfg.logger),
		strictDispatchOrdering: cfg.strictDispatchOrdering,
	}
	if cfg.metricsEnabled {
		ctx.metrics = newContextMetrics()
	}

	if err := ctx.reactor.init(); err != nil {
		if wakeRead >= 0 {
			_ = closeFD(wakeRead)
		}
		return nil, err
	}
	if wakeRead >= 0 {
		if err := ctx.reactor.Register(wakeRead, EventRead, func(IOEvents) {
			drainWakeFD(wakeRead)
			_ = ctx.reactor.Rearm(wakeRead, EventRead)
		}); err != nil {
			_ = ctx.reactor.Close()
			_ = closeFD(wakeRead)
			return nil, err
		}
	}

	return ctx, nil
}

// Dispatch implements Dispatcher: fn is posted to run on this Context's
// run loop. Called from the Context's own goroutine it still posts
// (rather than running inline) so ordering relative to other posted work
// is preserved; Task[T]'s fast path is what actually runs continuations
// inline, by calling dispatched functions directly rather than going
// through Dispatch at all.
func (c *Context) Dispatch(fn func()) {
	c.posted.Push(fn)
	c.wake()
}

// DispatchInternal behaves like Dispatch but is used for completions the
// runtime itself generates (timer expiry, signal delivery, Promisify-style
// bridging); kept as a distinct entry point, matching conventional
// run-loop's internal/external queue split, so logging and metrics can
// distinguish runtime-internal traffic from user-posted work.
func (c *Context) DispatchInternal(fn func()) {
	c.posted.Push(fn)
	c.wake()
}

func (c *Context) wake() {
	if c.wakeWriteFD >= 0 {
		_ = signalWakeFD(c.wakeWriteFD)
		return
	}
	if r, ok := any(&c.reactor).(interface{ Wakeup() error }); ok {
		_ = r.Wakeup()
	}
}

func (c *Context) onWorkStarted() { c.outstanding.Add(1) }

func (c *Context) onWorkFinished() {
	if c.outstanding.Add(-1) < 0 {
		panic("corosio: outstanding work count went negative")
	}
}

// OutstandingWork returns the number of operations, timers and posted
// continuations the context currently considers "live" — Run returns once
// this reaches zero (absent an explicit Stop).
func (c *Context) OutstandingWork() int64 { return c.outstanding.Load() }

func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

func (c *Context) pushRunner() {
	gid := getGoroutineID()
	v, _ := goroutineContextStack.LoadOrStore(gid, &[]*Context{})
	stack := v.(*[]*Context)
	*stack = append(*stack, c)
}

func (c *Context) popRunner() {
	gid := getGoroutineID()
	v, ok := goroutineContextStack.Load(gid)
	if !ok {
		return
	}
	stack := v.(*[]*Context)
	if n := len(*stack); n > 0 {
		*stack = (*stack)[:n-1]
	}
}

// RunningInThisGoroutine reports whether the calling goroutine is
// currently inside one of this Context's Run/RunOne calls (RunFor and
// RunUntil included). Poll and PollOne do not register the calling
// goroutine, so it reports false inside them.
func (c *Context) RunningInThisGoroutine() bool {
	return c.runningInThisGoroutine()
}

func (c *Context) runningInThisGoroutine() bool {
	gid := getGoroutineID()
	v, ok := goroutineContextStack.Load(gid)
	if !ok {
		return false
	}
	stack := v.(*[]*Context)
	for _, s := range *stack {
		if s == c {
			return true
		}
	}
	return false
}

// Run drains posted continuations, timers and reactor completions until
// OutstandingWork reaches zero, Stop is called, or ctx is canceled.
func (c *Context) Run(ctx context.Context) error {
	if !c.state.TransitionAny([]ContextState{StateIdle, StateRunning, StateSleeping}, StateRunning) {
		return ErrContextStopped
	}
	c.pushRunner()
	c.runnerCount.Add(1)
	defer func() {
		c.popRunner()
		if c.runnerCount.Add(-1) == 0 {
			c.state.TryTransition(StateRunning, StateIdle)
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.state.Load() == StateStopping || c.state.Load() == StateStopped {
			c.drainAndShutdown()
			return nil
		}
		ran, err := c.runOneTurn(ctx, true)
		if err != nil {
			return err
		}
		if !ran {
			if c.outstanding.Load() <= 0 {
				return nil
			}
		}
	}
}

// RunOne runs at most one ready continuation or timer, blocking until one
// is available (or ctx is canceled, or the context is stopped). It
// reports whether it ran anything.
func (c *Context) RunOne(ctx context.Context) (bool, error) {
	c.pushRunner()
	defer c.popRunner()
	for {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if c.state.Load() == StateStopping || c.state.Load() == StateStopped {
			return false, nil
		}
		ran, err := c.runOneTurn(ctx, true)
		if err != nil || ran {
			return ran, err
		}
		if c.outstanding.Load() <= 0 {
			return false, nil
		}
	}
}

// Poll runs every continuation and timer that is ready right now without
// blocking in the reactor, and reports whether it ran anything.
func (c *Context) Poll() (bool, error) {
	any := false
	for {
		ran, err := c.runOneTurn(context.Background(), false)
		if err != nil {
			return any, err
		}
		if !ran {
			return any, nil
		}
		any = true
	}
}

// PollOne runs at most one ready continuation or timer without blocking.
func (c *Context) PollOne() (bool, error) {
	return c.runOneTurn(context.Background(), false)
}

// RunFor behaves like Run but returns after d has elapsed even if work
// remains outstanding.
func (c *Context) RunFor(d time.Duration) error {
	return c.RunUntil(time.Now().Add(d))
}

// RunUntil behaves like Run but returns at deadline even if work remains
// outstanding.
func (c *Context) RunUntil(deadline time.Time) error {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	err := c.Run(ctx)
	if err == context.DeadlineExceeded {
		return nil
	}
	return err
}

// runOneTurn processes exactly one unit of work: a posted continuation, an
// expired timer, or (if blocking is true and nothing else is ready) a
// single reactor poll. It returns false without error if nothing was
// ready and, for non-blocking callers, nothing was polled either.
func (c *Context) runOneTurn(ctx context.Context, blocking bool) (bool, error) {
	if c.metrics != nil {
		c.metrics.queue.Update(int(c.outstanding.Load()), c.posted.Len())
	}
	if fn := c.posted.Pop(); fn != nil {
		c.safeInvoke(fn)
		if c.strictDispatchOrdering {
			c.drainPostedOnce()
		}
		return true, nil
	}

	if ts, ok := FindService[*timerService](c); ok {
		if fn := ts.popExpired(time.Now()); fn != nil {
			c.safeInvoke(fn)
			return true, nil
		}
	}

	if !c.pollerLock.TryLock() {
		if !blocking {
			return false, nil
		}
		// Another goroutine owns the reactor; give it a turn, then let
		// the caller loop re-check the posted queue.
		runtime.Gosched()
		return false, nil
	}
	defer c.pollerLock.Unlock()

	timeout := 0
	if blocking {
		timeout = c.calculateTimeout()
	}
	n, err := c.reactor.Poll(timeout)
	if err != nil {
		return false, WrapPlatformError("reactor.poll", err)
	}
	return n > 0, nil
}

func (c *Context) drainPostedOnce() {
	for {
		fn := c.posted.Pop()
		if fn == nil {
			return
		}
		c.safeInvoke(fn)
	}
}

// calculateTimeout asks the timer service (if any) how long until the
// next expiry, in milliseconds, for the reactor's blocking Poll call. -1
// (block indefinitely) when there is no pending timer.
func (c *Context) calculateTimeout() int {
	ts, ok := FindService[*timerService](c)
	if !ok {
		return -1
	}
	d, ok := ts.nextExpiry(time.Now())
	if !ok {
		return -1
	}
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 1<<30 {
		ms = 1 << 30
	}
	return int(ms)
}

func (c *Context) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.errf("continuation panicked: %v", r)
		}
	}()
	fn()
}

// safeDestroy runs item's destroy path (if any) instead of its invoke
// path, used when draining the posted queue at shutdown rather than
// during normal processing.
func (c *Context) safeDestroy(item workItem) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.errf("continuation destroy panicked: %v", r)
		}
	}()
	item.runDestroy()
}

// Stop requests that every Run/RunOne loop currently executing on this
// Context return as soon as it next checks state, and that Run perform a
// graceful shutdown before returning: queued continuations are destroyed
// rather than invoked (see drainAndShutdown). Poll and PollOne do not
// check for a stop request.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		c.state.Store(StateStopping)
		c.wake()
	})
}

// Stopped reports whether Stop has been requested.
func (c *Context) Stopped() bool {
	switch c.state.Load() {
	case StateStopping, StateStopped:
		return true
	default:
		return false
	}
}

// Restart returns the context to StateIdle after a prior Run has fully
// returned, so it can be reused. It fails if the context is still running.
func (c *Context) Restart() error {
	if c.state.IsRunning() {
		return ErrContextAlreadyRunning
	}
	c.state.Store(StateIdle)
	return nil
}

// drainAndShutdown runs the graceful-shutdown sequence: every remaining
// posted continuation is destroyed, not invoked — its destroy path (if
// any) runs, but the continuation's own callback never does, since by the
// time shutdown drains the queue the resources a callback would touch may
// already be gone. This mirrors the Work Item invoke/destroy duality:
// normal processing calls invoke, shutdown calls destroy. The reactor is
// then drained in non-blocking mode, and every registered service is torn
// down in reverse creation order.
func (c *Context) drainAndShutdown() {
	for {
		item, ok := c.posted.PopItem()
		if !ok {
			break
		}
		c.safeDestroy(item)
	}
	for {
		n, err := c.reactor.Poll(0)
		if err != nil || n == 0 {
			break
		}
	}
	c.closeOnce.Do(func() {
		c.services.shutdownAll()
		_ = c.reactor.Close()
		if c.wakeReadFD >= 0 {
			_ = closeFD(c.wakeReadFD)
		}
		if c.wakeWriteFD >= 0 && c.wakeWriteFD != c.wakeReadFD {
			_ = closeFD(c.wakeWriteFD)
		}
		c.state.Store(StateStopped)
		close(c.doneCh)
	})
}

// Close immediately tears the context down: an "immediate
// shutdown": posted work is discarded rather than drained.
func (c *Context) Close() error {
	c.state.Store(StateStopping)
	c.wake()
	c.closeOnce.Do(func() {
		c.services.shutdownAll()
		_ = c.reactor.Close()
		if c.wakeReadFD >= 0 {
			_ = closeFD(c.wakeReadFD)
		}
		if c.wakeWriteFD >= 0 && c.wakeWriteFD != c.wakeReadFD {
			_ = closeFD(c.wakeWriteFD)
		}
		c.state.Store(StateStopped)
		close(c.doneCh)
	})
	return nil
}

// Done returns a channel closed once the context has fully shut down.
func (c *Context) Done() <-chan struct{} { return c.doneCh }
