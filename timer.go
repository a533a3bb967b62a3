// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"container/heap"
	"sync"
	"time"
)

// timerEntry is one scheduled firing in the timer service's min-heap,
// ordered by expiry. seq breaks ties between timers with identical
// deadlines in FIFO order; index is maintained by container/heap for O(log
// n) cancellation.
type timerEntry struct {
	expiry   time.Time
	seq      uint64
	index    int
	canceled bool
	fire     func()
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].expiry.Equal(h[j].expiry) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiry.Before(h[j].expiry)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerService is the Context service backing Timer: a single min-heap of
// pending firings, guarded by a mutex since timers may be scheduled from
// any goroutine via Timer.Wait, but only ever popped from whichever
// goroutine is driving Context.runOneTurn.
type timerService struct {
	mu      sync.Mutex
	heap    timerHeap
	nextSeq uint64
}

func newTimerService(*Context) *timerService {
	return &timerService{}
}

func (ts *timerService) schedule(expiry time.Time, fire func()) *timerEntry {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	e := &timerEntry{expiry: expiry, seq: ts.nextSeq, fire: fire}
	ts.nextSeq++
	heap.Push(&ts.heap, e)
	return e
}

func (ts *timerService) cancel(e *timerEntry) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if e.index < 0 {
		return false
	}
	e.canceled = true
	heap.Remove(&ts.heap, e.index)
	return true
}

// popExpired removes and returns the fire callback of the single
// earliest-expiring timer if it is due at or before now, or nil if the
// heap is empty or its head has not yet expired.
func (ts *timerService) popExpired(now time.Time) func() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.heap) == 0 {
		return nil
	}
	head := ts.heap[0]
	if head.expiry.After(now) {
		return nil
	}
	heap.Pop(&ts.heap)
	if head.canceled {
		return nil
	}
	return head.fire
}

// nextExpiry reports the duration until the earliest pending timer, or
// ok=false if none are scheduled.
func (ts *timerService) nextExpiry(now time.Time) (time.Duration, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.heap) == 0 {
		return 0, false
	}
	return ts.heap[0].expiry.Sub(now), true
}

// Timer is a single-shot asynchronous delay, armed against its owning
// Context's timerService and resumed via a Task[struct{}], the same
// resumption contract every other I/O primitive in this package uses.
type Timer struct {
	ctx   *Context
	mu    sync.Mutex
	entry *timerEntry
	task  *Task[struct{}]
}

// NewTimer creates a Timer bound to ctx. It does not start counting down
// until Wait or WaitUntil is called.
func NewTimer(ctx *Context) *Timer {
	return &Timer{ctx: ctx}
}

// Wait schedules the timer to fire after d and returns a Task that
// completes (with a nil error) when it does, or with ErrCanceled if
// Cancel is called first.
func (t *Timer) Wait(d time.Duration) *Task[struct{}] {
	return t.WaitUntil(time.Now().Add(d))
}

// WaitUntil schedules the timer to fire at expiry. Calling Wait/WaitUntil
// again before the previous Task has settled cancels the prior schedule,
// re-arming a Timer replaces its pending wait.
func (t *Timer) WaitUntil(expiry time.Time) *Task[struct{}] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entry != nil {
		if ts, ok := FindService[*timerService](t.ctx); ok && ts.cancel(t.entry) {
			t.ctx.onWorkFinished()
		}
		t.entry = nil
	}

	ts := UseService[*timerService](t.ctx, newTimerService)
	task := newTask[struct{}](t.ctx)
	t.task = task
	t.entry = ts.schedule(expiry, func() {
		t.ctx.onWorkFinished()
		task.complete(struct{}{}, nil)
	})
	t.ctx.onWorkStarted()
	return task
}

// Cancel cancels the timer's pending wait, if any, resolving its Task with
// ErrCanceled. It is a no-op if the timer has already fired or was never
// armed.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entry == nil {
		return
	}
	ts, ok := FindService[*timerService](t.ctx)
	if ok && ts.cancel(t.entry) {
		t.ctx.onWorkFinished()
		task := t.task
		t.ctx.DispatchInternal(func() { task.complete(struct{}{}, ErrCanceled) })
	}
	t.entry = nil
}
