// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	ringBufferSize = 4096

	// ringSeqSkip is the sentinel value for "empty slot" in sequence
	// tracking, chosen so it can never collide with a legitimately
	// wrapped sequence counter.
	ringSeqSkip = uint64(1) << 63

	ringOverflowInitCap          = 1024
	ringOverflowCompactThreshold = 512

	ringHeadPadSize = sizeOfCacheLine - sizeOfAtomicUint64
)

// workItem pairs a posted continuation's normal execution path with its
// shutdown-drain path, the Go shape of a Work Item's invoke/destroy
// duality: invoke runs the continuation normally; destroy releases
// whatever the continuation would have released without running any
// user-supplied callback, for continuations queued when the context tears
// down mid-flight. A nil destroy means there is nothing to release beyond
// not invoking the callback, which is the default for plain Dispatch
// posts.
type workItem struct {
	invoke  func()
	destroy func()
}

func (w workItem) runInvoke() {
	if w.invoke != nil {
		w.invoke()
	}
}

func (w workItem) runDestroy() {
	if w.destroy != nil {
		w.destroy()
	}
}

// ContinuationQueue is the lock-free MPSC queue backing Context.Dispatch:
// any goroutine may post a continuation, and only the context's own
// run-loop goroutine ever pops one. This is the channel every completed
// Operation, expired Timer and delivered signal uses to hand its
// continuation back to the owning Context, and the channel Dispatch uses
// for ordinary cross-goroutine posts.
//
// Pushes that would overflow the fixed ring spill into a mutex-protected
// slice rather than blocking or failing, so a burst of concurrent posts is
// never fatal to the context, under this runtime's submission back-pressure
// requirement.
type ContinuationQueue struct { // betteralign:ignore
	_       [sizeOfCacheLine]byte
	buffer  [ringBufferSize]workItem
	valid   [ringBufferSize]atomic.Bool
	seq     [ringBufferSize]atomic.Uint64
	head    atomic.Uint64
	_       [ringHeadPadSize]byte
	tail    atomic.Uint64
	tailSeq atomic.Uint64

	overflowMu      sync.Mutex
	overflow        []workItem
	overflowHead    int
	overflowPending atomic.Bool
}

// NewContinuationQueue creates an empty queue.
func NewContinuationQueue() *ContinuationQueue {
	q := &ContinuationQueue{}
	for i := range q.seq {
		q.seq[i].Store(ringSeqSkip)
		q.valid[i].Store(false)
	}
	return q
}

// Push enqueues fn as an invoke-only work item (destroy is a no-op).
// Always succeeds.
func (q *ContinuationQueue) Push(fn func()) {
	q.PushItem(workItem{invoke: fn})
}

// PushItem enqueues item, preserving both its invoke and destroy paths.
// Always succeeds.
func (q *ContinuationQueue) PushItem(item workItem) {
	if q.overflowPending.Load() {
		q.overflowMu.Lock()
		if len(q.overflow)-q.overflowHead > 0 {
			q.overflow = append(q.overflow, item)
			q.overflowMu.Unlock()
			return
		}
		q.overflowMu.Unlock()
	}

	for {
		tail := q.tail.Load()
		head := q.head.Load()
		if tail-head >= ringBufferSize {
			break
		}
		if q.tail.CompareAndSwap(tail, tail+1) {
			seq := q.tailSeq.Add(1)
			idx := tail % ringBufferSize
			q.buffer[idx] = item
			q.valid[idx].Store(true)
			q.seq[idx].Store(seq)
			return
		}
	}

	q.overflowMu.Lock()
	if q.overflow == nil {
		q.overflow = make([]workItem, 0, ringOverflowInitCap)
	}
	q.overflow = append(q.overflow, item)
	q.overflowPending.Store(true)
	q.overflowMu.Unlock()
}

// Pop removes and returns the next continuation's invoke func, or nil if
// the queue is empty. Must only be called from the single consumer
// goroutine. Its destroy path, if any, is discarded; callers that must
// honor the invoke/destroy duality (graceful shutdown) use PopItem
// instead.
func (q *ContinuationQueue) Pop() func() {
	item, ok := q.PopItem()
	if !ok {
		return nil
	}
	return item.invoke
}

// PopItem removes and returns the next work item, or ok=false if the
// queue is empty. Must only be called from the single consumer goroutine.
func (q *ContinuationQueue) PopItem() (workItem, bool) {
	head := q.head.Load()
	tail := q.tail.Load()

	for head < tail {
		idx := head % ringBufferSize
		seq := q.seq[idx].Load()

		if seq == ringSeqSkip || !q.valid[idx].Load() {
			head = q.head.Load()
			tail = q.tail.Load()
			runtime.Gosched()
			continue
		}

		item := q.buffer[idx]
		q.buffer[idx] = workItem{}
		q.valid[idx].Store(false)
		q.seq[idx].Store(ringSeqSkip)
		q.head.Add(1)
		if item.invoke != nil || item.destroy != nil {
			return item, true
		}
		head = q.head.Load()
		tail = q.tail.Load()
	}

	if !q.overflowPending.Load() {
		return workItem{}, false
	}

	q.overflowMu.Lock()
	defer q.overflowMu.Unlock()

	count := len(q.overflow) - q.overflowHead
	if count == 0 {
		q.overflowPending.Store(false)
		return workItem{}, false
	}

	item := q.overflow[q.overflowHead]
	q.overflow[q.overflowHead] = workItem{}
	q.overflowHead++

	if q.overflowHead > len(q.overflow)/2 && q.overflowHead > ringOverflowCompactThreshold {
		copy(q.overflow, q.overflow[q.overflowHead:])
		q.overflow = slices.Delete(q.overflow, len(q.overflow)-q.overflowHead, len(q.overflow))
		q.overflowHead = 0
	}
	if q.overflowHead >= len(q.overflow) {
		q.overflowPending.Store(false)
	}
	return item, true
}

// Len returns the approximate number of queued continuations.
func (q *ContinuationQueue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	n := 0
	if tail > head {
		n = int(tail - head)
	}
	q.overflowMu.Lock()
	n += len(q.overflow) - q.overflowHead
	q.overflowMu.Unlock()
	return n
}
