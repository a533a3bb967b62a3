// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corosio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time snapshot of a Context's runtime counters,
// returned by Context.Metrics. It is only populated when the Context was
// constructed with WithMetrics(true); otherwise Context.Metrics returns
// the zero value and ok=false.
type Metrics struct {
	// Latency of completed StreamSocket reads and writes, from the
	// ReadSome/WriteSome call to the operation's completion. Timer
	// firings and accepts are not recorded.
	Latency LatencyMetrics

	// Queue tracks the depth of the posted-continuation queue.
	Queue QueueMetrics

	// CompletionRate is the current completions-per-second, over a
	// rolling window.
	CompletionRate float64
}

// contextMetrics is the live, mutable metrics state attached to a Context
// when WithMetrics(true) is given to NewContext.
type contextMetrics struct {
	latency    LatencyMetrics
	queue      QueueMetrics
	completion *CompletionRateCounter
}

func newContextMetrics() *contextMetrics {
	return &contextMetrics{
		completion: NewCompletionRateCounter(10*time.Second, 100*time.Millisecond),
	}
}

func (m *contextMetrics) recordCompletion(latency time.Duration) {
	m.latency.Record(latency)
	m.completion.Increment()
}

func (m *contextMetrics) snapshot() Metrics {
	return Metrics{
		Latency:        m.latency.snapshot(),
		Queue:          m.queue.snapshot(),
		CompletionRate: m.completion.Rate(),
	}
}

// Metrics returns a snapshot of the context's runtime counters. ok is
// false if the context was constructed without WithMetrics(true).
func (c *Context) Metrics() (stats Metrics, ok bool) {
	if c.metrics == nil {
		return Metrics{}, false
	}
	c.metrics.queue.Update(int(c.outstanding.Load()), c.posted.Len())
	return c.metrics.snapshot(), true
}

// LatencyMetrics tracks completion-latency distribution with percentiles,
// using the P-square algorithm for O(1) streaming quantile estimation.
type LatencyMetrics struct {
	mu        sync.RWMutex
	quantiles *latencyQuantileSet

	P50 time.Duration
	P90 time.Duration
	P99 time.Duration
	Max time.Duration
}

// Record adds a single completion-latency observation.
func (l *LatencyMetrics) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quantiles == nil {
		l.quantiles = newLatencyQuantileSet(0.5, 0.9, 0.99)
	}
	l.quantiles.Update(float64(d))
	if d > l.Max {
		l.Max = d
	}
}

func (l *LatencyMetrics) snapshot() LatencyMetrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := LatencyMetrics{Max: l.Max}
	if l.quantiles != nil && l.quantiles.Count() > 0 {
		out.P50 = time.Duration(l.quantiles.Quantile(0))
		out.P90 = time.Duration(l.quantiles.Quantile(1))
		out.P99 = time.Duration(l.quantiles.Quantile(2))
	}
	return out
}

// QueueMetrics tracks the depth of a Context's outstanding-work count and
// posted-continuation queue, with an exponential moving average.
type QueueMetrics struct {
	mu sync.RWMutex

	OutstandingCurrent int
	OutstandingMax     int
	OutstandingAvg     float64
	outstandingInit    bool

	PostedCurrent int
	PostedMax     int
	PostedAvg     float64
	postedInit    bool
}

// Update records the current outstanding-work and posted-queue depths.
func (q *QueueMetrics) Update(outstanding, posted int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.OutstandingCurrent = outstanding
	if outstanding > q.OutstandingMax {
		q.OutstandingMax = outstanding
	}
	if !q.outstandingInit {
		q.OutstandingAvg = float64(outstanding)
		q.outstandingInit = true
	} else {
		q.OutstandingAvg = 0.9*q.OutstandingAvg + 0.1*float64(outstanding)
	}

	q.PostedCurrent = posted
	if posted > q.PostedMax {
		q.PostedMax = posted
	}
	if !q.postedInit {
		q.PostedAvg = float64(posted)
		q.postedInit = true
	} else {
		q.PostedAvg = 0.9*q.PostedAvg + 0.1*float64(posted)
	}
}

func (q *QueueMetrics) snapshot() QueueMetrics {
	q.mu.RLock()
	defer q.mu.RUnlock()
	cp := *q
	cp.mu = sync.RWMutex{}
	return cp
}

// CompletionRateCounter tracks completions-per-second with a rolling,
// bucketed window, avoiding the cost of storing every individual
// observation.
type CompletionRateCounter struct {
	lastRotation atomic.Value // time.Time
	buckets      []int64
	bucketSize   time.Duration
	mu           sync.Mutex
}

// NewCompletionRateCounter creates a rate counter over windowSize, divided
// into buckets of bucketSize. Both must be positive and bucketSize must
// not exceed windowSize.
func NewCompletionRateCounter(windowSize, bucketSize time.Duration) *CompletionRateCounter {
	if windowSize <= 0 || bucketSize <= 0 || bucketSize > windowSize {
		panic("corosio: invalid CompletionRateCounter window/bucket size")
	}
	c := &CompletionRateCounter{
		buckets:    make([]int64, int(windowSize/bucketSize)),
		bucketSize: bucketSize,
	}
	c.lastRotation.Store(time.Now())
	return c
}

// Increment records one completion.
func (c *CompletionRateCounter) Increment() {
	c.rotate()
	c.mu.Lock()
	c.buckets[len(c.buckets)-1]++
	c.mu.Unlock()
}

func (c *CompletionRateCounter) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	last := c.lastRotation.Load().(time.Time)
	elapsed := now.Sub(last)

	advance := int64(elapsed) / int64(c.bucketSize)
	if advance < 0 || advance > int64(len(c.buckets)) {
		advance = int64(len(c.buckets))
	}

	if int(advance) >= len(c.buckets) {
		for i := range c.buckets {
			c.buckets[i] = 0
		}
		c.lastRotation.Store(now)
		return
	}
	if advance == 0 {
		return
	}

	n := int(advance)
	copy(c.buckets, c.buckets[n:])
	for i := len(c.buckets) - n; i < len(c.buckets); i++ {
		c.buckets[i] = 0
	}
	c.lastRotation.Store(last.Add(time.Duration(n) * c.bucketSize))
}

// Rate returns the current completions-per-second over the window.
func (c *CompletionRateCounter) Rate() float64 {
	c.rotate()
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum int64
	for _, v := range c.buckets {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	monitored := float64(len(c.buckets)) * c.bucketSize.Seconds()
	return float64(sum) / monitored
}

// latencyQuantileEstimator is a single P-square marker set, estimating one
// target quantile in O(1) per observation without storing samples. Jain &
// Chlamtac, "The P² Algorithm for Dynamic Calculation of Quantiles and
// Histograms Without Storing Observations", CACM 28(10), 1985. Not
// goroutine-safe; LatencyMetrics serializes access via its own mutex.
type latencyQuantileEstimator struct {
	p          float64
	q          [5]float64 // marker heights
	n          [5]int     // marker positions
	np         [5]float64 // desired marker positions
	dn         [5]float64 // increments for desired positions
	initBuffer [5]float64
	count      int
}

func newLatencyQuantileEstimator(p float64) *latencyQuantileEstimator {
	p = math.Max(0, math.Min(1, p))
	return &latencyQuantileEstimator{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (e *latencyQuantileEstimator) Update(x float64) {
	e.count++
	if e.count <= 5 {
		e.initBuffer[e.count-1] = x
		if e.count == 5 {
			e.initialize()
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := e.parabolic(i, sign)
			if e.q[i-1] < qPrime && qPrime < e.q[i+1] {
				e.q[i] = qPrime
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *latencyQuantileEstimator) initialize() {
	for i := 1; i < 5; i++ {
		key := e.initBuffer[i]
		j := i - 1
		for j >= 0 && e.initBuffer[j] > key {
			e.initBuffer[j+1] = e.initBuffer[j]
			j--
		}
		e.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		e.q[i] = e.initBuffer[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
}

func (e *latencyQuantileEstimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni, niPrev, niNext := float64(e.n[i]), float64(e.n[i-1]), float64(e.n[i+1])
	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)
	return e.q[i] + term1*(term2+term3)
}

func (e *latencyQuantileEstimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

// Quantile returns the current estimate. O(1).
func (e *latencyQuantileEstimator) Quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := make([]float64, e.count)
		copy(sorted, e.initBuffer[:e.count])
		for i := 1; i < e.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(e.count-1) * e.p)
		if index >= e.count {
			index = e.count - 1
		}
		return sorted[index]
	}
	return e.q[2]
}

func (e *latencyQuantileEstimator) Count() int { return e.count }

// latencyQuantileSet tracks several target quantiles plus sum/count/max
// over the same observation stream, so LatencyMetrics needs only one
// Update call per completion.
type latencyQuantileSet struct {
	estimators []*latencyQuantileEstimator
	sum        float64
	count      int
	max        float64
}

func newLatencyQuantileSet(percentiles ...float64) *latencyQuantileSet {
	s := &latencyQuantileSet{
		estimators: make([]*latencyQuantileEstimator, len(percentiles)),
		max:        -math.MaxFloat64,
	}
	for i, p := range percentiles {
		s.estimators[i] = newLatencyQuantileEstimator(p)
	}
	return s
}

func (s *latencyQuantileSet) Update(x float64) {
	s.count++
	s.sum += x
	if x > s.max {
		s.max = x
	}
	for _, e := range s.estimators {
		e.Update(x)
	}
}

func (s *latencyQuantileSet) Quantile(i int) float64 {
	if i < 0 || i >= len(s.estimators) {
		return 0
	}
	return s.estimators[i].Quantile()
}

func (s *latencyQuantileSet) Count() int { return s.count }
