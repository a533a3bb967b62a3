package corosio

import (
	"context"
	"testing"
	"time"
)

func TestContextMetricsDisabledByDefault(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	if _, ok := ctx.Metrics(); ok {
		t.Error("Metrics() should report ok=false without WithMetrics(true)")
	}
}

func TestContextMetricsTracksQueueDepth(t *testing.T) {
	ctx, err := NewContext(WithMetrics(true))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	ctx.Dispatch(func() {})
	ctx.Dispatch(func() {})

	runCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ctx.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats, ok := ctx.Metrics()
	if !ok {
		t.Fatal("Metrics() should report ok=true with WithMetrics(true)")
	}
	if stats.Queue.PostedMax < 1 {
		t.Errorf("PostedMax = %d, want >= 1", stats.Queue.PostedMax)
	}
}

func TestCompletionRateCounterCountsIncrements(t *testing.T) {
	c := NewCompletionRateCounter(time.Second, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		c.Increment()
	}
	if rate := c.Rate(); rate <= 0 {
		t.Errorf("Rate() = %v, want > 0 after increments", rate)
	}
}

func TestCompletionRateCounterPanicsOnInvalidWindow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for bucketSize > windowSize")
		}
	}()
	NewCompletionRateCounter(time.Millisecond, time.Second)
}

func TestLatencyMetricsRecordsMax(t *testing.T) {
	var l LatencyMetrics
	l.Record(5 * time.Millisecond)
	l.Record(50 * time.Millisecond)
	l.Record(1 * time.Millisecond)

	snap := l.snapshot()
	if snap.Max != 50*time.Millisecond {
		t.Errorf("Max = %v, want 50ms", snap.Max)
	}
}

func TestLatencyQuantileEstimatorConvergesOnUniformSamples(t *testing.T) {
	e := newLatencyQuantileEstimator(0.5)
	for i := 1; i <= 1000; i++ {
		e.Update(float64(i))
	}
	if e.Count() != 1000 {
		t.Fatalf("Count() = %d, want 1000", e.Count())
	}
	if got := e.Quantile(); got < 400 || got > 600 {
		t.Errorf("median estimate = %v, want roughly 500", got)
	}
}

func TestLatencyQuantileSetTracksMultiplePercentiles(t *testing.T) {
	s := newLatencyQuantileSet(0.5, 0.99)
	for i := 1; i <= 1000; i++ {
		s.Update(float64(i))
	}
	if s.Count() != 1000 {
		t.Fatalf("Count() = %d, want 1000", s.Count())
	}
	median := s.Quantile(0)
	p99 := s.Quantile(1)
	if p99 <= median {
		t.Errorf("p99 estimate %v should exceed median estimate %v", p99, median)
	}
	if got := s.Quantile(-1); got != 0 {
		t.Errorf("out-of-range Quantile index should return 0, got %v", got)
	}
}
