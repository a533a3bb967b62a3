package corosio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskFastPathRunsInline(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	var sameGoroutine bool
	done := make(chan struct{})
	ctx.Dispatch(func() {
		task := newTask[int](ctx)
		task.Then(ctx, func(v int, err error) {
			sameGoroutine = ctx.runningInThisGoroutine()
			close(done)
		})
		task.complete(42, nil)
	})

	runCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}
	ctx.Stop()
	if !sameGoroutine {
		t.Error("expected the fast path to run the continuation on the context's own goroutine")
	}
}

func TestTaskSlowPathDispatchesAcrossContexts(t *testing.T) {
	a, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer a.Close()
	b, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer b.Close()

	task := newTask[int](a)
	done := make(chan struct{})
	task.Then(b, func(v int, err error) {
		if v != 7 {
			t.Errorf("got %d, want 7", v)
		}
		close(done)
		b.Stop()
	})

	runCtxB, cancelB := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelB()
	go b.Run(runCtxB)

	task.complete(7, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran on the other context")
	}
}

func TestTaskThenPanicsOnDoubleAttach(t *testing.T) {
	task := newTask[int](InlineDispatcher{})
	task.Then(InlineDispatcher{}, func(int, error) {})

	defer func() {
		if recover() == nil {
			t.Error("expected a panic attaching a second continuation")
		}
	}()
	task.Then(InlineDispatcher{}, func(int, error) {})
}

func TestNewTaskRecoversPanic(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	task := NewTask(ctx, func() (int, error) {
		panic("boom")
	})

	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	_, err = task.Wait()
	ctx.Stop()

	var pe PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a PanicError, got %v", err)
	}
	if pe.Value != "boom" {
		t.Errorf("got panic value %v, want \"boom\"", pe.Value)
	}
}

func TestTaskWaitBlocksUntilSettled(t *testing.T) {
	task := newTask[string](InlineDispatcher{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		task.complete("done", nil)
	}()

	v, err := task.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != "done" {
		t.Errorf("got %q, want %q", v, "done")
	}
}

func TestAttachStoppableSettlesEarlyOnStop(t *testing.T) {
	src := NewStopSource()
	task := newTask[int](InlineDispatcher{})

	done := make(chan error, 1)
	task.AttachStoppable(InlineDispatcher{}, src.Token(), func(v int, err error) {
		done <- err
	})

	src.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCanceled) {
			t.Errorf("got %v, want ErrCanceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop did not settle the continuation")
	}
}
