//go:build linux || darwin

package corosio

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSignalSetAsyncWaitReceivesSignal(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	sigs := NewSignalSet(ctx, syscall.SIGUSR1)
	defer sigs.Close()

	task := sigs.AsyncWait(StopToken{})

	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	time.Sleep(20 * time.Millisecond)
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	sig, err := task.Wait()
	ctx.Stop()
	if err != nil {
		t.Fatalf("AsyncWait: %v", err)
	}
	if sig != syscall.SIGUSR1 {
		t.Errorf("got %v, want SIGUSR1", sig)
	}
}

func TestSignalSetSecondAsyncWaitPanicsWhileInFlight(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	sigs := NewSignalSet(ctx, syscall.SIGUSR2)
	defer sigs.Close()

	sigs.AsyncWait(StopToken{})

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on a second concurrent AsyncWait")
		}
	}()
	sigs.AsyncWait(StopToken{})
}

func TestSignalSetAsyncWaitReturnsUndeliveredSignalImmediately(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	sigs := NewSignalSet(ctx, syscall.SIGUSR1)
	defer sigs.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	// Establish the relay with a first wait, then let it settle before the
	// signal that should be banked as undelivered arrives.
	first := sigs.AsyncWait(StopToken{})
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if _, err := first.Wait(); err != nil {
		t.Fatalf("first AsyncWait: %v", err)
	}

	// Deliver a second signal with no AsyncWait outstanding; it must be
	// queued rather than dropped.
	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	second := sigs.AsyncWait(StopToken{})
	if !second.Ready() {
		t.Fatal("AsyncWait should resolve immediately from the undelivered queue")
	}
	sig, err := second.Wait()
	ctx.Stop()
	if err != nil {
		t.Fatalf("second AsyncWait: %v", err)
	}
	if sig != syscall.SIGUSR1 {
		t.Errorf("got %v, want SIGUSR1", sig)
	}
}

func TestSignalSetCloseCancelsOutstandingWait(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	sigs := NewSignalSet(ctx, syscall.SIGUSR2)
	task := sigs.AsyncWait(StopToken{})

	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	time.Sleep(10 * time.Millisecond)
	sigs.Close()

	_, err = task.Wait()
	ctx.Stop()
	if err == nil {
		t.Error("expected ErrCanceled after Close")
	}
}
