//go:build linux || darwin

package corosio

import (
	"context"
	"testing"
	"time"
)

func TestStreamSocketLoopbackEcho(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	ln, err := Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	addr := ln.LocalAddr().String()

	serverDone := make(chan error, 1)
	ln.Accept(StopToken{}).Then(ctx, func(conn *StreamSocket, err error) {
		if err != nil {
			serverDone <- err
			return
		}
		buf := make([]byte, 5)
		conn.Read(StopToken{}, Buffer(buf)).Then(ctx, func(n int, err error) {
			if err != nil {
				serverDone <- err
				return
			}
			conn.Write(StopToken{}, Buffer(buf[:n])).Then(ctx, func(int, error) {
				_ = conn.Close()
				serverDone <- nil
			})
		})
	})

	clientDone := make(chan error, 1)
	Dial(ctx, StopToken{}, "tcp", addr).Then(ctx, func(client *StreamSocket, err error) {
		if err != nil {
			clientDone <- err
			return
		}
		client.Write(StopToken{}, Buffer([]byte("hello"))).Then(ctx, func(int, error) {
			reply := make([]byte, 5)
			client.Read(StopToken{}, Buffer(reply)).Then(ctx, func(n int, err error) {
				_ = client.Close()
				if err != nil {
					clientDone <- err
					return
				}
				if string(reply[:n]) != "hello" {
					t.Errorf("got %q, want %q", reply[:n], "hello")
				}
				clientDone <- nil
			})
		})
	})

	runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("server side: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("server side never completed")
	}
	select {
	case err := <-clientDone:
		if err != nil {
			t.Errorf("client side: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("client side never completed")
	}
	ctx.Stop()
}

func TestStreamSocketReadSomeZeroLengthBufferCompletesImmediately(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	ln, err := Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	s := newStreamSocket(ctx, ln.fd)
	task := s.ReadSome(StopToken{}, nil)

	if !task.Ready() {
		t.Fatal("ReadSome on a zero-length buffer should complete synchronously without arming")
	}
	if s.readOp.InFlight() {
		t.Error("ReadSome on a zero-length buffer should never arm the read operation")
	}
	n, err := task.Wait()
	if err != nil {
		t.Errorf("got err %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("got n %d, want 0", n)
	}
}

func TestStreamSocketSecondReadWhileInFlightPanics(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	ln, err := Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	s := newStreamSocket(ctx, ln.fd)
	s.readOp.arm(ln.fd, EventRead, ctx, StopToken{}, func(int, error) {})

	defer func() {
		if recover() == nil {
			t.Error("expected a panic arming a second concurrent read")
		}
	}()
	s.readOp.arm(ln.fd, EventRead, ctx, StopToken{}, func(int, error) {})
}
