// Package corosio couples stackless coroutines (as generic [Task] values)
// to a platform I/O completion reactor, in the manner of Boost.Asio's
// io_context / corosio couple: an executor that runs posted continuations
// and completion handlers, and stream/acceptor/timer/signal types that
// resume a [Task] when their operation completes.
//
// # Architecture
//
// A [Context] is the execution context: it owns a one-shot, edge-triggered
// reactor ([Reactor]) plus a multi-producer continuation queue, and runs
// them from whichever goroutine(s) call [Context.Run], [Context.RunOne],
// [Context.Poll], or [Context.PollOne]. Multiple goroutines may call these
// concurrently; exactly one is ever blocked inside the reactor's poll call
// at a time, the rest drain posted continuations.
//
// [Task] is the asynchronous result type: a single-shot future completed
// exactly once, with a continuation attached via [Task.Then] or consumed
// synchronously via [Task.Wait]. Resumption takes an inline fast path when
// the continuation's [Dispatcher] is the same dispatcher that owns the
// task, and falls back to [Dispatcher.Dispatch] otherwise - the
// symmetric-transfer optimization translated into goroutine-safe terms.
//
// Per-platform reactors realize one-shot registration using the native
// primitive: EPOLLONESHOT on Linux, EV_ONESHOT on Darwin, and native IOCP
// completion keys on Windows.
//
// # Services
//
// Contexts host a small type-keyed service registry ([UseService],
// [FindService], [MakeService]); the timer subsystem is built as a
// service rather than being wired directly into [Context]. [SignalSet] is
// a standalone type and is not registered as a service.
//
// # Thread Safety
//
//   - [Context.Dispatch] is safe from any goroutine.
//   - [Context.Run] and friends may be called concurrently from a pool of
//     goroutines; only one actively polls the reactor at a time.
//   - [Task.complete] is exactly-once and safe from any goroutine; [Task.Then]
//     must be called at most once per Task.
//
// # Usage
//
//	ctx, err := corosio.NewContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	ctx.Dispatch(func() {
//	    fmt.Println("hello from the context")
//	    ctx.Stop()
//	})
//
//	if err := ctx.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package corosio
