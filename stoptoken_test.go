package corosio

import "testing"

func TestStopSourceStopIsIdempotent(t *testing.T) {
	src := NewStopSource()
	var fired int
	src.Token().OnStop(func() { fired++ })

	src.Stop()
	src.Stop()
	src.Stop()

	if fired != 1 {
		t.Errorf("handler ran %d times, want 1", fired)
	}
}

func TestStopTokenOnStopRunsImmediatelyIfAlreadyStopped(t *testing.T) {
	src := NewStopSource()
	src.Stop()

	var fired bool
	src.Token().OnStop(func() { fired = true })

	if !fired {
		t.Error("OnStop should run immediately when already stopped")
	}
}

func TestStopTokenDeregisterPreventsCallback(t *testing.T) {
	src := NewStopSource()
	var fired bool
	deregister := src.Token().OnStop(func() { fired = true })
	deregister()

	src.Stop()

	if fired {
		t.Error("deregistered handler should not have run")
	}
}

func TestZeroStopTokenNeverFires(t *testing.T) {
	var tok StopToken
	if tok.CanBeStopped() {
		t.Error("zero StopToken should report CanBeStopped() == false")
	}
	if tok.Stopped() {
		t.Error("zero StopToken should never report Stopped()")
	}
	deregister := tok.OnStop(func() { t.Error("should never be called") })
	deregister()
}

func TestStopHandlersRunInRegistrationOrder(t *testing.T) {
	src := NewStopSource()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		src.Token().OnStop(func() { order = append(order, i) })
	}
	src.Stop()

	for i, v := range order {
		if i != v {
			t.Errorf("handlers ran out of order: %v", order)
			break
		}
	}
}
