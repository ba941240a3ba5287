package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerRunsAfterQuietWindow(t *testing.T) {
	debouncer := New(10 * time.Millisecond)
	var fired atomic.Int32

	debouncer.Trigger(func() { fired.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one callback, got %d", fired.Load())
	}
}

func TestTriggerReplacesPendingCallback(t *testing.T) {
	debouncer := New(20 * time.Millisecond)
	var value atomic.Int32

	debouncer.Trigger(func() { value.Store(1) })
	debouncer.Trigger(func() { value.Store(2) })
	debouncer.Trigger(func() { value.Store(3) })

	time.Sleep(80 * time.Millisecond)
	if value.Load() != 3 {
		t.Fatalf("expected only the last callback to fire, got %d", value.Load())
	}
}

func TestTriggerRestartsWindowOnEachEvent(t *testing.T) {
	debouncer := New(30 * time.Millisecond)
	var fired atomic.Int32

	for i := 0; i < 4; i++ {
		debouncer.Trigger(func() { fired.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() != 0 {
		t.Fatalf("callback must not fire while events keep arriving")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected one trailing callback, got %d", fired.Load())
	}
}

func TestStopCancelsPendingCallback(t *testing.T) {
	debouncer := New(20 * time.Millisecond)
	var fired atomic.Int32

	debouncer.Trigger(func() { fired.Add(1) })
	if !debouncer.Stop() {
		t.Fatalf("expected Stop to report a pending callback")
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("stopped callback must not fire")
	}

	if debouncer.Stop() {
		t.Fatalf("expected Stop to report nothing pending")
	}
}
