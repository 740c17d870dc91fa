package control

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestIdleTimerFiresWhenEmpty(t *testing.T) {
	var fired atomic.Bool
	it := newIdleTimer(10*time.Millisecond, func() (int, int) { return 0, 0 }, func() { fired.Store(true) })
	it.start()
	defer it.stop()

	time.Sleep(50 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("idle timer did not fire with zero sessions and zero peers")
	}
}

func TestIdleTimerReschedulesWhileNotEmpty(t *testing.T) {
	var fired atomic.Bool
	it := newIdleTimer(10*time.Millisecond, func() (int, int) { return 1, 0 }, func() { fired.Store(true) })
	it.start()
	defer it.stop()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatal("idle timer fired despite a live local session")
	}
}

func TestIdleTimerResetDelaysExpiry(t *testing.T) {
	var fired atomic.Bool
	it := newIdleTimer(30*time.Millisecond, func() (int, int) { return 0, 0 }, func() { fired.Store(true) })
	it.start()
	defer it.stop()

	time.Sleep(15 * time.Millisecond)
	it.reset()
	time.Sleep(15 * time.Millisecond)

	if fired.Load() {
		t.Fatal("idle timer fired before the reset timeout elapsed")
	}
}

func TestTimeoutForKind(t *testing.T) {
	cases := map[string]time.Duration{
		"get_message": 15 * time.Second,
		"clear":       15 * time.Second,
		"get_summary": 60 * time.Second,
		"send":        5 * time.Minute,
		"abort":       10 * time.Second,
		"unknown":     10 * time.Second,
	}
	for kind, want := range cases {
		if got := timeoutForKind(kind); got != want {
			t.Errorf("timeoutForKind(%q) = %s, want %s", kind, got, want)
		}
	}
}
