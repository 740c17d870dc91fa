package ratelimit_test

import (
	"testing"
	"time"

	"github.com/dantte-lp/pimesh/internal/ratelimit"
)

func TestAllowWithinLimit(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(3, time.Minute, 16)
	for i := 0; i < 3; i++ {
		if !l.Allow("peer-a") {
			t.Fatalf("Allow call %d rejected, want accepted", i)
		}
	}
	if l.Allow("peer-a") {
		t.Fatal("4th call within the window was allowed, want rejected")
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(1, 20*time.Millisecond, 16)
	if !l.Allow("peer-b") {
		t.Fatal("first call rejected")
	}
	if l.Allow("peer-b") {
		t.Fatal("second call within window was allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("peer-b") {
		t.Fatal("call after window elapsed was rejected")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(1, time.Minute, 16)
	if !l.Allow("local") {
		t.Fatal("local rejected")
	}
	if !l.Allow("10.0.0.5:9999") {
		t.Fatal("distinct peer key rejected due to unrelated key's usage")
	}
}
