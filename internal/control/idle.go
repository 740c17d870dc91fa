package control

import (
	"sync"
	"time"
)

// idleTimer implements the daemon's auto-shutdown policy (spec.md §4.E
// "Auto-shutdown"): after a configurable idle period with zero local
// sessions and zero connected peers, fire once. Any meaningful event
// resets the clock.
type idleTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	timeout  time.Duration
	counts   func() (localSessions, connectedPeers int)
	onExpire func()
}

func newIdleTimer(timeout time.Duration, counts func() (int, int), onExpire func()) *idleTimer {
	return &idleTimer{timeout: timeout, counts: counts, onExpire: onExpire}
}

// start arms the timer for the first time.
func (it *idleTimer) start() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.timer = time.AfterFunc(it.timeout, it.fire)
}

// reset is called on every meaningful event: new session, peer connect,
// inbound frame (spec.md §4.E). If the daemon is not currently idle the
// reset is still cheap — it simply reschedules the same check.
func (it *idleTimer) reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.timer != nil {
		it.timer.Stop()
	}
	it.timer = time.AfterFunc(it.timeout, it.fire)
}

func (it *idleTimer) fire() {
	local, peers := it.counts()
	if local == 0 && peers == 0 {
		it.onExpire()
		return
	}
	// Activity happened between scheduling and firing; reschedule rather
	// than exit on a stale snapshot.
	it.reset()
}

func (it *idleTimer) stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.timer != nil {
		it.timer.Stop()
	}
}
