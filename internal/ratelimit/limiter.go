package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultLimit and DefaultWindow implement the relay rate limit from
// spec.md §4.E / §5: 30 relays per sliding 60-second window, per key.
const (
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// bucket holds one key's hit timestamps within the current window.
type bucket struct {
	mu   sync.Mutex
	hits []time.Time
}

// Limiter is a sliding-window rate limiter keyed by relay-requester
// identity ("local" for the daemon's own socket, or a peer's remote
// address). Keys are bounded by an expirable LRU so an unbounded set of
// distinct peer addresses cannot grow the table forever; idle keys are
// evicted after one window with no activity.
type Limiter struct {
	limit  int
	window time.Duration
	cache  *expirable.LRU[string, *bucket]
}

// New creates a Limiter allowing at most limit events per window, per key,
// retaining state for at most maxKeys distinct keys at once.
func New(limit int, window time.Duration, maxKeys int) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		cache:  expirable.NewLRU[string, *bucket](maxKeys, nil, window),
	}
}

// NewDefault creates a Limiter at the spec's default 30-per-60s rate.
func NewDefault(maxKeys int) *Limiter {
	return New(DefaultLimit, DefaultWindow, maxKeys)
}

// Allow records one attempt for key and reports whether it falls within
// the current window's limit.
func (l *Limiter) Allow(key string) bool {
	b, ok := l.cache.Get(key)
	if !ok {
		b = &bucket{}
	}
	// Re-adding renews the key's expiry, so only a key idle for a whole
	// window is evicted.
	l.cache.Add(key, b)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(b.hits) && b.hits[i].Before(cutoff) {
		i++
	}
	b.hits = b.hits[i:]

	if len(b.hits) >= l.limit {
		return false
	}
	b.hits = append(b.hits, now)
	return true
}
