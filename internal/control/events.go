package control

import (
	"log/slog"
	"sync"

	"github.com/dantte-lp/pimesh/internal/wire"
)

// subscriberQueueDepth bounds each subscriber's event backlog (spec.md §5
// "Back-pressure and limits"). A full queue drops the subscriber rather
// than blocking the broadcaster.
const subscriberQueueDepth = 64

// subscriber is one daemon-level event-stream connection (spec.md §3
// Subscription: "daemon subscriptions are long-lived"). Unlike the
// endpoint's one-shot turn_end subscription, this fires for every
// session/peer event until the connection closes.
type subscriber struct {
	id    string
	queue chan wire.Event
}

// broadcaster fans daemon events out to every live subscriber
// (spec.md §4.E "Event fan-out").
type broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	logger *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{subs: make(map[string]*subscriber), logger: logger}
}

// add registers a new subscriber and returns its event channel plus a
// cancel func to unregister it.
func (b *broadcaster) add(id string) (<-chan wire.Event, func()) {
	sub := &subscriber{id: id, queue: make(chan wire.Event, subscriberQueueDepth)}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	return sub.queue, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// publish builds one event frame and delivers it to every subscriber,
// dropping (and removing) any whose queue is full (spec.md §5: "a full
// queue logs and removes the subscriber").
func (b *broadcaster) publish(event string, data any) {
	ev, err := wire.NewEvent(event, "", data)
	if err != nil {
		b.logger.Warn("marshal daemon event", slog.String("event", event), slog.Any("error", err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub.queue <- ev:
		default:
			b.logger.Warn("event queue full, dropping subscriber", slog.String("subscriber", id))
			delete(b.subs, id)
			close(sub.queue)
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
