package control

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dantte-lp/pimesh/internal/federation"
)

// Status is the response payload for the `status` request (spec.md §4.E).
type Status struct {
	PID               int                  `json:"pid"`
	UptimeSeconds     float64              `json:"uptimeSeconds"`
	Port              int                  `json:"port"`
	LocalSessionCount int                  `json:"localSessionCount"`
	PeerCount         int                  `json:"peerCount"`
	Peers             []federation.Summary `json:"peers"`
}

// timeoutForKind maps a relayed command's type to the deadline applied to
// it (spec.md §4.E step 2).
func timeoutForKind(kind string) time.Duration {
	switch kind {
	case "get_message", "clear":
		return 15 * time.Second
	case "get_summary":
		return 60 * time.Second
	case "send":
		return 5 * time.Minute
	default:
		return 10 * time.Second
	}
}

// pendingRelay is one outstanding cross-host relay awaiting its
// rpc_response, correlated by requestId (spec.md §3 PendingRelay, §9
// "Correlating outstanding relays").
type pendingRelay struct {
	done  chan json.RawMessage
	timer *time.Timer
}

// pendingTable is the requestId -> pendingRelay correlation map. Entries
// are removed on first of: response received, deadline elapsed, or the
// table being torn down with the daemon. A late response looking up an
// absent key is silently dropped.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRelay
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRelay)}
}

// register installs a new pending entry for requestID. If no response
// arrives within d, the entry is removed and a nil value is pushed onto
// done so a blocked caller wakes up and can distinguish a timeout (nil)
// from a real, possibly empty, response.
func (t *pendingTable) register(requestID string, d time.Duration) *pendingRelay {
	p := &pendingRelay{done: make(chan json.RawMessage, 1)}
	t.mu.Lock()
	t.entries[requestID] = p
	t.mu.Unlock()

	p.timer = time.AfterFunc(d, func() {
		t.remove(requestID)
		p.done <- nil
	})
	return p
}

// resolve delivers response to the pending entry for requestID, if any. A
// miss (unknown or already-resolved requestId) is a silent no-op (spec.md
// §3 invariant: "never forwards an rpc_response whose requestId it did not
// originate").
func (t *pendingTable) resolve(requestID string, response json.RawMessage) {
	t.mu.Lock()
	p, ok := t.entries[requestID]
	if ok {
		delete(t.entries, requestID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.done <- response
}

func (t *pendingTable) remove(requestID string) {
	t.mu.Lock()
	delete(t.entries, requestID)
	t.mu.Unlock()
}
