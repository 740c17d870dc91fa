package federation

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dantte-lp/pimesh/internal/session"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// State is a peer connection's place in the lifecycle state machine
// (spec.md §4.D).
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateGaveUp     State = "gaveUp"
	StateRemoved    State = "removed"
)

// frame is the flat envelope shared by every federation wire message. Only
// the fields relevant to Type are populated; the others travel as zero
// values and are omitted from the JSON (spec.md §4.D).
type frame struct {
	Type            string          `json:"type"`
	Host            string          `json:"host,omitempty"`
	Port            int             `json:"port,omitempty"`
	Sessions        []session.Info  `json:"sessions,omitempty"`
	Session         *session.Info   `json:"session,omitempty"`
	SessionID       string          `json:"sessionId,omitempty"`
	TargetSessionID string          `json:"targetSessionId,omitempty"`
	RequestID       string          `json:"requestId,omitempty"`
	Command         json.RawMessage `json:"command,omitempty"`
	Response        json.RawMessage `json:"response,omitempty"`
}

// PeerEntry is one configured or discovered peer host and its current
// connection state (spec.md §4.D, §5 "Shared-resource policy" — mutated
// only under its own mutex, never cross-thread without it).
type PeerEntry struct {
	Host string

	mu             sync.Mutex
	port           int
	state          State
	conn           *wire.Conn
	sessions       *session.Table
	outbound       bool
	removed        bool
	generation     uint64
	lastSeen       time.Time
	reconnectTimer *time.Timer
}

// Summary is a read-only snapshot of a PeerEntry for the `status` and
// `list_sessions` control-plane requests (spec.md §4.E).
type Summary struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	State        State  `json:"state"`
	SessionCount int    `json:"sessionCount"`
}

func (e *PeerEntry) snapshot() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{Host: e.Host, Port: e.port, State: e.state, SessionCount: e.sessions.Len()}
}

// Handler executes relay traffic forwarded over a peer connection.
type Handler interface {
	// HandleRPC runs an inbound relay addressed to a local session and
	// returns the raw response payload to proxy back.
	HandleRPC(targetSessionID, requestID string, command json.RawMessage) json.RawMessage
	// HandleRPCResponse delivers a correlated rpc_response to the
	// control plane's pending-relay table.
	HandleRPCResponse(requestID string, response json.RawMessage)
}

// Events receives peer lifecycle and remote session add/remove notifications, for
// the daemon's event fan-out (spec.md §4.D, §4.E).
type Events interface {
	PeerConnected(host string)
	PeerDisconnected(host string)
	PeerGaveUp(host string)
	SessionAdded(info session.Info, host string)
	SessionRemoved(id string)
}
