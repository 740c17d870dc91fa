package control

import (
	"encoding/json"
	"log/slog"

	"github.com/dantte-lp/pimesh/internal/session"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// discoverySink adapts Server to discovery.Sink: a locally discovered
// session change is broadcast to every connected peer and fanned out to
// daemon subscribers (spec.md §4.C "Side effects on add/remove").
type discoverySink struct{ s *Server }

func (d *discoverySink) SessionAdded(info session.Info) {
	d.s.fed.BroadcastSessionAdded(info)
	d.s.events.publish("session_added", map[string]any{
		"sessionId": info.ID, "name": info.Name, "aliases": info.Aliases,
		"host": d.s.hostname, "isRemote": false,
	})
	d.s.idle.reset()
}

func (d *discoverySink) SessionRemoved(id string) {
	d.s.fed.BroadcastSessionRemoved(id)
	d.s.events.publish("session_removed", map[string]any{"sessionId": id, "host": d.s.hostname, "isRemote": false})
}

// federationEvents adapts Server to federation.Events: peer lifecycle
// changes are fanned out to subscribers and reset the idle timer. Its
// SessionRemoved is the federation-originated case (sessions that
// disappeared because a peer disconnected) — it must not re-broadcast to
// peers, unlike discoverySink's.
type federationEvents struct{ s *Server }

func (f *federationEvents) PeerConnected(host string) {
	f.s.events.publish("peer_connected", map[string]any{"host": host})
	f.s.idle.reset()
}

func (f *federationEvents) PeerDisconnected(host string) {
	f.s.events.publish("peer_disconnected", map[string]any{"host": host})
}

func (f *federationEvents) PeerGaveUp(host string) {
	f.s.events.publish("peer_gave_up", map[string]any{"host": host})
}

// SessionAdded is the federation-originated case (a peer advertised a new
// session, either in its hello snapshot or in a mid-connection delta) — it
// must not re-broadcast to peers, unlike discoverySink's.
func (f *federationEvents) SessionAdded(info session.Info, host string) {
	f.s.events.publish("session_added", map[string]any{
		"sessionId": info.ID, "name": info.Name, "aliases": info.Aliases,
		"host": host, "isRemote": true,
	})
}

func (f *federationEvents) SessionRemoved(id string) {
	f.s.events.publish("session_removed", map[string]any{"sessionId": id, "isRemote": true})
}

// federationHandler adapts Server to federation.Handler: inbound rpc
// frames are forwarded to the named local session; inbound rpc_response
// frames resolve the matching pendingRelay (spec.md §4.E relay algorithm,
// remote leg).
type federationHandler struct{ s *Server }

func (f *federationHandler) HandleRPC(targetSessionID, requestID string, command json.RawMessage) json.RawMessage {
	var kind frameHeader
	_ = json.Unmarshal(command, &kind)
	timeout := timeoutForKind(kind.Type)

	raw, err := f.s.dialLocalAndRoundTrip(targetSessionID, command, timeout)
	if err != nil {
		resp := wire.NewErrorResponse(kind.Type, kind.ID, err.Error())
		b, marshalErr := json.Marshal(resp)
		if marshalErr != nil {
			f.s.logger.Error("marshal inbound rpc error response", slog.Any("error", marshalErr))
			return nil
		}
		return b
	}
	return raw
}

func (f *federationHandler) HandleRPCResponse(requestID string, response json.RawMessage) {
	f.s.pending.resolve(requestID, response)
}
