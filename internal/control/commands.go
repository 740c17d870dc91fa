package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/federation"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// frameHeader recovers the command type and correlation id before a
// type-specific decode (spec.md §9 "Sum types for commands").
type frameHeader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type addPeerRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type removePeerRequest struct {
	Host string `json:"host"`
}

type relayRequest struct {
	TargetSessionID string          `json:"targetSessionId"`
	RPCCommand      json.RawMessage `json:"rpcCommand"`
	RequestID       string          `json:"requestId"`
	FireAndForget   bool            `json:"fireAndForget"`
}

// dispatch decodes and runs one request line. A non-nil event channel
// means the connection has been upgraded by `subscribe`: the caller must
// stream from it instead of reading further request frames.
func (s *Server) dispatch(ctx context.Context, line []byte, peerKey string, cancelSub *func()) (wire.Response, <-chan wire.Event) {
	var h frameHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return wire.NewErrorResponse("", "", wire.ErrMalformedFrame.Error()), nil
	}

	switch h.Type {
	case "status":
		return s.handleStatus(h.ID), nil
	case "add_peer":
		return s.handleAddPeer(ctx, line, h.ID), nil
	case "remove_peer":
		return s.handleRemovePeer(line, h.ID), nil
	case "list_sessions":
		return s.handleListSessions(h.ID), nil
	case "list_tailscale":
		return s.handleListTailscale(ctx, h.ID), nil
	case "relay":
		return s.handleRelay(line, h.ID, peerKey), nil
	case "subscribe":
		return s.handleSubscribe(h.ID, cancelSub)
	case "kill":
		return s.handleKill(h.ID), nil
	case "start-daemon":
		return s.handleStartDaemon(h.ID), nil
	default:
		return wire.NewErrorResponse(h.Type, h.ID, wire.ErrUnknownCommand.Error()), nil
	}
}

func (s *Server) handleStatus(id string) wire.Response {
	st := Status{
		PID:               os.Getpid(),
		UptimeSeconds:     time.Since(s.startTime).Seconds(),
		Port:              s.port,
		LocalSessionCount: s.local.Len(),
		Peers:             s.fed.Peers(),
	}
	st.PeerCount = len(st.Peers)

	resp, err := wire.NewResponse("status", id, st)
	if err != nil {
		return wire.NewErrorResponse("status", id, err.Error())
	}
	return resp
}

func (s *Server) handleAddPeer(ctx context.Context, line []byte, id string) wire.Response {
	var req addPeerRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("add_peer", id, wire.ErrMalformedFrame.Error())
	}

	hostport := req.Host
	if req.Port != 0 {
		hostport = req.Host + ":" + strconv.Itoa(req.Port)
	}

	if err := s.fed.AddPeer(hostport); err != nil {
		return wire.NewErrorResponse("add_peer", id, err.Error())
	}

	host, _, err := federation.ParseAddress(hostport)
	if err != nil {
		return wire.NewErrorResponse("add_peer", id, err.Error())
	}

	if !s.waitForOpen(ctx, host, addPeerPollTimeout) {
		return wire.NewErrorResponse("add_peer", id, "peer did not reach open state within 10s")
	}

	if err := s.persistPeer(hostport); err != nil {
		s.logger.Warn("persist peer", slog.String("host", host), slog.Any("error", err))
	}

	resp, err := wire.NewResponse("add_peer", id, map[string]any{"host": host})
	if err != nil {
		return wire.NewErrorResponse("add_peer", id, err.Error())
	}
	return resp
}

func (s *Server) handleRemovePeer(line []byte, id string) wire.Response {
	var req removePeerRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("remove_peer", id, wire.ErrMalformedFrame.Error())
	}

	ids, err := s.fed.RemovePeer(req.Host)
	if err != nil {
		return wire.NewErrorResponse("remove_peer", id, err.Error())
	}
	for _, sid := range ids {
		s.events.publish("session_removed", map[string]any{"sessionId": sid, "host": req.Host, "isRemote": true})
	}

	if err := s.removePersistedPeer(req.Host); err != nil {
		s.logger.Warn("remove persisted peer", slog.String("host", req.Host), slog.Any("error", err))
	}

	resp, err := wire.NewResponse("remove_peer", id, nil)
	if err != nil {
		return wire.NewErrorResponse("remove_peer", id, err.Error())
	}
	return resp
}

func (s *Server) handleListSessions(id string) wire.Response {
	type entry struct {
		SessionID string   `json:"sessionId"`
		Name      string   `json:"name"`
		Aliases   []string `json:"aliases,omitempty"`
		Host      string   `json:"host"`
		IsRemote  bool     `json:"isRemote"`
	}

	var sessions []entry
	for _, info := range s.local.Snapshot() {
		sessions = append(sessions, entry{SessionID: info.ID, Name: info.Name, Aliases: info.Aliases, Host: s.hostname, IsRemote: false})
	}
	for host, infos := range s.fed.PeerSessions() {
		for _, info := range infos {
			sessions = append(sessions, entry{SessionID: info.ID, Name: info.Name, Aliases: info.Aliases, Host: host, IsRemote: true})
		}
	}

	resp, err := wire.NewResponse("list_sessions", id, map[string]any{"sessions": sessions})
	if err != nil {
		return wire.NewErrorResponse("list_sessions", id, err.Error())
	}
	return resp
}

func (s *Server) handleListTailscale(ctx context.Context, id string) wire.Response {
	if s.tailscale == nil {
		return wire.NewErrorResponse("list_tailscale", id, "tailscale listing is not available")
	}
	peers, err := s.tailscale.List(ctx)
	if err != nil {
		return wire.NewErrorResponse("list_tailscale", id, err.Error())
	}
	resp, err := wire.NewResponse("list_tailscale", id, map[string]any{"peers": peers})
	if err != nil {
		return wire.NewErrorResponse("list_tailscale", id, err.Error())
	}
	return resp
}

func (s *Server) handleSubscribe(id string, cancelSub *func()) (wire.Response, <-chan wire.Event) {
	if *cancelSub != nil {
		(*cancelSub)()
	}

	subID := uuid.NewString()
	queue, cancel := s.events.add(subID)
	*cancelSub = cancel

	resp, err := wire.NewResponse("subscribe", id, map[string]any{"subscriptionId": subID})
	if err != nil {
		return wire.NewErrorResponse("subscribe", id, err.Error()), nil
	}
	return resp, queue
}

func (s *Server) handleKill(id string) wire.Response {
	resp, err := wire.NewResponse("kill", id, nil)
	if err != nil {
		return wire.NewErrorResponse("kill", id, err.Error())
	}
	if s.onShutdown != nil {
		go s.onShutdown()
	}
	return resp
}

func (s *Server) handleStartDaemon(id string) wire.Response {
	resp, err := wire.NewResponse("start-daemon", id, map[string]any{"alreadyRunning": true})
	if err != nil {
		return wire.NewErrorResponse("start-daemon", id, err.Error())
	}
	return resp
}
