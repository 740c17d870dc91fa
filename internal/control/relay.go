package control

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/naming"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// newRequestID generates a requestId for a relay that didn't supply one
// (spec.md §3 "typically a UUID"), guaranteeing uniqueness within the
// daemon's lifetime (spec.md §8 invariant 3).
func newRequestID() string { return uuid.NewString() }

// handleRelay implements the relay algorithm (spec.md §4.E, the core's
// hardest path): rate-limit, pick a timeout by command kind, then try the
// local session table before falling back to a connected peer.
func (s *Server) handleRelay(line []byte, id, peerKey string) wire.Response {
	var req relayRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("relay", id, wire.ErrMalformedFrame.Error())
	}

	if !s.limiter.Allow(peerKey) {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", wire.ErrRateLimited)
		s.recordRelay("fail")
		s.recordRateLimitRejection()
		return wire.NewErrorResponse("relay", id, "Rate limit exceeded")
	}

	var kind frameHeader
	_ = json.Unmarshal(req.RPCCommand, &kind)
	timeout := timeoutForKind(kind.Type)

	if s.local.Has(req.TargetSessionID) {
		return s.relayLocal(req, id, peerKey, timeout)
	}
	return s.relayRemote(req, id, peerKey, timeout)
}

func (s *Server) relayLocal(req relayRequest, id, peerKey string, timeout time.Duration) wire.Response {
	if req.FireAndForget {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "ack", nil)
		s.recordRelay("ack")
		go func() {
			if _, err := s.dialLocalAndRoundTrip(req.TargetSessionID, req.RPCCommand, timeout); err != nil {
				s.logger.Warn("fire-and-forget local relay failed", slog.String("session", req.TargetSessionID), slog.Any("error", err))
			}
		}()
		resp, _ := wire.NewResponse("relay", id, map[string]any{"requestId": req.RequestID, "acked": true})
		return resp
	}

	raw, err := s.dialLocalAndRoundTrip(req.TargetSessionID, req.RPCCommand, timeout)
	if err != nil {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", err)
		s.recordRelay("fail")
		return wire.NewErrorResponse("relay", id, err.Error())
	}

	s.audit.record(peerKey, "relay", req.TargetSessionID, "ok", nil)
	s.recordRelay("ok")
	resp, err := wire.NewResponse("relay", id, map[string]any{"requestId": req.RequestID, "response": json.RawMessage(raw)})
	if err != nil {
		return wire.NewErrorResponse("relay", id, err.Error())
	}
	return resp
}

func (s *Server) dialLocalAndRoundTrip(sessionID string, command json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	sockPath := naming.EndpointSocketPath(s.controlDir, sessionID)
	nc, err := net.DialTimeout("unix", sockPath, timeout)
	if err != nil {
		return nil, wire.ErrTransport
	}
	defer nc.Close()
	_ = nc.SetDeadline(time.Now().Add(timeout))

	wc := wire.NewConn(nc)
	if err := wc.WriteFrame(command); err != nil {
		return nil, wire.ErrTransport
	}
	line, err := wc.ReadFrame()
	if err != nil {
		return nil, wire.ErrTransport
	}
	return json.RawMessage(line), nil
}

func (s *Server) relayRemote(req relayRequest, id, peerKey string, timeout time.Duration) wire.Response {
	host, open, ok := s.fed.FindSessionHost(req.TargetSessionID)
	if !ok {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", wire.ErrSessionNotFound)
		s.recordRelay("fail")
		return wire.NewErrorResponse("relay", id, wire.ErrSessionNotFound.Error())
	}
	if !open {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", wire.ErrPeerUnreachable)
		s.recordRelay("fail")
		return wire.NewErrorResponse("relay", id, wire.ErrPeerUnreachable.Error())
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = newRequestID()
	}

	if req.FireAndForget {
		if err := s.fed.SendRPC(host, req.TargetSessionID, requestID, req.RPCCommand); err != nil {
			s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", err)
			s.recordRelay("fail")
			return wire.NewErrorResponse("relay", id, err.Error())
		}
		s.audit.record(peerKey, "relay", req.TargetSessionID, "ack", nil)
		s.recordRelay("ack")
		resp, _ := wire.NewResponse("relay", id, map[string]any{"requestId": requestID, "acked": true})
		return resp
	}

	p := s.pending.register(requestID, timeout)
	if err := s.fed.SendRPC(host, req.TargetSessionID, requestID, req.RPCCommand); err != nil {
		s.pending.remove(requestID)
		s.audit.record(peerKey, "relay", req.TargetSessionID, "fail", err)
		s.recordRelay("fail")
		return wire.NewErrorResponse("relay", id, err.Error())
	}

	raw := <-p.done
	if raw == nil {
		s.audit.record(peerKey, "relay", req.TargetSessionID, "timeout", wire.ErrRelayTimeout)
		s.recordRelay("timeout")
		return wire.NewErrorResponse("relay", id, fmt.Sprintf("Relay timeout after %dms", timeout.Milliseconds()))
	}

	s.audit.record(peerKey, "relay", req.TargetSessionID, "ok", nil)
	s.recordRelay("ok")
	resp, err := wire.NewResponse("relay", id, map[string]any{"requestId": requestID, "response": raw})
	if err != nil {
		return wire.NewErrorResponse("relay", id, err.Error())
	}
	return resp
}
