package endpoint

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/agentstub"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// frameHeader is decoded first from every inbound line to recover the
// command type and correlation id before attempting a type-specific
// decode (spec.md §9 "Sum types for commands").
type frameHeader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type sendRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type clearRequest struct {
	Summarize *bool `json:"summarize"`
}

type subscribeRequest struct {
	Event string `json:"event"`
}

// dispatch decodes and runs one request line, returning the single
// response envelope it produces. wc and activeSub are only used by
// subscribe, to register an event callback and remember how to cancel it
// when the connection closes.
func (s *Server) dispatch(ctx context.Context, wc *wire.Conn, line []byte, activeSub *func()) wire.Response {
	var h frameHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return wire.NewErrorResponse("", "", wire.ErrMalformedFrame.Error())
	}

	switch h.Type {
	case "send":
		return s.handleSend(line, h.ID)
	case "get_message":
		return s.handleGetMessage(h.ID)
	case "get_summary":
		return s.handleGetSummary(ctx, h.ID)
	case "clear":
		return s.handleClear(line, h.ID)
	case "abort":
		return s.handleAbort(h.ID)
	case "subscribe":
		return s.handleSubscribe(line, h.ID, wc, activeSub)
	default:
		return wire.NewErrorResponse(h.Type, h.ID, wire.ErrUnknownCommand.Error())
	}
}

func (s *Server) handleSend(line []byte, id string) wire.Response {
	var req sendRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("send", id, wire.ErrMalformedFrame.Error())
	}
	if req.Mode == "" {
		req.Mode = "steer"
	}
	if req.Mode != "steer" && req.Mode != "follow_up" {
		return wire.NewErrorResponse("send", id, wire.ErrMalformedFrame.Error())
	}

	opts := agentstub.DeliverOptions{
		TriggerTurn: s.agent.Idle(),
		DeliverAs:   req.Mode,
	}
	if err := s.agent.Deliver(req.Message, opts); err != nil {
		return wire.NewErrorResponse("send", id, err.Error())
	}

	resp, err := wire.NewResponse("send", id, nil)
	if err != nil {
		return wire.NewErrorResponse("send", id, err.Error())
	}
	return resp
}

func (s *Server) handleGetMessage(id string) wire.Response {
	branch := s.agent.Branch()

	var message any
	for i := len(branch) - 1; i >= 0; i-- {
		if branch[i].Role == "assistant" {
			message = branch[i].Text
			break
		}
	}

	resp, err := wire.NewResponse("get_message", id, map[string]any{"message": message})
	if err != nil {
		return wire.NewErrorResponse("get_message", id, err.Error())
	}
	return resp
}

func (s *Server) handleGetSummary(ctx context.Context, id string) wire.Response {
	if s.summarizer == nil {
		return wire.NewErrorResponse("get_summary", id, "no summarization model/key available")
	}

	branch := s.agent.Branch()
	lastUser := -1
	for i := len(branch) - 1; i >= 0; i-- {
		if branch[i].Role == "user" {
			lastUser = i
			break
		}
	}
	if lastUser == -1 {
		return wire.NewErrorResponse("get_summary", id, "no messages in span")
	}

	summary, err := s.summarizer.Summarize(ctx, branch[lastUser:])
	if err != nil {
		return wire.NewErrorResponse("get_summary", id, err.Error())
	}

	resp, err := wire.NewResponse("get_summary", id, map[string]any{"summary": summary})
	if err != nil {
		return wire.NewErrorResponse("get_summary", id, err.Error())
	}
	return resp
}

func (s *Server) handleClear(line []byte, id string) wire.Response {
	var req clearRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("clear", id, wire.ErrMalformedFrame.Error())
	}
	if req.Summarize != nil && *req.Summarize {
		return wire.NewErrorResponse("clear", id, "summarized clear is not supported via this channel")
	}
	if !s.agent.Idle() {
		return wire.NewErrorResponse("clear", id, wire.ErrSessionBusy.Error())
	}

	wasAtRoot := len(s.agent.Branch()) <= 1
	if !wasAtRoot {
		if err := s.agent.RewindTo(s.agent.RootEntryID()); err != nil {
			return wire.NewErrorResponse("clear", id, err.Error())
		}
	}

	resp, err := wire.NewResponse("clear", id, map[string]any{"alreadyAtRoot": wasAtRoot})
	if err != nil {
		return wire.NewErrorResponse("clear", id, err.Error())
	}
	return resp
}

func (s *Server) handleAbort(id string) wire.Response {
	s.agent.Abort()
	resp, err := wire.NewResponse("abort", id, nil)
	if err != nil {
		return wire.NewErrorResponse("abort", id, err.Error())
	}
	return resp
}

func (s *Server) handleSubscribe(line []byte, id string, wc *wire.Conn, activeSub *func()) wire.Response {
	var req subscribeRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return wire.NewErrorResponse("subscribe", id, wire.ErrMalformedFrame.Error())
	}
	if req.Event != "turn_end" {
		return wire.NewErrorResponse("subscribe", id, wire.ErrUnsupported.Error())
	}

	if *activeSub != nil {
		(*activeSub)()
	}

	subID := uuid.NewString()
	*activeSub = s.agent.Subscribe(func(entry agentstub.BranchEntry) {
		ev, err := wire.NewEvent("turn_end", subID, map[string]any{"message": entry.Text})
		if err != nil {
			return
		}
		_ = wc.WriteFrame(ev)
	})

	resp, err := wire.NewResponse("subscribe", id, map[string]any{"subscriptionId": subID})
	if err != nil {
		return wire.NewErrorResponse("subscribe", id, err.Error())
	}
	return resp
}
