package wire

import "encoding/json"

// MaxFrameBytes is the hard cap on any single newline-delimited frame, on
// every transport in the mesh (spec.md §3, §5, §6).
const MaxFrameBytes = 8192

// Envelope kinds. Every frame on every listener carries one of these as its
// "type" field (or, for the session/daemon RPC command itself, the command
// name — see Request.Type).
const (
	FrameResponse = "response"
	FrameEvent    = "event"
	FrameError    = "error"
)

// Request is the generic shape of an inbound command frame on the session
// endpoint or the daemon control plane: a closed tagged union on Type, with
// the command-specific fields left as raw JSON for the dispatcher to decode
// into a typed struct (spec.md §9 "Sum types for commands").
type Request struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// Response is the single envelope every accepted request gets exactly one
// of (spec.md §4.B, §6).
type Response struct {
	Type    string          `json:"type"`
	Command string          `json:"command,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	ID      string          `json:"id,omitempty"`
}

// Event is the envelope for streamed, unsolicited frames (turn-end at the
// endpoint; session/peer events at the daemon).
type Event struct {
	Type           string          `json:"type"`
	Event          string          `json:"event"`
	Data           json.RawMessage `json:"data,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
}

// ErrorFrame is the bare close-with-error frame sent for protocol-level
// failures that terminate the connection (oversized frame — spec.md §8
// scenario 6).
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewResponse builds a successful response envelope.
func NewResponse(command, id string, data any) (Response, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Response{}, err
	}
	return Response{Type: FrameResponse, Command: command, Success: true, Data: raw, ID: id}, nil
}

// NewErrorResponse builds a failed response envelope.
func NewErrorResponse(command, id, errMsg string) Response {
	return Response{Type: FrameResponse, Command: command, Success: false, Error: errMsg, ID: id}
}

// NewEvent builds an event envelope.
func NewEvent(event, subscriptionID string, data any) (Event, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: FrameEvent, Event: event, Data: raw, SubscriptionID: subscriptionID}, nil
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return b, nil
}
