package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/wire"
)

// relay sends sessionID a command through the daemon's `relay` dispatch
// (spec.md §4.E), which picks the local session table or a federated peer
// depending on where the target actually lives. rpcFields becomes the
// inner command frame the session endpoint itself decodes.
func relay(controlDir, sessionID, rpcType string, rpcFields map[string]any, fireAndForget bool) (json.RawMessage, error) {
	wc, err := dial(controlDir)
	if err != nil {
		return nil, err
	}
	defer wc.Close()

	if rpcFields == nil {
		rpcFields = map[string]any{}
	}
	rpcFields["type"] = rpcType
	rpcFields["id"] = uuid.NewString()

	rpcCommand, err := json.Marshal(rpcFields)
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", rpcType, err)
	}

	resp, err := request(wc, "relay", map[string]any{
		"targetSessionId": sessionID,
		"rpcCommand":      json.RawMessage(rpcCommand),
		"fireAndForget":   fireAndForget,
	})
	if err != nil {
		return nil, fmt.Errorf("relay %s: %w", rpcType, err)
	}

	var data struct {
		Response json.RawMessage `json:"response"`
		Acked    bool            `json:"acked"`
	}
	if err := decodeData(resp, &data); err != nil {
		return nil, fmt.Errorf("decode relay response: %w", err)
	}
	return data.Response, nil
}

// decodeInnerData unmarshals the Data payload of an already-unwrapped
// session response.
func decodeInnerData(inner wire.Response, out any) error {
	if len(inner.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(inner.Data, out); err != nil {
		return fmt.Errorf("decode session response data: %w", err)
	}
	return nil
}

// unwrapInnerResponse decodes the endpoint's own response envelope out of
// a relayed reply, so callers deal with its Data payload directly.
func unwrapInnerResponse(raw json.RawMessage) (wire.Response, error) {
	var inner wire.Response
	if len(raw) == 0 {
		return inner, nil
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return inner, fmt.Errorf("decode session response: %w", err)
	}
	if !inner.Success {
		return inner, fmt.Errorf("session command failed: %s", inner.Error)
	}
	return inner, nil
}
