// Package render formats session messages for display. It owns the
// sender-info convention (spec.md §4.B, §6 "Sender tagging"): a send
// payload may carry a trailing <sender_info>{...}</sender_info> fragment
// identifying the originating session. The endpoint forwards that fragment
// to the agent verbatim; only this package strips and interprets it, for
// whatever is presenting the message to a human.
package render

import (
	"encoding/json"
	"strings"
)

const (
	senderInfoOpen  = "<sender_info>"
	senderInfoClose = "</sender_info>"
)

// SenderInfo is the structured payload embedded by callers inside a send
// message body, identifying who originated it.
type SenderInfo struct {
	Host      string `json:"host"`
	SessionID string `json:"sessionId"`
	Alias     string `json:"alias,omitempty"`
}

// StripSenderInfo removes a trailing <sender_info>{...}</sender_info>
// fragment from a message body, for display. It is never applied on the
// write path to the agent, which always receives the message verbatim.
func StripSenderInfo(message string) string {
	start := strings.Index(message, senderInfoOpen)
	if start < 0 {
		return message
	}
	end := strings.Index(message[start:], senderInfoClose)
	if end < 0 {
		return message
	}
	end += start + len(senderInfoClose)

	return strings.TrimSpace(message[:start] + message[end:])
}

// ParseSenderInfo extracts the SenderInfo fragment from a message body, if
// present.
func ParseSenderInfo(message string) (SenderInfo, bool) {
	start := strings.Index(message, senderInfoOpen)
	if start < 0 {
		return SenderInfo{}, false
	}
	start += len(senderInfoOpen)
	end := strings.Index(message[start:], senderInfoClose)
	if end < 0 {
		return SenderInfo{}, false
	}

	var info SenderInfo
	if err := json.Unmarshal([]byte(message[start:start+end]), &info); err != nil {
		return SenderInfo{}, false
	}
	return info, true
}

// Format renders a message body the way a human-facing display should show
// it: the sender-info fragment, if present and well-formed, stripped from
// the body and replaced with a "from <id/name> [remote: <host>]" prefix.
// A message with no fragment, or a malformed one, is shown unchanged.
func Format(message string) string {
	info, ok := ParseSenderInfo(message)
	if !ok {
		return message
	}

	label := info.Alias
	if label == "" {
		label = info.SessionID
	}

	from := "from " + label
	if info.Host != "" {
		from += " [remote: " + info.Host + "]"
	}

	body := StripSenderInfo(message)
	if body == "" {
		return from
	}
	return from + ": " + body
}
