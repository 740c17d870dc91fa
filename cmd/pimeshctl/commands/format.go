package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dantte-lp/pimesh/internal/federation"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

type statusView struct {
	PID               int                  `json:"pid"`
	UptimeSeconds     float64              `json:"uptimeSeconds"`
	Port              int                  `json:"port"`
	LocalSessionCount int                  `json:"localSessionCount"`
	PeerCount         int                  `json:"peerCount"`
	Peers             []federation.Summary `json:"peers"`
}

func formatStatus(st statusView, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(st)
	case formatTable:
		return formatStatusTable(st), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatStatusTable(st statusView) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "PID:            %d\n", st.PID)
	fmt.Fprintf(&buf, "Uptime:         %.0fs\n", st.UptimeSeconds)
	fmt.Fprintf(&buf, "Port:           %d\n", st.Port)
	fmt.Fprintf(&buf, "Local sessions: %d\n", st.LocalSessionCount)
	fmt.Fprintf(&buf, "Peers:          %d\n", st.PeerCount)

	if len(st.Peers) == 0 {
		return buf.String()
	}

	buf.WriteString("\n")
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tPORT\tSTATE\tSESSIONS")
	for _, p := range st.Peers {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", p.Host, p.Port, p.State, p.SessionCount)
	}
	_ = w.Flush()

	return buf.String()
}

type sessionEntry struct {
	SessionID string   `json:"sessionId"`
	Name      string   `json:"name"`
	Aliases   []string `json:"aliases,omitempty"`
	Host      string   `json:"host"`
	IsRemote  bool     `json:"isRemote"`
}

func formatSessions(sessions []sessionEntry, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(sessions)
	case formatTable:
		return formatSessionsTable(sessions), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatSessionsTable(sessions []sessionEntry) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION-ID\tNAME\tHOST\tREMOTE\tALIASES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", s.SessionID, s.Name, s.Host, s.IsRemote, strings.Join(s.Aliases, ","))
	}
	_ = w.Flush()
	return buf.String()
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
