package federation

import (
	"strconv"
	"strings"

	"github.com/dantte-lp/pimesh/internal/wire"
)

// DefaultPort is the federation listener's default TCP port (spec.md §4.D).
const DefaultPort = 7433

// ParseAddress splits a peer string of the form host[:port] (spec.md §4.D
// "Address parsing"). A trailing `:<digits>` is taken as the port;
// anything else is treated as a bare host using DefaultPort.
func ParseAddress(s string) (host string, port int, err error) {
	if s == "" {
		return "", 0, wire.ErrMalformedFrame
	}

	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, DefaultPort, nil
	}

	portStr := s[idx+1:]
	if portStr == "" || !isAllDigits(portStr) {
		return s[:idx], DefaultPort, nil
	}

	p, convErr := strconv.Atoi(portStr)
	if convErr != nil || p == 0 {
		return s[:idx], DefaultPort, nil
	}
	return s[:idx], p, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
