package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/dantte-lp/pimesh/internal/wire"
)

func TestNewResponseMarshalsData(t *testing.T) {
	t.Parallel()

	resp, err := wire.NewResponse("get_message", "r1", map[string]any{"message": nil})
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	if !resp.Success || resp.Command != "get_message" || resp.ID != "r1" {
		t.Errorf("NewResponse = %+v, unexpected shape", resp)
	}

	var decoded map[string]any
	if err := json.Unmarshal(resp.Data, &decoded); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if _, ok := decoded["message"]; !ok {
		t.Errorf("decoded data missing message key: %v", decoded)
	}
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	resp := wire.NewErrorResponse("clear", "r2", "session is busy")
	if resp.Success {
		t.Error("NewErrorResponse: Success = true, want false")
	}
	if resp.Error != "session is busy" {
		t.Errorf("NewErrorResponse.Error = %q, want %q", resp.Error, "session is busy")
	}
}

func TestKindOfMapsSentinels(t *testing.T) {
	t.Parallel()

	cases := map[error]wire.Kind{
		wire.ErrFrameTooLarge:   wire.KindSizeExceeded,
		wire.ErrSessionNotFound: wire.KindNotFound,
		wire.ErrPeerUnreachable: wire.KindPeerUnreachable,
		wire.ErrRelayTimeout:    wire.KindTimeout,
		wire.ErrRateLimited:     wire.KindRateLimited,
		wire.ErrSessionBusy:     wire.KindBusy,
		wire.ErrUnsupported:     wire.KindUnsupported,
		wire.ErrTransport:       wire.KindTransport,
	}

	for err, want := range cases {
		if got := wire.KindOf(err); got != want {
			t.Errorf("KindOf(%v) = %v, want %v", err, got, want)
		}
	}
}
