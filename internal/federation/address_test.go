package federation_test

import (
	"testing"

	"github.com/dantte-lp/pimesh/internal/federation"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"box", "box", federation.DefaultPort},
		{"box:9000", "box", 9000},
		{"10.0.0.5:7433", "10.0.0.5", 7433},
		{"box:", "box", federation.DefaultPort},
		{"box:0", "box", federation.DefaultPort},
		{"box:abc", "box", federation.DefaultPort},
	}

	for _, c := range cases {
		host, port, err := federation.ParseAddress(c.in)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", c.in, err)
		}
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("ParseAddress(%q) = (%q, %d), want (%q, %d)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}

func TestParseAddressEmpty(t *testing.T) {
	t.Parallel()
	if _, _, err := federation.ParseAddress(""); err == nil {
		t.Fatal("ParseAddress(\"\") succeeded, want error")
	}
}
