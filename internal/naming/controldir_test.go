package naming_test

import (
	"path/filepath"
	"testing"

	"github.com/dantte-lp/pimesh/internal/naming"
)

func TestDirOverride(t *testing.T) {
	t.Parallel()

	got, err := naming.Dir("/tmp/explicit")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if got != "/tmp/explicit" {
		t.Errorf("Dir override = %q, want /tmp/explicit", got)
	}
}

func TestDirDefault(t *testing.T) {
	t.Parallel()

	got, err := naming.Dir("")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if filepath.Base(got) != "remote-control" {
		t.Errorf("Dir() = %q, want a path ending in remote-control", got)
	}
}

func TestSessionIDFromSocketPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/tmp/cd/11111111-1111-1111-1111-111111111111.sock": "11111111-1111-1111-1111-111111111111",
		"/tmp/cd/daemon.sock":                                "",
		"/tmp/cd/amber-fox.alias":                            "",
	}

	for path, want := range cases {
		if got := naming.SessionIDFromSocketPath(path); got != want {
			t.Errorf("SessionIDFromSocketPath(%q) = %q, want %q", path, got, want)
		}
	}
}
