package naming_test

import (
	"errors"
	"testing"

	"github.com/dantte-lp/pimesh/internal/naming"
)

func TestSafeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id   string
		want bool
	}{
		{"11111111-1111-1111-1111-111111111111", true},
		{"amber-fox", true},
		{"", false},
		{"../etc/passwd", false},
		{"a/b", false},
		{`a\b`, false},
		{"a..b", false},
	}

	for _, tc := range cases {
		if got := naming.SafeID(tc.id); got != tc.want {
			t.Errorf("SafeID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestValidateIDErrors(t *testing.T) {
	t.Parallel()

	if err := naming.ValidateID(""); !errors.Is(err, naming.ErrEmptyID) {
		t.Errorf("ValidateID(\"\") = %v, want ErrEmptyID", err)
	}

	if err := naming.ValidateID("../x"); !errors.Is(err, naming.ErrUnsafeID) {
		t.Errorf("ValidateID(\"../x\") = %v, want ErrUnsafeID", err)
	}

	if err := naming.ValidateID("fine-name"); err != nil {
		t.Errorf("ValidateID(\"fine-name\") = %v, want nil", err)
	}
}
