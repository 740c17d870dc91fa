package naming

import (
	"errors"
	"strings"
)

// Sentinel errors for id/alias validation.
var (
	// ErrEmptyID indicates an empty session id or alias was rejected.
	ErrEmptyID = errors.New("id must not be empty")

	// ErrUnsafeID indicates an id contains a path separator, "..", or a
	// backslash and was rejected before touching the filesystem.
	ErrUnsafeID = errors.New("id contains an unsafe path component")
)

// SafeID reports whether s is safe to use as a filename component: non-empty,
// and free of path separators, "..", and backslashes (spec.md §3, §8).
func SafeID(s string) bool {
	return ValidateID(s) == nil
}

// ValidateID checks s against the safe-id rules and returns the specific
// sentinel error on failure, wrapped with the offending value is left to
// the caller so the error remains comparable via errors.Is.
func ValidateID(s string) error {
	if s == "" {
		return ErrEmptyID
	}
	if strings.Contains(s, "/") || strings.Contains(s, "\\") || strings.Contains(s, "..") {
		return ErrUnsafeID
	}
	return nil
}
