package naming

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotAnAlias is returned when a path that was expected to be an alias
// symlink turns out not to be a symlink at all.
var ErrNotAnAlias = errors.New("not an alias symlink")

// EnsureAlias makes `<alias>.alias` point at `<sessionID>.sock`, creating or
// repointing the symlink as needed. It is a no-op if the link already points
// at the right target. Best-effort per spec.md §4.B: callers must not fail
// an RPC because alias reconciliation failed.
func EnsureAlias(controlDir, alias, sessionID string) error {
	if err := ValidateID(alias); err != nil {
		return err
	}
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	link := AliasLinkPath(controlDir, alias)
	target := sessionID + ".sock"

	current, err := os.Readlink(link)
	if err == nil && current == target {
		return nil
	}
	if err == nil {
		// Wrong target: replace it.
		if rmErr := os.Remove(link); rmErr != nil {
			return rmErr
		}
	}

	return os.Symlink(target, link)
}

// RemoveAlias removes `<alias>.alias` if present. Missing links are not an
// error.
func RemoveAlias(controlDir, alias string) error {
	link := AliasLinkPath(controlDir, alias)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ResolveAlias reads `<alias>.alias` and returns the sessionId it points at.
// Readers always reread from disk (spec.md §9 "Alias reconciliation"): no
// value is cached across calls.
func ResolveAlias(controlDir, alias string) (string, error) {
	link := AliasLinkPath(controlDir, alias)

	info, err := os.Lstat(link)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", ErrNotAnAlias
	}

	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}

	return SessionIDFromSocketPath(target), nil
}

// AliasesFor scans the control directory for every `*.alias` link whose
// target is `<sessionID>.sock`, returning the bare alias names in the order
// the directory was read. Used by the Discovery Watcher to rebuild
// SessionInfo.aliases from scratch, per spec.md §9.
func AliasesFor(controlDir, sessionID string) ([]string, error) {
	entries, err := os.ReadDir(controlDir)
	if err != nil {
		return nil, err
	}

	target := sessionID + ".sock"
	var aliases []string

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".alias") {
			continue
		}

		full := filepath.Join(controlDir, name)
		linkTarget, err := os.Readlink(full)
		if err != nil {
			continue
		}
		if linkTarget == target {
			aliases = append(aliases, strings.TrimSuffix(name, ".alias"))
		}
	}

	return aliases, nil
}

// LoadPersistedName reads a session's persisted whimsical name from
// names/<sessionID>. Returns ok=false if no name has been persisted yet.
func LoadPersistedName(controlDir, sessionID string) (name string, ok bool, err error) {
	data, err := os.ReadFile(NameFilePath(controlDir, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// PersistName writes a session's whimsical name to names/<sessionID>,
// creating the names/ directory if necessary.
func PersistName(controlDir, sessionID, name string) error {
	if err := os.MkdirAll(filepath.Join(controlDir, "names"), 0o700); err != nil {
		return err
	}
	return os.WriteFile(NameFilePath(controlDir, sessionID), []byte(name), 0o600)
}
