package naming

import (
	"os"
	"path/filepath"
)

// DefaultControlDirName is the directory holding all control-mesh state,
// relative to the user's home directory (spec.md §6).
const DefaultControlDirName = ".pi/remote-control"

// Dir resolves the control directory. An explicit override (from config or
// a flag) wins; otherwise it is <user-home>/.pi/remote-control.
func Dir(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, filepath.FromSlash(DefaultControlDirName)), nil
}

// EndpointSocketPath returns the path of a session's IPC rendezvous node.
func EndpointSocketPath(controlDir, sessionID string) string {
	return filepath.Join(controlDir, sessionID+".sock")
}

// AliasLinkPath returns the path of an alias symlink.
func AliasLinkPath(controlDir, alias string) string {
	return filepath.Join(controlDir, alias+".alias")
}

// NameFilePath returns the path of a session's persisted whimsical name.
func NameFilePath(controlDir, sessionID string) string {
	return filepath.Join(controlDir, "names", sessionID)
}

// DaemonSocketPath returns the daemon's own IPC rendezvous path.
func DaemonSocketPath(controlDir string) string {
	return filepath.Join(controlDir, "daemon.sock")
}

// DaemonPIDPath returns the path of the daemon's recorded PID file.
func DaemonPIDPath(controlDir string) string {
	return filepath.Join(controlDir, "daemon.pid")
}

// ConfigPath returns the path of the daemon's persisted configuration.
func ConfigPath(controlDir string) string {
	return filepath.Join(controlDir, "config.json")
}

// AuditLogPath returns the path of the daemon's append-only relay audit log.
func AuditLogPath(controlDir string) string {
	return filepath.Join(controlDir, "audit.log")
}

// EnsureDir creates the control directory (and its names/ subdirectory) if
// missing, with owner-only permissions.
func EnsureDir(controlDir string) error {
	if err := os.MkdirAll(controlDir, 0o700); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(controlDir, "names"), 0o700)
}

// SessionIDFromSocketPath extracts the sessionId from a `<sessionId>.sock`
// basename, or "" if p does not look like an endpoint node.
func SessionIDFromSocketPath(p string) string {
	base := filepath.Base(p)
	const suffix = ".sock"
	if len(base) <= len(suffix) || base[len(base)-len(suffix):] != suffix {
		return ""
	}
	id := base[:len(base)-len(suffix)]
	if id == "daemon" {
		return ""
	}
	return id
}
