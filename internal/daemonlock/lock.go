package daemonlock

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// lockSuffix is appended to the daemon pid path to name its advisory lock
// file, kept separate from daemon.pid itself so the pid file's contents
// stay a plain textual pid (spec.md §6 control directory layout).
const lockSuffix = ".lock"

// Lock wraps an advisory file lock next to the daemon's pid file. The
// daemon acquires it at startup and holds it until exit, so only one
// daemon runs per control directory.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock for the daemon pid file at pidPath.
func New(pidPath string) *Lock {
	return &Lock{fl: flock.New(pidPath + lockSuffix)}
}

// TryAcquire attempts to take the lock without blocking, returning false
// if another process already holds it.
func (l *Lock) TryAcquire() (bool, error) {
	return l.fl.TryLock()
}

// AcquireWithTimeout polls for the lock until acquired or d elapses.
func (l *Lock) AcquireWithTimeout(d time.Duration) (bool, error) {
	deadline := time.Now().Add(d)
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

// WritePID records the current process's pid at pidPath (spec.md §6
// "daemon.pid: textual PID of live daemon").
func WritePID(pidPath string) error {
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID reads a previously written pid file.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", pidPath, err)
	}
	return pid, nil
}

// RemovePID removes the pid file, ignoring a missing file.
func RemovePID(pidPath string) error {
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
