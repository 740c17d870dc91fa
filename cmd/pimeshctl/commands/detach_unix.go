//go:build unix

package commands

import (
	"os/exec"
	"syscall"
)

// detachProcess puts cmd in its own session so it outlives the client that
// spawned it.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
