package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/naming"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// dialTimeout bounds a single connection attempt to daemon.sock.
const dialTimeout = 2 * time.Second

// spawnPollInterval and spawnPollTimeout bound how long a client waits for
// a newly spawned daemon to open its socket (spec.md §4.E "Startup and
// self-spawn": a client unable to reach daemon.sock spawns a detached
// daemon process and waits for it to come up).
const (
	spawnPollInterval = 100 * time.Millisecond
	spawnPollTimeout  = 5 * time.Second
)

var errDaemonDidNotStart = errors.New("pimeshd did not open its socket within 5s")

// resolveControlDir applies the -control-dir override (or the default).
func resolveControlDir() (string, error) {
	return naming.Dir(controlDirOverride)
}

// dial connects to the daemon's IPC socket, spawning a detached pimeshd
// process and waiting for it to come up if no daemon is currently
// listening. This is the client-side half of the self-spawn contract; the
// daemon's own `start-daemon` handler is a no-op by design, since a
// reachable daemon.sock already implies the daemon is running.
func dial(controlDir string) (*wire.Conn, error) {
	sockPath := naming.DaemonSocketPath(controlDir)

	nc, err := net.DialTimeout("unix", sockPath, dialTimeout)
	if err == nil {
		return wire.NewConn(nc), nil
	}

	if spawnErr := spawnDaemon(controlDir); spawnErr != nil {
		return nil, fmt.Errorf("connect to %s: %w (spawn failed: %v)", sockPath, err, spawnErr)
	}

	deadline := time.Now().Add(spawnPollTimeout)
	for time.Now().Before(deadline) {
		nc, err = net.DialTimeout("unix", sockPath, dialTimeout)
		if err == nil {
			return wire.NewConn(nc), nil
		}
		time.Sleep(spawnPollInterval)
	}
	return nil, errDaemonDidNotStart
}

// spawnDaemon launches pimeshd as a detached background process rooted at
// the same control directory. detachProcess (platform-specific) puts it in
// its own session so it survives this client exiting.
func spawnDaemon(controlDir string) error {
	self, err := exec.LookPath("pimeshd")
	if err != nil {
		return err
	}

	cmd := exec.Command(self, "-control-dir", controlDir)
	detachProcess(cmd)

	return cmd.Start()
}

// request sends one command frame and returns its single response
// envelope (spec.md §4.B, §6 "request/response").
func request(wc *wire.Conn, cmdType string, body map[string]any) (wire.Response, error) {
	if body == nil {
		body = map[string]any{}
	}
	body["type"] = cmdType
	body["id"] = uuid.NewString()

	if err := wc.WriteFrame(body); err != nil {
		return wire.Response{}, fmt.Errorf("write %s request: %w", cmdType, err)
	}

	line, err := wc.ReadFrame()
	if err != nil {
		return wire.Response{}, fmt.Errorf("read %s response: %w", cmdType, err)
	}

	var resp wire.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return wire.Response{}, fmt.Errorf("decode %s response: %w", cmdType, err)
	}
	if !resp.Success {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func decodeData(resp wire.Response, out any) error {
	if len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}
