package federation_test

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dantte-lp/pimesh/internal/federation"
	"github.com/dantte-lp/pimesh/internal/session"
	"github.com/dantte-lp/pimesh/internal/wire"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls int
}

func (h *fakeHandler) HandleRPC(targetSessionID, requestID string, command json.RawMessage) json.RawMessage {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	resp, _ := json.Marshal(map[string]any{"echo": targetSessionID})
	return resp
}

func (h *fakeHandler) HandleRPCResponse(requestID string, response json.RawMessage) {}

type fakeEvents struct {
	mu        sync.Mutex
	connected []string
	dropped   []string
	gaveUp    []string
	added     []session.Info
	removed   []string
}

func (e *fakeEvents) PeerConnected(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = append(e.connected, host)
}
func (e *fakeEvents) PeerDisconnected(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropped = append(e.dropped, host)
}
func (e *fakeEvents) PeerGaveUp(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gaveUp = append(e.gaveUp, host)
}
func (e *fakeEvents) SessionAdded(info session.Info, host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added = append(e.added, info)
}
func (e *fakeEvents) SessionRemoved(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, id)
}
func (e *fakeEvents) hasAdded(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, info := range e.added {
		if info.ID == id {
			return true
		}
	}
	return false
}
func (e *fakeEvents) hasRemoved(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.removed {
		if r == id {
			return true
		}
	}
	return false
}
func (e *fakeEvents) hasConnected(host string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.connected {
		if h == host {
			return true
		}
	}
	return false
}
func (e *fakeEvents) hasGaveUp(host string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.gaveUp {
		if h == host {
			return true
		}
	}
	return false
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestManager(t *testing.T, host string, port int, heartbeat time.Duration) (*federation.Manager, *fakeEvents, *session.Table) {
	t.Helper()
	tbl := session.NewTable()
	events := &fakeEvents{}
	m := federation.New(host, port, tbl, &fakeHandler{}, events, federation.WithHeartbeatInterval(heartbeat))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Listen(ctx) }()
	time.Sleep(20 * time.Millisecond) // let the listener bind

	return m, events, tbl
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestHandshakeReachesOpenOnBothSides(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	portB := freePort(t)

	mgrA, eventsA, _ := newTestManager(t, "127.0.0.1", portA, time.Hour)
	_, eventsB, _ := newTestManager(t, "127.0.0.1", portB, time.Hour)

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})
	if !eventsA.hasConnected("127.0.0.1") {
		t.Error("connector side never saw PeerConnected")
	}
	waitUntil(t, 2*time.Second, func() bool { return eventsB.hasConnected("127.0.0.1") })
}

func TestSessionDeltaPropagatesToPeer(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	portB := freePort(t)

	mgrA, _, localA := newTestManager(t, "127.0.0.1", portA, time.Hour)
	mgrB, eventsB, _ := newTestManager(t, "127.0.0.1", portB, time.Hour)

	localA.Put(session.Info{ID: "sessA", Name: "lucky-otter"})

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})

	// initial hello already carried sessA; confirm B's view of A includes it
	waitUntil(t, time.Second, func() bool {
		host, _, ok := mgrB.FindSessionHost("sessA")
		return ok && host == "127.0.0.1"
	})

	// A mid-connection delta (not the hello snapshot) must reach B's event
	// subscriber too, not just update B's mirrored session table.
	mgrA.BroadcastSessionAdded(session.Info{ID: "sessA2", Name: "bright-falcon"})
	waitUntil(t, time.Second, func() bool {
		_, _, ok := mgrB.FindSessionHost("sessA2")
		return ok
	})
	waitUntil(t, time.Second, func() bool { return eventsB.hasAdded("sessA2") })

	mgrA.BroadcastSessionRemoved("sessA2")
	waitUntil(t, time.Second, func() bool {
		_, _, ok := mgrB.FindSessionHost("sessA2")
		return !ok
	})
	waitUntil(t, time.Second, func() bool { return eventsB.hasRemoved("sessA2") })
}

func TestSendRPCToOpenPeer(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	portB := freePort(t)

	mgrA, _, _ := newTestManager(t, "127.0.0.1", portA, time.Hour)
	_, _, _ = newTestManager(t, "127.0.0.1", portB, time.Hour)

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})

	cmd, _ := json.Marshal(map[string]any{"type": "get_message"})
	if err := mgrA.SendRPC("127.0.0.1", "remote-sess", "req-1", cmd); err != nil {
		t.Fatalf("SendRPC: %v", err)
	}
	// handler on B runs asynchronously and writes an rpc_response back to
	// A; we only assert SendRPC itself didn't fail here since the
	// response-side correlation belongs to the control plane, not this
	// package. Give B's handler a moment to run without asserting more.
	time.Sleep(50 * time.Millisecond)
}

func TestAddPeerWhileAlreadyOpenFails(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	portB := freePort(t)

	mgrA, _, _ := newTestManager(t, "127.0.0.1", portA, time.Hour)
	_, _, _ = newTestManager(t, "127.0.0.1", portB, time.Hour)

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != federation.ErrAlreadyConnected {
		t.Fatalf("second AddPeer = %v, want ErrAlreadyConnected", err)
	}
}

func TestRemovePeerClosesConnectionAndClearsSessions(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	portB := freePort(t)

	mgrA, _, _ := newTestManager(t, "127.0.0.1", portA, time.Hour)
	_, _, _ = newTestManager(t, "127.0.0.1", portB, time.Hour)

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})

	if _, err := mgrA.RemovePeer("127.0.0.1"); err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	if _, ok := mgrA.PeerState("127.0.0.1"); ok {
		t.Fatal("peer entry still present after RemovePeer")
	}
}

func TestDeadPeerDetectedAndReconnectGivesUp(t *testing.T) {
	t.Parallel()

	portA := freePort(t)
	heartbeat := 30 * time.Millisecond

	mgrA, eventsA, _ := newTestManager(t, "127.0.0.1", portA, heartbeat)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	portB := ln.Addr().(*net.TCPAddr).Port

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		// Consume A's hello, answer with our own once, then go silent:
		// no further heartbeats, and the listener is closed so a later
		// reconnect attempt has nothing to dial.
		wc := wire.NewConn(nc)
		_, _ = wc.ReadFrame()
		_ = wc.WriteFrame(map[string]any{
			"type": "hello", "host": "127.0.0.1", "port": portB, "sessions": []any{},
		})
		_ = ln.Close()
	}()

	if err := mgrA.AddPeer("127.0.0.1:" + strconv.Itoa(portB)); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		st, ok := mgrA.PeerState("127.0.0.1")
		return ok && st == federation.StateOpen
	})

	// B never sends a heartbeat again; A's own heartbeat loop declares it
	// dead after 3x the interval, closes the socket, and its single
	// reconnect attempt 3s later fails since nothing listens anymore.
	waitUntil(t, 8*time.Second, func() bool { return eventsA.hasGaveUp("127.0.0.1") })
}
