package federation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dantte-lp/pimesh/internal/session"
	"github.com/dantte-lp/pimesh/internal/wire"
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	dialTimeout              = 5 * time.Second
	reconnectDelay           = 3 * time.Second
)

// ErrAlreadyConnected is returned by AddPeer when a connected peer already
// exists for the requested host (spec.md §4.E `add_peer`).
var ErrAlreadyConnected = errors.New("peer already connected for host")

// Option configures a Manager.
type Option func(*Manager)

// WithHeartbeatInterval overrides the default 15s heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeatInterval = d
		}
	}
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager runs the federation listener and every outbound peer connector
// (spec.md §4.D). Safe for concurrent use.
type Manager struct {
	selfHost   string
	listenPort int

	localSessions *session.Table
	handler       Handler
	events        Events

	heartbeatInterval time.Duration
	logger            *slog.Logger

	mu      sync.RWMutex
	peers   map[string]*PeerEntry
	rootCtx context.Context
}

// New creates a Manager. localSessions is the daemon's Discovery Watcher
// table, used to populate the Sessions field of every hello frame.
func New(selfHost string, listenPort int, localSessions *session.Table, handler Handler, events Events, opts ...Option) *Manager {
	m := &Manager{
		selfHost:          selfHost,
		listenPort:        listenPort,
		localSessions:     localSessions,
		handler:           handler,
		events:            events,
		heartbeatInterval: defaultHeartbeatInterval,
		logger:            slog.Default().With(slog.String("component", "federation")),
		peers:             make(map[string]*PeerEntry),
		rootCtx:           context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Listen runs the TCP listener until ctx is cancelled.
func (m *Manager) Listen(ctx context.Context) error {
	m.mu.Lock()
	m.rootCtx = ctx
	m.mu.Unlock()

	addr := net.JoinHostPort("", strconv.Itoa(m.listenPort))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		go m.handleInbound(ctx, nc)
	}
}

// AddPeer begins an outbound connection to hostport (spec.md §4.D
// "Connection lifecycle (outbound)"). It returns once the attempt has
// started; callers poll Peers/PeerState for the resulting state.
func (m *Manager) AddPeer(hostport string) error {
	host, port, err := ParseAddress(hostport)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, exists := m.peers[host]
	if exists {
		entry.mu.Lock()
		open := entry.state == StateOpen
		entry.mu.Unlock()
		if open {
			m.mu.Unlock()
			return ErrAlreadyConnected
		}
		entry.mu.Lock()
		entry.removed = false
		entry.outbound = true
		entry.port = port
		entry.generation++
		entry.mu.Unlock()
	} else {
		entry = &PeerEntry{Host: host, port: port, outbound: true, sessions: session.NewTable()}
		m.peers[host] = entry
	}
	ctx := m.rootCtx
	m.mu.Unlock()

	go func() {
		if err := m.connect(ctx, entry); err != nil {
			entry.mu.Lock()
			entry.state = StateGaveUp
			entry.mu.Unlock()
			m.events.PeerGaveUp(entry.Host)
		}
	}()
	return nil
}

// RemovePeer marks host removed, drops any live connection, cancels any
// pending reconnect, and returns the ids of sessions it had advertised
// (spec.md §4.E `remove_peer`).
func (m *Manager) RemovePeer(host string) ([]string, error) {
	m.mu.Lock()
	entry, ok := m.peers[host]
	if ok {
		delete(m.peers, host)
	}
	m.mu.Unlock()
	if !ok {
		return nil, wire.ErrNoSuchPeer
	}

	entry.mu.Lock()
	entry.removed = true
	entry.generation++
	if entry.reconnectTimer != nil {
		entry.reconnectTimer.Stop()
	}
	conn := entry.conn
	entry.conn = nil
	ids := entry.sessions.Clear()
	entry.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return ids, nil
}

// PeerState returns host's current state, if known.
func (m *Manager) PeerState(host string) (State, bool) {
	m.mu.RLock()
	entry, ok := m.peers[host]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state, true
}

// Peers returns a snapshot summary of every known peer.
func (m *Manager) Peers() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.peers))
	for _, e := range m.peers {
		out = append(out, e.snapshot())
	}
	return out
}

// PeerSessions returns a snapshot of every peer's advertised session set,
// keyed by host, for the control plane's `list_sessions` (spec.md §4.E).
func (m *Manager) PeerSessions() map[string][]session.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]session.Info, len(m.peers))
	for host, e := range m.peers {
		e.mu.Lock()
		out[host] = e.sessions.Snapshot()
		e.mu.Unlock()
	}
	return out
}

// FindSessionHost returns the host of a peer advertising targetSessionID
// and whether that peer is open, for the control plane's relay "remote
// check" (spec.md §4.E step 4). ok is false if no peer (open or otherwise)
// knows it.
func (m *Manager) FindSessionHost(targetSessionID string) (host string, open bool, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for h, e := range m.peers {
		e.mu.Lock()
		has := e.sessions.Has(targetSessionID)
		state := e.state
		e.mu.Unlock()
		if has {
			return h, state == StateOpen, true
		}
	}
	return "", false, false
}

// SendRPC forwards an rpc frame to host's open connection.
func (m *Manager) SendRPC(host, targetSessionID, requestID string, command json.RawMessage) error {
	m.mu.RLock()
	entry, ok := m.peers[host]
	m.mu.RUnlock()
	if !ok {
		return wire.ErrNoSuchPeer
	}

	entry.mu.Lock()
	conn := entry.conn
	state := entry.state
	entry.mu.Unlock()
	if state != StateOpen || conn == nil {
		return wire.ErrPeerUnreachable
	}

	return conn.WriteFrame(frame{Type: "rpc", TargetSessionID: targetSessionID, RequestID: requestID, Command: command})
}

// BroadcastSessionAdded pushes a session_added delta to every open peer
// (spec.md §4.C "Side effects on add/remove").
func (m *Manager) BroadcastSessionAdded(info session.Info) {
	m.broadcast(frame{Type: "session_added", Session: &info})
}

// BroadcastSessionRemoved pushes a session_removed delta to every open
// peer.
func (m *Manager) BroadcastSessionRemoved(id string) {
	m.broadcast(frame{Type: "session_removed", SessionID: id})
}

func (m *Manager) broadcast(f frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.peers {
		e.mu.Lock()
		conn, state := e.conn, e.state
		e.mu.Unlock()
		if state == StateOpen && conn != nil {
			_ = conn.WriteFrame(f)
		}
	}
}

// connect dials host:port, performs the hello handshake, and on success
// starts the entry's read and heartbeat loops (spec.md §4.D steps 1-5).
func (m *Manager) connect(ctx context.Context, entry *PeerEntry) error {
	entry.mu.Lock()
	entry.state = StateConnecting
	host, port := entry.Host, entry.port
	entry.mu.Unlock()

	nc, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return err
	}
	conn := wire.NewConn(nc)

	if err := m.sendHello(conn); err != nil {
		_ = nc.Close()
		return err
	}

	line, err := conn.ReadFrame()
	if err != nil {
		_ = nc.Close()
		return err
	}
	var f frame
	if err := json.Unmarshal(line, &f); err != nil || f.Type != "hello" {
		_ = nc.Close()
		return wire.ErrMalformedFrame
	}

	m.onHelloReceived(ctx, entry, f, conn)
	return nil
}

func (m *Manager) handleInbound(ctx context.Context, nc net.Conn) {
	conn := wire.NewConn(nc)

	if err := m.sendHello(conn); err != nil {
		_ = nc.Close()
		return
	}

	line, err := conn.ReadFrame()
	if err != nil {
		_ = nc.Close()
		return
	}
	var f frame
	if err := json.Unmarshal(line, &f); err != nil || f.Type != "hello" || f.Host == "" {
		_ = nc.Close()
		return
	}

	m.mu.Lock()
	entry, exists := m.peers[f.Host]
	if exists {
		// Duplicate-connection rule: close the older socket and suppress
		// its reconnect by invalidating its generation first.
		entry.mu.Lock()
		oldConn := entry.conn
		entry.generation++
		entry.mu.Unlock()
		if oldConn != nil {
			_ = oldConn.Close()
		}
	} else {
		entry = &PeerEntry{Host: f.Host, sessions: session.NewTable()}
		m.peers[f.Host] = entry
	}
	m.mu.Unlock()

	m.onHelloReceived(ctx, entry, f, conn)
}

func (m *Manager) sendHello(conn *wire.Conn) error {
	return conn.WriteFrame(frame{
		Type:     "hello",
		Host:     m.selfHost,
		Port:     m.listenPort,
		Sessions: m.localSessions.Snapshot(),
	})
}

func (m *Manager) onHelloReceived(ctx context.Context, entry *PeerEntry, f frame, conn *wire.Conn) {
	entry.mu.Lock()
	entry.conn = conn
	entry.state = StateOpen
	entry.removed = false
	entry.lastSeen = time.Now()
	if f.Port != 0 {
		entry.port = f.Port
	}
	tbl := session.NewTable()
	for _, s := range f.Sessions {
		tbl.Put(s)
	}
	entry.sessions = tbl
	entry.generation++
	gen := entry.generation
	entry.mu.Unlock()

	m.events.PeerConnected(entry.Host)

	go m.readLoop(ctx, entry, conn, gen)
	go m.heartbeatLoop(entry, conn, gen)
}

func (m *Manager) readLoop(ctx context.Context, entry *PeerEntry, conn *wire.Conn, gen uint64) {
	defer m.onDisconnect(entry, gen)

	for {
		line, err := conn.ReadFrame()
		if err != nil {
			return
		}

		entry.mu.Lock()
		if entry.generation != gen {
			entry.mu.Unlock()
			return
		}
		entry.lastSeen = time.Now()
		entry.mu.Unlock()

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			continue
		}

		switch f.Type {
		case "heartbeat":
		case "session_added":
			if f.Session != nil {
				entry.sessions.Put(*f.Session)
				m.events.SessionAdded(*f.Session, entry.Host)
			}
		case "session_removed":
			entry.sessions.Remove(f.SessionID)
			m.events.SessionRemoved(f.SessionID)
		case "rpc":
			go func(req frame) {
				resp := m.handler.HandleRPC(req.TargetSessionID, req.RequestID, req.Command)
				_ = conn.WriteFrame(frame{Type: "rpc_response", RequestID: req.RequestID, Response: resp})
			}(f)
		case "rpc_response":
			m.handler.HandleRPCResponse(f.RequestID, f.Response)
		}
	}
}

func (m *Manager) heartbeatLoop(entry *PeerEntry, conn *wire.Conn, gen uint64) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		entry.mu.Lock()
		if entry.generation != gen {
			entry.mu.Unlock()
			return
		}
		last := entry.lastSeen
		entry.mu.Unlock()

		if time.Since(last) > 3*m.heartbeatInterval {
			_ = conn.Close()
			return
		}
		if err := conn.WriteFrame(frame{Type: "heartbeat"}); err != nil {
			return
		}
	}
}

// onDisconnect handles socket closure for one connection generation
// (spec.md §4.D step 6). A stale generation (superseded by the
// duplicate-connection rule, or already removed) is a no-op.
func (m *Manager) onDisconnect(entry *PeerEntry, gen uint64) {
	entry.mu.Lock()
	if entry.generation != gen {
		entry.mu.Unlock()
		return
	}
	wasRemoved := entry.removed
	entry.conn = nil
	outbound := entry.outbound
	ids := entry.sessions.Clear()
	if !wasRemoved {
		entry.state = StateConnecting
	}
	entry.mu.Unlock()

	if wasRemoved {
		return
	}

	m.events.PeerDisconnected(entry.Host)
	for _, id := range ids {
		m.events.SessionRemoved(id)
	}

	if outbound {
		m.scheduleReconnect(entry)
	}
}

func (m *Manager) scheduleReconnect(entry *PeerEntry) {
	m.mu.RLock()
	ctx := m.rootCtx
	m.mu.RUnlock()

	entry.mu.Lock()
	entry.reconnectTimer = time.AfterFunc(reconnectDelay, func() {
		entry.mu.Lock()
		removed := entry.removed
		entry.mu.Unlock()
		if removed {
			return
		}
		if err := m.connect(ctx, entry); err != nil {
			entry.mu.Lock()
			entry.state = StateGaveUp
			entry.mu.Unlock()
			m.events.PeerGaveUp(entry.Host)
		}
	})
	entry.mu.Unlock()
}
