package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/dantte-lp/pimesh/internal/federation"
	pimeshmetrics "github.com/dantte-lp/pimesh/internal/metrics"
	"github.com/dantte-lp/pimesh/internal/naming"
	"github.com/dantte-lp/pimesh/internal/ratelimit"
	"github.com/dantte-lp/pimesh/internal/session"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// defaultAutoShutdown and defaultRateLimitKeys are spec.md §4.E / §6
// defaults not already covered by the ratelimit package's own constants.
const (
	defaultAutoShutdown  = 300 * time.Second
	defaultRateLimitKeys = 1024
)

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoShutdown overrides the default 300s idle-shutdown timeout.
func WithAutoShutdown(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.autoShutdown = d
		}
	}
}

// WithRateLimit overrides the default 30-per-60s relay rate limit.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		if limit > 0 && window > 0 {
			s.limiter = ratelimit.New(limit, window, defaultRateLimitKeys)
		}
	}
}

// WithMetrics installs a Collector to sample gauges and record relay,
// rate-limit, and frame-size counters (spec.md §11). Without this option
// the server runs with metrics disabled.
func WithMetrics(c *pimeshmetrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// TailscaleLister runs the external VPN listing tool and returns its
// parsed peers (spec.md §4.E `list_tailscale`). Optional: a Server with no
// lister installed fails the request cleanly.
type TailscaleLister interface {
	List(ctx context.Context) ([]TailscalePeer, error)
}

// TailscalePeer is one entry of a `list_tailscale` response.
type TailscalePeer struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

// Server is the daemon's own control-plane IPC listener (spec.md §4.E).
type Server struct {
	controlDir string
	hostname   string
	port       int
	startTime  time.Time

	local *session.Table
	fed   *federation.Manager

	limiter *ratelimit.Limiter
	pending *pendingTable
	events  *broadcaster
	audit   *auditLog
	idle    *idleTimer

	autoShutdown time.Duration
	tailscale    TailscaleLister
	onShutdown   func()
	metrics      *pimeshmetrics.Collector

	logger *slog.Logger
}

// New creates a Server over local (the Discovery Watcher's session table)
// and fed (the Federation Manager). onShutdown is invoked once, from the
// idle timer or the `kill` command, to let the caller tear the daemon down
// (cancel its root context).
func New(controlDir string, port int, local *session.Table, fed *federation.Manager, onShutdown func(), opts ...Option) *Server {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	s := &Server{
		controlDir:   controlDir,
		hostname:     hostname,
		port:         port,
		startTime:    time.Now(),
		local:        local,
		fed:          fed,
		limiter:      ratelimit.NewDefault(defaultRateLimitKeys),
		pending:      newPendingTable(),
		autoShutdown: defaultAutoShutdown,
		onShutdown:   onShutdown,
		logger:       slog.Default().With(slog.String("component", "control")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = newBroadcaster(s.logger)
	s.audit = newAuditLog(naming.AuditLogPath(controlDir), s.logger)
	s.idle = newIdleTimer(s.autoShutdown, s.counts, s.onIdleExpired)
	return s
}

// SetTailscaleLister installs the `list_tailscale` passthrough.
func (s *Server) SetTailscaleLister(l TailscaleLister) { s.tailscale = l }

// SetFederation completes construction for the bootstrap ordering cmd/pimeshd
// requires: a federation.Manager needs this Server's adapters (Discovery/
// Federation Handler) at its own construction time, so the Server is built
// first with fed left nil and wired in once the Manager exists. Must be
// called before Serve.
func (s *Server) SetFederation(fed *federation.Manager) { s.fed = fed }

// SetLocal completes construction the same way SetFederation does: a
// discovery.Watcher owns the session.Table and needs this Server's
// DiscoverySink at its own construction time, so the table is wired in once
// the Watcher exists. Must be called before Serve.
func (s *Server) SetLocal(local *session.Table) { s.local = local }

// DiscoverySink returns the adapter to hand to discovery.Watcher: local
// session changes are broadcast to peers and fanned out to subscribers.
func (s *Server) DiscoverySink() *discoverySink { return &discoverySink{s} }

// FederationEvents returns the adapter to hand to federation.Manager: peer
// lifecycle changes are fanned out to subscribers and reset the idle
// timer.
func (s *Server) FederationEvents() *federationEvents { return &federationEvents{s} }

// FederationHandler returns the adapter to hand to federation.Manager for
// inbound rpc/rpc_response frames.
func (s *Server) FederationHandler() *federationHandler { return &federationHandler{s} }

func (s *Server) counts() (int, int) {
	return s.local.Len(), len(s.fed.Peers())
}

// sampleMetricsLoop periodically syncs the session and peer-state gauges,
// which have no natural "on change" hook covering every mutation path.
func (s *Server) sampleMetricsLoop(ctx context.Context) {
	const sampleInterval = 10 * time.Second
	t := time.NewTicker(sampleInterval)
	defer t.Stop()

	s.sampleGauges()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sampleGauges()
		}
	}
}

func (s *Server) sampleGauges() {
	s.metrics.SetLocalSessions(s.local.Len())

	counts := map[federation.State]int{}
	for _, p := range s.fed.Peers() {
		counts[p.State]++
	}
	s.metrics.SetPeerCount(string(federation.StateConnecting), counts[federation.StateConnecting])
	s.metrics.SetPeerCount(string(federation.StateOpen), counts[federation.StateOpen])
	s.metrics.SetPeerCount(string(federation.StateGaveUp), counts[federation.StateGaveUp])
}

func (s *Server) recordRelay(result string) {
	if s.metrics != nil {
		s.metrics.RecordRelay(result)
	}
}

func (s *Server) recordRateLimitRejection() {
	if s.metrics != nil {
		s.metrics.RecordRateLimitRejection()
	}
}

func (s *Server) recordFrameSizeRejection() {
	if s.metrics != nil {
		s.metrics.RecordFrameSizeRejection()
	}
}

func (s *Server) onIdleExpired() {
	s.logger.Info("auto-shutdown: idle with no local sessions or connected peers")
	if s.onShutdown != nil {
		s.onShutdown()
	}
}

// Serve listens on <controlDir>/daemon.sock until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	sockPath := naming.DaemonSocketPath(s.controlDir)
	_ = os.Remove(sockPath)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", sockPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ln.Close()
		_ = os.Remove(sockPath)
	}()

	if err := os.Chmod(sockPath, 0o600); err != nil {
		s.logger.Warn("chmod daemon socket", slog.Any("error", err))
	}

	s.idle.start()
	defer s.idle.stop()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	if s.metrics != nil {
		go s.sampleMetricsLoop(ctx)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				return err
			}
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in connection handler", slog.Any("recovered", r))
		}
	}()
	defer conn.Close()

	wc := wire.NewConn(conn)
	peerKey := "local"

	var cancelSub func()
	defer func() {
		if cancelSub != nil {
			cancelSub()
		}
	}()

	for {
		line, err := wc.ReadFrame()
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				s.recordFrameSizeRejection()
				_ = wc.WriteFrame(wire.ErrorFrame{Type: wire.FrameError, Error: err.Error()})
			}
			return
		}

		s.idle.reset()

		resp, queue := func() (r wire.Response, q <-chan wire.Event) {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("panic in request handler", slog.Any("recovered", p))
					r, q = wire.NewErrorResponse("", "", fmt.Sprint(p)), nil
				}
			}()
			return s.dispatch(ctx, line, peerKey, &cancelSub)
		}()
		if err := wc.WriteFrame(resp); err != nil {
			return
		}
		if queue != nil {
			s.streamEvents(wc, queue)
			return
		}
	}
}

// streamEvents pushes every event published after `subscribe` until the
// queue closes (subscriber dropped for a full backlog) or the write side
// fails. `subscribe` upgrades the whole connection to an event stream
// (spec.md §4.E), so once this returns the connection is done.
func (s *Server) streamEvents(wc *wire.Conn, queue <-chan wire.Event) {
	for ev := range queue {
		if err := wc.WriteFrame(ev); err != nil {
			return
		}
	}
}
