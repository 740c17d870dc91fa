package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dantte-lp/pimesh/internal/agentstub"
	"github.com/dantte-lp/pimesh/internal/naming"
	"github.com/dantte-lp/pimesh/internal/wire"
)

// defaultAliasInterval is how often the endpoint reasserts its alias link
// in the absence of a triggering request (spec.md §4.B, §5).
const defaultAliasInterval = time.Second

// Summarizer produces a text summary over a span of branch entries for the
// get_summary command. The endpoint itself holds no summarization model; a
// caller that wants get_summary to succeed must supply one.
type Summarizer interface {
	Summarize(ctx context.Context, entries []agentstub.BranchEntry) (string, error)
}

// Named is an optional capability a Collaborator can implement to advertise
// a human-readable session name for alias maintenance. Collaborators that
// don't implement it never get an alias.
type Named interface {
	Name() (name string, ok bool)
}

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

// WithSummarizer installs a Summarizer for the get_summary command.
func WithSummarizer(sum Summarizer) Option {
	return func(s *Server) { s.summarizer = sum }
}

// WithAliasInterval overrides the periodic alias-reassertion cadence.
func WithAliasInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.aliasInterval = d
		}
	}
}

// Server is one session's IPC listener (spec.md §4.B).
type Server struct {
	controlDir string
	sessionID  string
	agent      agentstub.Collaborator

	summarizer    Summarizer
	aliasInterval time.Duration
	logger        *slog.Logger

	aliasMu      sync.Mutex
	currentAlias string
}

// New creates a Server for sessionID, backed by agent. It does not start
// listening until Serve is called.
func New(controlDir, sessionID string, agent agentstub.Collaborator, opts ...Option) (*Server, error) {
	if err := naming.ValidateID(sessionID); err != nil {
		return nil, err
	}

	s := &Server{
		controlDir:    controlDir,
		sessionID:     sessionID,
		agent:         agent,
		aliasInterval: defaultAliasInterval,
		logger:        slog.Default().With(slog.String("component", "endpoint"), slog.String("session", sessionID)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Serve listens on <controlDir>/<sessionID>.sock until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	sockPath := naming.EndpointSocketPath(s.controlDir, s.sessionID)
	_ = os.Remove(sockPath) // stale node from a prior crash

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
		s.logger.Warn("chmod endpoint socket", slog.Any("error", err))
	}

	go s.aliasLoop(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

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

func (s *Server) aliasLoop(ctx context.Context) {
	s.reconcileAlias()

	ticker := time.NewTicker(s.aliasInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileAlias()
		}
	}
}

// reconcileAlias re-asserts or drops this session's alias link to match
// whatever name the agent currently advertises. Best-effort: failures are
// logged, never surfaced to an RPC caller (spec.md §4.B).
func (s *Server) reconcileAlias() {
	named, ok := s.agent.(Named)
	if !ok {
		return
	}
	name, has := named.Name()

	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()

	if !has {
		if s.currentAlias != "" {
			if err := naming.RemoveAlias(s.controlDir, s.currentAlias); err != nil {
				s.logger.Warn("remove stale alias", slog.String("alias", s.currentAlias), slog.Any("error", err))
			}
			s.currentAlias = ""
		}
		return
	}

	if name != s.currentAlias && s.currentAlias != "" {
		if err := naming.RemoveAlias(s.controlDir, s.currentAlias); err != nil {
			s.logger.Warn("remove old alias", slog.String("alias", s.currentAlias), slog.Any("error", err))
		}
	}

	if err := naming.EnsureAlias(s.controlDir, name, s.sessionID); err != nil {
		s.logger.Warn("ensure alias", slog.String("alias", name), slog.Any("error", err))
		return
	}
	s.currentAlias = name
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in connection handler", slog.Any("recovered", r))
		}
	}()
	defer conn.Close()

	wc := wire.NewConn(conn)

	var activeSub func()
	defer func() {
		if activeSub != nil {
			activeSub()
		}
	}()

	for {
		line, err := wc.ReadFrame()
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				_ = wc.WriteFrame(wire.ErrorFrame{Type: wire.FrameError, Error: err.Error()})
			}
			return
		}

		s.reconcileAlias()

		resp := func() (r wire.Response) {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("panic in request handler", slog.Any("recovered", p))
					r = wire.NewErrorResponse("", "", fmt.Sprint(p))
				}
			}()
			return s.dispatch(ctx, wc, line, &activeSub)
		}()
		if err := wc.WriteFrame(resp); err != nil {
			return
		}
	}
}
