package control

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dantte-lp/pimesh/internal/config"
	"github.com/dantte-lp/pimesh/internal/federation"
	"github.com/dantte-lp/pimesh/internal/naming"
)

var errNotYetOpen = errors.New("peer not yet open")

// addPeerPollTimeout bounds how long `add_peer` waits for the new
// connection to reach `open` before giving up (spec.md §4.E). This is the
// repository's one use of cenkalti/backoff/v4 (spec.md §11) — distinct
// from the federation package's hand-coded single-retry reconnect policy.
const addPeerPollTimeout = 10 * time.Second

// waitForOpen polls fed.PeerState(host) with a bounded exponential backoff
// until it reports StateOpen or the timeout elapses.
func (s *Server) waitForOpen(ctx context.Context, host string, timeout time.Duration) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	bctx := backoff.WithContext(b, ctx)

	err := backoff.Retry(func() error {
		st, ok := s.fed.PeerState(host)
		if ok && st == federation.StateOpen {
			return nil
		}
		return errNotYetOpen
	}, bctx)

	return err == nil
}

// persistPeer appends hostport to config.json's peer list on a successful
// add_peer (spec.md §4.D "Config persistence").
func (s *Server) persistPeer(hostport string) error {
	return config.AddPeer(naming.ConfigPath(s.controlDir), hostport)
}

// removePersistedPeer removes host from config.json's peer list on
// remove_peer.
func (s *Server) removePersistedPeer(host string) error {
	return config.RemovePeer(naming.ConfigPath(s.controlDir), host)
}
