package discovery

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dantte-lp/pimesh/internal/naming"
	"github.com/dantte-lp/pimesh/internal/session"
)

const (
	defaultDebounce     = 50 * time.Millisecond
	defaultProbeTimeout = 300 * time.Millisecond
)

// Sink receives the Watcher's session_added/session_removed side effects
// (spec.md §4.C). A daemon wires this to its federation and event-fanout
// layers.
type Sink interface {
	SessionAdded(info session.Info)
	SessionRemoved(id string)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the default ~50ms recheck delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithProbeTimeout overrides the default 300ms liveness-probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.probeTimeout = d
		}
	}
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher scans the control directory for session endpoints, probes their
// liveness, and keeps a local session.Table in sync via fsnotify
// notifications on the directory.
type Watcher struct {
	controlDir   string
	sink         Sink
	table        *session.Table
	debounce     time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]*time.Timer
}

// New creates a Watcher over controlDir, reporting changes to sink.
func New(controlDir string, sink Sink, opts ...Option) *Watcher {
	w := &Watcher{
		controlDir:   controlDir,
		sink:         sink,
		table:        session.NewTable(),
		debounce:     defaultDebounce,
		probeTimeout: defaultProbeTimeout,
		logger:       slog.Default().With(slog.String("component", "discovery")),
		pending:      make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Table returns the Watcher's local-session table.
func (w *Watcher) Table() *session.Table { return w.table }

// Run performs the initial enumeration, then blocks processing directory
// change notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.scanOnce()

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.controlDir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.onEvent(ev)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

// scanOnce enumerates the control directory once, probing every endpoint
// node found (spec.md §4.C "On startup, enumerates the control directory").
func (w *Watcher) scanOnce() {
	entries, err := os.ReadDir(w.controlDir)
	if err != nil {
		w.logger.Warn("scan control dir", slog.Any("error", err))
		return
	}

	for _, e := range entries {
		id := naming.SessionIDFromSocketPath(e.Name())
		if id == "" {
			continue
		}
		w.recheck(id)
	}
}

// onEvent debounces a directory-change notification before rechecking the
// affected session node's liveness (spec.md §4.C "Debounce").
func (w *Watcher) onEvent(ev fsnotify.Event) {
	id := naming.SessionIDFromSocketPath(filepath.Base(ev.Name))
	if id == "" {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if t, ok := w.pending[id]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.pendingMu.Lock()
		delete(w.pending, id)
		w.pendingMu.Unlock()
		w.recheck(id)
	})
}

// recheck probes a session's endpoint and reconciles the local table
// against the result.
func (w *Watcher) recheck(id string) {
	alive := w.probe(id)
	_, known := w.table.Get(id)

	switch {
	case alive && !known:
		w.addSession(id)
	case !alive && known:
		w.removeSession(id)
	}
}

// probe dials the session's unix socket and counts it alive iff the
// connect completes within probeTimeout; no bytes are exchanged (spec.md
// §4.C "Probe").
func (w *Watcher) probe(id string) bool {
	path := naming.EndpointSocketPath(w.controlDir, id)
	conn, err := net.DialTimeout("unix", path, w.probeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (w *Watcher) addSession(id string) {
	name, ok, err := naming.LoadPersistedName(w.controlDir, id)
	if err != nil {
		w.logger.Warn("load persisted name", slog.String("session", id), slog.Any("error", err))
	}
	if !ok {
		var genErr error
		name, genErr = naming.GenerateName()
		if genErr != nil {
			w.logger.Error("generate whimsical name", slog.Any("error", genErr))
			return
		}
		if err := naming.PersistName(w.controlDir, id, name); err != nil {
			w.logger.Warn("persist name", slog.String("session", id), slog.Any("error", err))
		}
	}

	aliases, err := naming.AliasesFor(w.controlDir, id)
	if err != nil {
		w.logger.Warn("aliases for session", slog.String("session", id), slog.Any("error", err))
	}

	info := session.Info{ID: id, Name: name, Aliases: aliases}
	w.table.Put(info)
	w.sink.SessionAdded(info)
}

func (w *Watcher) removeSession(id string) {
	if _, ok := w.table.Remove(id); ok {
		w.sink.SessionRemoved(id)
	}
}
