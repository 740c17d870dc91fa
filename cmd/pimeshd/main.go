// pimeshd is the per-host control-mesh daemon: it discovers local agent
// sessions, federates with peer hosts over TCP, and exposes the daemon's
// own IPC control plane for pimeshctl (spec.md §4).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/pimesh/internal/config"
	"github.com/dantte-lp/pimesh/internal/control"
	"github.com/dantte-lp/pimesh/internal/daemonlock"
	"github.com/dantte-lp/pimesh/internal/discovery"
	"github.com/dantte-lp/pimesh/internal/federation"
	pimeshmetrics "github.com/dantte-lp/pimesh/internal/metrics"
	"github.com/dantte-lp/pimesh/internal/naming"
	appversion "github.com/dantte-lp/pimesh/internal/version"
)

// shutdownTimeout bounds how long graceful shutdown waits for the metrics
// HTTP server to drain.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	controlDirFlag := flag.String("control-dir", "", "override the control directory (default ~/.pi/remote-control)")
	configPathFlag := flag.String("config", "", "path to config.json (default <control-dir>/config.json)")
	metricsAddr := flag.String("metrics-addr", "", "address for the Prometheus /metrics endpoint (disabled if empty)")
	flag.Parse()

	controlDir, err := naming.Dir(*controlDirFlag)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("resolve control dir", slog.String("error", err.Error()))
		return 1
	}
	if err := naming.EnsureDir(controlDir); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("create control dir", slog.String("error", err.Error()))
		return 1
	}

	configPath := *configPathFlag
	if configPath == "" {
		configPath = naming.ConfigPath(controlDir)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load configuration", slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	pidPath := naming.DaemonPIDPath(controlDir)
	lock := daemonlock.New(pidPath)
	acquired, err := lock.TryAcquire()
	if err != nil {
		logger.Error("acquire daemon lock", slog.Any("error", err))
		return 1
	}
	if !acquired {
		logger.Error("another pimeshd instance is already running", slog.String("pid_file", pidPath))
		return 1
	}
	defer func() { _ = lock.Release() }()

	if err := daemonlock.WritePID(pidPath); err != nil {
		logger.Warn("write pid file", slog.Any("error", err))
	}
	defer func() { _ = daemonlock.RemovePID(pidPath) }()

	logger.Info("pimeshd starting",
		slog.String("version", appversion.Version),
		slog.Int("port", cfg.Port),
		slog.String("control_dir", controlDir),
	)

	reg := prometheus.NewRegistry()
	collector := pimeshmetrics.NewCollector(reg)

	if err := runDaemon(cfg, controlDir, *metricsAddr, reg, collector, configPath, logLevel, logger); err != nil {
		logger.Error("pimeshd exited with error", slog.Any("error", err))
		return 1
	}

	logger.Info("pimeshd stopped")
	return 0
}

// runDaemon wires the Discovery Watcher, Federation Manager, and Control
// Server together and runs them under one errgroup until signalled
// (spec.md §4 "Five cooperating components").
//
// Construction has a bootstrap cycle: the control.Server's adapters are
// handed to the Watcher and the Manager at their own construction time, so
// the Server itself is built first with its local table and federation
// manager left nil, then wired in once those exist (control.Server.SetLocal
// / SetFederation).
func runDaemon(
	cfg *config.Config,
	controlDir string,
	metricsAddr string,
	reg *prometheus.Registry,
	collector *pimeshmetrics.Collector,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	srv := control.New(controlDir, cfg.Port, nil, nil, sync.OnceFunc(stop),
		control.WithLogger(logger.With(slog.String("component", "control"))),
		control.WithAutoShutdown(cfg.AutoShutdownTimeout),
		control.WithRateLimit(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		control.WithMetrics(collector),
	)

	watcher := discovery.New(controlDir, srv.DiscoverySink(),
		discovery.WithProbeTimeout(cfg.ProbeTimeout),
		discovery.WithLogger(logger.With(slog.String("component", "discovery"))),
	)
	srv.SetLocal(watcher.Table())

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	fed := federation.New(hostname, cfg.Port, watcher.Table(), srv.FederationHandler(), srv.FederationEvents(),
		federation.WithHeartbeatInterval(cfg.HeartbeatInterval),
		federation.WithLogger(logger.With(slog.String("component", "federation"))),
	)
	srv.SetFederation(fed)

	g.Go(func() error { return watcher.Run(gCtx) })
	g.Go(func() error { return fed.Listen(gCtx) })
	g.Go(func() error { return srv.Serve(gCtx) })

	for _, hostport := range cfg.Peers {
		hostport := hostport
		g.Go(func() error {
			if err := fed.AddPeer(hostport); err != nil {
				logger.Warn("reconnect to configured peer failed", slog.String("peer", hostport), slog.Any("error", err))
			}
			return nil
		})
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = newMetricsServer(metricsAddr, reg)
		g.Go(func() error { return listenAndServe(gCtx, metricsSrv, metricsAddr) })
	}

	g.Go(func() error { return runWatchdog(gCtx, logger) })
	startSIGHUP(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

func startSIGHUP(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigHUP:
				logger.Info("received SIGHUP, reloading log level")
				reloadLogLevel(configPath, logLevel, logger)
			}
		}
	})
}

// reloadLogLevel re-reads config.json's log level on SIGHUP (spec.md §6).
// Only the log level is reloaded: the peer list is not re-read or
// reconciled, so peers change only through `add_peer` and `remove_peer`.
func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.Any("error", err))
		return
	}
	old := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)
	logger.Info("configuration reloaded", slog.String("old_log_level", old.String()), slog.String("new_log_level", newLevel.String()))
}

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.Any("error", err))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.Any("error", err))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.Any("error", err))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled", slog.Duration("watchdog_sec", interval), slog.Duration("keepalive_interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.Any("error", wdErr))
			}
		}
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
