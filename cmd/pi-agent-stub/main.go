// pi-agent-stub is a demo session: it wires agentstub.Stub behind an
// endpoint.Server so a pimeshd daemon on the same host can discover,
// relay to, and federate it without a real coding agent attached.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/dantte-lp/pimesh/internal/agentstub"
	"github.com/dantte-lp/pimesh/internal/endpoint"
	"github.com/dantte-lp/pimesh/internal/naming"
)

func main() {
	os.Exit(run())
}

func run() int {
	controlDirFlag := flag.String("control-dir", "", "override the control directory (default ~/.pi/remote-control)")
	sessionIDFlag := flag.String("session-id", "", "session id to register (default: a generated uuid)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("component", "pi-agent-stub"))

	controlDir, err := naming.Dir(*controlDirFlag)
	if err != nil {
		logger.Error("resolve control dir", slog.Any("error", err))
		return 1
	}
	if err := naming.EnsureDir(controlDir); err != nil {
		logger.Error("create control dir", slog.Any("error", err))
		return 1
	}

	sessionID := *sessionIDFlag
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	agent := agentstub.New()
	srv, err := endpoint.New(controlDir, sessionID, agent,
		endpoint.WithLogger(logger.With(slog.String("session", sessionID))),
	)
	if err != nil {
		logger.Error("create endpoint server", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("pi-agent-stub starting", slog.String("session_id", sessionID), slog.String("control_dir", controlDir))

	if err := srv.Serve(ctx); err != nil {
		logger.Error("serve endpoint", slog.Any("error", err))
		return 1
	}

	logger.Info("pi-agent-stub stopped")
	return 0
}
