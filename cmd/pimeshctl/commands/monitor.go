package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/pimesh/internal/wire"
)

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Stream daemon-wide session and peer events",
		Long:  "Connects to the pimeshd daemon and streams session_added/session_removed/peer_* events until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}
			wc, err := dial(controlDir)
			if err != nil {
				return err
			}
			defer wc.Close()

			if _, err := request(wc, "subscribe", nil); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			go func() {
				<-ctx.Done()
				_ = wc.Close()
			}()

			for {
				line, err := wc.ReadFrame()
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("stream error: %w", err)
				}

				var ev wire.Event
				if err := json.Unmarshal(line, &ev); err != nil {
					return fmt.Errorf("decode event: %w", err)
				}

				out, fmtErr := formatEvent(ev, outputFormat)
				if fmtErr != nil {
					return fmt.Errorf("format event: %w", fmtErr)
				}
				fmt.Println(out)
			}
		},
	}
}

func formatEvent(ev wire.Event, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(ev)
	case formatTable:
		return fmt.Sprintf("[%s] %s", ev.Event, string(ev.Data)), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}
