package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List local and federated agent sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}
			wc, err := dial(controlDir)
			if err != nil {
				return err
			}
			defer wc.Close()

			resp, err := request(wc, "list_sessions", nil)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			var data struct {
				Sessions []sessionEntry `json:"sessions"`
			}
			if err := decodeData(resp, &data); err != nil {
				return fmt.Errorf("decode sessions: %w", err)
			}

			out, err := formatSessions(data.Sessions, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
