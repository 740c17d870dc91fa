package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the pimeshd daemon's status",
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

			resp, err := request(wc, "status", nil)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			var st statusView
			if err := decodeData(resp, &st); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			out, err := formatStatus(st, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
