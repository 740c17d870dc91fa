// Package commands implements the pimeshctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// controlDirOverride is the -control-dir flag (empty means the default
	// ~/.pi/remote-control).
	controlDirOverride string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for pimeshctl.
var rootCmd = &cobra.Command{
	Use:   "pimeshctl",
	Short: "CLI client for the pimesh daemon",
	Long:  "pimeshctl talks to the pimeshd daemon over its Unix-socket control plane to manage sessions, peers, and relays.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlDirOverride, "control-dir", "",
		"override the control directory (default ~/.pi/remote-control)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(peerCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(getMessageCmd())
	rootCmd.AddCommand(getSummaryCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(abortCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(killCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
