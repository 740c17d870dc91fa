package commands

import (
	"fmt"

	"github.com/reeflective/console"
	"github.com/spf13/cobra"
)

// shellCmd launches an interactive pimeshctl shell built on
// reeflective/console, which gives the REPL history, completion, and
// readline-style editing instead of a bare line scanner.
func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive pimeshctl shell",
		Long:  "Launches a readline-backed REPL over the same commands as the pimeshctl binary.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app := console.New("pimeshctl")

			menu := app.ActiveMenu()
			menu.SetCommands(func() *cobra.Command {
				return buildShellRoot()
			})

			if err := app.Start(); err != nil {
				return fmt.Errorf("start shell: %w", err)
			}
			return nil
		},
	}
}

// buildShellRoot returns a fresh root command tree for each REPL prompt,
// since cobra commands carry parsed-flag state across Execute calls.
func buildShellRoot() *cobra.Command {
	shell := &cobra.Command{
		Use:           "pimeshctl",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shell.AddCommand(statusCmd())
	shell.AddCommand(peerCmd())
	shell.AddCommand(sessionsCmd())
	shell.AddCommand(sendCmd())
	shell.AddCommand(getMessageCmd())
	shell.AddCommand(getSummaryCmd())
	shell.AddCommand(clearCmd())
	shell.AddCommand(abortCmd())
	shell.AddCommand(monitorCmd())
	shell.AddCommand(killCmd())
	shell.AddCommand(versionCmd())

	return shell
}
