package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var mode string
	var fireAndForget bool

	cmd := &cobra.Command{
		Use:   "send <session-id> <message>",
		Short: "Deliver a message to a session's agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}

			raw, err := relay(controlDir, args[0], "send", map[string]any{
				"message": args[1],
				"mode":    mode,
			}, fireAndForget)
			if err != nil {
				return err
			}
			if fireAndForget {
				fmt.Println("sent")
				return nil
			}
			if _, err := unwrapInnerResponse(raw); err != nil {
				return err
			}
			fmt.Println("delivered")
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "steer", "delivery mode: steer or follow_up")
	cmd.Flags().BoolVar(&fireAndForget, "fire-and-forget", false, "don't wait for the relay to complete")

	return cmd
}

func getMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-message <session-id>",
		Short: "Print the session's last assistant message",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}

			raw, err := relay(controlDir, args[0], "get_message", nil, false)
			if err != nil {
				return err
			}
			inner, err := unwrapInnerResponse(raw)
			if err != nil {
				return err
			}

			var data struct {
				Message any `json:"message"`
			}
			if err := decodeInnerData(inner, &data); err != nil {
				return err
			}
			fmt.Printf("%v\n", data.Message)
			return nil
		},
	}
}

func getSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-summary <session-id>",
		Short: "Summarize the session's current turn span",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}

			raw, err := relay(controlDir, args[0], "get_summary", nil, false)
			if err != nil {
				return err
			}
			inner, err := unwrapInnerResponse(raw)
			if err != nil {
				return err
			}

			var data struct {
				Summary string `json:"summary"`
			}
			if err := decodeInnerData(inner, &data); err != nil {
				return err
			}
			fmt.Println(data.Summary)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Rewind a session's branch to its root entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}

			raw, err := relay(controlDir, args[0], "clear", nil, false)
			if err != nil {
				return err
			}
			if _, err := unwrapInnerResponse(raw); err != nil {
				return err
			}
			fmt.Println("cleared")
			return nil
		},
	}
}

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <session-id>",
		Short: "Abort the session's in-flight turn, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}

			raw, err := relay(controlDir, args[0], "abort", nil, false)
			if err != nil {
				return err
			}
			if _, err := unwrapInnerResponse(raw); err != nil {
				return err
			}
			fmt.Println("aborted")
			return nil
		},
	}
}

func killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Shut down the pimeshd daemon",
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

			if _, err := request(wc, "kill", nil); err != nil {
				return fmt.Errorf("kill: %w", err)
			}
			fmt.Println("daemon shutting down")
			return nil
		},
	}
}
