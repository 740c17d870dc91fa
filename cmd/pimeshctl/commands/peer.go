package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func peerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Manage federation peers",
	}

	cmd.AddCommand(peerAddCmd())
	cmd.AddCommand(peerRemoveCmd())
	cmd.AddCommand(peerListCmd())

	return cmd
}

func peerAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <host[:port]>",
		Short: "Connect to a peer and persist it in config.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			host, port := splitHostPort(args[0])

			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}
			wc, err := dial(controlDir)
			if err != nil {
				return err
			}
			defer wc.Close()

			resp, err := request(wc, "add_peer", map[string]any{"host": host, "port": port})
			if err != nil {
				return fmt.Errorf("add peer: %w", err)
			}

			var out struct {
				Host string `json:"host"`
			}
			_ = decodeData(resp, &out)
			fmt.Printf("peer %s is now open\n", out.Host)
			return nil
		},
	}
}

func peerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <host>",
		Short: "Disconnect a peer and remove it from config.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			host, _ := splitHostPort(args[0])

			controlDir, err := resolveControlDir()
			if err != nil {
				return err
			}
			wc, err := dial(controlDir)
			if err != nil {
				return err
			}
			defer wc.Close()

			if _, err := request(wc, "remove_peer", map[string]any{"host": host}); err != nil {
				return fmt.Errorf("remove peer: %w", err)
			}
			fmt.Printf("peer %s removed\n", host)
			return nil
		},
	}
}

func peerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List federation peers (from `status`)",
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

			out, err := formatStatus(statusView{Peers: st.Peers}, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

// splitHostPort splits "host:port" into its parts; port is 0 if absent or
// unparsable, letting the daemon apply federation.DefaultPort.
func splitHostPort(hostport string) (string, int) {
	host, portStr, found := strings.Cut(hostport, ":")
	if !found {
		return host, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return hostport, 0
	}
	return host, port
}
