package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/tunneld/internal/wireguard"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tunnel interface state",
	Long:  "Read the tunnel interface and print its listen port and peers.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("tunneld status: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	state, err := wireguard.NewController(cfg.WireGuard, logger).ReadState()
	if err != nil && !errors.Is(err, wireguard.ErrNotFound) {
		return fmt.Errorf("tunneld status: %w", err)
	}
	printStatus(cmd.OutOrStdout(), cfg.WireGuard.InterfaceName, state, time.Now())
	return nil
}

func printStatus(w io.Writer, iface string, state wireguard.ObservedState, now time.Time) {
	fmt.Fprintf(w, "Interface:   %s\n", iface)
	if !state.Exists {
		fmt.Fprintln(w, "State:       absent")
		return
	}
	fmt.Fprintln(w, "State:       present")
	fmt.Fprintf(w, "Listen port: %d\n", state.ListenPort)
	fmt.Fprintf(w, "Peers:       %d\n", len(state.Peers))

	keys := make([]string, 0, len(state.Peers))
	for k := range state.Peers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		peer := state.Peers[k]
		handshake := "never"
		if !peer.LastHandshake.IsZero() {
			handshake = now.Sub(peer.LastHandshake).Truncate(time.Second).String() + " ago"
		}
		endpoint := "(none)"
		if peer.Endpoint.IsValid() {
			endpoint = peer.Endpoint.String()
		}
		fmt.Fprintf(w, "\n  %s\n    endpoint:       %s\n    last handshake: %s\n", k, endpoint, handshake)
	}
}
