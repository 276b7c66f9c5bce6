package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run a single reconciliation cycle",
	Long: "Create the tunnel interface if it is absent, or probe it and recreate it\n" +
		"when the server is unreachable or the peer endpoint has drifted. Exits\n" +
		"after one cycle.",
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	addTunnelFlags(connectCmd)
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadTunnelConfig(cmd)
	if err != nil {
		return fmt.Errorf("tunneld connect: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	pub, err := clientPublicKey(cfg.Tunnel.ClientPrivateKey)
	if err != nil {
		return fmt.Errorf("tunneld connect: %w", err)
	}
	logger.Info("connecting tunnel",
		"interface", cfg.WireGuard.InterfaceName,
		"endpoint", cfg.Tunnel.ServerEndpoint,
		"public_key", pub,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newSupervisor(cfg, logger).Reconcile(ctx, cfg.Tunnel); err != nil {
		return fmt.Errorf("tunneld connect: %w", err)
	}
	return nil
}
