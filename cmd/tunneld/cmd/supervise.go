package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/plexsphere/tunneld/internal/metrics"
)

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Keep the tunnel converged until interrupted",
	Long: "Run a reconciliation cycle immediately and then every reconcile.interval\n" +
		"until SIGINT or SIGTERM. The first failing cycle stops the supervisor\n" +
		"unless reconcile.max_retries allows it to be retried.",
	Args: cobra.NoArgs,
	RunE: runSupervise,
}

func init() {
	addTunnelFlags(superviseCmd)
	rootCmd.AddCommand(superviseCmd)
}

func runSupervise(cmd *cobra.Command, _ []string) error {
	cfg, err := loadTunnelConfig(cmd)
	if err != nil {
		return fmt.Errorf("tunneld supervise: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	pub, err := clientPublicKey(cfg.Tunnel.ClientPrivateKey)
	if err != nil {
		return fmt.Errorf("tunneld supervise: %w", err)
	}
	logger.Info("starting tunneld",
		"version", buildVersion,
		"interface", cfg.WireGuard.InterfaceName,
		"endpoint", cfg.Tunnel.ServerEndpoint,
		"public_key", pub,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	supervisor := newSupervisor(cfg, logger)

	var wg sync.WaitGroup
	if cfg.Metrics.ListenAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		supervisor.SetMetrics(metrics.New(reg))

		srv := metrics.NewServer(cfg.Metrics, reg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	runErr := supervisor.Run(ctx, cfg.Tunnel)
	stop()
	wg.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("tunneld supervise: %w", runErr)
	}
	logger.Info("tunneld stopped")
	return nil
}
