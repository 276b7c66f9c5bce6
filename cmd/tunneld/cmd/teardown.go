package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Remove the tunnel interface",
	Long:  "Remove the tunnel interface and the routing state installed for it. Succeeds when the interface is already gone.",
	Args:  cobra.NoArgs,
	RunE:  runTeardown,
}

func init() {
	rootCmd.AddCommand(teardownCmd)
}

func runTeardown(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("tunneld teardown: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	if err := newSupervisor(cfg, logger).Teardown(); err != nil {
		return fmt.Errorf("tunneld teardown: %w", err)
	}
	return nil
}
