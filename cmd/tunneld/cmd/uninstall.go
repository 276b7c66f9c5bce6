package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/tunneld/internal/packaging"
)

var purge bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the tunneld systemd service",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&purge, "purge", false, "also remove the config directory and private key")
	uninstallCmd.Flags().StringVar(&installConfigDir, "config-dir", packaging.DefaultConfigDir, "directory for config.yaml and the private key")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(logLevel)

	cfg := packaging.InstallConfig{ConfigDir: installConfigDir}
	installer := packaging.NewInstaller(cfg, packaging.NewServiceManager(), packaging.NewPrivilegeChecker(), logger)

	if err := installer.Uninstall(purge); err != nil {
		return fmt.Errorf("tunneld uninstall: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "tunneld uninstalled successfully")
	return nil
}
