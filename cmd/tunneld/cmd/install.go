package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/tunneld/internal/packaging"
)

var (
	installConfigDir string
	installEnable    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install tunneld as a systemd service",
	Long: "Copy the binary to /usr/local/bin, write a starter config and a client\n" +
		"private key unless present, and install the systemd unit. The client\n" +
		"public key is printed so it can be added on the server.",
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installConfigDir, "config-dir", packaging.DefaultConfigDir, "directory for config.yaml and the private key")
	installCmd.Flags().BoolVar(&installEnable, "enable", false, "enable the service to start on boot")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(logLevel)

	cfg := packaging.InstallConfig{
		ConfigDir: installConfigDir,
		Enable:    installEnable,
	}
	installer := packaging.NewInstaller(cfg, packaging.NewServiceManager(), packaging.NewPrivilegeChecker(), logger)

	result, err := installer.Install()
	if err != nil {
		return fmt.Errorf("tunneld install: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "tunneld installed successfully")
	fmt.Fprintf(w, "client public key: %s\n", result.PublicKey)
	return nil
}
