// Package cmd implements the tunneld CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	logLevel      string
	interfaceName string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("tunneld version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "tunneld",
	Short: "tunneld keeps a point-to-point WireGuard tunnel alive",
	Long: "tunneld is a tunnel supervisor. It creates a single WireGuard interface\n" +
		"with one server peer, probes the far side of the tunnel and recreates\n" +
		"the interface when the peer becomes unreachable or its endpoint drifts.",
	SilenceUsage: true,
	// No Run function: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().StringVar(&interfaceName, "interface", "", "WireGuard interface name (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("tunneld version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
