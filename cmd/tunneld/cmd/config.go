package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/plexsphere/tunneld/internal/agent"
	"github.com/plexsphere/tunneld/internal/probe"
	"github.com/plexsphere/tunneld/internal/reconcile"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

// Tunnel flags shared by connect and supervise.
var (
	flagEndpoint        string
	flagServerPublicKey string
	flagPrivateKey      string
	flagPrivateKeyFile  string
	flagAddress         string
	flagPort            int
	flagAllowedIPs      []string
	flagPrefix          int
)

// addTunnelFlags registers the desired state flags on c. Set flags override
// the config file.
func addTunnelFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&flagEndpoint, "endpoint", "", "server endpoint ip:port")
	f.StringVar(&flagServerPublicKey, "server-public-key", "", "server public key (base64)")
	f.StringVar(&flagPrivateKey, "private-key", "", "client private key (base64); visible in the process list, prefer --private-key-file")
	f.StringVar(&flagPrivateKeyFile, "private-key-file", "", "file holding the client private key")
	f.StringVar(&flagAddress, "address", "", "client IPv4 address inside the tunnel")
	f.IntVar(&flagPort, "port", reconcile.DefaultClientPort, "client listen port")
	f.StringSliceVar(&flagAllowedIPs, "allowed-ips", nil, "CIDRs routed through the server (default: the tunnel subnet)")
	f.IntVar(&flagPrefix, "prefix", 0, "tunnel subnet prefix length (required)")
}

// loadConfig parses the config file and applies the persistent flag overrides.
func loadConfig() (*agent.AgentConfig, error) {
	cfg, err := agent.ParseConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if interfaceName != "" {
		cfg.WireGuard.InterfaceName = interfaceName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadTunnelConfig is loadConfig plus the tunnel flag overrides of c.
// The desired state is parsed before anything touches the system.
func loadTunnelConfig(c *cobra.Command) (*agent.AgentConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	f := c.Flags()
	t := &cfg.Tunnel
	if f.Changed("endpoint") {
		t.ServerEndpoint = flagEndpoint
	}
	if f.Changed("server-public-key") {
		t.ServerPublicKey = flagServerPublicKey
	}
	if f.Changed("private-key-file") {
		cfg.PrivateKeyFile = flagPrivateKeyFile
		t.ClientPrivateKey = ""
	}
	if f.Changed("private-key") {
		t.ClientPrivateKey = flagPrivateKey
	}
	if f.Changed("address") {
		t.ClientAddress = flagAddress
	}
	if f.Changed("port") {
		port := flagPort
		t.ClientPort = &port
	}
	if f.Changed("allowed-ips") {
		t.ClientAddressMasks = append([]string(nil), flagAllowedIPs...)
	}
	if f.Changed("prefix") {
		prefix := flagPrefix
		t.NetworkPrefix = &prefix
	}

	if err := cfg.ValidateTunnel(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSupervisor wires the platform controller and the ICMP prober.
func newSupervisor(cfg *agent.AgentConfig, logger *slog.Logger) *reconcile.Supervisor {
	ctrl := wireguard.NewController(cfg.WireGuard, logger)
	prober := probe.NewICMPProber(cfg.Probe, logger)
	return reconcile.NewSupervisor(ctrl, prober, cfg.Reconcile, logger)
}

// clientPublicKey derives the public key announced to the server operator.
func clientPublicKey(privateKey string) (string, error) {
	priv, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	pub, err := wireguard.PublicKey(priv)
	if err != nil {
		return "", err
	}
	return pub.String(), nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
