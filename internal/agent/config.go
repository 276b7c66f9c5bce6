package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/tunneld/internal/metrics"
	"github.com/plexsphere/tunneld/internal/probe"
	"github.com/plexsphere/tunneld/internal/reconcile"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// AgentConfig is the top-level configuration for the tunneld agent.
// It aggregates all subsystem configurations and is populated from
// a YAML configuration file via ParseConfig.
type AgentConfig struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// PrivateKeyFile is read into Tunnel.ClientPrivateKey when the key is
	// not given inline.
	PrivateKeyFile string `yaml:"private_key_file"`

	Tunnel    reconcile.DesiredState `yaml:"tunnel"`
	WireGuard wireguard.Config       `yaml:"wireguard"`
	Probe     probe.Config           `yaml:"probe"`
	Reconcile reconcile.Config       `yaml:"reconcile"`
	Metrics   metrics.Config         `yaml:"metrics"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.WireGuard.ApplyDefaults()
	c.Reconcile.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks the subsystem configurations. The tunnel itself is
// checked by ValidateTunnel since teardown and status do not need it.
func (c *AgentConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent: config: invalid log_level %q", c.LogLevel)
	}
	if err := c.WireGuard.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateTunnel resolves the private key file, if any, and parses the
// desired tunnel state.
func (c *AgentConfig) ValidateTunnel() error {
	if c.Tunnel.ClientPrivateKey == "" && c.PrivateKeyFile != "" {
		key, err := ReadPrivateKeyFile(c.PrivateKeyFile)
		if err != nil {
			return err
		}
		c.Tunnel.ClientPrivateKey = key
	}
	return c.Tunnel.Validate()
}

// ReadPrivateKeyFile returns the base64 key stored in path, trimmed of
// surrounding whitespace.
func ReadPrivateKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("agent: read private key %s: %w", path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("agent: read private key %s: file is empty", path)
	}
	return key, nil
}

// ParseConfig reads a YAML configuration file and returns an AgentConfig.
// It applies defaults and validates the configuration. An empty path yields
// the defaults.
func ParseConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
