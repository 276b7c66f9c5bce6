package metrics

import (
	"errors"
	"net"
)

// Config holds the configuration for the Prometheus exposition endpoint.
// Config is passed as a constructor argument — no file I/O in this package.
type Config struct {
	// ListenAddr is the host:port serving /metrics. Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// Path is the HTTP path for the metrics handler.
	// Default: /metrics
	Path string `yaml:"path"`
}

// DefaultPath is the default HTTP path for metrics exposition.
const DefaultPath = "/metrics"

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return errors.New("metrics: config: ListenAddr must be host:port")
		}
	}
	if c.Path == "" || c.Path[0] != '/' {
		return errors.New("metrics: config: Path must start with /")
	}
	return nil
}
