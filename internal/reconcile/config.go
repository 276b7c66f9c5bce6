package reconcile

import (
	"errors"
	"time"
)

// Config holds the configuration for the supervisor loop.
// Config is passed as a constructor argument — no file I/O in this package.
type Config struct {
	// Interval is the delay between the end of one cycle and the start of the next.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// ProbeTimeout bounds the reachability probe of an existing interface.
	// Default: 3s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// MaxRetries is the number of times a cycle failing with a control plane
	// error is retried before the loop stops. Parse errors are never retried.
	// Default: 0 (stop on the first error)
	MaxRetries int `yaml:"max_retries"`

	// RetryInitialInterval is the first backoff delay between retries.
	// Default: 1s
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`

	// RetryMaxInterval caps the backoff delay between retries.
	// Default: 30s
	RetryMaxInterval time.Duration `yaml:"retry_max_interval"`
}

// DefaultInterval is the default delay between reconciliation cycles.
const DefaultInterval = 30 * time.Second

// DefaultProbeTimeout is the default reachability probe timeout.
const DefaultProbeTimeout = 3 * time.Second

// DefaultRetryInitialInterval is the default first retry delay.
const DefaultRetryInitialInterval = time.Second

// DefaultRetryMaxInterval is the default retry delay cap.
const DefaultRetryMaxInterval = 30 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = DefaultRetryMaxInterval
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return errors.New("reconcile: config: Interval must be at least 1s")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("reconcile: config: ProbeTimeout must be positive")
	}
	if c.ProbeTimeout >= c.Interval {
		return errors.New("reconcile: config: ProbeTimeout must be shorter than Interval")
	}
	if c.MaxRetries < 0 {
		return errors.New("reconcile: config: MaxRetries must not be negative")
	}
	if c.RetryInitialInterval <= 0 || c.RetryMaxInterval < c.RetryInitialInterval {
		return errors.New("reconcile: config: RetryMaxInterval must be >= RetryInitialInterval > 0")
	}
	return nil
}
