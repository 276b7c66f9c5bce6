// Package packaging installs tunneld as a systemd service on Linux hosts.
package packaging

import (
	"errors"
)

// InstallConfig holds the configuration for installing tunneld as a systemd service.
// InstallConfig is passed as a constructor argument — no file I/O in this package.
type InstallConfig struct {
	// BinaryPath is the path to install the tunneld binary.
	// Default: /usr/local/bin/tunneld
	BinaryPath string

	// ConfigDir holds config.yaml and the client private key.
	// Default: /etc/tunneld
	ConfigDir string

	// UnitFilePath is the path for the systemd unit file.
	// Default: /etc/systemd/system/tunneld.service
	UnitFilePath string

	// ServiceName is the systemd service name.
	// Default: tunneld
	ServiceName string

	// Enable enables the service to start on boot after installation.
	Enable bool
}

// DefaultBinaryPath is the default path to install the tunneld binary.
const DefaultBinaryPath = "/usr/local/bin/tunneld"

// DefaultConfigDir is the default configuration directory.
const DefaultConfigDir = "/etc/tunneld"

// DefaultServiceName is the default systemd service name.
const DefaultServiceName = "tunneld"

// DefaultUnitFilePath is the default path for the systemd unit file.
const DefaultUnitFilePath = "/etc/systemd/system/tunneld.service"

// Names of the files kept in ConfigDir.
const (
	ConfigFileName     = "config.yaml"
	PrivateKeyFileName = "private.key"
)

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.UnitFilePath == "" {
		c.UnitFilePath = DefaultUnitFilePath
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	if c.UnitFilePath == "" {
		return errors.New("packaging: config: UnitFilePath is required")
	}
	return nil
}
