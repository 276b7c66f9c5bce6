package wireguard

import "errors"

// Config holds the configuration for the managed WireGuard interface.
// Config is passed as a constructor argument — no file I/O in this package.
type Config struct {
	// InterfaceName is the WireGuard network interface name.
	// Default: DefaultInterfaceName for the build platform.
	InterfaceName string `yaml:"interface_name"`

	// MTU is the interface MTU. 0 means system default.
	MTU int `yaml:"mtu"`

	// RouteTable is the routing table and firewall mark used when the peer
	// carries a default route.
	// Default: 51820
	RouteTable int `yaml:"route_table"`
}

// DefaultRouteTable is the default policy routing table for default-route tunnels.
const DefaultRouteTable = 51820

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.InterfaceName == "" {
		c.InterfaceName = DefaultInterfaceName
	}
	if c.RouteTable == 0 {
		c.RouteTable = DefaultRouteTable
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.InterfaceName == "" {
		return errors.New("wireguard: config: InterfaceName must not be empty")
	}
	if len(c.InterfaceName) > 15 {
		return errors.New("wireguard: config: InterfaceName must be at most 15 characters")
	}
	for _, r := range c.InterfaceName {
		if r == '/' || r == ' ' || r == '\x00' {
			return errors.New("wireguard: config: InterfaceName contains prohibited character")
		}
	}
	if c.MTU < 0 {
		return errors.New("wireguard: config: MTU must not be negative")
	}
	if c.RouteTable < 0 {
		return errors.New("wireguard: config: RouteTable must not be negative")
	}
	return nil
}
