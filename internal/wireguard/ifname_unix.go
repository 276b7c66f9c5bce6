//go:build linux || freebsd || openbsd || netbsd

package wireguard

// DefaultInterfaceName is the default WireGuard interface name.
const DefaultInterfaceName = "wg0"
