package wireguard

import (
	"errors"
	"net/netip"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// PersistentKeepalive is the keepalive interval configured on the tunnel peer.
const PersistentKeepalive = 25 * time.Second

// ErrNotFound is returned by Controller.ReadState when the interface does not exist.
var ErrNotFound = errors.New("wireguard: interface not found")

// ErrUnsupported is returned by controllers on platforms without kernel support.
var ErrUnsupported = errors.New("wireguard: platform not supported")

// Controller abstracts OS-level operations on the single managed tunnel
// interface. A Controller is bound to one interface name at construction;
// callers never address the OS interface directly.
type Controller interface {
	// ReadState returns a fresh snapshot of the interface.
	// It returns ErrNotFound when the interface does not exist.
	ReadState() (ObservedState, error)

	// Create allocates the interface. It must not be called while the
	// interface exists.
	Create() error

	// Configure applies the private key, listen port, address and peer list
	// and brings the interface up.
	Configure(cfg InterfaceConfig) error

	// ConfigurePeerRouting installs host routes for the peers' allowed IPs.
	ConfigurePeerRouting(peers []PeerConfig) error

	// Remove tears down the interface together with its routes.
	// Removing an absent interface returns nil.
	Remove() error
}

// InterfaceConfig is the full configuration applied to a freshly created interface.
type InterfaceConfig struct {
	PrivateKey wgtypes.Key
	Address    netip.Prefix
	ListenPort int
	Peers      []PeerConfig
}

// PeerConfig holds the WireGuard-native configuration for a single peer.
type PeerConfig struct {
	PublicKey           wgtypes.Key
	Endpoint            netip.AddrPort
	AllowedIPs          []netip.Prefix
	PersistentKeepalive time.Duration
}

// ObservedState is a read-only snapshot of the interface.
type ObservedState struct {
	Exists     bool
	ListenPort int
	// Peers is keyed by the base64 encoding of the peer public key.
	Peers map[string]PeerObservation
}

// PeerObservation is the observed runtime state of one peer.
type PeerObservation struct {
	Endpoint      netip.AddrPort
	LastHandshake time.Time
}
