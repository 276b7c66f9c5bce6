package reconcile

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/plexsphere/tunneld/internal/ipcalc"
)

// DefaultClientPort is the listen port used when DesiredState.ClientPort is nil.
const DefaultClientPort = 12345

// DesiredState is the tunnel configuration the supervisor converges to.
// It is treated as immutable for the duration of a cycle.
type DesiredState struct {
	// ServerEndpoint is the ip:port of the remote peer.
	ServerEndpoint string `yaml:"server_endpoint"`

	// ServerPublicKey is the base64 public key of the remote peer.
	ServerPublicKey string `yaml:"server_public_key"`

	// ClientPrivateKey is the base64 private key of this host. Never logged.
	ClientPrivateKey string `yaml:"client_private_key"`

	// ClientAddress is the IPv4 address of this host inside the tunnel.
	ClientAddress string `yaml:"client_address"`

	// ClientPort is the local listen port. Default: 12345
	ClientPort *int `yaml:"client_port"`

	// ClientAddressMasks are the CIDRs routed through the peer. When empty
	// the subnet of ClientAddress/NetworkPrefix is used.
	ClientAddressMasks []string `yaml:"client_address_masks"`

	// NetworkPrefix is the tunnel subnet prefix length, 0 to 32. Required.
	NetworkPrefix *int `yaml:"network_prefix"`
}

// tunnelPlan is a fully parsed DesiredState.
type tunnelPlan struct {
	endpoint    netip.AddrPort
	serverKey   wgtypes.Key
	privateKey  wgtypes.Key
	address     netip.Addr
	port        int
	allowedIPs  []netip.Prefix
	probeTarget netip.Addr
}

// plan parses every field of d. Any malformed value yields a *ParseError.
func (d DesiredState) plan() (*tunnelPlan, error) {
	endpoint, err := netip.ParseAddrPort(d.ServerEndpoint)
	if err != nil {
		return nil, &ParseError{Field: "server_endpoint", Value: d.ServerEndpoint, Err: err}
	}
	endpoint = netip.AddrPortFrom(endpoint.Addr().Unmap(), endpoint.Port())

	serverKey, err := wgtypes.ParseKey(d.ServerPublicKey)
	if err != nil {
		return nil, &ParseError{Field: "server_public_key", Value: d.ServerPublicKey, Err: err}
	}

	privateKey, err := wgtypes.ParseKey(d.ClientPrivateKey)
	if err != nil {
		return nil, &ParseError{Field: "client_private_key", Err: errors.New("not a base64 32-byte key")}
	}

	address, err := netip.ParseAddr(d.ClientAddress)
	if err != nil {
		return nil, &ParseError{Field: "client_address", Value: d.ClientAddress, Err: err}
	}
	address = address.Unmap()
	if !address.Is4() {
		return nil, &ParseError{Field: "client_address", Value: d.ClientAddress, Err: errors.New("not an IPv4 address")}
	}

	if d.NetworkPrefix == nil {
		return nil, &ParseError{Field: "network_prefix", Err: errors.New("required")}
	}
	bits := *d.NetworkPrefix
	if bits < 0 || bits > 32 {
		return nil, &ParseError{
			Field: "network_prefix",
			Value: fmt.Sprint(bits),
			Err:   errors.New("must be between 0 and 32"),
		}
	}

	port := DefaultClientPort
	if d.ClientPort != nil {
		port = *d.ClientPort
		if port <= 0 || port > 65535 {
			return nil, &ParseError{
				Field: "client_port",
				Value: fmt.Sprint(port),
				Err:   errors.New("must be between 1 and 65535"),
			}
		}
	}

	allowed := make([]netip.Prefix, 0, len(d.ClientAddressMasks))
	for _, mask := range d.ClientAddressMasks {
		prefix, err := netip.ParsePrefix(mask)
		if err != nil {
			return nil, &ParseError{Field: "client_address_masks", Value: mask, Err: err}
		}
		allowed = append(allowed, prefix.Masked())
	}
	if len(allowed) == 0 {
		allowed = append(allowed, ipcalc.Prefix(address, bits))
	}

	return &tunnelPlan{
		endpoint:    endpoint,
		serverKey:   serverKey,
		privateKey:  privateKey,
		address:     address,
		port:        port,
		allowedIPs:  allowed,
		probeTarget: ipcalc.FirstHost(ipcalc.NetworkAddress(address, bits)),
	}, nil
}

// Validate parses d without touching the system.
func (d DesiredState) Validate() error {
	_, err := d.plan()
	return err
}
