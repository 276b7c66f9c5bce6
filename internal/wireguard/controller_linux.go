//go:build linux

package wireguard

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NetlinkController implements Controller using Linux netlink, wgctrl and nftables.
type NetlinkController struct {
	cfg    Config
	logger *slog.Logger
}

// NewNetlinkController returns a controller for the interface named in cfg.
// Config defaults are applied automatically.
func NewNetlinkController(cfg Config, logger *slog.Logger) *NetlinkController {
	cfg.ApplyDefaults()
	return &NetlinkController{cfg: cfg, logger: logger}
}

// NewController returns the platform controller.
func NewController(cfg Config, logger *slog.Logger) Controller {
	return NewNetlinkController(cfg, logger)
}

// ReadState reads the device through wgctrl. A missing device maps to ErrNotFound.
// A new wgctrl client is created per call to avoid stale netlink sockets
// across long-lived controller instances.
func (c *NetlinkController) ReadState() (ObservedState, error) {
	client, err := wgctrl.New()
	if err != nil {
		return ObservedState{}, fmt.Errorf("wireguard: read state: open wgctrl: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(c.cfg.InterfaceName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ObservedState{}, ErrNotFound
		}
		return ObservedState{}, fmt.Errorf("wireguard: read state: %w", err)
	}

	state := ObservedState{
		Exists:     true,
		ListenPort: dev.ListenPort,
		Peers:      make(map[string]PeerObservation, len(dev.Peers)),
	}
	for _, p := range dev.Peers {
		obs := PeerObservation{LastHandshake: p.LastHandshakeTime}
		if p.Endpoint != nil {
			ap := p.Endpoint.AddrPort()
			obs.Endpoint = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
		}
		state.Peers[p.PublicKey.String()] = obs
	}
	return state, nil
}

// Create adds a link of type wireguard.
func (c *NetlinkController) Create() error {
	la := netlink.NewLinkAttrs()
	la.Name = c.cfg.InterfaceName
	if c.cfg.MTU > 0 {
		la.MTU = c.cfg.MTU
	}
	link := &netlink.GenericLink{LinkAttrs: la, LinkType: "wireguard"}

	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("wireguard: create interface: %w", err)
	}

	c.logger.Info("wireguard interface created",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
	)
	return nil
}

// Configure sets the device keys, port and peers, assigns the address and
// brings the link up. Existing peers are replaced.
func (c *NetlinkController) Configure(cfg InterfaceConfig) error {
	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("wireguard: configure: open wgctrl: %w", err)
	}
	defer client.Close()

	peers := make([]wgtypes.PeerConfig, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers = append(peers, toWGPeer(p))
	}

	port := cfg.ListenPort
	key := cfg.PrivateKey
	err = client.ConfigureDevice(c.cfg.InterfaceName, wgtypes.Config{
		PrivateKey:   &key,
		ListenPort:   &port,
		ReplacePeers: true,
		Peers:        peers,
	})
	if err != nil {
		return fmt.Errorf("wireguard: configure: configure device: %w", err)
	}

	link, err := netlink.LinkByName(c.cfg.InterfaceName)
	if err != nil {
		return fmt.Errorf("wireguard: configure: %w", err)
	}

	if cfg.Address.IsValid() {
		addr := &netlink.Addr{IPNet: prefixToIPNet(cfg.Address)}
		if err := netlink.AddrAdd(link, addr); err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("wireguard: configure: add address %s: %w", cfg.Address, err)
		}
	}

	if link.Attrs().Flags&net.FlagUp == 0 {
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("wireguard: configure: set interface up: %w", err)
		}
	}

	c.logger.Info("wireguard interface configured",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
		"listen_port", port,
		"address", cfg.Address.String(),
		"peers", len(peers),
	)
	return nil
}

// ConfigurePeerRouting adds a link-scoped route for every allowed IP.
// A default route is installed through a dedicated policy routing table so
// that the tunnel's own encrypted traffic keeps using the main table.
func (c *NetlinkController) ConfigurePeerRouting(peers []PeerConfig) error {
	link, err := netlink.LinkByName(c.cfg.InterfaceName)
	if err != nil {
		return fmt.Errorf("wireguard: configure peer routing: %w", err)
	}

	for _, p := range peers {
		for _, prefix := range p.AllowedIPs {
			if prefix.Bits() == 0 {
				if err := c.addDefaultRoute(link, prefix); err != nil {
					return fmt.Errorf("wireguard: configure peer routing: %w", err)
				}
				continue
			}
			if err := c.addRoute(link, prefix, unix.RT_TABLE_MAIN); err != nil {
				return fmt.Errorf("wireguard: configure peer routing: %w", err)
			}
		}
	}
	return nil
}

// Remove deletes the link, any policy rules installed for a default route
// and the anti-spoofing table. Removing an absent interface returns nil.
func (c *NetlinkController) Remove() error {
	link, err := netlink.LinkByName(c.cfg.InterfaceName)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("wireguard: remove interface: %w", err)
		}
		link = nil
	}

	if link != nil {
		if err := netlink.LinkDel(link); err != nil {
			return fmt.Errorf("wireguard: remove interface: %w", err)
		}
	}

	if err := c.removePolicyRules(); err != nil {
		return fmt.Errorf("wireguard: remove interface: %w", err)
	}
	if err := c.removeSpoofGuard(); err != nil {
		return fmt.Errorf("wireguard: remove interface: %w", err)
	}

	c.logger.Info("wireguard interface removed",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
	)
	return nil
}

// addRoute is idempotent: an existing route returns nil.
func (c *NetlinkController) addRoute(link netlink.Link, prefix netip.Prefix, table int) error {
	route := &netlink.Route{
		Dst:       prefixToIPNet(prefix),
		LinkIndex: link.Attrs().Index,
		Scope:     netlink.SCOPE_LINK,
		Table:     table,
	}

	if err := netlink.RouteAdd(route); err != nil {
		if errors.Is(err, unix.EEXIST) {
			c.logger.Debug("route already exists",
				"component", "wireguard",
				"prefix", prefix.String(),
				"table", table,
			)
			return nil
		}
		return fmt.Errorf("add route %s: %w", prefix, err)
	}

	c.logger.Debug("route added",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
		"prefix", prefix.String(),
		"table", table,
	)
	return nil
}

// addDefaultRoute follows wg-quick: mark tunnel traffic, route everything
// unmarked through RouteTable and let the main table win for anything more
// specific than the default route.
func (c *NetlinkController) addDefaultRoute(link netlink.Link, prefix netip.Prefix) error {
	table := c.cfg.RouteTable

	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("open wgctrl: %w", err)
	}
	defer client.Close()

	if err := client.ConfigureDevice(c.cfg.InterfaceName, wgtypes.Config{FirewallMark: &table}); err != nil {
		return fmt.Errorf("set firewall mark: %w", err)
	}

	if err := c.addRoute(link, prefix, table); err != nil {
		return err
	}

	for _, rule := range policyRules(table) {
		if err := netlink.RuleAdd(rule); err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("add rule %s: %w", rule, err)
		}
	}

	if err := setSrcValidMark(); err != nil {
		return err
	}

	addrs, err := netlink.AddrList(link, unix.AF_INET)
	if err != nil {
		return fmt.Errorf("list addresses: %w", err)
	}
	local := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if ip, ok := netip.AddrFromSlice(a.IP.To4()); ok {
			local = append(local, ip)
		}
	}
	if err := c.installSpoofGuard(local); err != nil {
		return err
	}

	c.logger.Info("default route installed",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
		"table", table,
	)
	return nil
}

// removePolicyRules deletes the rules added by addDefaultRoute, if any.
func (c *NetlinkController) removePolicyRules() error {
	rules, err := netlink.RuleList(unix.AF_INET)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	table := c.cfg.RouteTable
	for i := range rules {
		r := rules[i]
		if !isPolicyRule(r, table) {
			continue
		}
		if err := netlink.RuleDel(&r); err != nil && !errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("delete rule %s: %w", r, err)
		}
		c.logger.Debug("policy rule removed",
			"component", "wireguard",
			"rule", r.String(),
		)
	}
	return nil
}

// Priorities of the policy rules. The suppress rule must be evaluated before
// the marked rule. Fixed values keep the rules apart from those of other
// tunnels, whose kernel-assigned priorities start below 32766.
const (
	suppressRulePriority = 31818
	markedRulePriority   = 31819
)

// policyRules returns the two rules wg-quick installs for a default route:
// "not fwmark <table> lookup <table>" and "lookup main suppress_prefixlength 0".
func policyRules(table int) []*netlink.Rule {
	marked := netlink.NewRule()
	marked.Family = unix.AF_INET
	marked.Priority = markedRulePriority
	marked.Table = table
	marked.Mark = uint32(table)
	marked.Invert = true

	suppress := netlink.NewRule()
	suppress.Family = unix.AF_INET
	suppress.Priority = suppressRulePriority
	suppress.Table = unix.RT_TABLE_MAIN
	suppress.SuppressPrefixlen = 0

	return []*netlink.Rule{marked, suppress}
}

// isPolicyRule reports whether r is one of the rules policyRules creates.
// Identical rules at other priorities belong to someone else.
func isPolicyRule(r netlink.Rule, table int) bool {
	switch r.Priority {
	case markedRulePriority:
		return r.Table == table && r.Mark == uint32(table) && r.Invert
	case suppressRulePriority:
		return r.Table == unix.RT_TABLE_MAIN && r.SuppressPrefixlen == 0
	default:
		return false
	}
}

// setSrcValidMark lets reverse path filtering take the firewall mark into
// account, as wg-quick does.
func setSrcValidMark() error {
	const path = "/proc/sys/net/ipv4/conf/all/src_valid_mark"
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		return fmt.Errorf("sysctl %s: %w", path, err)
	}
	return nil
}

func toWGPeer(p PeerConfig) wgtypes.PeerConfig {
	peer := wgtypes.PeerConfig{
		PublicKey:         p.PublicKey,
		ReplaceAllowedIPs: true,
	}
	if p.Endpoint.IsValid() {
		peer.Endpoint = net.UDPAddrFromAddrPort(p.Endpoint)
	}
	for _, prefix := range p.AllowedIPs {
		peer.AllowedIPs = append(peer.AllowedIPs, *prefixToIPNet(prefix))
	}
	if p.PersistentKeepalive > 0 {
		keepalive := p.PersistentKeepalive
		peer.PersistentKeepaliveInterval = &keepalive
	}
	return peer
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	return &net.IPNet{
		IP:   p.Addr().AsSlice(),
		Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
	}
}
