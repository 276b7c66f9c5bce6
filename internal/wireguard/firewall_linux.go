//go:build linux

package wireguard

import (
	"fmt"
	"net/netip"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// spoofGuardChain is the raw prerouting chain holding the anti-spoofing rules.
const spoofGuardChain = "preraw"

// spoofGuardTable returns the per-interface nftables table name.
func spoofGuardTable(iface string) string {
	return "tunneld-" + iface
}

// installSpoofGuard drops packets addressed to the tunnel addresses that did
// not arrive on the tunnel and are not locally sourced. The table is rebuilt
// from scratch on every call.
// nft equivalent: iifname != "wg0" ip daddr 10.6.0.30 fib saddr type != local drop
func (c *NetlinkController) installSpoofGuard(addrs []netip.Addr) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("nftables: install spoof guard: %w", err)
	}

	table := conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   spoofGuardTable(c.cfg.InterfaceName),
	})
	chain := conn.AddChain(&nftables.Chain{
		Name:     spoofGuardChain,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookPrerouting,
		Priority: nftables.ChainPriorityRaw,
	})
	conn.FlushChain(chain)

	for _, addr := range addrs {
		conn.AddRule(&nftables.Rule{
			Table: table,
			Chain: chain,
			Exprs: spoofGuardExprs(c.cfg.InterfaceName, addr),
		})
	}

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("nftables: install spoof guard on %q: %w", c.cfg.InterfaceName, err)
	}

	c.logger.Debug("spoof guard installed",
		"component", "wireguard",
		"interface", c.cfg.InterfaceName,
		"addresses", len(addrs),
	)
	return nil
}

// removeSpoofGuard deletes the per-interface table. A missing table returns nil.
func (c *NetlinkController) removeSpoofGuard() error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("nftables: remove spoof guard: %w", err)
	}

	tables, err := conn.ListTablesOfFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return fmt.Errorf("nftables: remove spoof guard: list tables: %w", err)
	}

	name := spoofGuardTable(c.cfg.InterfaceName)
	for _, t := range tables {
		if t.Name != name {
			continue
		}
		conn.DelTable(t)
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("nftables: remove spoof guard on %q: %w", c.cfg.InterfaceName, err)
		}
		c.logger.Debug("spoof guard removed",
			"component", "wireguard",
			"interface", c.cfg.InterfaceName,
		)
	}
	return nil
}

func spoofGuardExprs(iface string, addr netip.Addr) []expr.Any {
	dst := addr.As4()
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: ifaceNameBytes(iface)},
		// IPv4 destination address: network header offset 16, 4 bytes.
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseNetworkHeader, Offset: 16, Len: 4},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: dst[:]},
		&expr.Fib{Register: 1, FlagSADDR: true, ResultADDRTYPE: true},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(unix.RTN_LOCAL)},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}

// ifaceNameBytes returns the interface name as a null-terminated byte slice
// for nftables expression matching.
func ifaceNameBytes(name string) []byte {
	buf := make([]byte, 16)
	copy(buf, name)
	return buf[:len(name)+1]
}
