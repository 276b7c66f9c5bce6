// Package ipcalc computes IPv4 subnet addresses for the tunnel interface.
package ipcalc

import (
	"encoding/binary"
	"net/netip"
)

// NetworkAddress returns ip with all but the top prefix bits cleared.
// A prefix of 0 yields 0.0.0.0 and a prefix of 32 returns ip unchanged.
// The zero Addr is returned for non-IPv4 input or a prefix outside [0,32].
func NetworkAddress(ip netip.Addr, prefix int) netip.Addr {
	if !ip.Is4() || prefix < 0 || prefix > 32 {
		return netip.Addr{}
	}
	var mask uint32
	if prefix > 0 {
		mask = ^uint32(0) << (32 - prefix)
	}
	return fromUint32(toUint32(ip) & mask)
}

// FirstHost returns the address following network, conventionally the
// server side of the tunnel subnet.
func FirstHost(network netip.Addr) netip.Addr {
	if !network.Is4() {
		return netip.Addr{}
	}
	return fromUint32(toUint32(network) + 1)
}

// Prefix returns the subnet of ip with the given prefix length,
// e.g. 10.6.0.30/24 -> 10.6.0.0/24.
func Prefix(ip netip.Addr, prefix int) netip.Prefix {
	network := NetworkAddress(ip, prefix)
	if !network.IsValid() {
		return netip.Prefix{}
	}
	return netip.PrefixFrom(network, prefix)
}

func toUint32(ip netip.Addr) uint32 {
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
