// Package nodeid derives this process's stable, byte-sized fleet identity
// from the last octet of its LAN address (node identity, §3).
package nodeid

import (
	"fmt"
	"net"
	"net/netip"
)

// FromInterface returns the last octet of the local IPv4 address the kernel
// picks for reaching probeAddr, together with that address; the octet
// serves as this node's id for the lifetime of the process.
//
// A UDP dial to a LAN broadcast-reachable address never actually sends a
// packet; it only asks the kernel to pick the outbound interface/address
// for that destination, which is the same trick used to discover the
// "default" local address without enumerating every interface by hand.
func FromInterface(probeAddr string) (uint8, netip.Addr, error) {
	conn, err := net.Dial("udp4", probeAddr)
	if err != nil {
		return 0, netip.Addr{}, fmt.Errorf("dial probe address to discover local LAN address: %w", err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.To4() == nil {
		return 0, netip.Addr{}, fmt.Errorf("local address %v is not usable as an IPv4 LAN address", conn.LocalAddr())
	}

	addr, ok := netip.AddrFromSlice(local.IP.To4())
	if !ok {
		return 0, netip.Addr{}, fmt.Errorf("could not parse local address %v", local.IP)
	}
	octets := addr.As4()
	return octets[3], addr, nil
}

// FromAddr derives the id directly from an already-known address, for
// tests and for nodes configured with a fixed LAN address.
func FromAddr(addr netip.Addr) (uint8, error) {
	if !addr.Is4() {
		return 0, fmt.Errorf("node id derivation requires an IPv4 address, got %v", addr)
	}
	return addr.As4()[3], nil
}
