package nodeid

import (
	"net/netip"
	"testing"
)

func TestFromAddr(t *testing.T) {
	got, err := FromAddr(netip.MustParseAddr("10.100.23.42"))
	if err != nil {
		t.Fatalf("FromAddr: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d want 42", got)
	}
}

func TestFromAddrRejectsIPv6(t *testing.T) {
	_, err := FromAddr(netip.MustParseAddr("::1"))
	if err == nil {
		t.Fatalf("expected an error deriving a node id from an IPv6 address")
	}
}

func TestFromInterfaceFindsAnAddress(t *testing.T) {
	// 255.255.255.255 is never actually dialed over UDP; the kernel just
	// has to pick a local source address for the route, which is enough
	// to exercise the happy path on any networked test machine.
	id, addr, err := FromInterface("255.255.255.255:12345")
	if err != nil {
		t.Skipf("no usable network interface in this environment: %v", err)
	}
	want, _ := FromAddr(addr)
	if id != want {
		t.Fatalf("id %d did not match last octet of %v", id, addr)
	}
}
