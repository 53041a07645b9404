package transport

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/backkem/knxip/pkg/knxip"
)

// TransportType identifies the transport protocol a frame arrived on.
type TransportType int

const (
	// TransportTypeUnknown is the zero value for unknown transport.
	TransportTypeUnknown TransportType = iota
	// TransportTypeUDP indicates UDP transport.
	TransportTypeUDP
	// TransportTypeTCP indicates TCP transport.
	TransportTypeTCP
)

// String returns the string representation of the transport type.
func (t TransportType) String() string {
	switch t {
	case TransportTypeUDP:
		return "UDP"
	case TransportTypeTCP:
		return "TCP"
	default:
		return "Unknown"
	}
}

// HostProtocol returns the HPAI protocol code for the transport.
func (t TransportType) HostProtocol() knxip.HostProtocol {
	if t == TransportTypeTCP {
		return knxip.HostProtocolTCP
	}
	return knxip.HostProtocolUDP
}

// PeerAddress identifies a remote peer by network address and transport type.
type PeerAddress struct {
	Addr          net.Addr
	TransportType TransportType
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	if p.Addr == nil {
		return fmt.Sprintf("%s:<nil>", p.TransportType)
	}
	return fmt.Sprintf("%s:%s", p.TransportType, p.Addr.String())
}

// IsValid returns true if the peer address has a valid transport type and address.
func (p PeerAddress) IsValid() bool {
	return (p.TransportType == TransportTypeUDP || p.TransportType == TransportTypeTCP) && p.Addr != nil
}

// HPAI returns the endpoint as a KNXnet/IP host protocol address. Peers
// without an IPv4 address, such as pipe endpoints, map to the route back
// HPAI.
func (p PeerAddress) HPAI() knxip.HPAI {
	var ap netip.AddrPort
	switch a := p.Addr.(type) {
	case *net.UDPAddr:
		ap = a.AddrPort()
	case *net.TCPAddr:
		ap = a.AddrPort()
	}
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return knxip.RouteBackHPAI(p.TransportType.HostProtocol())
	}
	h := knxip.NewHPAI(netip.AddrPortFrom(addr, ap.Port()))
	h.Protocol = p.TransportType.HostProtocol()
	return h
}

// NewUDPPeerAddress creates a PeerAddress for a UDP peer.
func NewUDPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{Addr: addr, TransportType: TransportTypeUDP}
}

// NewTCPPeerAddress creates a PeerAddress for a TCP peer.
func NewTCPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{Addr: addr, TransportType: TransportTypeTCP}
}

// UDPAddrFromHPAI converts an HPAI to a UDP address.
func UDPAddrFromHPAI(h knxip.HPAI) *net.UDPAddr {
	return net.UDPAddrFromAddrPort(h.AddrPort())
}

// UDPAddrFromString parses an address string and creates a UDP PeerAddress.
// A missing port defaults to knxip.DefaultPort.
func UDPAddrFromString(addr string) (PeerAddress, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprint(knxip.DefaultPort))
	}
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewUDPPeerAddress(udpAddr), nil
}
