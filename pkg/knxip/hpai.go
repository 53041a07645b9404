package knxip

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// HostProtocol is the transport of an HPAI endpoint.
type HostProtocol uint8

const (
	HostProtocolUDP HostProtocol = 0x01
	HostProtocolTCP HostProtocol = 0x02
)

func (p HostProtocol) String() string {
	switch p {
	case HostProtocolUDP:
		return "IPV4_UDP"
	case HostProtocolTCP:
		return "IPV4_TCP"
	default:
		return fmt.Sprintf("HostProtocol(%#02x)", uint8(p))
	}
}

// HPAISize is the fixed size of a host protocol address information block.
const HPAISize = 8

// DefaultMulticastAddr is the KNXnet/IP system setup multicast address.
var DefaultMulticastAddr = netip.AddrFrom4([4]byte{224, 0, 23, 12})

// HPAI is a host protocol address information block: an IPv4 endpoint and
// its transport.
type HPAI struct {
	Protocol HostProtocol
	IP       netip.Addr
	Port     uint16
}

// NewHPAI returns a UDP HPAI for ap.
func NewHPAI(ap netip.AddrPort) HPAI {
	return HPAI{Protocol: HostProtocolUDP, IP: ap.Addr().Unmap(), Port: ap.Port()}
}

// RouteBackHPAI returns the 0.0.0.0:0 endpoint that asks the server to
// answer to the source address of the request. TCP connections always use
// it.
func RouteBackHPAI(p HostProtocol) HPAI {
	return HPAI{Protocol: p, IP: netip.IPv4Unspecified()}
}

// IsRouteBack reports whether h is a route back endpoint.
func (h HPAI) IsRouteBack() bool {
	return h.Port == 0 && (!h.IP.IsValid() || h.IP.Unmap().IsUnspecified())
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (h HPAI) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(h.IP, h.Port)
}

// Validate checks that the protocol is known and the address is IPv4.
func (h HPAI) Validate() error {
	if h.Protocol != HostProtocolUDP && h.Protocol != HostProtocolTCP {
		return fmt.Errorf("%w: HPAI host protocol %v", ErrInvalidBody, h.Protocol)
	}
	if h.IP.IsValid() && !h.IP.Unmap().Is4() {
		return fmt.Errorf("%w: HPAI address %v is not IPv4", ErrInvalidBody, h.IP)
	}
	return nil
}

// EncodeTo writes the HPAI into buf. An unset address encodes as 0.0.0.0.
func (h HPAI) EncodeTo(buf []byte) int {
	buf[0] = HPAISize
	buf[1] = byte(h.Protocol)
	ip4 := ipv4(h.IP)
	copy(buf[2:6], ip4[:])
	binary.BigEndian.PutUint16(buf[6:], h.Port)
	return HPAISize
}

// Decode parses an HPAI from the start of data.
func (h *HPAI) Decode(data []byte) error {
	if len(data) < HPAISize {
		return parseError("HPAI needs %d bytes, got %d", HPAISize, len(data))
	}
	if data[0] != HPAISize {
		return parseError("HPAI length %d", data[0])
	}
	h.Protocol = HostProtocol(data[1])
	if h.Protocol != HostProtocolUDP && h.Protocol != HostProtocolTCP {
		return parseError("HPAI host protocol %#02x", data[1])
	}
	h.IP = netip.AddrFrom4([4]byte(data[2:6]))
	h.Port = binary.BigEndian.Uint16(data[6:])
	return nil
}

func (h HPAI) String() string {
	return fmt.Sprintf("%v %v", h.AddrPort(), h.Protocol)
}

func ipv4(a netip.Addr) [4]byte {
	if a.IsValid() {
		if a = a.Unmap(); a.Is4() {
			return a.As4()
		}
	}
	return [4]byte{}
}

func decodeIPv4(data []byte) netip.Addr {
	return netip.AddrFrom4([4]byte(data[:4]))
}

// SerialNumber is the 6 byte KNX serial number of a device.
type SerialNumber [6]byte

// ParseSerialNumber accepts 12 hex digits, optionally separated by ':'.
func ParseSerialNumber(s string) (SerialNumber, error) {
	var sn SerialNumber
	raw, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil || len(raw) != len(sn) {
		return sn, fmt.Errorf("%w: serial number %q", ErrInvalidBody, s)
	}
	copy(sn[:], raw)
	return sn, nil
}

func (s SerialNumber) String() string {
	return hex.EncodeToString(s[:])
}

// PutUint48 writes the low 48 bits of v big endian into buf.
func PutUint48(buf []byte, v uint64) {
	buf[0] = byte(v >> 40)
	buf[1] = byte(v >> 32)
	binary.BigEndian.PutUint32(buf[2:], uint32(v))
}

// Uint48 reads a 48 bit big endian value.
func Uint48(data []byte) uint64 {
	return uint64(data[0])<<40 | uint64(data[1])<<32 | uint64(binary.BigEndian.Uint32(data[2:]))
}
