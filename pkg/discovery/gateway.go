package discovery

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/transport"
)

// Gateway contains information about a KNXnet/IP server that answered a
// search.
type Gateway struct {
	// Control is the control endpoint. A route back endpoint in the
	// response is replaced by the sender's address when it is known.
	Control knxip.HPAI

	// Name is the friendly name from the device information DIB.
	Name string

	IndividualAddress telegram.IndividualAddress
	SerialNumber      knxip.SerialNumber
	MACAddress        net.HardwareAddr
	MulticastAddress  netip.Addr
	ProgrammingMode   bool

	// Services lists the supported service families.
	Services []knxip.FamilyVersion

	// SecuredServices lists the service families that require KNX IP
	// Secure.
	SecuredServices []knxip.FamilyVersion

	// DIBs holds every description block of the response.
	DIBs []knxip.DIB
}

// gatewayFromResponse converts a search response received from peer.
func gatewayFromResponse(resp *knxip.SearchResponse, peer transport.PeerAddress) Gateway {
	g := Gateway{
		Control: resp.Control,
		DIBs:    resp.DIBs,
	}
	if g.Control.IsRouteBack() {
		if h := peer.HPAI(); !h.IsRouteBack() {
			h.Protocol = g.Control.Protocol
			g.Control = h
		}
	}

	if di := resp.DeviceInfo(); di != nil {
		g.Name = di.FriendlyName
		g.IndividualAddress = di.IndividualAddress
		g.SerialNumber = di.SerialNumber
		g.MACAddress = net.HardwareAddr(append([]byte(nil), di.MACAddress[:]...))
		g.MulticastAddress = di.MulticastAddress
		g.ProgrammingMode = di.ProgrammingMode
	}

	for _, d := range resp.DIBs {
		sf, ok := d.(*knxip.ServiceFamilies)
		if !ok {
			continue
		}
		if sf.Secured {
			g.SecuredServices = append(g.SecuredServices, sf.Families...)
		} else {
			g.Services = append(g.Services, sf.Families...)
		}
	}
	return g
}

// Supports reports whether the gateway supports family in at least the
// given version.
func (g *Gateway) Supports(family knxip.ServiceFamily, version uint8) bool {
	return supports(g.Services, family, version)
}

// SupportsTunnellingTCP reports whether the gateway accepts tunnelling
// over TCP, which core version 2 introduced.
func (g *Gateway) SupportsTunnellingTCP() bool {
	return g.Supports(knxip.FamilyCore, 2) && g.Supports(knxip.FamilyTunnelling, 2)
}

// SecureTunnelling reports whether tunnelling requires a secure session.
func (g *Gateway) SecureTunnelling() bool {
	return supports(g.SecuredServices, knxip.FamilyTunnelling, 1)
}

// SecureRouting reports whether routing on the backbone is secured.
func (g *Gateway) SecureRouting() bool {
	return supports(g.SecuredServices, knxip.FamilyRouting, 1)
}

func (g *Gateway) String() string {
	name := g.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s (%v) at %v", name, g.IndividualAddress, g.Control)
}

// key identifies a gateway across repeated responses. Multi-homed servers
// answer once per interface, so the control endpoint is part of it.
func (g *Gateway) key() string {
	return g.SerialNumber.String() + "@" + g.Control.String()
}

func supports(families []knxip.FamilyVersion, family knxip.ServiceFamily, version uint8) bool {
	for _, f := range families {
		if f.Family == family && f.Version >= version {
			return true
		}
	}
	return false
}
