package discovery

import (
	"net"
	"net/netip"
	"testing"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/stretchr/testify/assert"
)

func TestGatewayFromResponse(t *testing.T) {
	resp := testResponse("Secure IP", 40, false)
	resp.Control = knxip.RouteBackHPAI(knxip.HostProtocolUDP)
	resp.DIBs = append(resp.DIBs, &knxip.ServiceFamilies{Secured: true, Families: []knxip.FamilyVersion{
		{Family: knxip.FamilyTunnelling, Version: 1},
	}})

	peer := transport.NewUDPPeerAddress(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 40), Port: 3671})
	g := gatewayFromResponse(resp, peer)

	assert.Equal(t, knxip.HostProtocolUDP, g.Control.Protocol)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.40:3671"), g.Control.AddrPort())
	assert.Equal(t, knxip.SerialNumber{0x00, 0xfa, 0x00, 0x00, 0x00, 40}, g.SerialNumber)
	assert.Equal(t, knxip.DefaultMulticastAddr, g.MulticastAddress)
	assert.Len(t, g.Services, 4)
	assert.True(t, g.SecureTunnelling())
	assert.False(t, g.SecureRouting())
	assert.True(t, g.Supports(knxip.FamilyRouting, 1))
	assert.False(t, g.Supports(knxip.FamilyRouting, 3))
	assert.Contains(t, g.String(), "Secure IP")
}

func TestGatewayRouteBackUnknownPeer(t *testing.T) {
	resp := testResponse("", 41, false)
	resp.Control = knxip.RouteBackHPAI(knxip.HostProtocolUDP)
	resp.DIBs = nil

	g := gatewayFromResponse(resp, transport.NewUDPPeerAddress(transport.PipeAddr{ID: 1}))
	assert.True(t, g.Control.IsRouteBack())
	assert.Empty(t, g.Name)
	assert.False(t, g.SupportsTunnellingTCP())
	assert.Contains(t, g.String(), "(unnamed)")
}
