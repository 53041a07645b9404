package knxip

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/backkem/knxip/pkg/telegram"
)

// SearchRequest discovers servers. Responses go to Discovery.
type SearchRequest struct {
	Discovery HPAI
}

func (*SearchRequest) ServiceType() ServiceType  { return ServiceSearchRequest }
func (*SearchRequest) Size() int                 { return HPAISize }
func (b *SearchRequest) EncodeTo(buf []byte) int { return b.Discovery.EncodeTo(buf) }
func (b *SearchRequest) Validate() error         { return b.Discovery.Validate() }
func (b *SearchRequest) String() string          { return fmt.Sprintf("<SearchRequest %v>", b.Discovery) }
func (b *SearchRequest) Decode(data []byte) error {
	if len(data) != HPAISize {
		return parseError("search request of %d bytes", len(data))
	}
	return b.Discovery.Decode(data)
}

// SearchRequestExtended is a search restricted by search request parameters.
type SearchRequestExtended struct {
	Discovery  HPAI
	Parameters []SRP
}

func (*SearchRequestExtended) ServiceType() ServiceType { return ServiceSearchRequestExtended }

func (b *SearchRequestExtended) Size() int {
	n := HPAISize
	for _, p := range b.Parameters {
		n += p.Size()
	}
	return n
}

func (b *SearchRequestExtended) Validate() error {
	errs := []error{b.Discovery.Validate()}
	for _, p := range b.Parameters {
		errs = append(errs, p.Validate())
	}
	return errors.Join(errs...)
}

func (b *SearchRequestExtended) EncodeTo(buf []byte) int {
	off := b.Discovery.EncodeTo(buf)
	for _, p := range b.Parameters {
		off += p.EncodeTo(buf[off:])
	}
	return off
}

func (b *SearchRequestExtended) Decode(data []byte) error {
	if err := b.Discovery.Decode(data); err != nil {
		return err
	}
	b.Parameters = nil
	for rest := data[HPAISize:]; len(rest) > 0; {
		var p SRP
		n, err := p.Decode(rest)
		if err != nil {
			return err
		}
		b.Parameters = append(b.Parameters, p)
		rest = rest[n:]
	}
	return nil
}

// SearchResponse answers a search with the server's control endpoint and
// its description. Extended selects SEARCH_RESPONSE_EXTENDED.
type SearchResponse struct {
	Extended bool
	Control  HPAI
	DIBs     []DIB
}

func (b *SearchResponse) ServiceType() ServiceType {
	if b.Extended {
		return ServiceSearchResponseExtended
	}
	return ServiceSearchResponse
}

func (b *SearchResponse) Size() int       { return HPAISize + dibsSize(b.DIBs) }
func (b *SearchResponse) Validate() error { return b.Control.Validate() }

func (b *SearchResponse) EncodeTo(buf []byte) int {
	off := b.Control.EncodeTo(buf)
	return off + encodeDIBs(buf[off:], b.DIBs)
}

func (b *SearchResponse) Decode(data []byte) error {
	if err := b.Control.Decode(data); err != nil {
		return err
	}
	dibs, err := DecodeDIBs(data[HPAISize:])
	if err != nil {
		return err
	}
	b.DIBs = dibs
	return nil
}

// DeviceInfo returns the device information DIB if present.
func (b *SearchResponse) DeviceInfo() *DeviceInfo {
	d, _ := FindDIB[*DeviceInfo](b.DIBs)
	return d
}

func (b *SearchResponse) String() string {
	return fmt.Sprintf("<%v control=%v dibs=%s>", b.ServiceType(), b.Control, dibsString(b.DIBs))
}

// DescriptionRequest asks a server to describe itself.
type DescriptionRequest struct {
	Control HPAI
}

func (*DescriptionRequest) ServiceType() ServiceType  { return ServiceDescriptionRequest }
func (*DescriptionRequest) Size() int                 { return HPAISize }
func (b *DescriptionRequest) EncodeTo(buf []byte) int { return b.Control.EncodeTo(buf) }
func (b *DescriptionRequest) Validate() error         { return b.Control.Validate() }
func (b *DescriptionRequest) Decode(data []byte) error {
	if len(data) != HPAISize {
		return parseError("description request of %d bytes", len(data))
	}
	return b.Control.Decode(data)
}

// DescriptionResponse carries the server description.
type DescriptionResponse struct {
	DIBs []DIB
}

func (*DescriptionResponse) ServiceType() ServiceType  { return ServiceDescriptionResponse }
func (b *DescriptionResponse) Size() int               { return dibsSize(b.DIBs) }
func (b *DescriptionResponse) EncodeTo(buf []byte) int { return encodeDIBs(buf, b.DIBs) }
func (b *DescriptionResponse) Decode(data []byte) error {
	dibs, err := DecodeDIBs(data)
	if err != nil {
		return err
	}
	b.DIBs = dibs
	return nil
}

// CRI is the connection request information of a CONNECT_REQUEST. For
// tunnel connections Layer is required; IndividualAddress selects a
// specific tunnelling address (extended CRI).
type CRI struct {
	Type              ConnectionType
	Layer             TunnelLayer
	IndividualAddress *telegram.IndividualAddress
}

// TunnelCRI returns the CRI of a link layer tunnel connection.
func TunnelCRI() CRI {
	return CRI{Type: TunnelConnection, Layer: TunnelLinkLayer}
}

func (c CRI) Size() int {
	if c.Type != TunnelConnection {
		return 2
	}
	if c.IndividualAddress != nil {
		return 6
	}
	return 4
}

func (c CRI) EncodeTo(buf []byte) int {
	n := c.Size()
	buf[0] = byte(n)
	buf[1] = byte(c.Type)
	if c.Type == TunnelConnection {
		buf[2] = byte(c.Layer)
		buf[3] = 0
		if c.IndividualAddress != nil {
			binary.BigEndian.PutUint16(buf[4:], c.IndividualAddress.Raw())
		}
	}
	return n
}

func (c *CRI) Decode(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, parseError("CRI needs 2 bytes, got %d", len(data))
	}
	n := int(data[0])
	if n > len(data) {
		return 0, parseError("CRI length %d with %d bytes remaining", n, len(data))
	}
	c.Type = ConnectionType(data[1])
	c.Layer = 0
	c.IndividualAddress = nil
	switch {
	case c.Type != TunnelConnection && n == 2:
	case c.Type == TunnelConnection && n == 4:
		c.Layer = TunnelLayer(data[2])
	case c.Type == TunnelConnection && n == 6:
		c.Layer = TunnelLayer(data[2])
		ia := telegram.IndividualAddress(binary.BigEndian.Uint16(data[4:]))
		c.IndividualAddress = &ia
	default:
		return 0, parseError("CRI length %d for %v", n, c.Type)
	}
	return n, nil
}

// ConnectRequest opens a data connection.
type ConnectRequest struct {
	Control HPAI
	Data    HPAI
	CRI     CRI
}

func (*ConnectRequest) ServiceType() ServiceType { return ServiceConnectRequest }
func (b *ConnectRequest) Size() int              { return 2*HPAISize + b.CRI.Size() }

func (b *ConnectRequest) Validate() error {
	return errors.Join(b.Control.Validate(), b.Data.Validate())
}

func (b *ConnectRequest) EncodeTo(buf []byte) int {
	off := b.Control.EncodeTo(buf)
	off += b.Data.EncodeTo(buf[off:])
	return off + b.CRI.EncodeTo(buf[off:])
}

func (b *ConnectRequest) Decode(data []byte) error {
	if len(data) < 2*HPAISize+2 {
		return parseError("connect request of %d bytes", len(data))
	}
	if err := b.Control.Decode(data); err != nil {
		return err
	}
	if err := b.Data.Decode(data[HPAISize:]); err != nil {
		return err
	}
	n, err := b.CRI.Decode(data[2*HPAISize:])
	if err != nil {
		return err
	}
	if 2*HPAISize+n != len(data) {
		return parseError("connect request has %d trailing bytes", len(data)-2*HPAISize-n)
	}
	return nil
}

// CRD is the connection response data block. For tunnel connections it
// carries the individual address assigned to the client.
type CRD struct {
	Type              ConnectionType
	IndividualAddress telegram.IndividualAddress
}

func (c CRD) Size() int {
	if c.Type == TunnelConnection {
		return 4
	}
	return 2
}

func (c CRD) EncodeTo(buf []byte) int {
	n := c.Size()
	buf[0] = byte(n)
	buf[1] = byte(c.Type)
	if c.Type == TunnelConnection {
		binary.BigEndian.PutUint16(buf[2:], c.IndividualAddress.Raw())
	}
	return n
}

func (c *CRD) Decode(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, parseError("CRD needs 2 bytes, got %d", len(data))
	}
	n := int(data[0])
	c.Type = ConnectionType(data[1])
	c.IndividualAddress = 0
	if n > len(data) || n != c.Size() {
		return 0, parseError("CRD length %d for %v", n, c.Type)
	}
	if c.Type == TunnelConnection {
		c.IndividualAddress = telegram.IndividualAddress(binary.BigEndian.Uint16(data[2:]))
	}
	return n, nil
}

// ConnectResponse answers a CONNECT_REQUEST. Data and CRD are only present
// when Status is StatusNoError.
type ConnectResponse struct {
	Channel uint8
	Status  ErrorCode
	Data    HPAI
	CRD     CRD
}

func (*ConnectResponse) ServiceType() ServiceType { return ServiceConnectResponse }

func (b *ConnectResponse) Size() int {
	if b.Status != StatusNoError {
		return 2
	}
	return 2 + HPAISize + b.CRD.Size()
}

func (b *ConnectResponse) Validate() error {
	if b.Status != StatusNoError {
		return nil
	}
	return b.Data.Validate()
}

func (b *ConnectResponse) EncodeTo(buf []byte) int {
	buf[0] = b.Channel
	buf[1] = byte(b.Status)
	if b.Status != StatusNoError {
		return 2
	}
	off := 2 + b.Data.EncodeTo(buf[2:])
	return off + b.CRD.EncodeTo(buf[off:])
}

func (b *ConnectResponse) Decode(data []byte) error {
	if len(data) < 2 {
		return parseError("connect response of %d bytes", len(data))
	}
	b.Channel = data[0]
	b.Status = ErrorCode(data[1])
	b.Data = HPAI{}
	b.CRD = CRD{}
	if b.Status != StatusNoError {
		return nil
	}
	if err := b.Data.Decode(data[2:]); err != nil {
		return err
	}
	n, err := b.CRD.Decode(data[2+HPAISize:])
	if err != nil {
		return err
	}
	if 2+HPAISize+n != len(data) {
		return parseError("connect response has %d trailing bytes", len(data)-2-HPAISize-n)
	}
	return nil
}

func (b *ConnectResponse) String() string {
	if b.Status != StatusNoError {
		return fmt.Sprintf("<ConnectResponse channel=%d status=%v>", b.Channel, b.Status)
	}
	return fmt.Sprintf("<ConnectResponse channel=%d data=%v address=%v>", b.Channel, b.Data, b.CRD.IndividualAddress)
}

// channelRequest is the shared layout of CONNECTIONSTATE_REQUEST and
// DISCONNECT_REQUEST: channel, reserved, control endpoint.
type channelRequest struct {
	Channel uint8
	Control HPAI
}

func (*channelRequest) Size() int         { return 2 + HPAISize }
func (b *channelRequest) Validate() error { return b.Control.Validate() }

func (b *channelRequest) EncodeTo(buf []byte) int {
	buf[0] = b.Channel
	buf[1] = 0
	return 2 + b.Control.EncodeTo(buf[2:])
}

func (b *channelRequest) Decode(data []byte) error {
	if len(data) != 2+HPAISize {
		return parseError("channel request of %d bytes", len(data))
	}
	b.Channel = data[0]
	return b.Control.Decode(data[2:])
}

// channelResponse is channel and status, shared by CONNECTIONSTATE_RESPONSE
// and DISCONNECT_RESPONSE.
type channelResponse struct {
	Channel uint8
	Status  ErrorCode
}

func (*channelResponse) Size() int { return 2 }

func (b *channelResponse) EncodeTo(buf []byte) int {
	buf[0] = b.Channel
	buf[1] = byte(b.Status)
	return 2
}

func (b *channelResponse) Decode(data []byte) error {
	if len(data) != 2 {
		return parseError("channel response of %d bytes", len(data))
	}
	b.Channel = data[0]
	b.Status = ErrorCode(data[1])
	return nil
}

// ConnectionStateRequest is the heartbeat of a data connection.
type ConnectionStateRequest struct{ channelRequest }

// NewConnectionStateRequest returns a heartbeat for channel.
func NewConnectionStateRequest(channel uint8, control HPAI) *ConnectionStateRequest {
	return &ConnectionStateRequest{channelRequest{Channel: channel, Control: control}}
}

func (*ConnectionStateRequest) ServiceType() ServiceType { return ServiceConnectionStateRequest }

// ConnectionStateResponse answers a heartbeat.
type ConnectionStateResponse struct{ channelResponse }

// NewConnectionStateResponse returns a heartbeat answer.
func NewConnectionStateResponse(channel uint8, status ErrorCode) *ConnectionStateResponse {
	return &ConnectionStateResponse{channelResponse{Channel: channel, Status: status}}
}

func (*ConnectionStateResponse) ServiceType() ServiceType { return ServiceConnectionStateResponse }

// DisconnectRequest closes a data connection.
type DisconnectRequest struct{ channelRequest }

// NewDisconnectRequest returns a disconnect for channel.
func NewDisconnectRequest(channel uint8, control HPAI) *DisconnectRequest {
	return &DisconnectRequest{channelRequest{Channel: channel, Control: control}}
}

func (*DisconnectRequest) ServiceType() ServiceType { return ServiceDisconnectRequest }

// DisconnectResponse confirms a disconnect.
type DisconnectResponse struct{ channelResponse }

// NewDisconnectResponse returns a disconnect confirmation.
func NewDisconnectResponse(channel uint8, status ErrorCode) *DisconnectResponse {
	return &DisconnectResponse{channelResponse{Channel: channel, Status: status}}
}

func (*DisconnectResponse) ServiceType() ServiceType { return ServiceDisconnectResponse }
