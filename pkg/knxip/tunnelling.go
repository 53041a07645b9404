package knxip

import "fmt"

const connectionHeaderSize = 4

// ConnectionHeader prefixes tunnelling and device management bodies.
// Status is reserved in requests.
type ConnectionHeader struct {
	Channel  uint8
	Sequence uint8
	Status   ErrorCode
}

func (h ConnectionHeader) EncodeTo(buf []byte) int {
	buf[0] = connectionHeaderSize
	buf[1] = h.Channel
	buf[2] = h.Sequence
	buf[3] = byte(h.Status)
	return connectionHeaderSize
}

func (h *ConnectionHeader) Decode(data []byte) error {
	if len(data) < connectionHeaderSize {
		return parseError("connection header needs %d bytes, got %d", connectionHeaderSize, len(data))
	}
	if data[0] != connectionHeaderSize {
		return parseError("connection header length %d", data[0])
	}
	h.Channel = data[1]
	h.Sequence = data[2]
	h.Status = ErrorCode(data[3])
	return nil
}

// cemiRequest is a connection header followed by a raw cEMI frame.
type cemiRequest struct {
	ConnectionHeader
	CEMI []byte
}

func (b *cemiRequest) Size() int { return connectionHeaderSize + len(b.CEMI) }

func (b *cemiRequest) EncodeTo(buf []byte) int {
	h := b.ConnectionHeader
	h.Status = 0
	off := h.EncodeTo(buf)
	return off + copy(buf[off:], b.CEMI)
}

func (b *cemiRequest) Decode(data []byte) error {
	if err := b.ConnectionHeader.Decode(data); err != nil {
		return err
	}
	if len(data) == connectionHeaderSize {
		return parseError("request without cEMI frame")
	}
	b.CEMI = append([]byte(nil), data[connectionHeaderSize:]...)
	return nil
}

// connectionAck is a bare connection header carrying a status.
type connectionAck struct {
	ConnectionHeader
}

func (*connectionAck) Size() int                 { return connectionHeaderSize }
func (b *connectionAck) EncodeTo(buf []byte) int { return b.ConnectionHeader.EncodeTo(buf) }
func (b *connectionAck) Decode(data []byte) error {
	if len(data) != connectionHeaderSize {
		return parseError("ack of %d bytes", len(data))
	}
	return b.ConnectionHeader.Decode(data)
}

// TunnellingRequest carries a cEMI frame over a tunnel connection.
type TunnellingRequest struct{ cemiRequest }

// NewTunnellingRequest wraps a raw cEMI frame.
func NewTunnellingRequest(channel, seq uint8, cemi []byte) *TunnellingRequest {
	return &TunnellingRequest{cemiRequest{ConnectionHeader{Channel: channel, Sequence: seq}, cemi}}
}

func (*TunnellingRequest) ServiceType() ServiceType { return ServiceTunnellingRequest }

func (b *TunnellingRequest) String() string {
	return fmt.Sprintf("<TunnellingRequest channel=%d seq=%d cemi=%x>", b.Channel, b.Sequence, b.CEMI)
}

// TunnellingAck acknowledges a TunnellingRequest.
type TunnellingAck struct{ connectionAck }

// NewTunnellingAck acknowledges sequence seq on channel.
func NewTunnellingAck(channel, seq uint8, status ErrorCode) *TunnellingAck {
	return &TunnellingAck{connectionAck{ConnectionHeader{Channel: channel, Sequence: seq, Status: status}}}
}

func (*TunnellingAck) ServiceType() ServiceType { return ServiceTunnellingAck }

// DeviceConfigurationRequest carries a cEMI management frame.
type DeviceConfigurationRequest struct{ cemiRequest }

// NewDeviceConfigurationRequest wraps a raw cEMI management frame.
func NewDeviceConfigurationRequest(channel, seq uint8, cemi []byte) *DeviceConfigurationRequest {
	return &DeviceConfigurationRequest{cemiRequest{ConnectionHeader{Channel: channel, Sequence: seq}, cemi}}
}

func (*DeviceConfigurationRequest) ServiceType() ServiceType {
	return ServiceDeviceConfigurationRequest
}

// DeviceConfigurationAck acknowledges a DeviceConfigurationRequest.
type DeviceConfigurationAck struct{ connectionAck }

// NewDeviceConfigurationAck acknowledges sequence seq on channel.
func NewDeviceConfigurationAck(channel, seq uint8, status ErrorCode) *DeviceConfigurationAck {
	return &DeviceConfigurationAck{connectionAck{ConnectionHeader{Channel: channel, Sequence: seq, Status: status}}}
}

func (*DeviceConfigurationAck) ServiceType() ServiceType { return ServiceDeviceConfigurationAck }

// TunnellingFeature is one of the four tunnelling feature services,
// selected by Service. Get carries no value. ReturnCode is only meaningful
// for responses. Values of odd length are padded to an even size.
type TunnellingFeature struct {
	Service    ServiceType
	Channel    uint8
	Sequence   uint8
	Feature    FeatureType
	ReturnCode uint8
	Value      []byte
}

func (b *TunnellingFeature) ServiceType() ServiceType { return b.Service }

func (b *TunnellingFeature) hasValue() bool { return b.Service != ServiceTunnellingFeatureGet }

func (b *TunnellingFeature) Size() int {
	if !b.hasValue() {
		return connectionHeaderSize + 2
	}
	return connectionHeaderSize + 2 + len(b.Value) + len(b.Value)%2
}

func (b *TunnellingFeature) Validate() error {
	switch b.Service {
	case ServiceTunnellingFeatureGet:
		return nil
	case ServiceTunnellingFeatureResponse, ServiceTunnellingFeatureSet, ServiceTunnellingFeatureInfo:
		if len(b.Value) == 0 {
			return fmt.Errorf("%w: %v without value", ErrInvalidBody, b.Service)
		}
		return nil
	}
	return fmt.Errorf("%w: %v is not a tunnelling feature service", ErrInvalidBody, b.Service)
}

func (b *TunnellingFeature) EncodeTo(buf []byte) int {
	n := b.Size()
	clear(buf[:n])
	off := ConnectionHeader{Channel: b.Channel, Sequence: b.Sequence}.EncodeTo(buf)
	buf[off] = byte(b.Feature)
	if b.Service == ServiceTunnellingFeatureResponse {
		buf[off+1] = b.ReturnCode
	}
	if b.hasValue() {
		copy(buf[off+2:], b.Value)
	}
	return n
}

func (b *TunnellingFeature) Decode(data []byte) error {
	var h ConnectionHeader
	if err := h.Decode(data); err != nil {
		return err
	}
	if len(data) < connectionHeaderSize+2 {
		return parseError("tunnelling feature of %d bytes", len(data))
	}
	b.Channel = h.Channel
	b.Sequence = h.Sequence
	b.Feature = FeatureType(data[4])
	b.ReturnCode = 0
	if b.Service == ServiceTunnellingFeatureResponse {
		b.ReturnCode = data[5]
	}
	value := data[connectionHeaderSize+2:]
	switch {
	case b.hasValue() && len(value) == 0:
		return parseError("%v without value", b.Service)
	case !b.hasValue() && len(value) > 0:
		return parseError("%v with unexpected value", b.Service)
	}
	b.Value = append([]byte(nil), value...)
	return nil
}
