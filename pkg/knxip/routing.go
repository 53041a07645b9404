package knxip

import (
	"encoding/binary"
	"fmt"
	"time"
)

// RoutingIndication carries a cEMI frame on the routing multicast group.
type RoutingIndication struct {
	CEMI []byte
}

func (*RoutingIndication) ServiceType() ServiceType  { return ServiceRoutingIndication }
func (b *RoutingIndication) Size() int               { return len(b.CEMI) }
func (b *RoutingIndication) EncodeTo(buf []byte) int { return copy(buf, b.CEMI) }

func (b *RoutingIndication) Decode(data []byte) error {
	if len(data) == 0 {
		return parseError("routing indication without cEMI frame")
	}
	b.CEMI = append([]byte(nil), data...)
	return nil
}

func (b *RoutingIndication) String() string {
	return fmt.Sprintf("<RoutingIndication cemi=%x>", b.CEMI)
}

// RoutingSystemBroadcast carries a system broadcast cEMI frame.
type RoutingSystemBroadcast struct {
	CEMI []byte
}

func (*RoutingSystemBroadcast) ServiceType() ServiceType  { return ServiceRoutingSystemBroadcast }
func (b *RoutingSystemBroadcast) Size() int               { return len(b.CEMI) }
func (b *RoutingSystemBroadcast) EncodeTo(buf []byte) int { return copy(buf, b.CEMI) }

func (b *RoutingSystemBroadcast) Decode(data []byte) error {
	if len(data) == 0 {
		return parseError("system broadcast without cEMI frame")
	}
	b.CEMI = append([]byte(nil), data...)
	return nil
}

const (
	routingLostMessageSize = 4
	routingBusySize        = 6
)

// RoutingLostMessage reports frames a router had to drop.
type RoutingLostMessage struct {
	DeviceState  uint8
	LostMessages uint16
}

func (*RoutingLostMessage) ServiceType() ServiceType { return ServiceRoutingLostMessage }
func (*RoutingLostMessage) Size() int                { return routingLostMessageSize }

func (b *RoutingLostMessage) EncodeTo(buf []byte) int {
	buf[0] = routingLostMessageSize
	buf[1] = b.DeviceState
	binary.BigEndian.PutUint16(buf[2:], b.LostMessages)
	return routingLostMessageSize
}

func (b *RoutingLostMessage) Decode(data []byte) error {
	if len(data) != routingLostMessageSize || data[0] != routingLostMessageSize {
		return parseError("routing lost message of %d bytes", len(data))
	}
	b.DeviceState = data[1]
	b.LostMessages = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RoutingBusy asks routers to pause sending for WaitTime milliseconds.
type RoutingBusy struct {
	DeviceState uint8
	WaitTime    uint16
	Control     uint16
}

func (*RoutingBusy) ServiceType() ServiceType { return ServiceRoutingBusy }
func (*RoutingBusy) Size() int                { return routingBusySize }

// Wait returns WaitTime as a duration.
func (b *RoutingBusy) Wait() time.Duration {
	return time.Duration(b.WaitTime) * time.Millisecond
}

func (b *RoutingBusy) EncodeTo(buf []byte) int {
	buf[0] = routingBusySize
	buf[1] = b.DeviceState
	binary.BigEndian.PutUint16(buf[2:], b.WaitTime)
	binary.BigEndian.PutUint16(buf[4:], b.Control)
	return routingBusySize
}

func (b *RoutingBusy) Decode(data []byte) error {
	if len(data) != routingBusySize || data[0] != routingBusySize {
		return parseError("routing busy of %d bytes", len(data))
	}
	b.DeviceState = data[1]
	b.WaitTime = binary.BigEndian.Uint16(data[2:])
	b.Control = binary.BigEndian.Uint16(data[4:])
	return nil
}
