package transport

import (
	"github.com/backkem/knxip/pkg/knxip"
)

// ReceivedFrame is a raw KNXnet/IP frame as read from the network.
// Over TCP it is exactly one frame; over UDP it is one datagram.
type ReceivedFrame struct {
	Data []byte
	Peer PeerAddress
}

// Parse decodes the frame bytes.
func (r *ReceivedFrame) Parse() (knxip.Frame, error) {
	f, _, err := knxip.Parse(r.Data)
	return f, err
}

// FrameHandler is called for each received frame.
// Implementations should process frames quickly or dispatch to a goroutine
// to avoid blocking the transport's read loop.
type FrameHandler func(frame *ReceivedFrame)

// Conn is a connected transport: a TCP stream or a UDP socket bound to a
// single peer.
type Conn interface {
	Send(data []byte) error
	SendFrame(f knxip.Frame) error
	Close() error
}
