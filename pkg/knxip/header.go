package knxip

import (
	"encoding/binary"
	"fmt"
)

// Header is the 6 byte KNXnet/IP frame header. Header length and protocol
// version are constants and are not stored.
type Header struct {
	ServiceType ServiceType

	// TotalLength covers header and body.
	TotalLength uint16
}

// Encode serializes the header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLength)
	h.EncodeTo(buf)
	return buf
}

// EncodeTo writes the header into buf, which must hold HeaderLength bytes.
func (h Header) EncodeTo(buf []byte) int {
	buf[0] = HeaderLength
	buf[1] = ProtocolVersion
	binary.BigEndian.PutUint16(buf[2:], uint16(h.ServiceType))
	binary.BigEndian.PutUint16(buf[4:], h.TotalLength)
	return HeaderLength
}

// Decode parses a header. Fewer than HeaderLength bytes yields
// ErrIncompleteFrame; a wrong header length, version or a total length
// below the header size yields ErrCouldNotParseKNXIP.
func (h *Header) Decode(data []byte) error {
	if len(data) < HeaderLength {
		return fmt.Errorf("%w: %d header bytes", ErrIncompleteFrame, len(data))
	}
	if data[0] != HeaderLength {
		return parseError("header length %#02x", data[0])
	}
	if data[1] != ProtocolVersion {
		return parseError("protocol version %#02x", data[1])
	}
	h.ServiceType = ServiceType(binary.BigEndian.Uint16(data[2:]))
	h.TotalLength = binary.BigEndian.Uint16(data[4:])
	if h.TotalLength < HeaderLength {
		return parseError("total length %d", h.TotalLength)
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("<Header %v length=%d>", h.ServiceType, h.TotalLength)
}
