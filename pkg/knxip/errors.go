package knxip

import (
	"errors"
	"fmt"
)

// KNXnet/IP layer errors.
var (
	// ErrCouldNotParseKNXIP reports a malformed frame or body.
	ErrCouldNotParseKNXIP = errors.New("knxip: could not parse frame")

	// ErrIncompleteFrame means more bytes are needed before a frame can be
	// parsed. It is never returned for malformed data.
	ErrIncompleteFrame = errors.New("knxip: incomplete frame")

	// ErrUnsupportedService is returned for service types that are known but
	// have no body codec in this package (remote diagnosis).
	ErrUnsupportedService = fmt.Errorf("%w: service has no body codec", ErrCouldNotParseKNXIP)

	// ErrInvalidBody reports a body that cannot be encoded.
	ErrInvalidBody = errors.New("knxip: invalid body")

	// ErrStreamReadFailed wraps I/O errors of a StreamReader.
	ErrStreamReadFailed = errors.New("knxip: failed to read from stream")
)

func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCouldNotParseKNXIP}, args...)...)
}

// KNXnet/IP format constants.
const (
	// HeaderLength is the fixed size of the KNXnet/IP header.
	HeaderLength = 0x06

	// ProtocolVersion is KNXnet/IP 1.0.
	ProtocolVersion = 0x10

	// MaxFrameSize is the largest total length the header can express.
	MaxFrameSize = 0xFFFF

	// DefaultPort is the registered KNXnet/IP port.
	DefaultPort = 3671

	// MACSize is the size of KNX IP Secure message authentication codes.
	MACSize = 16

	// PublicKeySize is the size of an X25519 public value.
	PublicKeySize = 32
)
