// Package capture records KNXnet/IP frames as a CBOR event stream.
//
// A capture file is a plain concatenation of CBOR encoded Events, so it can
// be appended to while running and streamed back with a Reader.
package capture

import (
	"fmt"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/google/uuid"
)

// Event is one captured frame. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the frame was sent or received.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID groups the frames of one client connection.
	ConnectionID uuid.UUID `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`

	// ServiceType is taken from the frame header, 0 if it was unreadable.
	ServiceType knxip.ServiceType `cbor:"4,keyasint"`

	// Secure marks frames that were unwrapped from a SecureWrapper; Data
	// then holds the plaintext inner frame.
	Secure bool `cbor:"5,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	Data []byte `cbor:"7,keyasint,omitempty"`

	// Error is set when the frame could not be processed.
	Error string `cbor:"8,keyasint,omitempty"`
}

// Direction indicates frame flow.
type Direction uint8

const (
	// DirectionIn indicates a received frame.
	DirectionIn Direction = 0
	// DirectionOut indicates a sent frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// NewFrameEvent builds an event for raw frame bytes, filling ServiceType
// from the header when present.
func NewFrameEvent(conn uuid.UUID, dir Direction, data []byte) Event {
	e := Event{
		Timestamp:    time.Now(),
		ConnectionID: conn,
		Direction:    dir,
		Data:         data,
	}
	var h knxip.Header
	if err := h.Decode(data); err == nil {
		e.ServiceType = h.ServiceType
	}
	return e
}

// String formats the event as a single line.
func (e Event) String() string {
	s := fmt.Sprintf("%s %-3s %v", e.Timestamp.Format(time.RFC3339Nano), e.Direction, e.ServiceType)
	if e.Secure {
		s += " (secure)"
	}
	if e.RemoteAddr != "" {
		s += " " + e.RemoteAddr
	}
	s += fmt.Sprintf(" %x", e.Data)
	if e.Error != "" {
		s += " error: " + e.Error
	}
	return s
}

// Logger receives capture events. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
