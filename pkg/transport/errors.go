package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned when an invalid peer address is provided.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNoHandler is returned when no frame handler is configured.
	ErrNoHandler = errors.New("transport: no frame handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrFrameTooLarge is returned when a frame exceeds the datagram size.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// MaxDatagramSize bounds a single received UDP datagram.
const MaxDatagramSize = 1500
