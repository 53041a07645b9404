package cemi

import "errors"

// cEMI errors.
var (
	// ErrCouldNotParseCEMI is returned for malformed frames.
	ErrCouldNotParseCEMI = errors.New("cemi: could not parse frame")

	// ErrUnsupportedCEMI is returned for well-formed frames with a message
	// code, TPCI or APCI this package does not handle. Receivers may skip
	// such frames.
	ErrUnsupportedCEMI = errors.New("cemi: unsupported message")

	// ErrInvalidFrame is returned when encoding a frame with inconsistent fields.
	ErrInvalidFrame = errors.New("cemi: invalid frame")
)
