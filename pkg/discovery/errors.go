package discovery

import "errors"

var (
	// ErrClosed is returned by operations on a closed Resolver.
	ErrClosed = errors.New("discovery: resolver closed")

	// ErrTimeout is returned when a lookup sees no matching gateway in time.
	ErrTimeout = errors.New("discovery: lookup timed out")
)
