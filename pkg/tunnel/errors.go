package tunnel

import (
	"errors"
	"time"
)

// Tunnel client errors.
var (
	// ErrNotConnected is returned when no tunnel connection is established.
	ErrNotConnected = errors.New("tunnel: not connected")

	// ErrAlreadyConnected is returned by Connect on an open tunnel.
	ErrAlreadyConnected = errors.New("tunnel: already connected")

	// ErrConnectFailed is returned when the server rejects the connect request.
	ErrConnectFailed = errors.New("tunnel: connect failed")

	// ErrTimeout is returned when the server does not respond in time.
	ErrTimeout = errors.New("tunnel: response timeout")

	// ErrAckStatus is returned when a tunnelling request is acknowledged
	// with an error status.
	ErrAckStatus = errors.New("tunnel: request not acknowledged")

	// ErrConnectionLost is returned when the stream closes while waiting.
	ErrConnectionLost = errors.New("tunnel: connection lost")

	// ErrNoConn is returned by NewClient without a stream.
	ErrNoConn = errors.New("tunnel: no connection")
)

const (
	// DefaultResponseTimeout bounds connect and disconnect exchanges.
	DefaultResponseTimeout = 10 * time.Second

	// DefaultAckTimeout bounds the wait for a tunnelling ack. A request is
	// repeated once before giving up.
	DefaultAckTimeout = time.Second

	sendAttempts = 2
)
