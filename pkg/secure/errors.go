package secure

import "errors"

// Secure layer errors.
var (
	// ErrSecurityFailure is returned when a MAC does not verify.
	ErrSecurityFailure = errors.New("secure: MAC verification failed")

	// ErrReplay is returned for a sequence or timer value that is not fresh.
	ErrReplay = errors.New("secure: replayed or stale sequence")

	// ErrSequenceExhausted is returned when the 48 bit sequence space is used up.
	// The session must be re-established when this occurs.
	ErrSequenceExhausted = errors.New("secure: sequence counter exhausted")

	// ErrAuthenticationFailed is returned when the server's session response
	// MAC does not match the device authentication code, or the server
	// rejects the user credentials.
	ErrAuthenticationFailed = errors.New("secure: authentication failed")

	// ErrSessionClosed is returned when using a closed or failed session.
	ErrSessionClosed = errors.New("secure: session closed")

	// ErrInvalidState is returned for an operation not allowed in the current state.
	ErrInvalidState = errors.New("secure: invalid session state")

	// ErrWrongSession is returned for a wrapper addressed to another session.
	ErrWrongSession = errors.New("secure: wrong session id")

	// ErrInvalidKey is returned when a key has invalid length.
	ErrInvalidKey = errors.New("secure: invalid key length")

	// ErrNotSecureWrapper is returned when unwrapping a frame that is not a
	// secure wrapper.
	ErrNotSecureWrapper = errors.New("secure: frame is not a secure wrapper")
)

// Protocol constants.
const (
	// MaxSequence is the exclusive upper bound of the 48 bit sequence space.
	MaxSequence uint64 = 1 << 48

	// MaxSecurityFailures is the number of consecutive MAC failures after
	// which a session is closed.
	MaxSecurityFailures = 3

	// TunnellingMessageTag is the message tag used inside unicast sessions.
	TunnellingMessageTag uint16 = 0x0000
)
