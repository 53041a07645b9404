// Package secure implements KNXnet/IP Secure framing on top of pkg/knxip.
//
// It provides the SecureWrapper codec, the client side of the unicast
// session handshake (SESSION_REQUEST / SESSION_RESPONSE /
// SESSION_AUTHENTICATE / SESSION_STATUS) and the timer based group context
// used for secure routing. Nothing here performs I/O: callers feed received
// frames in and send the frames that come back out.
package secure

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle is a new session that has not sent a request yet.
	StateIdle State = iota

	// StateRequested means a SESSION_REQUEST was produced and the session
	// waits for the SESSION_RESPONSE.
	StateRequested

	// StateAuthenticating means SESSION_AUTHENTICATE was produced and the
	// session waits for the server's SESSION_STATUS.
	StateAuthenticating

	// StateEstablished means the server accepted the credentials.
	StateEstablished

	// StateClosed is a session closed by either side or by timeout.
	StateClosed

	// StateFailed is a session whose handshake failed.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequested:
		return "Requested"
	case StateAuthenticating:
		return "Authenticating"
	case StateEstablished:
		return "Established"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true if no further traffic is possible in this state.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}
