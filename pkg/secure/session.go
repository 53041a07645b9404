package secure

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/backkem/knxip/pkg/crypto"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/pion/logging"
)

// SessionConfig configures the client side of a unicast secure session.
type SessionConfig struct {
	// UserID is the tunnelling user, 1 for the management user.
	UserID uint8

	// UserPassword is derived with PBKDF2 unless UserPasswordHash is set.
	UserPassword     string
	UserPasswordHash []byte

	// DeviceAuthenticationPassword enables verification of the server's
	// session response. Ignored when DeviceAuthenticationCode is set.
	// If both are empty the server is not authenticated.
	DeviceAuthenticationPassword string
	DeviceAuthenticationCode     []byte

	// SerialNumber and MessageTag are sent in every wrapper.
	SerialNumber knxip.SerialNumber
	MessageTag   uint16

	// KeyPair is the ephemeral X25519 key pair. A fresh pair is generated
	// if nil.
	KeyPair *crypto.KeyPair

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session is the client role of a KNXnet/IP secure session. It performs no
// I/O: each method consumes a received body or produces one to send.
type Session struct {
	userID     uint8
	userKey    []byte
	deviceCode []byte
	serial     knxip.SerialNumber
	tag        uint16
	keyPair    *crypto.KeyPair

	state      State
	sessionID  uint16
	sessionKey []byte
	failures   int

	sequence  *SequenceCounter
	reception *ReceptionState

	log logging.LeveledLogger
	mu  sync.Mutex
}

// NewSession creates a session in StateIdle.
func NewSession(config SessionConfig) (*Session, error) {
	s := &Session{
		userID:    config.UserID,
		serial:    config.SerialNumber,
		tag:       config.MessageTag,
		keyPair:   config.KeyPair,
		sequence:  NewSequenceCounter(),
		reception: NewReceptionState(),
	}

	switch {
	case config.UserPasswordHash != nil:
		if len(config.UserPasswordHash) != crypto.KeySize {
			return nil, fmt.Errorf("%w: user password hash", ErrInvalidKey)
		}
		s.userKey = append([]byte(nil), config.UserPasswordHash...)
	default:
		s.userKey = crypto.DeriveUserPassword(config.UserPassword)
	}

	switch {
	case config.DeviceAuthenticationCode != nil:
		if len(config.DeviceAuthenticationCode) != crypto.KeySize {
			return nil, fmt.Errorf("%w: device authentication code", ErrInvalidKey)
		}
		s.deviceCode = append([]byte(nil), config.DeviceAuthenticationCode...)
	case config.DeviceAuthenticationPassword != "":
		s.deviceCode = crypto.DeriveDeviceAuthenticationCode(config.DeviceAuthenticationPassword)
	}

	if s.keyPair == nil {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		s.keyPair = kp
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("knx-secure")
	}

	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the id assigned by the server, 0 before the response.
func (s *Session) SessionID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Request produces the SESSION_REQUEST carrying the client public key.
func (s *Session) Request(control knxip.HPAI) (*knxip.SessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, fmt.Errorf("%w: request in state %v", ErrInvalidState, s.state)
	}
	s.setState(StateRequested)
	return &knxip.SessionRequest{Control: control, PublicKey: s.keyPair.PublicKey()}, nil
}

// HandleResponse processes the SESSION_RESPONSE and produces the
// SESSION_AUTHENTICATE body. The returned body must be sent through Wrap.
func (s *Session) HandleResponse(resp *knxip.SessionResponse) (*knxip.SessionAuthenticate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRequested {
		return nil, fmt.Errorf("%w: session response in state %v", ErrInvalidState, s.state)
	}

	clientPub := s.keyPair.PublicKey()
	pubXOR, err := crypto.XOR(clientPub[:], resp.PublicKey[:])
	if err != nil {
		return nil, err
	}

	if s.deviceCode != nil {
		if err := s.verifyResponse(resp, pubXOR); err != nil {
			s.fail()
			return nil, err
		}
	} else if s.log != nil {
		s.log.Debug("no device authentication code, server not verified")
	}

	shared, err := s.keyPair.SharedSecret(resp.PublicKey[:])
	if err != nil {
		s.fail()
		return nil, err
	}
	s.sessionKey = crypto.SessionKey(shared)
	clear(shared)
	s.keyPair.Zeroize()
	s.sessionID = resp.SessionID

	// Authenticate MAC covers the header, the user id and the public values.
	ad := make([]byte, 0, knxip.HeaderLength+2+len(pubXOR))
	ad = append(ad, knxip.Header{ServiceType: knxip.ServiceSessionAuthenticate, TotalLength: knxip.HeaderLength + knxip.SessionAuthenticateSize}.Encode()...)
	ad = append(ad, 0, s.userID)
	ad = append(ad, pubXOR...)
	mac, err := crypto.CBCMAC(s.userKey, ad, nil, [crypto.BlockSize]byte{})
	if err != nil {
		return nil, err
	}
	_, encMAC, err := crypto.EncryptCTR(s.userKey, handshakeCounter0, mac, nil)
	if err != nil {
		return nil, err
	}

	s.setState(StateAuthenticating)
	return &knxip.SessionAuthenticate{UserID: s.userID, MAC: encMAC}, nil
}

func (s *Session) verifyResponse(resp *knxip.SessionResponse, pubXOR []byte) error {
	ad := make([]byte, 0, knxip.HeaderLength+2+len(pubXOR))
	ad = append(ad, knxip.Header{ServiceType: knxip.ServiceSessionResponse, TotalLength: knxip.HeaderLength + knxip.SessionResponseSize}.Encode()...)
	ad = binary.BigEndian.AppendUint16(ad, resp.SessionID)
	ad = append(ad, pubXOR...)

	want, err := crypto.CBCMAC(s.deviceCode, ad, nil, [crypto.BlockSize]byte{})
	if err != nil {
		return err
	}
	_, got, err := crypto.DecryptCTR(s.deviceCode, handshakeCounter0, resp.MAC, nil)
	if err != nil {
		return err
	}
	if !crypto.EqualMAC(got, want) {
		if s.log != nil {
			s.log.Warnf("session response MAC mismatch for session %d", resp.SessionID)
		}
		return fmt.Errorf("%w: session response MAC mismatch", ErrAuthenticationFailed)
	}
	return nil
}

// Wrap encrypts frame into a SecureWrapper frame, consuming one sequence number.
func (s *Session) Wrap(frame knxip.Frame) (knxip.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKeyed(); err != nil {
		return knxip.Frame{}, err
	}
	data, err := frame.Encode()
	if err != nil {
		return knxip.Frame{}, err
	}
	seq, err := s.sequence.Next()
	if err != nil {
		return knxip.Frame{}, err
	}
	w, err := EncryptWrapper(s.sessionKey, s.sessionID, data, seq, s.serial, s.tag)
	if err != nil {
		return knxip.Frame{}, err
	}
	return knxip.NewFrame(w), nil
}

// Unwrap verifies and decrypts a received SecureWrapper frame. The peer
// sequence is accepted only after the MAC verified. After
// MaxSecurityFailures consecutive MAC failures the session is closed.
func (s *Session) Unwrap(frame knxip.Frame) (knxip.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := frame.Body.(*knxip.SecureWrapper)
	if !ok {
		return knxip.Frame{}, ErrNotSecureWrapper
	}
	if err := s.checkKeyed(); err != nil {
		return knxip.Frame{}, err
	}
	if w.SessionID != s.sessionID {
		return knxip.Frame{}, fmt.Errorf("%w: got %d, want %d", ErrWrongSession, w.SessionID, s.sessionID)
	}
	if err := s.reception.Check(w.Sequence); err != nil {
		if s.log != nil {
			s.log.Warnf("discarding wrapper with sequence %d", w.Sequence)
		}
		return knxip.Frame{}, err
	}

	inner, err := decryptInner(s.sessionKey, w)
	if err == ErrSecurityFailure {
		s.failures++
		if s.log != nil {
			s.log.Warnf("MAC verification failed (%d/%d)", s.failures, MaxSecurityFailures)
		}
		if s.failures >= MaxSecurityFailures {
			s.close(StateClosed)
		}
		return knxip.Frame{}, err
	}
	if err != nil {
		return knxip.Frame{}, err
	}

	s.failures = 0
	if err := s.reception.Accept(w.Sequence); err != nil {
		return knxip.Frame{}, err
	}
	return inner, nil
}

// HandleStatus applies a SESSION_STATUS received from the server.
// Authentication failures return ErrAuthenticationFailed, a close or
// timeout returns ErrSessionClosed.
func (s *Session) HandleStatus(status *knxip.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch status.Status {
	case knxip.AuthenticationSuccess:
		if s.state != StateAuthenticating {
			return fmt.Errorf("%w: authentication success in state %v", ErrInvalidState, s.state)
		}
		s.setState(StateEstablished)
		return nil
	case knxip.AuthenticationFailed, knxip.Unauthenticated:
		s.close(StateFailed)
		return fmt.Errorf("%w: server reported %v", ErrAuthenticationFailed, status.Status)
	case knxip.SessionTimeout, knxip.SessionClose:
		s.close(StateClosed)
		return fmt.Errorf("%w: server reported %v", ErrSessionClosed, status.Status)
	case knxip.SessionKeepalive:
		return nil
	default:
		return fmt.Errorf("%w: unknown session status %v", ErrInvalidState, status.Status)
	}
}

// Keepalive returns a wrapped SESSION_STATUS(KEEPALIVE) frame.
func (s *Session) Keepalive() (knxip.Frame, error) {
	return s.Wrap(knxip.NewFrame(&knxip.SessionStatus{Status: knxip.SessionKeepalive}))
}

// Close returns the wrapped SESSION_STATUS(CLOSE) frame to send and closes
// the session, zeroizing its keys. Closing a session that was never keyed
// returns ErrSessionClosed and only releases the keys.
func (s *Session) Close() (knxip.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKeyed(); err != nil {
		s.close(StateClosed)
		return knxip.Frame{}, ErrSessionClosed
	}

	data, err := knxip.NewFrame(&knxip.SessionStatus{Status: knxip.SessionClose}).Encode()
	if err != nil {
		return knxip.Frame{}, err
	}
	seq, err := s.sequence.Next()
	if err != nil {
		s.close(StateClosed)
		return knxip.Frame{}, err
	}
	w, err := EncryptWrapper(s.sessionKey, s.sessionID, data, seq, s.serial, s.tag)
	s.close(StateClosed)
	if err != nil {
		return knxip.Frame{}, err
	}
	return knxip.NewFrame(w), nil
}

// checkKeyed returns an error unless a session key is available.
func (s *Session) checkKeyed() error {
	switch s.state {
	case StateAuthenticating, StateEstablished:
		return nil
	case StateClosed, StateFailed:
		return ErrSessionClosed
	default:
		return fmt.Errorf("%w: no session key in state %v", ErrInvalidState, s.state)
	}
}

func (s *Session) fail() {
	s.close(StateFailed)
}

// close moves to a terminal state and zeroizes key material.
func (s *Session) close(state State) {
	clear(s.sessionKey)
	clear(s.userKey)
	clear(s.deviceCode)
	s.sessionKey = nil
	s.keyPair.Zeroize()
	s.setState(state)
}

func (s *Session) setState(state State) {
	if s.log != nil && s.state != state {
		s.log.Debugf("session %d: %v -> %v", s.sessionID, s.state, state)
	}
	s.state = state
}
