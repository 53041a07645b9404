package knxip

import (
	"encoding/binary"
	"fmt"
)

// Secure body sizes.
const (
	SecureWrapperHeaderSize = 16
	SecureWrapperMinSize    = SecureWrapperHeaderSize + MACSize + 2
	SessionRequestSize      = HPAISize + PublicKeySize
	SessionResponseSize     = 2 + PublicKeySize + MACSize
	SessionAuthenticateSize = 2 + MACSize
	SessionStatusSize       = 2
	TimerNotifySize         = 14 + MACSize
)

// SecureWrapper carries an encrypted KNXnet/IP frame. Sequence is the 48
// bit sequence information; for multicast it is the group timer value.
type SecureWrapper struct {
	SessionID     uint16
	Sequence      uint64
	Serial        SerialNumber
	MessageTag    uint16
	EncryptedData []byte
	MAC           [MACSize]byte
}

func (*SecureWrapper) ServiceType() ServiceType { return ServiceSecureWrapper }
func (b *SecureWrapper) Size() int              { return SecureWrapperHeaderSize + len(b.EncryptedData) + MACSize }

func (b *SecureWrapper) EncodeTo(buf []byte) int {
	binary.BigEndian.PutUint16(buf, b.SessionID)
	PutUint48(buf[2:], b.Sequence)
	copy(buf[8:14], b.Serial[:])
	binary.BigEndian.PutUint16(buf[14:], b.MessageTag)
	off := SecureWrapperHeaderSize + copy(buf[SecureWrapperHeaderSize:], b.EncryptedData)
	return off + copy(buf[off:], b.MAC[:])
}

func (b *SecureWrapper) Decode(data []byte) error {
	if len(data) < SecureWrapperMinSize {
		return parseError("secure wrapper of %d bytes, need at least %d", len(data), SecureWrapperMinSize)
	}
	b.SessionID = binary.BigEndian.Uint16(data)
	b.Sequence = Uint48(data[2:])
	copy(b.Serial[:], data[8:14])
	b.MessageTag = binary.BigEndian.Uint16(data[14:])
	b.EncryptedData = append([]byte(nil), data[SecureWrapperHeaderSize:len(data)-MACSize]...)
	copy(b.MAC[:], data[len(data)-MACSize:])
	return nil
}

func (b *SecureWrapper) String() string {
	return fmt.Sprintf("<SecureWrapper session=%d seq=%d serial=%v tag=%#04x data=%d bytes>",
		b.SessionID, b.Sequence, b.Serial, b.MessageTag, len(b.EncryptedData))
}

// SessionRequest starts a secure session with the client's public value.
type SessionRequest struct {
	Control   HPAI
	PublicKey [PublicKeySize]byte
}

func (*SessionRequest) ServiceType() ServiceType { return ServiceSessionRequest }
func (*SessionRequest) Size() int                { return SessionRequestSize }
func (b *SessionRequest) Validate() error        { return b.Control.Validate() }

func (b *SessionRequest) EncodeTo(buf []byte) int {
	off := b.Control.EncodeTo(buf)
	return off + copy(buf[off:], b.PublicKey[:])
}

func (b *SessionRequest) Decode(data []byte) error {
	if len(data) != SessionRequestSize {
		return parseError("session request of %d bytes", len(data))
	}
	if err := b.Control.Decode(data); err != nil {
		return err
	}
	copy(b.PublicKey[:], data[HPAISize:])
	return nil
}

// SessionResponse assigns a session and carries the server's public value.
type SessionResponse struct {
	SessionID uint16
	PublicKey [PublicKeySize]byte
	MAC       [MACSize]byte
}

func (*SessionResponse) ServiceType() ServiceType { return ServiceSessionResponse }
func (*SessionResponse) Size() int                { return SessionResponseSize }

func (b *SessionResponse) EncodeTo(buf []byte) int {
	binary.BigEndian.PutUint16(buf, b.SessionID)
	copy(buf[2:], b.PublicKey[:])
	copy(buf[2+PublicKeySize:], b.MAC[:])
	return SessionResponseSize
}

func (b *SessionResponse) Decode(data []byte) error {
	if len(data) != SessionResponseSize {
		return parseError("session response of %d bytes", len(data))
	}
	b.SessionID = binary.BigEndian.Uint16(data)
	copy(b.PublicKey[:], data[2:])
	copy(b.MAC[:], data[2+PublicKeySize:])
	return nil
}

// SessionAuthenticate proves knowledge of the user password.
type SessionAuthenticate struct {
	UserID uint8
	MAC    [MACSize]byte
}

func (*SessionAuthenticate) ServiceType() ServiceType { return ServiceSessionAuthenticate }
func (*SessionAuthenticate) Size() int                { return SessionAuthenticateSize }

func (b *SessionAuthenticate) EncodeTo(buf []byte) int {
	buf[0] = 0
	buf[1] = b.UserID
	copy(buf[2:], b.MAC[:])
	return SessionAuthenticateSize
}

func (b *SessionAuthenticate) Decode(data []byte) error {
	if len(data) != SessionAuthenticateSize {
		return parseError("session authenticate of %d bytes", len(data))
	}
	b.UserID = data[1]
	copy(b.MAC[:], data[2:])
	return nil
}

// SessionStatus reports or changes the state of a secure session.
type SessionStatus struct {
	Status SessionStatusCode
}

func (*SessionStatus) ServiceType() ServiceType { return ServiceSessionStatus }
func (*SessionStatus) Size() int                { return SessionStatusSize }

func (b *SessionStatus) EncodeTo(buf []byte) int {
	buf[0] = byte(b.Status)
	buf[1] = 0
	return SessionStatusSize
}

func (b *SessionStatus) Decode(data []byte) error {
	if len(data) != SessionStatusSize {
		return parseError("session status of %d bytes", len(data))
	}
	b.Status = SessionStatusCode(data[0])
	return nil
}

func (b *SessionStatus) String() string { return fmt.Sprintf("<SessionStatus %v>", b.Status) }

// TimerNotify synchronises the multicast group timer.
type TimerNotify struct {
	Timer      uint64
	Serial     SerialNumber
	MessageTag uint16
	MAC        [MACSize]byte
}

func (*TimerNotify) ServiceType() ServiceType { return ServiceTimerNotify }
func (*TimerNotify) Size() int                { return TimerNotifySize }

func (b *TimerNotify) EncodeTo(buf []byte) int {
	PutUint48(buf, b.Timer)
	copy(buf[6:12], b.Serial[:])
	binary.BigEndian.PutUint16(buf[12:], b.MessageTag)
	copy(buf[14:], b.MAC[:])
	return TimerNotifySize
}

func (b *TimerNotify) Decode(data []byte) error {
	if len(data) != TimerNotifySize {
		return parseError("timer notify of %d bytes", len(data))
	}
	b.Timer = Uint48(data)
	copy(b.Serial[:], data[6:12])
	b.MessageTag = binary.BigEndian.Uint16(data[12:])
	copy(b.MAC[:], data[14:])
	return nil
}
