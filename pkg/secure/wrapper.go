package secure

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/knxip/pkg/crypto"
	"github.com/backkem/knxip/pkg/knxip"
)

// Block0 builds the first CBC-MAC block:
// sequence (6) || serial (6) || message tag (2) || payload length (2).
func Block0(seq uint64, serial knxip.SerialNumber, tag uint16, length uint16) [crypto.BlockSize]byte {
	var b [crypto.BlockSize]byte
	knxip.PutUint48(b[:], seq)
	copy(b[6:12], serial[:])
	binary.BigEndian.PutUint16(b[12:], tag)
	binary.BigEndian.PutUint16(b[14:], length)
	return b
}

// Counter0 builds the initial CTR block:
// sequence (6) || serial (6) || message tag (2) || 0xFF 0x00.
func Counter0(seq uint64, serial knxip.SerialNumber, tag uint16) [crypto.BlockSize]byte {
	b := Block0(seq, serial, tag, 0)
	b[14] = 0xFF
	return b
}

// handshakeCounter0 is the CTR block used for the session response and
// authenticate MACs.
var handshakeCounter0 = [crypto.BlockSize]byte{14: 0xFF}

// wrapperAdditionalData returns the KNXnet/IP header of a wrapper carrying n
// encrypted bytes followed by the session id.
func wrapperAdditionalData(sessionID uint16, n int) []byte {
	h := knxip.Header{
		ServiceType: knxip.ServiceSecureWrapper,
		TotalLength: uint16(knxip.HeaderLength + knxip.SecureWrapperHeaderSize + n + crypto.MACSize),
	}
	ad := make([]byte, knxip.HeaderLength+2)
	h.EncodeTo(ad)
	binary.BigEndian.PutUint16(ad[knxip.HeaderLength:], sessionID)
	return ad
}

// EncryptWrapper encrypts an encoded KNXnet/IP frame into a SecureWrapper.
func EncryptWrapper(key []byte, sessionID uint16, frame []byte, seq uint64, serial knxip.SerialNumber, tag uint16) (*knxip.SecureWrapper, error) {
	if len(key) != crypto.KeySize {
		return nil, ErrInvalidKey
	}
	if seq >= MaxSequence {
		return nil, ErrSequenceExhausted
	}
	if knxip.HeaderLength+knxip.SecureWrapperHeaderSize+len(frame)+crypto.MACSize > knxip.MaxFrameSize {
		return nil, fmt.Errorf("%w: inner frame of %d bytes", knxip.ErrInvalidBody, len(frame))
	}

	ad := wrapperAdditionalData(sessionID, len(frame))
	mac, err := crypto.CBCMAC(key, ad, frame, Block0(seq, serial, tag, uint16(len(frame))))
	if err != nil {
		return nil, err
	}
	enc, encMAC, err := crypto.EncryptCTR(key, Counter0(seq, serial, tag), mac, frame)
	if err != nil {
		return nil, err
	}

	return &knxip.SecureWrapper{
		SessionID:     sessionID,
		Sequence:      seq,
		Serial:        serial,
		MessageTag:    tag,
		EncryptedData: enc,
		MAC:           encMAC,
	}, nil
}

// EncryptFrame is EncryptWrapper taking and returning encoded frames.
func EncryptFrame(key []byte, sessionID uint16, frame []byte, seq uint64, serial knxip.SerialNumber, tag uint16) ([]byte, error) {
	w, err := EncryptWrapper(key, sessionID, frame, seq, serial, tag)
	if err != nil {
		return nil, err
	}
	return knxip.NewFrame(w).Encode()
}

// DecryptWrapper verifies and decrypts a SecureWrapper, returning the
// encoded inner frame. On a MAC mismatch it returns ErrSecurityFailure and
// no plaintext.
func DecryptWrapper(key []byte, w *knxip.SecureWrapper) ([]byte, error) {
	if len(key) != crypto.KeySize {
		return nil, ErrInvalidKey
	}

	plain, mac, err := crypto.DecryptCTR(key, Counter0(w.Sequence, w.Serial, w.MessageTag), w.MAC, w.EncryptedData)
	if err != nil {
		return nil, err
	}
	ad := wrapperAdditionalData(w.SessionID, len(w.EncryptedData))
	want, err := crypto.CBCMAC(key, ad, plain, Block0(w.Sequence, w.Serial, w.MessageTag, uint16(len(plain))))
	if err != nil {
		return nil, err
	}
	if !crypto.EqualMAC(mac, want) {
		return nil, ErrSecurityFailure
	}
	return plain, nil
}

// decryptInner decrypts w and parses the inner frame.
func decryptInner(key []byte, w *knxip.SecureWrapper) (knxip.Frame, error) {
	plain, err := DecryptWrapper(key, w)
	if err != nil {
		return knxip.Frame{}, err
	}
	inner, n, err := knxip.Parse(plain)
	if err != nil {
		return knxip.Frame{}, err
	}
	if n != len(plain) {
		return knxip.Frame{}, fmt.Errorf("%w: %d trailing bytes in secure wrapper", knxip.ErrCouldNotParseKNXIP, len(plain)-n)
	}
	return inner, nil
}
