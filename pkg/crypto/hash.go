// Package crypto provides the cryptographic primitives of KNX IP Secure:
// the AES-128 CBC-MAC and CTR construction used by SECURE_WRAPPER and the
// session handshake, PBKDF2 password derivation, and X25519 key agreement.
//
// All functions are pure and safe for concurrent use.
package crypto

import (
	"crypto/sha256"
	"errors"
)

// SHA256LenBytes is the SHA-256 output length in bytes.
const SHA256LenBytes = 32

// Errors
var (
	ErrInvalidKeySize    = errors.New("crypto: invalid key size, must be 16 bytes")
	ErrInvalidPublicKey  = errors.New("crypto: invalid X25519 public key")
	ErrInvalidPrivateKey = errors.New("crypto: invalid X25519 private key")
	ErrLengthMismatch    = errors.New("crypto: operands differ in length")
)

// SHA256 computes the SHA-256 digest of message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// XOR returns a ^ b. Both operands must have the same length.
func XOR(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, ErrLengthMismatch
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}
