package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the size of X25519 scalars and public values.
const X25519KeySize = curve25519.PointSize

// KeyPair is an X25519 key pair for the secure session handshake.
type KeyPair struct {
	private [X25519KeySize]byte
	public  [X25519KeySize]byte
}

// GenerateKeyPair generates a fresh key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate X25519 key: %w", err)
	}
	return KeyPairFromPrivate(priv.Bytes())
}

// KeyPairFromPrivate builds a key pair from a 32 byte private scalar.
func KeyPairFromPrivate(private []byte) (*KeyPair, error) {
	if len(private) != X25519KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPrivateKey, len(private))
	}
	kp := &KeyPair{}
	copy(kp.private[:], private)
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	copy(kp.public[:], pub)
	return kp, nil
}

// PublicKey returns the public value sent in SESSION_REQUEST.
func (kp *KeyPair) PublicKey() [X25519KeySize]byte {
	return kp.public
}

// SharedSecret computes the X25519 shared secret with peer. A low order
// peer value, which yields an all zero secret, is rejected.
func (kp *KeyPair) SharedSecret(peer []byte) ([]byte, error) {
	if len(peer) != X25519KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(peer))
	}
	secret, err := curve25519.X25519(kp.private[:], peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return secret, nil
}

// Zeroize clears the private scalar.
func (kp *KeyPair) Zeroize() {
	clear(kp.private[:])
}

// SessionKey derives the 16 byte session key from an ECDH shared secret.
func SessionKey(shared []byte) []byte {
	sum := SHA256(shared)
	return sum[:KeySize]
}
