// AES-128 CBC-MAC as used by KNX IP Secure (AN159). It is the
// authentication half of CCM with a caller supplied block 0: the MAC is
// the last block of a zero IV CBC encryption over
//
//	block0 || len(additionalData) (2 bytes) || additionalData || payload
//
// zero padded to a multiple of the block size.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

const (
	// KeySize is the AES-128 key size in bytes.
	KeySize = 16

	// MACSize is the size of a KNX IP Secure MAC.
	MACSize = 16

	// BlockSize is the AES block size.
	BlockSize = aes.BlockSize
)

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return aes.NewCipher(key)
}

// CBCMAC computes the MAC of additionalData and payload under key, starting
// from block0. additionalData must be shorter than 2^16 bytes.
func CBCMAC(key, additionalData, payload []byte, block0 [BlockSize]byte) ([MACSize]byte, error) {
	var mac [MACSize]byte
	block, err := newCipher(key)
	if err != nil {
		return mac, err
	}

	// Chain state starts as E(block0) with a zero IV.
	block.Encrypt(mac[:], block0[:])

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(additionalData)))

	var buf [BlockSize]byte
	fill := 0
	absorb := func(data []byte) {
		for len(data) > 0 {
			n := copy(buf[fill:], data)
			fill += n
			data = data[n:]
			if fill == BlockSize {
				subtle.XORBytes(mac[:], mac[:], buf[:])
				block.Encrypt(mac[:], mac[:])
				fill = 0
			}
		}
	}
	absorb(lenPrefix[:])
	absorb(additionalData)
	absorb(payload)
	if fill > 0 {
		clear(buf[fill:])
		subtle.XORBytes(mac[:], mac[:], buf[:])
		block.Encrypt(mac[:], mac[:])
	}
	return mac, nil
}

// EqualMAC compares two MACs in constant time.
func EqualMAC(a, b [MACSize]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
