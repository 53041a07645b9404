// AES-128 CTR as used by KNX IP Secure. One keystream starting at
// counter 0 first encrypts the 16 byte MAC, then the payload from
// counter 0 + 1 on. The counter block is incremented as a 128 bit big
// endian integer.

package crypto

import (
	"crypto/cipher"
)

// EncryptCTR encrypts mac with counter0 and payload with the following
// counters. It returns the encrypted payload and the encrypted MAC.
func EncryptCTR(key []byte, counter0 [BlockSize]byte, mac [MACSize]byte, payload []byte) ([]byte, [MACSize]byte, error) {
	var encMAC [MACSize]byte
	block, err := newCipher(key)
	if err != nil {
		return nil, encMAC, err
	}
	stream := cipher.NewCTR(block, counter0[:])
	stream.XORKeyStream(encMAC[:], mac[:])
	out := make([]byte, len(payload))
	stream.XORKeyStream(out, payload)
	return out, encMAC, nil
}

// DecryptCTR reverses EncryptCTR. It returns the plaintext payload and the
// decrypted MAC, which the caller must compare against a recomputed
// CBCMAC before using the payload.
func DecryptCTR(key []byte, counter0 [BlockSize]byte, encMAC [MACSize]byte, encPayload []byte) ([]byte, [MACSize]byte, error) {
	// CTR is an involution.
	return EncryptCTR(key, counter0, encMAC, encPayload)
}
