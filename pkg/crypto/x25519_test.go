package crypto

import (
	"bytes"
	"errors"
	"testing"
)

const (
	clientPrivate = "b8 fa bd 62 66 5d 8b 9e 8a 9d 8b 1f 4b ca 42 c8 c2 78 9a 61 10 f5 0e 9d d7 85 b3 ed e8 83 f3 78"
	clientPublic  = "0a a2 27 b4 fd 7a 32 31 9b a9 96 0a c0 36 ce 0e 5c 45 07 b5 ae 55 16 1f 10 78 b1 dc fb 3c b6 31"
	serverPublic  = "bd f0 99 90 99 23 14 3e f0 a5 de 0b 3b e3 68 7b c5 bd 3c f5 f9 e6 f9 01 69 9c d8 70 ec 1f f8 24"
)

func TestKeyPairFromPrivate(t *testing.T) {
	kp, err := KeyPairFromPrivate(unhex(t, clientPrivate))
	if err != nil {
		t.Fatal(err)
	}
	pub := kp.PublicKey()
	if !bytes.Equal(pub[:], unhex(t, clientPublic)) {
		t.Errorf("PublicKey() = %x", pub)
	}

	shared, err := kp.SharedSecret(unhex(t, serverPublic))
	if err != nil {
		t.Fatal(err)
	}
	if len(SessionKey(shared)) != KeySize {
		t.Errorf("SessionKey() length = %d", len(SessionKey(shared)))
	}
}

func TestSharedSecretAgreement(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if a.PublicKey() == b.PublicKey() {
		t.Fatal("two generated key pairs share a public key")
	}
	pa, pb := a.PublicKey(), b.PublicKey()
	s1, err := a.SharedSecret(pb[:])
	if err != nil {
		t.Fatal(err)
	}
	s2, err := b.SharedSecret(pa[:])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s1, s2) {
		t.Error("shared secrets differ")
	}
}

func TestSharedSecretRejectsInvalid(t *testing.T) {
	kp, err := KeyPairFromPrivate(unhex(t, clientPrivate))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kp.SharedSecret(make([]byte, 31)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("short key error = %v", err)
	}
	// The zero point has low order and yields an all zero secret.
	if _, err := kp.SharedSecret(make([]byte, 32)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("low order key error = %v", err)
	}
	if _, err := KeyPairFromPrivate(make([]byte, 16)); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("short private key error = %v", err)
	}
}

func TestXOR(t *testing.T) {
	got, err := XOR([]byte{0x0F, 0xF0}, []byte{0xFF, 0xFF})
	if err != nil || !bytes.Equal(got, []byte{0xF0, 0x0F}) {
		t.Errorf("XOR() = %x, %v", got, err)
	}
	if _, err := XOR([]byte{1}, nil); err != ErrLengthMismatch {
		t.Errorf("XOR() error = %v", err)
	}
}
