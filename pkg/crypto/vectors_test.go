package crypto

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// Test vectors from KNX AN159 (KNXnet/IP Secure application note).

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func block(t *testing.T, s string) [BlockSize]byte {
	t.Helper()
	var b [BlockSize]byte
	if n := copy(b[:], unhex(t, s)); n != BlockSize {
		t.Fatalf("block %q has %d bytes", s, n)
	}
	return b
}

var (
	routingKey       = "00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f"
	routingPayload   = "06 10 05 30 00 11 29 00 bc d0 11 59 0a de 01 00 81"
	routingBlock0    = "c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe 00 11"
	routingCounter0  = "c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe ff 00"
	routingMAC       = "bd 0a 29 4b 95 25 54 b2 35 39 20 4c 22 71 d2 6b"
	routingEncrypted = "b7 ee 7e 8a 1c 2f 7b ba be c7 75 fd 6e 10 d0 bc 4b"
	routingEncMAC    = "72 12 a0 3a aa e4 9d a8 56 89 77 4c 1d 2b 4d a4"
)

func TestCBCMAC(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		ad      string
		payload string
		block0  [BlockSize]byte
		want    string
	}{
		{
			name: "session response",
			key:  DeriveDeviceAuthenticationCode("trustme"),
			ad: "06 10 09 52 00 38 00 01 b7 52 be 24 64 59 26 0f" +
				"6b 0c 48 01 fb d5 a6 75 99 f8 3b 40 57 b3 ef 1e" +
				"79 e4 69 ac 17 23 4e 15",
			want: "da 3d c6 af 79 89 6a a6 ee 75 73 d6 99 50 c2 83",
		},
		{
			name:    "routing indication",
			key:     unhex(t, routingKey),
			ad:      "06 10 09 50 00 37 00 00",
			payload: routingPayload,
			block0:  block(t, routingBlock0),
			want:    routingMAC,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CBCMAC(tt.key, unhex(t, tt.ad), unhex(t, tt.payload), tt.block0)
			if err != nil {
				t.Fatalf("CBCMAC() error = %v", err)
			}
			if !bytes.Equal(got[:], unhex(t, tt.want)) {
				t.Errorf("CBCMAC() = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestEncryptCTR(t *testing.T) {
	var mac [MACSize]byte
	copy(mac[:], unhex(t, routingMAC))

	enc, encMAC, err := EncryptCTR(unhex(t, routingKey), block(t, routingCounter0), mac, unhex(t, routingPayload))
	if err != nil {
		t.Fatalf("EncryptCTR() error = %v", err)
	}
	if !bytes.Equal(enc, unhex(t, routingEncrypted)) {
		t.Errorf("encrypted payload = %x", enc)
	}
	if !bytes.Equal(encMAC[:], unhex(t, routingEncMAC)) {
		t.Errorf("encrypted MAC = %x", encMAC)
	}
}

func TestDecryptCTR(t *testing.T) {
	var encMAC [MACSize]byte
	copy(encMAC[:], unhex(t, routingEncMAC))

	plain, mac, err := DecryptCTR(unhex(t, routingKey), block(t, routingCounter0), encMAC, unhex(t, routingEncrypted))
	if err != nil {
		t.Fatalf("DecryptCTR() error = %v", err)
	}
	if !bytes.Equal(plain, unhex(t, routingPayload)) {
		t.Errorf("payload = %x", plain)
	}
	if !bytes.Equal(mac[:], unhex(t, routingMAC)) {
		t.Errorf("MAC = %x", mac)
	}
}

func TestPasswordDerivation(t *testing.T) {
	if got := DeriveDeviceAuthenticationCode("trustme"); !bytes.Equal(got, unhex(t, "e1 58 e4 01 20 47 bd 6c c4 1a af bc 5c 04 c1 fc")) {
		t.Errorf("DeriveDeviceAuthenticationCode() = %x", got)
	}
	if got := DeriveUserPassword("secret"); !bytes.Equal(got, unhex(t, "03 fc ed b6 66 60 25 1e c8 1a 1a 71 69 01 69 6a")) {
		t.Errorf("DeriveUserPassword() = %x", got)
	}
}

func TestLatin1(t *testing.T) {
	if got := latin1("Küche"); !bytes.Equal(got, []byte{'K', 0xFC, 'c', 'h', 'e'}) {
		t.Errorf("latin1() = %x", got)
	}
}

func TestInvalidKey(t *testing.T) {
	if _, err := CBCMAC(make([]byte, 15), nil, nil, [BlockSize]byte{}); err != ErrInvalidKeySize {
		t.Errorf("CBCMAC() error = %v, want %v", err, ErrInvalidKeySize)
	}
	if _, _, err := EncryptCTR(make([]byte, 32), [BlockSize]byte{}, [MACSize]byte{}, nil); err != ErrInvalidKeySize {
		t.Errorf("EncryptCTR() error = %v, want %v", err, ErrInvalidKeySize)
	}
}
