package secure

import (
	"testing"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Secure routing indication from KNX AN159.
const (
	routingKey     = "00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f"
	routingPlain   = "06 10 05 30 00 11 29 00 bc d0 11 59 0a de 01 00 81"
	routingWrapper = "06 10 09 50 00 37 00 00 c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe" +
		"b7 ee 7e 8a 1c 2f 7b ba be c7 75 fd 6e 10 d0 bc 4b" +
		"72 12 a0 3a aa e4 9d a8 56 89 77 4c 1d 2b 4d a4"
	routingSeq = 0xc0c1c2c3c4c5
)

func TestBlocks(t *testing.T) {
	sn := serial(t, "00fa12345678")
	b0 := Block0(routingSeq, sn, 0xaffe, 0x11)
	assert.Equal(t, unhex(t, "c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe 00 11"), b0[:])
	c0 := Counter0(routingSeq, sn, 0xaffe)
	assert.Equal(t, unhex(t, "c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe ff 00"), c0[:])
}

func TestEncryptFrame(t *testing.T) {
	got, err := EncryptFrame(unhex(t, routingKey), 0, unhex(t, routingPlain), routingSeq, serial(t, "00fa12345678"), 0xaffe)
	require.NoError(t, err)
	assert.Equal(t, unhex(t, routingWrapper), got)
}

func TestDecryptWrapper(t *testing.T) {
	f, _, err := knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)
	w := f.Body.(*knxip.SecureWrapper)

	plain, err := DecryptWrapper(unhex(t, routingKey), w)
	require.NoError(t, err)
	assert.Equal(t, unhex(t, routingPlain), plain)

	inner, err := decryptInner(unhex(t, routingKey), w)
	require.NoError(t, err)
	ind, ok := inner.Body.(*knxip.RoutingIndication)
	require.True(t, ok)
	assert.Equal(t, unhex(t, "29 00 bc d0 11 59 0a de 01 00 81"), ind.CEMI)
}

func TestDecryptWrapperTampered(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *knxip.SecureWrapper)
	}{
		{"payload bit", func(w *knxip.SecureWrapper) { w.EncryptedData[3] ^= 0x10 }},
		{"mac bit", func(w *knxip.SecureWrapper) { w.MAC[15] ^= 0x01 }},
		{"sequence", func(w *knxip.SecureWrapper) { w.Sequence++ }},
		{"serial", func(w *knxip.SecureWrapper) { w.Serial[5] ^= 0xFF }},
		{"tag", func(w *knxip.SecureWrapper) { w.MessageTag = 0 }},
		{"session", func(w *knxip.SecureWrapper) { w.SessionID = 1 }},
		{"truncated", func(w *knxip.SecureWrapper) { w.EncryptedData = w.EncryptedData[:16] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, err := knxip.Parse(unhex(t, routingWrapper))
			require.NoError(t, err)
			w := f.Body.(*knxip.SecureWrapper)
			tt.mutate(w)

			plain, err := DecryptWrapper(unhex(t, routingKey), w)
			assert.ErrorIs(t, err, ErrSecurityFailure)
			assert.Nil(t, plain)
		})
	}
}

func TestEncryptWrapperErrors(t *testing.T) {
	sn := serial(t, "00fa12345678")

	_, err := EncryptWrapper(make([]byte, 8), 0, nil, 0, sn, 0)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = EncryptWrapper(unhex(t, routingKey), 0, nil, MaxSequence, sn, 0)
	assert.ErrorIs(t, err, ErrSequenceExhausted)

	_, err = EncryptWrapper(unhex(t, routingKey), 0, make([]byte, knxip.MaxFrameSize), 0, sn, 0)
	assert.ErrorIs(t, err, knxip.ErrInvalidBody)
}
