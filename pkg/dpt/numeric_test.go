package dpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerFixtures(t *testing.T) {
	tests := []struct {
		key   string
		value float64
		raw   Array
	}{
		{"1byte_unsigned", 255, Array{0xFF}},
		{"percentU8", 42, Array{0x2A}},
		{"1byte_signed", -128, Array{0x80}},
		{"percentV8", 127, Array{0x7F}},
		{"counter_pulses", -1, Array{0xFF}},
		{"2byte_unsigned", 65535, Array{0xFF, 0xFF}},
		{"time_period_10msec", 1230, Array{0x00, 0x7B}},
		{"time_period_100msec", 6553500, Array{0xFF, 0xFF}},
		{"color_temperature", 2700, Array{0x0A, 0x8C}},
		{"2byte_signed", -32768, Array{0x80, 0x00}},
		{"percentV16", -1.5, Array{0xFF, 0x6A}},
		{"delta_time_10ms", -100, Array{0xFF, 0xF6}},
		{"4byte_unsigned", 4294967295, Array{0xFF, 0xFF, 0xFF, 0xFF}},
		{"volume_liquid_litre", 1000, Array{0x00, 0x00, 0x03, 0xE8}},
		{"4byte_signed", -2147483648, Array{0x80, 0x00, 0x00, 0x00}},
		{"flow_rate_m3h", 12.3456, Array{0x00, 0x01, 0xE2, 0x40}},
		{"active_energy", -1, Array{0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			tr := mustLookup(t, tt.key)
			p, err := tr.ToKNX(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, p)

			v, err := tr.FromKNX(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.value, v, 1e-9)
		})
	}
}

func TestIntegerBoundaries(t *testing.T) {
	for _, tr := range All() {
		n, ok := tr.(*Integer)
		if !ok {
			continue
		}
		d := n.Descriptor()
		t.Run(d.ValueType, func(t *testing.T) {
			for _, v := range []float64{d.Min, d.Max} {
				p, err := n.Encode(v)
				require.NoError(t, err, "encode %v", v)
				got, err := n.Decode(p)
				require.NoError(t, err)
				assert.InDelta(t, v, got, 1e-9)
			}
			_, err := n.Encode(d.Max + d.resolution())
			assert.ErrorIs(t, err, ErrConversion)
			_, err = n.Encode(d.Min - d.resolution())
			assert.ErrorIs(t, err, ErrConversion)

			_, err = n.Decode(make(Array, d.PayloadLength+1))
			assert.ErrorIs(t, err, ErrCouldNotParseTelegram)
			_, err = n.Decode(Bit(0))
			assert.ErrorIs(t, err, ErrCouldNotParseTelegram)
		})
	}
}

func TestIntegerDecodeOutOfRange(t *testing.T) {
	_, err := mustLookup(t, "tariff").FromKNX(Array{0xFF})
	assert.ErrorIs(t, err, ErrConversion)
}

func TestIntegerWrongType(t *testing.T) {
	_, err := mustLookup(t, "2byte_unsigned").ToKNX("12")
	assert.ErrorIs(t, err, ErrConversion)
}

func TestScaling(t *testing.T) {
	pct := mustLookup(t, "percent").(*Scaling)

	tests := []struct {
		value float64
		raw   byte
	}{
		{0, 0x00},
		{30, 0x4C},
		{99, 0xFC},
		{100, 0xFF},
	}
	for _, tt := range tests {
		p, err := pct.ToKNX(tt.value)
		require.NoError(t, err)
		assert.Equal(t, Array{tt.raw}, p, "value %v", tt.value)

		v, err := pct.Decode(p)
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
	}

	_, err := pct.ToKNX(101)
	assert.ErrorIs(t, err, ErrConversion)
	_, err = pct.ToKNX(-1)
	assert.ErrorIs(t, err, ErrConversion)

	angle := mustLookup(t, "5.003").(*Scaling)
	p, err := angle.Encode(360)
	require.NoError(t, err)
	assert.Equal(t, Array{0xFF}, p)
}

func TestInteger64(t *testing.T) {
	e := mustLookup(t, "active_energy_8byte").(*Integer64)

	p, err := e.ToKNX(int64(-1))
	require.NoError(t, err)
	assert.Equal(t, Array{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, p)

	v, err := e.Decode(Array{0, 0, 0, 0, 0, 0, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, int64(256), v)

	_, err = e.ToKNX(1.5)
	assert.ErrorIs(t, err, ErrConversion)
}
