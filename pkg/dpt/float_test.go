package dpt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat16Fixtures(t *testing.T) {
	f := mustLookup(t, "2byte_float").(*Float16)

	tests := []struct {
		value float64
		raw   Array
	}{
		{0, Array{0x00, 0x00}},
		{-30, Array{0x8A, 0x24}},
		{20.48, Array{0x0C, 0x00}},
		{21.5, Array{0x0C, 0x33}},
		{-1, Array{0x87, 0x9C}},
		{maxFloat16, Array{0x7F, 0xFF}},
		{-671088.64, Array{0xF8, 0x00}},
	}
	for _, tt := range tests {
		p, err := f.Encode(tt.value)
		require.NoError(t, err, "encode %v", tt.value)
		assert.Equal(t, tt.raw, p, "encode %v", tt.value)

		v, err := f.Decode(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
	}
}

func TestFloat16Range(t *testing.T) {
	temp := mustLookup(t, "temperature")

	_, err := temp.ToKNX(-273.5)
	assert.ErrorIs(t, err, ErrConversion)
	_, err = temp.ToKNX(math.NaN())
	assert.ErrorIs(t, err, ErrConversion)

	// 670760.96 is representable but above the subtype's maximum
	_, err = temp.FromKNX(Array{0x7F, 0xFF})
	assert.ErrorIs(t, err, ErrConversion)

	_, err = temp.FromKNX(Array{0x0C})
	assert.ErrorIs(t, err, ErrCouldNotParseTelegram)
}

func TestFloat16RoundTripWithinResolution(t *testing.T) {
	f := mustLookup(t, "2byte_float").(*Float16)
	for _, v := range []float64{-273, -0.01, 0.01, 19.99, 100.5, 1234.56, 45000, -99999} {
		p, err := f.Encode(v)
		require.NoError(t, err)
		got, err := f.Decode(p)
		require.NoError(t, err)

		exp := float64(p.(Array)[0]&0x78) / 8
		assert.InDelta(t, v, got, math.Pow(2, exp)*0.01/2+1e-9, "value %v", v)
	}
}

func TestFloat32(t *testing.T) {
	f := mustLookup(t, "14.056").(*Float32)

	p, err := f.ToKNX(1.5)
	require.NoError(t, err)
	assert.Equal(t, Array{0x3F, 0xC0, 0x00, 0x00}, p)

	v, err := f.Decode(Array{0x3D, 0xCC, 0xCC, 0xCD})
	require.NoError(t, err)
	assert.Equal(t, 0.1, v)

	v, err = f.Decode(Array{0x47, 0xF1, 0x20, 0x6A})
	require.NoError(t, err)
	assert.Equal(t, 123456.8, v)

	v, err = f.Decode(Array{0x7F, 0xC0, 0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = f.ToKNX(1e39)
	assert.ErrorIs(t, err, ErrConversion)

	_, err = f.FromKNX(Array{0, 0})
	assert.ErrorIs(t, err, ErrCouldNotParseTelegram)
}
