package dpt

import (
	"encoding/binary"
	"math"
)

// Float16 transcodes the KNX 2-byte float (DPT 9): a sign bit, a 4-bit
// exponent and an 11-bit two's complement mantissa in units of 0.01.
// Values are float64.
type Float16 struct {
	base
}

func newFloat16(s uint16, valueType string, min, max float64, unit string) *Float16 {
	d := Descriptor{
		Main:          9,
		ValueType:     valueType,
		Kind:          KindArray,
		PayloadLength: 2,
		Min:           min,
		Max:           max,
		Resolution:    0.01,
		Unit:          unit,
	}
	if s != 0 {
		d.Sub = sub(s)
	}
	return &Float16{base{d}}
}

// Encode returns the payload for v.
func (f *Float16) Encode(v float64) (Payload, error) {
	if !f.desc.InRange(v) {
		return nil, f.desc.rangeError(v)
	}
	scaled := v * 100
	var exp uint8
	for {
		r := math.RoundToEven(scaled)
		if r >= -2048 && r <= 2047 {
			scaled = r
			break
		}
		exp++
		scaled /= 2
	}
	if exp > 15 {
		return nil, f.desc.rangeError(v)
	}
	mant := uint16(int16(scaled)) & 0x7FF
	msb := exp<<3 | uint8(mant>>8)
	if scaled < 0 {
		msb |= 0x80
	}
	return Array{msb, byte(mant)}, nil
}

// Decode returns the value carried by p.
func (f *Float16) Decode(p Payload) (float64, error) {
	b, err := f.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	exp := (b[0] & 0x78) >> 3
	sig := int32(b[0]&0x07)<<8 | int32(b[1])
	if b[0]&0x80 != 0 {
		sig -= 2048
	}
	v := float64(sig<<exp) / 100
	if !f.desc.InRange(v) {
		return 0, f.desc.rangeError(v)
	}
	return v, nil
}

// ToKNX implements Transcoder.
func (f *Float16) ToKNX(v any) (Payload, error) {
	x, ok := toFloat(v)
	if !ok {
		return nil, f.desc.conversionError("cannot encode %T %v", v, v)
	}
	return f.Encode(x)
}

// FromKNX implements Transcoder.
func (f *Float16) FromKNX(p Payload) (any, error) {
	return f.Decode(p)
}

// Float32 transcodes IEEE 754 single precision values (DPT 14).
// Decoded values are rounded to 7 significant digits. Values are float64.
type Float32 struct {
	base
}

func newFloat32(s *uint16, valueType, unit string) *Float32 {
	return &Float32{base{Descriptor{
		Main:          14,
		Sub:           s,
		ValueType:     valueType,
		Kind:          KindArray,
		PayloadLength: 4,
		Min:           -math.MaxFloat32,
		Max:           math.MaxFloat32,
		Unit:          unit,
	}}}
}

// Encode returns the payload for v. NaN and infinities are passed through.
func (f *Float32) Encode(v float64) (Payload, error) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) && !f.desc.InRange(v) {
		return nil, f.desc.rangeError(v)
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	return Array(b), nil
}

// Decode returns the value carried by p.
func (f *Float32) Decode(p Payload) (float64, error) {
	b, err := f.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	v := float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v, nil
	}
	digits := 7 - int(math.Ceil(math.Log10(math.Abs(v))))
	return roundDigits(v, digits), nil
}

// ToKNX implements Transcoder.
func (f *Float32) ToKNX(v any) (Payload, error) {
	x, ok := toFloat(v)
	if !ok {
		return nil, f.desc.conversionError("cannot encode %T %v", v, v)
	}
	return f.Encode(x)
}

// FromKNX implements Transcoder.
func (f *Float32) FromKNX(p Payload) (any, error) {
	return f.Decode(p)
}
