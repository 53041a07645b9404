package dpt

import "math"

// Integer transcodes fixed-size big-endian integer DPTs (5, 6, 7, 8, 12, 13).
// Values are float64 in value units: raw * Resolution.
type Integer struct {
	base
	size   int
	signed bool
}

func newInteger(main uint16, s *uint16, valueType string, size int, signed bool, res float64, unit string) *Integer {
	lo, hi := rawLimits(size, signed)
	if res == 0 {
		res = 1
	}
	d := Descriptor{
		Main:          main,
		Sub:           s,
		ValueType:     valueType,
		Kind:          KindArray,
		PayloadLength: size,
		Min:           roundDigits(float64(lo)*res, resolutionDigits(res)),
		Max:           roundDigits(float64(hi)*res, resolutionDigits(res)),
		Resolution:    res,
		Unit:          unit,
	}
	return &Integer{base: base{d}, size: size, signed: signed}
}

func rawLimits(size int, signed bool) (int64, int64) {
	bits := uint(size * 8)
	if signed {
		return -(1 << (bits - 1)), 1<<(bits-1) - 1
	}
	return 0, 1<<bits - 1
}

// withMax narrows the upper bound of the value range.
func (n *Integer) withMax(max float64) *Integer {
	n.desc.Max = max
	return n
}

// Encode returns the payload for v.
func (n *Integer) Encode(v float64) (Payload, error) {
	if !n.desc.InRange(v) {
		return nil, n.desc.rangeError(v)
	}
	raw := int64(math.RoundToEven(v / n.desc.resolution()))
	lo, hi := rawLimits(n.size, n.signed)
	if raw < lo || raw > hi {
		return nil, n.desc.rangeError(v)
	}
	return Array(putUint(n.size, uint64(raw))), nil
}

// Decode returns the value carried by p.
func (n *Integer) Decode(p Payload) (float64, error) {
	b, err := n.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	raw := getUint(b)
	var v float64
	if n.signed {
		v = float64(signExtend(raw, n.size))
	} else {
		v = float64(raw)
	}
	res := n.desc.resolution()
	v = roundDigits(v*res, resolutionDigits(res))
	if !n.desc.InRange(v) {
		return 0, n.desc.rangeError(v)
	}
	return v, nil
}

// ToKNX implements Transcoder.
func (n *Integer) ToKNX(v any) (Payload, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, n.desc.conversionError("cannot encode %T %v", v, v)
	}
	return n.Encode(f)
}

// FromKNX implements Transcoder.
func (n *Integer) FromKNX(p Payload) (any, error) {
	return n.Decode(p)
}

// Integer64 transcodes 8-byte signed DPT 29 values. Values are int64.
type Integer64 struct {
	base
}

func newInteger64(s *uint16, valueType, unit string) *Integer64 {
	return &Integer64{base{Descriptor{
		Main:          29,
		Sub:           s,
		ValueType:     valueType,
		Kind:          KindArray,
		PayloadLength: 8,
		Min:           math.MinInt64,
		Max:           math.MaxInt64,
		Unit:          unit,
	}}}
}

// Encode returns the payload for v.
func (n *Integer64) Encode(v int64) Payload {
	return Array(putUint(8, uint64(v)))
}

// Decode returns the value carried by p.
func (n *Integer64) Decode(p Payload) (int64, error) {
	b, err := n.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	return int64(getUint(b)), nil
}

// ToKNX implements Transcoder.
func (n *Integer64) ToKNX(v any) (Payload, error) {
	i, ok := toInt64(v)
	if !ok {
		return nil, n.desc.conversionError("cannot encode %T %v", v, v)
	}
	return n.Encode(i), nil
}

// FromKNX implements Transcoder.
func (n *Integer64) FromKNX(p Payload) (any, error) {
	return n.Decode(p)
}

// Scaling maps [Min, Max] linearly onto one byte (DPT 5.001, 5.003).
// Values are float64.
type Scaling struct {
	base
}

func newScaling(s uint16, valueType string, max float64, unit string) *Scaling {
	return &Scaling{base{Descriptor{
		Main:          5,
		Sub:           sub(s),
		ValueType:     valueType,
		Kind:          KindArray,
		PayloadLength: 1,
		Max:           max,
		Unit:          unit,
	}}}
}

// Encode returns the payload for v.
func (s *Scaling) Encode(v float64) (Payload, error) {
	if !s.desc.InRange(v) {
		return nil, s.desc.rangeError(v)
	}
	delta := s.desc.Max - s.desc.Min
	raw := math.RoundToEven((v - s.desc.Min) / delta * 255)
	return Array{byte(raw)}, nil
}

// Decode returns the value carried by p.
func (s *Scaling) Decode(p Payload) (float64, error) {
	b, err := s.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	delta := s.desc.Max - s.desc.Min
	return math.RoundToEven(float64(b[0])/255*delta) + s.desc.Min, nil
}

// ToKNX implements Transcoder.
func (s *Scaling) ToKNX(v any) (Payload, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, s.desc.conversionError("cannot encode %T %v", v, v)
	}
	return s.Encode(f)
}

// FromKNX implements Transcoder.
func (s *Scaling) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}

func putUint(size int, v uint64) []byte {
	b := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func getUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func signExtend(raw uint64, size int) int64 {
	shift := uint(64 - size*8)
	return int64(raw<<shift) >> shift
}
