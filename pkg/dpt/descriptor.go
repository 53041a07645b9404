package dpt

import (
	"fmt"
	"math"
)

// Kind tells how a DPT's payload is carried.
type Kind uint8

const (
	// KindBit payloads travel in the low 6 bits of the APCI byte.
	KindBit Kind = iota
	// KindArray payloads are whole bytes after the APCI.
	KindArray
)

func (k Kind) String() string {
	if k == KindBit {
		return "bit"
	}
	return "array"
}

// Descriptor holds the static metadata of a datapoint type.
type Descriptor struct {
	// Main is the DPT main number. Unnumbered aliases use 0.
	Main uint16
	// Sub is the subtype number, nil for main-only entries.
	Sub *uint16
	// ValueType is the unique name of the DPT, e.g. "temperature".
	ValueType string
	Kind      Kind
	// PayloadLength is the number of bytes for KindArray and the bit width
	// for KindBit.
	PayloadLength int
	Min           float64
	Max           float64
	// Resolution is the value of one raw step. Zero means 1.
	Resolution float64
	Unit       string
}

func sub(n uint16) *uint16 { return &n }

// Number returns the DPT number, "9.001" or "9". Unnumbered aliases return "".
func (d Descriptor) Number() string {
	if d.Main == 0 {
		return ""
	}
	if d.Sub == nil {
		return fmt.Sprintf("%d", d.Main)
	}
	return fmt.Sprintf("%d.%03d", d.Main, *d.Sub)
}

func (d Descriptor) String() string {
	if n := d.Number(); n != "" {
		return fmt.Sprintf("DPT %s (%s)", n, d.ValueType)
	}
	return fmt.Sprintf("DPT %s", d.ValueType)
}

// InRange reports whether v lies within [Min, Max].
func (d Descriptor) InRange(v float64) bool {
	return !math.IsNaN(v) && v >= d.Min && v <= d.Max
}

func (d Descriptor) resolution() float64 {
	if d.Resolution == 0 {
		return 1
	}
	return d.Resolution
}

// bits validates a Bit payload against the descriptor and returns its value.
func (d Descriptor) bits(p Payload) (uint8, error) {
	b, ok := p.(Bit)
	if !ok {
		return 0, fmt.Errorf("%w: %s expects a bit payload, got %v", ErrCouldNotParseTelegram, d, p)
	}
	if uint(b) >= 1<<uint(d.PayloadLength) {
		return 0, fmt.Errorf("%w: %s expects %d bits, got value %d", ErrCouldNotParseTelegram, d, d.PayloadLength, uint8(b))
	}
	return uint8(b), nil
}

// bytes validates an Array payload against the descriptor and returns its data.
func (d Descriptor) bytes(p Payload) ([]byte, error) {
	a, ok := p.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an array payload, got %v", ErrCouldNotParseTelegram, d, p)
	}
	if len(a) != d.PayloadLength {
		return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", ErrCouldNotParseTelegram, d, d.PayloadLength, len(a))
	}
	return a, nil
}

func (d Descriptor) conversionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConversion, d, fmt.Sprintf(format, args...))
}

func (d Descriptor) rangeError(v any) error {
	return d.conversionError("value %v outside [%v, %v]", v, d.Min, d.Max)
}

// Transcoder converts between application values and payloads for one DPT.
type Transcoder interface {
	Descriptor() Descriptor
	// ToKNX encodes v. Errors wrap ErrConversion.
	ToKNX(v any) (Payload, error)
	// FromKNX decodes p. Kind and length mismatches wrap
	// ErrCouldNotParseTelegram, out of range values ErrConversion.
	FromKNX(p Payload) (any, error)
}

type base struct {
	desc Descriptor
}

// Descriptor implements Transcoder.
func (b base) Descriptor() Descriptor { return b.desc }
