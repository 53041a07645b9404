package dpt

import (
	"bytes"
	"fmt"
)

// BitMask selects the significant bits of a Bit payload.
const BitMask = 0x3F

// Payload is the application payload of a group telegram.
// It is either a Bit or an Array.
type Payload interface {
	// Len is the number of payload bytes following the APCI.
	// A Bit payload is carried inside the APCI byte and has length 0.
	Len() int
	String() string
	isPayload()
}

// Bit is a payload of at most 6 bits carried in the low bits of the APCI byte.
type Bit uint8

// NewBit returns a Bit payload with the value masked to 6 bits.
func NewBit(v uint8) Bit {
	return Bit(v & BitMask)
}

// Len implements Payload.
func (Bit) Len() int { return 0 }

func (b Bit) String() string { return fmt.Sprintf("Bit(%d)", uint8(b)) }

func (Bit) isPayload() {}

// Array is a payload of whole bytes following the APCI.
type Array []byte

// Len implements Payload.
func (a Array) Len() int { return len(a) }

func (a Array) String() string { return fmt.Sprintf("Array(% x)", []byte(a)) }

func (Array) isPayload() {}

// isEmpty reports whether p carries no information: nil, Bit(0) or an empty Array.
func isEmpty(p Payload) bool {
	switch v := p.(type) {
	case nil:
		return true
	case Bit:
		return v == 0
	case Array:
		return len(v) == 0
	}
	return false
}

// PayloadEqual compares two payloads. A zero Bit and an empty Array are
// considered equal; otherwise payloads of different kinds never are.
func PayloadEqual(a, b Payload) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	switch av := a.(type) {
	case Bit:
		bv, ok := b.(Bit)
		return ok && av&BitMask == bv&BitMask
	case Array:
		bv, ok := b.(Array)
		return ok && bytes.Equal(av, bv)
	}
	return false
}
