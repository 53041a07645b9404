package dpt

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Charset selects the 8-bit character encoding of a text DPT.
type Charset uint8

const (
	// ASCII allows code points 0..127.
	ASCII Charset = iota
	// Latin1 is ISO 8859-1.
	Latin1
)

func (c Charset) encode(s string) ([]byte, bool) {
	if c == ASCII {
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7F {
				return nil, false
			}
		}
		return []byte(s), true
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c Charset) decode(b []byte) (string, bool) {
	if c == ASCII {
		for _, x := range b {
			if x > 0x7F {
				return "", false
			}
		}
		return string(b), true
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// Char transcodes a single character (DPT 4). Values are one-character strings.
type Char struct {
	base
	charset Charset
}

func newChar(s uint16, valueType string, cs Charset) *Char {
	max := 255.0
	if cs == ASCII {
		max = 127
	}
	return &Char{base: base{Descriptor{Main: 4, Sub: sub(s), ValueType: valueType, Kind: KindArray, PayloadLength: 1, Max: max}}, charset: cs}
}

// Encode returns the payload for the one-character string v.
func (c *Char) Encode(v string) (Payload, error) {
	b, ok := c.charset.encode(v)
	if !ok || len(b) != 1 {
		return nil, c.desc.conversionError("cannot encode %q as one character", v)
	}
	return Array(b), nil
}

// Decode returns the character carried by p.
func (c *Char) Decode(p Payload) (string, error) {
	b, err := c.desc.bytes(p)
	if err != nil {
		return "", err
	}
	s, ok := c.charset.decode(b)
	if !ok {
		return "", c.desc.rangeError(b[0])
	}
	return s, nil
}

// ToKNX implements Transcoder.
func (c *Char) ToKNX(v any) (Payload, error) {
	s, ok := v.(string)
	if !ok {
		return nil, c.desc.conversionError("cannot encode %T %v", v, v)
	}
	return c.Encode(s)
}

// FromKNX implements Transcoder.
func (c *Char) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}

// StringLength is the fixed payload length of DPT 16.
const StringLength = 14

// String transcodes 14-byte NUL padded text (DPT 16).
type String struct {
	base
	charset Charset
}

func newString(s uint16, valueType string, cs Charset) *String {
	return &String{base: base{Descriptor{Main: 16, Sub: sub(s), ValueType: valueType, Kind: KindArray, PayloadLength: StringLength}}, charset: cs}
}

// Encode returns the payload for v, padded with NUL bytes.
func (t *String) Encode(v string) (Payload, error) {
	b, ok := t.charset.encode(v)
	if !ok {
		return nil, t.desc.conversionError("cannot encode %q", v)
	}
	if len(b) > StringLength {
		return nil, t.desc.conversionError("%q longer than %d bytes", v, StringLength)
	}
	out := make(Array, StringLength)
	copy(out, b)
	return out, nil
}

// Decode returns the text carried by p with NUL bytes removed.
func (t *String) Decode(p Payload) (string, error) {
	b, err := t.desc.bytes(p)
	if err != nil {
		return "", err
	}
	s, ok := t.charset.decode(b)
	if !ok {
		return "", t.desc.conversionError("invalid characters in % x", b)
	}
	return strings.ReplaceAll(s, "\x00", ""), nil
}

// ToKNX implements Transcoder.
func (t *String) ToKNX(v any) (Payload, error) {
	s, ok := v.(string)
	if !ok {
		return nil, t.desc.conversionError("cannot encode %T %v", v, v)
	}
	return t.Encode(s)
}

// FromKNX implements Transcoder.
func (t *String) FromKNX(p Payload) (any, error) {
	return t.Decode(p)
}
