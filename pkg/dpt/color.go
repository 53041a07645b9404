package dpt

import "math"

// RGB is a DPT 232.600 color.
type RGB struct {
	R, G, B uint8
}

// ColorRGB transcodes DPT 232.600. Values are RGB.
type ColorRGB struct {
	base
}

// Encode returns the payload for v.
func (c *ColorRGB) Encode(v RGB) Payload {
	return Array{v.R, v.G, v.B}
}

// Decode returns the color carried by p.
func (c *ColorRGB) Decode(p Payload) (RGB, error) {
	b, err := c.desc.bytes(p)
	if err != nil {
		return RGB{}, err
	}
	return RGB{R: b[0], G: b[1], B: b[2]}, nil
}

// ToKNX implements Transcoder.
func (c *ColorRGB) ToKNX(v any) (Payload, error) {
	if x, ok := v.(RGB); ok {
		return c.Encode(x), nil
	}
	return nil, c.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (c *ColorRGB) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}

// RGBW is a DPT 251.600 color. A nil channel is flagged invalid.
type RGBW struct {
	R, G, B, W *uint8
}

// ColorRGBW transcodes DPT 251.600. Values are RGBW.
type ColorRGBW struct {
	base
}

// Encode returns the payload for v.
func (c *ColorRGBW) Encode(v RGBW) Payload {
	out := make(Array, 6)
	for i, ch := range []*uint8{v.R, v.G, v.B, v.W} {
		if ch != nil {
			out[i] = *ch
			out[5] |= 1 << uint(3-i)
		}
	}
	return out
}

// Decode returns the color carried by p.
func (c *ColorRGBW) Decode(p Payload) (RGBW, error) {
	b, err := c.desc.bytes(p)
	if err != nil {
		return RGBW{}, err
	}
	var chans [4]*uint8
	for i := range chans {
		if b[5]&(1<<uint(3-i)) != 0 {
			v := b[i]
			chans[i] = &v
		}
	}
	return RGBW{R: chans[0], G: chans[1], B: chans[2], W: chans[3]}, nil
}

// ToKNX implements Transcoder.
func (c *ColorRGBW) ToKNX(v any) (Payload, error) {
	if x, ok := v.(RGBW); ok {
		return c.Encode(x), nil
	}
	return nil, c.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (c *ColorRGBW) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}

// ColorXYY is a DPT 242.600 CIE xyY color. X and Y are in [0, 1] and valid
// together.
type ColorXYY struct {
	X, Y       *float64
	Brightness *uint8
}

// XYY transcodes DPT 242.600. Values are ColorXYY.
type XYY struct {
	base
}

// Encode returns the payload for v.
func (c *XYY) Encode(v ColorXYY) (Payload, error) {
	out := make(Array, 6)
	if (v.X == nil) != (v.Y == nil) {
		return nil, c.desc.conversionError("x and y must be set together")
	}
	if v.X != nil {
		for i, axis := range []float64{*v.X, *v.Y} {
			if math.IsNaN(axis) || axis < 0 || axis > 1 {
				return nil, c.desc.conversionError("color axis %v outside [0, 1]", axis)
			}
			raw := uint16(math.RoundToEven(axis * 0xFFFF))
			out[2*i] = byte(raw >> 8)
			out[2*i+1] = byte(raw)
		}
		out[5] |= 0x02
	}
	if v.Brightness != nil {
		out[4] = *v.Brightness
		out[5] |= 0x01
	}
	return out, nil
}

// Decode returns the color carried by p. Axes are rounded to 5 digits.
func (c *XYY) Decode(p Payload) (ColorXYY, error) {
	b, err := c.desc.bytes(p)
	if err != nil {
		return ColorXYY{}, err
	}
	var v ColorXYY
	if b[5]&0x02 != 0 {
		x := roundDigits(float64(uint16(b[0])<<8|uint16(b[1]))/0xFFFF, 5)
		y := roundDigits(float64(uint16(b[2])<<8|uint16(b[3]))/0xFFFF, 5)
		v.X, v.Y = &x, &y
	}
	if b[5]&0x01 != 0 {
		br := b[4]
		v.Brightness = &br
	}
	return v, nil
}

// ToKNX implements Transcoder.
func (c *XYY) ToKNX(v any) (Payload, error) {
	if x, ok := v.(ColorXYY); ok {
		return c.Encode(x)
	}
	return nil, c.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (c *XYY) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}
