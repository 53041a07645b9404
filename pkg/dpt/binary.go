package dpt

import "fmt"

// Boolean transcodes 1-bit DPT 1 values. Values are bool.
type Boolean struct {
	base
	// Labels names the false and true states, e.g. {"Off", "On"}.
	Labels [2]string
}

func newBoolean(s uint16, valueType, off, on string) *Boolean {
	d := Descriptor{Main: 1, ValueType: valueType, Kind: KindBit, PayloadLength: 1, Max: 1}
	if s != 0 {
		d.Sub = sub(s)
	}
	return &Boolean{base: base{d}, Labels: [2]string{off, on}}
}

// Encode returns the payload for v.
func (b *Boolean) Encode(v bool) Payload {
	if v {
		return Bit(1)
	}
	return Bit(0)
}

// Decode returns the value carried by p.
func (b *Boolean) Decode(p Payload) (bool, error) {
	raw, err := b.desc.bits(p)
	if err != nil {
		return false, err
	}
	return raw == 1, nil
}

// Label returns the state name for v.
func (b *Boolean) Label(v bool) string {
	if v {
		return b.Labels[1]
	}
	return b.Labels[0]
}

// ToKNX accepts bool, the integers 0 and 1, and the state labels.
func (b *Boolean) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case bool:
		return b.Encode(x), nil
	case string:
		switch x {
		case b.Labels[0]:
			return Bit(0), nil
		case b.Labels[1]:
			return Bit(1), nil
		}
		return nil, b.desc.conversionError("unknown state %q", x)
	}
	if n, ok := toInt64(v); ok && (n == 0 || n == 1) {
		return b.Encode(n == 1), nil
	}
	return nil, b.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (b *Boolean) FromKNX(p Payload) (any, error) {
	return b.Decode(p)
}

// ControlValue is a DPT 2 value: a boolean with a priority control flag.
type ControlValue struct {
	Control bool
	Value   bool
}

// Controlled transcodes 2-bit DPT 2 values. Values are ControlValue.
type Controlled struct {
	base
}

func newControlled(s uint16, valueType string) *Controlled {
	return &Controlled{base{Descriptor{Main: 2, Sub: sub(s), ValueType: valueType, Kind: KindBit, PayloadLength: 2, Max: 3}}}
}

// Encode returns the payload for v.
func (c *Controlled) Encode(v ControlValue) Payload {
	var raw uint8
	if v.Control {
		raw |= 0x02
	}
	if v.Value {
		raw |= 0x01
	}
	return Bit(raw)
}

// Decode returns the value carried by p.
func (c *Controlled) Decode(p Payload) (ControlValue, error) {
	raw, err := c.desc.bits(p)
	if err != nil {
		return ControlValue{}, err
	}
	return ControlValue{Control: raw&0x02 != 0, Value: raw&0x01 != 0}, nil
}

// ToKNX implements Transcoder.
func (c *Controlled) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case ControlValue:
		return c.Encode(x), nil
	case *ControlValue:
		if x != nil {
			return c.Encode(*x), nil
		}
	}
	return nil, c.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (c *Controlled) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}

// 4-bit control field layout.
const (
	controlMask  = 0x08
	stepCodeMask = 0x07
)

// ControlStep is a DPT 3 value. Control selects the direction: increase
// (dimming) or down (blinds) when true. StepCode 0 means stop, 1..7 selects
// an interval of 100/2^(StepCode-1) percent.
type ControlStep struct {
	Control  bool
	StepCode uint8
}

// StepControl transcodes DPT 3.007 and 3.008 into ControlStep values.
type StepControl struct {
	base
}

func newStepControl(main uint16, s *uint16, valueType string) *StepControl {
	return &StepControl{base{Descriptor{Main: main, Sub: s, ValueType: valueType, Kind: KindBit, PayloadLength: 4, Max: 15}}}
}

// Encode returns the payload for v.
func (s *StepControl) Encode(v ControlStep) (Payload, error) {
	if v.StepCode > stepCodeMask {
		return nil, s.desc.conversionError("step code %d outside [0, 7]", v.StepCode)
	}
	raw := v.StepCode
	if v.Control {
		raw |= controlMask
	}
	return Bit(raw), nil
}

// Decode returns the value carried by p.
func (s *StepControl) Decode(p Payload) (ControlStep, error) {
	raw, err := s.desc.bits(p)
	if err != nil {
		return ControlStep{}, err
	}
	return ControlStep{Control: raw&controlMask != 0, StepCode: raw & stepCodeMask}, nil
}

// ToKNX implements Transcoder.
func (s *StepControl) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case ControlStep:
		return s.Encode(x)
	case *ControlStep:
		if x != nil {
			return s.Encode(*x)
		}
	}
	return nil, s.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (s *StepControl) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}

// stepIncrements maps a step code to the percentage it moves by.
var stepIncrements = [8]int{0, 100, 50, 25, 12, 6, 3, 1}

// Stepwise transcodes a DPT 3 payload as a signed percentage increment in
// [-100, 100]. Increments are rounded down to the next interval boundary.
type Stepwise struct {
	StepControl
}

func newStepwise(valueType string) *Stepwise {
	s := newStepControl(0, nil, valueType)
	s.desc.Min, s.desc.Max = -100, 100
	s.desc.Unit = "%"
	return &Stepwise{*s}
}

// Encode returns the payload for an increment.
func (s *Stepwise) Encode(increment int) (Payload, error) {
	if increment < -100 || increment > 100 {
		return nil, s.desc.rangeError(increment)
	}
	abs := increment
	if abs < 0 {
		abs = -abs
	}
	var code uint8
	for i := 1; i < len(stepIncrements); i++ {
		if abs >= stepIncrements[i] {
			code = uint8(i)
			break
		}
	}
	return s.StepControl.Encode(ControlStep{Control: increment > 0, StepCode: code})
}

// Decode returns the increment carried by p.
func (s *Stepwise) Decode(p Payload) (int, error) {
	v, err := s.StepControl.Decode(p)
	if err != nil {
		return 0, err
	}
	inc := stepIncrements[v.StepCode]
	if !v.Control {
		inc = -inc
	}
	return inc, nil
}

// ToKNX implements Transcoder.
func (s *Stepwise) ToKNX(v any) (Payload, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, s.desc.conversionError("cannot encode %T %v", v, v)
	}
	if n < -100 || n > 100 {
		return nil, s.desc.rangeError(n)
	}
	return s.Encode(int(n))
}

// FromKNX implements Transcoder.
func (s *Stepwise) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}

// Direction is the value of a start/stop DPT 3 alias.
type Direction uint8

// Directions. For blinds Decrease means up and Increase means down.
const (
	DirectionDecrease Direction = iota
	DirectionIncrease
	DirectionStop
)

func (d Direction) String() string {
	switch d {
	case DirectionDecrease:
		return "Decrease"
	case DirectionIncrease:
		return "Increase"
	case DirectionStop:
		return "Stop"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// StartStop transcodes a DPT 3 payload as a Direction.
type StartStop struct {
	StepControl
}

func newStartStop(valueType string) *StartStop {
	return &StartStop{*newStepControl(0, nil, valueType)}
}

// Encode returns the payload for d.
func (s *StartStop) Encode(d Direction) (Payload, error) {
	switch d {
	case DirectionIncrease:
		return s.StepControl.Encode(ControlStep{Control: true, StepCode: 1})
	case DirectionDecrease:
		return s.StepControl.Encode(ControlStep{StepCode: 1})
	case DirectionStop:
		return s.StepControl.Encode(ControlStep{})
	}
	return nil, s.desc.conversionError("unknown direction %v", d)
}

// Decode returns the direction carried by p.
func (s *StartStop) Decode(p Payload) (Direction, error) {
	v, err := s.StepControl.Decode(p)
	if err != nil {
		return 0, err
	}
	switch {
	case v.StepCode == 0:
		return DirectionStop, nil
	case !v.Control:
		return DirectionDecrease, nil
	}
	return DirectionIncrease, nil
}

// ToKNX implements Transcoder.
func (s *StartStop) ToKNX(v any) (Payload, error) {
	if d, ok := v.(Direction); ok {
		return s.Encode(d)
	}
	return nil, s.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (s *StartStop) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}
