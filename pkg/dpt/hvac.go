package dpt

import (
	"fmt"
	"strings"
)

// HVACMode is the DPT 20.102 HVAC operation mode.
type HVACMode uint8

// HVAC operation modes.
const (
	HVACModeAuto HVACMode = iota
	HVACModeComfort
	HVACModeStandby
	HVACModeNight
	HVACModeFrostProtection
)

var hvacModeNames = map[HVACMode]string{
	HVACModeAuto:            "Auto",
	HVACModeComfort:         "Comfort",
	HVACModeStandby:         "Standby",
	HVACModeNight:           "Night",
	HVACModeFrostProtection: "Frost Protection",
}

func (m HVACMode) String() string {
	if s, ok := hvacModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("HVACMode(%d)", uint8(m))
}

// HVACControllerMode is the DPT 20.105 HVAC controller mode.
type HVACControllerMode uint8

// HVAC controller modes. Raw values 12, 13 and 15..19 are unassigned.
const (
	ControllerAuto          HVACControllerMode = 0
	ControllerHeat          HVACControllerMode = 1
	ControllerMorningWarmup HVACControllerMode = 2
	ControllerCool          HVACControllerMode = 3
	ControllerNightPurge    HVACControllerMode = 4
	ControllerPrecool       HVACControllerMode = 5
	ControllerOff           HVACControllerMode = 6
	ControllerTest          HVACControllerMode = 7
	ControllerEmergencyHeat HVACControllerMode = 8
	ControllerFanOnly       HVACControllerMode = 9
	ControllerFreeCool      HVACControllerMode = 10
	ControllerIce           HVACControllerMode = 11
	ControllerDry           HVACControllerMode = 14
	ControllerNoDem         HVACControllerMode = 20
)

var controllerModeNames = map[HVACControllerMode]string{
	ControllerAuto:          "Auto",
	ControllerHeat:          "Heat",
	ControllerMorningWarmup: "Morning Warmup",
	ControllerCool:          "Cool",
	ControllerNightPurge:    "Night Purge",
	ControllerPrecool:       "Precool",
	ControllerOff:           "Off",
	ControllerTest:          "Test",
	ControllerEmergencyHeat: "Emergency Heat",
	ControllerFanOnly:       "Fan only",
	ControllerFreeCool:      "Free Cool",
	ControllerIce:           "Ice",
	ControllerDry:           "Dry",
	ControllerNoDem:         "NoDem",
}

func (m HVACControllerMode) String() string {
	if s, ok := controllerModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("HVACControllerMode(%d)", uint8(m))
}

// Enum transcodes 1-byte enumerations with a fixed set of valid values.
// Values are T; names are accepted on encode, case-insensitively.
type Enum[T ~uint8] struct {
	base
	names map[T]string
}

func newEnum[T ~uint8](s uint16, valueType string, names map[T]string) *Enum[T] {
	var hi T
	for v := range names {
		if v > hi {
			hi = v
		}
	}
	return &Enum[T]{
		base:  base{Descriptor{Main: 20, Sub: sub(s), ValueType: valueType, Kind: KindArray, PayloadLength: 1, Max: float64(hi)}},
		names: names,
	}
}

// Encode returns the payload for v.
func (e *Enum[T]) Encode(v T) (Payload, error) {
	if _, ok := e.names[v]; !ok {
		return nil, e.desc.conversionError("unknown value %d", uint8(v))
	}
	return Array{uint8(v)}, nil
}

// Decode returns the value carried by p.
func (e *Enum[T]) Decode(p Payload) (T, error) {
	b, err := e.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	v := T(b[0])
	if _, ok := e.names[v]; !ok {
		return 0, e.desc.conversionError("unknown value %d", b[0])
	}
	return v, nil
}

// Parse returns the value named name.
func (e *Enum[T]) Parse(name string) (T, bool) {
	for v, n := range e.names {
		if strings.EqualFold(n, name) || strings.EqualFold(strings.ReplaceAll(n, " ", "_"), name) {
			return v, true
		}
	}
	return 0, false
}

// ToKNX implements Transcoder.
func (e *Enum[T]) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case T:
		return e.Encode(x)
	case string:
		if t, ok := e.Parse(x); ok {
			return e.Encode(t)
		}
		return nil, e.desc.conversionError("unknown name %q", x)
	}
	if n, ok := toInt64(v); ok && n >= 0 && n <= 0xFF {
		return e.Encode(T(n))
	}
	return nil, e.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (e *Enum[T]) FromKNX(p Payload) (any, error) {
	return e.Decode(p)
}

// HVACStatus is the Eberle status byte (DPT 20.60102).
type HVACStatus struct {
	Mode       HVACMode
	DewPoint   bool
	Heat       bool // false means cooling
	Inactive   bool
	FrostAlarm bool
}

// HVACStatus bits.
const (
	hvacComfort    = 0x80
	hvacStandby    = 0x40
	hvacNight      = 0x20
	hvacFrost      = 0x10
	hvacDewPoint   = 0x08
	hvacHeat       = 0x04
	hvacInactive   = 0x02
	hvacFrostAlarm = 0x01
)

// HVACStatusByte transcodes DPT 20.60102. Values are HVACStatus.
type HVACStatusByte struct {
	base
}

// Encode returns the payload for v. Auto mode sets no mode bit.
func (h *HVACStatusByte) Encode(v HVACStatus) (Payload, error) {
	var raw uint8
	switch v.Mode {
	case HVACModeAuto:
	case HVACModeComfort:
		raw |= hvacComfort
	case HVACModeStandby:
		raw |= hvacStandby
	case HVACModeNight:
		raw |= hvacNight
	case HVACModeFrostProtection:
		raw |= hvacFrost
	default:
		return nil, h.desc.conversionError("unknown mode %v", v.Mode)
	}
	if v.DewPoint {
		raw |= hvacDewPoint
	}
	if v.Heat {
		raw |= hvacHeat
	}
	if v.Inactive {
		raw |= hvacInactive
	}
	if v.FrostAlarm {
		raw |= hvacFrostAlarm
	}
	return Array{raw}, nil
}

// Decode returns the status carried by p. The highest set mode bit wins.
func (h *HVACStatusByte) Decode(p Payload) (HVACStatus, error) {
	b, err := h.desc.bytes(p)
	if err != nil {
		return HVACStatus{}, err
	}
	raw := b[0]
	var mode HVACMode
	switch {
	case raw&hvacComfort != 0:
		mode = HVACModeComfort
	case raw&hvacStandby != 0:
		mode = HVACModeStandby
	case raw&hvacNight != 0:
		mode = HVACModeNight
	case raw&hvacFrost != 0:
		mode = HVACModeFrostProtection
	default:
		mode = HVACModeAuto
	}
	return HVACStatus{
		Mode:       mode,
		DewPoint:   raw&hvacDewPoint != 0,
		Heat:       raw&hvacHeat != 0,
		Inactive:   raw&hvacInactive != 0,
		FrostAlarm: raw&hvacFrostAlarm != 0,
	}, nil
}

// ToKNX implements Transcoder.
func (h *HVACStatusByte) ToKNX(v any) (Payload, error) {
	if s, ok := v.(HVACStatus); ok {
		return h.Encode(s)
	}
	return nil, h.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (h *HVACStatusByte) FromKNX(p Payload) (any, error) {
	return h.Decode(p)
}
