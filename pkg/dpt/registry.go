package dpt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const maxFloat16 = 670760.96

func u8(mainNum, s uint16, valueType string, max float64, unit string) *Integer {
	return newInteger(mainNum, sub(s), valueType, 1, false, 1, unit).withMax(max)
}

func ints(mainNum uint16, s *uint16, valueType string, size int, signed bool, res float64, unit string) *Integer {
	return newInteger(mainNum, s, valueType, size, signed, res, unit)
}

func f16(s uint16, valueType string, min, max float64, unit string) *Float16 {
	return newFloat16(s, valueType, min, max, unit)
}

func f32(s uint16, valueType, unit string) *Float32 {
	return newFloat32(sub(s), valueType, unit)
}

// registry is the static table of every supported DPT.
var registry = []Transcoder{
	// DPT 1
	newBoolean(0, "binary", "Off", "On"),
	newBoolean(1, "switch", "Off", "On"),
	newBoolean(2, "bool", "False", "True"),
	newBoolean(3, "enable", "Disable", "Enable"),
	newBoolean(4, "ramp", "No ramp", "Ramp"),
	newBoolean(5, "alarm", "No alarm", "Alarm"),
	newBoolean(6, "binary_value", "Low", "High"),
	newBoolean(7, "step", "Decrease", "Increase"),
	newBoolean(8, "up_down", "Up", "Down"),
	newBoolean(9, "open_close", "Open", "Close"),
	newBoolean(10, "start", "Stop", "Start"),
	newBoolean(11, "state", "Inactive", "Active"),
	newBoolean(12, "invert", "Not inverted", "Inverted"),
	newBoolean(13, "dim_send_style", "Start/stop", "Cyclically"),
	newBoolean(14, "input_source", "Fixed", "Calculated"),
	newBoolean(15, "reset", "No action", "Reset"),
	newBoolean(16, "ack", "No action", "Acknowledge"),
	newBoolean(17, "trigger", "Trigger", "Trigger"),
	newBoolean(18, "occupancy", "Not occupied", "Occupied"),
	newBoolean(19, "window_door", "Closed", "Open"),
	newBoolean(21, "logical_function", "OR", "AND"),
	newBoolean(22, "scene_ab", "Scene A", "Scene B"),
	newBoolean(23, "shutter_blinds_mode", "Only move up/down", "Move up/down + step-stop"),
	newBoolean(24, "day_night", "Day", "Night"),
	newBoolean(100, "heat_cool", "Cooling", "Heating"),

	// DPT 2
	newControlled(1, "switch_control"),
	newControlled(2, "bool_control"),
	newControlled(3, "enable_control"),
	newControlled(4, "ramp_control"),
	newControlled(5, "alarm_control"),
	newControlled(6, "binary_value_control"),
	newControlled(7, "step_control"),
	newControlled(8, "direction1_control"),
	newControlled(9, "direction2_control"),
	newControlled(10, "start_control"),
	newControlled(11, "state_control"),
	newControlled(12, "invert_control"),

	// DPT 3
	newStepControl(3, sub(7), "control_dimming"),
	newStepControl(3, sub(8), "control_blinds"),
	newStepwise("stepwise_dimming"),
	newStepwise("stepwise_blinds"),
	newStartStop("startstop_dimming"),
	newStartStop("startstop_blinds"),

	// DPT 4
	newChar(1, "char_ascii", ASCII),
	newChar(2, "char_8859_1", Latin1),

	// DPT 5
	ints(5, nil, "1byte_unsigned", 1, false, 1, ""),
	newScaling(1, "percent", 100, "%"),
	newScaling(3, "angle", 360, "°"),
	u8(5, 4, "percentU8", 255, "%"),
	u8(5, 5, "decimal_factor", 255, ""),
	u8(5, 6, "tariff", 254, ""),
	u8(5, 10, "pulse", 255, "counter pulses"),

	// DPT 6
	ints(6, nil, "1byte_signed", 1, true, 1, ""),
	ints(6, sub(1), "percentV8", 1, true, 1, "%"),
	ints(6, sub(10), "counter_pulses", 1, true, 1, "counter pulses"),

	// DPT 7
	ints(7, nil, "2byte_unsigned", 2, false, 1, ""),
	ints(7, sub(1), "pulse_2byte", 2, false, 1, "pulses"),
	ints(7, sub(2), "time_period_msec", 2, false, 1, "ms"),
	ints(7, sub(3), "time_period_10msec", 2, false, 10, "ms"),
	ints(7, sub(4), "time_period_100msec", 2, false, 100, "ms"),
	ints(7, sub(5), "time_period_sec", 2, false, 1, "s"),
	ints(7, sub(6), "time_period_min", 2, false, 1, "min"),
	ints(7, sub(7), "time_period_hrs", 2, false, 1, "h"),
	ints(7, sub(11), "length_mm", 2, false, 1, "mm"),
	ints(7, sub(12), "current", 2, false, 1, "mA"),
	ints(7, sub(13), "brightness", 2, false, 1, "lx"),
	ints(7, sub(600), "color_temperature", 2, false, 1, "K"),

	// DPT 8
	ints(8, nil, "2byte_signed", 2, true, 1, ""),
	ints(8, sub(1), "pulse_2byte_signed", 2, true, 1, "pulses"),
	ints(8, sub(2), "delta_time_ms", 2, true, 1, "ms"),
	ints(8, sub(3), "delta_time_10ms", 2, true, 10, "ms"),
	ints(8, sub(4), "delta_time_100ms", 2, true, 100, "ms"),
	ints(8, sub(5), "delta_time_sec", 2, true, 1, "s"),
	ints(8, sub(6), "delta_time_min", 2, true, 1, "min"),
	ints(8, sub(7), "delta_time_hrs", 2, true, 1, "h"),
	ints(8, sub(10), "percentV16", 2, true, 0.01, "%"),
	ints(8, sub(11), "rotation_angle", 2, true, 1, "°"),

	// DPT 9
	f16(0, "2byte_float", -671088.64, maxFloat16, ""),
	f16(1, "temperature", -273, 670760, "°C"),
	f16(2, "temperature_difference_2byte", -670760, 670760, "K"),
	f16(3, "temperature_a", -670760, 670760, "K/h"),
	f16(4, "illuminance", 0, 670760, "lx"),
	f16(5, "wind_speed_ms", 0, 670760, "m/s"),
	f16(6, "pressure_2byte", 0, 670760, "Pa"),
	f16(7, "humidity", 0, 670760, "%"),
	f16(8, "ppm", -671088.64, maxFloat16, "ppm"),
	f16(10, "time_1", -670760, 670760, "s"),
	f16(11, "time_2", -670760, 670760, "ms"),
	f16(20, "voltage", -671088.64, maxFloat16, "mV"),
	f16(21, "curr", -671088.64, maxFloat16, "mA"),
	f16(22, "power_density", -671088.64, maxFloat16, "W/m²"),
	f16(23, "kelvin_per_percent", -671088.64, maxFloat16, "K/%"),
	f16(24, "power_2byte", -671088.64, maxFloat16, "kW"),
	f16(25, "volume_flow", -671088.64, maxFloat16, "l/h"),
	f16(26, "rain_amount", -671088.64, maxFloat16, "l/m²"),
	f16(27, "temperature_f", -459.6, 670760, "°F"),
	f16(28, "wind_speed_kmh", 0, 670760, "km/h"),
	f16(999, "enthalpy", -671088.64, maxFloat16, "H"),

	// DPT 10, 11
	&TimeOfDay{base{Descriptor{Main: 10, Sub: sub(1), ValueType: "time", Kind: KindArray, PayloadLength: 3}}},
	&CalendarDate{base{Descriptor{Main: 11, Sub: sub(1), ValueType: "date", Kind: KindArray, PayloadLength: 3}}},

	// DPT 12
	ints(12, nil, "4byte_unsigned", 4, false, 1, ""),
	ints(12, sub(1), "pulse_4_ucount", 4, false, 1, "counter pulses"),
	ints(12, sub(100), "long_time_period_sec", 4, false, 1, "s"),
	ints(12, sub(101), "long_time_period_min", 4, false, 1, "min"),
	ints(12, sub(102), "long_time_period_hrs", 4, false, 1, "h"),
	ints(12, sub(1200), "volume_liquid_litre", 4, false, 1, "l"),
	ints(12, sub(1201), "volume_m3", 4, false, 1, "m³"),

	// DPT 13
	ints(13, nil, "4byte_signed", 4, true, 1, ""),
	ints(13, sub(1), "pulse_4byte", 4, true, 1, "pulses"),
	ints(13, sub(2), "flow_rate_m3h", 4, true, 0.0001, "m³/h"),
	ints(13, sub(10), "active_energy", 4, true, 1, "Wh"),
	ints(13, sub(11), "apparant_energy", 4, true, 1, "VAh"),
	ints(13, sub(12), "reactive_energy", 4, true, 1, "VARh"),
	ints(13, sub(13), "active_energy_kwh", 4, true, 1, "kWh"),
	ints(13, sub(14), "apparant_energy_kvah", 4, true, 1, "kVAh"),
	ints(13, sub(15), "reactive_energy_kvarh", 4, true, 1, "kVARh"),
	ints(13, sub(16), "active_energy_mwh", 4, true, 1, "MWh"),
	ints(13, sub(100), "long_delta_timesec", 4, true, 1, "s"),

	// DPT 14
	newFloat32(nil, "4byte_float", ""),
	f32(0, "acceleration", "m/s²"),
	f32(1, "acceleration_angular", "rad/s²"),
	f32(2, "activation_energy", "J/mol"),
	f32(3, "activity", "s⁻¹"),
	f32(4, "mol", "mol"),
	f32(5, "amplitude", ""),
	f32(6, "angle_rad", "rad"),
	f32(7, "angle_deg", "°"),
	f32(8, "angular_momentum", "J s"),
	f32(9, "angular_velocity", "rad/s"),
	f32(10, "area", "m²"),
	f32(11, "capacitance", "F"),
	f32(12, "charge_density_surface", "C/m²"),
	f32(13, "charge_density_volume", "C/m³"),
	f32(14, "compressibility", "m²/N"),
	f32(15, "conductance", "S"),
	f32(16, "electrical_conductivity", "S/m"),
	f32(17, "density", "kg/m³"),
	f32(18, "electric_charge", "C"),
	f32(19, "electric_current", "A"),
	f32(20, "electric_current_density", "A/m²"),
	f32(21, "electric_dipole_moment", "C m"),
	f32(22, "electric_displacement", "C/m²"),
	f32(23, "electric_field_strength", "V/m"),
	f32(24, "electric_flux", "c"),
	f32(25, "electric_flux_density", "C/m²"),
	f32(26, "electric_polarization", "C/m²"),
	f32(27, "electric_potential", "V"),
	f32(28, "electric_potential_difference", "V"),
	f32(29, "electromagnetic_moment", "A m²"),
	f32(30, "electromotive_force", "V"),
	f32(31, "energy", "J"),
	f32(32, "force", "N"),
	f32(33, "frequency", "Hz"),
	f32(34, "angular_frequency", "rad/s"),
	f32(35, "heatcapacity", "J/K"),
	f32(36, "heatflowrate", "W"),
	f32(37, "heat_quantity", "J"),
	f32(38, "impedance", "Ω"),
	f32(39, "length", "m"),
	f32(40, "light_quantity", "lm s"),
	f32(41, "luminance", "cd/m²"),
	f32(42, "luminous_flux", "lm"),
	f32(43, "luminous_intensity", "cd"),
	f32(44, "magnetic_field_strength", "A/m"),
	f32(45, "magnetic_flux", "Wb"),
	f32(46, "magnetic_flux_density", "T"),
	f32(47, "magnetic_moment", "A m²"),
	f32(48, "magnetic_polarization", "T"),
	f32(49, "magnetization", "A/m"),
	f32(50, "magnetomotive_force", "A"),
	f32(51, "mass", "kg"),
	f32(52, "mass_flux", "kg/s"),
	f32(53, "momentum", "N/s"),
	f32(54, "phaseanglerad", "rad"),
	f32(55, "phaseangledeg", "°"),
	f32(56, "power", "W"),
	f32(57, "powerfactor", "cosΦ"),
	f32(58, "pressure", "Pa"),
	f32(59, "reactance", "Ω"),
	f32(60, "resistance", "Ω"),
	f32(61, "resistivity", "Ω m"),
	f32(62, "self_inductance", "H"),
	f32(63, "solid_angle", "sr"),
	f32(64, "sound_intensity", "W/m²"),
	f32(65, "speed", "m/s"),
	f32(66, "stress", "Pa"),
	f32(67, "surface_tension", "N/m"),
	f32(68, "common_temperature", "°C"),
	f32(69, "absolute_temperature", "K"),
	f32(70, "temperature_difference", "K"),
	f32(71, "thermal_capacity", "J/K"),
	f32(72, "thermal_conductivity", "W/mK"),
	f32(73, "thermoelectric_power", "V/K"),
	f32(74, "time_seconds", "s"),
	f32(75, "torque", "N m"),
	f32(76, "volume", "m³"),
	f32(77, "volume_flux", "m³/s"),
	f32(78, "weight", "N"),
	f32(79, "work", "J"),
	f32(80, "apparent_power", "VA"),

	// DPT 16
	newString(0, "string", ASCII),
	newString(1, "latin_1", Latin1),

	// DPT 17, 18, 19
	&SceneNumber{base{Descriptor{Main: 17, Sub: sub(1), ValueType: "scene_number", Kind: KindArray, PayloadLength: 1, Min: MinScene, Max: MaxScene}}},
	&SceneCtrl{base{Descriptor{Main: 18, Sub: sub(1), ValueType: "scene_control", Kind: KindArray, PayloadLength: 1}}},
	&DateAndTime{base{Descriptor{Main: 19, Sub: sub(1), ValueType: "datetime", Kind: KindArray, PayloadLength: 8}}},

	// DPT 20
	newEnum(102, "hvac_mode", hvacModeNames),
	newEnum(105, "hvac_controller_mode", controllerModeNames),
	&HVACStatusByte{base{Descriptor{Main: 20, Sub: sub(60102), ValueType: "hvac_status", Kind: KindArray, PayloadLength: 1}}},

	// DPT 29
	newInteger64(nil, "8byte_signed", ""),
	newInteger64(sub(10), "active_energy_8byte", "Wh"),
	newInteger64(sub(11), "apparant_energy_8byte", "VAh"),
	newInteger64(sub(12), "reactive_energy_8byte", "VARh"),

	// Colors and energy
	&ColorRGB{base{Descriptor{Main: 232, Sub: sub(600), ValueType: "color_rgb", Kind: KindArray, PayloadLength: 3}}},
	&TariffEnergy{base{Descriptor{Main: 235, Sub: sub(1), ValueType: "tariff_active_energy", Kind: KindArray, PayloadLength: 6}}},
	&XYY{base{Descriptor{Main: 242, Sub: sub(600), ValueType: "color_xyy", Kind: KindArray, PayloadLength: 6}}},
	&ColorRGBW{base{Descriptor{Main: 251, Sub: sub(600), ValueType: "color_rgbw", Kind: KindArray, PayloadLength: 6}}},
}

type number struct {
	main   uint16
	sub    uint16
	hasSub bool
}

func numberOf(d Descriptor) number {
	if d.Sub == nil {
		return number{main: d.Main}
	}
	return number{main: d.Main, sub: *d.Sub, hasSub: true}
}

var (
	byValueType = make(map[string]Transcoder, len(registry))
	byNumber    = make(map[number]Transcoder, len(registry))
)

func init() {
	for _, t := range registry {
		d := t.Descriptor()
		if _, ok := byValueType[d.ValueType]; !ok {
			byValueType[d.ValueType] = t
		}
		if d.Main == 0 {
			continue
		}
		if _, ok := byNumber[numberOf(d)]; !ok {
			byNumber[numberOf(d)] = t
		}
	}
}

// All returns every registered transcoder in table order.
func All() []Transcoder {
	out := make([]Transcoder, len(registry))
	copy(out, registry)
	return out
}

// Validate checks that DPT numbers and value type names are unique.
func Validate() error {
	var errs []error
	seenType := make(map[string]bool)
	seenNum := make(map[number]string)
	for _, t := range registry {
		d := t.Descriptor()
		if d.ValueType == "" {
			errs = append(errs, fmt.Errorf("dpt %s has no value type", d.Number()))
		}
		if seenType[d.ValueType] {
			errs = append(errs, fmt.Errorf("duplicate value type %q", d.ValueType))
		}
		seenType[d.ValueType] = true
		if d.Main == 0 {
			continue
		}
		if prev, ok := seenNum[numberOf(d)]; ok {
			errs = append(errs, fmt.Errorf("duplicate dpt %s (%s, %s)", d.Number(), prev, d.ValueType))
		}
		seenNum[numberOf(d)] = d.ValueType
	}
	return errors.Join(errs...)
}

// LookupNumber returns the transcoder for a main number and optional subtype.
func LookupNumber(main int, sub *int) (Transcoder, bool) {
	if main <= 0 || main > 0xFFFF {
		return nil, false
	}
	n := number{main: uint16(main)}
	if sub != nil {
		if *sub < 0 || *sub > 0xFFFF {
			return nil, false
		}
		n.sub, n.hasSub = uint16(*sub), true
	}
	t, ok := byNumber[n]
	return t, ok
}

// Lookup resolves a value type name ("temperature") or a DPT number in one
// of the forms "9", "9.001", "DPT-9.001", "DPT9.001" or "DPST-9-1".
// Unknown keys return false.
func Lookup(key string) (Transcoder, bool) {
	if t, ok := byValueType[key]; ok {
		return t, true
	}
	main, sub, ok := parseNumber(key)
	if !ok {
		return nil, false
	}
	return LookupNumber(main, sub)
}

func parseNumber(key string) (int, *int, bool) {
	s := strings.ToUpper(strings.TrimSpace(key))
	var parts []string
	switch {
	case strings.HasPrefix(s, "DPST-"):
		parts = strings.Split(strings.TrimPrefix(s, "DPST-"), "-")
		if len(parts) != 2 {
			return 0, nil, false
		}
	default:
		s = strings.TrimPrefix(s, "DPT-")
		s = strings.TrimPrefix(s, "DPT")
		parts = strings.Split(s, ".")
		if len(parts) > 2 {
			return 0, nil, false
		}
	}
	main, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, false
	}
	if len(parts) == 1 {
		return main, nil, true
	}
	sub, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, false
	}
	return main, &sub, true
}
