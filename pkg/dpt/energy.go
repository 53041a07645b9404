package dpt

import "encoding/binary"

// TariffActiveEnergy is a DPT 235.001 value. Nil fields are flagged invalid.
type TariffActiveEnergy struct {
	Energy *int32 // Wh
	Tariff *uint8 // 0..254
}

// TariffEnergy transcodes DPT 235.001. Values are TariffActiveEnergy.
type TariffEnergy struct {
	base
}

// Encode returns the payload for v.
func (t *TariffEnergy) Encode(v TariffActiveEnergy) (Payload, error) {
	out := make(Array, 6)
	if v.Energy != nil {
		binary.BigEndian.PutUint32(out, uint32(*v.Energy))
		out[5] |= 0x02
	}
	if v.Tariff != nil {
		if *v.Tariff > 254 {
			return nil, t.desc.conversionError("tariff %d outside [0, 254]", *v.Tariff)
		}
		out[4] = *v.Tariff
		out[5] |= 0x01
	}
	return out, nil
}

// Decode returns the value carried by p.
func (t *TariffEnergy) Decode(p Payload) (TariffActiveEnergy, error) {
	b, err := t.desc.bytes(p)
	if err != nil {
		return TariffActiveEnergy{}, err
	}
	var v TariffActiveEnergy
	if b[5]&0x02 != 0 {
		e := int32(binary.BigEndian.Uint32(b))
		v.Energy = &e
	}
	if b[5]&0x01 != 0 {
		if b[4] > 254 {
			return TariffActiveEnergy{}, t.desc.conversionError("tariff %d outside [0, 254]", b[4])
		}
		tariff := b[4]
		v.Tariff = &tariff
	}
	return v, nil
}

// ToKNX implements Transcoder.
func (t *TariffEnergy) ToKNX(v any) (Payload, error) {
	if x, ok := v.(TariffActiveEnergy); ok {
		return t.Encode(x)
	}
	return nil, t.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (t *TariffEnergy) FromKNX(p Payload) (any, error) {
	return t.Decode(p)
}
