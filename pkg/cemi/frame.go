// Package cemi implements the common External Message Interface (cEMI)
// L_Data frame format carried in KNXnet/IP tunnelling and routing bodies.
package cemi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/backkem/knxip/pkg/dpt"
	"github.com/backkem/knxip/pkg/telegram"
)

// Frame layout constants.
const (
	// minLDataSize is control fields (2) + source (2) + destination (2) +
	// NPDU length (1) + TPCI (1).
	minLDataSize = 8

	// MinFrameSize is message code + additional info length + minLDataSize.
	MinFrameSize = 2 + minLDataSize
)

// Frame is a cEMI L_Data frame.
type Frame struct {
	Code MessageCode
	// AdditionalInfo is kept raw, without its length octet.
	AdditionalInfo []byte
	Flags          Flags
	Source         telegram.IndividualAddress
	Destination    telegram.Address
	TPCI           telegram.TPCI
	APCI           telegram.APCIService
	// Payload is nil for control TPDUs.
	Payload dpt.Payload
}

// FromTelegram builds a frame for t: a standard frame, not repeated,
// broadcast on the domain, with the default hop count. Group destinations
// use low priority, individual destinations and broadcasts system priority.
func FromTelegram(t telegram.Telegram, code MessageCode) *Frame {
	flags := FrameTypeStandard | DoNotRepeat | Broadcast
	flags = flags.SetHops(DefaultHopCount)
	if t.Destination != nil && t.Destination.IsGroup() {
		flags |= DestinationGroup
		if t.TPCI.Type != telegram.DataBroadcast {
			flags |= PriorityLow
		}
	}
	return &Frame{
		Code:        code,
		Flags:       flags,
		Source:      t.Source,
		Destination: t.Destination,
		TPCI:        t.TPCI,
		APCI:        t.APCI,
		Payload:     t.Payload,
	}
}

// Telegram returns the telegram carried by the frame. Frames received from
// the bus (L_Data.ind, L_Data.con) are incoming.
func (f *Frame) Telegram() telegram.Telegram {
	dir := telegram.Incoming
	if f.Code == LDataReq {
		dir = telegram.Outgoing
	}
	return telegram.Telegram{
		Source:      f.Source,
		Destination: f.Destination,
		TPCI:        f.TPCI,
		APCI:        f.APCI,
		Payload:     f.Payload,
		Direction:   dir,
	}
}

// Size returns the encoded length in bytes.
func (f *Frame) Size() int {
	n := 2 + len(f.AdditionalInfo) + minLDataSize
	if !f.TPCI.IsControl() {
		n += telegram.APDULength(f.Payload)
	}
	return n
}

// Encode serializes the frame.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.AdditionalInfo) > 0xFF {
		return nil, fmt.Errorf("%w: additional info of %d bytes", ErrInvalidFrame, len(f.AdditionalInfo))
	}
	if f.Destination == nil {
		return nil, fmt.Errorf("%w: no destination", ErrInvalidFrame)
	}
	if f.Destination.IsGroup() != f.Flags.Has(DestinationGroup) {
		return nil, fmt.Errorf("%w: destination %v does not match address type flag", ErrInvalidFrame, f.Destination)
	}

	var tpdu []byte
	npduLen := 0
	if f.TPCI.IsControl() {
		if f.Payload != nil {
			return nil, fmt.Errorf("%w: control TPDU %v with payload", ErrInvalidFrame, f.TPCI)
		}
		tpdu = []byte{f.TPCI.Encode()}
	} else {
		switch p := f.Payload.(type) {
		case dpt.Bit:
			if p > dpt.BitMask {
				return nil, fmt.Errorf("%w: bit payload %d exceeds 6 bits", ErrInvalidFrame, uint8(p))
			}
		case dpt.Array:
			if len(p) > 0xFE {
				return nil, fmt.Errorf("%w: payload of %d bytes", ErrInvalidFrame, len(p))
			}
		}
		tpdu = telegram.EncodeAPDU(f.TPCI.Encode(), f.APCI, f.Payload)
		npduLen = len(tpdu) - 1
	}

	out := make([]byte, 0, f.Size())
	out = append(out, byte(f.Code), byte(len(f.AdditionalInfo)))
	out = append(out, f.AdditionalInfo...)
	out = binary.BigEndian.AppendUint16(out, uint16(f.Flags))
	out = binary.BigEndian.AppendUint16(out, f.Source.Raw())
	out = binary.BigEndian.AppendUint16(out, f.Destination.Raw())
	out = append(out, byte(npduLen))
	out = append(out, tpdu...)
	return out, nil
}

// Decode parses an L_Data frame. Other message codes, and TPCIs not valid
// for the destination type, return ErrUnsupportedCEMI. Length
// inconsistencies return ErrCouldNotParseCEMI.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCouldNotParseCEMI, len(data))
	}
	code := MessageCode(data[0])
	addil := int(data[1])
	if len(data) < 2+addil {
		return nil, fmt.Errorf("%w: additional info length %d exceeds frame", ErrCouldNotParseCEMI, addil)
	}
	if !code.IsLData() {
		return nil, fmt.Errorf("%w: message code %v", ErrUnsupportedCEMI, code)
	}
	raw := data[2+addil:]
	if len(raw) < minLDataSize {
		return nil, fmt.Errorf("%w: L_Data too small (%d bytes)", ErrCouldNotParseCEMI, len(raw))
	}

	f := &Frame{
		Code:   code,
		Flags:  Flags(binary.BigEndian.Uint16(raw[0:2])),
		Source: telegram.IndividualAddress(binary.BigEndian.Uint16(raw[2:4])),
	}
	if addil > 0 {
		f.AdditionalInfo = append([]byte(nil), data[2:2+addil]...)
	}
	group := f.Flags.Has(DestinationGroup)
	dst := binary.BigEndian.Uint16(raw[4:6])
	if group {
		f.Destination = telegram.GroupAddress(dst)
	} else {
		f.Destination = telegram.IndividualAddress(dst)
	}

	npduLen := int(raw[6])
	tpdu := raw[7:]
	if len(tpdu) != npduLen+1 {
		return nil, fmt.Errorf("%w: NPDU length %d but %d bytes follow from %v", ErrCouldNotParseCEMI, npduLen, len(tpdu)-1, f.Source)
	}

	tpci, err := telegram.ResolveTPCI(tpdu[0], group)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCEMI, err)
	}
	if group && dst == 0 && tpci.Type == telegram.DataGroup {
		tpci.Type = telegram.DataBroadcast
	}
	f.TPCI = tpci

	if tpci.IsControl() {
		if npduLen != 0 {
			return nil, fmt.Errorf("%w: control TPDU %v with NPDU length %d", ErrCouldNotParseCEMI, tpci, npduLen)
		}
		return f, nil
	}
	if npduLen == 0 {
		return nil, fmt.Errorf("%w: data TPDU without APCI", ErrCouldNotParseCEMI)
	}
	f.APCI, f.Payload, err = telegram.DecodeAPDU(tpdu)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotParseCEMI, err)
	}
	return f, nil
}

// IsUnsupported reports whether err marks a frame that may be skipped.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedCEMI)
}

func (f *Frame) String() string {
	return fmt.Sprintf("<CEMIFrame %v %v -> %v flags=%#04x %v %v %v>",
		f.Code, f.Source, f.Destination, uint16(f.Flags), f.TPCI, f.APCI, f.Payload)
}
