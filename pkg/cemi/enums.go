package cemi

import "fmt"

// MessageCode is the first octet of a cEMI frame.
type MessageCode uint8

// Message codes.
const (
	LRawReq      MessageCode = 0x10
	LDataReq     MessageCode = 0x11
	LPollDataReq MessageCode = 0x13
	LPollDataCon MessageCode = 0x25
	LDataInd     MessageCode = 0x29
	LBusmonInd   MessageCode = 0x2B
	LRawInd      MessageCode = 0x2D
	LDataCon     MessageCode = 0x2E
	LRawCon      MessageCode = 0x2F
)

var messageCodeNames = map[MessageCode]string{
	LRawReq:      "L_Raw.req",
	LDataReq:     "L_Data.req",
	LPollDataReq: "L_Poll_Data.req",
	LPollDataCon: "L_Poll_Data.con",
	LDataInd:     "L_Data.ind",
	LBusmonInd:   "L_Busmon.ind",
	LRawInd:      "L_Raw.ind",
	LDataCon:     "L_Data.con",
	LRawCon:      "L_Raw.con",
}

func (c MessageCode) String() string {
	if n, ok := messageCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("MessageCode(%#02x)", uint8(c))
}

// IsLData reports whether c is one of the L_Data services.
func (c MessageCode) IsLData() bool {
	return c == LDataReq || c == LDataInd || c == LDataCon
}

// Flags holds control field 1 (high octet) and control field 2 (low octet).
type Flags uint16

// Control field bits.
const (
	FrameTypeStandard Flags = 0x8000
	DoNotRepeat       Flags = 0x2000
	Broadcast         Flags = 0x1000

	PrioritySystem Flags = 0x0000
	PriorityNormal Flags = 0x0400
	PriorityUrgent Flags = 0x0800
	PriorityLow    Flags = 0x0C00
	priorityMask   Flags = 0x0C00

	AckRequested Flags = 0x0200
	ConfirmError Flags = 0x0100

	DestinationGroup Flags = 0x0080
	hopCountMask     Flags = 0x0070
	ExtendedFormat   Flags = 0x0001

	// DefaultHopCount is the routing counter set on new frames.
	DefaultHopCount = 6
)

// Hops returns the routing hop count.
func (f Flags) Hops() uint8 {
	return uint8((f & hopCountMask) >> 4)
}

// SetHops returns f with the hop count replaced.
func (f Flags) SetHops(n uint8) Flags {
	return f&^hopCountMask | Flags(n&0x07)<<4
}

// Priority returns the priority bits.
func (f Flags) Priority() Flags {
	return f & priorityMask
}

// Has reports whether all bits of b are set.
func (f Flags) Has(b Flags) bool {
	return f&b == b
}
