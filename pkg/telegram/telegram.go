package telegram

import (
	"fmt"

	"github.com/backkem/knxip/pkg/dpt"
)

// Direction tells whether a telegram was received or is being sent.
type Direction uint8

// Directions.
const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "Outgoing"
	}
	return "Incoming"
}

// Telegram is a decoded KNX link layer message.
type Telegram struct {
	Source      IndividualAddress
	Destination Address
	TPCI        TPCI
	APCI        APCIService
	// Payload is nil for services without data, such as GroupValueRead.
	Payload   dpt.Payload
	Direction Direction
}

// GroupWrite returns an outgoing GroupValueWrite telegram.
func GroupWrite(dst GroupAddress, p dpt.Payload) Telegram {
	return Telegram{Destination: dst, APCI: GroupValueWrite, Payload: p, Direction: Outgoing}
}

// GroupRead returns an outgoing GroupValueRead telegram.
func GroupRead(dst GroupAddress) Telegram {
	return Telegram{Destination: dst, APCI: GroupValueRead, Direction: Outgoing}
}

// GroupResponse returns an outgoing GroupValueResponse telegram.
func GroupResponse(dst GroupAddress, p dpt.Payload) Telegram {
	return Telegram{Destination: dst, APCI: GroupValueResponse, Payload: p, Direction: Outgoing}
}

// Equal compares two telegrams. Payloads are compared with dpt.PayloadEqual.
func (t Telegram) Equal(o Telegram) bool {
	if t.Source != o.Source || t.TPCI != o.TPCI || t.APCI != o.APCI || t.Direction != o.Direction {
		return false
	}
	if (t.Destination == nil) != (o.Destination == nil) {
		return false
	}
	if t.Destination != nil &&
		(t.Destination.IsGroup() != o.Destination.IsGroup() || t.Destination.Raw() != o.Destination.Raw()) {
		return false
	}
	return dpt.PayloadEqual(t.Payload, o.Payload)
}

func (t Telegram) String() string {
	if t.TPCI.IsControl() {
		return fmt.Sprintf("<Telegram %v %v -> %v %v>", t.Direction, t.Source, t.Destination, t.TPCI)
	}
	if t.Payload == nil {
		return fmt.Sprintf("<Telegram %v %v -> %v %v>", t.Direction, t.Source, t.Destination, t.APCI)
	}
	return fmt.Sprintf("<Telegram %v %v -> %v %v %v>", t.Direction, t.Source, t.Destination, t.APCI, t.Payload)
}
