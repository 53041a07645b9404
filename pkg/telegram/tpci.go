package telegram

import "fmt"

// TPCIType is the transport layer service of a TPDU.
type TPCIType uint8

// Transport layer services.
const (
	DataGroup      TPCIType = iota // T_Data_Group and T_Data_Broadcast
	DataTagGroup                   // T_Data_Tag_Group
	DataIndividual                 // T_Data_Individual
	DataConnected                  // T_Data_Connected, numbered
	Connect                        // T_Connect
	Disconnect                     // T_Disconnect
	Ack                            // T_Ack, numbered
	Nak                            // T_Nak, numbered
	DataBroadcast                  // T_Data_Broadcast, group address 0/0/0
)

var tpciNames = [...]string{"TDataGroup", "TDataTagGroup", "TDataIndividual", "TDataConnected", "TConnect", "TDisconnect", "TAck", "TNak", "TDataBroadcast"}

func (t TPCIType) String() string {
	if int(t) < len(tpciNames) {
		return tpciNames[t]
	}
	return fmt.Sprintf("TPCIType(%d)", uint8(t))
}

// TPCI bits.
const (
	tpciControl  = 0x80
	tpciNumbered = 0x40
)

// TPCI is the transport layer control field.
type TPCI struct {
	Type TPCIType
	// Sequence is the 4-bit sequence number of numbered services.
	Sequence uint8
}

// IsControl reports whether the TPDU carries no APDU.
func (t TPCI) IsControl() bool {
	switch t.Type {
	case Connect, Disconnect, Ack, Nak:
		return true
	}
	return false
}

// IsNumbered reports whether the service carries a sequence number.
func (t TPCI) IsNumbered() bool {
	switch t.Type {
	case DataConnected, Ack, Nak:
		return true
	}
	return false
}

// Encode returns the TPCI bits of the first TPDU octet. For data services
// the low two bits belong to the APCI and are zero.
func (t TPCI) Encode() byte {
	seq := (t.Sequence & 0x0F) << 2
	switch t.Type {
	case DataTagGroup:
		return 0x04
	case DataConnected:
		return tpciNumbered | seq
	case Connect:
		return tpciControl
	case Disconnect:
		return tpciControl | 0x01
	case Ack:
		return tpciControl | tpciNumbered | seq | 0x02
	case Nak:
		return tpciControl | tpciNumbered | seq | 0x03
	}
	return 0
}

func (t TPCI) String() string {
	if t.IsNumbered() {
		return fmt.Sprintf("%v(seq=%d)", t.Type, t.Sequence)
	}
	return t.Type.String()
}

// ResolveTPCI decodes the first TPDU octet. Group addressed frames only
// allow unnumbered data services. T_Data_Broadcast is resolved by the
// caller from the destination address.
func ResolveTPCI(raw byte, groupDestination bool) (TPCI, error) {
	control := raw&tpciControl != 0
	numbered := raw&tpciNumbered != 0
	seq := (raw >> 2) & 0x0F

	if groupDestination {
		if control || numbered {
			return TPCI{}, fmt.Errorf("%w: flags %#02x in group addressed frame", ErrInvalidTPCI, raw)
		}
		switch seq {
		case 0:
			return TPCI{Type: DataGroup}, nil
		case 1:
			return TPCI{Type: DataTagGroup}, nil
		}
	}
	if !numbered && seq != 0 {
		return TPCI{}, fmt.Errorf("%w: sequence number in unnumbered TPCI %#02x", ErrInvalidTPCI, raw)
	}
	if !control {
		if numbered {
			return TPCI{Type: DataConnected, Sequence: seq}, nil
		}
		return TPCI{Type: DataIndividual}, nil
	}
	flags := raw & 0x03
	if !numbered {
		switch flags {
		case 0:
			return TPCI{Type: Connect}, nil
		case 1:
			return TPCI{Type: Disconnect}, nil
		}
		return TPCI{}, fmt.Errorf("%w: unnumbered control TPCI %#02x", ErrInvalidTPCI, raw)
	}
	switch flags {
	case 2:
		return TPCI{Type: Ack, Sequence: seq}, nil
	case 3:
		return TPCI{Type: Nak, Sequence: seq}, nil
	}
	return TPCI{}, fmt.Errorf("%w: unknown TPCI %#08b", ErrInvalidTPCI, raw)
}
