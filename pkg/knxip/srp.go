package knxip

import "fmt"

// SRPType is the type of a search request parameter.
type SRPType uint8

const (
	SRPSelectByProgrammingMode SRPType = 0x01
	SRPSelectByMACAddress      SRPType = 0x02
	SRPSelectByService         SRPType = 0x03
	SRPRequestDIBs             SRPType = 0x04
)

const srpMandatory = 0x80

// SRP is a search request parameter of SEARCH_REQUEST_EXTENDED. When
// Mandatory is set a server only answers if it satisfies the parameter.
type SRP struct {
	Type      SRPType
	Mandatory bool
	Data      []byte
}

// SelectByProgrammingMode limits responses to devices in programming mode.
func SelectByProgrammingMode() SRP {
	return SRP{Type: SRPSelectByProgrammingMode, Mandatory: true}
}

// SelectByMACAddress limits responses to the device with the given MAC.
func SelectByMACAddress(mac [6]byte) SRP {
	return SRP{Type: SRPSelectByMACAddress, Mandatory: true, Data: mac[:]}
}

// SelectByService limits responses to devices supporting family with at
// least the given version.
func SelectByService(family ServiceFamily, version uint8) SRP {
	return SRP{Type: SRPSelectByService, Mandatory: true, Data: []byte{byte(family), version}}
}

// RequestDIBs asks the server to include the given DIB types. An odd
// count is padded with type 0 to keep the structure length even.
func RequestDIBs(types ...DIBType) SRP {
	data := make([]byte, len(types), len(types)+1)
	for i, t := range types {
		data[i] = byte(t)
	}
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	return SRP{Type: SRPRequestDIBs, Mandatory: true, Data: data}
}

// Validate checks the payload length required by the parameter type.
func (s SRP) Validate() error {
	want := -1
	switch s.Type {
	case SRPSelectByProgrammingMode:
		want = 0
	case SRPSelectByMACAddress:
		want = 6
	case SRPSelectByService:
		want = 2
	case SRPRequestDIBs:
		if len(s.Data) == 0 || len(s.Data)%2 != 0 {
			return fmt.Errorf("%w: SRP request DIBs with %d types", ErrInvalidBody, len(s.Data))
		}
	}
	if want >= 0 && len(s.Data) != want {
		return fmt.Errorf("%w: SRP type %#02x needs %d data bytes, got %d", ErrInvalidBody, uint8(s.Type), want, len(s.Data))
	}
	if s.Size() > 0xFF {
		return fmt.Errorf("%w: SRP of %d bytes", ErrInvalidBody, s.Size())
	}
	return nil
}

func (s SRP) Size() int { return 2 + len(s.Data) }

func (s SRP) EncodeTo(buf []byte) int {
	buf[0] = byte(s.Size())
	buf[1] = byte(s.Type) &^ srpMandatory
	if s.Mandatory {
		buf[1] |= srpMandatory
	}
	return 2 + copy(buf[2:], s.Data)
}

// Decode parses one SRP and returns its size.
func (s *SRP) Decode(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, parseError("SRP header needs 2 bytes, got %d", len(data))
	}
	n := int(data[0])
	if n < 2 || n > len(data) {
		return 0, parseError("SRP length %d with %d bytes remaining", n, len(data))
	}
	s.Type = SRPType(data[1] &^ srpMandatory)
	s.Mandatory = data[1]&srpMandatory != 0
	s.Data = append([]byte(nil), data[2:n]...)
	return n, nil
}

func (s SRP) String() string {
	return fmt.Sprintf("<SRP type=%#02x mandatory=%t data=%x>", uint8(s.Type), s.Mandatory, s.Data)
}
