package telegram

import (
	"fmt"

	"github.com/backkem/knxip/pkg/dpt"
)

// APCIService is the 10-bit application layer service code.
type APCIService uint16

// Application layer services. The group services are the only ones with a
// DPT payload; the others are recognised and carried opaquely.
const (
	GroupValueRead               APCIService = 0x0000
	GroupValueResponse           APCIService = 0x0040
	GroupValueWrite              APCIService = 0x0080
	IndividualAddressWrite       APCIService = 0x00C0
	IndividualAddressRead        APCIService = 0x0100
	IndividualAddressResponse    APCIService = 0x0140
	ADCRead                      APCIService = 0x0180
	ADCResponse                  APCIService = 0x01C0
	MemoryExtendedWrite          APCIService = 0x01FB
	MemoryExtendedWriteResp      APCIService = 0x01FC
	MemoryExtendedRead           APCIService = 0x01FD
	MemoryExtendedReadResp       APCIService = 0x01FE
	MemoryRead                   APCIService = 0x0200
	MemoryResponse               APCIService = 0x0240
	MemoryWrite                  APCIService = 0x0280
	UserMessage                  APCIService = 0x02C0
	UserMemoryRead               APCIService = 0x02C0
	UserMemoryResponse           APCIService = 0x02C1
	UserMemoryWrite              APCIService = 0x02C2
	UserManufacturerInfoRead     APCIService = 0x02C5
	UserManufacturerInfoResp     APCIService = 0x02C6
	FunctionPropertyCommand      APCIService = 0x02C7
	FunctionPropertyStateRead    APCIService = 0x02C8
	FunctionPropertyStateResp    APCIService = 0x02C9
	DeviceDescriptorRead         APCIService = 0x0300
	DeviceDescriptorResponse     APCIService = 0x0340
	Restart                      APCIService = 0x0380
	Escape                       APCIService = 0x03C0
	AuthorizeRequest             APCIService = 0x03D1
	AuthorizeResponse            APCIService = 0x03D2
	PropertyValueRead            APCIService = 0x03D5
	PropertyValueResponse        APCIService = 0x03D6
	PropertyValueWrite           APCIService = 0x03D7
	PropertyDescriptionRead      APCIService = 0x03D8
	PropertyDescriptionResp      APCIService = 0x03D9
	IndividualAddressSerialRead  APCIService = 0x03DC
	IndividualAddressSerialResp  APCIService = 0x03DD
	IndividualAddressSerialWrite APCIService = 0x03DE
	SecureAPDU                   APCIService = 0x03F1
)

const (
	apciMask    = 0x03FF
	serviceMask = 0x03C0
)

var apciNames = map[APCIService]string{
	GroupValueRead:               "GroupValueRead",
	GroupValueResponse:           "GroupValueResponse",
	GroupValueWrite:              "GroupValueWrite",
	IndividualAddressWrite:       "IndividualAddressWrite",
	IndividualAddressRead:        "IndividualAddressRead",
	IndividualAddressResponse:    "IndividualAddressResponse",
	ADCRead:                      "ADCRead",
	ADCResponse:                  "ADCResponse",
	MemoryExtendedWrite:          "MemoryExtendedWrite",
	MemoryExtendedWriteResp:      "MemoryExtendedWriteResponse",
	MemoryExtendedRead:           "MemoryExtendedRead",
	MemoryExtendedReadResp:       "MemoryExtendedReadResponse",
	MemoryRead:                   "MemoryRead",
	MemoryResponse:               "MemoryResponse",
	MemoryWrite:                  "MemoryWrite",
	UserMemoryRead:               "UserMemoryRead",
	UserMemoryResponse:           "UserMemoryResponse",
	UserMemoryWrite:              "UserMemoryWrite",
	UserManufacturerInfoRead:     "UserManufacturerInfoRead",
	UserManufacturerInfoResp:     "UserManufacturerInfoResponse",
	FunctionPropertyCommand:      "FunctionPropertyCommand",
	FunctionPropertyStateRead:    "FunctionPropertyStateRead",
	FunctionPropertyStateResp:    "FunctionPropertyStateResponse",
	DeviceDescriptorRead:         "DeviceDescriptorRead",
	DeviceDescriptorResponse:     "DeviceDescriptorResponse",
	Restart:                      "Restart",
	Escape:                       "Escape",
	AuthorizeRequest:             "AuthorizeRequest",
	AuthorizeResponse:            "AuthorizeResponse",
	PropertyValueRead:            "PropertyValueRead",
	PropertyValueResponse:        "PropertyValueResponse",
	PropertyValueWrite:           "PropertyValueWrite",
	PropertyDescriptionRead:      "PropertyDescriptionRead",
	PropertyDescriptionResp:      "PropertyDescriptionResponse",
	IndividualAddressSerialRead:  "IndividualAddressSerialRead",
	IndividualAddressSerialResp:  "IndividualAddressSerialResponse",
	IndividualAddressSerialWrite: "IndividualAddressSerialWrite",
	SecureAPDU:                   "SecureAPDU",
}

func (s APCIService) String() string {
	if n, ok := apciNames[s]; ok {
		return n
	}
	if n, ok := apciNames[s&serviceMask]; ok {
		return fmt.Sprintf("%s(%#03x)", n, uint16(s))
	}
	return fmt.Sprintf("APCIService(%#03x)", uint16(s))
}

// IsGroupValue reports whether s is a group read, write or response.
func (s APCIService) IsGroupValue() bool {
	return s == GroupValueRead || s == GroupValueWrite || s == GroupValueResponse
}

// extended reports whether a 4-bit service uses the low 6 bits as a sub-code.
func extended(apci APCIService) bool {
	if _, ok := apciNames[apci]; !ok {
		return false
	}
	switch apci & serviceMask {
	case UserMessage, Escape:
		return true
	case ADCResponse:
		return apci != ADCResponse
	}
	return false
}

// EncodeAPDU returns the APDU bytes for service and payload, with tpci in
// the high bits of the first octet. A Bit payload is packed into the low
// 6 bits of the second octet, an Array payload is appended.
func EncodeAPDU(tpci byte, service APCIService, payload dpt.Payload) []byte {
	out := []byte{tpci | byte(service>>8)&0x03, byte(service)}
	switch p := payload.(type) {
	case dpt.Bit:
		out[1] |= byte(p) & dpt.BitMask
	case dpt.Array:
		out = append(out, p...)
	}
	return out
}

// APDULength is the NPDU length field value for service and payload: the
// number of octets after the first TPCI/APCI octet.
func APDULength(payload dpt.Payload) int {
	if a, ok := payload.(dpt.Array); ok {
		return 1 + len(a)
	}
	return 1
}

// DecodeAPDU decodes a data APDU of at least 2 octets. The TPCI bits of the
// first octet are ignored.
//
// Group services and 2-octet APDUs carry their low 6 bits as a Bit payload.
// Longer APDUs of other services keep the full 10-bit code as the service so
// that re-encoding is lossless.
func DecodeAPDU(raw []byte) (APCIService, dpt.Payload, error) {
	if len(raw) < 2 {
		return 0, nil, fmt.Errorf("%w: %d octets", ErrInvalidAPDU, len(raw))
	}
	apci := APCIService(uint16(raw[0])<<8|uint16(raw[1])) & apciMask
	service := apci & serviceMask

	if service.IsGroupValue() {
		if len(raw) == 2 {
			return service, dpt.Bit(raw[1] & dpt.BitMask), nil
		}
		return service, dpt.Array(clone(raw[2:])), nil
	}
	if extended(apci) {
		return apci, dpt.Array(clone(raw[2:])), nil
	}
	if len(raw) == 2 {
		return service, dpt.Bit(raw[1] & dpt.BitMask), nil
	}
	return apci, dpt.Array(clone(raw[2:])), nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
