// Package knxip implements the KNXnet/IP frame format: the common header,
// the bodies of the core, device management, tunnelling, routing and
// secure service families, and a stream parser for TCP connections.
//
// The package provides:
//   - Header and body encoding/decoding with strict length checks
//   - HPAI, DIB and search request parameter structures
//   - Parse and ParseAll for datagram and stream input
//   - StreamReader and StreamWriter for TCP
//
// cEMI payloads of tunnelling and routing frames are kept as raw bytes, see
// package cemi for their codec.
package knxip

import "fmt"

// ServiceType identifies the body carried by a KNXnet/IP frame.
type ServiceType uint16

// Core services.
const (
	ServiceSearchRequest           ServiceType = 0x0201
	ServiceSearchResponse          ServiceType = 0x0202
	ServiceDescriptionRequest      ServiceType = 0x0203
	ServiceDescriptionResponse     ServiceType = 0x0204
	ServiceConnectRequest          ServiceType = 0x0205
	ServiceConnectResponse         ServiceType = 0x0206
	ServiceConnectionStateRequest  ServiceType = 0x0207
	ServiceConnectionStateResponse ServiceType = 0x0208
	ServiceDisconnectRequest       ServiceType = 0x0209
	ServiceDisconnectResponse      ServiceType = 0x020A
	ServiceSearchRequestExtended   ServiceType = 0x020B
	ServiceSearchResponseExtended  ServiceType = 0x020C
)

// Device management services.
const (
	ServiceDeviceConfigurationRequest ServiceType = 0x0310
	ServiceDeviceConfigurationAck     ServiceType = 0x0311
)

// Tunnelling services.
const (
	ServiceTunnellingRequest         ServiceType = 0x0420
	ServiceTunnellingAck             ServiceType = 0x0421
	ServiceTunnellingFeatureGet      ServiceType = 0x0422
	ServiceTunnellingFeatureResponse ServiceType = 0x0423
	ServiceTunnellingFeatureSet      ServiceType = 0x0424
	ServiceTunnellingFeatureInfo     ServiceType = 0x0425
)

// Routing services.
const (
	ServiceRoutingIndication      ServiceType = 0x0530
	ServiceRoutingLostMessage     ServiceType = 0x0531
	ServiceRoutingBusy            ServiceType = 0x0532
	ServiceRoutingSystemBroadcast ServiceType = 0x0533
)

// Remote diagnosis and configuration services.
const (
	ServiceRemoteDiagRequest   ServiceType = 0x0740
	ServiceRemoteDiagResponse  ServiceType = 0x0741
	ServiceRemoteConfigRequest ServiceType = 0x0742
	ServiceRemoteResetRequest  ServiceType = 0x0743
)

// Secure services.
const (
	ServiceSecureWrapper       ServiceType = 0x0950
	ServiceSessionRequest      ServiceType = 0x0951
	ServiceSessionResponse     ServiceType = 0x0952
	ServiceSessionAuthenticate ServiceType = 0x0953
	ServiceSessionStatus       ServiceType = 0x0954
	ServiceTimerNotify         ServiceType = 0x0955
)

var serviceNames = map[ServiceType]string{
	ServiceSearchRequest:              "SEARCH_REQUEST",
	ServiceSearchResponse:             "SEARCH_RESPONSE",
	ServiceDescriptionRequest:         "DESCRIPTION_REQUEST",
	ServiceDescriptionResponse:        "DESCRIPTION_RESPONSE",
	ServiceConnectRequest:             "CONNECT_REQUEST",
	ServiceConnectResponse:            "CONNECT_RESPONSE",
	ServiceConnectionStateRequest:     "CONNECTIONSTATE_REQUEST",
	ServiceConnectionStateResponse:    "CONNECTIONSTATE_RESPONSE",
	ServiceDisconnectRequest:          "DISCONNECT_REQUEST",
	ServiceDisconnectResponse:         "DISCONNECT_RESPONSE",
	ServiceSearchRequestExtended:      "SEARCH_REQUEST_EXTENDED",
	ServiceSearchResponseExtended:     "SEARCH_RESPONSE_EXTENDED",
	ServiceDeviceConfigurationRequest: "DEVICE_CONFIGURATION_REQUEST",
	ServiceDeviceConfigurationAck:     "DEVICE_CONFIGURATION_ACK",
	ServiceTunnellingRequest:          "TUNNELLING_REQUEST",
	ServiceTunnellingAck:              "TUNNELLING_ACK",
	ServiceTunnellingFeatureGet:       "TUNNELLING_FEATURE_GET",
	ServiceTunnellingFeatureResponse:  "TUNNELLING_FEATURE_RESPONSE",
	ServiceTunnellingFeatureSet:       "TUNNELLING_FEATURE_SET",
	ServiceTunnellingFeatureInfo:      "TUNNELLING_FEATURE_INFO",
	ServiceRoutingIndication:          "ROUTING_INDICATION",
	ServiceRoutingLostMessage:         "ROUTING_LOST_MESSAGE",
	ServiceRoutingBusy:                "ROUTING_BUSY",
	ServiceRoutingSystemBroadcast:     "ROUTING_SYSTEM_BROADCAST",
	ServiceRemoteDiagRequest:          "REMOTE_DIAG_REQUEST",
	ServiceRemoteDiagResponse:         "REMOTE_DIAG_RESPONSE",
	ServiceRemoteConfigRequest:        "REMOTE_CONFIG_REQUEST",
	ServiceRemoteResetRequest:         "REMOTE_RESET_REQUEST",
	ServiceSecureWrapper:              "SECURE_WRAPPER",
	ServiceSessionRequest:             "SESSION_REQUEST",
	ServiceSessionResponse:            "SESSION_RESPONSE",
	ServiceSessionAuthenticate:        "SESSION_AUTHENTICATE",
	ServiceSessionStatus:              "SESSION_STATUS",
	ServiceTimerNotify:                "TIMER_NOTIFY",
}

func (s ServiceType) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ServiceType(%#04x)", uint16(s))
}

// IsValid reports whether s is a defined service type.
func (s ServiceType) IsValid() bool {
	_, ok := serviceNames[s]
	return ok
}

// ErrorCode is the status byte of connection oriented responses.
type ErrorCode uint8

const (
	StatusNoError                 ErrorCode = 0x00
	StatusHostProtocolType        ErrorCode = 0x01
	StatusVersionNotSupported     ErrorCode = 0x02
	StatusSequenceNumber          ErrorCode = 0x04
	StatusError                   ErrorCode = 0x0F
	StatusConnectionID            ErrorCode = 0x21
	StatusConnectionType          ErrorCode = 0x22
	StatusConnectionOption        ErrorCode = 0x23
	StatusNoMoreConnections       ErrorCode = 0x24
	StatusNoMoreUniqueConnections ErrorCode = 0x25
	StatusDataConnection          ErrorCode = 0x26
	StatusKNXConnection           ErrorCode = 0x27
	StatusAuthorisationError      ErrorCode = 0x28
	StatusTunnellingLayer         ErrorCode = 0x29
	StatusNoTunnellingAddress     ErrorCode = 0x2D
	StatusConnectionInUse         ErrorCode = 0x2E
)

var errorCodeNames = map[ErrorCode]string{
	StatusNoError:                 "E_NO_ERROR",
	StatusHostProtocolType:        "E_HOST_PROTOCOL_TYPE",
	StatusVersionNotSupported:     "E_VERSION_NOT_SUPPORTED",
	StatusSequenceNumber:          "E_SEQUENCE_NUMBER",
	StatusError:                   "E_ERROR",
	StatusConnectionID:            "E_CONNECTION_ID",
	StatusConnectionType:          "E_CONNECTION_TYPE",
	StatusConnectionOption:        "E_CONNECTION_OPTION",
	StatusNoMoreConnections:       "E_NO_MORE_CONNECTIONS",
	StatusNoMoreUniqueConnections: "E_NO_MORE_UNIQUE_CONNECTIONS",
	StatusDataConnection:          "E_DATA_CONNECTION",
	StatusKNXConnection:           "E_KNX_CONNECTION",
	StatusAuthorisationError:      "E_AUTHORISATION_ERROR",
	StatusTunnellingLayer:         "E_TUNNELLING_LAYER",
	StatusNoTunnellingAddress:     "E_NO_TUNNELLING_ADDRESS",
	StatusConnectionInUse:         "E_CONNECTION_IN_USE",
}

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%#02x)", uint8(e))
}

// ConnectionType is the connection type of a CRI or CRD.
type ConnectionType uint8

const (
	DeviceManagementConnection ConnectionType = 0x03
	TunnelConnection           ConnectionType = 0x04
	RemoteLoggingConnection    ConnectionType = 0x06
	RemoteConfigConnection     ConnectionType = 0x07
	ObjectServerConnection     ConnectionType = 0x08
)

func (c ConnectionType) String() string {
	switch c {
	case DeviceManagementConnection:
		return "DEVICE_MGMT_CONNECTION"
	case TunnelConnection:
		return "TUNNEL_CONNECTION"
	case RemoteLoggingConnection:
		return "REMLOG_CONNECTION"
	case RemoteConfigConnection:
		return "REMCONF_CONNECTION"
	case ObjectServerConnection:
		return "OBJSVR_CONNECTION"
	default:
		return fmt.Sprintf("ConnectionType(%#02x)", uint8(c))
	}
}

// TunnelLayer selects the KNX layer a tunnel connection operates on.
type TunnelLayer uint8

const (
	TunnelLinkLayer  TunnelLayer = 0x02
	TunnelRaw        TunnelLayer = 0x04
	TunnelBusmonitor TunnelLayer = 0x80
)

// Medium is the KNX medium reported in device information.
type Medium uint8

const (
	MediumTP1   Medium = 0x02
	MediumPL110 Medium = 0x04
	MediumRF    Medium = 0x10
	MediumIP    Medium = 0x20
)

func (m Medium) String() string {
	switch m {
	case MediumTP1:
		return "TP1"
	case MediumPL110:
		return "PL110"
	case MediumRF:
		return "RF"
	case MediumIP:
		return "KNX_IP"
	default:
		return fmt.Sprintf("Medium(%#02x)", uint8(m))
	}
}

// ServiceFamily identifies a KNXnet/IP service family in DIBs and SRPs.
type ServiceFamily uint8

const (
	FamilyCore                  ServiceFamily = 0x02
	FamilyDeviceManagement      ServiceFamily = 0x03
	FamilyTunnelling            ServiceFamily = 0x04
	FamilyRouting               ServiceFamily = 0x05
	FamilyRemoteLogging         ServiceFamily = 0x06
	FamilyRemoteConfigDiagnosis ServiceFamily = 0x07
	FamilyObjectServer          ServiceFamily = 0x08
	FamilySecurity              ServiceFamily = 0x09
)

var familyNames = map[ServiceFamily]string{
	FamilyCore:                  "CORE",
	FamilyDeviceManagement:      "DEVICE_MANAGEMENT",
	FamilyTunnelling:            "TUNNELLING",
	FamilyRouting:               "ROUTING",
	FamilyRemoteLogging:         "REMOTE_LOGGING",
	FamilyRemoteConfigDiagnosis: "REMOTE_CONFIGURATION_DIAGNOSIS",
	FamilyObjectServer:          "OBJECT_SERVER",
	FamilySecurity:              "SECURITY",
}

func (f ServiceFamily) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("ServiceFamily(%#02x)", uint8(f))
}

// FeatureType identifies a tunnelling interface feature.
type FeatureType uint8

const (
	FeatureSupportedEMIType      FeatureType = 0x01
	FeatureDeviceDescriptorType0 FeatureType = 0x02
	FeatureBusConnectionStatus   FeatureType = 0x03
	FeatureManufacturerCode      FeatureType = 0x04
	FeatureActiveEMIType         FeatureType = 0x05
	FeatureIndividualAddress     FeatureType = 0x06
	FeatureMaxAPDULength         FeatureType = 0x07
	FeatureInfoServiceEnable     FeatureType = 0x08
)

// SessionStatusCode is the status of a SESSION_STATUS frame.
type SessionStatusCode uint8

const (
	AuthenticationSuccess SessionStatusCode = 0x00
	AuthenticationFailed  SessionStatusCode = 0x01
	Unauthenticated       SessionStatusCode = 0x02
	SessionTimeout        SessionStatusCode = 0x03
	SessionKeepalive      SessionStatusCode = 0x04
	SessionClose          SessionStatusCode = 0x05
)

func (s SessionStatusCode) String() string {
	switch s {
	case AuthenticationSuccess:
		return "STATUS_AUTHENTICATION_SUCCESS"
	case AuthenticationFailed:
		return "STATUS_AUTHENTICATION_FAILED"
	case Unauthenticated:
		return "STATUS_UNAUTHENTICATED"
	case SessionTimeout:
		return "STATUS_TIMEOUT"
	case SessionKeepalive:
		return "STATUS_KEEPALIVE"
	case SessionClose:
		return "STATUS_CLOSE"
	default:
		return fmt.Sprintf("SessionStatusCode(%#02x)", uint8(s))
	}
}
