package knxip

import (
	"errors"
	"fmt"
)

// Body is the service specific part of a KNXnet/IP frame. Decode is given
// exactly the body bytes and enforces the body's own length rules.
type Body interface {
	ServiceType() ServiceType
	Size() int
	EncodeTo(buf []byte) int
	Decode(data []byte) error
}

// validator is implemented by bodies whose fields can hold values that do
// not fit the wire format.
type validator interface {
	Validate() error
}

// Frame is a KNXnet/IP header and body.
type Frame struct {
	Header Header
	Body   Body
}

// NewFrame returns a frame with a header computed from body.
func NewFrame(body Body) Frame {
	return Frame{
		Header: Header{ServiceType: body.ServiceType(), TotalLength: uint16(HeaderLength + body.Size())},
		Body:   body,
	}
}

// Size returns the encoded frame length.
func (f Frame) Size() int {
	return HeaderLength + f.Body.Size()
}

// Encode serializes the frame. The header is recomputed from the body so
// the total length always matches the encoded size.
func (f Frame) Encode() ([]byte, error) {
	if f.Body == nil {
		return nil, fmt.Errorf("%w: frame without body", ErrInvalidBody)
	}
	if v, ok := f.Body.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	size := f.Size()
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrInvalidBody, size)
	}
	buf := make([]byte, size)
	h := Header{ServiceType: f.Body.ServiceType(), TotalLength: uint16(size)}
	off := h.EncodeTo(buf)
	f.Body.EncodeTo(buf[off:])
	return buf, nil
}

func (f Frame) String() string {
	if s, ok := f.Body.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("<%v %+v>", f.Header.ServiceType, f.Body)
}

// NewBody returns an empty body for st, ready to Decode.
func NewBody(st ServiceType) (Body, error) {
	switch st {
	case ServiceSearchRequest:
		return &SearchRequest{}, nil
	case ServiceSearchRequestExtended:
		return &SearchRequestExtended{}, nil
	case ServiceSearchResponse:
		return &SearchResponse{}, nil
	case ServiceSearchResponseExtended:
		return &SearchResponse{Extended: true}, nil
	case ServiceDescriptionRequest:
		return &DescriptionRequest{}, nil
	case ServiceDescriptionResponse:
		return &DescriptionResponse{}, nil
	case ServiceConnectRequest:
		return &ConnectRequest{}, nil
	case ServiceConnectResponse:
		return &ConnectResponse{}, nil
	case ServiceConnectionStateRequest:
		return &ConnectionStateRequest{}, nil
	case ServiceConnectionStateResponse:
		return &ConnectionStateResponse{}, nil
	case ServiceDisconnectRequest:
		return &DisconnectRequest{}, nil
	case ServiceDisconnectResponse:
		return &DisconnectResponse{}, nil
	case ServiceDeviceConfigurationRequest:
		return &DeviceConfigurationRequest{}, nil
	case ServiceDeviceConfigurationAck:
		return &DeviceConfigurationAck{}, nil
	case ServiceTunnellingRequest:
		return &TunnellingRequest{}, nil
	case ServiceTunnellingAck:
		return &TunnellingAck{}, nil
	case ServiceTunnellingFeatureGet, ServiceTunnellingFeatureResponse,
		ServiceTunnellingFeatureSet, ServiceTunnellingFeatureInfo:
		return &TunnellingFeature{Service: st}, nil
	case ServiceRoutingIndication:
		return &RoutingIndication{}, nil
	case ServiceRoutingLostMessage:
		return &RoutingLostMessage{}, nil
	case ServiceRoutingBusy:
		return &RoutingBusy{}, nil
	case ServiceRoutingSystemBroadcast:
		return &RoutingSystemBroadcast{}, nil
	case ServiceSecureWrapper:
		return &SecureWrapper{}, nil
	case ServiceSessionRequest:
		return &SessionRequest{}, nil
	case ServiceSessionResponse:
		return &SessionResponse{}, nil
	case ServiceSessionAuthenticate:
		return &SessionAuthenticate{}, nil
	case ServiceSessionStatus:
		return &SessionStatus{}, nil
	case ServiceTimerNotify:
		return &TimerNotify{}, nil
	}
	if st.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedService, st)
	}
	return nil, parseError("unknown service type %#04x", uint16(st))
}

// Parse decodes the first frame in data and returns it with the number of
// bytes consumed. ErrIncompleteFrame means data holds only a prefix of a
// frame; every other failure wraps ErrCouldNotParseKNXIP.
func Parse(data []byte) (Frame, int, error) {
	var h Header
	if err := h.Decode(data); err != nil {
		return Frame{}, 0, err
	}
	total := int(h.TotalLength)
	if len(data) < total {
		return Frame{}, 0, fmt.Errorf("%w: have %d of %d bytes", ErrIncompleteFrame, len(data), total)
	}
	body, err := NewBody(h.ServiceType)
	if err != nil {
		return Frame{}, 0, err
	}
	if err := body.Decode(data[HeaderLength:total]); err != nil {
		if !errors.Is(err, ErrCouldNotParseKNXIP) {
			err = fmt.Errorf("%w: %v: %w", ErrCouldNotParseKNXIP, h.ServiceType, err)
		}
		return Frame{}, 0, err
	}
	return Frame{Header: h, Body: body}, total, nil
}

// ParseAll decodes consecutive frames from a stream buffer. A trailing
// partial frame is returned in rest without error. On a parse error the
// frames decoded so far are returned and rest starts at the bad frame.
func ParseAll(buf []byte) (frames []Frame, rest []byte, err error) {
	for len(buf) > 0 {
		f, n, err := Parse(buf)
		if errors.Is(err, ErrIncompleteFrame) {
			break
		}
		if err != nil {
			return frames, buf, err
		}
		frames = append(frames, f)
		buf = buf[n:]
	}
	return frames, buf, nil
}
