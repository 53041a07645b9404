package knxip

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"net/netip"
	"strings"
	"testing"

	"github.com/backkem/knxip/pkg/telegram"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHeaderDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Header
		wantErr error
	}{
		{"tunnelling request", "061004200015", Header{ServiceTunnellingRequest, 0x15}, nil},
		{"short", "0610", Header{}, ErrIncompleteFrame},
		{"bad header length", "051004200015", Header{}, ErrCouldNotParseKNXIP},
		{"bad version", "061104200015", Header{}, ErrCouldNotParseKNXIP},
		{"total below header", "061004200005", Header{}, ErrCouldNotParseKNXIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Header
			err := h.Decode(mustHex(t, tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if h != tt.want {
				t.Errorf("Decode() = %v, want %v", h, tt.want)
			}
			if got := h.Encode(); !bytes.Equal(got, mustHex(t, tt.raw)) {
				t.Errorf("Encode() = %x", got)
			}
		})
	}
}

func TestParseFixtures(t *testing.T) {
	t.Run("tunnelling request", func(t *testing.T) {
		raw := mustHex(t, "06 10 04 20 00 15 04 01 17 00 11 00 BC E0 00 00 48 08 01 00 81")
		f, n, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if n != len(raw) {
			t.Errorf("consumed %d, want %d", n, len(raw))
		}
		req, ok := f.Body.(*TunnellingRequest)
		if !ok {
			t.Fatalf("body = %T", f.Body)
		}
		if req.Channel != 1 || req.Sequence != 0x17 {
			t.Errorf("channel/seq = %d/%d", req.Channel, req.Sequence)
		}
		if !bytes.Equal(req.CEMI, raw[10:]) {
			t.Errorf("CEMI = %x", req.CEMI)
		}
		assertReencode(t, f, raw)
	})

	t.Run("routing indication", func(t *testing.T) {
		raw := mustHex(t, "06 10 05 30 00 11 29 00 bc d0 11 59 0a de 01 00 81")
		f, _, err := Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		ind, ok := f.Body.(*RoutingIndication)
		if !ok {
			t.Fatalf("body = %T", f.Body)
		}
		if !bytes.Equal(ind.CEMI, raw[6:]) {
			t.Errorf("CEMI = %x", ind.CEMI)
		}
		assertReencode(t, f, raw)
	})

	t.Run("connect response", func(t *testing.T) {
		raw := mustHex(t, "06 10 02 06 00 14 01 00 08 01 c0 a8 2a 0a 0e 57 04 04 11 ff")
		f, _, err := Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		resp := f.Body.(*ConnectResponse)
		if resp.Channel != 1 || resp.Status != StatusNoError {
			t.Errorf("channel/status = %d/%v", resp.Channel, resp.Status)
		}
		if resp.Data.AddrPort() != netip.MustParseAddrPort("192.168.42.10:3671") {
			t.Errorf("data endpoint = %v", resp.Data)
		}
		if resp.CRD.IndividualAddress != telegram.MustParseIndividualAddress("1.1.255") {
			t.Errorf("address = %v", resp.CRD.IndividualAddress)
		}
		assertReencode(t, f, raw)
	})

	t.Run("connect response error", func(t *testing.T) {
		raw := mustHex(t, "06 10 02 06 00 08 00 24")
		f, _, err := Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		resp := f.Body.(*ConnectResponse)
		if resp.Status != StatusNoMoreConnections {
			t.Errorf("status = %v", resp.Status)
		}
		assertReencode(t, f, raw)
	})

	t.Run("secure wrapper", func(t *testing.T) {
		raw := mustHex(t, "06 10 09 50 00 37 00 00 c0 c1 c2 c3 c4 c5 00 fa 12 34 56 78 af fe"+
			"b7 ee 7e 8a 1c 2f 7b ba be c7 75 fd 6e 10 d0 bc 4b"+
			"72 12 a0 3a aa e4 9d a8 56 89 77 4c 1d 2b 4d a4")
		f, _, err := Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		w := f.Body.(*SecureWrapper)
		if w.SessionID != 0 || w.Sequence != 0xc0c1c2c3c4c5 || w.MessageTag != 0xaffe {
			t.Errorf("wrapper = %v", w)
		}
		if w.Serial.String() != "00fa12345678" {
			t.Errorf("serial = %v", w.Serial)
		}
		if len(w.EncryptedData) != 17 {
			t.Errorf("encrypted data of %d bytes", len(w.EncryptedData))
		}
		assertReencode(t, f, raw)
	})
}

func assertReencode(t *testing.T, f Frame, raw []byte) {
	t.Helper()
	if int(f.Header.TotalLength) != len(raw) {
		t.Errorf("TotalLength = %d, want %d", f.Header.TotalLength, len(raw))
	}
	enc, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(enc, raw) {
		t.Errorf("Encode() = %x, want %x", enc, raw)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"five bytes", "0610042000", ErrIncompleteFrame},
		{"body missing", "061004200015040117", ErrIncompleteFrame},
		{"unknown service", "061004990006", ErrCouldNotParseKNXIP},
		{"remote diag", "061007400006", ErrUnsupportedService},
		{"tunnelling ack too long", "06100421000b0401170000", ErrCouldNotParseKNXIP},
		{"bad connection header", "06100421000a05011700", ErrCouldNotParseKNXIP},
		{"session status too short", "061009540007 00", ErrCouldNotParseKNXIP},
		{"secure wrapper too short", "061009500008 0000", ErrCouldNotParseKNXIP},
		{"hpai bad length", "06100201000e 0901c0a82a0a0e57", ErrCouldNotParseKNXIP},
		{"hpai bad protocol", "06100201000e 0803c0a82a0a0e57", ErrCouldNotParseKNXIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(mustHex(t, tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
	if !errors.Is(ErrUnsupportedService, ErrCouldNotParseKNXIP) {
		t.Error("ErrUnsupportedService does not wrap ErrCouldNotParseKNXIP")
	}
}

func TestBodiesRoundTrip(t *testing.T) {
	ia := telegram.MustParseIndividualAddress("1.1.7")
	control := NewHPAI(netip.MustParseAddrPort("192.168.1.10:50100"))
	bodies := []Body{
		&SearchRequest{Discovery: control},
		&SearchRequestExtended{Discovery: control, Parameters: []SRP{
			SelectByProgrammingMode(),
			SelectByService(FamilyTunnelling, 2),
			RequestDIBs(DIBDeviceInfo, DIBSupportedServiceFamilies, DIBTunnellingInfo),
		}},
		&DescriptionRequest{Control: RouteBackHPAI(HostProtocolTCP)},
		&ConnectRequest{Control: control, Data: control, CRI: TunnelCRI()},
		&ConnectRequest{Control: control, Data: control, CRI: CRI{Type: TunnelConnection, Layer: TunnelLinkLayer, IndividualAddress: &ia}},
		&ConnectRequest{Control: control, Data: control, CRI: CRI{Type: DeviceManagementConnection}},
		&ConnectResponse{Channel: 3, Data: control, CRD: CRD{Type: DeviceManagementConnection}},
		NewConnectionStateRequest(3, control),
		NewConnectionStateResponse(3, StatusConnectionID),
		NewDisconnectRequest(3, control),
		NewDisconnectResponse(3, StatusNoError),
		NewDeviceConfigurationRequest(3, 9, []byte{0xFC, 0x00, 0x00, 0x01, 0x35, 0x10, 0x01}),
		NewDeviceConfigurationAck(3, 9, StatusNoError),
		NewTunnellingAck(1, 0x17, StatusNoError),
		&TunnellingFeature{Service: ServiceTunnellingFeatureGet, Channel: 1, Sequence: 2, Feature: FeatureIndividualAddress},
		&TunnellingFeature{Service: ServiceTunnellingFeatureResponse, Channel: 1, Sequence: 2, Feature: FeatureIndividualAddress, Value: []byte{0x11, 0x07}},
		&TunnellingFeature{Service: ServiceTunnellingFeatureSet, Channel: 1, Feature: FeatureInfoServiceEnable, Value: []byte{0x01, 0x00}},
		&TunnellingFeature{Service: ServiceTunnellingFeatureInfo, Channel: 1, Feature: FeatureBusConnectionStatus, Value: []byte{0x01, 0x00}},
		&RoutingSystemBroadcast{CEMI: []byte{0x29, 0x00, 0xb0, 0x60}},
		&RoutingLostMessage{DeviceState: 1, LostMessages: 300},
		&RoutingBusy{DeviceState: 0, WaitTime: 100, Control: 0},
		&SessionRequest{Control: RouteBackHPAI(HostProtocolTCP), PublicKey: [32]byte{1, 2, 3}},
		&SessionResponse{SessionID: 1, PublicKey: [32]byte{4}, MAC: [16]byte{5}},
		&SessionAuthenticate{UserID: 2, MAC: [16]byte{6}},
		&SessionStatus{Status: SessionKeepalive},
		&TimerNotify{Timer: 0x0102030405, Serial: SerialNumber{0, 0xfa, 1, 2, 3, 4}, MessageTag: 0xbeef, MAC: [16]byte{7}},
	}
	for _, body := range bodies {
		t.Run(body.ServiceType().String(), func(t *testing.T) {
			f := NewFrame(body)
			raw, err := f.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(raw) != f.Size() || int(f.Header.TotalLength) != len(raw) {
				t.Fatalf("encoded %d bytes, header says %d", len(raw), f.Header.TotalLength)
			}
			got, n, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if n != len(raw) || got.Header != f.Header {
				t.Errorf("header = %v, want %v", got.Header, f.Header)
			}
			again, err := got.Encode()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(again, raw) {
				t.Errorf("re-encoded %x, want %x", again, raw)
			}
		})
	}
}

func TestEncodeValidation(t *testing.T) {
	tests := []struct {
		name string
		body Body
	}{
		{"ipv6 hpai", &SearchRequest{Discovery: HPAI{Protocol: HostProtocolUDP, IP: netip.MustParseAddr("::2"), Port: 1}}},
		{"zero protocol", &DescriptionRequest{}},
		{"short mac srp", &SearchRequestExtended{Discovery: control(), Parameters: []SRP{{Type: SRPSelectByMACAddress, Data: []byte{1}}}}},
		{"feature set without value", &TunnellingFeature{Service: ServiceTunnellingFeatureSet}},
		{"feature with wrong service", &TunnellingFeature{Service: ServiceTunnellingAck}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFrame(tt.body).Encode(); !errors.Is(err, ErrInvalidBody) {
				t.Errorf("Encode() error = %v, want %v", err, ErrInvalidBody)
			}
		})
	}
}

func control() HPAI {
	return NewHPAI(netip.MustParseAddrPort("10.0.0.2:3671"))
}

func TestTunnellingFeaturePadding(t *testing.T) {
	b := &TunnellingFeature{Service: ServiceTunnellingFeatureSet, Channel: 1, Sequence: 0, Feature: FeatureInfoServiceEnable, Value: []byte{0x01}}
	raw, err := NewFrame(b).Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := mustHex(t, "06 10 04 24 00 0e 04 01 00 00 08 00 01 00")
	if !bytes.Equal(raw, want) {
		t.Errorf("Encode() = %x, want %x", raw, want)
	}
}

func TestParseAll(t *testing.T) {
	a := mustHex(t, "06 10 04 21 00 0a 04 01 17 00")
	b := mustHex(t, "06 10 05 30 00 11 29 00 bc d0 11 59 0a de 01 00 81")
	stream := append(append(append([]byte{}, a...), b...), b[:9]...)

	frames, rest, err := ParseAll(stream)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(rest, b[:9]) {
		t.Errorf("rest = %x", rest)
	}

	// Feeding the stream in arbitrary chunks yields the same frames.
	var pending []byte
	var got []Frame
	full := append(append([]byte{}, a...), b...)
	for i := 0; i < len(full); i += 5 {
		end := min(i+5, len(full))
		pending = append(pending, full[i:end]...)
		fs, r, err := ParseAll(pending)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, fs...)
		pending = append([]byte(nil), r...)
	}
	if len(got) != 2 || len(pending) != 0 {
		t.Errorf("chunked parse gave %d frames, %d pending bytes", len(got), len(pending))
	}

	bad := append(append([]byte{}, a...), mustHex(t, "06 11 04 21 00 0a")...)
	frames, rest, err = ParseAll(bad)
	if !errors.Is(err, ErrCouldNotParseKNXIP) || len(frames) != 1 || len(rest) != 6 {
		t.Errorf("ParseAll(bad) = %d frames, %d rest, %v", len(frames), len(rest), err)
	}
}

func TestStreamReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)
	if err := w.WriteFrame(NewFrame(NewTunnellingAck(1, 2, StatusNoError))); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(NewFrame(&SessionStatus{Status: SessionClose})); err != nil {
		t.Fatal(err)
	}

	r := NewStreamReader(&buf)
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if ack, ok := f.Body.(*TunnellingAck); !ok || ack.Sequence != 2 {
		t.Errorf("first frame = %v", f)
	}
	f, err = r.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if st, ok := f.Body.(*SessionStatus); !ok || st.Status != SessionClose {
		t.Errorf("second frame = %v", f)
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() at end = %v, want EOF", err)
	}

	r = NewStreamReader(bytes.NewReader(mustHex(t, "06 10 04 21 00 0a 04 01")))
	if _, err := r.Read(); !errors.Is(err, ErrStreamReadFailed) {
		t.Errorf("Read() truncated = %v", err)
	}
}
