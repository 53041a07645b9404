package tunnel

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/backkem/knxip/pkg/crypto"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/transport"
)

// fakeServer is an in-memory KNXnet/IP tunnelling server. It answers
// handshake, connect, connection state and disconnect requests and
// acknowledges tunnelling requests. Everything else the client sends is
// queued on received. Secure wrappers from the client must arrive in
// strictly increasing sequence order.
type fakeServer struct {
	t       *testing.T
	pipe    *transport.Pipe
	conn    net.Conn
	reader  *knxip.StreamReader
	channel uint8
	address telegram.IndividualAddress

	// Behaviour switches, set before the client connects.
	connectStatus knxip.ErrorCode
	ackStatus     knxip.ErrorCode
	dropAcks      int
	authStatus    knxip.SessionStatusCode

	mu        sync.Mutex
	keyPair   *crypto.KeyPair
	key       []byte
	sessionID uint16
	seq       uint64
	serial    knxip.SerialNumber
	recv      *secure.ReceptionState

	// writeMu keeps the server's own wrapper sequence in wire order.
	writeMu sync.Mutex

	received chan knxip.Frame
	done     chan struct{}
}

func newFakeServer(t *testing.T) (*fakeServer, net.Conn) {
	t.Helper()
	p := transport.NewPipe()
	clientConn, serverConn := p.StreamConns()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{
		t:          t,
		pipe:       p,
		conn:       serverConn,
		reader:     knxip.NewStreamReader(serverConn),
		channel:    7,
		address:    telegram.MustParseIndividualAddress("1.1.250"),
		authStatus: knxip.AuthenticationSuccess,
		keyPair:    kp,
		sessionID:  3,
		serial:     knxip.SerialNumber{0x00, 0xfa, 0xaa, 0xaa, 0xaa, 0xaa},
		recv:       secure.NewReceptionState(),
		received:   make(chan knxip.Frame, 128),
		done:       make(chan struct{}),
	}
	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		<-s.done
		_ = p.Close()
	})
	return s, clientConn
}

func (s *fakeServer) start() {
	go s.loop()
}

func (s *fakeServer) loop() {
	defer close(s.done)
	for {
		f, err := s.reader.ReadFrame()
		if err != nil {
			return
		}
		if w, ok := f.Body.(*knxip.SecureWrapper); ok {
			s.mu.Lock()
			key := s.key
			s.mu.Unlock()
			data, err := secure.DecryptWrapper(key, w)
			if err != nil {
				s.t.Errorf("server: %v", err)
				return
			}
			if err := s.recv.Accept(w.Sequence); err != nil {
				last, _ := s.recv.Last()
				s.t.Errorf("server: wrapper sequence %d after %d: %v", w.Sequence, last, err)
			}
			if f, _, err = knxip.Parse(data); err != nil {
				s.t.Errorf("server: %v", err)
				return
			}
		}
		s.handle(f)
	}
}

func (s *fakeServer) handle(f knxip.Frame) {
	hpai := knxip.RouteBackHPAI(knxip.HostProtocolTCP)
	switch b := f.Body.(type) {
	case *knxip.SessionRequest:
		shared, err := s.keyPair.SharedSecret(b.PublicKey[:])
		if err != nil {
			s.t.Errorf("server: %v", err)
			return
		}
		// The response goes out before the key is set, in plaintext.
		s.send(&knxip.SessionResponse{SessionID: s.sessionID, PublicKey: s.keyPair.PublicKey()})
		s.mu.Lock()
		s.key = crypto.SessionKey(shared)
		s.mu.Unlock()
	case *knxip.SessionAuthenticate:
		s.send(&knxip.SessionStatus{Status: s.authStatus})
	case *knxip.ConnectRequest:
		resp := &knxip.ConnectResponse{Channel: s.channel, Status: s.connectStatus}
		if s.connectStatus == knxip.StatusNoError {
			resp.Data = hpai
			resp.CRD = knxip.CRD{Type: knxip.TunnelConnection, IndividualAddress: s.address}
			if b.CRI.IndividualAddress != nil {
				resp.CRD.IndividualAddress = *b.CRI.IndividualAddress
			}
		}
		s.send(resp)
	case *knxip.ConnectionStateRequest:
		s.send(knxip.NewConnectionStateResponse(b.Channel, knxip.StatusNoError))
	case *knxip.DisconnectRequest:
		s.received <- f
		s.send(knxip.NewDisconnectResponse(b.Channel, knxip.StatusNoError))
	case *knxip.TunnellingRequest:
		s.received <- f
		s.mu.Lock()
		drop := s.dropAcks > 0
		if drop {
			s.dropAcks--
		}
		s.mu.Unlock()
		if !drop {
			s.send(knxip.NewTunnellingAck(b.Channel, b.Sequence, s.ackStatus))
		}
	default:
		s.received <- f
	}
}

// send writes body, wrapped once the session key is known.
func (s *fakeServer) send(body knxip.Body) {
	data, err := knxip.NewFrame(body).Encode()
	if err != nil {
		s.t.Errorf("server: %v", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.key != nil {
		data, err = secure.EncryptFrame(s.key, s.sessionID, data, s.seq, s.serial, 0)
		s.seq++
	}
	s.mu.Unlock()
	if err != nil {
		s.t.Errorf("server: %v", err)
		return
	}

	if _, err := s.conn.Write(data); err != nil {
		s.t.Logf("server write: %v", err)
	}
}

// next returns the next queued frame from the client.
func (s *fakeServer) next(t *testing.T) knxip.Frame {
	t.Helper()
	select {
	case f := <-s.received:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client frame")
		return knxip.Frame{}
	}
}
