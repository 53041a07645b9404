package tunnel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/backkem/knxip/pkg/capture"
	"github.com/backkem/knxip/pkg/cemi"
	"github.com/backkem/knxip/pkg/dpt"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCapture struct {
	mu     sync.Mutex
	events []capture.Event
}

func (r *recordingCapture) Log(e capture.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingCapture) snapshot() []capture.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Event(nil), r.events...)
}

func newConnectedClient(t *testing.T, s *fakeServer, config Config) *Client {
	t.Helper()
	s.start()
	c, err := NewClient(config)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func newTestSession(t *testing.T) *secure.Session {
	t.Helper()
	session, err := secure.NewSession(secure.SessionConfig{
		UserID:       2,
		UserPassword: "user",
		SerialNumber: knxip.SerialNumber{0x00, 0xfa, 0x12, 0x34, 0x56, 0x78},
		MessageTag:   0xaffe,
	})
	require.NoError(t, err)
	return session
}

func waitDisconnected(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("not disconnected")
	}
	assert.False(t, c.Connected())
}

func tunnellingCEMI(t *testing.T, f knxip.Frame) *cemi.Frame {
	t.Helper()
	req, ok := f.Body.(*knxip.TunnellingRequest)
	require.True(t, ok, "got %v", f.Body.ServiceType())
	frame, err := cemi.Decode(req.CEMI)
	require.NoError(t, err)
	return frame
}

func TestNewClientWithoutConn(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoConn)
}

func TestConnectAndSend(t *testing.T) {
	s, conn := newFakeServer(t)
	c := newConnectedClient(t, s, Config{Conn: conn})

	assert.True(t, c.Connected())
	assert.Equal(t, uint8(7), c.Channel())
	assert.Equal(t, telegram.MustParseIndividualAddress("1.1.250"), c.IndividualAddress())

	ga := telegram.MustParseGroupAddress("1/2/3")
	for seq := range uint8(3) {
		require.NoError(t, c.Send(context.Background(), telegram.GroupWrite(ga, dpt.NewBit(1))))

		f := s.next(t)
		assert.Equal(t, seq, f.Body.(*knxip.TunnellingRequest).Sequence)
		assert.Equal(t, uint8(7), f.Body.(*knxip.TunnellingRequest).Channel)

		frame := tunnellingCEMI(t, f)
		assert.Equal(t, cemi.LDataReq, frame.Code)
		assert.Equal(t, c.IndividualAddress(), frame.Source)
		assert.Equal(t, uint16(ga), frame.Destination.Raw())
		assert.Equal(t, telegram.GroupValueWrite, frame.APCI)
	}

	require.NoError(t, c.Close(context.Background()))
	f := s.next(t)
	assert.IsType(t, &knxip.DisconnectRequest{}, f.Body)
	assert.False(t, c.Connected())

	err := c.Send(context.Background(), telegram.GroupRead(ga))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectRequestedAddress(t *testing.T) {
	s, conn := newFakeServer(t)
	want := telegram.MustParseIndividualAddress("1.1.42")
	c := newConnectedClient(t, s, Config{Conn: conn, IndividualAddress: &want})
	assert.Equal(t, want, c.IndividualAddress())

	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnectRejected(t *testing.T) {
	s, conn := newFakeServer(t)
	s.connectStatus = knxip.StatusNoMoreConnections
	s.start()

	c, err := NewClient(Config{Conn: conn})
	require.NoError(t, err)
	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.False(t, c.Connected())
	require.NoError(t, c.Close(context.Background()))
}

func TestSendRepeatsOnce(t *testing.T) {
	s, conn := newFakeServer(t)
	s.dropAcks = 1
	c := newConnectedClient(t, s, Config{Conn: conn, AckTimeout: 50 * time.Millisecond})

	ga := telegram.MustParseGroupAddress("0/0/1")
	require.NoError(t, c.Send(context.Background(), telegram.GroupRead(ga)))

	first, second := s.next(t), s.next(t)
	assert.Equal(t, uint8(0), first.Body.(*knxip.TunnellingRequest).Sequence)
	assert.Equal(t, uint8(0), second.Body.(*knxip.TunnellingRequest).Sequence)
}

func TestSendTimeout(t *testing.T) {
	s, conn := newFakeServer(t)
	s.dropAcks = sendAttempts
	c := newConnectedClient(t, s, Config{Conn: conn, AckTimeout: 20 * time.Millisecond})

	ga := telegram.MustParseGroupAddress("0/0/1")
	err := c.Send(context.Background(), telegram.GroupRead(ga))
	assert.ErrorIs(t, err, ErrTimeout)

	// Both attempts reach the server, then the tunnel is given up.
	for range sendAttempts {
		assert.IsType(t, &knxip.TunnellingRequest{}, s.next(t).Body)
	}
	disconnect, ok := s.next(t).Body.(*knxip.DisconnectRequest)
	require.True(t, ok)
	assert.Equal(t, c.Channel(), disconnect.Channel)
	waitDisconnected(t, c)

	assert.ErrorIs(t, c.Send(context.Background(), telegram.GroupRead(ga)), ErrNotConnected)
}

func TestSendAckLossDisconnects(t *testing.T) {
	s, conn := newFakeServer(t)
	c := newConnectedClient(t, s, Config{Conn: conn, AckTimeout: 20 * time.Millisecond})

	s.pipe.SetCondition(transport.NetworkCondition{DropRate: 1})
	err := c.Send(context.Background(), telegram.GroupRead(telegram.MustParseGroupAddress("0/0/1")))
	assert.ErrorIs(t, err, ErrTimeout)
	waitDisconnected(t, c)
}

func TestDuplicatedFrames(t *testing.T) {
	s, conn := newFakeServer(t)
	got := make(chan telegram.Telegram, 4)
	c := newConnectedClient(t, s, Config{
		Conn:            conn,
		TelegramHandler: func(tg telegram.Telegram) { got <- tg },
	})
	s.pipe.SetCondition(transport.NetworkCondition{DuplicateRate: 1})

	// Duplicated acks do not confuse the next request.
	ga := telegram.MustParseGroupAddress("3/1/4")
	for seq := range uint8(2) {
		require.NoError(t, c.Send(context.Background(), telegram.GroupRead(ga)))
		for range 2 {
			assert.Equal(t, seq, s.next(t).Body.(*knxip.TunnellingRequest).Sequence)
		}
	}

	// A duplicated indication is delivered once and acked for each copy.
	ind := telegram.GroupWrite(ga, dpt.NewBit(1))
	ind.Source = telegram.MustParseIndividualAddress("1.1.9")
	data, err := cemi.FromTelegram(ind, cemi.LDataInd).Encode()
	require.NoError(t, err)
	s.send(knxip.NewTunnellingRequest(c.Channel(), 0, data))
	for range 4 {
		ack, ok := s.next(t).Body.(*knxip.TunnellingAck)
		require.True(t, ok)
		assert.Equal(t, uint8(0), ack.Sequence)
	}
	assert.Len(t, got, 1)
	assert.True(t, c.Connected())
}

func TestSendAckStatus(t *testing.T) {
	s, conn := newFakeServer(t)
	s.ackStatus = knxip.StatusConnectionID
	c := newConnectedClient(t, s, Config{Conn: conn})

	err := c.Send(context.Background(), telegram.GroupRead(telegram.MustParseGroupAddress("0/0/1")))
	assert.ErrorIs(t, err, ErrAckStatus)
}

func TestSendContextCanceled(t *testing.T) {
	s, conn := newFakeServer(t)
	s.dropAcks = sendAttempts
	c := newConnectedClient(t, s, Config{Conn: conn})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, telegram.GroupRead(telegram.MustParseGroupAddress("0/0/1")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReceiveTelegram(t *testing.T) {
	s, conn := newFakeServer(t)
	got := make(chan telegram.Telegram, 4)
	c := newConnectedClient(t, s, Config{
		Conn:            conn,
		TelegramHandler: func(tg telegram.Telegram) { got <- tg },
	})

	ind := telegram.GroupWrite(telegram.MustParseGroupAddress("2/0/5"), dpt.Array{0x0c, 0x1a})
	ind.Source = telegram.MustParseIndividualAddress("1.1.5")
	data, err := cemi.FromTelegram(ind, cemi.LDataInd).Encode()
	require.NoError(t, err)

	s.send(knxip.NewTunnellingRequest(c.Channel(), 0, data))
	select {
	case tg := <-got:
		assert.Equal(t, ind.Source, tg.Source)
		assert.Equal(t, telegram.Incoming, tg.Direction)
		assert.Equal(t, dpt.Array{0x0c, 0x1a}, tg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("telegram not delivered")
	}
	ack := s.next(t).Body.(*knxip.TunnellingAck)
	assert.Equal(t, uint8(0), ack.Sequence)

	// A repeated request is acked again but not delivered.
	s.send(knxip.NewTunnellingRequest(c.Channel(), 0, data))
	ack = s.next(t).Body.(*knxip.TunnellingAck)
	assert.Equal(t, uint8(0), ack.Sequence)

	// L_Data.con frames are acked and dropped.
	con, err := cemi.FromTelegram(ind, cemi.LDataCon).Encode()
	require.NoError(t, err)
	s.send(knxip.NewTunnellingRequest(c.Channel(), 1, con))
	ack = s.next(t).Body.(*knxip.TunnellingAck)
	assert.Equal(t, uint8(1), ack.Sequence)

	// Foreign channels are ignored.
	s.send(knxip.NewTunnellingRequest(c.Channel()+1, 2, data))

	assert.Empty(t, got)
}

func TestServerDisconnect(t *testing.T) {
	s, conn := newFakeServer(t)
	c := newConnectedClient(t, s, Config{Conn: conn})

	s.send(knxip.NewDisconnectRequest(c.Channel(), knxip.RouteBackHPAI(knxip.HostProtocolTCP)))
	resp, ok := s.next(t).Body.(*knxip.DisconnectResponse)
	require.True(t, ok)
	assert.Equal(t, c.Channel(), resp.Channel)
	waitDisconnected(t, c)
}

func TestHeartbeat(t *testing.T) {
	s, conn := newFakeServer(t)
	c := newConnectedClient(t, s, Config{Conn: conn})
	assert.NoError(t, c.Heartbeat(context.Background()))
}

func TestSecureTunnel(t *testing.T) {
	s, conn := newFakeServer(t)
	session := newTestSession(t)

	rec := &recordingCapture{}
	c := newConnectedClient(t, s, Config{Conn: conn, Secure: session, Capture: rec})
	assert.Equal(t, secure.StateEstablished, session.State())
	assert.Equal(t, uint16(3), session.SessionID())

	require.NoError(t, c.Send(context.Background(), telegram.GroupRead(telegram.MustParseGroupAddress("1/0/0"))))
	assert.Equal(t, cemi.LDataReq, tunnellingCEMI(t, s.next(t)).Code)

	require.NoError(t, c.Heartbeat(context.Background()))
	keepalive := s.next(t).Body.(*knxip.SessionStatus)
	assert.Equal(t, knxip.SessionKeepalive, keepalive.Status)

	require.NoError(t, c.Close(context.Background()))
	assert.IsType(t, &knxip.DisconnectRequest{}, s.next(t).Body)
	status := s.next(t).Body.(*knxip.SessionStatus)
	assert.Equal(t, knxip.SessionClose, status.Status)
	assert.Equal(t, secure.StateClosed, session.State())

	// Everything after the session request travels wrapped and is
	// captured in plaintext.
	events := rec.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, knxip.ServiceSessionRequest, events[0].ServiceType)
	assert.False(t, events[0].Secure)
	var secureOut int
	for _, e := range events {
		assert.Equal(t, c.ConnectionID(), e.ConnectionID)
		assert.NotEqual(t, knxip.ServiceSecureWrapper, e.ServiceType)
		if e.Secure && e.Direction == capture.DirectionOut {
			secureOut++
		}
	}
	assert.GreaterOrEqual(t, secureOut, 5)
}

func TestSecureHeartbeatDuringIndications(t *testing.T) {
	s, conn := newFakeServer(t)
	session := newTestSession(t)

	const n = 20
	got := make(chan telegram.Telegram, n)
	c := newConnectedClient(t, s, Config{
		Conn:            conn,
		Secure:          session,
		TelegramHandler: func(tg telegram.Telegram) { got <- tg },
	})

	ind := telegram.GroupWrite(telegram.MustParseGroupAddress("4/0/1"), dpt.NewBit(1))
	ind.Source = telegram.MustParseIndividualAddress("1.1.8")
	data, err := cemi.FromTelegram(ind, cemi.LDataInd).Encode()
	require.NoError(t, err)

	// Keepalives and the acks the read loop writes share one wrapper
	// sequence; the server fails the test if they reach it out of order.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range n {
			if err := c.Heartbeat(context.Background()); err != nil {
				t.Errorf("Heartbeat() error = %v", err)
				return
			}
		}
	}()
	for seq := range uint8(n) {
		s.send(knxip.NewTunnellingRequest(c.Channel(), seq, data))
	}
	wg.Wait()

	for i := range n {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("telegram %d not delivered", i)
		}
	}
	assert.Equal(t, secure.StateEstablished, session.State())
	assert.True(t, c.Connected())
}

func TestSecureAuthenticationRejected(t *testing.T) {
	s, conn := newFakeServer(t)
	s.authStatus = knxip.AuthenticationFailed
	s.start()

	session, err := secure.NewSession(secure.SessionConfig{UserID: 2, UserPassword: "wrong"})
	require.NoError(t, err)
	c, err := NewClient(Config{Conn: conn, Secure: session})
	require.NoError(t, err)

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, secure.ErrAuthenticationFailed)
	assert.Equal(t, secure.StateFailed, session.State())
	assert.False(t, c.Connected())
	require.NoError(t, c.Close(context.Background()))
}
