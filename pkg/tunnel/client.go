// Package tunnel implements a KNXnet/IP tunnelling client over TCP, with
// optional KNX IP Secure session authentication.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/backkem/knxip/pkg/capture"
	"github.com/backkem/knxip/pkg/cemi"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// TelegramHandler is called from the read loop for every telegram received
// on the tunnel. It must not block on the client, e.g. by calling Send.
type TelegramHandler func(t telegram.Telegram)

// Config configures a tunnelling client.
type Config struct {
	// Conn is the stream to the KNXnet/IP server.
	// Required.
	Conn net.Conn

	// Secure enables secure tunnelling. The session must be idle; Connect
	// runs the handshake.
	Secure *secure.Session

	// IndividualAddress requests a specific tunnelling address with an
	// extended CRI. If nil the server assigns one.
	IndividualAddress *telegram.IndividualAddress

	// TelegramHandler receives L_Data.ind telegrams.
	TelegramHandler TelegramHandler

	// Capture records every frame sent and received. Secure frames are
	// recorded in plaintext.
	Capture capture.Logger

	// ResponseTimeout bounds handshake, connect and disconnect exchanges.
	// Default: DefaultResponseTimeout.
	ResponseTimeout time.Duration

	// AckTimeout bounds each wait for a tunnelling ack.
	// Default: DefaultAckTimeout.
	AckTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client is a tunnelling connection to one KNXnet/IP server.
type Client struct {
	conn       *transport.TCPConn
	remote     string
	session    *secure.Session
	reqAddr    *telegram.IndividualAddress
	handler    TelegramHandler
	capture    capture.Logger
	connID     uuid.UUID
	timeout    time.Duration
	ackTimeout time.Duration
	log        logging.LeveledLogger

	// writeMu keeps wrapper sequence numbers in wire order.
	writeMu sync.Mutex
	// sendMu allows one outstanding tunnelling request.
	sendMu sync.Mutex

	mu           sync.Mutex
	connected    bool
	channel      uint8
	address      telegram.IndividualAddress
	sendSeq      uint8
	recvSeq      uint8
	waiters      []*waiter
	disconnectCh chan struct{}
}

type waiter struct {
	match func(knxip.Frame) bool
	ch    chan knxip.Frame
}

// NewClient creates a client on an established stream. Call Connect to
// open the tunnel.
func NewClient(config Config) (*Client, error) {
	if config.Conn == nil {
		return nil, ErrNoConn
	}

	c := &Client{
		remote:       config.Conn.RemoteAddr().String(),
		session:      config.Secure,
		reqAddr:      config.IndividualAddress,
		handler:      config.TelegramHandler,
		capture:      config.Capture,
		connID:       uuid.New(),
		timeout:      config.ResponseTimeout,
		ackTimeout:   config.AckTimeout,
		disconnectCh: make(chan struct{}),
	}
	if c.capture == nil {
		c.capture = capture.NoopLogger{}
	}
	if c.timeout == 0 {
		c.timeout = DefaultResponseTimeout
	}
	if c.ackTimeout == 0 {
		c.ackTimeout = DefaultAckTimeout
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("knx-tunnel")
	}

	conn, err := transport.NewTCPConn(config.Conn, transport.TCPConfig{
		FrameHandler:  c.handleFrame,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// ConnectionID identifies this client in capture events.
func (c *Client) ConnectionID() uuid.UUID {
	return c.connID
}

// Connected reports whether the tunnel is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Channel returns the communication channel assigned by the server.
func (c *Client) Channel() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// IndividualAddress returns the tunnelling address assigned by the server.
func (c *Client) IndividualAddress() telegram.IndividualAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Disconnected is closed when the server ends the tunnel or the secure
// session.
func (c *Client) Disconnected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectCh
}

// Connect authenticates the secure session, if configured, and opens a
// link layer tunnel.
func (c *Client) Connect(ctx context.Context) error {
	if c.Connected() {
		return ErrAlreadyConnected
	}
	if err := c.conn.Start(); err != nil && !errors.Is(err, transport.ErrAlreadyStarted) {
		return err
	}

	if c.session != nil {
		if err := c.handshake(ctx); err != nil {
			return err
		}
	}

	hpai := knxip.RouteBackHPAI(knxip.HostProtocolTCP)
	cri := knxip.TunnelCRI()
	cri.IndividualAddress = c.reqAddr
	req := &knxip.ConnectRequest{Control: hpai, Data: hpai, CRI: cri}

	f, err := c.request(ctx, c.timeout, knxip.NewFrame(req), bodyIs[*knxip.ConnectResponse])
	if err != nil {
		return err
	}
	resp := f.Body.(*knxip.ConnectResponse)
	if resp.Status != knxip.StatusNoError {
		return fmt.Errorf("%w: %v", ErrConnectFailed, resp.Status)
	}

	c.mu.Lock()
	c.connected = true
	c.channel = resp.Channel
	c.address = resp.CRD.IndividualAddress
	c.sendSeq = 0
	c.recvSeq = 0
	select {
	case <-c.disconnectCh:
		c.disconnectCh = make(chan struct{})
	default:
	}
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("tunnel connected: channel %d, address %v", resp.Channel, resp.CRD.IndividualAddress)
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	req, err := c.session.Request(knxip.RouteBackHPAI(knxip.HostProtocolTCP))
	if err != nil {
		return err
	}
	f, err := c.request(ctx, c.timeout, knxip.NewFrame(req), bodyIs[*knxip.SessionResponse])
	if err != nil {
		return err
	}

	auth, err := c.session.HandleResponse(f.Body.(*knxip.SessionResponse))
	if err != nil {
		return err
	}
	f, err = c.request(ctx, c.timeout, knxip.NewFrame(auth), bodyIs[*knxip.SessionStatus])
	if err != nil {
		return err
	}
	if err := c.session.HandleStatus(f.Body.(*knxip.SessionStatus)); err != nil {
		return err
	}

	if c.log != nil {
		c.log.Infof("secure session %d established", c.session.SessionID())
	}
	return nil
}

// Send transmits t as an L_Data.req and waits for the tunnelling ack. A
// zero source is replaced with the tunnel's individual address. The
// request is repeated once if no ack arrives in time; if the repeat is not
// acked either, the tunnel is disconnected and ErrTimeout returned.
func (c *Client) Send(ctx context.Context, t telegram.Telegram) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	channel, seq := c.channel, c.sendSeq
	if t.Source == 0 {
		t.Source = c.address
	}
	c.mu.Unlock()

	data, err := cemi.FromTelegram(t, cemi.LDataReq).Encode()
	if err != nil {
		return err
	}
	req := knxip.NewFrame(knxip.NewTunnellingRequest(channel, seq, data))
	match := func(f knxip.Frame) bool {
		ack, ok := f.Body.(*knxip.TunnellingAck)
		return ok && ack.Channel == channel && ack.Sequence == seq
	}

	var f knxip.Frame
	for attempt := 1; ; attempt++ {
		f, err = c.request(ctx, c.ackTimeout, req, match)
		if !errors.Is(err, ErrTimeout) || attempt == sendAttempts {
			break
		}
		if c.log != nil {
			c.log.Debugf("repeating tunnelling request %d", seq)
		}
	}
	if errors.Is(err, ErrTimeout) {
		c.terminate(channel)
		return err
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sendSeq++
	c.mu.Unlock()

	if status := f.Body.(*knxip.TunnellingAck).Status; status != knxip.StatusNoError {
		return fmt.Errorf("%w: %v", ErrAckStatus, status)
	}
	return nil
}

// Heartbeat sends a secure session keepalive, if applicable, and checks the
// tunnel with a connection state request.
func (c *Client) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	channel := c.channel
	c.mu.Unlock()

	if c.session != nil && c.session.State() == secure.StateEstablished {
		plain := knxip.NewFrame(&knxip.SessionStatus{Status: knxip.SessionKeepalive})
		if err := c.writeSecure(plain, c.session.Keepalive); err != nil {
			return err
		}
	}

	req := knxip.NewConnectionStateRequest(channel, knxip.RouteBackHPAI(knxip.HostProtocolTCP))
	f, err := c.request(ctx, c.timeout, knxip.NewFrame(req), func(f knxip.Frame) bool {
		resp, ok := f.Body.(*knxip.ConnectionStateResponse)
		return ok && resp.Channel == channel
	})
	if err != nil {
		return err
	}
	if status := f.Body.(*knxip.ConnectionStateResponse).Status; status != knxip.StatusNoError {
		c.markDisconnected()
		return fmt.Errorf("%w: %v", ErrNotConnected, status)
	}
	return nil
}

// Close disconnects the tunnel, closes the secure session and the stream.
// The stream is closed even if the server does not answer.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	channel := c.channel
	c.connected = false
	c.mu.Unlock()

	var err error
	if connected {
		req := knxip.NewDisconnectRequest(channel, knxip.RouteBackHPAI(knxip.HostProtocolTCP))
		_, err = c.request(ctx, c.timeout, knxip.NewFrame(req), func(f knxip.Frame) bool {
			resp, ok := f.Body.(*knxip.DisconnectResponse)
			return ok && resp.Channel == channel
		})
		if err != nil && c.log != nil {
			c.log.Warnf("disconnect: %v", err)
		}
	}

	if c.session != nil && c.session.State() == secure.StateEstablished {
		plain := knxip.NewFrame(&knxip.SessionStatus{Status: knxip.SessionClose})
		if werr := c.writeSecure(plain, c.session.Close); werr != nil && err == nil {
			err = werr
		}
	}

	c.markDisconnected()
	if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, transport.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// request sends f and waits for the first received frame accepted by match.
func (c *Client) request(ctx context.Context, timeout time.Duration, f knxip.Frame, match func(knxip.Frame) bool) (knxip.Frame, error) {
	w := &waiter{match: match, ch: make(chan knxip.Frame, 1)}
	c.addWaiter(w)
	defer c.removeWaiter(w)

	if err := c.send(f); err != nil {
		return knxip.Frame{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-timer.C:
		return knxip.Frame{}, fmt.Errorf("%w: %v", ErrTimeout, f.Body.ServiceType())
	case <-ctx.Done():
		return knxip.Frame{}, ctx.Err()
	case <-c.conn.Done():
		return knxip.Frame{}, ErrConnectionLost
	}
}

func (c *Client) addWaiter(w *waiter) {
	c.mu.Lock()
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
}

func (c *Client) removeWaiter(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.waiters {
		if x == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// deliver hands f to the first matching waiter.
func (c *Client) deliver(f knxip.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w.match(f) {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			w.ch <- f
			return true
		}
	}
	return false
}

// send writes f, inside a SecureWrapper once the session is keyed.
func (c *Client) send(f knxip.Frame) error {
	if c.session == nil || f.Body.ServiceType() == knxip.ServiceSessionRequest {
		return c.write(f, false)
	}
	switch c.session.State() {
	case secure.StateAuthenticating, secure.StateEstablished:
	default:
		return c.write(f, false)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wrapped, err := c.session.Wrap(f)
	if err != nil {
		return err
	}
	return c.writeLocked(f, wrapped, true)
}

func (c *Client) write(f knxip.Frame, wrapped bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(f, f, wrapped)
}

// writeSecure writes the frame wrap produces. wrap takes a sequence number
// from the session, so it runs under writeMu like Wrap in send.
func (c *Client) writeSecure(plain knxip.Frame, wrap func() (knxip.Frame, error)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wrapped, err := wrap()
	if err != nil {
		return err
	}
	return c.writeLocked(plain, wrapped, true)
}

func (c *Client) writeLocked(plain, out knxip.Frame, wrapped bool) error {
	data, err := out.Encode()
	if err != nil {
		return err
	}
	event := capture.NewFrameEvent(c.connID, capture.DirectionOut, data)
	event.RemoteAddr = c.remote
	if wrapped {
		event.Secure = true
		event.ServiceType = plain.Body.ServiceType()
		event.Data, _ = plain.Encode()
	}
	c.capture.Log(event)

	if c.log != nil {
		c.log.Tracef("send %v", plain)
	}
	return c.conn.Send(data)
}

func (c *Client) handleFrame(rf *transport.ReceivedFrame) {
	event := capture.NewFrameEvent(c.connID, capture.DirectionIn, rf.Data)
	event.RemoteAddr = c.remote

	f, err := rf.Parse()
	if err != nil {
		event.Error = err.Error()
		c.capture.Log(event)
		if c.log != nil {
			c.log.Warnf("dropping frame: %v", err)
		}
		return
	}

	if f.Body.ServiceType() == knxip.ServiceSecureWrapper {
		if err := c.unwrap(&f); err != nil {
			event.Error = err.Error()
			c.capture.Log(event)
			if c.log != nil {
				c.log.Warnf("dropping secure frame: %v", err)
			}
			if c.session != nil && c.session.State().IsTerminal() {
				c.markDisconnected()
			}
			return
		}
		event.Secure = true
		event.ServiceType = f.Body.ServiceType()
		event.Data, _ = f.Encode()
	}
	c.capture.Log(event)

	if c.log != nil {
		c.log.Tracef("recv %v", f)
	}
	c.dispatch(f)
}

func (c *Client) unwrap(f *knxip.Frame) error {
	if c.session == nil {
		return secure.ErrInvalidState
	}
	inner, err := c.session.Unwrap(*f)
	if err != nil {
		return err
	}
	*f = inner
	return nil
}

func (c *Client) dispatch(f knxip.Frame) {
	switch b := f.Body.(type) {
	case *knxip.TunnellingRequest:
		c.handleTunnellingRequest(b)
		return
	case *knxip.DisconnectRequest:
		c.handleDisconnectRequest(b)
		return
	}

	if c.deliver(f) {
		return
	}

	switch b := f.Body.(type) {
	case *knxip.SessionStatus:
		if c.session == nil {
			return
		}
		if err := c.session.HandleStatus(b); err != nil {
			if c.log != nil {
				c.log.Warnf("secure session ended: %v", err)
			}
			c.markDisconnected()
		}
	default:
		if c.log != nil {
			c.log.Debugf("unexpected %v", f.Body.ServiceType())
		}
	}
}

func (c *Client) handleTunnellingRequest(req *knxip.TunnellingRequest) {
	c.mu.Lock()
	if !c.connected || req.Channel != c.channel {
		c.mu.Unlock()
		if c.log != nil {
			c.log.Debugf("tunnelling request for unknown channel %d", req.Channel)
		}
		return
	}
	channel := c.channel
	switch req.Sequence {
	case c.recvSeq:
		c.recvSeq++
	case c.recvSeq - 1:
		// Repeated because our ack was lost: ack again, do not deliver.
		c.mu.Unlock()
		c.ack(channel, req.Sequence)
		return
	default:
		expected := c.recvSeq
		c.mu.Unlock()
		if c.log != nil {
			c.log.Warnf("tunnelling request sequence %d, expected %d", req.Sequence, expected)
		}
		return
	}
	c.mu.Unlock()
	c.ack(channel, req.Sequence)

	frame, err := cemi.Decode(req.CEMI)
	if err != nil {
		if c.log != nil {
			if cemi.IsUnsupported(err) {
				c.log.Debugf("ignoring cEMI: %v", err)
			} else {
				c.log.Warnf("invalid cEMI: %v", err)
			}
		}
		return
	}
	if frame.Code != cemi.LDataInd {
		// L_Data.con of our own requests.
		return
	}
	if c.handler != nil {
		c.handler(frame.Telegram())
	}
}

func (c *Client) ack(channel, seq uint8) {
	ack := knxip.NewTunnellingAck(channel, seq, knxip.StatusNoError)
	if err := c.send(knxip.NewFrame(ack)); err != nil && c.log != nil {
		c.log.Warnf("tunnelling ack %d: %v", seq, err)
	}
}

func (c *Client) handleDisconnectRequest(req *knxip.DisconnectRequest) {
	c.mu.Lock()
	if !c.connected || req.Channel != c.channel {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("server closed channel %d", req.Channel)
	}
	resp := knxip.NewDisconnectResponse(req.Channel, knxip.StatusNoError)
	if err := c.send(knxip.NewFrame(resp)); err != nil && c.log != nil {
		c.log.Warnf("disconnect response: %v", err)
	}
	c.markDisconnected()
}

// terminate gives up a tunnel that stopped acknowledging. The disconnect
// request is not waited for.
func (c *Client) terminate(channel uint8) {
	if c.log != nil {
		c.log.Warnf("no tunnelling ack on channel %d, disconnecting", channel)
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	req := knxip.NewDisconnectRequest(channel, knxip.RouteBackHPAI(knxip.HostProtocolTCP))
	if err := c.send(knxip.NewFrame(req)); err != nil && c.log != nil {
		c.log.Warnf("disconnect: %v", err)
	}
	c.markDisconnected()
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	select {
	case <-c.disconnectCh:
	default:
		close(c.disconnectCh)
	}
}

func bodyIs[T knxip.Body](f knxip.Frame) bool {
	_, ok := f.Body.(T)
	return ok
}
