package transport

import (
	"net"
	"sync"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/pion/logging"
)

// UDP carries KNXnet/IP frames over datagrams: unicast for discovery and
// device management, multicast for routing. Every received datagram is
// passed to the FrameHandler from a single read loop.
type UDP struct {
	conn    net.PacketConn
	handler FrameHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new connection will be created using ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":3671").
	// Ignored if Conn or MulticastGroup is provided.
	ListenAddr string

	// MulticastGroup joins a multicast group such as 224.0.23.12:3671 for
	// routing. Interface selects the interface, nil for the system default.
	MulticastGroup *net.UDPAddr
	Interface      *net.Interface

	// FrameHandler is called for each received frame.
	// Required.
	FrameHandler FrameHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a new UDP transport with the given configuration.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}

	u := &UDP{
		conn:    config.Conn,
		handler: config.FrameHandler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	switch {
	case u.conn != nil:
	case config.MulticastGroup != nil:
		conn, err := net.ListenMulticastUDP("udp4", config.Interface, config.MulticastGroup)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	default:
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}
		conn, err := net.ListenPacket("udp4", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// Start begins the read loop for receiving frames.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("starting UDP transport on %s", u.conn.LocalAddr())
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Stop closes the transport and waits for the read loop to exit.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Info("stopping UDP transport")
	}

	close(u.closeCh)

	// Unblock any pending read
	u.conn.SetReadDeadline(time.Now())
	u.conn.Close()
	u.wg.Wait()

	return nil
}

// Send sends a frame to the specified address.
func (u *UDP) Send(data []byte, addr net.Addr) error {
	u.mu.RLock()
	if u.closed {
		u.mu.RUnlock()
		return ErrClosed
	}
	u.mu.RUnlock()

	if addr == nil {
		return ErrInvalidAddress
	}
	if len(data) > MaxDatagramSize {
		return ErrFrameTooLarge
	}

	if u.log != nil {
		u.log.Debugf("sending %d bytes to %v", len(data), addr)
	}

	if _, err := u.conn.WriteTo(data, addr); err != nil {
		if u.log != nil {
			u.log.Warnf("send failed: %v", err)
		}
		return err
	}
	return nil
}

// SendFrame encodes f and sends it to addr.
func (u *UDP) SendFrame(f knxip.Frame, addr net.Addr) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return u.Send(data, addr)
}

// LocalAddr returns the local address the transport is listening on.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// readLoop reads datagrams from the connection and dispatches them.
func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxDatagramSize)

	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
				if u.log != nil {
					u.log.Warnf("UDP read error: %v", err)
				}
				continue
			}
		}

		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if u.log != nil {
			u.log.Tracef("received %d bytes from %v", n, addr)
		}

		u.handler(&ReceivedFrame{
			Data: data,
			Peer: NewUDPPeerAddress(addr),
		})
	}
}

// udpPeerConn binds a UDP transport to a single peer.
type udpPeerConn struct {
	u    *UDP
	peer net.Addr
}

// Bind returns a Conn that sends every frame to peer.
func (u *UDP) Bind(peer net.Addr) Conn {
	return &udpPeerConn{u: u, peer: peer}
}

func (c *udpPeerConn) Send(data []byte) error { return c.u.Send(data, c.peer) }

func (c *udpPeerConn) SendFrame(f knxip.Frame) error { return c.u.SendFrame(f, c.peer) }
func (c *udpPeerConn) Close() error           { return c.u.Stop() }
