package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/pion/logging"
)

// TCPConn is a client KNXnet/IP TCP connection. Frames are delimited by the
// KNXnet/IP header total length; the read loop delivers whole frames.
type TCPConn struct {
	conn    net.Conn
	reader  *knxip.StreamReader
	writer  *knxip.StreamWriter
	handler FrameHandler
	closeCh chan struct{}
	doneCh  chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
	err     error
}

// TCPConfig configures a TCP connection.
type TCPConfig struct {
	// FrameHandler is called for each received frame.
	// Required.
	FrameHandler FrameHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DialTCP connects to a KNXnet/IP server. A missing port defaults to
// knxip.DefaultPort.
func DialTCP(ctx context.Context, addr string, config TCPConfig) (*TCPConn, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprint(knxip.DefaultPort))
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn, config)
}

// NewTCPConn wraps an established stream, such as a net.Pipe end or a
// PipeStreamConn in tests.
func NewTCPConn(conn net.Conn, config TCPConfig) (*TCPConn, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}

	t := &TCPConn{
		conn:    conn,
		reader:  knxip.NewStreamReader(conn),
		writer:  knxip.NewStreamWriter(conn),
		handler: config.FrameHandler,
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport-tcp")
	}
	return t, nil
}

// Start begins the read loop.
func (t *TCPConn) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("starting TCP connection to %s", t.conn.RemoteAddr())
	}

	t.wg.Add(1)
	go t.readLoop()
	return nil
}

// Send writes one encoded frame.
func (t *TCPConn) Send(data []byte) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrClosed
	}
	t.mu.RUnlock()

	if t.log != nil {
		t.log.Debugf("sending %d bytes to %v", len(data), t.conn.RemoteAddr())
	}
	_, err := t.writer.Write(data)
	return err
}

// SendFrame encodes and writes f.
func (t *TCPConn) SendFrame(f knxip.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return t.Send(data)
}

// Done is closed when the read loop exits, either after Close or because
// the peer closed the stream.
func (t *TCPConn) Done() <-chan struct{} {
	return t.doneCh
}

// Err returns the error that ended the read loop, nil on a clean close.
func (t *TCPConn) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// RemoteAddr returns the server address.
func (t *TCPConn) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Close closes the stream and waits for the read loop to exit.
func (t *TCPConn) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	started := t.started
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("closing TCP connection")
	}

	close(t.closeCh)
	err := t.conn.Close()
	t.wg.Wait()
	if !started {
		close(t.doneCh)
	}
	return err
}

func (t *TCPConn) readLoop() {
	defer t.wg.Done()
	defer close(t.doneCh)

	peer := NewTCPPeerAddress(t.conn.RemoteAddr())
	for {
		data, err := t.reader.Read()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			if !errors.Is(err, io.EOF) {
				if t.log != nil {
					t.log.Warnf("TCP read error: %v", err)
				}
				t.mu.Lock()
				t.err = err
				t.mu.Unlock()
			}
			return
		}

		t.handler(&ReceivedFrame{Data: data, Peer: peer})
	}
}
