package transport

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/deadline"
	"github.com/pion/transport/v3/test"
)

// inboxSize bounds the packets buffered per endpoint.
const inboxSize = 256

var errPipeTimeout = &pipeTimeoutError{}

type pipeTimeoutError struct{}

func (*pipeTimeoutError) Error() string   { return "pipe: i/o timeout" }
func (*pipeTimeoutError) Timeout() bool   { return true }
func (*pipeTimeoutError) Temporary() bool { return true }

// NetworkCondition configures network behavior simulation.
// Use this to test protocol behavior under adverse network conditions.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each packet.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each packet.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a packet (0.0 - 1.0).
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory packet communication between two endpoints.
// It wraps pion's test.Bridge and adds network condition simulation.
//
// By default, Pipe automatically delivers messages in a background goroutine.
// Use NewPipeWithConfig with AutoProcess false and call Process for manual
// control.
type Pipe struct {
	bridge *test.Bridge
	ends   [2]*endpoint

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	p.ends[0] = newEndpoint(p.bridge.GetConn0())
	p.ends[1] = newEndpoint(p.bridge.GetConn1())

	if p.autoProcess {
		p.wg.Add(1)
		go p.autoProcessLoop()
	}

	return p
}

func (p *Pipe) autoProcessLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.bridge.Tick()
		}
	}
}

// SetCondition configures network condition simulation.
// The conditions apply to packets in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Process delivers all queued packets to the endpoint inboxes, where they
// wait for ReadFrom or Read. Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for p.bridge.Len(0)+p.bridge.Len(1) > 0 {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			break
		}
		n := p.bridge.Tick()
		if n == 0 {
			// The pumps are not back in Read yet.
			time.Sleep(10 * time.Microsecond)
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.ends[0].Close()
	err1 := p.ends[1].Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PacketConns returns both endpoints as packet connections, suitable for
// the UDP transport.
func (p *Pipe) PacketConns() (*PipePacketConn, *PipePacketConn) {
	a0, a1 := PipeAddr{ID: 0, Port: 3671}, PipeAddr{ID: 1, Port: 3671}
	return &PipePacketConn{end: p.ends[0], local: a0, peer: a1, pipe: p},
		&PipePacketConn{end: p.ends[1], local: a1, peer: a0, pipe: p}
}

// StreamConns returns both endpoints as byte streams, suitable for TCPConn.
func (p *Pipe) StreamConns() (*PipeStreamConn, *PipeStreamConn) {
	a0, a1 := PipeAddr{ID: 0, Port: 3671}, PipeAddr{ID: 1, Port: 3671}
	return &PipeStreamConn{end: p.ends[0], pipe: p, local: a0, remote: a1},
		&PipeStreamConn{end: p.ends[1], pipe: p, local: a1, remote: a0}
}

// write applies the network condition to one outgoing packet.
func (p *Pipe) write(e *endpoint, b []byte) (int, error) {
	conn := e.conn
	p.mu.RLock()
	cond := p.condition
	drop := cond.DropRate > 0 && p.rng.Float64() < cond.DropRate
	dup := cond.DuplicateRate > 0 && p.rng.Float64() < cond.DuplicateRate
	delay := cond.DelayMin
	if cond.DelayMax > cond.DelayMin {
		delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
	}
	p.mu.RUnlock()

	if drop {
		return len(b), nil
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if dup {
		if _, err := conn.Write(b); err != nil {
			return 0, err
		}
	}
	return conn.Write(b)
}

// endpoint keeps one side of the bridge read at all times, so that Tick
// always finds a waiting reader, and buffers what it receives.
type endpoint struct {
	conn         net.Conn
	inbox        chan []byte
	readDeadline *deadline.Deadline
	done         chan struct{}
	closeOnce    sync.Once
	closeErr     error
}

func newEndpoint(conn net.Conn) *endpoint {
	e := &endpoint{
		conn:         conn,
		inbox:        make(chan []byte, inboxSize),
		readDeadline: deadline.New(),
		done:         make(chan struct{}),
	}
	go e.pump()
	return e
}

func (e *endpoint) pump() {
	defer close(e.inbox)
	for {
		buf := make([]byte, 1<<16)
		n, err := e.conn.Read(buf)
		if err != nil {
			return
		}
		select {
		case e.inbox <- buf[:n]:
		case <-e.done:
			return
		}
	}
}

// read returns the next packet.
func (e *endpoint) read() ([]byte, error) {
	select {
	case <-e.readDeadline.Done():
		return nil, errPipeTimeout
	default:
	}
	select {
	case b, ok := <-e.inbox:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-e.done:
		return nil, net.ErrClosed
	case <-e.readDeadline.Done():
		return nil, errPipeTimeout
	}
}

func (e *endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.closeErr = e.conn.Close()
		// Unblock the pump.
		_ = e.conn.SetReadDeadline(time.Now())
	})
	return e.closeErr
}

func (e *endpoint) SetDeadline(t time.Time) error {
	e.readDeadline.Set(t)
	return e.conn.SetWriteDeadline(t)
}

func (e *endpoint) SetReadDeadline(t time.Time) error {
	e.readDeadline.Set(t)
	return nil
}

func (e *endpoint) SetWriteDeadline(t time.Time) error {
	return e.conn.SetWriteDeadline(t)
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID   int // Endpoint ID (0 or 1)
	Port int // Logical port number
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d:%d", a.ID, a.Port) }

// PipePacketConn wraps a Pipe endpoint to implement net.PacketConn.
type PipePacketConn struct {
	end   *endpoint
	local PipeAddr
	peer  PipeAddr
	pipe  *Pipe
}

// ReadFrom reads a packet from the pipe.
// The returned address is the peer's address.
func (c *PipePacketConn) ReadFrom(b []byte) (n int, addr net.Addr, err error) {
	data, err := c.end.read()
	if err != nil {
		return 0, c.peer, err
	}
	return copy(b, data), c.peer, nil
}

// WriteTo writes a packet to the pipe.
// The addr parameter is ignored since the pipe has only one peer.
func (c *PipePacketConn) WriteTo(b []byte, addr net.Addr) (n int, err error) {
	return c.pipe.write(c.end, b)
}

func (c *PipePacketConn) Close() error                       { return c.end.Close() }
func (c *PipePacketConn) LocalAddr() net.Addr                { return c.local }
func (c *PipePacketConn) SetDeadline(t time.Time) error      { return c.end.SetDeadline(t) }
func (c *PipePacketConn) SetReadDeadline(t time.Time) error  { return c.end.SetReadDeadline(t) }
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.end.SetWriteDeadline(t) }

var _ net.PacketConn = (*PipePacketConn)(nil)

// PipeStreamConn gives a Pipe endpoint stream semantics. The bridge
// delivers whole packets, so the rest of a packet read into a short buffer
// is kept for the following reads. Writes go through the network
// condition, one packet per Write.
type PipeStreamConn struct {
	end    *endpoint
	pipe   *Pipe
	local  PipeAddr
	remote PipeAddr

	mu      sync.Mutex
	pending []byte
}

// Read reads buffered bytes first, then the next packet.
func (c *PipeStreamConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		data, err := c.end.read()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.pending = data
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends b as one packet.
func (c *PipeStreamConn) Write(b []byte) (int, error) {
	return c.pipe.write(c.end, b)
}

func (c *PipeStreamConn) Close() error                       { return c.end.Close() }
func (c *PipeStreamConn) LocalAddr() net.Addr                { return c.local }
func (c *PipeStreamConn) RemoteAddr() net.Addr               { return c.remote }
func (c *PipeStreamConn) SetDeadline(t time.Time) error      { return c.end.SetDeadline(t) }
func (c *PipeStreamConn) SetReadDeadline(t time.Time) error  { return c.end.SetReadDeadline(t) }
func (c *PipeStreamConn) SetWriteDeadline(t time.Time) error { return c.end.SetWriteDeadline(t) }

var _ net.Conn = (*PipeStreamConn)(nil)
