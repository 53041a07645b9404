// Package discovery finds KNXnet/IP servers with SEARCH_REQUEST and
// SEARCH_REQUEST_EXTENDED on the KNXnet/IP multicast group.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 3 * time.Second

// DefaultLookupTimeout is the default timeout for lookup operations.
const DefaultLookupTimeout = 3 * time.Second

// responseBuffer bounds the responses queued per browse.
const responseBuffer = 16

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// Conn is an optional pre-existing PacketConn, used by tests.
	Conn net.PacketConn

	// ListenAddr is the local address to bind, ":0" if empty.
	ListenAddr string

	// Group is where search requests are sent.
	// If nil, 224.0.23.12:3671 is used.
	Group net.Addr

	// LocalAddr is announced as the discovery endpoint. If invalid, the
	// bound address is announced when it is a specific IPv4 address and
	// the route back endpoint otherwise.
	LocalAddr netip.AddrPort

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers KNXnet/IP servers. Several browse operations may run
// at once; each sees the responses of its own request type.
type Resolver struct {
	config  ResolverConfig
	udp     *transport.UDP
	log     logging.LeveledLogger
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
	subs   map[*subscription]struct{}
}

type response struct {
	body *knxip.SearchResponse
	peer transport.PeerAddress
}

type subscription struct {
	extended bool
	ch       chan response
}

// NewResolver creates a Resolver and starts listening for responses.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Group == nil {
		config.Group = net.UDPAddrFromAddrPort(netip.AddrPortFrom(knxip.DefaultMulticastAddr, knxip.DefaultPort))
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:  config,
		closeCh: make(chan struct{}),
		subs:    make(map[*subscription]struct{}),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("knx-discovery")
	}

	u, err := transport.NewUDP(transport.UDPConfig{
		Conn:          config.Conn,
		ListenAddr:    config.ListenAddr,
		FrameHandler:  r.handleFrame,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	if err := u.Start(); err != nil {
		_ = u.Stop()
		return nil, err
	}
	r.udp = u

	if !r.config.LocalAddr.IsValid() {
		if la, ok := u.LocalAddr().(*net.UDPAddr); ok {
			if ap := la.AddrPort(); ap.Addr().Unmap().Is4() && !ap.Addr().IsUnspecified() {
				r.config.LocalAddr = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
			}
		}
	}
	return r, nil
}

// LocalAddr returns the address responses are received on.
func (r *Resolver) LocalAddr() net.Addr {
	return r.udp.LocalAddr()
}

// Close stops the resolver. Running browse operations end.
func (r *Resolver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.closeCh)
	r.mu.Unlock()

	return r.udp.Stop()
}

// Browse sends a SEARCH_REQUEST and returns a channel that receives each
// answering server once, until the context is cancelled or the browse
// timeout expires.
func (r *Resolver) Browse(ctx context.Context) (<-chan Gateway, error) {
	return r.browse(ctx, &knxip.SearchRequest{Discovery: r.discovery()}, false)
}

// BrowseExtended sends a SEARCH_REQUEST_EXTENDED with the given search
// request parameters. Only servers satisfying all of them answer.
func (r *Resolver) BrowseExtended(ctx context.Context, params ...knxip.SRP) (<-chan Gateway, error) {
	req := &knxip.SearchRequestExtended{Discovery: r.discovery(), Parameters: params}
	return r.browse(ctx, req, true)
}

// BrowseProgrammingMode discovers servers in programming mode.
func (r *Resolver) BrowseProgrammingMode(ctx context.Context) (<-chan Gateway, error) {
	return r.BrowseExtended(ctx, knxip.SelectByProgrammingMode())
}

// BrowseService discovers servers supporting family in at least version.
func (r *Resolver) BrowseService(ctx context.Context, family knxip.ServiceFamily, version uint8) (<-chan Gateway, error) {
	return r.BrowseExtended(ctx, knxip.SelectByService(family, version))
}

// Lookup finds the server with the given MAC address.
func (r *Resolver) Lookup(ctx context.Context, mac net.HardwareAddr) (*Gateway, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("discovery: MAC address %v is not 6 bytes", mac)
	}
	var m [6]byte
	copy(m[:], mac)

	// Apply lookup timeout if context doesn't have a deadline
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
	}
	defer cancel()

	gateways, err := r.BrowseExtended(ctx, knxip.SelectByMACAddress(m))
	if err != nil {
		return nil, err
	}
	for g := range gateways {
		if bytes.Equal(g.MACAddress, mac) {
			return &g, nil
		}
	}

	select {
	case <-r.closeCh:
		return nil, ErrClosed
	default:
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return nil, ctx.Err()
}

func (r *Resolver) discovery() knxip.HPAI {
	if r.config.LocalAddr.IsValid() {
		return knxip.NewHPAI(r.config.LocalAddr)
	}
	return knxip.RouteBackHPAI(knxip.HostProtocolUDP)
}

// browse sends body and streams the deduplicated answers.
func (r *Resolver) browse(ctx context.Context, body knxip.Body, extended bool) (<-chan Gateway, error) {
	sub := &subscription{extended: extended, ch: make(chan response, responseBuffer)}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	// Apply browse timeout if context doesn't have a deadline
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	if r.log != nil {
		r.log.Debugf("sending %v to %v", body.ServiceType(), r.config.Group)
	}
	if err := r.udp.SendFrame(knxip.NewFrame(body), r.config.Group); err != nil {
		cancel()
		r.unsubscribe(sub)
		return nil, err
	}

	results := make(chan Gateway)
	go func() {
		defer close(results)
		defer cancel()
		defer r.unsubscribe(sub)

		seen := make(map[string]struct{})
		for {
			select {
			case resp := <-sub.ch:
				g := gatewayFromResponse(resp.body, resp.peer)
				if _, dup := seen[g.key()]; dup {
					continue
				}
				seen[g.key()] = struct{}{}
				select {
				case results <- g:
				case <-ctx.Done():
					return
				case <-r.closeCh:
					return
				}
			case <-ctx.Done():
				return
			case <-r.closeCh:
				return
			}
		}
	}()

	return results, nil
}

func (r *Resolver) unsubscribe(sub *subscription) {
	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
}

// handleFrame dispatches search responses to the running browse
// operations.
func (r *Resolver) handleFrame(rf *transport.ReceivedFrame) {
	f, err := rf.Parse()
	if err != nil {
		if r.log != nil {
			r.log.Debugf("ignoring frame from %v: %v", rf.Peer, err)
		}
		return
	}
	body, ok := f.Body.(*knxip.SearchResponse)
	if !ok {
		if r.log != nil {
			r.log.Tracef("ignoring %v from %v", f.Body.ServiceType(), rf.Peer)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		if sub.extended != body.Extended {
			continue
		}
		select {
		case sub.ch <- response{body: body, peer: rf.Peer}:
		default:
			if r.log != nil {
				r.log.Warnf("dropping search response from %v", rf.Peer)
			}
		}
	}
}
