package secure

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/knxip/pkg/crypto"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/pion/logging"
)

// DefaultLatencyTolerance is the default multicast latency tolerance.
const DefaultLatencyTolerance = 2 * time.Second

// GroupConfig configures a secure routing context.
type GroupConfig struct {
	// BackboneKey is the 16 byte key shared by all routers of the backbone.
	BackboneKey []byte

	// SerialNumber is sent in every wrapper and timer notify.
	SerialNumber knxip.SerialNumber

	// LatencyTolerance bounds how far a received timer value may lag the
	// local timer. Defaults to DefaultLatencyTolerance.
	LatencyTolerance time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// GroupContext secures multicast routing frames. The wrapper sequence
// field carries a shared millisecond timer instead of a per sender counter;
// freshness is judged against the local copy of that timer.
type GroupContext struct {
	key       []byte
	serial    knxip.SerialNumber
	tolerance uint64
	clock     func() time.Time

	// offset is added to the local clock in milliseconds.
	offset int64

	log logging.LeveledLogger
	mu  sync.Mutex
}

// NewGroupContext creates a group context.
func NewGroupContext(config GroupConfig) (*GroupContext, error) {
	if len(config.BackboneKey) != crypto.KeySize {
		return nil, fmt.Errorf("%w: backbone key", ErrInvalidKey)
	}
	g := &GroupContext{
		key:       append([]byte(nil), config.BackboneKey...),
		serial:    config.SerialNumber,
		tolerance: uint64(DefaultLatencyTolerance.Milliseconds()),
		clock:     config.Clock,
	}
	if config.LatencyTolerance > 0 {
		g.tolerance = uint64(config.LatencyTolerance.Milliseconds())
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	if config.LoggerFactory != nil {
		g.log = config.LoggerFactory.NewLogger("knx-secure-group")
	}
	return g, nil
}

// Timer returns the current group timer value in milliseconds.
func (g *GroupContext) Timer() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer()
}

func (g *GroupContext) timer() uint64 {
	return uint64(g.clock().UnixMilli()+g.offset) % MaxSequence
}

// SetTimer synchronises the local timer to value.
func (g *GroupContext) SetTimer(value uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offset = int64(value) - g.clock().UnixMilli()
}

// checkFreshness applies the timer rules to a received value: a value ahead
// of the local timer advances it, a value within the latency tolerance is
// accepted, anything older is stale.
func (g *GroupContext) checkFreshness(received uint64) error {
	local := g.timer()
	if received > local {
		g.offset += int64(received - local)
		return nil
	}
	if local < g.tolerance || received > local-g.tolerance {
		return nil
	}
	if g.log != nil {
		g.log.Debugf("stale timer value %d, local %d", received, local)
	}
	return fmt.Errorf("%w: timer %d behind local %d", ErrReplay, received, local)
}

// Wrap encrypts frame for multicast using the current timer value and a
// random message tag.
func (g *GroupContext) Wrap(frame knxip.Frame) (knxip.Frame, error) {
	data, err := frame.Encode()
	if err != nil {
		return knxip.Frame{}, err
	}
	tag, err := randomTag()
	if err != nil {
		return knxip.Frame{}, err
	}

	g.mu.Lock()
	seq := g.timer()
	g.mu.Unlock()

	w, err := EncryptWrapper(g.key, 0, data, seq, g.serial, tag)
	if err != nil {
		return knxip.Frame{}, err
	}
	return knxip.NewFrame(w), nil
}

// Unwrap verifies and decrypts a received wrapper, then checks its timer
// freshness. Only an authentic wrapper advances the local timer.
func (g *GroupContext) Unwrap(frame knxip.Frame) (knxip.Frame, error) {
	w, ok := frame.Body.(*knxip.SecureWrapper)
	if !ok {
		return knxip.Frame{}, ErrNotSecureWrapper
	}
	if w.SessionID != 0 {
		return knxip.Frame{}, fmt.Errorf("%w: multicast wrapper with session %d", ErrWrongSession, w.SessionID)
	}

	inner, err := decryptInner(g.key, w)
	if err != nil {
		if err == ErrSecurityFailure && g.log != nil {
			g.log.Warnf("MAC verification failed for wrapper from %v", w.Serial)
		}
		return knxip.Frame{}, err
	}

	g.mu.Lock()
	err = g.checkFreshness(w.Sequence)
	g.mu.Unlock()
	if err != nil {
		return knxip.Frame{}, err
	}
	return inner, nil
}

func timerNotifyBlocks(timer uint64, serial knxip.SerialNumber, tag uint16) (ad []byte, block0, counter0 [crypto.BlockSize]byte) {
	ad = knxip.Header{ServiceType: knxip.ServiceTimerNotify, TotalLength: knxip.HeaderLength + knxip.TimerNotifySize}.Encode()
	return ad, Block0(timer, serial, tag, 0), Counter0(timer, serial, tag)
}

// TimerNotify builds an authenticated TIMER_NOTIFY with the current timer
// value. A zero tag is replaced by a random one.
func (g *GroupContext) TimerNotify(tag uint16) (*knxip.TimerNotify, error) {
	if tag == 0 {
		var err error
		if tag, err = randomTag(); err != nil {
			return nil, err
		}
	}
	timer := g.Timer()

	ad, block0, counter0 := timerNotifyBlocks(timer, g.serial, tag)
	mac, err := crypto.CBCMAC(g.key, ad, nil, block0)
	if err != nil {
		return nil, err
	}
	_, encMAC, err := crypto.EncryptCTR(g.key, counter0, mac, nil)
	if err != nil {
		return nil, err
	}
	return &knxip.TimerNotify{Timer: timer, Serial: g.serial, MessageTag: tag, MAC: encMAC}, nil
}

// HandleTimerNotify verifies a received TIMER_NOTIFY and applies its timer
// value. A stale value returns ErrReplay; the caller should answer with an
// update notify carrying the sender's serial and tag.
func (g *GroupContext) HandleTimerNotify(tn *knxip.TimerNotify) error {
	ad, block0, counter0 := timerNotifyBlocks(tn.Timer, tn.Serial, tn.MessageTag)
	want, err := crypto.CBCMAC(g.key, ad, nil, block0)
	if err != nil {
		return err
	}
	_, got, err := crypto.DecryptCTR(g.key, counter0, tn.MAC, nil)
	if err != nil {
		return err
	}
	if !crypto.EqualMAC(got, want) {
		return ErrSecurityFailure
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkFreshness(tn.Timer)
}

func randomTag() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
