package secure

import (
	"testing"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGroup(t *testing.T) (*GroupContext, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	g, err := NewGroupContext(GroupConfig{
		BackboneKey:  unhex(t, routingKey),
		SerialNumber: serial(t, "00fa12345678"),
		Clock:        clock.Now,
	})
	require.NoError(t, err)
	return g, clock
}

func TestGroupUnwrapVector(t *testing.T) {
	g, _ := newTestGroup(t)

	f, _, err := knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)

	inner, err := g.Unwrap(f)
	require.NoError(t, err)
	assert.IsType(t, &knxip.RoutingIndication{}, inner.Body)

	// A timer value ahead of the local one advances the local timer.
	assert.Equal(t, uint64(routingSeq), g.Timer())
}

func TestGroupFreshness(t *testing.T) {
	g, clock := newTestGroup(t)
	g.SetTimer(50_000)

	sender, err := NewGroupContext(GroupConfig{
		BackboneKey: unhex(t, routingKey),
		Clock:       clock.Now,
	})
	require.NoError(t, err)
	sender.SetTimer(50_000)

	wrapped, err := sender.Wrap(knxip.NewFrame(&knxip.RoutingIndication{CEMI: []byte{0x29, 0x00}}))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), wrapped.Body.(*knxip.SecureWrapper).SessionID)

	clock.Advance(500 * time.Millisecond)
	_, err = g.Unwrap(wrapped)
	assert.NoError(t, err, "within latency tolerance")

	clock.Advance(2 * time.Second)
	_, err = g.Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrReplay)
}

func TestGroupDefaultLatencyTolerance(t *testing.T) {
	g, clock := newTestGroup(t)
	g.SetTimer(50_000)
	wrapped, err := g.Wrap(knxip.NewFrame(&knxip.RoutingIndication{CEMI: []byte{0x29, 0x00}}))
	require.NoError(t, err)

	clock.Advance(1900 * time.Millisecond)
	_, err = g.Unwrap(wrapped)
	assert.NoError(t, err)

	clock.Advance(200 * time.Millisecond)
	_, err = g.Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrReplay)
}

func TestGroupForgedTimerDoesNotAdvance(t *testing.T) {
	g, _ := newTestGroup(t)
	before := g.Timer()

	f, _, err := knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)
	w := f.Body.(*knxip.SecureWrapper)
	w.Sequence += 1_000_000_000

	_, err = g.Unwrap(f)
	assert.ErrorIs(t, err, ErrSecurityFailure)
	assert.Equal(t, before, g.Timer())

	// The authentic wrapper is still fresh.
	f, _, err = knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)
	_, err = g.Unwrap(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(routingSeq), g.Timer())
}

func TestGroupUnwrapRejects(t *testing.T) {
	g, _ := newTestGroup(t)

	_, err := g.Unwrap(knxip.NewFrame(&knxip.RoutingIndication{}))
	assert.ErrorIs(t, err, ErrNotSecureWrapper)

	f, _, err := knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)
	f.Body.(*knxip.SecureWrapper).SessionID = 7
	_, err = g.Unwrap(f)
	assert.ErrorIs(t, err, ErrWrongSession)

	f, _, err = knxip.Parse(unhex(t, routingWrapper))
	require.NoError(t, err)
	f.Body.(*knxip.SecureWrapper).EncryptedData[0] ^= 0x80
	_, err = g.Unwrap(f)
	assert.ErrorIs(t, err, ErrSecurityFailure)
}

func TestTimerNotify(t *testing.T) {
	g, clock := newTestGroup(t)
	g.SetTimer(10_000)

	tn, err := g.TimerNotify(0xaffe)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), tn.Timer)
	assert.Equal(t, uint16(0xaffe), tn.MessageTag)

	// Round trip through the wire format.
	data, err := knxip.NewFrame(tn).Encode()
	require.NoError(t, err)
	f, _, err := knxip.Parse(data)
	require.NoError(t, err)
	received := f.Body.(*knxip.TimerNotify)

	peer, err := NewGroupContext(GroupConfig{BackboneKey: unhex(t, routingKey), Clock: clock.Now})
	require.NoError(t, err)
	peer.SetTimer(5_000)
	require.NoError(t, peer.HandleTimerNotify(received))
	assert.Equal(t, uint64(10_000), peer.Timer())

	received.MAC[0] ^= 0x01
	assert.ErrorIs(t, peer.HandleTimerNotify(received), ErrSecurityFailure)
	received.MAC[0] ^= 0x01

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, peer.HandleTimerNotify(received), ErrReplay)
}

func TestTimerNotifyRandomTag(t *testing.T) {
	g, _ := newTestGroup(t)
	tn, err := g.TimerNotify(0)
	require.NoError(t, err)
	require.NoError(t, g.HandleTimerNotify(tn))
}

func TestNewGroupContextInvalidKey(t *testing.T) {
	_, err := NewGroupContext(GroupConfig{BackboneKey: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInvalidKey)
}
