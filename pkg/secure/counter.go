package secure

import (
	"sync"
)

// SequenceCounter manages outgoing 48 bit sequence values.
// It is safe for concurrent use.
type SequenceCounter struct {
	value     uint64
	exhausted bool
	mu        sync.Mutex
}

// NewSequenceCounter creates a counter starting at 0.
func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{}
}

// NewSequenceCounterWithValue creates a counter with a specific initial value.
// Used for testing or restoring persisted counters.
func NewSequenceCounterWithValue(initial uint64) *SequenceCounter {
	return &SequenceCounter{
		value:     initial,
		exhausted: initial >= MaxSequence,
	}
}

// Next returns the next sequence value and increments the internal counter.
// Returns ErrSequenceExhausted once all 2^48 values have been handed out.
func (c *SequenceCounter) Next() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exhausted {
		return 0, ErrSequenceExhausted
	}

	current := c.value
	c.value++
	if c.value == MaxSequence {
		c.exhausted = true
	}

	return current, nil
}

// Current returns the next value without incrementing.
func (c *SequenceCounter) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// IsExhausted returns true if the counter has run out.
func (c *SequenceCounter) IsExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// ReceptionState tracks the last accepted peer sequence value.
// KNX secure sessions are strictly ordered, so there is no reorder window:
// anything not above the last accepted value is a replay.
type ReceptionState struct {
	last        uint64
	initialized bool
	mu          sync.Mutex
}

// NewReceptionState creates a reception state that will accept any first value.
func NewReceptionState() *ReceptionState {
	return &ReceptionState{}
}

// Check returns ErrReplay if seq would not be accepted. It does not change state.
func (r *ReceptionState) Check(seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check(seq)
}

func (r *ReceptionState) check(seq uint64) error {
	if r.initialized && seq <= r.last {
		return ErrReplay
	}
	return nil
}

// Accept records seq as received. Callers accept only after the MAC verified.
func (r *ReceptionState) Accept(seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(seq); err != nil {
		return err
	}
	r.last = seq
	r.initialized = true
	return nil
}

// Last returns the last accepted value and whether any value was accepted.
func (r *ReceptionState) Last() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.initialized
}
