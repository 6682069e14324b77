package buffer

import (
	"sync"

	util "github.com/tdnguyen214/framedb/internal/utils"
)

// clockEntry is one slot of the clock face: present marks membership in the
// candidate set, ref is the second-chance bit.
type clockEntry struct {
	present bool
	ref     bool
}

// ClockReplacer selects victims with a clock sweep over a fixed circular
// array, one entry per frame. Amortised O(1) per victim and two bits of state
// per frame; no per-access bookkeeping like LRU.
type ClockReplacer struct {
	mu    sync.RWMutex
	clock []clockEntry
	hand  int
	size  int
}

// NewClockReplacer creates a clock replacer over poolSize frames.
func NewClockReplacer(poolSize int) *ClockReplacer {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	return &ClockReplacer{clock: make([]clockEntry, poolSize)}
}

// Victim sweeps the clock from the hand: a referenced entry loses its ref bit
// and survives one more revolution, the first present entry without a ref bit
// is taken. The hand advances on every inspected slot, including past the
// chosen victim. A full sweep either finds a victim or clears every ref bit,
// so the sweep terminates whenever size > 0.
func (c *ClockReplacer) Victim(fid *util.FrameID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size == 0 {
		return false
	}
	for {
		entry := &c.clock[c.hand]
		if entry.present {
			if entry.ref {
				entry.ref = false
			} else {
				*fid = util.FrameID(c.hand)
				entry.present = false
				c.size--
				c.hand = (c.hand + 1) % len(c.clock)
				return true
			}
		}
		c.hand = (c.hand + 1) % len(c.clock)
	}
}

// Pin removes fid from the candidate set and clears its ref bit.
func (c *ClockReplacer) Pin(fid util.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &c.clock[fid]
	if entry.present {
		entry.present = false
		c.size--
	}
	entry.ref = false
}

// Unpin makes fid an eviction candidate and grants it a reference bit, so a
// freshly unpinned frame survives the next sweep.
func (c *ClockReplacer) Unpin(fid util.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &c.clock[fid]
	if !entry.present {
		entry.present = true
		c.size++
	}
	entry.ref = true
}

// Size returns the number of frames in the candidate set.
func (c *ClockReplacer) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}
