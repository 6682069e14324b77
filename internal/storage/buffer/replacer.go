package buffer

import (
	util "github.com/tdnguyen214/framedb/internal/utils"
)

// Replacer tracks the frames eligible for eviction and picks victims.
// The buffer pool calls every method under its own latch, so implementations
// only need an internal lock to keep Size readable from the outside.
type Replacer interface {
	// Victim selects an evictable frame, removes it from the candidate set
	// and writes its id to fid. Returns false when no candidate exists.
	Victim(fid *util.FrameID) bool

	// Pin removes a frame from the candidate set. Idempotent.
	Pin(fid util.FrameID)

	// Unpin adds a frame to the candidate set. Idempotent.
	Unpin(fid util.FrameID)

	// Size returns the number of candidate frames.
	Size() int
}

// NewReplacer builds the replacer for the given policy. Clock is the default.
func NewReplacer(policy util.ReplacerPolicy, poolSize int) Replacer {
	if policy == util.ReplacerLRU {
		return NewLRUReplacer(poolSize)
	}
	return NewClockReplacer(poolSize)
}
