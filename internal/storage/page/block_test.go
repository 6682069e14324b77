package page

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	util "github.com/tdnguyen214/framedb/internal/utils"
)

func TestBlockLayoutConstants(t *testing.T) {
	// 4096-byte pages with 16-byte pairs: 252 slots, 32 bitmap bytes each.
	assert.Equal(t, 252, BlockArraySize)
	assert.Equal(t, 32, bitmapBytes)
	assert.Equal(t, (util.PageSize*8)/(8*pairSize+2), BlockArraySize)
}

func TestBlockInsertRemoveCycle(t *testing.T) {
	p := NewPage()
	b := p.AsBlock()

	assert.True(t, b.Insert(3, 100, 200))
	assert.True(t, b.IsOccupied(3))
	assert.True(t, b.IsReadable(3))
	assert.Equal(t, int64(100), b.KeyAt(3))
	assert.Equal(t, int64(200), b.ValueAt(3))

	// A live slot rejects a second insert.
	assert.False(t, b.Insert(3, 101, 201))
	assert.Equal(t, int64(100), b.KeyAt(3), "losing insert left the record alone")

	// Remove leaves a tombstone: occupied without readable.
	b.Remove(3)
	assert.True(t, b.IsOccupied(3))
	assert.False(t, b.IsReadable(3))

	// A tombstoned slot accepts a fresh record.
	assert.True(t, b.Insert(3, 102, 202))
	assert.True(t, b.IsReadable(3))
	assert.Equal(t, int64(102), b.KeyAt(3))
	assert.Equal(t, int64(202), b.ValueAt(3))
}

func TestBlockEmptySlots(t *testing.T) {
	p := NewPage()
	b := p.AsBlock()

	for _, idx := range []int{0, 1, 100, BlockArraySize - 1} {
		assert.False(t, b.IsOccupied(idx), "slot %d starts unoccupied", idx)
		assert.False(t, b.IsReadable(idx), "slot %d starts unreadable", idx)
	}
}

func TestBlockBitLayoutOnPage(t *testing.T) {
	p := NewPage()
	b := p.AsBlock()

	// Bit i lives in byte i/8, MSB first: slot 0 -> 0x80, slot 9 -> byte 1,
	// 0x40. The raw page bytes are the persisted format.
	assert.True(t, b.Insert(0, 1, 1))
	assert.True(t, b.Insert(9, 2, 2))

	assert.Equal(t, byte(0x80), p.Data[0], "occupied bit for slot 0")
	assert.Equal(t, byte(0x40), p.Data[1], "occupied bit for slot 9")
	assert.Equal(t, byte(0x80), p.Data[bitmapBytes], "readable bit for slot 0")
	assert.Equal(t, byte(0x40), p.Data[bitmapBytes+1], "readable bit for slot 9")

	b.Remove(0)
	assert.Equal(t, byte(0x80), p.Data[0], "occupied bit is sticky")
	assert.Equal(t, byte(0x00), p.Data[bitmapBytes], "readable bit cleared")
}

func TestBlockRoundTripThroughPageBytes(t *testing.T) {
	src := NewPage()
	b := src.AsBlock()
	assert.True(t, b.Insert(10, 42, 43))
	assert.True(t, b.Insert(11, 44, 45))
	b.Remove(11)

	// Simulate disk I/O: copy the raw page bytes into another frame.
	dst := NewPage()
	dst.Data = src.Data

	view := dst.AsBlock()
	assert.True(t, view.IsReadable(10))
	assert.Equal(t, int64(42), view.KeyAt(10))
	assert.Equal(t, int64(43), view.ValueAt(10))
	assert.True(t, view.IsOccupied(11), "tombstone survives the round trip")
	assert.False(t, view.IsReadable(11))
}

func TestBlockConcurrentInsertSiblingBits(t *testing.T) {
	p := NewPage()
	b := p.AsBlock()

	// Slots 0..7 share one bitmap byte; concurrent claims must not tear.
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			assert.True(t, b.Insert(idx, int64(idx), int64(idx*10)))
		}(i)
	}
	wg.Wait()

	for i := range 8 {
		assert.True(t, b.IsOccupied(i), "slot %d occupied", i)
		assert.True(t, b.IsReadable(i), "slot %d readable", i)
		assert.Equal(t, int64(i), b.KeyAt(i))
	}
	assert.Equal(t, byte(0xFF), p.Data[0], "all eight sibling bits set")
}

func TestBlockConcurrentInsertSameSlot(t *testing.T) {
	p := NewPage()
	b := p.AsBlock()

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make([]bool, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			wins[n] = b.Insert(5, int64(n), int64(n))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one claim on a contested slot")
	assert.True(t, b.IsReadable(5))
}
