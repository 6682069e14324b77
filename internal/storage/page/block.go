package page

import (
	"sync/atomic"
	"unsafe"

	util "github.com/tdnguyen214/framedb/internal/utils"
)

// Pair is one key/value slot of a block page.
type Pair struct {
	Key   int64
	Value int64
}

const (
	pairSize = int(unsafe.Sizeof(Pair{}))

	// BlockArraySize is the number of slots per block page, chosen so the two
	// bitmaps plus the slot array fill PageSize exactly: each slot costs
	// 8*pairSize bits of payload and 2 bits of metadata.
	BlockArraySize = (util.PageSize * 8) / (8*pairSize + 2)

	bitmapBytes = (BlockArraySize-1)/8 + 1
	bitmapWords = (bitmapBytes + 3) / 4
)

// BlockPage is a typed view over a frame's buffer: a slotted key/value array
// preceded by two bitmaps. A slot is occupied once it has ever held a record
// (the bit is sticky) and readable while it currently holds a live one;
// occupied without readable is a tombstone.
//
// The bitmaps are addressed bit i -> byte i/8, MSB first, and that byte
// layout is the persisted format. They are held as uint32 words so that
// claiming a bit is a word-wide atomic: concurrent inserts into sibling bits
// of the same byte must not tear. Word addressing below assumes little-endian
// byte order, like the rest of the on-disk format.
type BlockPage struct {
	occupied [bitmapWords]uint32
	readable [bitmapWords]uint32
	slots    [BlockArraySize]Pair
}

// Layout must fill the page exactly; both directions of the size assertion
// fail to compile on a mismatch.
var (
	_ [util.PageSize - int(unsafe.Sizeof(BlockPage{}))]byte
	_ [int(unsafe.Sizeof(BlockPage{})) - util.PageSize]byte
)

// AsBlockPage reinterprets a page buffer as a block page. The buffer is the
// backing store; no copy is made.
func AsBlockPage(buf *[util.PageSize]byte) *BlockPage {
	return (*BlockPage)(unsafe.Pointer(buf))
}

// AsBlock reinterprets the frame's buffer as a block page. Callers hold the
// frame latch in the mode matching their access, as for raw Data.
func (p *Page) AsBlock() *BlockPage {
	return AsBlockPage(&p.Data)
}

// bitMask is the MSB-first in-byte mask table. Bit i of a bitmap lives in
// byte i/8 under bitMask[i%8].
var bitMask = [8]byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}

// wordMask locates slot idx's bit inside the word-addressed bitmap.
func wordMask(idx int) (word int, mask uint32) {
	byteIdx := idx / 8
	mask = uint32(bitMask[idx%8]) << (8 * uint(byteIdx%4))
	return byteIdx / 4, mask
}

// KeyAt returns the key at slot idx. Unchecked: callers index valid slots.
func (b *BlockPage) KeyAt(idx int) int64 {
	return b.slots[idx].Key
}

// ValueAt returns the value at slot idx. Unchecked.
func (b *BlockPage) ValueAt(idx int) int64 {
	return b.slots[idx].Value
}

// Insert attempts to claim slot idx for the given pair. It returns false if
// the slot already holds a live record. The readable bit is claimed with a
// compare-and-swap so racing inserters aiming at sibling bits in the same
// byte cannot lose updates; the loser of a race on the same slot sees the
// bit set and backs off.
func (b *BlockPage) Insert(idx int, key, value int64) bool {
	w, mask := wordMask(idx)
	for {
		old := atomic.LoadUint32(&b.readable[w])
		if old&mask != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&b.readable[w], old, old|mask) {
			break
		}
	}
	atomic.OrUint32(&b.occupied[w], mask)
	b.slots[idx] = Pair{Key: key, Value: value}
	return true
}

// Remove deletes the record at slot idx in place, leaving a tombstone: the
// readable bit is cleared, the occupied bit stays set.
func (b *BlockPage) Remove(idx int) {
	w, mask := wordMask(idx)
	atomic.AndUint32(&b.readable[w], ^mask)
}

// IsOccupied reports whether slot idx has ever held a record.
func (b *BlockPage) IsOccupied(idx int) bool {
	w, mask := wordMask(idx)
	return atomic.LoadUint32(&b.occupied[w])&mask != 0
}

// IsReadable reports whether slot idx currently holds a live record.
func (b *BlockPage) IsReadable(idx int) bool {
	w, mask := wordMask(idx)
	return atomic.LoadUint32(&b.readable[w])&mask != 0
}
