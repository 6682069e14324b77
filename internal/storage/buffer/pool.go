package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tdnguyen214/framedb/internal/logging"
	"github.com/tdnguyen214/framedb/internal/storage/disk"
	"github.com/tdnguyen214/framedb/internal/storage/page"
	util "github.com/tdnguyen214/framedb/internal/utils"
)

// BufferPoolManager mediates all page access between the storage layers above
// and the disk below: it pins pages into a bounded set of frames, writes
// dirty frames back before reuse, and serialises the metadata transitions.
//
// Locking discipline: mu guards the page table, the free list, the replacer
// membership and the per-frame metadata. It is acquired first and dropped
// before the page reads and write-backs of replacement and FlushPage, which
// run under the frame's write latch instead. NewPage holds mu while the disk
// allocates the new id, and FlushAllPages holds it across all its writes.
// Lock order is always mu then frame latch, never two frame latches at once.
type BufferPoolManager struct {
	mu        sync.Mutex
	disk      disk.Manager
	pages     []*page.Page
	replacer  Replacer
	freeList  []util.FrameID
	pageTable map[util.PageID]util.FrameID

	stats Stats
}

// Stats counts pool traffic since construction. Snapshots are taken under the
// pool latch, so the fields are plain integers.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
}

// NewBufferPoolManager creates a pool of poolSize frames over dm, evicting
// with the given policy.
func NewBufferPoolManager(dm disk.Manager, poolSize int, policy util.ReplacerPolicy) *BufferPoolManager {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}

	b := &BufferPoolManager{
		disk:      dm,
		pages:     make([]*page.Page, poolSize),
		replacer:  NewReplacer(policy, poolSize),
		freeList:  make([]util.FrameID, poolSize),
		pageTable: make(map[util.PageID]util.FrameID, poolSize),
	}
	for i := range poolSize {
		b.pages[i] = page.NewPage()
		b.freeList[i] = util.FrameID(i)
	}
	return b
}

// FetchPage pins the page with the given id and returns its frame. A resident
// page is pinned in place; otherwise a frame is reclaimed and the page read
// from disk. Returns ErrNoFreeFrame when every frame is pinned. The caller
// must UnpinPage exactly once.
func (b *BufferPoolManager) FetchPage(id util.PageID) (*page.Page, error) {
	if id < 0 {
		return nil, util.ErrInvalidPageId
	}

	b.mu.Lock()
	if fid, ok := b.pageTable[id]; ok {
		p := b.pages[fid]
		if p.IncPinCount() > 0 {
			b.replacer.Pin(fid)
		}
		b.stats.Hits++
		b.mu.Unlock()
		return p, nil
	}

	if len(b.freeList) == 0 && b.replacer.Size() == 0 {
		b.mu.Unlock()
		return nil, util.ErrNoFreeFrame
	}
	b.stats.Misses++
	return b.replaceAndUpdate(id, false)
}

// NewPage allocates a fresh page on disk and pins it into a frame with zeroed
// contents. The frame starts dirty so the empty page reaches disk even if the
// caller never writes. Returns InvalidPageID and ErrNoFreeFrame when every
// frame is pinned.
func (b *BufferPoolManager) NewPage() (*page.Page, util.PageID, error) {
	b.mu.Lock()
	if len(b.freeList) == 0 && b.replacer.Size() == 0 {
		b.mu.Unlock()
		return nil, util.InvalidPageID, util.ErrNoFreeFrame
	}

	id := b.disk.AllocatePage()
	p, err := b.replaceAndUpdate(id, true)
	if err != nil {
		return nil, util.InvalidPageID, err
	}
	return p, id, nil
}

// replaceAndUpdate installs page newID into a reclaimed frame: the free list
// first, a replacer victim otherwise. Called with mu held; mu is released
// before any disk I/O, with the frame's write latch carried across it. The
// victim is pre-emptively pinned in the replacer so no concurrent caller can
// re-victimise the frame while its I/O is still in flight.
func (b *BufferPoolManager) replaceAndUpdate(newID util.PageID, isNew bool) (*page.Page, error) {
	var fid util.FrameID
	var p *page.Page
	var oldID util.PageID
	var writeBack bool

	if len(b.freeList) > 0 {
		fid = b.freeList[0]
		b.freeList = b.freeList[1:]
		p = b.pages[fid]
	} else {
		if !b.replacer.Victim(&fid) {
			// Caller verified a candidate exists under this same latch hold.
			b.mu.Unlock()
			return nil, util.ErrNoFreeFrame
		}
		p = b.pages[fid]
		oldID = p.ID()
		writeBack = p.IsDirty()
		delete(b.pageTable, oldID)
		b.replacer.Pin(fid)
		b.stats.Evictions++
	}

	// Install the frame's new identity before dropping the pool latch:
	// concurrent fetches of newID hit the page table and pin this frame
	// while its I/O is still in flight, then block on the latch below.
	b.pageTable[newID] = fid
	p.WLatch()
	p.SetID(newID)
	p.SetPinCount(1)
	p.SetDirty(isNew)
	b.mu.Unlock()

	if writeBack {
		if err := b.disk.WritePage(oldID, p); err != nil {
			return b.undoReplace(p, newID, fid, fmt.Errorf("write back page %d: %w", oldID, err))
		}
		logging.Debug("evicted dirty page", "page", oldID, "frame", fid)
	}

	if isNew {
		p.ResetData()
	} else if err := b.disk.ReadPage(newID, p); err != nil {
		return b.undoReplace(p, newID, fid, fmt.Errorf("read page %d: %w", newID, err))
	}

	p.WUnlatch()
	return p, nil
}

// undoReplace rolls a failed replacement back: the mapping installed for the
// incoming page is dropped and the frame, whose old occupant is already gone,
// returns to the free list empty.
func (b *BufferPoolManager) undoReplace(p *page.Page, newID util.PageID, fid util.FrameID, err error) (*page.Page, error) {
	p.ResetData()
	p.SetID(util.InvalidPageID)
	p.SetDirty(false)
	p.WUnlatch()

	b.mu.Lock()
	delete(b.pageTable, newID)
	if p.DecPinCount() == 0 {
		b.freeList = append(b.freeList, fid)
	} else {
		// A fetcher pinned the frame through the doomed mapping before the
		// unwind; it sees the invalid id and a failed unpin. The frame is
		// stranded rather than handed out with bytes that never loaded.
		logging.Warn("frame stranded by failed page load", "page", newID, "frame", fid)
	}
	b.mu.Unlock()
	return nil, err
}

// UnpinPage drops one pin on the page, ORing isDirty into its dirty flag.
// When the pin count reaches zero the frame becomes an eviction candidate.
// Returns false if the pin count was already zero.
func (b *BufferPoolManager) UnpinPage(id util.PageID, isDirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return false
	}
	p := b.pages[fid]
	if p.PinCount() <= 0 {
		return false
	}
	if p.DecPinCount() == 0 {
		b.replacer.Unpin(fid)
	}
	if isDirty {
		p.SetDirty(true)
	}
	return true
}

// FlushPage writes the page to disk if it is dirty and clears the dirty flag.
// Pin count and replacer membership are untouched. The bool reports whether
// the page was resident; a resident page that fails to write returns true and
// the disk error.
func (b *BufferPoolManager) FlushPage(id util.PageID) (bool, error) {
	b.mu.Lock()
	fid, ok := b.pageTable[id]
	if !ok {
		b.mu.Unlock()
		return false, nil
	}
	p := b.pages[fid]
	p.WLatch()
	b.stats.Flushes++
	b.mu.Unlock()

	if p.ID() != util.InvalidPageID && p.IsDirty() {
		if err := b.disk.WritePage(p.ID(), p); err != nil {
			p.WUnlatch()
			return true, fmt.Errorf("flush page %d: %w", id, err)
		}
		p.SetDirty(false)
	}
	p.WUnlatch()
	return true, nil
}

// DeletePage evicts the page from the pool and releases its id on disk.
// Returns false while the page is pinned. Deleting a page that is not
// resident just deallocates it and succeeds.
func (b *BufferPoolManager) DeletePage(id util.PageID) bool {
	b.mu.Lock()
	fid, ok := b.pageTable[id]
	if !ok {
		b.mu.Unlock()
		b.disk.DeallocatePage(id)
		return true
	}

	p := b.pages[fid]
	if p.PinCount() > 0 {
		b.mu.Unlock()
		return false
	}

	b.replacer.Pin(fid)
	delete(b.pageTable, id)
	b.freeList = append(b.freeList, fid)
	p.WLatch()
	b.mu.Unlock()

	b.disk.DeallocatePage(id)
	p.ResetData()
	p.SetID(util.InvalidPageID)
	p.SetPinCount(0)
	p.SetDirty(false)
	p.WUnlatch()
	return true
}

// FlushAllPages writes every resident dirty frame back to disk. Frame latches
// are taken briefly per frame, so concurrent writers are drained one by one.
func (b *BufferPoolManager) FlushAllPages() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, p := range b.pages {
		p.WLatch()
		if p.ID() != util.InvalidPageID && p.IsDirty() {
			if err := b.disk.WritePage(p.ID(), p); err != nil {
				errs = append(errs, fmt.Errorf("flush page %d: %w", p.ID(), err))
				p.WUnlatch()
				continue
			}
			p.SetDirty(false)
			b.stats.Flushes++
		}
		p.WUnlatch()
	}
	return errors.Join(errs...)
}

// PoolSize returns the number of frames.
func (b *BufferPoolManager) PoolSize() int {
	return len(b.pages)
}

// Stats returns a snapshot of the pool counters.
func (b *BufferPoolManager) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
