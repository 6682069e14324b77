package buffer

import (
	"container/list"
	"sync"

	util "github.com/tdnguyen214/framedb/internal/utils"
)

// LRUReplacer is the alternative eviction policy: strict least-recently-
// unpinned order over a doubly linked list plus an index map. Costs a list
// node per candidate where clock costs two bits, but evicts in exact order.
type LRUReplacer struct {
	mu    sync.Mutex
	order *list.List
	elems map[util.FrameID]*list.Element
}

// NewLRUReplacer creates an LRU replacer over poolSize frames.
func NewLRUReplacer(poolSize int) *LRUReplacer {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	return &LRUReplacer{
		order: list.New(),
		elems: make(map[util.FrameID]*list.Element, poolSize),
	}
}

// Victim removes and returns the least recently unpinned frame.
func (l *LRUReplacer) Victim(fid *util.FrameID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	back := l.order.Back()
	if back == nil {
		return false
	}
	id := back.Value.(util.FrameID)
	l.order.Remove(back)
	delete(l.elems, id)
	*fid = id
	return true
}

// Pin removes fid from the candidate set. Idempotent.
func (l *LRUReplacer) Pin(fid util.FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem, ok := l.elems[fid]; ok {
		l.order.Remove(elem)
		delete(l.elems, fid)
	}
}

// Unpin adds fid as the most recently used candidate. Idempotent.
func (l *LRUReplacer) Unpin(fid util.FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.elems[fid]; ok {
		return
	}
	l.elems[fid] = l.order.PushFront(fid)
}

// Size returns the number of frames in the candidate set.
func (l *LRUReplacer) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
