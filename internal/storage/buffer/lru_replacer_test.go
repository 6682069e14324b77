package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	util "github.com/tdnguyen214/framedb/internal/utils"
)

func TestLRUReplacerOrder(t *testing.T) {
	l := NewLRUReplacer(7)

	for i := util.FrameID(1); i <= 6; i++ {
		l.Unpin(i)
	}
	assert.Equal(t, 6, l.Size())

	// Eviction follows unpin order.
	var fid util.FrameID
	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(1), fid)
	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(2), fid)
	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(3), fid)

	l.Pin(3)
	l.Pin(4)
	assert.Equal(t, 2, l.Size())
	l.Unpin(4)

	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(5), fid)
	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(6), fid)
	assert.True(t, l.Victim(&fid))
	assert.Equal(t, util.FrameID(4), fid)

	assert.Equal(t, 0, l.Size())
	assert.False(t, l.Victim(&fid))
}

func TestLRUReplacerIdempotence(t *testing.T) {
	l := NewLRUReplacer(3)

	l.Unpin(1)
	l.Unpin(1)
	assert.Equal(t, 1, l.Size(), "double unpin counts once")

	l.Pin(1)
	l.Pin(1)
	assert.Equal(t, 0, l.Size(), "double pin counts once")
}

func TestLRUReplacerConcurrency(t *testing.T) {
	const poolSize = 64
	l := NewLRUReplacer(poolSize)

	var wg sync.WaitGroup
	for i := range poolSize {
		wg.Add(1)
		go func(fid util.FrameID) {
			defer wg.Done()
			l.Unpin(fid)
		}(util.FrameID(i))
	}
	wg.Wait()
	assert.Equal(t, poolSize, l.Size())

	seen := make(map[util.FrameID]bool, poolSize)
	var fid util.FrameID
	for l.Victim(&fid) {
		assert.False(t, seen[fid], "frame %d victimised twice", fid)
		seen[fid] = true
	}
	assert.Len(t, seen, poolSize)
}
