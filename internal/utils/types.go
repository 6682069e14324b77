package util

// PageID identifies a page on disk. IDs are dense small integers handed out
// monotonically by the disk layer; InvalidPageID marks a frame that holds no page.
type PageID int32

// FrameID indexes the fixed frame array of a buffer pool. Frames never move.
type FrameID int32

const (
	// PageSize is the size of a disk page in bytes (4KB).
	PageSize = 4096

	// InvalidPageID is the sentinel for "no page".
	InvalidPageID PageID = -1
)

// ReplacerPolicy selects the eviction policy of the buffer pool.
type ReplacerPolicy string

const (
	ReplacerClock ReplacerPolicy = "clock"
	ReplacerLRU   ReplacerPolicy = "lru"
)

// Options represents database configuration options.
type Options struct {
	Path       string
	PoolSize   int
	SyncWrites bool
	ReadOnly   bool
	Replacer   ReplacerPolicy
	LogLevel   string
}

// DefaultOptions returns default database options.
func DefaultOptions() Options {
	return Options{
		PoolSize:   1000, // 4MB buffer pool
		SyncWrites: false,
		ReadOnly:   false,
		Replacer:   ReplacerClock,
		LogLevel:   "info",
	}
}
