package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tdnguyen214/framedb/internal/logging"
	"github.com/tdnguyen214/framedb/internal/storage/page"
	util "github.com/tdnguyen214/framedb/internal/utils"
)

// Manager is the block device the buffer pool talks to: read and write whole
// pages by id, hand out fresh ids, release old ones.
type Manager interface {
	ReadPage(id util.PageID, p *page.Page) error
	WritePage(id util.PageID, p *page.Page) error
	AllocatePage() util.PageID
	DeallocatePage(id util.PageID)
	Size() int64
	Close() error
}

// FileManager implements Manager over a single database file. Pages live at
// offset id*PageSize. The next page id is recovered from the file size on
// open, so allocation stays monotonic across restarts.
type FileManager struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	nextPageID util.PageID
	syncWrites bool
	readOnly   bool
}

// NewFileManager opens or creates the database file at path.
func NewFileManager(path string, opts util.Options) (*FileManager, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	flags := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open db file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat db file: %w", err)
	}

	fm := &FileManager{
		file:       f,
		path:       path,
		nextPageID: util.PageID(info.Size() / util.PageSize),
		syncWrites: opts.SyncWrites,
		readOnly:   opts.ReadOnly,
	}
	logging.Debug("opened db file", "path", path, "pages", fm.nextPageID)
	return fm, nil
}

// ReadPage fills the frame's buffer with page id's on-disk bytes.
func (fm *FileManager) ReadPage(id util.PageID, p *page.Page) error {
	if id < 0 {
		return util.ErrInvalidPageId
	}

	offset := int64(id) * util.PageSize
	fm.mu.Lock()
	size := int64(fm.nextPageID) * util.PageSize
	fm.mu.Unlock()
	if offset+util.PageSize > size {
		return fmt.Errorf("read page %d: %w", id, util.ErrPageOutOfBounds)
	}

	n, err := fm.file.ReadAt(p.Data[:], offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read page %d: %w", id, err)
	}
	if n < util.PageSize {
		return fmt.Errorf("read page %d: %w", id, util.ErrShortRead)
	}
	return nil
}

// WritePage writes the frame's buffer to page id's slot on disk.
func (fm *FileManager) WritePage(id util.PageID, p *page.Page) error {
	if id < 0 {
		return util.ErrInvalidPageId
	}
	if fm.readOnly {
		return util.ErrReadOnly
	}

	offset := int64(id) * util.PageSize
	if _, err := fm.file.WriteAt(p.Data[:], offset); err != nil {
		return fmt.Errorf("write page %d: %w", id, err)
	}
	if fm.syncWrites {
		if err := fm.file.Sync(); err != nil {
			return fmt.Errorf("sync page %d: %w", id, err)
		}
	}

	// Writing past the current tail grows the file; keep allocation ahead of it.
	fm.mu.Lock()
	if id >= fm.nextPageID {
		fm.nextPageID = id + 1
	}
	fm.mu.Unlock()
	return nil
}

// AllocatePage hands out the next dense page id and extends the file so the
// new page is immediately readable as zeroes.
func (fm *FileManager) AllocatePage() util.PageID {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	id := fm.nextPageID
	fm.nextPageID++
	if err := fm.file.Truncate(int64(fm.nextPageID) * util.PageSize); err != nil {
		logging.Warn("extend db file", "page", id, "error", err)
	}
	return id
}

// DeallocatePage releases a page id. Ids are not recycled and the slot stays
// in the file, still readable.
func (fm *FileManager) DeallocatePage(id util.PageID) {
	logging.Debug("deallocated page", "page", id)
}

// Size returns the database file size in bytes.
func (fm *FileManager) Size() int64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return int64(fm.nextPageID) * util.PageSize
}

// Path returns the path of the backing file.
func (fm *FileManager) Path() string {
	return fm.path
}

// Close syncs and closes the backing file. Idempotent.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.file == nil {
		return nil
	}
	if !fm.readOnly {
		if err := fm.file.Sync(); err != nil {
			return fmt.Errorf("sync db file: %w", err)
		}
	}
	err := fm.file.Close()
	fm.file = nil
	logging.Debug("closed db file", "path", fm.path)
	if err != nil {
		return fmt.Errorf("close db file: %w", err)
	}
	return nil
}
