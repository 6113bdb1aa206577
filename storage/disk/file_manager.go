package disk

import (
	"fmt"
	"os"
	"sync"

	"coredb/logging"
	"coredb/types"
)

// FileManager is a single-file, offset-addressed implementation of Manager.
// Page id p lives at byte offset p*pageSize. Deallocated pages are tracked
// in a free list and reused by the next AllocatePage call before the file
// is extended.
type FileManager struct {
	mu       sync.Mutex
	file     *os.File
	pageSize int
	nextPage types.PageID
	freeList []types.PageID
}

// NewFileManager opens (creating if necessary) the backing file at path and
// derives the next allocatable page id from its current size.
func NewFileManager(path string, pageSize int) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: opening %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}

	numPages := stat.Size() / int64(pageSize)

	return &FileManager{
		file:     f,
		pageSize: pageSize,
		nextPage: types.PageID(numPages),
	}, nil
}

// ReadPage fills dst (which must be exactly pageSize bytes) with the
// contents of page id. Reading a page past the end of the file (one that
// was allocated but never written) yields zero bytes.
func (m *FileManager) ReadPage(id types.PageID, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(dst) != m.pageSize {
		return fmt.Errorf("disk: read buffer size %d does not match page size %d", len(dst), m.pageSize)
	}

	offset := int64(id) * int64(m.pageSize)
	n, err := m.file.ReadAt(dst, offset)
	if err != nil && n == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	for i := n; i < m.pageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage persists src (exactly pageSize bytes) at page id's offset.
func (m *FileManager) WritePage(id types.PageID, src []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(src) != m.pageSize {
		return fmt.Errorf("disk: write buffer size %d does not match page size %d", len(src), m.pageSize)
	}

	offset := int64(id) * int64(m.pageSize)
	if _, err := m.file.WriteAt(src, offset); err != nil {
		logging.Errorf("disk: writing page %d: %v", id, err)
		return fmt.Errorf("disk: writing page %d: %w", id, err)
	}
	return nil
}

// AllocatePage returns a free page id, preferring one recycled by a prior
// DeallocatePage before extending the file with a fresh one.
func (m *FileManager) AllocatePage() (types.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		logging.Debugf("disk: reusing freed page %d", id)
		return id, nil
	}

	id := m.nextPage
	m.nextPage++

	empty := make([]byte, m.pageSize)
	offset := int64(id) * int64(m.pageSize)
	if _, err := m.file.WriteAt(empty, offset); err != nil {
		logging.Errorf("disk: allocating page %d: %v", id, err)
		return types.InvalidPageID, fmt.Errorf("disk: allocating page %d: %w", id, err)
	}
	return id, nil
}

// DeallocatePage marks id free for reuse by a later AllocatePage.
func (m *FileManager) DeallocatePage(id types.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeList = append(m.freeList, id)
	return nil
}

// Sync flushes pending writes to stable storage.
func (m *FileManager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		logging.Errorf("disk: sync: %v", err)
		return fmt.Errorf("disk: sync: %w", err)
	}
	return nil
}

// Close syncs and closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		logging.Errorf("disk: sync before close: %v", err)
		m.file.Close()
		return fmt.Errorf("disk: sync before close: %w", err)
	}
	return m.file.Close()
}
