// Package buffer implements the fixed-size buffer pool over a paged disk
// file: page fetch, unpin, allocation, deletion, and flush, mediated
// through an injected disk.Manager and storage/replacer.Replacer.
package buffer

import (
	"fmt"
	"sync"

	"coredb/logging"
	"coredb/storage/disk"
	"coredb/storage/page"
	"coredb/storage/replacer"
	"coredb/types"
)

// PoolManager owns a fixed array of frames, a page-id-to-frame-id map, a
// free list, and one replacer, all guarded by a single mutex. Every public
// method holds that mutex for its entire duration; callers acquire a
// frame's own latch afterward, outside the pool.
type PoolManager struct {
	mu        sync.Mutex
	frames    []*page.Frame
	pageTable map[types.PageID]types.FrameID
	freeList  []types.FrameID
	replacer  replacer.Replacer
	disk      disk.Manager
	pageSize  int

	Hits, Misses, Evictions int64
}

// NewPoolManager builds a pool of poolSize frames of pageSize bytes each,
// backed by disk and using an LRU replacement policy.
func NewPoolManager(poolSize, pageSize int, disk disk.Manager) *PoolManager {
	frames := make([]*page.Frame, poolSize)
	freeList := make([]types.FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = page.NewFrame(pageSize)
		freeList[i] = types.FrameID(i)
	}

	return &PoolManager{
		frames:    frames,
		pageTable: make(map[types.PageID]types.FrameID, poolSize),
		freeList:  freeList,
		replacer:  replacer.NewLRUReplacer(poolSize),
		disk:      disk,
		pageSize:  pageSize,
	}
}

// PageSize reports the fixed byte size of every page this pool manages.
func (p *PoolManager) PageSize() int { return p.pageSize }

// findVictimLocked returns a host frame id, preferring the free list, then
// the replacer, evicting and writing back a dirty victim as needed. Caller
// must hold p.mu. Returns ok=false when the pool is exhausted.
func (p *PoolManager) findVictimLocked() (types.FrameID, bool, error) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id, true, nil
	}

	fid, ok := p.replacer.Victim()
	if !ok {
		return 0, false, nil
	}

	f := p.frames[fid]
	if f.IsDirty {
		if err := p.disk.WritePage(f.PageID, f.Data); err != nil {
			logging.Errorf("buffer: writing back victim page %d: %v", f.PageID, err)
			return 0, false, fmt.Errorf("buffer: writing back victim page %d: %w", f.PageID, err)
		}
	}
	delete(p.pageTable, f.PageID)
	p.Evictions++
	return fid, true, nil
}

// Fetch returns the frame holding id, pinning it, reading it from disk if
// it is not already resident. Returns types.ErrPoolExhausted if every
// frame is pinned.
func (p *PoolManager) Fetch(id types.PageID) (*page.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.pageTable[id]; ok {
		f := p.frames[fid]
		f.PinCount++
		p.replacer.Pin(fid)
		p.Hits++
		return f, nil
	}

	fid, ok, err := p.findVictimLocked()
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.Warnf("buffer: pool exhausted fetching page %d, every frame pinned", id)
		return nil, types.ErrPoolExhausted
	}

	f := p.frames[fid]
	if err := p.disk.ReadPage(id, f.Data); err != nil {
		logging.Errorf("buffer: reading page %d: %v", id, err)
		return nil, fmt.Errorf("buffer: reading page %d: %w", id, err)
	}
	f.PageID = id
	f.PinCount = 1
	f.IsDirty = false

	p.pageTable[id] = fid
	p.replacer.Pin(fid)
	p.Misses++
	logging.Debugf("buffer: fetched page %d into frame %d", id, fid)
	return f, nil
}

// Unpin decrements id's pin count, marking it dirty if dirty is true. Once
// the pin count reaches zero the frame becomes eligible for eviction.
func (p *PoolManager) Unpin(id types.PageID, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return types.ErrPageNotFound
	}
	f := p.frames[fid]
	if f.PinCount <= 0 {
		return fmt.Errorf("buffer: unpin page %d: pin count is already zero", id)
	}

	f.PinCount--
	if dirty {
		f.IsDirty = true
	}
	if f.PinCount == 0 {
		p.replacer.Unpin(fid)
	}
	return nil
}

// NewPage allocates a fresh page on disk, hosts it in a frame pinned once,
// and returns both. Returns types.ErrPoolExhausted if every frame is
// pinned.
func (p *PoolManager) NewPage() (*page.Frame, types.PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok, err := p.findVictimLocked()
	if err != nil {
		return nil, types.InvalidPageID, err
	}
	if !ok {
		logging.Warnf("buffer: pool exhausted allocating a new page, every frame pinned")
		return nil, types.InvalidPageID, types.ErrPoolExhausted
	}

	id, err := p.disk.AllocatePage()
	if err != nil {
		logging.Errorf("buffer: allocating page: %v", err)
		return nil, types.InvalidPageID, fmt.Errorf("buffer: allocating page: %w", err)
	}

	f := p.frames[fid]
	f.Reset()
	f.PageID = id
	f.PinCount = 1

	p.pageTable[id] = fid
	p.replacer.Pin(fid)
	logging.Debugf("buffer: new page %d in frame %d", id, fid)
	return f, id, nil
}

// DeletePage removes id from the pool and tells the disk manager to free
// it. Deleting an absent page succeeds vacuously; deleting a pinned page
// fails with types.ErrPagePinned.
func (p *PoolManager) DeletePage(id types.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return nil
	}

	f := p.frames[fid]
	if f.PinCount != 0 {
		return types.ErrPagePinned
	}

	if f.IsDirty {
		if err := p.disk.WritePage(f.PageID, f.Data); err != nil {
			logging.Errorf("buffer: writing page %d before delete: %v", id, err)
			return fmt.Errorf("buffer: writing page %d before delete: %w", id, err)
		}
	}

	delete(p.pageTable, id)
	f.Reset()
	p.freeList = append(p.freeList, fid)
	p.replacer.Pin(fid)

	if err := p.disk.DeallocatePage(id); err != nil {
		logging.Errorf("buffer: deallocating page %d: %v", id, err)
		return fmt.Errorf("buffer: deallocating page %d: %w", id, err)
	}
	return nil
}

// Flush writes id's current contents through to disk and clears its dirty
// bit, without changing pin count or residency.
func (p *PoolManager) Flush(id types.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return types.ErrPageNotFound
	}
	f := p.frames[fid]
	if err := p.disk.WritePage(f.PageID, f.Data); err != nil {
		logging.Errorf("buffer: flushing page %d: %v", id, err)
		return fmt.Errorf("buffer: flushing page %d: %w", id, err)
	}
	f.IsDirty = false
	return nil
}

// FlushAll writes every resident page through to disk.
func (p *PoolManager) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, fid := range p.pageTable {
		f := p.frames[fid]
		if err := p.disk.WritePage(f.PageID, f.Data); err != nil {
			logging.Errorf("buffer: flushing page %d: %v", id, err)
			return fmt.Errorf("buffer: flushing page %d: %w", id, err)
		}
		f.IsDirty = false
	}
	return nil
}
