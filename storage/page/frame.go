// Package page defines the buffer pool's in-memory slot: a fixed-size byte
// buffer plus the bookkeeping (pin count, dirty bit, latch) the pool and
// its callers coordinate through.
package page

import (
	"sync"

	"coredb/types"
)

// Frame is one slot of the buffer pool's frame array. Its Latch is a
// reader-writer lock over Data, acquired by callers (the B+ tree, the
// iterator) after the pool hands the frame back; the pool itself never
// takes Latch.
type Frame struct {
	Data     []byte
	PageID   types.PageID
	PinCount int
	IsDirty  bool
	Latch    sync.RWMutex
}

// NewFrame allocates a frame holding no page, ready to be placed on the
// buffer pool's free list.
func NewFrame(pageSize int) *Frame {
	return &Frame{
		Data:   make([]byte, pageSize),
		PageID: types.InvalidPageID,
	}
}

// Reset clears a frame's identity and contents, returning it to the state
// it had before ever holding a page. Callers must not hold Latch across a
// Reset that races a fresh Fetch of the same frame.
func (f *Frame) Reset() {
	f.PageID = types.InvalidPageID
	f.PinCount = 0
	f.IsDirty = false
	for i := range f.Data {
		f.Data[i] = 0
	}
}
