package bplustree

import (
	"coredb/storage/buffer"
	"coredb/storage/page"
	"coredb/types"
)

// operation tags a descent so it knows which safety predicate and latch
// mode to use.
type operation int

const (
	opFind operation = iota
	opInsert
	opDelete
)

// latchMode says whether heldFrame took a read or write latch.
type latchMode int

const (
	latchRead latchMode = iota
	latchWrite
)

// heldFrame is one entry in a descent's held-latch stack: a pinned frame
// plus the mode its latch was acquired in.
type heldFrame struct {
	frame  *page.Frame
	pageID types.PageID
	mode   latchMode
}

// latchStack accumulates the frames a descent must unlatch and unpin
// together, in FIFO order, when it either proves a node safe or completes
// the operation.
type latchStack struct {
	pool          *buffer.PoolManager
	items         []heldFrame
	tree          *Tree
	treeLatchHeld bool
}

func newLatchStack(pool *buffer.PoolManager) *latchStack {
	return &latchStack{pool: pool}
}

// releaseTreeLatch releases the tree-level mutex if this descent still
// holds it. Safe to call more than once.
func (s *latchStack) releaseTreeLatch() {
	if s.treeLatchHeld {
		s.tree.mu.Unlock()
		s.treeLatchHeld = false
	}
}

func (s *latchStack) push(f *page.Frame, id types.PageID, mode latchMode) {
	s.items = append(s.items, heldFrame{frame: f, pageID: id, mode: mode})
}

// releaseAll unlatches and unpins every held frame, marking dirty the ones
// held for writing, then clears the stack.
func (s *latchStack) releaseAll() {
	for _, h := range s.items {
		dirty := h.mode == latchWrite
		if h.mode == latchWrite {
			h.frame.Latch.Unlock()
		} else {
			h.frame.Latch.RUnlock()
		}
		s.pool.Unpin(h.pageID, dirty)
	}
	s.items = s.items[:0]
	s.releaseTreeLatch()
}

// releaseAllExceptLast releases every held frame but the most recently
// pushed one, used mid-descent once a node is proven safe.
func (s *latchStack) releaseAllExceptLast() {
	if len(s.items) == 0 {
		return
	}
	last := s.items[len(s.items)-1]
	for _, h := range s.items[:len(s.items)-1] {
		dirty := h.mode == latchWrite
		if h.mode == latchWrite {
			h.frame.Latch.Unlock()
		} else {
			h.frame.Latch.RUnlock()
		}
		s.pool.Unpin(h.pageID, dirty)
	}
	s.items = append(s.items[:0], last)
}
