package bplustree

import (
	"coredb/types"
)

// descendMode selects which child a step of descend takes at an internal
// node.
type descendMode int

const (
	descendByKey descendMode = iota
	descendLeftmost
	descendRightmost
)

// isSafeNode applies the spec's safety predicate: a node proven safe can
// absorb the pending insert or delete without needing to touch its parent.
func isSafeNode(kind pageKind, isRoot bool, size, maxSize int, op operation) bool {
	switch op {
	case opFind:
		return true
	case opInsert:
		return size < maxSize
	case opDelete:
		if isRoot {
			// A root must stay well above the point where a delete would
			// force adjustRoot to collapse or empty it, since that
			// mutates the tree's root pointer and requires the tree
			// latch to still be held.
			if kind == pageKindInternal {
				return size > 2
			}
			return size > 1
		}
		if kind == pageKindInternal {
			return size > internalMinSize(maxSize)
		}
		return size > leafMinSize(maxSize)
	default:
		return false
	}
}

// descend walks from the root to the leaf that should hold key (or, for
// descendLeftmost/descendRightmost, to the first/last leaf), performing
// latch crabbing appropriate to op. The returned stack's last entry is
// always the destination leaf, still pinned and latched; the caller must
// eventually call stack.releaseAll().
func (t *Tree) descend(key int64, mode descendMode, op operation) (*latchStack, error) {
	stack := newLatchStack(t.pool)

	t.mu.Lock()
	stack.treeLatchHeld = true
	stack.tree = t

	if t.rootPageID == types.InvalidPageID {
		stack.releaseTreeLatch()
		return stack, types.ErrIndexNotFound
	}

	currentID := t.rootPageID
	for {
		frame, err := t.pool.Fetch(currentID)
		if err != nil {
			stack.releaseAll()
			return nil, err
		}

		kind := pageKind(frame.Data[0])
		mLatchMode := latchRead
		if op != opFind {
			mLatchMode = latchWrite
		}
		if mLatchMode == latchWrite {
			frame.Latch.Lock()
		} else {
			frame.Latch.RLock()
		}
		stack.push(frame, currentID, mLatchMode)

		isRoot := currentID == t.rootPageID && len(stack.items) == 1
		if op == opFind {
			// Only one node is latched at a time along a find descent.
			stack.releaseTreeLatch()
			if len(stack.items) > 1 {
				stack.releaseAllExceptLast()
			}
		} else {
			size, maxSize := nodeSizeAndMax(frame.Data)
			if isSafeNode(kind, isRoot, size, maxSize, op) {
				stack.releaseTreeLatch()
				stack.releaseAllExceptLast()
			}
		}

		if kind == pageKindLeaf {
			return stack, nil
		}

		internal, err := decodeInternalPage(currentID, frame.Data)
		if err != nil {
			stack.releaseAll()
			return nil, err
		}

		var next types.PageID
		switch mode {
		case descendLeftmost:
			next = internal.valueAt(0)
		case descendRightmost:
			next = internal.valueAt(internal.size - 1)
		default:
			next = internal.lookup(key, t.cmp)
		}
		currentID = next
	}
}

// nodeSizeAndMax reads the size/maxSize header fields directly out of raw
// page bytes without a full typed decode, since descend only needs them to
// evaluate the safety predicate.
func nodeSizeAndMax(data []byte) (size, maxSize int) {
	size = int(int32(le32(data[1:5])))
	maxSize = int(int32(le32(data[5:9])))
	return
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
