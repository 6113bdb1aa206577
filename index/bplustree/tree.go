package bplustree

import (
	"encoding/binary"
	"fmt"
	"sync"

	"coredb/storage/buffer"
	"coredb/storage/page"
	"coredb/types"
)

// RootPersister is the tree's only outward dependency beyond the buffer
// pool: something that remembers, across process restarts, which page id
// is currently the root of a named index. The catalog package implements
// this over a header page.
type RootPersister interface {
	UpdateRootPageID(name string, root types.PageID, insert bool) error
}

// Tree is a disk-resident, concurrent B+ tree index. Keys are int64,
// values are record identifiers. All structural mutation is protected by
// per-page latches acquired through latch crabbing, plus a tree-level
// mutex guarding root-id transitions.
type Tree struct {
	name            string
	pool            *buffer.PoolManager
	persister       RootPersister
	cmp             Comparator
	leafMaxSize     int
	internalMaxSize int

	mu         sync.Mutex
	rootPageID types.PageID
}

// NewTree constructs a tree named name over pool, rooted at rootPageID
// (types.InvalidPageID for a brand new, empty tree). persister may be nil,
// in which case root-id changes are tracked only in memory.
func NewTree(name string, pool *buffer.PoolManager, persister RootPersister, cmp Comparator, leafMaxSize, internalMaxSize int, rootPageID types.PageID) *Tree {
	if cmp == nil {
		cmp = DefaultComparator
	}
	return &Tree{
		name:            name,
		pool:            pool,
		persister:       persister,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      rootPageID,
	}
}

// RootPageID reports the tree's current root, or types.InvalidPageID for
// an empty tree.
func (t *Tree) RootPageID() types.PageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootPageID
}

// IsEmpty reports whether the tree currently holds any keys.
func (t *Tree) IsEmpty() bool {
	return t.RootPageID() == types.InvalidPageID
}

func (t *Tree) persist(insert bool) error {
	if t.persister == nil {
		return nil
	}
	return t.persister.UpdateRootPageID(t.name, t.rootPageID, insert)
}

// reparentChild patches child's stored parent-page-id header field
// directly, without a full typed decode, since the leaf/internal common
// header layout is shared.
func (t *Tree) reparentChild(child types.PageID, newParent types.PageID) error {
	frame, err := t.pool.Fetch(child)
	if err != nil {
		return fmt.Errorf("bplustree: reparenting %d: %w", child, err)
	}
	binary.LittleEndian.PutUint32(frame.Data[9:13], uint32(int32(newParent)))
	return t.pool.Unpin(child, true)
}

// GetValue returns every value stored under key (at most one, since
// duplicate keys are rejected on insert).
func (t *Tree) GetValue(key int64) ([]types.RID, error) {
	stack, err := t.descend(key, descendByKey, opFind)
	if err == types.ErrIndexNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer stack.releaseAll()

	leafItem := stack.items[len(stack.items)-1]
	leaf, err := decodeLeafPage(leafItem.pageID, leafItem.frame.Data)
	if err != nil {
		return nil, err
	}
	if v, ok := leaf.lookup(key, t.cmp); ok {
		return []types.RID{v}, nil
	}
	return nil, nil
}

// Insert adds key/value to the tree. It returns false, with the tree
// unchanged, if key already exists.
func (t *Tree) Insert(key int64, value types.RID) (bool, error) {
	for {
		t.mu.Lock()
		if t.rootPageID == types.InvalidPageID {
			frame, id, err := t.pool.NewPage()
			if err != nil {
				t.mu.Unlock()
				return false, err
			}
			leaf := newLeafPage(id, types.InvalidPageID, t.leafMaxSize)
			leaf.insert(key, value, t.cmp)
			leaf.encode(frame.Data)
			if err := t.pool.Unpin(id, true); err != nil {
				t.mu.Unlock()
				return false, err
			}
			t.rootPageID = id
			err = t.persist(true)
			t.mu.Unlock()
			return true, err
		}
		t.mu.Unlock()

		ok, err := t.insertNonEmpty(key, value)
		if err == types.ErrIndexNotFound {
			// A concurrent Remove emptied the tree between our check and
			// descend's own; retry as a fresh-tree insert.
			continue
		}
		return ok, err
	}
}

func (t *Tree) insertNonEmpty(key int64, value types.RID) (bool, error) {
	stack, err := t.descend(key, descendByKey, opInsert)
	if err != nil {
		return false, err
	}
	defer stack.releaseAll()

	leafIdx := len(stack.items) - 1
	leafItem := stack.items[leafIdx]
	leaf, err := decodeLeafPage(leafItem.pageID, leafItem.frame.Data)
	if err != nil {
		return false, err
	}

	if _, exists := leaf.lookup(key, t.cmp); exists {
		return false, nil
	}

	newSize := leaf.insert(key, value, t.cmp)
	leaf.encode(leafItem.frame.Data)

	if newSize <= t.leafMaxSize {
		return true, nil
	}

	sibFrame, sibID, err := t.pool.NewPage()
	if err != nil {
		return false, err
	}
	sibling := newLeafPage(sibID, leaf.parent, t.leafMaxSize)
	leaf.moveHalfTo(sibling)
	leaf.encode(leafItem.frame.Data)
	sibling.encode(sibFrame.Data)
	if err := t.pool.Unpin(sibID, true); err != nil {
		return false, err
	}

	if err := t.insertIntoParentAt(stack, leafIdx, sibling.keys[0], leafItem.pageID, sibID); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoParentAt installs (sepKey, newChildID) as a new sibling of
// oldChildID, whose entry lives at stack.items[childIdx]. If childIdx is 0,
// oldChildID is the root and a fresh internal root is created instead.
func (t *Tree) insertIntoParentAt(stack *latchStack, childIdx int, sepKey int64, oldChildID, newChildID types.PageID) error {
	if childIdx == 0 {
		frame, id, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		root := newInternalPage(id, types.InvalidPageID, t.internalMaxSize)
		root.populateNewRoot(oldChildID, sepKey, newChildID)
		root.encode(frame.Data)
		if err := t.pool.Unpin(id, true); err != nil {
			return err
		}
		if err := t.reparentChild(oldChildID, id); err != nil {
			return err
		}
		if err := t.reparentChild(newChildID, id); err != nil {
			return err
		}
		t.rootPageID = id
		return t.persist(false)
	}

	parentIdx := childIdx - 1
	parentItem := stack.items[parentIdx]
	parent, err := decodeInternalPage(parentItem.pageID, parentItem.frame.Data)
	if err != nil {
		return err
	}
	parent.insertAfter(oldChildID, sepKey, newChildID)
	parent.encode(parentItem.frame.Data)

	if parent.size <= t.internalMaxSize {
		return nil
	}

	sibFrame, sibID, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	sibling := newInternalPage(sibID, parent.parent, t.internalMaxSize)
	if err := parent.moveHalfTo(sibling, t); err != nil {
		return err
	}
	promoted := sibling.keys[0]
	parent.encode(parentItem.frame.Data)
	sibling.encode(sibFrame.Data)
	if err := t.pool.Unpin(sibID, true); err != nil {
		return err
	}

	return t.insertIntoParentAt(stack, parentIdx, promoted, parent.pageID, sibID)
}

// Remove deletes key from the tree, if present. Removing an absent key,
// or removing from an empty tree, is a no-op.
func (t *Tree) Remove(key int64) error {
	stack, err := t.descend(key, descendByKey, opDelete)
	if err == types.ErrIndexNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	defer stack.releaseAll()

	leafIdx := len(stack.items) - 1
	leafItem := stack.items[leafIdx]
	leaf, err := decodeLeafPage(leafItem.pageID, leafItem.frame.Data)
	if err != nil {
		return err
	}

	before := leaf.size
	leaf.removeAndDelete(key, t.cmp)
	if leaf.size == before {
		return nil
	}
	leaf.encode(leafItem.frame.Data)

	toDelete, err := t.coalesceOrRedistribute(stack, leafIdx, pageKindLeaf)
	if err != nil {
		return err
	}
	// Pages scheduled for deletion may still be pinned by the stack.
	stack.releaseAll()
	for _, id := range toDelete {
		if err := t.pool.DeletePage(id); err != nil {
			return err
		}
	}
	return nil
}

// coalesceOrRedistribute is called with the just-mutated node at
// stack.items[idx] already re-encoded into its frame. It returns page ids
// that must be deleted once every latch is released.
func (t *Tree) coalesceOrRedistribute(stack *latchStack, idx int, kind pageKind) ([]types.PageID, error) {
	item := stack.items[idx]

	if idx == 0 {
		return t.adjustRoot(item, kind)
	}

	size, maxSize := nodeSizeAndMax(item.frame.Data)
	minSz := leafMinSize(maxSize)
	if kind == pageKindInternal {
		minSz = internalMinSize(maxSize)
	}
	if size >= minSz {
		return nil, nil
	}

	parentIdx := idx - 1
	parentItem := stack.items[parentIdx]
	parent, err := decodeInternalPage(parentItem.pageID, parentItem.frame.Data)
	if err != nil {
		return nil, err
	}

	nodeSlot := parent.valueIndex(item.pageID)
	var siblingSlot int
	siblingIsLeft := true
	if nodeSlot == 0 {
		siblingSlot = 1
		siblingIsLeft = false
	} else {
		siblingSlot = nodeSlot - 1
	}
	siblingID := parent.valueAt(siblingSlot)

	sibFrame, err := t.pool.Fetch(siblingID)
	if err != nil {
		return nil, err
	}
	sibFrame.Latch.Lock()
	defer func() {
		sibFrame.Latch.Unlock()
		t.pool.Unpin(siblingID, true)
	}()

	sibSize, _ := nodeSizeAndMax(sibFrame.Data)

	if size+sibSize > maxSize {
		if err := t.redistribute(item, parentItem, sibFrame, siblingID, kind, nodeSlot, siblingSlot, siblingIsLeft); err != nil {
			return nil, err
		}
		return nil, nil
	}

	deleted, err := t.coalesce(item, parentItem, sibFrame, siblingID, kind, nodeSlot, siblingSlot, siblingIsLeft)
	if err != nil {
		return nil, err
	}

	more, err := t.coalesceOrRedistribute(stack, parentIdx, pageKindInternal)
	if err != nil {
		return nil, err
	}
	return append(deleted, more...), nil
}

// redistribute borrows one entry across the node/sibling boundary so both
// stay above their minimum occupancy, then patches whichever parent
// separator key the borrow invalidated. Per the resolved leaf/internal
// move contract, moveLastToFrontOf and moveFirstToEndOf never touch the
// parent themselves.
func (t *Tree) redistribute(nodeItem, parentItem heldFrame, sibFrame *page.Frame, siblingID types.PageID, kind pageKind, nodeSlot, siblingSlot int, siblingIsLeft bool) error {
	parent, err := decodeInternalPage(parentItem.pageID, parentItem.frame.Data)
	if err != nil {
		return err
	}

	switch kind {
	case pageKindLeaf:
		node, err := decodeLeafPage(nodeItem.pageID, nodeItem.frame.Data)
		if err != nil {
			return err
		}
		sib, err := decodeLeafPage(siblingID, sibFrame.Data)
		if err != nil {
			return err
		}
		if siblingIsLeft {
			sib.moveLastToFrontOf(node)
			parent.setKeyAt(nodeSlot, node.keys[0])
		} else {
			sib.moveFirstToEndOf(node)
			parent.setKeyAt(siblingSlot, sib.keys[0])
		}
		node.encode(nodeItem.frame.Data)
		sib.encode(sibFrame.Data)

	case pageKindInternal:
		node, err := decodeInternalPage(nodeItem.pageID, nodeItem.frame.Data)
		if err != nil {
			return err
		}
		sib, err := decodeInternalPage(siblingID, sibFrame.Data)
		if err != nil {
			return err
		}
		if siblingIsLeft {
			oldSep := parent.keyAt(nodeSlot)
			newSep := sib.keys[sib.size-1]
			if err := sib.moveLastToFrontOf(node, oldSep, t); err != nil {
				return err
			}
			parent.setKeyAt(nodeSlot, newSep)
		} else {
			oldSep := parent.keyAt(siblingSlot)
			newSep, err := sib.moveFirstToEndOf(node, oldSep, t)
			if err != nil {
				return err
			}
			parent.setKeyAt(siblingSlot, newSep)
		}
		node.encode(nodeItem.frame.Data)
		sib.encode(sibFrame.Data)
	}

	parent.encode(parentItem.frame.Data)
	return nil
}

// coalesce always merges the right-hand node of the pair into the
// left-hand one and reports the right-hand page id for deletion, following
// the "logically swap so merge is always right-into-left" convention.
func (t *Tree) coalesce(nodeItem, parentItem heldFrame, sibFrame *page.Frame, siblingID types.PageID, kind pageKind, nodeSlot, siblingSlot int, siblingIsLeft bool) ([]types.PageID, error) {
	parent, err := decodeInternalPage(parentItem.pageID, parentItem.frame.Data)
	if err != nil {
		return nil, err
	}

	var leftFrame, rightFrame *page.Frame
	var leftID, rightID types.PageID
	var rightSlot int
	if siblingIsLeft {
		leftFrame, leftID = sibFrame, siblingID
		rightFrame, rightID, rightSlot = nodeItem.frame, nodeItem.pageID, nodeSlot
	} else {
		leftFrame, leftID, rightSlot = nodeItem.frame, nodeItem.pageID, siblingSlot
		rightFrame, rightID = sibFrame, siblingID
	}

	switch kind {
	case pageKindLeaf:
		left, err := decodeLeafPage(leftID, leftFrame.Data)
		if err != nil {
			return nil, err
		}
		right, err := decodeLeafPage(rightID, rightFrame.Data)
		if err != nil {
			return nil, err
		}
		right.moveAllTo(left)
		left.encode(leftFrame.Data)
		right.encode(rightFrame.Data)

	case pageKindInternal:
		left, err := decodeInternalPage(leftID, leftFrame.Data)
		if err != nil {
			return nil, err
		}
		right, err := decodeInternalPage(rightID, rightFrame.Data)
		if err != nil {
			return nil, err
		}
		middleKey := parent.keyAt(rightSlot)
		if err := right.moveAllTo(left, middleKey, t); err != nil {
			return nil, err
		}
		left.encode(leftFrame.Data)
		right.encode(rightFrame.Data)
	}

	parent.remove(rightSlot)
	parent.encode(parentItem.frame.Data)

	return []types.PageID{rightID}, nil
}

// adjustRoot collapses a root that a delete has reduced to a single child
// (internal) or to nothing (leaf). coalesceOrRedistribute calls it for
// whichever node sits at stack.items[0]. That node is the root only when
// the root was found unsafe for delete during descent, and then the tree
// latch is still held. Otherwise it is the node descend proved safe: a
// safe leaf keeps at least one entry, and a safe internal node keeps at
// least two children when internalMaxSize is 3 or more, so the checks
// below leave it unchanged.
func (t *Tree) adjustRoot(item heldFrame, kind pageKind) ([]types.PageID, error) {
	switch kind {
	case pageKindInternal:
		root, err := decodeInternalPage(item.pageID, item.frame.Data)
		if err != nil {
			return nil, err
		}
		if root.size != 1 {
			return nil, nil
		}
		onlyChild := root.children[0]
		if err := t.reparentChild(onlyChild, types.InvalidPageID); err != nil {
			return nil, err
		}
		t.rootPageID = onlyChild
		if err := t.persist(false); err != nil {
			return nil, err
		}
		return []types.PageID{item.pageID}, nil

	case pageKindLeaf:
		leaf, err := decodeLeafPage(item.pageID, item.frame.Data)
		if err != nil {
			return nil, err
		}
		if leaf.size != 0 {
			return nil, nil
		}
		t.rootPageID = types.InvalidPageID
		if err := t.persist(false); err != nil {
			return nil, err
		}
		return []types.PageID{item.pageID}, nil
	}
	return nil, nil
}
