package bplustree

import "coredb/types"

// Iterator walks a tree's leaves in key order. It holds exactly one leaf
// pinned and read-latched at a time; advancing past a leaf's last slot
// latches the next leaf before releasing the current one.
type Iterator struct {
	tree  *Tree
	stack *latchStack
	leaf  *leafPage
	slot  int
}

// Begin returns an iterator positioned at the first key in the tree.
func (t *Tree) Begin() (*Iterator, error) {
	return t.newIterator(0, descendLeftmost, 0)
}

// BeginKey returns an iterator positioned at key, or at the first key
// greater than key if key itself is absent.
func (t *Tree) BeginKey(key int64) (*Iterator, error) {
	return t.newIterator(key, descendByKey, -1)
}

// End returns an iterator positioned one past the tree's last entry; it is
// only meaningful compared against another iterator's IsEnd/position, not
// dereferenced.
func (t *Tree) End() (*Iterator, error) {
	it, err := t.newIterator(0, descendRightmost, 0)
	if err != nil {
		return it, err
	}
	it.slot = it.leaf.size
	return it, nil
}

func (t *Tree) newIterator(key int64, mode descendMode, fallbackSlot int) (*Iterator, error) {
	stack, err := t.descend(key, mode, opFind)
	if err == types.ErrIndexNotFound {
		return &Iterator{tree: t}, nil
	}
	if err != nil {
		return nil, err
	}

	leafItem := stack.items[len(stack.items)-1]
	leaf, err := decodeLeafPage(leafItem.pageID, leafItem.frame.Data)
	if err != nil {
		stack.releaseAll()
		return nil, err
	}

	slot := fallbackSlot
	if fallbackSlot < 0 {
		slot = leaf.keyIndex(key, t.cmp)
	}

	it := &Iterator{tree: t, stack: stack, leaf: leaf, slot: slot}
	if slot == leaf.size && leaf.next != types.InvalidPageID {
		// Every key in this leaf is smaller than key: the first greater key
		// is the next leaf's first entry.
		it.slot--
		if err := it.Next(); err != nil {
			it.Close()
			return nil, err
		}
	}
	return it, nil
}

// IsEnd reports whether the iterator has advanced past the last entry.
func (it *Iterator) IsEnd() bool {
	if it.leaf == nil {
		return true
	}
	return it.leaf.next == types.InvalidPageID && it.slot == it.leaf.size
}

// Item returns the (key, value) pair at the iterator's current position.
// It must not be called when IsEnd is true.
func (it *Iterator) Item() (int64, types.RID) {
	return it.leaf.getItem(it.slot)
}

// Next advances the iterator by one entry, crossing into the next leaf
// when the current one is exhausted.
func (it *Iterator) Next() error {
	it.slot++
	if it.slot < it.leaf.size || it.leaf.next == types.InvalidPageID {
		return nil
	}

	nextID := it.leaf.next
	nextFrame, err := it.tree.pool.Fetch(nextID)
	if err != nil {
		return err
	}
	nextFrame.Latch.RLock()

	current := it.stack.items[len(it.stack.items)-1]
	current.frame.Latch.RUnlock()
	if err := it.tree.pool.Unpin(current.pageID, false); err != nil {
		nextFrame.Latch.RUnlock()
		it.tree.pool.Unpin(nextID, false)
		return err
	}

	it.stack.items[len(it.stack.items)-1] = heldFrame{frame: nextFrame, pageID: nextID, mode: latchRead}

	leaf, err := decodeLeafPage(nextID, nextFrame.Data)
	if err != nil {
		return err
	}
	it.leaf = leaf
	it.slot = 0
	return nil
}

// Close releases the iterator's held leaf latch and pin. Safe to call more
// than once.
func (it *Iterator) Close() {
	if it.stack != nil {
		it.stack.releaseAll()
		it.stack = nil
	}
}
