package bplustree

import (
	"encoding/binary"
	"fmt"
	"sort"

	"coredb/types"
)

// internalPage is the decoded, typed view of a page.Frame's bytes when
// that frame holds a B+ tree internal node: an array of (key, child page
// id) pairs of length size. Slot 0's key is unused; slot 0's child is the
// leftmost child of the subtree this node roots.
type internalPage struct {
	pageID   types.PageID
	parent   types.PageID
	size     int
	maxSize  int
	keys     []int64
	children []types.PageID
}

func newInternalPage(pageID, parent types.PageID, maxSize int) *internalPage {
	return &internalPage{
		pageID:   pageID,
		parent:   parent,
		maxSize:  maxSize,
		keys:     make([]int64, 0, maxSize+1),
		children: make([]types.PageID, 0, maxSize+1),
	}
}

// decodeInternalPage reads a page's raw bytes into a typed internalPage.
func decodeInternalPage(pageID types.PageID, data []byte) (*internalPage, error) {
	if pageKind(data[0]) != pageKindInternal {
		return nil, fmt.Errorf("bplustree: page %d is not an internal page", pageID)
	}
	size := int(int32(binary.LittleEndian.Uint32(data[1:5])))
	maxSize := int(int32(binary.LittleEndian.Uint32(data[5:9])))
	parent := types.PageID(int32(binary.LittleEndian.Uint32(data[9:13])))

	n := &internalPage{
		pageID:   pageID,
		parent:   parent,
		size:     size,
		maxSize:  maxSize,
		keys:     make([]int64, size),
		children: make([]types.PageID, size),
	}

	off := commonHeaderSize
	for i := 0; i < size; i++ {
		n.keys[i] = int64(binary.LittleEndian.Uint64(data[off : off+8]))
		n.children[i] = types.PageID(int32(binary.LittleEndian.Uint32(data[off+8 : off+12])))
		off += internalSlotSize
	}
	return n, nil
}

// encode writes n's contents into dst (a full page-sized buffer),
// zero-padding whatever slot capacity is unused.
func (n *internalPage) encode(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = byte(pageKindInternal)
	binary.LittleEndian.PutUint32(dst[1:5], uint32(int32(n.size)))
	binary.LittleEndian.PutUint32(dst[5:9], uint32(int32(n.maxSize)))
	binary.LittleEndian.PutUint32(dst[9:13], uint32(int32(n.parent)))

	off := commonHeaderSize
	for i := 0; i < n.size; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(n.keys[i]))
		binary.LittleEndian.PutUint32(dst[off+8:off+12], uint32(int32(n.children[i])))
		off += internalSlotSize
	}
}

func (n *internalPage) checkIndex(i int) {
	if i < 0 || i >= n.size {
		panic(fmt.Errorf("bplustree: internal page %d: %w (index %d, size %d)", n.pageID, types.ErrOutOfRange, i, n.size))
	}
}

func (n *internalPage) keyAt(i int) int64 {
	n.checkIndex(i)
	return n.keys[i]
}

func (n *internalPage) setKeyAt(i int, k int64) {
	n.checkIndex(i)
	n.keys[i] = k
}

func (n *internalPage) valueAt(i int) types.PageID {
	n.checkIndex(i)
	return n.children[i]
}

// valueIndex returns the slot holding child, or size if absent.
func (n *internalPage) valueIndex(child types.PageID) int {
	for i := 0; i < n.size; i++ {
		if n.children[i] == child {
			return i
		}
	}
	return n.size
}

// lookup returns the child page id to descend into for key, using the
// invariant that key_at(i) <= key < key_at(i+1) selects child i.
func (n *internalPage) lookup(key int64, cmp Comparator) types.PageID {
	if n.size == 0 {
		return types.InvalidPageID
	}
	if cmp(key, n.keys[1]) < 0 {
		return n.children[0]
	}
	if cmp(key, n.keys[n.size-1]) >= 0 {
		return n.children[n.size-1]
	}
	// binary search slots [1, size-1) for the largest i with keys[i] <= key
	i := sort.Search(n.size-1, func(i int) bool {
		return cmp(n.keys[i+1], key) > 0
	})
	return n.children[i]
}

// populateNewRoot is only valid on an empty node: it becomes a fresh root
// with two children separated by key.
func (n *internalPage) populateNewRoot(left types.PageID, key int64, right types.PageID) {
	n.keys = append(n.keys[:0], 0, key)
	n.children = append(n.children[:0], left, right)
	n.size = 2
}

// insertAfter places (key, newChild) immediately after oldChild's slot.
func (n *internalPage) insertAfter(oldChild types.PageID, key int64, newChild types.PageID) {
	i := n.valueIndex(oldChild) + 1
	n.keys = append(n.keys, 0)
	n.children = append(n.children, 0)
	copy(n.keys[i+1:], n.keys[i:])
	copy(n.children[i+1:], n.children[i:])
	n.keys[i] = key
	n.children[i] = newChild
	n.size++
}

// remove deletes slot i.
func (n *internalPage) remove(i int) {
	n.checkIndex(i)
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.children = append(n.children[:i], n.children[i+1:]...)
	n.size--
}

// removeAndReturnOnlyChild empties the node and returns the child held in
// slot 0, the only child left in a root that a merge has reduced to size 1.
func (n *internalPage) removeAndReturnOnlyChild() types.PageID {
	child := n.children[0]
	n.keys = n.keys[:0]
	n.children = n.children[:0]
	n.size = 0
	return child
}

// reparenter is the minimal capability moveHalfTo and friends need to fix
// up a moved child's parent pointer via the buffer pool.
type reparenter interface {
	reparentChild(child types.PageID, newParent types.PageID) error
}

// moveHalfTo transfers the upper half of this node's slots to recipient,
// which must be empty, and reparents every moved child.
func (n *internalPage) moveHalfTo(recipient *internalPage, rp reparenter) error {
	start := n.size / 2
	recipient.keys = append(recipient.keys[:0], n.keys[start:]...)
	recipient.children = append(recipient.children[:0], n.children[start:]...)
	recipient.size = n.size - start

	n.keys = n.keys[:start]
	n.children = n.children[:start]
	n.size = start

	for _, child := range recipient.children {
		if err := rp.reparentChild(child, recipient.pageID); err != nil {
			return err
		}
	}
	return nil
}

// moveAllTo merges this entire node into recipient (which holds the keys
// to n's left), donating middleKey as the boundary between recipient's old
// last child and n's first child.
func (n *internalPage) moveAllTo(recipient *internalPage, middleKey int64, rp reparenter) error {
	n.keys[0] = middleKey
	recipient.keys = append(recipient.keys, n.keys[:n.size]...)
	recipient.children = append(recipient.children, n.children[:n.size]...)
	recipient.size += n.size

	for _, child := range n.children[:n.size] {
		if err := rp.reparentChild(child, recipient.pageID); err != nil {
			return err
		}
	}
	n.size = 0
	return nil
}

// moveFirstToEndOf shifts this node's first slot onto the end of
// recipient, which sits to n's left. The mover does not touch any parent
// key itself; instead it returns the key exposed at n's new slot 0 before
// that slot is reset to the dummy convention — the value the tree-level
// redistribute must install as the new parent separator. middleKey becomes
// the key carried by the moved slot, per the separator-donation convention.
func (n *internalPage) moveFirstToEndOf(recipient *internalPage, middleKey int64, rp reparenter) (int64, error) {
	movedChild := n.children[0]

	recipient.keys = append(recipient.keys, middleKey)
	recipient.children = append(recipient.children, movedChild)
	recipient.size++

	n.keys = append(n.keys[:0], n.keys[1:]...)
	n.children = append(n.children[:0], n.children[1:]...)
	n.size--

	var exposed int64
	if n.size > 0 {
		exposed = n.keys[0]
		n.keys[0] = 0
	}

	return exposed, rp.reparentChild(movedChild, recipient.pageID)
}

// moveLastToFrontOf shifts this node's last slot onto the front of
// recipient, which sits to n's right.
func (n *internalPage) moveLastToFrontOf(recipient *internalPage, middleKey int64, rp reparenter) error {
	lastIdx := n.size - 1
	movedChild := n.children[lastIdx]

	recipient.keys = append(recipient.keys, 0)
	recipient.children = append(recipient.children, 0)
	copy(recipient.keys[1:], recipient.keys[:len(recipient.keys)-1])
	copy(recipient.children[1:], recipient.children[:len(recipient.children)-1])
	recipient.children[0] = movedChild
	recipient.keys[0] = 0
	recipient.keys[1] = middleKey
	recipient.size++

	n.keys = n.keys[:lastIdx]
	n.children = n.children[:lastIdx]
	n.size--

	return rp.reparentChild(movedChild, recipient.pageID)
}
