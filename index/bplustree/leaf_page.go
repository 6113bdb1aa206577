package bplustree

import (
	"encoding/binary"
	"fmt"
	"sort"

	"coredb/types"
)

// leafPage is the decoded, typed view of a page.Frame's bytes when that
// frame holds a B+ tree leaf: an array of (key, RID) pairs of length size,
// strictly increasing by key, plus a link to the next leaf in key order.
type leafPage struct {
	pageID   types.PageID
	parent   types.PageID
	next     types.PageID
	size     int
	maxSize  int
	keys     []int64
	values   []types.RID
}

func newLeafPage(pageID, parent types.PageID, maxSize int) *leafPage {
	return &leafPage{
		pageID:  pageID,
		parent:  parent,
		next:    types.InvalidPageID,
		maxSize: maxSize,
		keys:    make([]int64, 0, maxSize+1),
		values:  make([]types.RID, 0, maxSize+1),
	}
}

func decodeLeafPage(pageID types.PageID, data []byte) (*leafPage, error) {
	if pageKind(data[0]) != pageKindLeaf {
		return nil, fmt.Errorf("bplustree: page %d is not a leaf page", pageID)
	}
	size := int(int32(binary.LittleEndian.Uint32(data[1:5])))
	maxSize := int(int32(binary.LittleEndian.Uint32(data[5:9])))
	parent := types.PageID(int32(binary.LittleEndian.Uint32(data[9:13])))
	next := types.PageID(int32(binary.LittleEndian.Uint32(data[13:17])))

	n := &leafPage{
		pageID:  pageID,
		parent:  parent,
		next:    next,
		size:    size,
		maxSize: maxSize,
		keys:    make([]int64, size),
		values:  make([]types.RID, size),
	}

	off := leafHeaderSize
	for i := 0; i < size; i++ {
		n.keys[i] = int64(binary.LittleEndian.Uint64(data[off : off+8]))
		pid := types.PageID(int32(binary.LittleEndian.Uint32(data[off+8 : off+12])))
		slot := binary.LittleEndian.Uint32(data[off+12 : off+16])
		n.values[i] = types.RID{PageID: pid, SlotIndex: slot}
		off += leafSlotSize
	}
	return n, nil
}

func (n *leafPage) encode(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = byte(pageKindLeaf)
	binary.LittleEndian.PutUint32(dst[1:5], uint32(int32(n.size)))
	binary.LittleEndian.PutUint32(dst[5:9], uint32(int32(n.maxSize)))
	binary.LittleEndian.PutUint32(dst[9:13], uint32(int32(n.parent)))
	binary.LittleEndian.PutUint32(dst[13:17], uint32(int32(n.next)))

	off := leafHeaderSize
	for i := 0; i < n.size; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(n.keys[i]))
		binary.LittleEndian.PutUint32(dst[off+8:off+12], uint32(int32(n.values[i].PageID)))
		binary.LittleEndian.PutUint32(dst[off+12:off+16], n.values[i].SlotIndex)
		off += leafSlotSize
	}
}

func (n *leafPage) checkIndex(i int) {
	if i < 0 || i >= n.size {
		panic(fmt.Errorf("bplustree: leaf page %d: %w (index %d, size %d)", n.pageID, types.ErrOutOfRange, i, n.size))
	}
}

func (n *leafPage) keyAt(i int) int64 {
	n.checkIndex(i)
	return n.keys[i]
}

func (n *leafPage) getItem(i int) (int64, types.RID) {
	n.checkIndex(i)
	return n.keys[i], n.values[i]
}

// keyIndex returns the first slot whose key is >= key (an insertion point).
func (n *leafPage) keyIndex(key int64, cmp Comparator) int {
	return sort.Search(n.size, func(i int) bool {
		return cmp(n.keys[i], key) >= 0
	})
}

// lookup reports the value stored for key, if present.
func (n *leafPage) lookup(key int64, cmp Comparator) (types.RID, bool) {
	i := n.keyIndex(key, cmp)
	if i < n.size && cmp(n.keys[i], key) == 0 {
		return n.values[i], true
	}
	return types.RID{}, false
}

// insert adds (key, value) in sorted position, rejecting a duplicate key.
// Returns the node's size after the call; an unchanged size means the key
// already existed and nothing was inserted.
func (n *leafPage) insert(key int64, value types.RID, cmp Comparator) int {
	i := n.keyIndex(key, cmp)
	if i < n.size && cmp(n.keys[i], key) == 0 {
		return n.size
	}

	n.keys = append(n.keys, 0)
	n.values = append(n.values, types.RID{})
	copy(n.keys[i+1:], n.keys[i:])
	copy(n.values[i+1:], n.values[i:])
	n.keys[i] = key
	n.values[i] = value
	n.size++
	return n.size
}

// removeAndDelete deletes key if present, returning the node's size after
// the call; an unchanged size means the key was not found.
func (n *leafPage) removeAndDelete(key int64, cmp Comparator) int {
	i := n.keyIndex(key, cmp)
	if i >= n.size || cmp(n.keys[i], key) != 0 {
		return n.size
	}
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.values = append(n.values[:i], n.values[i+1:]...)
	n.size--
	return n.size
}

// moveHalfTo transfers the upper half of this leaf's entries to recipient,
// which must be empty, and links recipient after n in the leaf chain.
func (n *leafPage) moveHalfTo(recipient *leafPage) {
	start := n.size / 2
	recipient.keys = append(recipient.keys[:0], n.keys[start:]...)
	recipient.values = append(recipient.values[:0], n.values[start:]...)
	recipient.size = n.size - start

	n.keys = n.keys[:start]
	n.values = n.values[:start]
	n.size = start

	recipient.next = n.next
	n.next = recipient.pageID
}

// moveAllTo merges this entire leaf into recipient (which holds the keys
// to n's left) and splices n out of the leaf chain.
func (n *leafPage) moveAllTo(recipient *leafPage) {
	recipient.keys = append(recipient.keys, n.keys[:n.size]...)
	recipient.values = append(recipient.values, n.values[:n.size]...)
	recipient.size += n.size
	recipient.next = n.next
	n.size = 0
}

// moveFirstToEndOf shifts this leaf's first entry onto the end of
// recipient, which sits to n's left.
func (n *leafPage) moveFirstToEndOf(recipient *leafPage) {
	recipient.keys = append(recipient.keys, n.keys[0])
	recipient.values = append(recipient.values, n.values[0])
	recipient.size++

	n.keys = append(n.keys[:0], n.keys[1:]...)
	n.values = append(n.values[:0], n.values[1:]...)
	n.size--
}

// moveLastToFrontOf shifts this leaf's last entry onto the front of
// recipient, which sits to n's right.
func (n *leafPage) moveLastToFrontOf(recipient *leafPage) {
	lastIdx := n.size - 1

	recipient.keys = append(recipient.keys, 0)
	recipient.values = append(recipient.values, types.RID{})
	copy(recipient.keys[1:], recipient.keys[:len(recipient.keys)-1])
	copy(recipient.values[1:], recipient.values[:len(recipient.values)-1])
	recipient.keys[0] = n.keys[lastIdx]
	recipient.values[0] = n.values[lastIdx]
	recipient.size++

	n.keys = n.keys[:lastIdx]
	n.values = n.values[:lastIdx]
	n.size--
}
