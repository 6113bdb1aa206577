// Package bplustree implements a disk-resident, concurrent B+ tree index
// over pages obtained from a storage/buffer.PoolManager, using latch
// crabbing for concurrent descent and the split/coalesce/redistribute
// algorithms of a classic on-disk B+ tree.
package bplustree

type pageKind byte

const (
	pageKindInvalid pageKind = iota
	pageKindInternal
	pageKindLeaf
)

// Common header: kind(1) + size(4) + maxSize(4) + parentPageID(4).
const commonHeaderSize = 1 + 4 + 4 + 4

// Leaf pages add a next-leaf page id.
const leafHeaderSize = commonHeaderSize + 4

// internalSlotSize is the packed size of one (key, child page id) pair.
const internalSlotSize = 8 + 4

// leafSlotSize is the packed size of one (key, RID) pair.
const leafSlotSize = 8 + 4 + 4

// Comparator orders two keys, returning <0, 0, or >0 as a < b, a == b, a > b.
type Comparator func(a, b int64) int

// DefaultComparator orders int64 keys numerically.
func DefaultComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// leafMinSize is ceil(L/2): the fewest entries a non-root leaf may hold.
func leafMinSize(maxSize int) int {
	return (maxSize + 1) / 2
}

// internalMinSize is ceil(I/2), the same shape as leafMinSize: the fewest
// entries a non-root internal node may hold. moveHalfTo only ever splits a
// node once it has overflowed to maxSize+1 entries, so the smaller side of
// any split holds (maxSize+1)/2 entries; this formula is the largest one
// that stays at or below that floor for every maxSize the split boundary
// in insertIntoParentAt actually produces.
func internalMinSize(maxSize int) int {
	return (maxSize + 1) / 2
}
