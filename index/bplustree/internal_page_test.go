package bplustree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/types"
)

// noopReparenter satisfies reparenter for page-level tests that don't need
// a real buffer pool.
type noopReparenter struct {
	reparented map[types.PageID]types.PageID
}

func newNoopReparenter() *noopReparenter {
	return &noopReparenter{reparented: make(map[types.PageID]types.PageID)}
}

func (r *noopReparenter) reparentChild(child, newParent types.PageID) error {
	r.reparented[child] = newParent
	return nil
}

func TestInternalPagePopulateNewRoot(t *testing.T) {
	root := newInternalPage(1, types.InvalidPageID, 4)
	root.populateNewRoot(types.PageID(2), 10, types.PageID(3))

	assert.Equal(t, 2, root.size)
	assert.Equal(t, types.PageID(2), root.valueAt(0))
	assert.Equal(t, types.PageID(3), root.valueAt(1))
	assert.Equal(t, int64(10), root.keyAt(1))
}

func TestInternalPageLookupSelectsCorrectChild(t *testing.T) {
	n := newInternalPage(1, types.InvalidPageID, 4)
	n.populateNewRoot(types.PageID(10), 5, types.PageID(20))
	n.insertAfter(types.PageID(20), 15, types.PageID(30))

	assert.Equal(t, types.PageID(10), n.lookup(1, DefaultComparator))
	assert.Equal(t, types.PageID(20), n.lookup(5, DefaultComparator))
	assert.Equal(t, types.PageID(20), n.lookup(10, DefaultComparator))
	assert.Equal(t, types.PageID(30), n.lookup(15, DefaultComparator))
	assert.Equal(t, types.PageID(30), n.lookup(100, DefaultComparator))
}

func TestInternalPageEncodeDecodeRoundTrip(t *testing.T) {
	n := newInternalPage(4, types.PageID(1), 4)
	n.populateNewRoot(types.PageID(5), 42, types.PageID(6))

	buf := make([]byte, 128)
	n.encode(buf)

	decoded, err := decodeInternalPage(4, buf)
	require.NoError(t, err)
	assert.Equal(t, n.parent, decoded.parent)
	assert.Equal(t, n.keys, decoded.keys)
	assert.Equal(t, n.children, decoded.children)
}

func TestInternalPageMoveHalfToReparentsChildren(t *testing.T) {
	left := newInternalPage(1, types.InvalidPageID, 4)
	left.populateNewRoot(types.PageID(10), 5, types.PageID(20))
	left.insertAfter(types.PageID(20), 15, types.PageID(30))
	left.insertAfter(types.PageID(30), 25, types.PageID(40))
	right := newInternalPage(2, types.InvalidPageID, 4)

	rp := newNoopReparenter()
	require.NoError(t, left.moveHalfTo(right, rp))

	assert.Less(t, left.size, 4)
	assert.Greater(t, right.size, 0)
	for _, child := range right.children {
		assert.Equal(t, types.PageID(2), rp.reparented[child])
	}
}

// TestInternalPageMoveHalfToOverflowSplitMeetsMinSize replicates the actual
// state insertIntoParentAt hands to moveHalfTo: a node that has already
// grown one past maxSize, never a node still at maxSize. This is the shape
// a real internal split occurs at, and both resulting sides must still
// satisfy min_size <= size.
func TestInternalPageMoveHalfToOverflowSplitMeetsMinSize(t *testing.T) {
	const maxSize = 4
	donor := newInternalPage(1, types.InvalidPageID, maxSize)
	donor.populateNewRoot(types.PageID(10), 5, types.PageID(20))
	donor.insertAfter(types.PageID(20), 15, types.PageID(30))
	donor.insertAfter(types.PageID(30), 25, types.PageID(40))
	donor.insertAfter(types.PageID(40), 35, types.PageID(50))
	require.Equal(t, maxSize+1, donor.size)

	recipient := newInternalPage(2, types.InvalidPageID, maxSize)
	rp := newNoopReparenter()
	require.NoError(t, donor.moveHalfTo(recipient, rp))

	minSize := internalMinSize(maxSize)
	assert.GreaterOrEqual(t, donor.size, minSize)
	assert.GreaterOrEqual(t, recipient.size, minSize)
	assert.Equal(t, maxSize+1, donor.size+recipient.size)
}

func TestInternalPageMoveAllToDonatesMiddleKey(t *testing.T) {
	left := newInternalPage(1, types.InvalidPageID, 4)
	left.populateNewRoot(types.PageID(10), 5, types.PageID(20))
	right := newInternalPage(2, types.InvalidPageID, 4)
	right.populateNewRoot(types.PageID(30), 25, types.PageID(40))

	rp := newNoopReparenter()
	require.NoError(t, right.moveAllTo(left, 15, rp))

	assert.Equal(t, 0, right.size)
	assert.Equal(t, types.PageID(1), rp.reparented[types.PageID(30)])
	assert.Equal(t, types.PageID(1), rp.reparented[types.PageID(40)])
	assert.Contains(t, left.keys, int64(15))
}

func TestInternalPageRedistributeBorrowFromLeft(t *testing.T) {
	left := newInternalPage(1, types.InvalidPageID, 4)
	left.populateNewRoot(types.PageID(1), 5, types.PageID(2))
	left.insertAfter(types.PageID(2), 10, types.PageID(3))
	right := newInternalPage(2, types.InvalidPageID, 4)
	right.populateNewRoot(types.PageID(4), 20, types.PageID(5))

	rp := newNoopReparenter()
	require.NoError(t, left.moveLastToFrontOf(right, 15, rp))

	assert.Equal(t, types.PageID(3), right.valueAt(0))
	assert.Equal(t, int64(15), right.keyAt(1))
	assert.Equal(t, 2, left.size)
}

func TestInternalPageRedistributeBorrowFromRight(t *testing.T) {
	left := newInternalPage(1, types.InvalidPageID, 4)
	left.populateNewRoot(types.PageID(1), 5, types.PageID(2))
	right := newInternalPage(2, types.InvalidPageID, 4)
	right.populateNewRoot(types.PageID(3), 20, types.PageID(4))
	right.insertAfter(types.PageID(4), 30, types.PageID(5))

	rp := newNoopReparenter()
	exposed, err := right.moveFirstToEndOf(left, 15, rp)
	require.NoError(t, err)
	assert.Equal(t, int64(20), exposed)

	assert.Equal(t, types.PageID(3), left.valueAt(2))
	assert.Equal(t, int64(15), left.keyAt(2))
	assert.Equal(t, 2, right.size)
}

func TestInternalPageCheckIndexPanicsOutOfRange(t *testing.T) {
	n := newInternalPage(1, types.InvalidPageID, 4)
	n.populateNewRoot(types.PageID(1), 5, types.PageID(2))
	assert.Panics(t, func() { n.keyAt(5) })
}
