package bplustree

import (
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/storage/buffer"
	"coredb/storage/disk"
	"coredb/types"
)

func newTestTree(t *testing.T, poolSize int) *Tree {
	t.Helper()
	path := t.Name() + ".db"
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	dm, err := disk.NewFileManager(path, 256)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPoolManager(poolSize, 256, dm)
	return NewTree("t", pool, nil, DefaultComparator, 4, 4, types.InvalidPageID)
}

func ridFor(key int64) types.RID {
	return types.RID{PageID: types.PageID(key), SlotIndex: 0}
}

func collectKeys(t *testing.T, tree *Tree) []int64 {
	t.Helper()
	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var keys []int64
	for !it.IsEnd() {
		k, _ := it.Item()
		keys = append(keys, k)
		require.NoError(t, it.Next())
	}
	return keys
}

func TestTreeInsertAscendingThenIterate(t *testing.T) {
	tree := newTestTree(t, 16)
	for _, k := range []int64{1, 2, 3, 4, 5} {
		ok, err := tree.Insert(k, ridFor(k))
		require.NoError(t, err)
		require.True(t, ok)
	}

	values, err := tree.GetValue(3)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, ridFor(3), values[0])

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, collectKeys(t, tree))
}

func TestTreeInsertDescendingSameFinalOrder(t *testing.T) {
	tree := newTestTree(t, 16)
	for _, k := range []int64{5, 4, 3, 2, 1} {
		ok, err := tree.Insert(k, ridFor(k))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, collectKeys(t, tree))
}

func TestTreeInsertDuplicateRejected(t *testing.T) {
	tree := newTestTree(t, 16)
	ok, err := tree.Insert(1, ridFor(1))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Insert(1, ridFor(99))
	require.NoError(t, err)
	assert.False(t, ok)

	values, err := tree.GetValue(1)
	require.NoError(t, err)
	assert.Equal(t, ridFor(1), values[0])
}

func TestTreeInsertThenRemoveAllEmptiesTree(t *testing.T) {
	tree := newTestTree(t, 16)
	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(i, ridFor(i))
		require.NoError(t, err)
	}
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tree.Remove(i))
	}
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, collectKeys(t, tree))

	for i := int64(10); i >= 6; i-- {
		require.NoError(t, tree.Remove(i))
	}
	assert.True(t, tree.IsEmpty())
	assert.Empty(t, collectKeys(t, tree))
}

func TestTreeRemoveDescendingCollapsesRoot(t *testing.T) {
	tree := newTestTree(t, 16)
	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(i, ridFor(i))
		require.NoError(t, err)
	}
	for i := int64(10); i >= 6; i-- {
		require.NoError(t, tree.Remove(i))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, collectKeys(t, tree))
}

func TestTreeRemoveAbsentKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 16)
	_, err := tree.Insert(1, ridFor(1))
	require.NoError(t, err)
	require.NoError(t, tree.Remove(999))
	assert.Equal(t, []int64{1}, collectKeys(t, tree))
}

func TestTreeConcurrentMixedOperations(t *testing.T) {
	tree := newTestTree(t, 3)

	const seed = 30
	for i := int64(0); i < seed; i++ {
		_, err := tree.Insert(i, ridFor(i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	const workers = 8
	const opsPerWorker = 200

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := int64((w*opsPerWorker + i) % (seed * 2))
				switch i % 3 {
				case 0:
					_, err := tree.Insert(key, ridFor(key))
					assert.NoError(t, err)
				case 1:
					_, err := tree.GetValue(key)
					assert.NoError(t, err)
				case 2:
					err := tree.Remove(key)
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	keys := collectKeys(t, tree)
	sorted := append([]int64(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, sorted, keys, "leaves must stay in strictly ascending key order")

	for _, k := range keys {
		values, err := tree.GetValue(k)
		require.NoError(t, err)
		require.Len(t, values, 1)
	}
}
