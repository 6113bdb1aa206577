package catalog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/index/bplustree"
	"coredb/storage/buffer"
	"coredb/storage/disk"
	"coredb/types"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := t.Name() + ".db"
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	dm, err := disk.NewFileManager(path, 256)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPoolManager(16, 256, dm)
	cat, err := Open(pool)
	require.NoError(t, err)
	return cat
}

func TestCatalogOpenIndexCreatesEmptyTree(t *testing.T) {
	cat := newTestCatalog(t)

	tree, err := cat.OpenIndex("primary", bplustree.DefaultComparator, 4, 4)
	require.NoError(t, err)
	assert.True(t, tree.IsEmpty())
}

func TestCatalogOpenIndexTwiceReturnsSameTree(t *testing.T) {
	cat := newTestCatalog(t)

	a, err := cat.OpenIndex("primary", bplustree.DefaultComparator, 4, 4)
	require.NoError(t, err)
	b, err := cat.OpenIndex("primary", bplustree.DefaultComparator, 4, 4)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCatalogRecordsRootAfterFirstInsert(t *testing.T) {
	cat := newTestCatalog(t)

	tree, err := cat.OpenIndex("primary", bplustree.DefaultComparator, 4, 4)
	require.NoError(t, err)
	ok, err := tree.Insert(1, types.RID{PageID: 1})
	require.NoError(t, err)
	require.True(t, ok)

	root, exists, err := cat.lookupRoot("primary")
	require.NoError(t, err)
	require.True(t, exists)
	assert.NotEqual(t, types.InvalidPageID, root)
}

func TestCatalogDropIndexRemovesRecord(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.OpenIndex("primary", bplustree.DefaultComparator, 4, 4)
	require.NoError(t, err)
	require.NoError(t, cat.DropIndex("primary"))

	err = cat.DropIndex("primary")
	assert.ErrorIs(t, err, types.ErrIndexNotFound)
}
