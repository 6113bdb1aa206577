package buffer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/storage/disk"
	"coredb/types"
)

func newTestPool(t *testing.T, poolSize, pageSize int) (*PoolManager, func()) {
	t.Helper()
	path := t.Name() + ".db"
	os.Remove(path)
	dm, err := disk.NewFileManager(path, pageSize)
	require.NoError(t, err)
	pool := NewPoolManager(poolSize, pageSize, dm)
	return pool, func() {
		dm.Close()
		os.Remove(path)
	}
}

func TestPoolManagerNewPageAndFetchRoundTrip(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 64)
	defer cleanup()

	frame, id, err := pool.NewPage()
	require.NoError(t, err)
	copy(frame.Data, []byte("hello"))
	require.NoError(t, pool.Unpin(id, true))

	fetched, err := pool.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(fetched.Data[:5]))
	require.NoError(t, pool.Unpin(id, false))
}

func TestPoolManagerEvictsAndWritesBackDirty(t *testing.T) {
	pool, cleanup := newTestPool(t, 1, 64)
	defer cleanup()

	f0, id0, err := pool.NewPage()
	require.NoError(t, err)
	copy(f0.Data, []byte("first"))
	require.NoError(t, pool.Unpin(id0, true))

	f1, id1, err := pool.NewPage()
	require.NoError(t, err)
	copy(f1.Data, []byte("second"))
	require.NoError(t, pool.Unpin(id1, true))
	assert.Equal(t, int64(1), pool.Evictions)

	back, err := pool.Fetch(id0)
	require.NoError(t, err)
	assert.Equal(t, "first", string(back.Data[:5]))
	require.NoError(t, pool.Unpin(id0, false))
}

func TestPoolManagerExhaustedWhenAllPinned(t *testing.T) {
	pool, cleanup := newTestPool(t, 1, 64)
	defer cleanup()

	_, _, err := pool.NewPage()
	require.NoError(t, err)

	_, _, err = pool.NewPage()
	assert.ErrorIs(t, err, types.ErrPoolExhausted)
}

func TestPoolManagerDeletePageRejectsPinned(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 64)
	defer cleanup()

	_, id, err := pool.NewPage()
	require.NoError(t, err)

	err = pool.DeletePage(id)
	assert.ErrorIs(t, err, types.ErrPagePinned)

	require.NoError(t, pool.Unpin(id, false))
	assert.NoError(t, pool.DeletePage(id))
}

func TestPoolManagerDeletePageReturnsFrameToFreeList(t *testing.T) {
	pool, cleanup := newTestPool(t, 1, 64)
	defer cleanup()

	_, id, err := pool.NewPage()
	require.NoError(t, err)
	require.NoError(t, pool.Unpin(id, false))
	require.NoError(t, pool.DeletePage(id))

	_, _, err = pool.NewPage()
	assert.NoError(t, err)
}
