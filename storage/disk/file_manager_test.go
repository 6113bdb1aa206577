package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/types"
)

func TestFileManagerAllocateWriteReadRoundTrip(t *testing.T) {
	path := t.Name() + ".db"
	os.Remove(path)
	defer os.Remove(path)

	m, err := NewFileManager(path, 64)
	require.NoError(t, err)
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, types.PageID(0), id)

	data := make([]byte, 64)
	copy(data, []byte("hello world"))
	require.NoError(t, m.WritePage(id, data))

	got := make([]byte, 64)
	require.NoError(t, m.ReadPage(id, got))
	assert.Equal(t, data, got)
}

func TestFileManagerDeallocatedPageIsReused(t *testing.T) {
	path := t.Name() + ".db"
	os.Remove(path)
	defer os.Remove(path)

	m, err := NewFileManager(path, 64)
	require.NoError(t, err)
	defer m.Close()

	id0, err := m.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, m.DeallocatePage(id0))

	id1, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, id0, id1)
}

func TestFileManagerReadPastEndOfFileYieldsZeros(t *testing.T) {
	path := t.Name() + ".db"
	os.Remove(path)
	defer os.Remove(path)

	m, err := NewFileManager(path, 64)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, m.ReadPage(types.PageID(5), buf))
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}
