package bplustree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIteratorBeginKeyStartsAtOrAfterKey(t *testing.T) {
	tree := newTestTree(t, 16)
	for _, k := range []int64{1, 3, 5, 7, 9} {
		_, err := tree.Insert(k, ridFor(k))
		require.NoError(t, err)
	}

	it, err := tree.BeginKey(4)
	require.NoError(t, err)
	defer it.Close()

	key, _ := it.Item()
	assert.Equal(t, int64(5), key)
}

func TestIteratorEmptyTreeIsImmediatelyEnd(t *testing.T) {
	tree := newTestTree(t, 16)
	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()
	assert.True(t, it.IsEnd())
}

func TestIteratorCrossesLeafBoundary(t *testing.T) {
	tree := newTestTree(t, 16)
	for i := int64(1); i <= 20; i++ {
		_, err := tree.Insert(i, ridFor(i))
		require.NoError(t, err)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var seen []int64
	for !it.IsEnd() {
		k, _ := it.Item()
		seen = append(seen, k)
		require.NoError(t, it.Next())
	}
	require.Len(t, seen, 20)
	for i, k := range seen {
		assert.Equal(t, int64(i+1), k)
	}
}
