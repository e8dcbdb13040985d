package bptree

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/core/buffer"
	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage"
)

func newTestTree(t *testing.T, leafMax, internalMax int) *Tree[int64, storage.RID] {
	t.Helper()
	pool := buffer.NewPool(64)
	header := NewHeaderPage()
	return NewTree[int64, storage.RID]("test-index", pool, header, leafMax, internalMax)
}

func TestTreeInsertAndLookupRoundTrip(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	for i := int64(1); i <= 10; i++ {
		ok, err := tree.Insert(i, storage.NewRID(i), txn)
		require.NoError(t, err)
		assert.True(t, ok, "insert of key %d should succeed", i)
	}

	for i := int64(1); i <= 10; i++ {
		vals, ok := tree.GetValue(i)
		require.True(t, ok, "key %d should be present", i)
		require.Len(t, vals, 1)
		assert.Equal(t, storage.NewRID(i), vals[0])
	}

	_, ok := tree.GetValue(11)
	assert.False(t, ok)
}

func TestTreeInsertRejectsDuplicateKey(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	ok, err := tree.Insert(5, storage.NewRID(5), txn)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tree.Insert(5, storage.NewRID(50), txn)
	require.NoError(t, err)
	assert.False(t, ok)

	vals, found := tree.GetValue(5)
	require.True(t, found)
	assert.Equal(t, storage.NewRID(5), vals[0])
}

func TestTreeIteratorYieldsSortedKeys(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	order := []int64{5, 3, 8, 1, 9, 2, 7, 4, 6, 10}
	for _, k := range order {
		_, err := tree.Insert(k, storage.NewRID(k), txn)
		require.NoError(t, err)
	}

	it := tree.Begin()
	defer it.Close()

	var got []int64
	for !it.IsEnd() {
		k, _, err := it.Get()
		require.NoError(t, err)
		got = append(got, k)
		require.NoError(t, it.Next())
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestTreeIteratorTerminatesAfterExactlyNDereferences(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(i, storage.NewRID(i), txn)
		require.NoError(t, err)
	}

	it := tree.Begin()
	defer it.Close()

	count := 0
	for !it.IsEnd() {
		_, _, err := it.Get()
		require.NoError(t, err)
		count++
		require.NoError(t, it.Next())
	}
	assert.Equal(t, 10, count)
}

func TestTreeRangeIsInclusiveBothEnds(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(i, storage.NewRID(i), txn)
		require.NoError(t, err)
	}

	var got []int64
	for k := range tree.Range(3, 7) {
		got = append(got, k)
	}
	assert.Equal(t, []int64{3, 4, 5, 6, 7}, got)
}

func TestTreeRemoveDeletesAndRebalances(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(i, storage.NewRID(i), txn)
		require.NoError(t, err)
	}

	for _, k := range []int64{3, 7, 5} {
		require.NoError(t, tree.Remove(k, txn))
	}

	for _, k := range []int64{3, 5, 7} {
		_, ok := tree.GetValue(k)
		assert.False(t, ok, "key %d should have been removed", k)
	}

	var remaining []int64
	it := tree.Begin()
	for !it.IsEnd() {
		k, _, err := it.Get()
		require.NoError(t, err)
		remaining = append(remaining, k)
		require.NoError(t, it.Next())
	}
	it.Close()

	assert.Equal(t, []int64{1, 2, 4, 6, 8, 9, 10}, remaining)
}

func TestTreeRemoveEverythingLeavesEmptyTree(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	for i := int64(1); i <= 20; i++ {
		_, err := tree.Insert(i, storage.NewRID(i), txn)
		require.NoError(t, err)
	}
	for i := int64(1); i <= 20; i++ {
		require.NoError(t, tree.Remove(i, txn))
	}

	assert.True(t, tree.IsEmpty())
	_, ok := tree.GetValue(1)
	assert.False(t, ok)
}

func TestTreeRemoveMissingKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	_, err := tree.Insert(1, storage.NewRID(1), txn)
	require.NoError(t, err)

	assert.NoError(t, tree.Remove(999, txn))

	_, ok := tree.GetValue(1)
	assert.True(t, ok)
}

func TestTreeFromFileHelpers(t *testing.T) {
	dir := t.TempDir()
	insertPath := dir + "/insert.txt"
	removePath := dir + "/remove.txt"
	require.NoError(t, writeLines(insertPath, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	require.NoError(t, writeLines(removePath, []int64{2, 4, 6}))

	tree := newTestTree(t, 3, 3)
	txn := lockmgr.New(1)

	require.NoError(t, InsertFromFile(tree, insertPath, txn))
	require.NoError(t, RemoveFromFile(tree, removePath, txn))

	for _, k := range []int64{2, 4, 6} {
		_, ok := tree.GetValue(k)
		assert.False(t, ok)
	}
	for _, k := range []int64{1, 3, 5, 7, 8, 9, 10} {
		_, ok := tree.GetValue(k)
		assert.True(t, ok)
	}
}

func writeLines(path string, keys []int64) error {
	var buf []byte
	for _, k := range keys {
		buf = append(buf, []byte(strconv.FormatInt(k, 10))...)
		buf = append(buf, '\n')
	}
	return os.WriteFile(path, buf, 0o644)
}
