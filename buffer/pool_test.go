package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/core/storage"
)

func TestPoolNewAndFetch(t *testing.T) {
	pool := NewPool(2)

	page, err := pool.New()
	require.NoError(t, err)
	copy(page.Data, []byte("hello"))
	require.NoError(t, pool.Unpin(page.ID, true))

	fetched, err := pool.Fetch(page.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(fetched.Data[:5]))
	require.NoError(t, pool.Unpin(fetched.ID, false))
}

func TestPoolEvictsLeastRecentlyUsed(t *testing.T) {
	pool := NewPool(2)

	p1, err := pool.New()
	require.NoError(t, err)
	copy(p1.Data, []byte("one"))
	require.NoError(t, pool.Unpin(p1.ID, true))

	p2, err := pool.New()
	require.NoError(t, err)
	copy(p2.Data, []byte("two"))
	require.NoError(t, pool.Unpin(p2.ID, true))

	// touch p1 again, making p2 the LRU candidate
	fetched, err := pool.Fetch(p1.ID)
	require.NoError(t, err)
	require.NoError(t, pool.Unpin(fetched.ID, false))

	p3, err := pool.New()
	require.NoError(t, err)
	copy(p3.Data, []byte("three"))
	require.NoError(t, pool.Unpin(p3.ID, true))

	// p2 should have been evicted (and flushed to the backing store) to
	// make room for p3; fetching it again must still work.
	back, err := pool.Fetch(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", string(back.Data[:3]))
	require.NoError(t, pool.Unpin(back.ID, false))
}

func TestPoolExhaustedWhenAllFramesPinned(t *testing.T) {
	pool := NewPool(1)

	p1, err := pool.New()
	require.NoError(t, err)

	_, err = pool.New()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, pool.Unpin(p1.ID, false))
	_, err = pool.New()
	assert.NoError(t, err)
}

func TestPoolDeleteRejectsPinnedPage(t *testing.T) {
	pool := NewPool(2)
	page, err := pool.New()
	require.NoError(t, err)

	assert.ErrorIs(t, pool.Delete(page.ID), ErrPagePinned)

	require.NoError(t, pool.Unpin(page.ID, false))
	assert.NoError(t, pool.Delete(page.ID))
}

func TestPoolUnpinUnknownPage(t *testing.T) {
	pool := NewPool(1)
	assert.ErrorIs(t, pool.Unpin(storage.PageID(999), false), ErrPageNotFound)
}
