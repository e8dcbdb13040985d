package bptree

import (
	"cmp"
	"iter"

	"github.com/relstore/core/buffer"
	"github.com/relstore/core/storage"
)

// Iterator walks leaves in key order, pinning at most one leaf page at
// a time and releasing the previous one on every advance, per spec.md
// §4.3's iterator contract. The zero value is not usable; obtain one
// via Tree.Begin or Tree.BeginAt.
type Iterator[K cmp.Ordered, V any] struct {
	tree   *Tree[K, V]
	leafID storage.PageID
	leaf   *leafNode[K, V]
	index  int
	pinned bool
	err    error
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *Tree[K, V]) Begin() *Iterator[K, V] {
	if t.IsEmpty() {
		return &Iterator[K, V]{tree: t, leafID: storage.InvalidPageID}
	}

	id := t.rootID()
	for {
		page, env, err := t.fetchEnvelope(id)
		if err != nil {
			return &Iterator[K, V]{tree: t, err: err}
		}
		if env.Kind == leafKind {
			return &Iterator[K, V]{tree: t, leafID: id, leaf: env.Leaf, pinned: true}
		}
		next := env.Internal.valueAt(0)
		t.pool.Unpin(id, false)
		_ = page
		id = next
	}
}

// BeginAt returns an iterator positioned at the first entry whose key
// is >= key.
func (t *Tree[K, V]) BeginAt(key K) *Iterator[K, V] {
	if t.IsEmpty() {
		return &Iterator[K, V]{tree: t, leafID: storage.InvalidPageID}
	}

	leafID, err := t.findLeaf(key)
	if err != nil {
		return &Iterator[K, V]{tree: t, err: err}
	}

	_, env, err := t.fetchEnvelope(leafID)
	if err != nil {
		return &Iterator[K, V]{tree: t, err: err}
	}

	idx := env.Leaf.findIndex(key)
	it := &Iterator[K, V]{tree: t, leafID: leafID, leaf: env.Leaf, index: idx, pinned: true}
	if idx >= int(env.Leaf.Size) && env.Leaf.Next != storage.InvalidPageID {
		// key is past every entry of this leaf: step onto the next one.
		it.index--
		it.Next()
	}
	return it
}

// IsEnd reports whether the iterator has run past the last entry.
func (it *Iterator[K, V]) IsEnd() bool {
	if it.err != nil || it.leaf == nil {
		return true
	}
	return it.index >= int(it.leaf.Size) && it.leaf.Next == storage.InvalidPageID
}

// Err returns the first error encountered while positioning or
// advancing the iterator, if any.
func (it *Iterator[K, V]) Err() error { return it.err }

// Get returns the entry the iterator currently points at.
func (it *Iterator[K, V]) Get() (K, V, error) {
	var zk K
	var zv V
	if it.leaf == nil || it.index >= int(it.leaf.Size) {
		return zk, zv, ErrOutOfRange
	}
	return it.leaf.Keys[it.index], it.leaf.Values[it.index], nil
}

// Next advances the iterator by one entry, crossing into the next leaf
// and unpinning the one just left behind when the current leaf is
// exhausted.
func (it *Iterator[K, V]) Next() error {
	if it.leaf == nil {
		return ErrOutOfRange
	}
	it.index++
	if it.index < int(it.leaf.Size) {
		return nil
	}
	if it.leaf.Next == storage.InvalidPageID {
		return nil
	}

	nextID := it.leaf.Next
	if it.pinned {
		it.tree.pool.Unpin(it.leafID, false)
	}

	page, err := it.tree.pool.Fetch(nextID)
	if err != nil {
		it.err = err
		it.pinned = false
		return err
	}
	env, err := buffer.Decode[envelope[K, V]](page.Data)
	if err != nil {
		it.tree.pool.Unpin(nextID, false)
		it.err = err
		it.pinned = false
		return err
	}

	it.leafID = nextID
	it.leaf = env.Leaf
	it.index = 0
	it.pinned = true
	return nil
}

// Close releases the currently pinned leaf, if any. Safe to call more
// than once and safe to call on an iterator that never pinned a page.
func (it *Iterator[K, V]) Close() error {
	if it.pinned {
		it.pinned = false
		return it.tree.pool.Unpin(it.leafID, false)
	}
	return nil
}

// Range yields every (key, value) pair with lo <= key <= hi in order.
// It is a supplement over spec.md's bare Iterator contract, built on
// Go's range-over-func iterators (iter.Seq2) the way a maintained
// module would expose ordered traversal to callers using `for range`.
func (t *Tree[K, V]) Range(lo, hi K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it := t.BeginAt(lo)
		defer it.Close()

		for !it.IsEnd() {
			k, v, err := it.Get()
			if err != nil {
				return
			}
			if k > hi {
				return
			}
			if !yield(k, v) {
				return
			}
			if err := it.Next(); err != nil {
				return
			}
		}
	}
}
