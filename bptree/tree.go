package bptree

import (
	"cmp"

	"github.com/relstore/core/buffer"
	"github.com/relstore/core/storage"
)

// Tree is a disk-backed (here, buffer-pool-backed) B+-tree secondary
// index, generalizing petro's index.BPlusTree (index/b_plus_tree.go)
// from its single hardcoded key/value shape to any ordered key and any
// value type, and swapping its ad hoc page byte-slicing for the
// envelope codec in node.go. leafMax and internalMax mirror petro's
// LeafMaxSize/InternalMaxSize constructor arguments.
type Tree[K cmp.Ordered, V any] struct {
	name        string
	pool        buffer.Pool
	header      HeaderPage
	leafMax     int
	internalMax int
}

// NewTree constructs a named index over pool, recording its root page
// id under name in header. Multiple trees may share one HeaderPage, per
// spec.md §6's "sequence of (index_name, root_page_id) records".
func NewTree[K cmp.Ordered, V any](name string, pool buffer.Pool, header HeaderPage, leafMax, internalMax int) *Tree[K, V] {
	if leafMax < 2 || internalMax < 2 {
		panic("bptree: max size must be >= 2")
	}
	return &Tree[K, V]{name: name, pool: pool, header: header, leafMax: leafMax, internalMax: internalMax}
}

func (t *Tree[K, V]) rootID() storage.PageID {
	id, ok := t.header.Lookup(t.name)
	if !ok {
		return storage.InvalidPageID
	}
	return id
}

func (t *Tree[K, V]) setRoot(id storage.PageID) {
	if _, ok := t.header.Lookup(t.name); ok {
		t.header.UpdateRecord(t.name, id)
	} else {
		t.header.InsertRecord(t.name, id)
	}
}

// IsEmpty reports whether the tree has no root page yet.
func (t *Tree[K, V]) IsEmpty() bool {
	return t.rootID() == storage.InvalidPageID
}

func (t *Tree[K, V]) fetchEnvelope(id storage.PageID) (*buffer.Page, *envelope[K, V], error) {
	page, err := t.pool.Fetch(id)
	if err != nil {
		return nil, nil, err
	}
	env, err := buffer.Decode[envelope[K, V]](page.Data)
	if err != nil {
		t.pool.Unpin(id, false)
		return nil, nil, err
	}
	return page, &env, nil
}

func (t *Tree[K, V]) writeLeaf(page *buffer.Page, n *leafNode[K, V]) error {
	data, err := buffer.Encode(envelope[K, V]{Kind: leafKind, Leaf: n})
	if err != nil {
		return err
	}
	copy(page.Data, data)
	return nil
}

func (t *Tree[K, V]) writeInternal(page *buffer.Page, n *internalNode[K]) error {
	data, err := buffer.Encode(envelope[K, V]{Kind: internalKind, Internal: n})
	if err != nil {
		return err
	}
	copy(page.Data, data)
	return nil
}

// setParent fetches id, rewrites its Parent field, and unpins it dirty.
// Used after every split/merge/redistribute to keep child->parent links
// consistent, per spec.md §4.3's "parent pointers on moved children
// must be updated".
func (t *Tree[K, V]) setParent(id storage.PageID, parent storage.PageID) error {
	page, env, err := t.fetchEnvelope(id)
	if err != nil {
		return err
	}
	if env.Kind == leafKind {
		env.Leaf.Parent = parent
		if err := t.writeLeaf(page, env.Leaf); err != nil {
			t.pool.Unpin(id, false)
			return err
		}
	} else {
		env.Internal.Parent = parent
		if err := t.writeInternal(page, env.Internal); err != nil {
			t.pool.Unpin(id, false)
			return err
		}
	}
	return t.pool.Unpin(id, true)
}

// findLeaf descends the search path for key, following spec.md §4.3's
// rule of comparing against separator keys at each internal level, and
// returns the id of the leaf that would contain key.
func (t *Tree[K, V]) findLeaf(key K) (storage.PageID, error) {
	id := t.rootID()
	if id == storage.InvalidPageID {
		return storage.InvalidPageID, ErrEmptyTree
	}

	for {
		page, env, err := t.fetchEnvelope(id)
		if err != nil {
			return storage.InvalidPageID, err
		}
		if env.Kind == leafKind {
			t.pool.Unpin(id, false)
			return id, nil
		}
		next := env.Internal.lookup(key)
		t.pool.Unpin(id, false)
		id = next
	}
}

// GetValue looks up key, returning its value if present. The slice
// return mirrors petro's BPlusTree.GetValue signature; this tree
// enforces unique keys (spec.md §4.3 Non-goals), so the slice holds at
// most one element.
func (t *Tree[K, V]) GetValue(key K) ([]V, bool) {
	if t.IsEmpty() {
		return nil, false
	}
	leafID, err := t.findLeaf(key)
	if err != nil {
		return nil, false
	}

	page, err := t.pool.Fetch(leafID)
	if err != nil {
		return nil, false
	}
	defer t.pool.Unpin(leafID, false)

	env, err := buffer.Decode[envelope[K, V]](page.Data)
	if err != nil {
		return nil, false
	}

	v, ok := env.Leaf.lookup(key)
	if !ok {
		return nil, false
	}
	return []V{v}, true
}
