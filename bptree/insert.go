package bptree

import (
	"github.com/relstore/core/buffer"
	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage"
)

// Insert adds (key, value), reporting false without error if key
// already exists (spec.md §4.3's unique-key Non-goal makes duplicate
// insertion a rejected no-op rather than a multi-value append). txn is
// accepted for callers that hold a lockmgr.Transaction over the
// affected RID; the tree itself does not acquire locks, matching
// spec.md's separation of the lock manager from the index (§2).
func (t *Tree[K, V]) Insert(key K, value V, txn *lockmgr.Transaction) (bool, error) {
	if t.IsEmpty() {
		page, err := t.pool.New()
		if err != nil {
			return false, err
		}
		leaf := newLeaf[K, V](page.ID, storage.InvalidPageID, t.leafMax)
		leaf.insertSorted(key, value)
		if err := t.writeLeaf(page, leaf); err != nil {
			t.pool.Unpin(page.ID, false)
			return false, err
		}
		if err := t.pool.Unpin(page.ID, true); err != nil {
			return false, err
		}
		t.setRoot(page.ID)
		return true, nil
	}

	leafID, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	page, env, err := t.fetchEnvelope(leafID)
	if err != nil {
		return false, err
	}
	leaf := env.Leaf

	if _, ok := leaf.lookup(key); ok {
		t.pool.Unpin(leafID, false)
		return false, nil
	}

	if int(leaf.Size) < int(leaf.MaxSize) {
		leaf.insertSorted(key, value)
		if err := t.writeLeaf(page, leaf); err != nil {
			t.pool.Unpin(leafID, false)
			return false, err
		}
		return true, t.pool.Unpin(leafID, true)
	}

	return t.splitLeafAndInsert(page, leaf, key, value)
}

// splitLeafAndInsert handles the overflow path: leaf is temporarily
// overfull with key,value inserted, then split in two, with the
// separator propagated up via insertIntoParent (spec.md §4.3).
func (t *Tree[K, V]) splitLeafAndInsert(page *buffer.Page, leaf *leafNode[K, V], key K, value V) (bool, error) {
	leaf.insertSorted(key, value)

	newPage, err := t.pool.New()
	if err != nil {
		t.pool.Unpin(leaf.PageID, false)
		return false, err
	}

	sib := newLeaf[K, V](newPage.ID, leaf.Parent, t.leafMax)
	leaf.moveHalfTo(sib)
	sib.Next = leaf.Next
	leaf.Next = sib.PageID

	if err := t.writeLeaf(page, leaf); err != nil {
		return false, err
	}
	if err := t.writeLeaf(newPage, sib); err != nil {
		return false, err
	}

	parentID := leaf.Parent
	separator := sib.Keys[0]
	leftID, rightID := leaf.PageID, sib.PageID

	if err := t.pool.Unpin(leftID, true); err != nil {
		return false, err
	}
	if err := t.pool.Unpin(rightID, true); err != nil {
		return false, err
	}

	if err := t.insertIntoParent(leftID, separator, rightID, parentID); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoParent installs the (leftID, key, rightID) split result
// into parentID, creating a new root if leftID had none, or recursively
// splitting the parent if it overflows (spec.md §4.3).
func (t *Tree[K, V]) insertIntoParent(leftID storage.PageID, key K, rightID storage.PageID, parentID storage.PageID) error {
	if parentID == storage.InvalidPageID {
		page, err := t.pool.New()
		if err != nil {
			return err
		}
		root := newInternal[K](page.ID, storage.InvalidPageID, t.internalMax)
		root.populateNewRoot(leftID, key, rightID)
		if err := t.writeInternal(page, root); err != nil {
			t.pool.Unpin(page.ID, false)
			return err
		}
		if err := t.pool.Unpin(page.ID, true); err != nil {
			return err
		}

		t.setRoot(page.ID)
		if err := t.setParent(leftID, page.ID); err != nil {
			return err
		}
		return t.setParent(rightID, page.ID)
	}

	page, env, err := t.fetchEnvelope(parentID)
	if err != nil {
		return err
	}
	parent := env.Internal

	if int(parent.Size) < int(parent.MaxSize) {
		parent.insertAfter(leftID, key, rightID)
		if err := t.writeInternal(page, parent); err != nil {
			t.pool.Unpin(parentID, false)
			return err
		}
		if err := t.pool.Unpin(parentID, true); err != nil {
			return err
		}
		return t.setParent(rightID, parentID)
	}

	// parent overflow: split it too, recursing up.
	parent.insertAfter(leftID, key, rightID)

	newPage, err := t.pool.New()
	if err != nil {
		t.pool.Unpin(parentID, false)
		return err
	}

	sib := newInternal[K](newPage.ID, parent.Parent, t.internalMax)
	movedChildren, promotedKey := parent.moveHalfTo(sib)

	if err := t.writeInternal(page, parent); err != nil {
		return err
	}
	if err := t.writeInternal(newPage, sib); err != nil {
		return err
	}

	grandParent := parent.Parent
	if err := t.pool.Unpin(parentID, true); err != nil {
		return err
	}
	if err := t.pool.Unpin(newPage.ID, true); err != nil {
		return err
	}

	for _, childID := range movedChildren {
		if err := t.setParent(childID, sib.PageID); err != nil {
			return err
		}
	}

	return t.insertIntoParent(parentID, promotedKey, sib.PageID, grandParent)
}
