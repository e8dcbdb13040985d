package bptree

import (
	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage"
)

// Remove deletes key if present, silently succeeding if it is absent.
// After removal it walks up the tree applying coalesceOrRedistribute at
// every underflowing level, per spec.md §4.3.
func (t *Tree[K, V]) Remove(key K, txn *lockmgr.Transaction) error {
	if t.IsEmpty() {
		return nil
	}

	leafID, err := t.findLeaf(key)
	if err != nil {
		return err
	}

	page, env, err := t.fetchEnvelope(leafID)
	if err != nil {
		return err
	}

	if !env.Leaf.removeKey(key) {
		return t.pool.Unpin(leafID, false)
	}

	if err := t.writeLeaf(page, env.Leaf); err != nil {
		t.pool.Unpin(leafID, false)
		return err
	}
	if err := t.pool.Unpin(leafID, true); err != nil {
		return err
	}

	return t.coalesceOrRedistributeLeaf(leafID)
}

func (t *Tree[K, V]) adjustRootLeaf(leaf *leafNode[K, V]) error {
	if leaf.Size == 0 {
		t.setRoot(storage.InvalidPageID)
		return t.pool.Delete(leaf.PageID)
	}
	return nil
}

func (t *Tree[K, V]) adjustRootInternal(n *internalNode[K]) error {
	if n.Size == 1 {
		onlyChild := n.Children[0]
		t.setRoot(onlyChild)
		if err := t.setParent(onlyChild, storage.InvalidPageID); err != nil {
			return err
		}
		return t.pool.Delete(n.PageID)
	}
	return nil
}

// coalesceOrRedistributeLeaf implements spec.md §4.3's underflow
// handling for leaf pages: root pages are exempt (collapsed only when
// empty), otherwise a sibling is borrowed from if it has spare entries,
// else the two are merged and the merge is propagated to the parent.
func (t *Tree[K, V]) coalesceOrRedistributeLeaf(leafID storage.PageID) error {
	page, env, err := t.fetchEnvelope(leafID)
	if err != nil {
		return err
	}
	leaf := env.Leaf

	if leaf.isRoot() {
		t.pool.Unpin(leafID, false)
		return t.adjustRootLeaf(leaf)
	}
	if int(leaf.Size) >= leaf.minSize() {
		return t.pool.Unpin(leafID, false)
	}
	parentID := leaf.Parent
	t.pool.Unpin(leafID, false)
	_ = page

	parentPage, penv, err := t.fetchEnvelope(parentID)
	if err != nil {
		return err
	}
	parent := penv.Internal

	idx := parent.valueIndex(leafID)
	isPredecessor := idx > 0
	var siblingIdx int
	if isPredecessor {
		siblingIdx = idx - 1
	} else {
		siblingIdx = idx + 1
	}
	siblingID := parent.valueAt(siblingIdx)

	sibPage, senv, err := t.fetchEnvelope(siblingID)
	if err != nil {
		t.pool.Unpin(parentID, false)
		return err
	}
	sibling := senv.Leaf

	if int(sibling.Size)+int(leaf.Size) > int(leaf.MaxSize) {
		if isPredecessor {
			newKey := sibling.moveLastToFrontOf(leaf)
			parent.Keys[idx] = newKey
		} else {
			sibling.moveFirstToEndOf(leaf)
			parent.Keys[siblingIdx] = sibling.keyAt(0)
		}

		leafPage, err := t.pool.Fetch(leafID)
		if err != nil {
			t.pool.Unpin(siblingID, false)
			t.pool.Unpin(parentID, false)
			return err
		}
		if err := t.writeLeaf(leafPage, leaf); err != nil {
			return err
		}
		if err := t.pool.Unpin(leafID, true); err != nil {
			return err
		}

		if err := t.writeLeaf(sibPage, sibling); err != nil {
			return err
		}
		if err := t.pool.Unpin(siblingID, true); err != nil {
			return err
		}

		if err := t.writeInternal(parentPage, parent); err != nil {
			return err
		}
		return t.pool.Unpin(parentID, true)
	}

	// coalesce: merge into the predecessor, always deleting the right page.
	var left, right *leafNode[K, V]
	var leftID, rightID storage.PageID
	var sepIdx int
	if isPredecessor {
		left, right = sibling, leaf
		leftID, rightID = siblingID, leafID
		sepIdx = idx
	} else {
		left, right = leaf, sibling
		leftID, rightID = leafID, siblingID
		sepIdx = siblingIdx
	}
	right.moveAllTo(left)

	if isPredecessor {
		if err := t.writeLeaf(sibPage, left); err != nil {
			return err
		}
		if err := t.pool.Unpin(leftID, true); err != nil {
			return err
		}
		if err := t.pool.Delete(rightID); err != nil {
			return err
		}
	} else {
		leftPage, err := t.pool.Fetch(leftID)
		if err != nil {
			t.pool.Unpin(siblingID, false)
			t.pool.Unpin(parentID, false)
			return err
		}
		if err := t.writeLeaf(leftPage, left); err != nil {
			return err
		}
		if err := t.pool.Unpin(leftID, true); err != nil {
			return err
		}
		if err := t.pool.Unpin(siblingID, false); err != nil {
			return err
		}
		if err := t.pool.Delete(rightID); err != nil {
			return err
		}
	}

	parent.removeAt(sepIdx)
	if err := t.writeInternal(parentPage, parent); err != nil {
		return err
	}
	if err := t.pool.Unpin(parentID, true); err != nil {
		return err
	}

	return t.coalesceOrRedistributeInternal(parentID)
}

// coalesceOrRedistributeInternal is coalesceOrRedistributeLeaf's
// counterpart for internal pages, recursing toward the root whenever a
// merge propagates a parent underflow.
func (t *Tree[K, V]) coalesceOrRedistributeInternal(nodeID storage.PageID) error {
	page, env, err := t.fetchEnvelope(nodeID)
	if err != nil {
		return err
	}
	node := env.Internal

	if node.isRoot() {
		t.pool.Unpin(nodeID, false)
		return t.adjustRootInternal(node)
	}
	if int(node.Size) >= node.minSize() {
		return t.pool.Unpin(nodeID, false)
	}
	parentID := node.Parent
	t.pool.Unpin(nodeID, false)
	_ = page

	parentPage, penv, err := t.fetchEnvelope(parentID)
	if err != nil {
		return err
	}
	parent := penv.Internal

	idx := parent.valueIndex(nodeID)
	isPredecessor := idx > 0
	var siblingIdx int
	if isPredecessor {
		siblingIdx = idx - 1
	} else {
		siblingIdx = idx + 1
	}
	siblingID := parent.valueAt(siblingIdx)

	sibPage, senv, err := t.fetchEnvelope(siblingID)
	if err != nil {
		t.pool.Unpin(parentID, false)
		return err
	}
	sibling := senv.Internal

	if int(sibling.Size)+int(node.Size) > int(node.MaxSize) {
		var movedChild storage.PageID
		if isPredecessor {
			var newKey K
			movedChild, newKey = sibling.moveLastToFrontOf(node, parent.keyAt(idx))
			parent.Keys[idx] = newKey
		} else {
			var newKey K
			movedChild, newKey = sibling.moveFirstToEndOf(node, parent.keyAt(siblingIdx))
			parent.Keys[siblingIdx] = newKey
		}
		if err := t.setParent(movedChild, nodeID); err != nil {
			return err
		}

		nodePage, err := t.pool.Fetch(nodeID)
		if err != nil {
			t.pool.Unpin(siblingID, false)
			t.pool.Unpin(parentID, false)
			return err
		}
		if err := t.writeInternal(nodePage, node); err != nil {
			return err
		}
		if err := t.pool.Unpin(nodeID, true); err != nil {
			return err
		}

		if err := t.writeInternal(sibPage, sibling); err != nil {
			return err
		}
		if err := t.pool.Unpin(siblingID, true); err != nil {
			return err
		}

		if err := t.writeInternal(parentPage, parent); err != nil {
			return err
		}
		return t.pool.Unpin(parentID, true)
	}

	// coalesce: merge into the predecessor, always deleting the right page.
	var left, right *internalNode[K]
	var leftID, rightID storage.PageID
	var sepIdx int
	if isPredecessor {
		left, right = sibling, node
		leftID, rightID = siblingID, nodeID
		sepIdx = idx
	} else {
		left, right = node, sibling
		leftID, rightID = nodeID, siblingID
		sepIdx = siblingIdx
	}
	movedChildren := right.moveAllTo(left, parent.keyAt(sepIdx))

	if isPredecessor {
		if err := t.writeInternal(sibPage, left); err != nil {
			return err
		}
		if err := t.pool.Unpin(leftID, true); err != nil {
			return err
		}
	} else {
		leftPage, err := t.pool.Fetch(leftID)
		if err != nil {
			t.pool.Unpin(siblingID, false)
			t.pool.Unpin(parentID, false)
			return err
		}
		if err := t.writeInternal(leftPage, left); err != nil {
			return err
		}
		if err := t.pool.Unpin(leftID, true); err != nil {
			return err
		}
		if err := t.pool.Unpin(siblingID, false); err != nil {
			return err
		}
	}

	for _, c := range movedChildren {
		if err := t.setParent(c, leftID); err != nil {
			return err
		}
	}
	if err := t.pool.Delete(rightID); err != nil {
		return err
	}

	parent.removeAt(sepIdx)
	if err := t.writeInternal(parentPage, parent); err != nil {
		return err
	}
	if err := t.pool.Unpin(parentID, true); err != nil {
		return err
	}

	return t.coalesceOrRedistributeInternal(parentID)
}
