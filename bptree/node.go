package bptree

import (
	"cmp"
	"sort"

	"github.com/relstore/core/storage"
)

// kind discriminates the two page shapes a B+-tree node can take,
// standing in for the source's pointer casts (spec.md §9's "per-node
// polymorphism" design note): a tagged discriminant plus two distinct
// view types, dispatched by checking Kind rather than by a cast.
type kind uint8

const (
	leafKind kind = iota
	internalKind
)

type nodeHeader struct {
	PageID  storage.PageID
	Parent  storage.PageID
	Kind    kind
	Size    int32
	MaxSize int32
}

func (h nodeHeader) isRoot() bool { return h.Parent == storage.InvalidPageID }

// leafNode is an ordered sequence of (key, value) pairs plus the page id
// of the next leaf in key order, per spec.md §3.
type leafNode[K cmp.Ordered, V any] struct {
	nodeHeader
	Next   storage.PageID
	Keys   []K
	Values []V
}

func newLeaf[K cmp.Ordered, V any](id, parent storage.PageID, maxSize int) *leafNode[K, V] {
	return &leafNode[K, V]{
		nodeHeader: nodeHeader{PageID: id, Parent: parent, Kind: leafKind, MaxSize: int32(maxSize)},
		Next:       storage.InvalidPageID,
	}
}

func (l *leafNode[K, V]) minSize() int { return (int(l.MaxSize) + 1) / 2 }

func (l *leafNode[K, V]) findIndex(key K) int {
	return sort.Search(len(l.Keys), func(i int) bool { return l.Keys[i] >= key })
}

func (l *leafNode[K, V]) keyAt(i int) K { return l.Keys[i] }

func (l *leafNode[K, V]) lookup(key K) (V, bool) {
	i := l.findIndex(key)
	if i < len(l.Keys) && l.Keys[i] == key {
		return l.Values[i], true
	}
	var zero V
	return zero, false
}

func (l *leafNode[K, V]) insertSorted(key K, value V) {
	i := l.findIndex(key)
	l.Keys = append(l.Keys, key)
	copy(l.Keys[i+1:], l.Keys[i:len(l.Keys)-1])
	l.Keys[i] = key

	l.Values = append(l.Values, value)
	copy(l.Values[i+1:], l.Values[i:len(l.Values)-1])
	l.Values[i] = value

	l.Size++
}

func (l *leafNode[K, V]) removeKey(key K) bool {
	i := l.findIndex(key)
	if i >= len(l.Keys) || l.Keys[i] != key {
		return false
	}
	l.Keys = append(l.Keys[:i], l.Keys[i+1:]...)
	l.Values = append(l.Values[:i], l.Values[i+1:]...)
	l.Size--
	return true
}

// moveHalfTo splits l, moving its upper half of entries to sib.
func (l *leafNode[K, V]) moveHalfTo(sib *leafNode[K, V]) {
	mid := len(l.Keys) / 2
	sib.Keys = append(sib.Keys, l.Keys[mid:]...)
	sib.Values = append(sib.Values, l.Values[mid:]...)

	l.Keys = l.Keys[:mid]
	l.Values = l.Values[:mid]
	l.Size = int32(len(l.Keys))
	sib.Size = int32(len(sib.Keys))
}

// moveAllTo merges l's entire contents into target, per spec.md's
// coalesce rule (l is always the right-hand node being deleted).
func (l *leafNode[K, V]) moveAllTo(target *leafNode[K, V]) {
	target.Keys = append(target.Keys, l.Keys...)
	target.Values = append(target.Values, l.Values...)
	target.Size = int32(len(target.Keys))
	target.Next = l.Next

	l.Keys = nil
	l.Values = nil
	l.Size = 0
}

// moveLastToFrontOf moves l's last entry to the front of target. l is
// the predecessor sibling of target. Returns the borrowed key, which
// becomes the new parent separator.
func (l *leafNode[K, V]) moveLastToFrontOf(target *leafNode[K, V]) K {
	n := len(l.Keys)
	k, v := l.Keys[n-1], l.Values[n-1]
	l.Keys = l.Keys[:n-1]
	l.Values = l.Values[:n-1]
	l.Size--

	target.Keys = append([]K{k}, target.Keys...)
	target.Values = append([]V{v}, target.Values...)
	target.Size++
	return k
}

// moveFirstToEndOf moves l's first entry to the end of target. l is the
// successor sibling of target. The caller reads l.keyAt(0) afterwards
// for the new parent separator.
func (l *leafNode[K, V]) moveFirstToEndOf(target *leafNode[K, V]) {
	k, v := l.Keys[0], l.Values[0]
	l.Keys = l.Keys[1:]
	l.Values = l.Values[1:]
	l.Size--

	target.Keys = append(target.Keys, k)
	target.Values = append(target.Values, v)
	target.Size++
}

// internalNode holds one leading child pointer followed by (key, child)
// pairs, per spec.md §3. Keys[0] is an unused sentinel kept only so
// Keys and Children stay index-aligned; valid separators live at
// Keys[1:Size).
type internalNode[K cmp.Ordered] struct {
	nodeHeader
	Keys     []K
	Children []storage.PageID
}

func newInternal[K cmp.Ordered](id, parent storage.PageID, maxSize int) *internalNode[K] {
	return &internalNode[K]{
		nodeHeader: nodeHeader{PageID: id, Parent: parent, Kind: internalKind, MaxSize: int32(maxSize)},
	}
}

func (n *internalNode[K]) minSize() int { return (int(n.MaxSize) + 1) / 2 }

func (n *internalNode[K]) keyAt(i int) K              { return n.Keys[i] }
func (n *internalNode[K]) valueAt(i int) storage.PageID { return n.Children[i] }

// lookup returns the child page id to descend into for key.
func (n *internalNode[K]) lookup(key K) storage.PageID {
	r := sort.Search(int(n.Size)-1, func(i int) bool { return n.Keys[i+1] > key })
	return n.Children[r]
}

func (n *internalNode[K]) valueIndex(id storage.PageID) int {
	for i, c := range n.Children {
		if c == id {
			return i
		}
	}
	return -1
}

// insertAfter inserts (key, newChild) immediately after oldChild.
func (n *internalNode[K]) insertAfter(oldChild storage.PageID, key K, newChild storage.PageID) {
	idx := n.valueIndex(oldChild)
	pos := idx + 1

	n.Keys = append(n.Keys, key)
	copy(n.Keys[pos+1:], n.Keys[pos:len(n.Keys)-1])
	n.Keys[pos] = key

	n.Children = append(n.Children, newChild)
	copy(n.Children[pos+1:], n.Children[pos:len(n.Children)-1])
	n.Children[pos] = newChild

	n.Size++
}

func (n *internalNode[K]) removeAt(index int) {
	n.Keys = append(n.Keys[:index], n.Keys[index+1:]...)
	n.Children = append(n.Children[:index], n.Children[index+1:]...)
	n.Size--
}

func (n *internalNode[K]) populateNewRoot(left storage.PageID, key K, right storage.PageID) {
	var zero K
	n.Keys = []K{zero, key}
	n.Children = []storage.PageID{left, right}
	n.Size = 2
}

// moveHalfTo splits n, moving its upper half of children to sib. The
// key that separated the two halves inside n is promoted to the parent
// rather than kept in either child, and is returned for
// insertIntoParent to use.
func (n *internalNode[K]) moveHalfTo(sib *internalNode[K]) (movedChildren []storage.PageID, promotedKey K) {
	mid := len(n.Children) / 2
	promotedKey = n.Keys[mid]

	var zero K
	sib.Keys = append(sib.Keys, zero)
	sib.Keys = append(sib.Keys, n.Keys[mid+1:]...)
	sib.Children = append(sib.Children, n.Children[mid:]...)
	sib.Size = int32(len(sib.Children))

	movedChildren = append([]storage.PageID(nil), n.Children[mid:]...)

	n.Keys = n.Keys[:mid]
	n.Children = n.Children[:mid]
	n.Size = int32(len(n.Children))
	return movedChildren, promotedKey
}

// moveAllTo merges n entirely into target (n is always the right-hand
// node). separatorKey is the parent's current separator between target
// and n; it becomes the key for n's former leading child once folded
// into target. Returns every child moved, so the caller can update
// their parent pointers.
func (n *internalNode[K]) moveAllTo(target *internalNode[K], separatorKey K) []storage.PageID {
	target.Keys = append(target.Keys, separatorKey)
	target.Keys = append(target.Keys, n.Keys[1:]...)
	target.Children = append(target.Children, n.Children...)
	target.Size = int32(len(target.Children))

	moved := append([]storage.PageID(nil), n.Children...)
	n.Keys = nil
	n.Children = nil
	n.Size = 0
	return moved
}

// moveLastToFrontOf moves n's last child to the front of target. n is
// the predecessor sibling of target. parentKey is the parent's current
// separator between n and target; it becomes target's new second key.
// n's own former last key becomes the new parent separator, returned
// for the caller to write back.
func (n *internalNode[K]) moveLastToFrontOf(target *internalNode[K], parentKey K) (movedChild storage.PageID, newParentKey K) {
	last := len(n.Children) - 1
	movedChild = n.Children[last]
	newParentKey = n.Keys[last]

	n.Children = n.Children[:last]
	n.Keys = n.Keys[:last]
	n.Size--

	var zero K
	newKeys := make([]K, 0, len(target.Keys)+1)
	newKeys = append(newKeys, zero, parentKey)
	newKeys = append(newKeys, target.Keys[1:]...)
	target.Keys = newKeys
	target.Children = append([]storage.PageID{movedChild}, target.Children...)
	target.Size++
	return movedChild, newParentKey
}

// moveFirstToEndOf moves n's leading child to the end of target. n is
// the successor sibling of target. parentKey is the parent's current
// separator between target and n; it becomes target's new trailing
// key. n's own new leading separator becomes the new parent separator,
// returned for the caller to write back.
func (n *internalNode[K]) moveFirstToEndOf(target *internalNode[K], parentKey K) (movedChild storage.PageID, newParentKey K) {
	var zero K
	movedChild = n.Children[0]
	n.Children = n.Children[1:]
	newParentKey = n.Keys[1]
	n.Keys = n.Keys[1:]
	n.Keys[0] = zero
	n.Size--

	target.Children = append(target.Children, movedChild)
	target.Keys = append(target.Keys, parentKey)
	target.Size++
	return movedChild, newParentKey
}

// envelope is the on-page wire format: exactly one of Leaf or Internal
// is populated, discriminated by Kind. Generalizes petro's
// util.ToByteSlice/util.ToStruct (util/convert.go), which serialized
// one hardcoded type at a time.
type envelope[K cmp.Ordered, V any] struct {
	Kind     kind
	Leaf     *leafNode[K, V]   `msgpack:",omitempty"`
	Internal *internalNode[K]  `msgpack:",omitempty"`
}
