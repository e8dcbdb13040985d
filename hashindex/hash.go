// Package hashindex implements an extendible hash table: the associative
// structure the buffer pool uses for its page-id -> frame directory, and
// a general-purpose map besides. See spec.md §3 and §4.2.
package hashindex

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// maxHashBits bounds local depth: the machine hash-width limit spec.md
// §4.2 refers to. A 64-bit hash function backs every bucket id, so a
// bucket can never usefully split past 64 bits of local depth.
const maxHashBits = 64

// Hasher maps a key to a 64-bit hash. Callers may supply their own (the
// "hash = identity" scenario in spec.md §8 is exactly this) or use one
// of the constructors below, which default to xxhash.
type Hasher[K any] func(K) uint64

// HashBytes hashes an arbitrary byte slice with xxhash, the fast
// non-cryptographic hash the wider example pack pulls in transitively
// (via ShubhamNegi4-DaemonDB's ristretto dependency) and that this
// module wires in directly for the extendible hash's routing function.
func HashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// IntHasher returns a Hasher for any signed or unsigned integer key,
// hashing its little-endian byte representation with xxhash.
func IntHasher[K ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64]() Hasher[K] {
	return func(k K) uint64 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		return HashBytes(buf[:])
	}
}

// StringHasher returns a Hasher for string keys.
func StringHasher[K ~string]() Hasher[K] {
	return func(k K) uint64 {
		return HashBytes([]byte(k))
	}
}

// bucket holds up to capacity entries at a given local depth. When local
// depth saturates at maxHashBits, further collisions are chained through
// overflow rather than growing the directory further (spec.md §4.2 step 3).
type bucket[K comparable, V any] struct {
	entries    map[K]V
	localDepth int
	capacity   int
	overflow   *bucket[K, V]
}

func newBucket[K comparable, V any](localDepth, capacity int) *bucket[K, V] {
	return &bucket[K, V]{
		entries:    make(map[K]V, capacity),
		localDepth: localDepth,
		capacity:   capacity,
	}
}

func (b *bucket[K, V]) find(k K) (V, bool) {
	for cur := b; cur != nil; cur = cur.overflow {
		if v, ok := cur.entries[k]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// overwrite sets k=v in whichever bucket of the chain already holds k,
// reporting whether an existing entry was found.
func (b *bucket[K, V]) overwrite(k K, v V) bool {
	for cur := b; cur != nil; cur = cur.overflow {
		if _, ok := cur.entries[k]; ok {
			cur.entries[k] = v
			return true
		}
	}
	return false
}

func (b *bucket[K, V]) remove(k K) bool {
	for cur := b; cur != nil; cur = cur.overflow {
		if _, ok := cur.entries[k]; ok {
			delete(cur.entries, k)
			return true
		}
	}
	return false
}

// isFull reports whether this bucket, not counting its overflow chain,
// is at capacity.
func (b *bucket[K, V]) isFull() bool {
	return len(b.entries) >= b.capacity
}

// Table is a thread-safe extendible hash table from K to V.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	hasher      Hasher[K]
	bucketSize  int
	globalDepth int
	dir         []*bucket[K, V]
	// buckets records primary buckets in creation order; LocalDepth and
	// NumBuckets index into this slice, matching the bucket-index
	// contract from spec.md §4.2 (bucket index != directory slot index).
	buckets []*bucket[K, V]
}

// New constructs an extendible hash table with the given per-bucket
// capacity and hash function.
func New[K comparable, V any](bucketSize int, hasher Hasher[K]) *Table[K, V] {
	if bucketSize < 1 {
		panic("hashindex: bucketSize must be >= 1")
	}

	b := newBucket[K, V](0, bucketSize)
	return &Table[K, V]{
		hasher:      hasher,
		bucketSize:  bucketSize,
		globalDepth: 0,
		dir:         []*bucket[K, V]{b},
		buckets:     []*bucket[K, V]{b},
	}
}

func (t *Table[K, V]) dirIndex(k K) int {
	mask := uint64(1)<<uint(t.globalDepth) - 1
	return int(t.hasher(k) & mask)
}

// Find looks up k, storing its value in *out and returning true if
// present.
func (t *Table[K, V]) Find(k K, out *V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.dir[t.dirIndex(k)]
	v, ok := b.find(k)
	if !ok {
		return false
	}
	*out = v
	return true
}

// Insert stores k=v, overwriting any existing value for k. It may split
// buckets (possibly repeatedly) to make room.
func (t *Table[K, V]) Insert(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		idx := t.dirIndex(k)
		b := t.dir[idx]

		if b.overwrite(k, v) {
			return
		}
		for cur := b; cur != nil; cur = cur.overflow {
			if !cur.isFull() {
				cur.entries[k] = v
				return
			}
		}

		t.splitBucket(idx)
		// loop and retry with the (possibly new) directory layout
	}
}

// Remove deletes k if present (from the primary bucket or its overflow
// chain), reporting whether it was found.
func (t *Table[K, V]) Remove(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.dir[t.dirIndex(k)]
	return b.remove(k)
}

// GlobalDepth returns the number of low-order hash bits used to index
// the directory.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket created at position
// bucketIndex in creation order (0 is the initial bucket).
func (t *Table[K, V]) LocalDepth(bucketIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buckets[bucketIndex].localDepth
}

// NumBuckets returns the number of primary buckets ever created.
// Overflow buckets chained onto a saturated bucket are not counted
// separately: spec.md's Non-goals rule out coalescing, and overflow
// chaining is itself only a defensive fallback for pathological hash
// collisions, not part of the normal splitting story the bucket-index
// API describes.
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// splitBucket implements spec.md §4.2's split algorithm for the bucket
// currently referenced by directory slot idx.
func (t *Table[K, V]) splitBucket(idx int) {
	b := t.dir[idx]
	s := newBucket[K, V](b.localDepth, t.bucketSize)

	for {
		b.localDepth++
		s.localDepth++

		if b.localDepth > maxHashBits {
			// Give up growing depth; chain s onto b's overflow list and
			// leave the directory untouched.
			b.localDepth--
			s.localDepth--
			tail := b
			for tail.overflow != nil {
				tail = tail.overflow
			}
			tail.overflow = s
			return
		}

		bit := uint(b.localDepth - 1)
		moved := make(map[K]V)
		kept := make(map[K]V)
		for k, v := range b.entries {
			if (t.hasher(k)>>bit)&1 == 1 {
				moved[k] = v
			} else {
				kept[k] = v
			}
		}

		if len(moved) != 0 {
			b.entries = kept
			s.entries = moved
			break
		}

		// S is still empty: swap so that progress under a skewed hash
		// is guaranteed even though the discriminating bit didn't split
		// this particular key set.
		s.entries = kept
		b.entries = make(map[K]V, t.bucketSize)
		break
	}

	t.buckets = append(t.buckets, s)

	if b.localDepth > t.globalDepth {
		t.growDirectory(b.localDepth)
	}
	t.repoint(b, s)
}

// growDirectory doubles (or more) the directory so its size is
// 2^newGlobalDepth, replicating every existing slot's bucket pointer to
// all of its stride-copies, per spec.md §4.2 step 4.
func (t *Table[K, V]) growDirectory(newGlobalDepth int) {
	oldSize := len(t.dir)
	factor := 1 << uint(newGlobalDepth-t.globalDepth)
	newDir := make([]*bucket[K, V], oldSize*factor)

	for i, bk := range t.dir {
		for m := 0; m < factor; m++ {
			newDir[i+m*oldSize] = bk
		}
	}

	t.dir = newDir
	t.globalDepth = newGlobalDepth
}

// repoint retargets every directory slot currently pointing at b whose
// low bits identify it as belonging to s, per the same discriminating
// bit used during the split. Re-deriving bucket ids from stored keys
// (rather than reusing intermediate split state) sidesteps the
// off-by-one bugs spec.md §9 flags in the original source's id
// bookkeeping.
func (t *Table[K, V]) repoint(b, s *bucket[K, V]) {
	bit := uint(b.localDepth - 1)
	sBit := uint64(1)
	for k := range s.entries {
		sBit = (t.hasher(k) >> bit) & 1
		break
	}
	for i := range t.dir {
		if t.dir[i] != b {
			continue
		}
		if (uint64(i)>>bit)&1 == sBit {
			t.dir[i] = s
		}
	}
}

// String is a debugging aid; not part of the spec's contract.
func (t *Table[K, V]) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("hashindex.Table{globalDepth=%d buckets=%d dirSize=%d}",
		t.globalDepth, len(t.buckets), len(t.dir))
}
