// Package buffer provides the buffer pool spec.md documents as an
// external collaborator (§6): fetch/new/unpin/delete over fixed-size
// pages. spec.md's core scope stops at "the buffer pool uses the
// extendible hash (page-id -> frame) and the LRU replacer (frame-id
// victim queue) internally" (§2 Composition) - this package is exactly
// that composition, adapted from petro's buffer.BufferpoolManager
// (buffer/bufferpool_manager.go) with petro's hand-rolled LRU-K
// replacer and page table swapped out for this module's own
// replacer.LRU and hashindex.Table. Real disk I/O is out of scope
// (spec.md §1); evicted pages are held in an in-memory backing map
// instead of being written to a file.
package buffer

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/relstore/core/hashindex"
	"github.com/relstore/core/replacer"
	"github.com/relstore/core/storage"
)

// Page is a pinned view onto one frame's bytes. Data is a live slice
// into the pool's frame buffer: mutating it through a bptree node codec
// mutates the resident page directly, mirroring petro's
// WritePageGuard.GetDataMut pattern without needing a guard type of its
// own (Unpin plays that role here).
type Page struct {
	ID   storage.PageID
	Data []byte
}

// Pool is the buffer-pool interface the B+-tree consumes; InMemoryPool
// is its concrete implementation. A returned *Page is valid
// until the matching Unpin, per spec.md §6.
type Pool interface {
	Fetch(id storage.PageID) (*Page, error)
	New() (*Page, error)
	Unpin(id storage.PageID, dirty bool) error
	Delete(id storage.PageID) error
}

// Stats exposes observability counters, a supplement over spec.md's
// bare contract (SPEC_FULL.md §5) grounded in the bookkeeping petro's
// BufferpoolManager already keeps internally (pageTable, freeFrames).
type Stats struct {
	Hits, Misses, Evictions int64
}

type frameSlot struct {
	pageID   storage.PageID
	data     []byte
	pinCount int
	dirty    bool
	valid    bool
}

// InMemoryPool is the concrete buffer pool used to exercise and test
// the core index components. It composes hashindex.Table for its page
// table and replacer.LRU for eviction, per spec.md §2's composition
// note.
type InMemoryPool struct {
	mu         sync.Mutex
	frames     []frameSlot
	pageTable  *hashindex.Table[storage.PageID, int]
	replacer   *replacer.LRU[int]
	free       []int
	backing    map[storage.PageID][]byte
	nextPageID atomic.Int64
	stats      Stats
}

var _ Pool = (*InMemoryPool)(nil)

// NewPool constructs a buffer pool with the given number of frames.
func NewPool(size int) *InMemoryPool {
	if size < 1 {
		panic("buffer: pool size must be >= 1")
	}

	frames := make([]frameSlot, size)
	free := make([]int, size)
	for i := range frames {
		frames[i].data = make([]byte, storage.PageSize)
		free[i] = i
	}

	p := &InMemoryPool{
		frames:    frames,
		free:      free,
		pageTable: hashindex.New[storage.PageID, int](4, hashindex.IntHasher[storage.PageID]()),
		replacer:  replacer.New[int](),
		backing:   make(map[storage.PageID][]byte),
	}
	p.nextPageID.Store(int64(storage.HeaderPageID))
	return p
}

func (p *InMemoryPool) lookup(id storage.PageID) (int, bool) {
	var idx int
	if p.pageTable.Find(id, &idx) {
		return idx, true
	}
	return 0, false
}

// acquireFrame returns an unpinned frame index, evicting via the LRU
// replacer if no frame is free. Caller must hold p.mu.
func (p *InMemoryPool) acquireFrame() (int, error) {
	if len(p.free) > 0 {
		idx := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		return idx, nil
	}

	idx, ok := p.replacer.Victim()
	if !ok {
		return 0, ErrPoolExhausted
	}

	f := &p.frames[idx]
	if f.valid {
		if f.dirty {
			p.backing[f.pageID] = append([]byte(nil), f.data...)
		}
		p.pageTable.Remove(f.pageID)
		p.stats.Evictions++
		log.Printf("buffer: evicted page %d from frame %d", f.pageID, idx)
	}
	return idx, nil
}

// Fetch pins and returns the page identified by id, reading it in from
// the backing store on a miss.
func (p *InMemoryPool) Fetch(id storage.PageID) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.lookup(id); ok {
		f := &p.frames[idx]
		f.pinCount++
		p.replacer.Erase(idx)
		p.stats.Hits++
		return &Page{ID: id, Data: f.data}, nil
	}

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	f := &p.frames[idx]
	if data, ok := p.backing[id]; ok {
		copy(f.data, data)
	} else {
		for i := range f.data {
			f.data[i] = 0
		}
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = false
	f.valid = true
	p.pageTable.Insert(id, idx)
	p.stats.Misses++
	return &Page{ID: id, Data: f.data}, nil
}

// New allocates a fresh, pinned, zeroed page.
func (p *InMemoryPool) New() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	id := storage.PageID(p.nextPageID.Add(1))
	f := &p.frames[idx]
	for i := range f.data {
		f.data[i] = 0
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = true
	f.valid = true
	p.pageTable.Insert(id, idx)
	p.backing[id] = nil
	return &Page{ID: id, Data: f.data}, nil
}

// Unpin releases one pin on id, marking it dirty if requested.
func (p *InMemoryPool) Unpin(id storage.PageID, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.lookup(id)
	if !ok {
		return ErrPageNotFound
	}

	f := &p.frames[idx]
	if f.pinCount == 0 {
		return ErrPageNotPinned
	}
	if dirty {
		f.dirty = true
	}
	f.pinCount--
	if f.pinCount == 0 {
		p.replacer.Insert(idx)
	}
	return nil
}

// Delete removes id from the pool, failing if it is still pinned.
func (p *InMemoryPool) Delete(id storage.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.lookup(id)
	if !ok {
		delete(p.backing, id)
		return nil
	}

	f := &p.frames[idx]
	if f.pinCount > 0 {
		return ErrPagePinned
	}

	p.pageTable.Remove(id)
	p.replacer.Erase(idx)
	delete(p.backing, id)
	f.valid = false
	p.free = append(p.free, idx)
	return nil
}

// Stats returns a snapshot of the pool's hit/miss/eviction counters.
func (p *InMemoryPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
