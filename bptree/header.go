package bptree

import (
	"sync"

	"github.com/relstore/core/storage"
)

// HeaderPage is the external collaborator spec.md §6 documents:
// insert_record on first root installation, update_record on every
// later root change. Real persistence of the header page as a file is
// explicitly out of scope (spec.md §1); this in-memory implementation
// generalizes petro's single-field headerPage{RootPageId} (index/b_plus_tree.go)
// into a name -> root-page-id map, since spec.md's header page holds a
// sequence of (index_name, root_page_id) records rather than just one.
type HeaderPage interface {
	InsertRecord(name string, id storage.PageID)
	UpdateRecord(name string, id storage.PageID)
	Lookup(name string) (storage.PageID, bool)
}

// InMemoryHeaderPage is the concrete HeaderPage used by this module.
type InMemoryHeaderPage struct {
	mu      sync.Mutex
	records map[string]storage.PageID
}

// NewHeaderPage constructs an empty header page.
func NewHeaderPage() *InMemoryHeaderPage {
	return &InMemoryHeaderPage{records: make(map[string]storage.PageID)}
}

func (h *InMemoryHeaderPage) InsertRecord(name string, id storage.PageID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[name] = id
}

func (h *InMemoryHeaderPage) UpdateRecord(name string, id storage.PageID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[name] = id
}

func (h *InMemoryHeaderPage) Lookup(name string) (storage.PageID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.records[name]
	return id, ok
}
