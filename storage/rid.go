// Package storage holds the data-model types shared by every core
// component: record identifiers and page identifiers. Nothing in this
// package touches disk or a buffer pool — it is pure value types.
package storage

import "fmt"

// PageID identifies a fixed-size page. INVALID_PAGE_ID from spec.md is
// represented as InvalidPageID.
type PageID int64

// InvalidPageID marks the absence of a page, e.g. an empty tree's root.
const InvalidPageID PageID = -1

// HeaderPageID is the well-known page id the header page lives at.
const HeaderPageID PageID = 0

// PageSize is the fixed size, in bytes, of every page in the system.
const PageSize = 4096

// RID is a record identifier: a page id plus a slot number within that
// page. RID is a plain comparable struct so it can be used directly as
// a Go map key, giving it the "opaque equality and hash" spec.md asks
// for without any extra machinery.
type RID struct {
	PageID PageID
	Slot   uint32
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.Slot)
}

// NewRID builds an RID out of an integer key, the convention spec.md's
// public index surface uses for its from-file test harness (each line
// is an integer key, and the RID is constructed from that key).
func NewRID(key int64) RID {
	return RID{PageID: PageID(key), Slot: 0}
}
