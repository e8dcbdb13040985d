package bptree

import "errors"

// ErrOutOfRange is returned by Iterator.Get when the iterator has no
// current entry (IsEnd() is true or an earlier Next()/Fetch() failed).
var ErrOutOfRange = errors.New("bptree: iterator has no current entry")

// ErrEmptyTree is returned internally when a search descends into a
// tree with no root page installed yet.
var ErrEmptyTree = errors.New("bptree: tree is empty")
