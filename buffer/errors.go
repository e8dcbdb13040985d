package buffer

import "errors"

// ErrPoolExhausted is returned when every frame is pinned and no victim
// is available - spec.md §6's "returns null on exhaustion", generalized
// to petro's util.BufferpoolExhaustedError pattern.
var ErrPoolExhausted = errors.New("buffer: pool exhausted, no free or evictable frame")

// ErrPageNotFound is returned by Unpin when the page id is not resident.
var ErrPageNotFound = errors.New("buffer: page not resident")

// ErrPageNotPinned is returned by Unpin when the page has no outstanding pin.
var ErrPageNotPinned = errors.New("buffer: page not pinned")

// ErrPagePinned is returned by Delete when the page still has outstanding pins.
var ErrPagePinned = errors.New("buffer: page still pinned")
