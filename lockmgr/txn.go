// Package lockmgr implements record-level two-phase locking with
// wait-die deadlock prevention, per spec.md §4.4. It is the one core
// component with no direct teacher analog in the retrieved pack; its
// concurrency shape (single mutex, single condition variable, spurious
// wakeups tolerated by re-checking predicates) follows the same pattern
// petro's buffer.BufferpoolManager uses for its frame-wait condition
// variable (buffer/bufferpool_manager.go's cond.Wait()/cond.Signal()).
package lockmgr

import (
	"sync"

	"github.com/relstore/core/storage"
)

// State is a transaction's phase with respect to two-phase locking.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the external collaborator spec.md §2 describes: an id,
// a 2PL state, and the two sets of record ids it currently holds locks
// on. It is safe for concurrent use.
type Transaction struct {
	mu        sync.Mutex
	id        int64
	state     State
	sharedSet map[storage.RID]struct{}
	exclSet   map[storage.RID]struct{}
}

// New constructs a transaction in the GROWING state.
func New(id int64) *Transaction {
	return &Transaction{
		id:        id,
		state:     Growing,
		sharedSet: make(map[storage.RID]struct{}),
		exclSet:   make(map[storage.RID]struct{}),
	}
}

// ID returns the transaction's identifier. Lower ids are older, per the
// wait-die ordering spec.md §4.4 describes.
func (t *Transaction) ID() int64 { return t.id }

// State returns the transaction's current 2PL phase.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the transaction to s.
func (t *Transaction) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// SharedLocks reports the set of RIDs currently held with a shared lock.
func (t *Transaction) SharedLocks() []storage.RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]storage.RID, 0, len(t.sharedSet))
	for r := range t.sharedSet {
		out = append(out, r)
	}
	return out
}

// ExclusiveLocks reports the set of RIDs currently held with an
// exclusive lock.
func (t *Transaction) ExclusiveLocks() []storage.RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]storage.RID, 0, len(t.exclSet))
	for r := range t.exclSet {
		out = append(out, r)
	}
	return out
}

func (t *Transaction) addShared(rid storage.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedSet[rid] = struct{}{}
}

func (t *Transaction) addExclusive(rid storage.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclSet[rid] = struct{}{}
}

func (t *Transaction) moveSharedToExclusive(rid storage.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedSet, rid)
	t.exclSet[rid] = struct{}{}
}

func (t *Transaction) dropLock(rid storage.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedSet, rid)
	delete(t.exclSet, rid)
}
