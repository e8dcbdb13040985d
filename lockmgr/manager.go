package lockmgr

import (
	"math"
	"sync"

	"github.com/relstore/core/storage"
)

// Mode is the lock mode of a request.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// request is one entry in a per-RID FIFO queue.
type request struct {
	txnID   int64
	mode    Mode
	granted bool
}

// waitQueue is the Waiting record spec.md §3 describes for a single RID.
type waitQueue struct {
	requests     []*request
	exclusiveCnt int
	oldest       int64 // smallest txn id currently queued
}

func newWaitQueue() *waitQueue {
	return &waitQueue{oldest: math.MaxInt64}
}

func (q *waitQueue) recomputeOldest() {
	q.oldest = math.MaxInt64
	for _, r := range q.requests {
		if r.txnID < q.oldest {
			q.oldest = r.txnID
		}
	}
}

func (q *waitQueue) find(txnID int64) (*request, int) {
	for i, r := range q.requests {
		if r.txnID == txnID {
			return r, i
		}
	}
	return nil, -1
}

// Manager implements two-phase locking over storage.RID with wait-die
// deadlock prevention, per spec.md §4.4. A single mutex and a single
// condition variable coordinate every queue, matching the "single
// mutex, single condition variable" concurrency model spec.md §5
// requires for this component.
type Manager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	table     map[storage.RID]*waitQueue
	strict2PL bool
}

// NewManager constructs a lock manager. When strict2PL is true, unlock
// is only permitted once a transaction has committed or aborted.
func NewManager(strict2PL bool) *Manager {
	m := &Manager{
		table:     make(map[storage.RID]*waitQueue),
		strict2PL: strict2PL,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manager) queueFor(rid storage.RID) *waitQueue {
	q, ok := m.table[rid]
	if !ok {
		q = newWaitQueue()
		m.table[rid] = q
	}
	return q
}

// checkPreconditions enforces the two entry-time preconditions common to
// every lock call: an already-aborted transaction is rejected, and a
// transaction must be GROWING to request a new lock (spec.md §4.4
// "Preconditions"). The GROWING check is a caller-contract assertion,
// not one of the documented false-returning failure modes, so it panics
// on violation rather than returning false.
func (m *Manager) checkPreconditions(txn *Transaction) bool {
	if txn.State() == Aborted {
		return false
	}
	if txn.State() != Growing {
		panic("lockmgr: lock requested while transaction is not GROWING")
	}
	return true
}

// LockShared acquires a shared lock on rid on behalf of txn, blocking
// until it is granted, aborted by the wait-die rule, or already invalid.
func (m *Manager) LockShared(txn *Transaction, rid storage.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.checkPreconditions(txn) {
		return false
	}

	q := m.queueFor(rid)

	if q.exclusiveCnt > 0 && txn.ID() > q.oldest {
		txn.SetState(Aborted)
		return false
	}

	req := &request{txnID: txn.ID(), mode: Shared}
	q.requests = append(q.requests, req)
	if txn.ID() < q.oldest {
		q.oldest = txn.ID()
	}

	for !m.canGrantShared(q, req) {
		m.cond.Wait()
	}

	req.granted = true
	txn.addShared(rid)
	m.cond.Broadcast()
	return true
}

func (m *Manager) canGrantShared(q *waitQueue, req *request) bool {
	for _, r := range q.requests {
		if r == req {
			return true
		}
		if !(r.granted && r.mode == Shared) {
			return false
		}
	}
	return true
}

// LockExclusive acquires an exclusive lock on rid on behalf of txn,
// blocking until it is granted, aborted by the wait-die rule, or already
// invalid.
func (m *Manager) LockExclusive(txn *Transaction, rid storage.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.checkPreconditions(txn) {
		return false
	}

	q := m.queueFor(rid)

	if len(q.requests) > 0 && txn.ID() > q.oldest {
		txn.SetState(Aborted)
		return false
	}

	req := &request{txnID: txn.ID(), mode: Exclusive}
	q.requests = append(q.requests, req)
	q.oldest = txn.ID()
	q.exclusiveCnt++

	for q.requests[0] != req {
		m.cond.Wait()
	}

	req.granted = true
	txn.addExclusive(rid)
	m.cond.Broadcast()
	return true
}

// LockUpgrade upgrades txn's already-granted shared lock on rid to
// exclusive. The caller must already hold the shared lock at the head
// of rid's queue.
func (m *Manager) LockUpgrade(txn *Transaction, rid storage.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.checkPreconditions(txn) {
		return false
	}

	q := m.queueFor(rid)
	req, _ := q.find(txn.ID())
	if req == nil || req.mode != Shared || !req.granted {
		panic("lockmgr: upgrade requires a granted shared lock")
	}

	for q.requests[0] != req {
		m.cond.Wait()
	}

	req.mode = Exclusive
	q.exclusiveCnt++
	q.oldest = txn.ID()
	txn.moveSharedToExclusive(rid)
	m.cond.Broadcast()
	return true
}

// Unlock releases txn's request on rid. Under strict 2PL, unlocking
// before the transaction has committed or aborted is a protocol
// violation that forces the transaction to ABORTED and returns false.
// Otherwise, a GROWING transaction transitions to SHRINKING on its
// first unlock.
func (m *Manager) Unlock(txn *Transaction, rid storage.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.table[rid]
	if !ok {
		return false
	}

	req, idx := q.find(txn.ID())
	if req == nil {
		return false
	}

	wasHead := idx == 0
	q.requests = append(q.requests[:idx], q.requests[idx+1:]...)
	if req.mode == Exclusive {
		q.exclusiveCnt--
	}
	q.recomputeOldest()

	if wasHead || req.mode == Exclusive {
		m.cond.Broadcast()
	}

	txn.dropLock(rid)

	if m.strict2PL {
		if txn.State() != Committed && txn.State() != Aborted {
			txn.SetState(Aborted)
			return false
		}
		return true
	}

	if txn.State() == Growing {
		txn.SetState(Shrinking)
	}
	return true
}
