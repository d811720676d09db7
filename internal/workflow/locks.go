package workflow

import "sync"

type caseLock struct {
	mu   sync.Mutex
	refs int
}

// LockTable provides per-case mutual exclusion keyed by case ID. Transitions
// on different cases proceed independently; entries are reclaimed once the
// last holder releases.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*caseLock
}

// NewLockTable builds an empty table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*caseLock)}
}

// Lock acquires the exclusive lock for the given case ID, blocking until
// available.
func (t *LockTable) Lock(caseID string) {
	t.mu.Lock()
	l, ok := t.locks[caseID]
	if !ok {
		l = &caseLock{}
		t.locks[caseID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the lock for the given case ID.
func (t *LockTable) Unlock(caseID string) {
	t.mu.Lock()
	l, ok := t.locks[caseID]
	if !ok {
		t.mu.Unlock()
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, caseID)
	}
	t.mu.Unlock()

	l.mu.Unlock()
}
