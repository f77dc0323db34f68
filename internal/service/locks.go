package service

import "sync"

// LockTable hands out one mutex per departure so that seat transitions
// for a departure are serialized inside the process before they reach
// the database. The database row lock gives the same guarantee across
// processes; the in-process mutex keeps contending request workers
// from piling up on the database and makes the winner deterministic.
// Entries are never removed: the set of live departures is small and
// a mutex is cheap.
type LockTable struct {
	locks sync.Map // departure id → *sync.Mutex
}

// NewLockTable returns an empty LockTable.
func NewLockTable() *LockTable { return &LockTable{} }

// ForDeparture returns the mutex guarding the given departure,
// creating it on first use.
func (t *LockTable) ForDeparture(id uint64) *sync.Mutex {
	if v, ok := t.locks.Load(id); ok {
		return v.(*sync.Mutex)
	}
	v, _ := t.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}
