package service

import (
	"sync"

	"github.com/google/uuid"
)

// missionLocks serializes turn advances per mission. The lock is held across
// the generation call, so two concurrent advances on one mission cannot
// interleave debit and append; advances on different missions run in parallel.
type missionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*missionLock
}

type missionLock struct {
	sync.Mutex
	// refs counts holders plus waiters so the registry entry can be dropped
	// once the last one releases.
	refs int
}

func newMissionLocks() *missionLocks {
	return &missionLocks{locks: make(map[uuid.UUID]*missionLock)}
}

// Acquire blocks until the mission's lock is held.
func (l *missionLocks) Acquire(missionID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[missionID]
	if !ok {
		entry = &missionLock{}
		l.locks[missionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
}

// Release unlocks the mission's lock and drops the registry entry when nobody
// else holds or waits on it.
func (l *missionLocks) Release(missionID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[missionID]
	if !ok {
		l.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, missionID)
	}
	l.mu.Unlock()

	entry.Unlock()
}
