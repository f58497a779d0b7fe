package storage

import (
	"sync"

	"github.com/spuro/spuro/entity"
)

// keyLocks serializes writers per entity key. Locks are created on demand
// and dropped once uncontended, so the map stays proportional to in-flight
// writes rather than to the table size.
type keyLocks struct {
	mu    sync.Mutex
	inUse map[entity.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the write lock for key and returns its release func.
func (kl *keyLocks) lock(key entity.Key) (unlock func()) {
	kl.mu.Lock()
	if kl.inUse == nil {
		kl.inUse = make(map[entity.Key]*keyLock)
	}
	l := kl.inUse[key]
	if l == nil {
		l = &keyLock{}
		kl.inUse[key] = l
	}
	l.refs++
	kl.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		kl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(kl.inUse, key)
		}
		kl.mu.Unlock()
	}
}
