package light

import "sync"

// KeyedLocker hands out one mutex per light id. Entries are reference
// counted and removed once no goroutine holds or waits on them.
// The zero value is ready to use.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the lock for id is held and returns its release func.
//
//	unlock := locker.Lock(id)
//	defer unlock()
func (k *KeyedLocker) Lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			k.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(k.locks, id)
			}
			k.mu.Unlock()
		})
	}
}

// Len returns the number of ids currently held or waited on.
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
