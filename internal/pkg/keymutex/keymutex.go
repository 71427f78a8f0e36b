// internal/pkg/keymutex/keymutex.go
package keymutex

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex provides a mutex per int64 key. Entries are dropped once the last
// holder releases them, so the map does not grow with the rider population.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

func New() *KeyMutex {
	return &KeyMutex{locks: make(map[int64]*lockEntry)}
}

func (m *KeyMutex) Lock(key int64) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &lockEntry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

func (m *KeyMutex) Unlock(key int64) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		panic("keymutex: unlock of unheld key")
	}
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}
