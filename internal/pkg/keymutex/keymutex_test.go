// internal/pkg/keymutex/keymutex_test.go
package keymutex

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock(7)
			counter++
			m.Unlock(7)
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	m := New()

	m.Lock(1)
	done := make(chan struct{})
	go func() {
		m.Lock(2)
		m.Unlock(2)
		close(done)
	}()
	<-done
	m.Unlock(1)
}

func TestEntriesAreReleased(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for key := int64(0); key < 50; key++ {
		wg.Add(1)
		go func(k int64) {
			defer wg.Done()
			m.Lock(k)
			m.Unlock(k)
		}(key)
	}
	wg.Wait()

	m.mu.Lock()
	remaining := len(m.locks)
	m.mu.Unlock()
	if remaining != 0 {
		t.Errorf("lock map has %d entries after release, want 0", remaining)
	}
}

func TestUnlockUnheldKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on unlock of unheld key")
		}
	}()
	New().Unlock(42)
}
