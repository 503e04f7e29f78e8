package agent

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var km keyedMutex
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("s1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestKeyedMutexEvictsIdleEntries(t *testing.T) {
	var km keyedMutex

	unlockA := km.Lock("a")
	unlockB := km.Lock("b")
	unlockA()
	unlockB()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("expected lock table drained after unlocks, got %d entries", len(km.locks))
	}
}
