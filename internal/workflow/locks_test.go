package workflow

import (
	"sync"
	"testing"
)

func TestLockTableMutualExclusion(t *testing.T) {
	table := NewLockTable()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			table.Lock("case-1")
			counter++
			table.Unlock("case-1")
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("expected %d increments, got %d", workers, counter)
	}
	table.mu.Lock()
	remaining := len(table.locks)
	table.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock entries to be reclaimed, %d remain", remaining)
	}
}

func TestLockTableIndependentCases(t *testing.T) {
	table := NewLockTable()
	table.Lock("case-a")
	defer table.Unlock("case-a")

	done := make(chan struct{})
	go func() {
		table.Lock("case-b")
		table.Unlock("case-b")
		close(done)
	}()
	<-done
}
