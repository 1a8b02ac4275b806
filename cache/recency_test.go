package cache

import (
	"sync"
	"testing"
)

func drainKeys(b *recencyBuffer[int, int]) []int {
	var keys []int
	b.drain(func(e *entry[int, int]) { keys = append(keys, e.key) })
	return keys
}

func TestRecency_DrainInOfferOrder(t *testing.T) {
	t.Parallel()

	var b recencyBuffer[int, int]
	for i := 0; i < 3; i++ {
		b.offer(&entry[int, int]{key: i})
	}
	got := drainKeys(&b)
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("drained %v", got)
	}
	if got := drainKeys(&b); len(got) != 0 {
		t.Fatalf("second drain returned %v", got)
	}
}

func TestRecency_FullBufferDropsReads(t *testing.T) {
	t.Parallel()

	var b recencyBuffer[int, int]
	for i := 0; i < recencySize+50; i++ {
		b.offer(&entry[int, int]{key: i})
	}
	got := drainKeys(&b)
	if len(got) != recencySize {
		t.Fatalf("drained %d events, want %d", len(got), recencySize)
	}
	if got[recencySize-1] != recencySize-1 {
		t.Fatalf("the oldest events must be kept, last is %d", got[recencySize-1])
	}

	// Space frees up after a drain; slots wrap around.
	b.offer(&entry[int, int]{key: 1000})
	if got := drainKeys(&b); len(got) != 1 || got[0] != 1000 {
		t.Fatalf("after wrap drained %v", got)
	}
}

func TestRecency_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	var b recencyBuffer[int, int]
	var mu sync.Mutex // the consumer side runs under the segment lock
	var wg sync.WaitGroup
	total := 0
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b.offer(&entry[int, int]{key: i})
				if i%64 == 0 {
					mu.Lock()
					total += len(drainKeys(&b))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	mu.Lock()
	total += len(drainKeys(&b))
	mu.Unlock()
	if total == 0 || total > 8000 {
		t.Fatalf("drained %d events from 8000 offers", total)
	}
}
