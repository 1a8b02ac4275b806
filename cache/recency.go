package cache

import "sync/atomic"

const (
	recencySize = 256
	recencyMask = recencySize - 1

	// drainThreshold: every 64th read attempts a locked cleanup.
	drainThreshold = 0x3F
)

// recencyBuffer records reads made without the segment lock so that the
// next locked operation can replay them into the access queue.
//
// It is a lossy multi-producer, single-consumer ring: producers claim a
// slot with a CAS on tail and drop the event when the ring is full or the
// CAS loses. The consumer runs under the segment lock. Losing an event
// only makes the LRU order slightly less precise.
type recencyBuffer[K comparable, V any] struct {
	head  atomic.Uint64 // consumer position
	tail  atomic.Uint64 // next slot to claim
	slots [recencySize]atomic.Pointer[entry[K, V]]
}

// offer records e; it never blocks.
func (b *recencyBuffer[K, V]) offer(e *entry[K, V]) {
	t := b.tail.Load()
	if t-b.head.Load() >= recencySize {
		return
	}
	if b.tail.CompareAndSwap(t, t+1) {
		b.slots[t&recencyMask].Store(e)
	}
}

// drain hands every published event to fn, oldest first. A claimed slot
// whose producer has not stored yet stops the drain; it is picked up next time.
func (b *recencyBuffer[K, V]) drain(fn func(*entry[K, V])) {
	h, t := b.head.Load(), b.tail.Load()
	for ; h != t; h++ {
		e := b.slots[h&recencyMask].Swap(nil)
		if e == nil {
			break
		}
		fn(e)
	}
	b.head.Store(h)
}

func (b *recencyBuffer[K, V]) clear() {
	b.drain(func(*entry[K, V]) {})
}
