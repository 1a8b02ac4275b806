package cache

import "sync/atomic"

// valueRef holds one written value together with its weight. It is never
// mutated after publication: an update installs a fresh valueRef, so a
// lock-free reader that loaded the old one keeps a consistent view.
type valueRef[V any] struct {
	value  V
	weight int
	// active is cleared once the owning entry is unlinked from its segment.
	active atomic.Bool
}

func newValueRef[V any](v V, weight int) *valueRef[V] {
	r := &valueRef[V]{value: v, weight: weight}
	r.active.Store(true)
	return r
}

// get returns the value and whether it is still visible to readers.
func (r *valueRef[V]) get() (V, bool) {
	if !r.active.Load() {
		var zero V
		return zero, false
	}
	return r.value, true
}

func (r *valueRef[V]) retire() { r.active.Store(false) }

// Queue orders. Each entry carries one pair of links per order.
const (
	accessOrder = iota
	writeOrder
	numOrders
)

// links is one prev/next pair of an intrusive queue. A nil next means
// the entry is not a member of that queue.
type links[K comparable, V any] struct {
	prev, next *entry[K, V]
}

// entry is a node of a segment's hash chain and of its access/write queues.
//
// key, hash and next are fixed at construction: when an entry's chain
// position must change (resize, removal of a predecessor) the segment
// copies it into a new node instead. Readers walk chains without the
// lock, so everything they touch is either immutable or atomic.
type entry[K comparable, V any] struct {
	key  K
	hash uint32
	next *entry[K, V]

	value atomic.Pointer[valueRef[V]]

	// Ticker readings; only maintained when the matching expiration is on.
	accessTime atomic.Int64
	writeTime  atomic.Int64

	// guarded by the segment lock
	q [numOrders]links[K, V]
	// accessQueued is the access time the entry's access queue position
	// reflects. It lags accessTime when a read event was dropped.
	accessQueued int64
}
