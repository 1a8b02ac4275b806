package cache

import "time"

// Ticker is a monotonic time source read in nanoseconds.
// Only differences between two readings are meaningful.
type Ticker interface {
	Read() int64
}

// TickerFunc adapts a function to the Ticker interface.
type TickerFunc func() int64

// Read implements Ticker.
func (f TickerFunc) Read() int64 { return f() }

type systemTicker struct{ epoch time.Time }

// Read returns nanoseconds elapsed on the monotonic clock since the
// ticker was created.
func (t systemTicker) Read() int64 { return int64(time.Since(t.epoch)) }

// SystemTicker returns a Ticker backed by the runtime's monotonic clock.
func SystemTicker() Ticker { return systemTicker{epoch: time.Now()} }

// Weigher returns the relative cost of an entry. Weights are computed once,
// when the value is written, and must be non-negative; a negative weight
// panics at the call that wrote the entry.
type Weigher[K comparable, V any] func(k K, v V) int

func unitWeigher[K comparable, V any](K, V) int { return 1 }

// RemovalCause explains why an entry left the cache.
type RemovalCause int

const (
	// RemovalExplicit: removed by Invalidate, InvalidateAll or Clear.
	RemovalExplicit RemovalCause = iota
	// RemovalReplaced: the value was overwritten by a Put.
	RemovalReplaced
	// RemovalExpired: expireAfterAccess or expireAfterWrite elapsed.
	RemovalExpired
	// RemovalSize: evicted to keep the segment within its weight bound.
	RemovalSize
)

// WasEvicted reports whether the removal was automatic rather than
// caused by the user.
func (c RemovalCause) WasEvicted() bool {
	return c == RemovalExpired || c == RemovalSize
}

func (c RemovalCause) String() string {
	switch c {
	case RemovalExplicit:
		return "explicit"
	case RemovalReplaced:
		return "replaced"
	case RemovalExpired:
		return "expired"
	case RemovalSize:
		return "size"
	default:
		return "unknown"
	}
}

// RemovalNotification describes one removed entry. Notifications are
// delivered after the segment lock is released, in removal order per segment.
type RemovalNotification[K comparable, V any] struct {
	Key   K
	Value V
	Cause RemovalCause
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict is called for every automatic removal (expired or size).
	Evict(cause RemovalCause)
	// Resize reports the change in resident entries and total weight
	// caused by one locked segment operation.
	Resize(entries int, weight int64)
	// Load observes one GetOrLoad loader call.
	Load(elapsed time.Duration, err error)
}
