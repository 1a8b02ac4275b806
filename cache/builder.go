package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/segcache/internal/util"
)

const (
	unset = -1

	defaultConcurrency     = 4
	defaultInitialCapacity = 16
)

// Builder assembles and validates a cache configuration. Zero values are
// safe; defaults are applied in Build():
//   - concurrency level    -> 4
//   - initial capacity     -> 16
//   - no size bound        -> unbounded
//   - no expiration        -> entries never expire, no timestamps recorded
//   - nil Ticker           -> SystemTicker
//   - nil Metrics          -> NoopMetrics
//   - nil Logger           -> logrus.StandardLogger()
//
// Setter misuse (negative values, a value set twice, conflicting bounds)
// is remembered and reported by Build; only the first problem is kept.
type Builder[K comparable, V any] struct {
	concurrency       int
	initialCapacity   int
	maximumSize       int64
	maximumWeight     int64
	weigher           Weigher[K, V]
	expireAfterAccess time.Duration
	expireAfterWrite  time.Duration
	ticker            Ticker
	hasher            func(K) uint64
	loader            func(ctx context.Context, k K) (V, error)
	listener          func(RemovalNotification[K, V])
	metrics           Metrics
	logger            *logrus.Logger

	err error
}

// NewBuilder returns a Builder with every option unset.
func NewBuilder[K comparable, V any]() *Builder[K, V] {
	return &Builder[K, V]{
		concurrency:       unset,
		initialCapacity:   unset,
		maximumSize:       unset,
		maximumWeight:     unset,
		expireAfterAccess: unset,
		expireAfterWrite:  unset,
	}
}

func (b *Builder[K, V]) fail(format string, args ...any) *Builder[K, V] {
	if b.err == nil {
		b.err = configError(format, args...)
	}
	return b
}

// ConcurrencyLevel hints how many goroutines update the cache at once.
// The segment count is the smallest power of two >= n (see MaximumWeight
// for the cap applied to small bounded caches).
func (b *Builder[K, V]) ConcurrencyLevel(n int) *Builder[K, V] {
	switch {
	case b.concurrency != unset:
		return b.fail("concurrency level was already set to %d", b.concurrency)
	case n < 1:
		return b.fail("concurrency level must be >= 1, got %d", n)
	}
	b.concurrency = n
	return b
}

// InitialCapacity pre-sizes the segment tables for n entries in total.
func (b *Builder[K, V]) InitialCapacity(n int) *Builder[K, V] {
	switch {
	case b.initialCapacity != unset:
		return b.fail("initial capacity was already set to %d", b.initialCapacity)
	case n < 0:
		return b.fail("initial capacity must be >= 0, got %d", n)
	}
	b.initialCapacity = n
	return b
}

// MaximumSize bounds the number of entries. It cannot be combined with a
// Weigher or MaximumWeight. The bound is split evenly over segments and
// enforced per segment, so the cache may evict before it is globally full.
func (b *Builder[K, V]) MaximumSize(n int64) *Builder[K, V] {
	switch {
	case b.maximumSize != unset:
		return b.fail("maximum size was already set to %d", b.maximumSize)
	case b.maximumWeight != unset:
		return b.fail("maximum weight was already set to %d", b.maximumWeight)
	case b.weigher != nil:
		return b.fail("maximum size can not be combined with weigher")
	case n < 0:
		return b.fail("maximum size must be >= 0, got %d", n)
	}
	b.maximumSize = n
	return b
}

// MaximumWeight bounds the total weight of the entries as computed by the
// Weigher. Each segment gets an equal share and the segment count is
// capped so that every share is at least 20.
func (b *Builder[K, V]) MaximumWeight(w int64) *Builder[K, V] {
	switch {
	case b.maximumWeight != unset:
		return b.fail("maximum weight was already set to %d", b.maximumWeight)
	case b.maximumSize != unset:
		return b.fail("maximum size was already set to %d", b.maximumSize)
	case w < 0:
		return b.fail("maximum weight must be >= 0, got %d", w)
	}
	b.maximumWeight = w
	return b
}

// Weigher sets the function weighing entries for MaximumWeight.
func (b *Builder[K, V]) Weigher(fn Weigher[K, V]) *Builder[K, V] {
	switch {
	case b.weigher != nil:
		return b.fail("weigher was already set")
	case b.maximumSize != unset:
		return b.fail("weigher can not be combined with maximum size")
	case fn == nil:
		return b.fail("weigher must not be nil")
	}
	b.weigher = fn
	return b
}

// ExpireAfterAccess expires entries d after their last read or write.
func (b *Builder[K, V]) ExpireAfterAccess(d time.Duration) *Builder[K, V] {
	switch {
	case b.expireAfterAccess != unset:
		return b.fail("expireAfterAccess was already set to %s", b.expireAfterAccess)
	case d < 0:
		return b.fail("expireAfterAccess must be >= 0, got %s", d)
	}
	b.expireAfterAccess = d
	return b
}

// ExpireAfterWrite expires entries d after their last write.
func (b *Builder[K, V]) ExpireAfterWrite(d time.Duration) *Builder[K, V] {
	switch {
	case b.expireAfterWrite != unset:
		return b.fail("expireAfterWrite was already set to %s", b.expireAfterWrite)
	case d < 0:
		return b.fail("expireAfterWrite must be >= 0, got %s", d)
	}
	b.expireAfterWrite = d
	return b
}

// Ticker overrides the time source (tests).
func (b *Builder[K, V]) Ticker(t Ticker) *Builder[K, V] {
	if b.ticker != nil {
		return b.fail("ticker was already set")
	}
	b.ticker = t
	return b
}

// Hasher overrides the native key hash. The result is spread again before
// use, so a plain identity function on integer ids is fine.
func (b *Builder[K, V]) Hasher(fn func(K) uint64) *Builder[K, V] {
	if b.hasher != nil {
		return b.fail("hasher was already set")
	}
	b.hasher = fn
	return b
}

// Loader sets the function used by GetOrLoad on a miss.
func (b *Builder[K, V]) Loader(fn func(ctx context.Context, k K) (V, error)) *Builder[K, V] {
	if b.loader != nil {
		return b.fail("loader was already set")
	}
	b.loader = fn
	return b
}

// RemovalListener is called for every removed or replaced entry, after the
// segment lock is released. Keep it cheap; it runs on the writer's goroutine.
func (b *Builder[K, V]) RemovalListener(fn func(RemovalNotification[K, V])) *Builder[K, V] {
	if b.listener != nil {
		return b.fail("removal listener was already set")
	}
	b.listener = fn
	return b
}

// Metrics wires an observability backend (see metrics/prom).
func (b *Builder[K, V]) Metrics(m Metrics) *Builder[K, V] {
	if b.metrics != nil {
		return b.fail("metrics were already set")
	}
	b.metrics = m
	return b
}

// Logger sets the logger for diagnostics.
func (b *Builder[K, V]) Logger(l *logrus.Logger) *Builder[K, V] {
	if b.logger != nil {
		return b.fail("logger was already set")
	}
	b.logger = l
	return b
}

// Build validates the configuration and constructs the cache.
// Every error wraps ErrInvalidConfig.
func (b *Builder[K, V]) Build() (Cache[K, V], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.weigher == nil && b.maximumWeight != unset {
		return nil, configError("maximum weight requires weigher")
	}
	if b.weigher != nil && b.maximumWeight == unset {
		return nil, configError("weigher requires maximum weight")
	}

	c := &localCache[K, V]{
		hasher:                 b.hasher,
		ticker:                 b.ticker,
		weigher:                b.weigher,
		customWeigher:          b.weigher != nil,
		maxWeight:              unset,
		expireAfterAccessNanos: unset,
		expireAfterWriteNanos:  unset,
		loader:                 b.loader,
		listener:               b.listener,
		metrics:                b.metrics,
		log:                    b.logger,
	}
	if c.hasher == nil {
		c.hasher = util.NewHasher[K]()
	}
	if c.ticker == nil {
		c.ticker = SystemTicker()
	}
	if c.weigher == nil {
		c.weigher = unitWeigher[K, V]
	}
	if c.metrics == nil {
		c.metrics = NoopMetrics{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	switch {
	case b.maximumSize != unset:
		c.maxWeight = b.maximumSize
	case b.maximumWeight != unset:
		c.maxWeight = b.maximumWeight
	}
	if b.expireAfterAccess != unset {
		c.expireAfterAccessNanos = int64(b.expireAfterAccess)
	}
	if b.expireAfterWrite != unset {
		c.expireAfterWriteNanos = int64(b.expireAfterWrite)
	}

	concurrency := b.concurrency
	if concurrency == unset {
		concurrency = defaultConcurrency
	}
	initialCapacity := b.initialCapacity
	if initialCapacity == unset {
		initialCapacity = defaultInitialCapacity
	}

	c.layout = util.NewLayout(concurrency, initialCapacity, c.maxWeight)
	c.segments = make([]*segment[K, V], c.layout.Count)
	for i := range c.segments {
		segWeight := int64(unset)
		if c.evictsBySize() {
			segWeight = c.layout.SegmentWeight(i, c.maxWeight)
		}
		c.segments[i] = newSegment(c, c.layout.TableSize, segWeight)
	}

	c.log.WithFields(logrus.Fields{
		"segments":            c.layout.Count,
		"table_size":          c.layout.TableSize,
		"max_weight":          c.maxWeight,
		"expire_after_access": time.Duration(c.expireAfterAccessNanos),
		"expire_after_write":  time.Duration(c.expireAfterWriteNanos),
	}).Debug("cache: built")
	return c, nil
}

// MustBuild is Build that panics on an invalid configuration.
func (b *Builder[K, V]) MustBuild() Cache[K, V] {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}
