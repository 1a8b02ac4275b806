package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/segcache/internal/singleflight"
	"github.com/IvanBrykalov/segcache/internal/util"
)

// localCache routes every key to one segment and aggregates the
// cross-segment operations. Its configuration is immutable after Build.
type localCache[K comparable, V any] struct {
	segments []*segment[K, V]
	layout   util.Layout

	hasher        func(K) uint64
	ticker        Ticker
	weigher       Weigher[K, V]
	customWeigher bool
	maxWeight     int64 // < 0: unbounded

	// nanoseconds; < 0: disabled
	expireAfterAccessNanos int64
	expireAfterWriteNanos  int64

	loader   func(ctx context.Context, k K) (V, error)
	listener func(RemovalNotification[K, V])
	metrics  Metrics
	log      *logrus.Logger

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf           singleflight.Group[K, V]
	loadSuccess  util.PaddedAtomicInt64
	loadFailure  util.PaddedAtomicInt64
	loadTimeNano util.PaddedAtomicInt64
}

func (c *localCache[K, V]) evictsBySize() bool       { return c.maxWeight >= 0 }
func (c *localCache[K, V]) expiresAfterAccess() bool { return c.expireAfterAccessNanos >= 0 }
func (c *localCache[K, V]) expiresAfterWrite() bool  { return c.expireAfterWriteNanos >= 0 }
func (c *localCache[K, V]) recordsTime() bool        { return c.expiresAfterAccess() || c.expiresAfterWrite() }

// usesRecency reports whether lock-free reads must be replayed into the
// access queue, i.e. whether access order drives eviction or expiration.
func (c *localCache[K, V]) usesRecency() bool {
	return c.evictsBySize() || c.expiresAfterAccess()
}

// now reads the ticker only when some expiration needs timestamps.
func (c *localCache[K, V]) now() int64 {
	if !c.recordsTime() {
		return 0
	}
	return c.ticker.Read()
}

func (c *localCache[K, V]) isExpired(e *entry[K, V], now int64) bool {
	if c.expiresAfterAccess() && now-e.accessTime.Load() >= c.expireAfterAccessNanos {
		return true
	}
	if c.expiresAfterWrite() && now-e.writeTime.Load() >= c.expireAfterWriteNanos {
		return true
	}
	return false
}

// weigh returns the weight of k→v; a negative weight is a programming
// error and panics before anything is written.
func (c *localCache[K, V]) weigh(k K, v V) int {
	w := c.weigher(k, v)
	if w < 0 {
		panic(fmt.Sprintf("cache: weigher returned negative weight %d", w))
	}
	return w
}

func (c *localCache[K, V]) hash(k K) uint32 { return util.Rehash(c.hasher(k)) }

func (c *localCache[K, V]) segmentFor(h uint32) *segment[K, V] {
	return c.segments[c.layout.Index(h)]
}

// notify calls the removal listener. A panicking listener is logged and
// does not affect the cache.
func (c *localCache[K, V]) notify(n RemovalNotification[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{"key": n.Key, "cause": n.Cause, "panic": r}).
				Warn("cache: removal listener panicked")
		}
	}()
	c.listener(n)
}

// ---- Cache[K,V] implementation ----

func (c *localCache[K, V]) GetIfPresent(k K) (V, bool) {
	h := c.hash(k)
	return c.segmentFor(h).get(k, h, true)
}

func (c *localCache[K, V]) GetOrPut(k K, compute func() V) V {
	h := c.hash(k)
	return c.segmentFor(h).getOrPut(k, h, compute)
}

func (c *localCache[K, V]) PutIfAbsent(k K, v V) (V, bool) {
	h := c.hash(k)
	return c.segmentFor(h).put(k, h, v, true)
}

func (c *localCache[K, V]) Put(k K, v V) {
	h := c.hash(k)
	c.segmentFor(h).put(k, h, v, false)
}

func (c *localCache[K, V]) PutAll(m map[K]V) {
	for k, v := range m {
		c.Put(k, v)
	}
}

func (c *localCache[K, V]) Invalidate(k K) (V, bool) {
	h := c.hash(k)
	return c.segmentFor(h).remove(k, h)
}

func (c *localCache[K, V]) InvalidateAll(keys []K) {
	for _, k := range keys {
		c.Invalidate(k)
	}
}

func (c *localCache[K, V]) Clear() {
	for _, s := range c.segments {
		s.clear()
	}
}

func (c *localCache[K, V]) GetAllPresent(keys []K) map[K]V {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := c.GetIfPresent(k); ok {
			out[k] = v
		}
	}
	return out
}

func (c *localCache[K, V]) Size() int64 {
	var total int64
	for _, s := range c.segments {
		total += s.count.Load()
	}
	return total
}

// GetOrLoad returns the value for k; on miss it loads via the Loader,
// coalescing concurrent loads for the same key (singleflight).
// Failed loads are not cached.
func (c *localCache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	h := c.hash(k)
	s := c.segmentFor(h)
	if v, ok := s.get(k, h, true); ok {
		return v, nil
	}
	if c.loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	return c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join
		if v, ok := s.get(k, h, false); ok {
			return v, nil
		}
		start := time.Now()
		v, err := c.loader(ctx, k)
		elapsed := time.Since(start)
		c.loadTimeNano.Add(int64(elapsed))
		c.metrics.Load(elapsed, err)
		if err != nil {
			c.loadFailure.Add(1)
			return v, err
		}
		c.loadSuccess.Add(1)
		s.put(k, h, v, false)
		return v, nil
	})
}

func (c *localCache[K, V]) CleanUp() {
	for _, s := range c.segments {
		s.mu.Lock()
		s.preWriteCleanup(c.now())
		s.unlock()
	}
}

func (c *localCache[K, V]) Stats() Stats {
	st := Stats{
		LoadSuccesses: c.loadSuccess.Load(),
		LoadFailures:  c.loadFailure.Load(),
		TotalLoadTime: time.Duration(c.loadTimeNano.Load()),
		Segments:      len(c.segments),
	}
	for _, s := range c.segments {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evictions.Load()
		st.Entries += s.count.Load()
	}
	return st
}

var _ Cache[string, int] = (*localCache[string, int])(nil)
