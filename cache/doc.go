// Package cache provides a generic, segmented, bounded in-memory cache
// with lock-free reads, weight-based LRU eviction and time-based expiration.
//
// Design
//
//   - Concurrency: the table is split into a power-of-two number of
//     segments chosen from the concurrency level. The segment is picked
//     by the high bits of the key's (re)hash. Each segment has a mutex for
//     writes; reads never lock.
//
//   - Storage: each segment owns an open-chained hash table. Chain links
//     are immutable: resizes and removals copy the affected nodes, so a
//     reader walking a chain always sees a consistent snapshot. Values are
//     replaced wholesale, never mutated in place.
//
//   - Eviction: entries are threaded on an intrusive access-order queue
//     (and a write-order queue when ExpireAfterWrite is set). Reads are
//     recorded in a lossy per-segment buffer and replayed into the access
//     queue by the next locked operation. When a segment's total weight
//     exceeds its share of MaximumSize/MaximumWeight, entries are evicted
//     from the least recently used end.
//
//   - Expiration: ExpireAfterAccess / ExpireAfterWrite are checked on every
//     read, swept before every write, and opportunistically (TryLock) after
//     an expired read and every 64th read.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If no Loader was configured, it returns ErrNoLoader.
//
//   - Observability: Metrics receives Hit/Miss/Evict/Resize/Load signals
//     (NoopMetrics by default; metrics/prom exports them to Prometheus).
//     RemovalListener receives every removal after the lock is released.
//
// Basic usage
//
//	c := cache.NewBuilder[string, []byte]().
//	    MaximumSize(10_000).
//	    MustBuild()
//	c.Put("a", []byte("1"))
//	if v, ok := c.GetIfPresent("a"); ok {
//	    _ = v
//	}
//	c.Invalidate("a")
//
// With expiration
//
//	c := cache.NewBuilder[string, string]().
//	    ExpireAfterWrite(200 * time.Millisecond).
//	    MustBuild()
//	c.Put("tmp", "v")
//	time.Sleep(300 * time.Millisecond)
//	_, ok := c.GetIfPresent("tmp") // ok == false (expired)
//
// Weighted
//
//	c, err := cache.NewBuilder[string, []byte]().
//	    MaximumWeight(64 << 20).
//	    Weigher(func(k string, v []byte) int { return len(k) + len(v) }).
//	    Build()
//
// With GetOrLoad (singleflight)
//
//	c := cache.NewBuilder[string, string]().
//	    MaximumSize(1024).
//	    Loader(func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    }).
//	    MustBuild()
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Reads cost one chain
// walk; writes cost a chain walk plus O(1) queue maintenance per entry
// evicted or expired. Weight bounds are enforced per segment, so the cache
// as a whole may evict slightly before reaching the configured maximum.
package cache
