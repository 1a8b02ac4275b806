package cache

import "context"

// Cache is a segmented, in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Reads take no lock. Writes lock exactly one segment, chosen by the
// key's hash, so operations on keys in different segments never
// contend. Multi-key operations are applied key by key (or segment by
// segment) and are not atomic as a whole.
type Cache[K comparable, V any] interface {
	// GetIfPresent returns the live value for k and a presence flag.
	// Missing and expired keys are both reported as absent.
	GetIfPresent(k K) (V, bool)

	// GetOrPut returns the live value for k, or calls compute, stores its
	// result and returns it. compute runs while k's segment is locked and
	// must not use this cache for keys that may share that segment.
	GetOrPut(k K, compute func() V) V

	// PutIfAbsent stores k→v only if k has no live value. It returns the
	// existing value and true when one was present.
	PutIfAbsent(k K, v V) (V, bool)

	// Put inserts or replaces k→v.
	Put(k K, v V)

	// PutAll puts every pair of m.
	PutAll(m map[K]V)

	// Invalidate removes k and returns the value it held, if any.
	Invalidate(k K) (V, bool)

	// InvalidateAll removes every key of keys.
	InvalidateAll(keys []K)

	// Clear removes all entries, one segment at a time.
	Clear()

	// GetAllPresent returns the live values for the requested keys.
	// Absent keys are simply missing from the result.
	GetAllPresent(keys []K) map[K]V

	// Size returns the approximate number of entries. Expired entries not
	// yet swept are included.
	Size() int64

	// GetOrLoad returns the value for k, loading it via the builder's
	// Loader on miss. Concurrent loads for the same key are coalesced.
	// The loader runs without any segment lock held.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// CleanUp performs pending expiration and recency maintenance on
	// every segment.
	CleanUp()

	// Stats returns a snapshot of the cache's counters.
	Stats() Stats
}
