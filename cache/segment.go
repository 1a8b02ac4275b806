package cache

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/segcache/internal/util"
)

// table is a segment's bucket array. Bucket heads are atomic so that
// readers can walk chains without the segment lock.
type table[K comparable, V any] []atomic.Pointer[entry[K, V]]

// segment is an independently locked partition of the cache: its own
// hash table, access and write queues, recency buffer and weight account.
//
// Writers hold mu. Readers take no lock; the only field they rely on is
// count (zero means "nothing to find"), everything else they observe is
// either immutable or an atomically published snapshot.
type segment[K comparable, V any] struct {
	c *localCache[K, V]

	mu    sync.Mutex
	tbl   atomic.Pointer[table[K, V]]
	count atomic.Int64

	// ---- guarded by mu ----
	totalWeight      int64
	maxSegmentWeight int64 // < 0 when unbounded
	threshold        int   // table grows once count would exceed it
	accessQueue      queue[K, V]
	writeQueue       queue[K, V]
	pending          []RemovalNotification[K, V] // delivered after unlock
	reportedCount    int64
	reportedWeight   int64

	// ---- lock-free ----
	recency   recencyBuffer[K, V]
	readCount atomic.Int32

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_         util.CacheLinePad
	hits      util.PaddedAtomicInt64
	misses    util.PaddedAtomicInt64
	evictions util.PaddedAtomicInt64
}

func newSegment[K comparable, V any](c *localCache[K, V], tableSize int, maxSegmentWeight int64) *segment[K, V] {
	s := &segment[K, V]{c: c, maxSegmentWeight: maxSegmentWeight}
	s.accessQueue.init(accessOrder)
	s.writeQueue.init(writeOrder)
	s.initTable(tableSize)
	return s
}

func (s *segment[K, V]) initTable(n int) {
	if !util.IsPowerOfTwo(n) {
		panic("cache: segment table size must be a power of two")
	}
	t := make(table[K, V], n)
	s.threshold = n * 3 / 4
	// With unit weights the table would otherwise grow one insert before
	// the first eviction brings the count back down.
	if !s.c.customWeigher && int64(s.threshold) == s.maxSegmentWeight {
		s.threshold++
	}
	s.tbl.Store(&t)
}

// ---- lock-free reads ----

// get returns the live value for key. When record is false the lookup
// leaves hit/miss statistics untouched.
func (s *segment[K, V]) get(key K, hash uint32, record bool) (V, bool) {
	defer s.postReadCleanup()

	if s.count.Load() != 0 {
		now := s.c.now()
		if e := s.getLiveEntry(key, hash, now); e != nil {
			if v, ok := e.value.Load().get(); ok {
				s.recordRead(e, now)
				if record {
					s.recordHit()
				}
				return v, true
			}
		}
	}
	if record {
		s.recordMiss()
	}
	var zero V
	return zero, false
}

func (s *segment[K, V]) getEntry(key K, hash uint32) *entry[K, V] {
	t := *s.tbl.Load()
	for e := t[int(hash)&(len(t)-1)].Load(); e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			return e
		}
	}
	return nil
}

func (s *segment[K, V]) getLiveEntry(key K, hash uint32, now int64) *entry[K, V] {
	e := s.getEntry(key, hash)
	if e == nil {
		return nil
	}
	if s.c.isExpired(e, now) {
		s.tryExpireEntries(now)
		return nil
	}
	return e
}

// recordRead notes a read made without the lock. The access queue is
// updated later, when the recency buffer is drained.
func (s *segment[K, V]) recordRead(e *entry[K, V], now int64) {
	if s.c.expiresAfterAccess() {
		e.accessTime.Store(now)
	}
	if s.c.usesRecency() {
		s.recency.offer(e)
	}
}

func (s *segment[K, V]) postReadCleanup() {
	if s.readCount.Add(1)&drainThreshold == 0 {
		s.cleanUp()
	}
}

// cleanUp runs pending maintenance if the lock is free.
func (s *segment[K, V]) cleanUp() {
	s.runLockedCleanup(s.c.now())
}

func (s *segment[K, V]) tryExpireEntries(now int64) {
	s.runLockedCleanup(now)
}

func (s *segment[K, V]) runLockedCleanup(now int64) {
	if !s.mu.TryLock() {
		return
	}
	defer s.unlock()
	s.expireEntries(now)
	s.readCount.Store(0)
}

// ---- locked writes ----

// put stores value for key. When onlyIfAbsent is set and a live value
// exists, that value is returned and nothing is written. The returned
// flag reports whether a live value existed.
func (s *segment[K, V]) put(key K, hash uint32, value V, onlyIfAbsent bool) (V, bool) {
	s.mu.Lock()
	defer s.unlock()

	now := s.c.now()
	s.preWriteCleanup(now)

	if e := s.lockedLiveEntry(key, hash, now); e != nil {
		old := e.value.Load()
		if onlyIfAbsent {
			s.recordLockedRead(e, now)
			return old.value, true
		}
		weight := s.c.weigh(key, value)
		s.enqueueNotification(key, old, RemovalReplaced)
		s.setValue(e, value, weight, now)
		s.evictEntries(e)
		return old.value, true
	}

	weight := s.c.weigh(key, value)
	s.insert(key, hash, value, weight, now)
	var zero V
	return zero, false
}

// getOrPut returns the live value for key, or computes, stores and
// returns a new one. compute runs under the segment lock.
func (s *segment[K, V]) getOrPut(key K, hash uint32, compute func() V) V {
	if v, ok := s.get(key, hash, false); ok {
		s.recordHit()
		return v
	}

	s.mu.Lock()
	defer s.unlock()

	now := s.c.now()
	s.preWriteCleanup(now)

	if e := s.lockedLiveEntry(key, hash, now); e != nil {
		s.recordLockedRead(e, now)
		s.recordHit()
		return e.value.Load().value
	}
	s.recordMiss()

	v := compute()
	s.insert(key, hash, v, s.c.weigh(key, v), now)
	return v
}

// insert links a new entry at the head of its bucket. Requires mu and
// that no entry for key is present.
func (s *segment[K, V]) insert(key K, hash uint32, value V, weight int, now int64) {
	if int(s.count.Load())+1 > s.threshold {
		s.expand()
	}
	t := *s.tbl.Load()
	i := int(hash) & (len(t) - 1)
	e := &entry[K, V]{key: key, hash: hash, next: t[i].Load()}
	s.setValue(e, value, weight, now)
	t[i].Store(e)
	s.count.Add(1)
	s.evictEntries(e)
}

// lockedLiveEntry finds the entry for key under the lock. An entry that
// has expired but was not yet swept is removed here and reported as absent.
func (s *segment[K, V]) lockedLiveEntry(key K, hash uint32, now int64) *entry[K, V] {
	e := s.getEntry(key, hash)
	if e == nil {
		return nil
	}
	if s.c.isExpired(e, now) {
		s.removeEntry(e, RemovalExpired)
		return nil
	}
	return e
}

// remove unlinks key and returns its value. The flag is false when there
// was no entry or the entry was no longer active.
func (s *segment[K, V]) remove(key K, hash uint32) (V, bool) {
	s.mu.Lock()
	defer s.unlock()

	now := s.c.now()
	s.preWriteCleanup(now)

	t := *s.tbl.Load()
	i := int(hash) & (len(t) - 1)
	first := t[i].Load()
	for e := first; e != nil; e = e.next {
		if e.hash != hash || e.key != key {
			continue
		}
		v, ok := e.value.Load().get()
		if !ok {
			return v, false
		}
		if s.c.isExpired(e, now) {
			t[i].Store(s.removeValueFromChain(first, e, RemovalExpired))
			var zero V
			return zero, false
		}
		t[i].Store(s.removeValueFromChain(first, e, RemovalExplicit))
		return v, true
	}
	var zero V
	return zero, false
}

// clear drops every entry of the segment.
func (s *segment[K, V]) clear() {
	s.mu.Lock()
	defer s.unlock()

	if s.count.Load() != 0 {
		t := *s.tbl.Load()
		for i := range t {
			for e := t[i].Load(); e != nil; e = e.next {
				ref := e.value.Load()
				s.enqueueNotification(e.key, ref, RemovalExplicit)
				ref.retire()
			}
		}
		for i := range t {
			t[i].Store(nil)
		}
		s.accessQueue.clear()
		s.writeQueue.clear()
		s.count.Store(0)
		s.totalWeight = 0
	}
	s.recency.clear()
	s.readCount.Store(0)
}

// ---- maintenance (mu held) ----

func (s *segment[K, V]) preWriteCleanup(now int64) {
	s.expireEntries(now)
	s.readCount.Store(0)
}

// drainRecency replays buffered reads into the access queue. Entries that
// were unlinked or copied since the read are no longer queue members and
// are skipped.
func (s *segment[K, V]) drainRecency() {
	s.recency.drain(func(e *entry[K, V]) {
		if s.accessQueue.contains(e) {
			s.requeueAccess(e, e.accessTime.Load())
		}
	})
}

// requeueAccess moves e to the access queue tail as of access time at.
func (s *segment[K, V]) requeueAccess(e *entry[K, V], at int64) {
	e.accessQueued = at
	s.accessQueue.offer(e)
}

// expireEntries sweeps expired entries from the queue heads. Both queues
// are age-ordered, so each walk stops at the first live entry.
func (s *segment[K, V]) expireEntries(now int64) {
	s.drainRecency()

	if s.c.expiresAfterWrite() {
		for e := s.writeQueue.peek(); e != nil && s.c.isExpired(e, now); e = s.writeQueue.peek() {
			if !s.removeEntry(e, RemovalExpired) {
				panic("cache: write queue entry missing from table")
			}
		}
	}
	if s.c.expiresAfterAccess() {
		// A read whose recency event was dropped leaves a live entry ahead
		// of older ones. Such entries are requeued, at most once per entry
		// present when the sweep started, instead of ending the walk.
		requeues := s.count.Load()
		for e := s.accessQueue.peek(); e != nil; e = s.accessQueue.peek() {
			if s.c.isExpired(e, now) {
				if !s.removeEntry(e, RemovalExpired) {
					panic("cache: access queue entry missing from table")
				}
				continue
			}
			at := e.accessTime.Load()
			if at == e.accessQueued || requeues == 0 {
				break
			}
			requeues--
			s.requeueAccess(e, at)
		}
	}
}

// evictEntries restores the weight bound after newest was written.
func (s *segment[K, V]) evictEntries(newest *entry[K, V]) {
	if !s.c.evictsBySize() {
		return
	}
	s.drainRecency()

	if w := int64(newest.value.Load().weight); w > s.maxSegmentWeight {
		if s.c.log.IsLevelEnabled(logrus.DebugLevel) {
			s.c.log.WithFields(logrus.Fields{
				"key":    newest.key,
				"weight": w,
				"limit":  s.maxSegmentWeight,
			}).Debug("cache: entry heavier than its segment, evicting it")
		}
		s.removeEntry(newest, RemovalSize)
		return
	}

	for s.totalWeight > s.maxSegmentWeight {
		e := s.nextEvictable()
		if e == nil {
			break
		}
		s.removeEntry(e, RemovalSize)
	}
}

// nextEvictable returns the least recently used entry with a positive weight.
func (s *segment[K, V]) nextEvictable() *entry[K, V] {
	for e := s.accessQueue.peek(); e != nil; e = e.q[accessOrder].next {
		if e == &s.accessQueue.head {
			break
		}
		if e.value.Load().weight > 0 {
			return e
		}
	}
	return nil
}

// expand doubles the table. Chains are split by the new index bit; the
// longest tail run that lands in a single new bucket is reused as is and
// only the nodes in front of it are copied.
func (s *segment[K, V]) expand() {
	old := *s.tbl.Load()
	if len(old) >= util.MaxTableSize {
		return
	}

	nt := make(table[K, V], len(old)<<1)
	s.threshold = len(nt) * 3 / 4
	mask := uint32(len(nt) - 1)

	for i := range old {
		head := old[i].Load()
		if head == nil {
			continue
		}
		headIndex := head.hash & mask
		if head.next == nil {
			nt[headIndex].Store(head)
			continue
		}

		tail, tailIndex := head, headIndex
		for e := head.next; e != nil; e = e.next {
			if idx := e.hash & mask; idx != tailIndex {
				tail, tailIndex = e, idx
			}
		}
		nt[tailIndex].Store(tail)

		for e := head; e != tail; e = e.next {
			idx := e.hash & mask
			nt[idx].Store(s.copyEntry(e, nt[idx].Load()))
		}
	}
	s.tbl.Store(&nt)
}

// copyEntry clones src in front of next and moves src's queue positions
// to the clone. The value reference is shared.
func (s *segment[K, V]) copyEntry(src, next *entry[K, V]) *entry[K, V] {
	e := &entry[K, V]{key: src.key, hash: src.hash, next: next}
	e.value.Store(src.value.Load())
	e.accessTime.Store(src.accessTime.Load())
	e.writeTime.Store(src.writeTime.Load())
	e.accessQueued = src.accessQueued
	s.accessQueue.replace(src, e)
	s.writeQueue.replace(src, e)
	return e
}

// setValue installs a fresh value reference on e and records the write.
func (s *segment[K, V]) setValue(e *entry[K, V], value V, weight int, now int64) {
	e.value.Store(newValueRef(value, weight))
	s.drainRecency()
	s.totalWeight += int64(weight)
	if s.c.expiresAfterAccess() {
		e.accessTime.Store(now)
	}
	if s.c.expiresAfterWrite() {
		e.writeTime.Store(now)
	}
	s.requeueAccess(e, e.accessTime.Load())
	if s.c.expiresAfterWrite() {
		s.writeQueue.offer(e)
	}
}

func (s *segment[K, V]) recordLockedRead(e *entry[K, V], now int64) {
	if s.c.expiresAfterAccess() {
		e.accessTime.Store(now)
	}
	s.requeueAccess(e, e.accessTime.Load())
}

// removeEntry unlinks e (which must belong to this segment) from the table
// and both queues. It reports false when e is not in the table.
func (s *segment[K, V]) removeEntry(e *entry[K, V], cause RemovalCause) bool {
	t := *s.tbl.Load()
	i := int(e.hash) & (len(t) - 1)
	first := t[i].Load()
	for x := first; x != nil; x = x.next {
		if x == e {
			t[i].Store(s.removeValueFromChain(first, e, cause))
			return true
		}
	}
	return false
}

func (s *segment[K, V]) removeValueFromChain(first, e *entry[K, V], cause RemovalCause) *entry[K, V] {
	s.enqueueNotification(e.key, e.value.Load(), cause)
	s.writeQueue.remove(e)
	s.accessQueue.remove(e)
	return s.removeEntryFromChain(first, e)
}

// removeEntryFromChain returns the new bucket head without e. Nodes in
// front of e are copied because next links are immutable; nodes after it
// are reused.
func (s *segment[K, V]) removeEntryFromChain(first, e *entry[K, V]) *entry[K, V] {
	newFirst := e.next
	for x := first; x != e; x = x.next {
		newFirst = s.copyEntry(x, newFirst)
	}
	e.value.Load().retire()
	s.count.Add(-1)
	return newFirst
}

// enqueueNotification takes the removed value out of the weight account
// and queues the listener call for delivery after unlock.
func (s *segment[K, V]) enqueueNotification(key K, ref *valueRef[V], cause RemovalCause) {
	s.totalWeight -= int64(ref.weight)
	if cause.WasEvicted() {
		s.evictions.Add(1)
		s.c.metrics.Evict(cause)
		if s.c.log.IsLevelEnabled(logrus.TraceLevel) {
			s.c.log.WithFields(logrus.Fields{"key": key, "cause": cause}).Trace("cache: evict")
		}
	}
	if s.c.listener != nil {
		s.pending = append(s.pending, RemovalNotification[K, V]{Key: key, Value: ref.value, Cause: cause})
	}
}

// unlock releases mu, then reports size changes and delivers queued
// removal notifications outside the lock.
func (s *segment[K, V]) unlock() {
	pending := s.pending
	s.pending = nil
	dc := s.count.Load() - s.reportedCount
	dw := s.totalWeight - s.reportedWeight
	s.reportedCount += dc
	s.reportedWeight += dw
	s.mu.Unlock()

	if dc != 0 || dw != 0 {
		s.c.metrics.Resize(int(dc), dw)
	}
	for _, n := range pending {
		s.c.notify(n)
	}
}

func (s *segment[K, V]) recordHit() {
	s.hits.Add(1)
	s.c.metrics.Hit()
}

func (s *segment[K, V]) recordMiss() {
	s.misses.Add(1)
	s.c.metrics.Miss()
}
