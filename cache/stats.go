package cache

import "time"

// Stats is a point-in-time snapshot of cache counters. Counters are
// read without locking and are mutually approximate under concurrent use.
type Stats struct {
	Hits          int64
	Misses        int64
	LoadSuccesses int64
	LoadFailures  int64
	TotalLoadTime time.Duration
	// Evictions counts automatic removals (expired or size).
	Evictions int64
	Entries   int64
	Segments  int
}

// Requests returns Hits + Misses.
func (s Stats) Requests() int64 { return s.Hits + s.Misses }

// HitRatio returns Hits / Requests, or 1 when there were no requests.
func (s Stats) HitRatio() float64 {
	if r := s.Requests(); r > 0 {
		return float64(s.Hits) / float64(r)
	}
	return 1
}
