package util

const (
	// MaxConcurrency caps the concurrency level hint.
	MaxConcurrency = 1 << 16
	// MaxTableSize caps a segment's bucket array.
	MaxTableSize = 1 << 30
	// minSegmentWeight is the smallest expected weight share per segment.
	// Smaller shares make eviction close to random rather than LRU.
	minSegmentWeight = 20
)

// Layout describes how a cache is split into segments.
type Layout struct {
	// Count is the number of segments (a power of two).
	Count int
	// Shift moves the segment-selecting high bits of a 32-bit hash down.
	Shift uint
	// Mask selects the segment index after Shift.
	Mask uint32
	// TableSize is the initial bucket array length of every segment.
	TableSize int
}

// NewLayout computes the segment layout for a concurrency hint, an
// initial capacity hint and an optional total weight bound
// (maxWeight < 0 means unbounded).
func NewLayout(concurrency, initialCapacity int, maxWeight int64) Layout {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	if initialCapacity > MaxTableSize {
		initialCapacity = MaxTableSize
	}
	if maxWeight >= 0 && int64(initialCapacity) > maxWeight {
		initialCapacity = int(maxWeight)
	}

	shift, count := uint(0), 1
	for count < concurrency && (maxWeight < 0 || int64(count)*minSegmentWeight <= maxWeight) {
		shift++
		count <<= 1
	}

	perSegment := (initialCapacity + count - 1) / count
	return Layout{
		Count:     count,
		Shift:     32 - shift,
		Mask:      uint32(count - 1),
		TableSize: NextPow2(perSegment),
	}
}

// Index returns the segment index for a rehashed key.
func (l Layout) Index(h uint32) int {
	// A shift of 32 on a uint32 yields 0 in Go, which is the single-segment case.
	return int((h >> l.Shift) & l.Mask)
}

// SegmentWeight splits maxWeight over the segments so that the shares
// add up exactly: the first maxWeight%count segments get one extra unit.
func (l Layout) SegmentWeight(i int, maxWeight int64) int64 {
	n := int64(l.Count)
	w := maxWeight/n + 1
	if int64(i) >= maxWeight%n {
		w--
	}
	return w
}
