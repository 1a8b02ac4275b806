package util

import (
	"hash/maphash"
	"math"
	"testing"
)

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 16: 16, 17: 32, MaxTableSize - 1: MaxTableSize}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d) = %d, want %d", in, got, want)
		}
		if !IsPowerOfTwo(NextPow2(in)) {
			t.Fatalf("NextPow2(%d) is not a power of two", in)
		}
	}
}

func TestLayout_ConcurrencyRoundsUp(t *testing.T) {
	t.Parallel()

	l := NewLayout(5, 16, -1)
	if l.Count != 8 || l.Mask != 7 || l.Shift != 29 {
		t.Fatalf("unexpected layout %+v", l)
	}
	if l.TableSize != 2 {
		t.Fatalf("table size want 2, got %d", l.TableSize)
	}
}

// Small bounded caches must not be split into segments with a tiny share.
func TestLayout_WeightCapsSegments(t *testing.T) {
	t.Parallel()

	if l := NewLayout(4, 16, 2); l.Count != 1 {
		t.Fatalf("maxWeight=2 must use one segment, got %d", l.Count)
	}
	if l := NewLayout(64, 16, 100); l.Count != 8 {
		// 8*20 = 160 > 100 stops the doubling at 8 (4*20 <= 100 allows 8).
		t.Fatalf("maxWeight=100 want 8 segments, got %d", l.Count)
	}
	if l := NewLayout(1, 16, 0); l.Count != 1 || l.TableSize != 1 {
		t.Fatalf("maxWeight=0 must use one tiny segment, got %+v", l)
	}
}

func TestLayout_SegmentWeightsSumExactly(t *testing.T) {
	t.Parallel()

	for _, max := range []int64{0, 1, 2, 99, 100, 1001} {
		l := NewLayout(16, 16, max)
		var sum int64
		for i := 0; i < l.Count; i++ {
			sum += l.SegmentWeight(i, max)
		}
		if sum != max {
			t.Fatalf("max=%d: segment weights sum to %d", max, sum)
		}
	}
}

func TestLayout_IndexUsesHighBits(t *testing.T) {
	t.Parallel()

	l := NewLayout(4, 16, -1)
	if got := l.Index(0xC0000000); got != 3 {
		t.Fatalf("Index(high bits 11) = %d, want 3", got)
	}
	if got := l.Index(0x3FFFFFFF); got != 0 {
		t.Fatalf("Index(high bits 00) = %d, want 0", got)
	}
	if got := NewLayout(1, 16, -1).Index(math.MaxUint32); got != 0 {
		t.Fatalf("single segment index = %d", got)
	}
}

type point struct {
	X, Y int
	Tag  string
}

type node struct{ n int }

type withPointer struct{ P *node }

type withFloat struct{ F float64 }

type withUnexported struct{ id int }

func TestHashOf_EqualKeysHashEqual(t *testing.T) {
	t.Parallel()

	seed := maphash.MakeSeed()
	if HashOf(seed, "abc") != HashOf(seed, "abc") {
		t.Fatal("string hash unstable")
	}
	if HashOf(seed, 0.0) != HashOf(seed, math.Copysign(0, -1)) {
		t.Fatal("+0 and -0 must hash alike")
	}
	a, b := point{1, 2, "p"}, point{1, 2, "p"}
	if HashOf(seed, a) != HashOf(seed, b) {
		t.Fatal("equal structs must hash alike")
	}
	if HashOf(seed, a) == HashOf(seed, point{2, 1, "p"}) {
		t.Fatal("distinct structs unexpectedly collide")
	}
	p := &point{1, 2, "p"}
	h := HashOf(seed, p)
	p.X = 42
	if HashOf(seed, p) != h {
		t.Fatal("pointer keys must hash by identity")
	}
	var k any = "abc"
	if HashOf(seed, k) != HashOf(seed, "abc") {
		t.Fatal("interface keys must hash by dynamic value")
	}
}

// Composite keys hash by == semantics, field by field.
func TestHashOf_StructFieldsFollowEquality(t *testing.T) {
	t.Parallel()

	seed := maphash.MakeSeed()

	target := &node{1}
	k := withPointer{target}
	h := HashOf(seed, k)
	target.n = 2
	if HashOf(seed, k) != h {
		t.Fatal("a pointer field must hash by address, not by pointee")
	}
	if HashOf(seed, withPointer{&node{2}}) == h {
		t.Fatal("distinct pointers unexpectedly collide")
	}

	pos, neg := withFloat{0}, withFloat{math.Copysign(0, -1)}
	if pos != neg {
		t.Fatal("test premise: +0 and -0 fields compare equal")
	}
	if HashOf(seed, pos) != HashOf(seed, neg) {
		t.Fatal("+0 and -0 fields must hash alike")
	}

	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		seen[HashOf(seed, withUnexported{i})] = true
	}
	if len(seen) < 990 {
		t.Fatalf("unexported fields must contribute: %d distinct hashes for 1000 keys", len(seen))
	}
}

func TestNewHasher_SeedPerInstance(t *testing.T) {
	t.Parallel()

	h := NewHasher[withUnexported]()
	if h(withUnexported{7}) != h(withUnexported{7}) {
		t.Fatal("one hasher must be deterministic")
	}
	if NewHasher[string]()("abc") != NewHasher[string]()("abc") {
		t.Fatal("string hashing is unseeded")
	}
}

// Rehash must spread sequential integers over the high bits used for segments.
func TestRehash_SpreadsHighBits(t *testing.T) {
	t.Parallel()

	l := NewLayout(16, 16, -1)
	seed := maphash.MakeSeed()
	seen := make(map[int]bool)
	for i := 0; i < 256; i++ {
		seen[l.Index(Rehash(HashOf(seed, i)))] = true
	}
	if len(seen) != l.Count {
		t.Fatalf("256 sequential keys reached %d of %d segments", len(seen), l.Count)
	}
}
