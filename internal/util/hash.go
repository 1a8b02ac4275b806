// Package util contains internal helpers (hashing, segment sizing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"hash/maphash"
	"math"

	"github.com/cespare/xxhash/v2"
)

// NewHasher returns the native key hash for one cache instance. Every
// hasher gets its own random seed for the keys that fall through to
// maphash, so hashes are only comparable within one hasher.
func NewHasher[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 { return HashOf(seed, k) }
}

// HashOf returns the native 64-bit hash of a key.
//
// Strings and byte arrays go through xxhash, integer and float widths
// through a 64-bit mixer. Every other comparable type is hashed by
// maphash.Comparable, which follows == exactly: pointers and channels
// by identity, structs and arrays field by field (unexported fields
// included), interfaces by dynamic type and value. Like ==, it panics
// on an interface holding an uncomparable value.
func HashOf[K comparable](seed maphash.Seed, k K) uint64 {
	switch v := any(k).(type) {
	case string:
		return xxhash.Sum64String(v)
	case [16]byte:
		return xxhash.Sum64(v[:])
	case [32]byte:
		return xxhash.Sum64(v[:])
	case [64]byte:
		return xxhash.Sum64(v[:])

	case uint8:
		return Mix64(uint64(v))
	case uint16:
		return Mix64(uint64(v))
	case uint32:
		return Mix64(uint64(v))
	case uint64:
		return Mix64(v)
	case uint:
		return Mix64(uint64(v))
	case uintptr:
		return Mix64(uint64(v))
	case int8:
		return Mix64(uint64(uint8(v)))
	case int16:
		return Mix64(uint64(uint16(v)))
	case int32:
		return Mix64(uint64(uint32(v)))
	case int64:
		return Mix64(uint64(v))
	case int:
		return Mix64(uint64(v))

	// -0 == +0 for floats, so both must hash alike.
	case float32:
		if v == 0 {
			v = 0
		}
		return Mix64(uint64(math.Float32bits(v)))
	case float64:
		if v == 0 {
			v = 0
		}
		return Mix64(math.Float64bits(v))
	case bool:
		if v {
			return Mix64(1)
		}
		return Mix64(0)

	default:
		return maphash.Comparable(seed, k)
	}
}

// Mix64 is the splitmix64 finalizer; it spreads every input bit over the
// whole output word.
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

const (
	smearC1 = 0xcc9e2d51
	smearC2 = 0x1b873593
)

// Rehash folds a native 64-bit hash to 32 bits and applies a supplemental
// smear, so that power-of-two segment and table masks see well-spread
// bits in both the high and the low end of the word.
func Rehash(h uint64) uint32 {
	x := uint32(h ^ (h >> 32))
	x *= smearC1
	x = x<<15 | x>>17
	return x * smearC2
}
