package util

import "math/bits"

// IsPowerOfTwo reports whether n is a power of two (> 0).
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n; n <= 1 yields 1.
// Callers keep n within MaxTableSize, so the shift cannot overflow.
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
