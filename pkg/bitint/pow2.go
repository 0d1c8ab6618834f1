// SPDX-License-Identifier: MIT

/*
Package bitint provides the small bit manipulation helpers the radix-2 FFT
and its configuration need: power-of-two checks, integer log2 and low-order
bit reversal.

All functions are allocation free and O(1) or O(bits).

Usage:

	// Reject a non power-of-two transform size
	if !bitint.IsPowerOfTwo(size) { ... }

	// Decimation-in-time input ordering
	levels := bitint.Log2(size)
	j := bitint.ReverseBits(i, levels)
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Subtracting one before
// taking the bit length keeps exact powers of two unchanged (8 stays 8).
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of two have
// a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise. For a power of two
// this is the exact number of radix-2 levels.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

// ReverseBits reverses the lowest `levels` bits of i. Bits above that width
// are discarded.
//
//	ReverseBits(1, 3) == 4   // 001 -> 100
//	ReverseBits(6, 3) == 3   // 110 -> 011
func ReverseBits(i, levels int) int {
	if levels <= 0 {
		return 0
	}
	return int(bits.Reverse(uint(i)) >> (bits.UintSize - levels))
}
