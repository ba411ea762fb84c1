// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-2 helpers used for FFT and ring buffer
sizing. All operations are O(1), allocation-free and real-time safe.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Powers of 2 are
// returned unchanged; zero and negative inputs yield 1.
//
// The size-1 subtraction keeps exact powers of 2 from being doubled:
// bits.Len64(7) = 3 so 8 maps to 1<<3 = 8, not 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return int(1 << bits.Len64(uint64(size-1)))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so n&(n-1) clears to zero only for those values.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
