package math

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Saturate clamps f to [0, 1].
func Saturate(f float32) float32 {
	return Clamp(f, 0, 1)
}

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo[T constraints.Integer](v T) bool {
	return v > 0 && v&(v-1) == 0
}

// RoundUpToPowerOf2 returns the smallest power of two >= v.
func RoundUpToPowerOf2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << (32 - bits.LeadingZeros32(v-1))
}

// FloorLog2 returns floor(log2(v)) for v > 0 and 0 otherwise.
func FloorLog2(v uint32) int {
	if v == 0 {
		return 0
	}
	return 31 - bits.LeadingZeros32(v)
}

// MipLevelsCount is the length of a full mip chain for the given size.
func MipLevelsCount(width, height int) int {
	return FloorLog2(uint32(max(width, height, 1))) + 1
}

// MipSize halves a dimension for the next mip, never going below 1.
func MipSize(size, level int) int {
	return max(1, size>>level)
}

// DivideAndRoundUp divides a by b rounding up.
func DivideAndRoundUp[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}
