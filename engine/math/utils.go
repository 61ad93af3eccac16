package math

import (
	"encoding/binary"
	m "math"
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

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// NumMips returns the length of a full mip chain down to 1x1.
func NumMips[T constraints.Unsigned](width, height T) T {
	largest := uint64(Max(width, height))
	if largest == 0 {
		return 1
	}
	return T(bits.Len64(largest))
}

// MipExtent is the size of a mip level, never less than one.
func MipExtent[T constraints.Unsigned](size T, level uint32) T {
	return Max(size>>level, 1)
}

// DivCeil divides rounding up, for block-compressed rows and dispatch counts.
func DivCeil[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

// Float32Bytes packs values little endian, the layout constant buffers expect.
func Float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], m.Float32bits(v))
	}
	return out
}
