package decode

import "math/bits"

// NSPerSec is the number of nanoseconds in a second.
const NSPerSec int64 = 1_000_000_000

// RebaseTS rescales a timestamp in num/den units (as FFmpeg time bases are
// expressed) into nanoseconds, computing (ts * num * NSPerSec) / den with a
// 128-bit intermediate product so large sample counts and high sample
// rates never overflow a 64-bit multiply before the division, the same
// guarantee av_rescale provides in the FFmpeg C API.
func RebaseTS(ts, num, den int64) int64 {
	if ts == 0 || num == 0 {
		return 0
	}

	neg := false
	a, b, c := ts, num, den
	if a < 0 {
		neg = !neg
		a = -a
	}
	if b < 0 {
		neg = !neg
		b = -b
	}
	if c < 0 {
		neg = !neg
		c = -c
	}

	hi, lo := bits.Mul64(uint64(a), uint64(b))
	hi2, lo2 := mul128(hi, lo, uint64(NSPerSec))

	// Round to nearest rather than truncating: add half the divisor before
	// dividing, matching av_rescale's default AV_ROUND_NEAR_INF.
	hi2, lo2 = add128(hi2, lo2, uint64(c)/2)

	q, _ := div128(hi2, lo2, uint64(c))

	result := int64(q)
	if neg {
		result = -result
	}
	return result
}

// mul128 multiplies the 128-bit value (hi:lo) by a 64-bit scalar, returning
// the low 128 bits of the result. Overflow beyond 128 bits is not possible
// for the timestamp ranges this package deals with (nanosecond PTS values
// fit comfortably inside 128 bits even at 192kHz audio over multi-day
// media).
func mul128(hi, lo, scalar uint64) (rhi, rlo uint64) {
	loHi, loLo := bits.Mul64(lo, scalar)
	_, hiLo := bits.Mul64(hi, scalar)
	mid, _ := bits.Add64(loHi, hiLo, 0)
	return mid, loLo
}

// add128 adds a 64-bit scalar to the 128-bit value (hi:lo).
func add128(hi, lo, x uint64) (rhi, rlo uint64) {
	rlo, carry := bits.Add64(lo, x, 0)
	rhi, _ = bits.Add64(hi, 0, carry)
	return rhi, rlo
}

// div128 divides the 128-bit value (hi:lo) by a 64-bit divisor, rounding
// toward zero, and returns the quotient and remainder. Panics if the
// quotient would overflow 64 bits (not reachable for valid media
// timestamps) or the divisor is zero.
func div128(hi, lo, divisor uint64) (q, r uint64) {
	if divisor == 0 {
		panic("decode: div128: division by zero")
	}
	if hi == 0 {
		return lo / divisor, lo % divisor
	}
	return bits.Div64(hi, lo, divisor)
}
