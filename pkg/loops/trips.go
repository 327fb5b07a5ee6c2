package loops

import "math"

// Width is the integer type of a loop counter. Bits outside 1..64 mean 64.
type Width struct {
	Bits     int
	Unsigned bool
}

// Int64 is a signed 64-bit counter.
var Int64 = Width{Bits: 64}

// limits returns the representable range of w. Unsigned 64-bit counters
// are capped at math.MaxInt64.
func (w Width) limits() (lo, hi int64) {
	bits := w.Bits
	if bits <= 0 || bits > 64 {
		bits = 64
	}
	switch {
	case w.Unsigned && bits == 64:
		return 0, math.MaxInt64
	case w.Unsigned:
		return 0, int64(1)<<bits - 1
	case bits == 64:
		return math.MinInt64, math.MaxInt64
	}
	return -(int64(1) << (bits - 1)), int64(1)<<(bits-1) - 1
}

// TripCount counts the iterations of a counted loop that starts its counter
// at start, adds step after every iteration and runs while `counter op bound`
// holds. It fails when the loop would not terminate, when the counter would
// leave the range of w before the loop exits, or when op is unsupported.
func TripCount(start, bound, step int64, op string, w Width) (int64, bool) {
	lo, hi := w.limits()
	if step == 0 || start < lo || start > hi || bound < lo || bound > hi {
		return 0, false
	}

	trips, ok := count(start, bound, step, op)
	if !ok {
		return 0, false
	}
	moved, ok := mul(trips, step)
	if !ok {
		return 0, false
	}
	last, ok := add(start, moved)
	if !ok || last < lo || last > hi {
		return 0, false
	}
	return trips, true
}

func count(start, bound, step int64, op string) (int64, bool) {
	switch op {
	case "<=":
		if bound == math.MaxInt64 {
			return 0, false
		}
		return count(start, bound+1, step, "<")
	case ">=":
		if bound == math.MinInt64 {
			return 0, false
		}
		return count(start, bound-1, step, ">")
	case "<":
		if start >= bound {
			return 0, true
		}
		if step < 0 {
			return 0, false
		}
		d, ok := sub(bound, start)
		if !ok {
			return 0, false
		}
		return ceilDiv(d, step), true
	case ">":
		if start <= bound {
			return 0, true
		}
		if step > 0 || step == math.MinInt64 {
			return 0, false
		}
		d, ok := sub(start, bound)
		if !ok {
			return 0, false
		}
		return ceilDiv(d, -step), true
	case "!=":
		d, ok := sub(bound, start)
		if !ok || d%step != 0 || (d == math.MinInt64 && step == -1) || d/step < 0 {
			return 0, false
		}
		return d / step, true
	}
	return 0, false
}

// ceilDiv divides positive a by positive b, rounding up.
func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

func add(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func sub(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

// Certified reports whether a loop running trips times may be treated as
// bounded. Loops of fewer than two trips, or fewer than min, never are.
func Certified(trips int64, min int) bool {
	if min < 2 {
		min = 2
	}
	return trips >= int64(min)
}
