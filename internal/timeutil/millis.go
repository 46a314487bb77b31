package timeutil

import "time"

// Millis is a free-running millisecond counter of bounded width. It wraps
// around at 2^32 ms (about 49.7 days), so timestamps must only be compared
// through Diff, never with < or >.
type Millis uint32

// Diff returns a-b as a signed duration in milliseconds. The result is
// correct across a wraparound as long as the real distance between the two
// instants is below 2^31 ms.
func Diff(a, b Millis) int {
	return int(int32(uint32(a) - uint32(b)))
}

// Add returns m shifted by ms milliseconds, wrapping as the counter does.
func (m Millis) Add(ms int) Millis {
	return Millis(uint32(m) + uint32(int32(ms)))
}

// Reached reports whether now is at or past deadline.
func (m Millis) Reached(deadline Millis) bool {
	return Diff(m, deadline) >= 0
}

// MillisSince converts the elapsed time on clock since epoch into the
// wrapping counter.
func MillisSince(c Clock, epoch time.Time) Millis {
	return Millis(uint32(c.Since(epoch) / time.Millisecond))
}

// Ms converts a duration to whole milliseconds.
func Ms(d time.Duration) int {
	return int(d / time.Millisecond)
}
