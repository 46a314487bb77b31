package sensor

import "github.com/banshee-data/dragtree/internal/timeutil"

// Debouncer applies leading-edge debounce: a change is accepted at once and
// further changes are ignored for Interval ms. Accepting the first edge
// immediately keeps beam timestamps exact.
type Debouncer struct {
	Interval  int
	state     bool
	changedAt timeutil.Millis
	primed    bool
}

// Update feeds a raw sample and returns the debounced state.
func (d *Debouncer) Update(now timeutil.Millis, raw bool) bool {
	if raw == d.state {
		return d.state
	}
	if d.primed && timeutil.Diff(now, d.changedAt) < d.Interval {
		return d.state
	}
	d.state = raw
	d.changedAt = now
	d.primed = true
	return d.state
}

// State returns the current debounced state.
func (d *Debouncer) State() bool { return d.state }

// Reset forgets history.
func (d *Debouncer) Reset() {
	d.state = false
	d.primed = false
}
