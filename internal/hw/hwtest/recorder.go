// Package hwtest provides a recording driver for race tests.
package hwtest

import (
	"fmt"
	"sync"

	"github.com/banshee-data/dragtree/internal/tree"
)

// Recorder implements every hw driver interface and records each call as a
// short string such as "light 1 green on" or "servo 2 open".
type Recorder struct {
	mu    sync.Mutex
	calls []string
	// Fail makes every call return this error after recording it.
	Fail error
}

func (r *Recorder) record(format string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return r.Fail
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many times call was recorded.
func (r *Recorder) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (r *Recorder) SetLight(laneID int, l tree.Light, on bool) error {
	return r.record("light %d %s %s", laneID, l, onOff(on))
}
func (r *Recorder) ClearAll() error                  { return r.record("clear") }
func (r *Recorder) ServoOpen(laneID int) error       { return r.record("servo %d open", laneID) }
func (r *Recorder) ServoClose(laneID int) error      { return r.record("servo %d close", laneID) }
func (r *Recorder) ShowReady(i int) error            { return r.record("display %d ready", i) }
func (r *Recorder) ShowReactionTime(i, ms int) error { return r.record("display %d reaction %d", i, ms) }
func (r *Recorder) ShowFalseStart(i int) error       { return r.record("display %d foul", i) }
func (r *Recorder) ShowPosition(i, rank int) error   { return r.record("display %d position %d", i, rank) }
func (r *Recorder) ShowTime(i, ms int) error         { return r.record("display %d time %d", i, ms) }
func (r *Recorder) WinAnimation(laneID int) error    { return r.record("win %d", laneID) }
func (r *Recorder) FalseStartAnimation(laneID int) error {
	return r.record("false start %d", laneID)
}
func (r *Recorder) FalseStartIndicator(laneID int, on bool) error {
	return r.record("foul indicator %d %s", laneID, onOff(on))
}
func (r *Recorder) WinnerIndicator(laneID int, on bool) error {
	return r.record("winner indicator %d %s", laneID, onOff(on))
}
