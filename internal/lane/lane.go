// Package lane holds the per-lane race state: staging, start and finish
// beam handling, reaction and elapsed times, false starts and the launch
// gate.
package lane

import (
	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

// ReactionBeforeGreen is the reaction time recorded for a false start when
// the race ended before green was ever lit, so no offset can be computed.
const ReactionBeforeGreen = -1

// Options configures a Lane at construction.
type Options struct {
	Variant tree.Variant
	Start   sensor.Source
	Finish  sensor.Source
	// Button is the player's launch button; nil for lanes without one.
	Button sensor.Button
	// ServoHoldMs is how long the gate stays open after firing.
	ServoHoldMs int
}

// Lane is one physical lane. It is owned by the race manager's tick loop
// and is not safe for concurrent use; readers take a Status snapshot.
type Lane struct {
	id     int
	bus    *hw.Bus
	lights tree.State
	start  sensor.Source
	finish sensor.Source
	button sensor.Button
	holdMs int

	prestaged bool
	staged    bool

	startTime        *timeutil.Millis
	startLineBroken  bool
	startBeamTime    *timeutil.Millis
	finishLineBroken bool
	finishTime       *int
	reactionTime     *int
	falseStart       bool
	place            *int
	gateReleased     bool

	lastStartBlocked  bool
	lastFinishBlocked bool

	servoCloseAt      timeutil.Millis
	servoClosePending bool
}

// New creates lane id (1-based).
func New(id int, bus *hw.Bus, opts Options) *Lane {
	return &Lane{
		id:     id,
		bus:    bus,
		lights: tree.NewState(opts.Variant),
		start:  opts.Start,
		finish: opts.Finish,
		button: opts.Button,
		holdMs: opts.ServoHoldMs,
	}
}

// ID returns the lane's 1-based identity.
func (l *Lane) ID() int { return l.id }

// Button returns the player button, or nil.
func (l *Lane) Button() sensor.Button { return l.button }

// SetLight changes one bulb and tells the light driver. Lights missing
// from this tree's variant are ignored.
func (l *Lane) SetLight(light tree.Light, on bool) {
	if l.lights.Set(light, on) {
		l.bus.SetLight(l.id, light, on)
	}
}

// Light reports whether a bulb is lit.
func (l *Lane) Light(light tree.Light) bool { return l.lights.On(light) }

// Lights returns a copy of the tree state.
func (l *Lane) Lights() tree.State { return l.lights }

// ForgetLights clears the in-memory tree after the strip was blanked in bulk.
func (l *Lane) ForgetLights() { l.lights.Clear() }

// ClearRaceLights turns off the ambers, green and red, keeping staging bulbs.
func (l *Lane) ClearRaceLights() {
	for _, light := range tree.RaceLights {
		l.SetLight(light, false)
	}
}

// Prestage advances an unstaged lane to prestaged, or a prestaged lane to
// staged. It reports whether the lane just became staged.
func (l *Lane) Prestage() (nowStaged bool) {
	switch {
	case !l.prestaged:
		l.prestaged = true
		l.SetLight(tree.Prestage, true)
		monitoring.Logf("Lane %d: Pre-staged", l.id)
	case !l.staged:
		l.staged = true
		l.SetLight(tree.Stage, true)
		monitoring.Logf("Lane %d: Staged", l.id)
		return true
	}
	return false
}

// CancelStaging drops the lane back to unstaged.
func (l *Lane) CancelStaging() {
	if !l.prestaged && !l.staged {
		return
	}
	monitoring.Logf("Lane %d: Staging cancelled", l.id)
	l.prestaged = false
	l.staged = false
	l.SetLight(tree.Stage, false)
	l.SetLight(tree.Prestage, false)
}

// Prestaged reports the first staging step.
func (l *Lane) Prestaged() bool { return l.prestaged }

// Staged reports the second staging step.
func (l *Lane) Staged() bool { return l.staged }

// StampStart records the green-light instant unless one is already set.
func (l *Lane) StampStart(now timeutil.Millis) {
	if l.startTime == nil {
		t := now
		l.startTime = &t
	}
}

// CheckStartLine samples the start beam. On the first rising edge of the
// race it records the break time and either flags a false start (tree
// running, green not lit) or computes the reaction time against green.
func (l *Lane) CheckStartLine(now timeutil.Millis, treeRunning bool) {
	blocked := l.start.Blocked(now)
	if !l.startLineBroken && blocked && !l.lastStartBlocked {
		l.handleStartBreak(now, treeRunning)
	}
	l.lastStartBlocked = blocked
}

func (l *Lane) handleStartBreak(now timeutil.Millis, treeRunning bool) {
	l.startLineBroken = true
	t := now
	l.startBeamTime = &t

	monitoring.Logf("Lane %d: %s start beam break", l.id, l.start.Kind())
	if h, ok := l.start.(*sensor.Hybrid); ok {
		monitoring.Debugf("Lane %d: Start ADC value: %d", l.id, h.LastAnalog())
	}
	if f, ok := l.finish.(sensor.Armable); ok {
		f.Arm(now)
	}

	switch {
	case treeRunning && !l.lights.On(tree.Green):
		l.falseStart = true
		l.SetLight(tree.Red, true)
		monitoring.Logf("Lane %d: RED LIGHT! False start detected.", l.id)
		l.bus.ShowFalseStart(l.id)
		l.bus.FalseStartIndicator(l.id, true)
	case l.startTime != nil:
		rt := timeutil.Diff(now, *l.startTime)
		l.reactionTime = &rt
		monitoring.Logf("Lane %d: Reaction %d ms", l.id, rt)
		l.bus.ShowReactionTime(l.id, rt)
	}
}

// CheckFinishLine samples the finish beam until the lane has finished and
// reports whether this call saw the finish. Without a green stamp the
// crossing is noted but no time is recorded.
func (l *Lane) CheckFinishLine(now timeutil.Millis) (finished bool) {
	if l.finishLineBroken {
		return false
	}
	blocked := l.finish.Blocked(now)
	if blocked && !l.lastFinishBlocked {
		l.finishLineBroken = true
		finished = true
		monitoring.Logf("Lane %d: %s finish beam break", l.id, l.finish.Kind())
		if h, ok := l.finish.(*sensor.Hybrid); ok {
			monitoring.Debugf("Lane %d: Finish ADC value: %d", l.id, h.LastAnalog())
		}
		if l.startTime != nil {
			ft := timeutil.Diff(now, *l.startTime)
			l.finishTime = &ft
			monitoring.Logf("Lane %d: Finish %d ms", l.id, ft)
		}
	}
	l.lastFinishBlocked = blocked
	return finished
}

// AssignPlace hands the lane a finishing rank. Only a clean finisher
// without a rank accepts one; the return value says whether it did.
func (l *Lane) AssignPlace(place int) bool {
	if !l.finishLineBroken || l.falseStart || l.place != nil {
		return false
	}
	p := place
	l.place = &p
	return true
}

// FireServo opens the launch gate once per race and schedules it to close
// ServoHoldMs later. Simulated start sensors are armed at the same instant.
func (l *Lane) FireServo(now timeutil.Millis) bool {
	if l.gateReleased {
		return false
	}
	monitoring.Logf("Lane %d: Launching car", l.id)
	l.bus.ServoOpen(l.id)
	l.gateReleased = true
	l.servoCloseAt = now.Add(l.holdMs)
	l.servoClosePending = true
	if s, ok := l.start.(sensor.Armable); ok {
		s.Arm(now)
	}
	return true
}

// UpdateServo closes the gate once its hold deadline has passed.
func (l *Lane) UpdateServo(now timeutil.Millis) {
	if l.servoClosePending && now.Reached(l.servoCloseAt) {
		l.bus.ServoClose(l.id)
		l.servoClosePending = false
	}
}

// CalculateReactionTime fills in the reaction time of a false start after
// the race: negative when green was lit, ReactionBeforeGreen otherwise.
func (l *Lane) CalculateReactionTime() {
	if !l.falseStart || l.reactionTime != nil || l.startBeamTime == nil {
		return
	}
	rt := ReactionBeforeGreen
	if l.startTime != nil {
		rt = timeutil.Diff(*l.startBeamTime, *l.startTime)
		if rt >= 0 {
			// beam and green fell in the same millisecond
			rt = ReactionBeforeGreen
		}
	}
	l.reactionTime = &rt
}

// Reset returns the lane to its freshly constructed state and turns every
// bulb off. A gate still held open is closed.
func (l *Lane) Reset() {
	if l.servoClosePending {
		l.bus.ServoClose(l.id)
	}
	l.prestaged = false
	l.staged = false
	l.startTime = nil
	l.startLineBroken = false
	l.startBeamTime = nil
	l.finishLineBroken = false
	l.finishTime = nil
	l.reactionTime = nil
	l.falseStart = false
	l.place = nil
	l.gateReleased = false
	l.lastStartBlocked = false
	l.lastFinishBlocked = false
	l.servoCloseAt = 0
	l.servoClosePending = false

	for _, s := range []sensor.Source{l.start, l.finish} {
		if a, ok := s.(sensor.Armable); ok {
			a.Disarm()
		}
		if r, ok := s.(sensor.Resettable); ok {
			r.Reset()
		}
	}
	if r, ok := l.button.(sensor.Resettable); ok {
		r.Reset()
	}
	for _, light := range tree.All {
		l.SetLight(light, false)
	}
}

// FalseStart reports a start beam broken before green.
func (l *Lane) FalseStart() bool { return l.falseStart }

// FinishLineBroken reports that the finish beam has been crossed.
func (l *Lane) FinishLineBroken() bool { return l.finishLineBroken }

// StartLineBroken reports that the start beam has been crossed.
func (l *Lane) StartLineBroken() bool { return l.startLineBroken }

// GateReleased reports that the launch gate fired this race.
func (l *Lane) GateReleased() bool { return l.gateReleased }

// ServoPending reports a gate held open and waiting to close.
func (l *Lane) ServoPending() bool { return l.servoClosePending }

// Place returns the finishing rank, if assigned.
func (l *Lane) Place() (int, bool) { return deref(l.place) }

// ReactionTime returns the signed reaction time in ms, if known.
func (l *Lane) ReactionTime() (int, bool) { return deref(l.reactionTime) }

// FinishTime returns the elapsed time from green to the finish beam.
func (l *Lane) FinishTime() (int, bool) { return deref(l.finishTime) }

// StartTime returns the green-light stamp.
func (l *Lane) StartTime() (timeutil.Millis, bool) {
	if l.startTime == nil {
		return 0, false
	}
	return *l.startTime, true
}

// StartBeamTime returns when the start beam broke.
func (l *Lane) StartBeamTime() (timeutil.Millis, bool) {
	if l.startBeamTime == nil {
		return 0, false
	}
	return *l.startBeamTime, true
}

func deref(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
