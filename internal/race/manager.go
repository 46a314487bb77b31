// Package race sequences the light tree and runs races across all lanes:
// staging, the amber countdown, sensor polling, placing, timeout and the
// post-race wrap-up.
package race

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/lane"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/results"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

// ButtonEvent is a queued player-button edge for a lane (0-based index).
type ButtonEvent struct {
	Lane    int
	Release bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithRand sets the source used to draw the staging delay. n returns a
// value in [0, max).
func WithRand(n func(max int) int) Option {
	return func(m *Manager) { m.randN = n }
}

// WithOnComplete registers a callback for every completed race. It runs on
// the tick goroutine.
func WithOnComplete(f func(results.Race)) Option {
	return func(m *Manager) { m.onComplete = f }
}

// Manager owns every lane and the sequencer. It is driven by Tick and is
// not safe for concurrent use; Runner serialises access to it.
type Manager struct {
	opts  Options
	clock timeutil.Clock
	epoch time.Time
	bus   *hw.Bus
	lanes []*lane.Lane
	seq   *Sequencer

	raceStarted   bool
	treeRunning   bool
	completed     bool
	timedOut      bool
	raceStartTime timeutil.Millis
	startedAt     time.Time
	placeCounter  int

	buttonEvents  []ButtonEvent
	buttonPressed []bool

	allStaged    bool
	stagingArmed bool
	stagingStart timeutil.Millis
	stagingDelay int

	coolingDown   bool
	cooldownUntil timeutil.Millis

	randN      func(int) int
	onComplete func(results.Race)
	last       *results.Race
}

// NewManager builds a manager over lanes, in physical order.
func NewManager(clock timeutil.Clock, bus *hw.Bus, lanes []*lane.Lane, opts Options, options ...Option) *Manager {
	m := &Manager{
		opts:          opts,
		clock:         clock,
		epoch:         clock.Now(),
		bus:           bus,
		lanes:         lanes,
		seq:           NewSequencer(opts.timing()),
		placeCounter:  1,
		buttonPressed: make([]bool, len(lanes)),
		randN:         rand.IntN,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Now returns the manager's millisecond counter.
func (m *Manager) Now() timeutil.Millis {
	return timeutil.MillisSince(m.clock, m.epoch)
}

// Lanes returns the lanes in physical order.
func (m *Manager) Lanes() []*lane.Lane { return m.lanes }

// Tick runs one pass of the control loop: advance the tree, handle player
// buttons, close servos, then poll sensors and test for completion while a
// race is running. Nothing in a tick sleeps.
func (m *Manager) Tick() {
	now := m.Now()
	if m.coolingDown && now.Reached(m.cooldownUntil) {
		m.coolingDown = false
		monitoring.Logf("Ready for next race")
	}

	if m.updateTree(now) {
		// the auto-start waited out the pre-start delay
		now = m.Now()
	}
	m.checkPlayerButtons(now)
	m.updateServos(now)
	if m.raceStarted {
		m.monitorRace(now)
	}
}

// updateTree advances the sequencer, or auto-starts once the staging delay
// has run out. It reports whether it started a race, which blocks.
func (m *Manager) updateTree(now timeutil.Millis) (started bool) {
	if m.seq.Running() {
		if st, ok := m.seq.Advance(now, m.setLightAll); ok && st == StageGreenOn {
			monitoring.Logf("Green light! GO!")
			for _, l := range m.lanes {
				l.StampStart(now)
			}
		}
		return false
	}
	if !m.raceStarted && m.stagingArmed && timeutil.Diff(now, m.stagingStart) >= m.stagingDelay {
		m.stagingArmed = false
		if err := m.StartRace(); err != nil {
			monitoring.Logf("Auto-start after staging failed: %v", err)
			return false
		}
		return true
	}
	return false
}

func (m *Manager) setLightAll(light tree.Light, on bool) {
	for _, l := range m.lanes {
		l.SetLight(light, on)
	}
}

// StartRace clears the race lights, waits out the pre-start delay and
// arms amber1. The wait is the only blocking step in the manager and
// happens before anything is being timed.
func (m *Manager) StartRace() error {
	switch {
	case m.raceStarted || m.treeRunning:
		return ErrRaceInProgress
	case m.coolingDown:
		return ErrCoolingDown
	case m.completed:
		return ErrNotReset
	}

	monitoring.Logf("Starting tree sequence...")
	for _, l := range m.lanes {
		l.ClearRaceLights()
	}
	monitoring.Logf("%v delay before starting...", m.opts.PreStart)
	m.clock.Sleep(m.opts.PreStart)
	monitoring.Logf("Starting light sequence now!")

	now := m.Now()
	m.seq.Start(now)
	m.treeRunning = true
	m.raceStarted = true
	m.raceStartTime = now
	m.startedAt = m.clock.Now()
	m.stagingArmed = false
	return nil
}

// ResetRace returns every lane and the manager to their initial state. It
// is safe from any state and cancels every pending timer.
func (m *Manager) ResetRace() {
	for _, l := range m.lanes {
		l.Reset()
	}
	monitoring.Logf("Race reset.")

	m.raceStarted = false
	m.treeRunning = false
	m.completed = false
	m.timedOut = false
	m.raceStartTime = 0
	m.startedAt = time.Time{}
	m.seq.Stop()
	m.placeCounter = 1
	m.buttonEvents = nil

	m.allStaged = false
	m.stagingArmed = false
	m.stagingStart = 0
	m.stagingDelay = 0

	m.coolingDown = false
	m.cooldownUntil = 0

	m.bus.ClearDisplays()
	for _, l := range m.lanes {
		m.bus.WinnerIndicator(l.ID(), false)
		m.bus.FalseStartIndicator(l.ID(), false)
		m.bus.ShowReady(l.ID())
	}
}

// QueueButton enqueues a player-button event for lane index i. Events are
// only accepted while a race is running.
func (m *Manager) QueueButton(i int, release bool) bool {
	if !m.raceStarted || i < 0 || i >= len(m.lanes) {
		return false
	}
	m.buttonEvents = append(m.buttonEvents, ButtonEvent{Lane: i, Release: release})
	return true
}

// PendingButtons returns the number of queued button events.
func (m *Manager) PendingButtons() int { return len(m.buttonEvents) }

func (m *Manager) checkPlayerButtons(now timeutil.Millis) {
	if !m.coolingDown {
		for i, l := range m.lanes {
			b := l.Button()
			if b == nil {
				continue
			}
			pressed := b.Pressed(now)
			prev := m.buttonPressed[i]
			m.buttonPressed[i] = pressed
			switch {
			case pressed && !prev:
				m.onPress(i, now)
			case !pressed && prev:
				m.onRelease(i)
			}
		}
	}
	m.processButtonEvents(now)
}

func (m *Manager) onPress(i int, now timeutil.Millis) {
	l := m.lanes[i]
	switch {
	case !m.raceStarted && !m.completed && m.opts.StagingEnabled:
		if l.Prestage() {
			m.checkAllStaged(now)
		}
	case m.raceStarted && !m.opts.ReleaseToStart:
		m.QueueButton(i, false)
		monitoring.Logf("Lane %d: Player button press detected and queued", l.ID())
	}
}

func (m *Manager) onRelease(i int) {
	l := m.lanes[i]
	switch {
	case m.raceStarted && m.opts.ReleaseToStart:
		m.QueueButton(i, true)
		monitoring.Logf("Lane %d: Player button release detected and queued", l.ID())
	case !m.raceStarted && m.opts.ReleaseToStart && l.Staged():
		// let go of a staged lane before the tree dropped
		l.CancelStaging()
		if m.allStaged {
			m.allStaged = false
			m.stagingArmed = false
			monitoring.Logf("Staging delay cancelled")
		}
	}
}

func (m *Manager) checkAllStaged(now timeutil.Millis) {
	if m.raceStarted || !m.opts.StagingAutoSequence || m.allStaged {
		return
	}
	for _, l := range m.lanes {
		if !l.Staged() {
			return
		}
	}
	m.allStaged = true
	m.stagingArmed = true
	m.stagingStart = now
	m.stagingDelay = m.drawStagingDelay()
	monitoring.Logf("All lanes staged! Staging delay: %dms", m.stagingDelay)
}

func (m *Manager) drawStagingDelay() int {
	lo, hi := timeutil.Ms(m.opts.StagingDelayMin), timeutil.Ms(m.opts.StagingDelayMax)
	if hi <= lo {
		return lo
	}
	return lo + m.randN(hi-lo+1)
}

func (m *Manager) processButtonEvents(now timeutil.Millis) {
	n := min(m.opts.batchSize(), len(m.buttonEvents))
	batch := m.buttonEvents[:n]
	m.buttonEvents = m.buttonEvents[n:]
	for _, ev := range batch {
		l := m.lanes[ev.Lane]
		if !l.GateReleased() {
			l.FireServo(now)
		}
	}
}

func (m *Manager) updateServos(now timeutil.Millis) {
	for _, l := range m.lanes {
		l.UpdateServo(now)
	}
}

func (m *Manager) monitorRace(now timeutil.Millis) {
	for _, l := range m.lanes {
		l.CheckStartLine(now, m.treeRunning)
	}
	for _, l := range m.lanes {
		if !l.CheckFinishLine(now) || !l.AssignPlace(m.placeCounter) {
			continue
		}
		m.placeCounter++
		p, _ := l.Place()
		monitoring.Logf("Lane %d: finished %s", l.ID(), results.Ordinal(p))
		m.bus.ShowPosition(l.ID(), p)
		if ft, ok := l.FinishTime(); ok {
			m.bus.ShowTime(l.ID(), ft)
		}
	}
	if done, timedOut := m.completion(now); done {
		if timedOut {
			monitoring.Logf("Race timed out!")
		}
		m.timedOut = timedOut
		m.finishRace(now)
	}
}

// completion reports whether the race is over at now, and whether that is
// because the hard timeout passed.
func (m *Manager) completion(now timeutil.Millis) (done, timedOut bool) {
	if timeutil.Diff(now, m.raceStartTime) > timeutil.Ms(m.opts.Timeout) {
		return true, true
	}
	for _, l := range m.lanes {
		if !l.FinishLineBroken() && !l.FalseStart() {
			return false, false
		}
	}
	return true, false
}

// IsRaceComplete reports whether the current race has ended or would end
// at this instant.
func (m *Manager) IsRaceComplete() bool {
	if m.completed {
		return true
	}
	if !m.raceStarted {
		return false
	}
	done, _ := m.completion(m.Now())
	return done
}

func (m *Manager) finishRace(now timeutil.Millis) {
	monitoring.Logf("Race complete!")
	for _, l := range m.lanes {
		l.CalculateReactionTime()
		if rt, ok := l.ReactionTime(); ok {
			m.bus.ShowReactionTime(l.ID(), rt)
		}
	}

	r := results.Race{
		ID:          uuid.NewString(),
		StartedAt:   m.startedAt,
		CompletedAt: m.clock.Now(),
		TimedOut:    m.timedOut,
	}
	for _, l := range m.lanes {
		r.Lanes = append(r.Lanes, results.FromStatus(l.Status()))
	}
	for _, line := range r.Lines() {
		monitoring.Logf("%s", line)
	}

	m.treeRunning = false
	m.raceStarted = false
	m.completed = true
	m.seq.Stop()

	for _, l := range m.lanes {
		p, placed := l.Place()
		ft, finished := l.FinishTime()
		if finished && !l.FalseStart() {
			m.bus.ShowTime(l.ID(), ft)
		}
		switch {
		case placed && p == 1:
			m.bus.WinnerIndicator(l.ID(), true)
			m.bus.WinAnimation(l.ID())
		case l.FalseStart():
			m.bus.FalseStartAnimation(l.ID())
		}
	}

	// the strip occasionally drops the first clear
	m.clearAllLights()
	m.clearAllLights()

	m.coolingDown = true
	m.cooldownUntil = now.Add(timeutil.Ms(m.opts.PostRace))
	m.last = &r
	if m.onComplete != nil {
		m.onComplete(r)
	}
}

func (m *Manager) clearAllLights() {
	m.bus.ClearAllLights()
	for _, l := range m.lanes {
		l.ForgetLights()
	}
}

// Results returns the most recently completed race.
func (m *Manager) Results() (results.Race, bool) {
	if m.last == nil {
		return results.Race{}, false
	}
	return *m.last, true
}
