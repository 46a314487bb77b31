package race

import (
	"fmt"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

// Stage is a step of the light tree sequence.
type Stage int

const (
	StageIdle Stage = iota
	StageAmber1On
	StageAmber1Off
	StageAmber2On
	StageAmber2Off
	StageAmber3On
	StageAmber3Off
	StageGreenOn
	StageComplete

	numStages
)

var stageNames = [numStages]string{
	StageIdle:      "idle",
	StageAmber1On:  "amber1_on",
	StageAmber1Off: "amber1_off",
	StageAmber2On:  "amber2_on",
	StageAmber2Off: "amber2_off",
	StageAmber3On:  "amber3_on",
	StageAmber3Off: "amber3_off",
	StageGreenOn:   "green_on",
	StageComplete:  "complete",
}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

type wait int

const (
	waitNone wait = iota
	waitLightOn
	waitTransition
)

// step is what a stage does when its deadline arrives.
type step struct {
	light tree.Light
	on    bool
	next  Stage
	wait  wait
}

// steps is indexed by Stage. Idle and Complete have no action.
var steps = [numStages]step{
	StageAmber1On:  {tree.Amber1, true, StageAmber1Off, waitLightOn},
	StageAmber1Off: {tree.Amber1, false, StageAmber2On, waitTransition},
	StageAmber2On:  {tree.Amber2, true, StageAmber2Off, waitLightOn},
	StageAmber2Off: {tree.Amber2, false, StageAmber3On, waitTransition},
	StageAmber3On:  {tree.Amber3, true, StageAmber3Off, waitLightOn},
	StageAmber3Off: {tree.Amber3, false, StageGreenOn, waitTransition},
	StageGreenOn:   {tree.Green, true, StageComplete, waitNone},
}

// Timing holds the sequencer intervals in milliseconds.
type Timing struct {
	LightOnMs    int
	TransitionMs int
}

// Sequencer drives the amber countdown and green light. It performs at
// most one stage per Advance, so a slow tick rate delays the tree but can
// never skip or repeat a stage.
type Sequencer struct {
	timing Timing
	stage  Stage
	next   timeutil.Millis
}

// NewSequencer returns an idle sequencer.
func NewSequencer(t Timing) *Sequencer {
	return &Sequencer{timing: t}
}

// Start schedules amber1_on for now.
func (s *Sequencer) Start(now timeutil.Millis) {
	s.stage = StageAmber1On
	s.next = now
}

// Stop returns the sequencer to idle, dropping any pending deadline.
func (s *Sequencer) Stop() {
	s.stage = StageIdle
	s.next = 0
}

// Stage returns the stage that will run at the next deadline, or Idle or
// Complete when nothing is pending.
func (s *Sequencer) Stage() Stage { return s.stage }

// Running reports whether a stage is pending.
func (s *Sequencer) Running() bool {
	return s.stage > StageIdle && s.stage < StageComplete
}

// Advance runs the pending stage if its deadline has been reached, calling
// set for the light change. It returns the stage it ran.
func (s *Sequencer) Advance(now timeutil.Millis, set func(tree.Light, bool)) (Stage, bool) {
	if !s.Running() || !now.Reached(s.next) {
		return StageIdle, false
	}
	ran := s.stage
	st := steps[ran]
	monitoring.Debugf("Processing stage: %s", ran)
	set(st.light, st.on)

	s.stage = st.next
	switch st.wait {
	case waitLightOn:
		s.next = now.Add(s.timing.LightOnMs)
	case waitTransition:
		s.next = now.Add(s.timing.TransitionMs)
	}
	return ran, true
}
