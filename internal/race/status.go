package race

import "github.com/banshee-data/dragtree/internal/lane"

// Phase is the top-level lifecycle state of the race.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStaging    Phase = "staging"
	PhaseSequencing Phase = "sequencing"
	PhaseRacing     Phase = "racing"
	PhaseComplete   Phase = "complete"
)

// Status is the read-only race snapshot served to the control surface.
// CurrentStage is null when the sequencer is idle or complete.
type Status struct {
	RaceStarted  bool          `json:"race_started"`
	TreeRunning  bool          `json:"tree_running"`
	CurrentStage *string       `json:"current_stage"`
	Phase        Phase         `json:"phase"`
	Lanes        []lane.Status `json:"lanes"`
}

// Phase derives the lifecycle state from the manager's flags.
func (m *Manager) Phase() Phase {
	switch {
	case m.completed:
		return PhaseComplete
	case m.raceStarted && m.seq.Running():
		return PhaseSequencing
	case m.raceStarted:
		return PhaseRacing
	}
	for _, l := range m.lanes {
		if l.Prestaged() {
			return PhaseStaging
		}
	}
	return PhaseIdle
}

// Status snapshots the manager and every lane.
func (m *Manager) Status() Status {
	s := Status{
		RaceStarted: m.raceStarted,
		TreeRunning: m.treeRunning,
		Phase:       m.Phase(),
		Lanes:       make([]lane.Status, 0, len(m.lanes)),
	}
	if m.seq.Running() {
		name := m.seq.Stage().String()
		s.CurrentStage = &name
	}
	for _, l := range m.lanes {
		s.Lanes = append(s.Lanes, l.Status())
	}
	return s
}
