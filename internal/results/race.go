package results

import (
	"fmt"
	"time"

	"github.com/banshee-data/dragtree/internal/lane"
)

// Outcome classifies how a lane's race ended.
type Outcome string

const (
	OutcomePlaced Outcome = "placed"
	OutcomeDNF    Outcome = "dnf"
	// OutcomeDQ is a false start, with or without a finish.
	OutcomeDQ Outcome = "dq"
)

// LaneResult is one lane's final record.
type LaneResult struct {
	LaneID       int     `json:"lane_id"`
	Outcome      Outcome `json:"outcome"`
	Place        *int    `json:"place"`
	FinishTime   *int    `json:"finish_time"`
	ReactionTime *int    `json:"reaction_time"`
	FalseStart   bool    `json:"false_start"`
}

// Race is a completed race as stored and served.
type Race struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	TimedOut    bool         `json:"timed_out"`
	Lanes       []LaneResult `json:"lanes"`
}

// FromStatus derives a lane's final record from its status snapshot.
func FromStatus(s lane.Status) LaneResult {
	r := LaneResult{
		LaneID:       s.LaneID,
		Place:        s.Place,
		FinishTime:   s.FinishTime,
		ReactionTime: s.ReactionTime,
		FalseStart:   s.FalseStart,
	}
	switch {
	case s.FalseStart:
		r.Outcome = OutcomeDQ
	case s.Place != nil:
		r.Outcome = OutcomePlaced
	default:
		r.Outcome = OutcomeDNF
	}
	return r
}

// Winner returns the lane placed first, if any.
func (r Race) Winner() (int, bool) {
	for _, l := range r.Lanes {
		if l.Place != nil && *l.Place == 1 {
			return l.LaneID, true
		}
	}
	return 0, false
}

// Lines renders the end-of-race printout.
func (r Race) Lines() []string {
	lines := []string{"Results:"}
	for _, l := range r.Lanes {
		place, placed := 0, l.Place != nil
		if placed {
			place = *l.Place
		}
		lines = append(lines, fmt.Sprintf("Lane %d: %s", l.LaneID, PositionText(place, placed, l.FalseStart)))

		switch {
		case l.FinishTime != nil && l.FalseStart:
			lines = append(lines, fmt.Sprintf("  Race time: %d ms (DQ)", *l.FinishTime))
		case l.FinishTime != nil:
			lines = append(lines, fmt.Sprintf("  Race time: %d ms", *l.FinishTime))
		default:
			lines = append(lines, "  Race time: Did not finish")
		}
		if l.ReactionTime != nil {
			lines = append(lines, "  Reaction time: "+FormatReaction(*l.ReactionTime, l.FalseStart))
		}
	}
	return lines
}
