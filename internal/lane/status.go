package lane

// Status is the per-lane part of the status wire contract. Absent values
// encode as JSON null.
type Status struct {
	LaneID       int  `json:"lane_id"`
	FinishTime   *int `json:"finish_time"`
	ReactionTime *int `json:"reaction_time"`
	FalseStart   bool `json:"false_start"`
	Place        *int `json:"place"`
	Staged       bool `json:"staged"`
	Prestaged    bool `json:"prestaged"`
}

// Status snapshots the lane. The returned value shares nothing with the lane.
func (l *Lane) Status() Status {
	return Status{
		LaneID:       l.id,
		FinishTime:   clone(l.finishTime),
		ReactionTime: clone(l.reactionTime),
		FalseStart:   l.falseStart,
		Place:        clone(l.place),
		Staged:       l.staged,
		Prestaged:    l.prestaged,
	}
}

func clone(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
