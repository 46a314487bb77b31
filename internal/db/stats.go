package db

import (
	"database/sql"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LaneStat summarises every stored race for one lane. Reaction statistics
// cover legitimate starts only; finish statistics cover placed finishes.
type LaneStat struct {
	LaneID      int `json:"lane_id"`
	Races       int `json:"races"`
	Wins        int `json:"wins"`
	FalseStarts int `json:"false_starts"`
	DNFs        int `json:"dnfs"`

	ReactionMeanMs   float64 `json:"reaction_mean_ms"`
	ReactionStdDevMs float64 `json:"reaction_stddev_ms"`
	BestReactionMs   *int    `json:"best_reaction_ms"`

	FinishMeanMs   float64 `json:"finish_mean_ms"`
	FinishMedianMs float64 `json:"finish_median_ms"`
	FinishStdDevMs float64 `json:"finish_stddev_ms"`
	BestFinishMs   *int    `json:"best_finish_ms"`
}

// LaneStats computes per-lane statistics over the whole race history,
// ordered by lane.
func (db *DB) LaneStats() ([]LaneStat, error) {
	rows, err := db.Query(`SELECT lane_id, place, finish_time_ms, reaction_time_ms, false_start
		FROM race_lanes ORDER BY lane_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type samples struct {
		stat      LaneStat
		reactions []float64
		finishes  []float64
	}
	byLane := map[int]*samples{}
	var order []int

	for rows.Next() {
		var (
			laneID                  int
			place, finish, reaction sql.NullInt64
			falseStart              bool
		)
		if err := rows.Scan(&laneID, &place, &finish, &reaction, &falseStart); err != nil {
			return nil, err
		}
		s, ok := byLane[laneID]
		if !ok {
			s = &samples{stat: LaneStat{LaneID: laneID}}
			byLane[laneID] = s
			order = append(order, laneID)
		}
		s.stat.Races++
		switch {
		case falseStart:
			s.stat.FalseStarts++
		case place.Valid:
			if place.Int64 == 1 {
				s.stat.Wins++
			}
			if finish.Valid {
				s.finishes = append(s.finishes, float64(finish.Int64))
			}
		default:
			s.stat.DNFs++
		}
		if !falseStart && reaction.Valid && reaction.Int64 >= 0 {
			s.reactions = append(s.reactions, float64(reaction.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]LaneStat, 0, len(order))
	for _, id := range order {
		s := byLane[id]
		s.stat.ReactionMeanMs, s.stat.ReactionStdDevMs, s.stat.BestReactionMs = summarise(s.reactions)
		s.stat.FinishMeanMs, s.stat.FinishStdDevMs, s.stat.BestFinishMs = summarise(s.finishes)
		if len(s.finishes) > 0 {
			sort.Float64s(s.finishes)
			s.stat.FinishMedianMs = stat.Quantile(0.5, stat.Empirical, s.finishes, nil)
		}
		out = append(out, s.stat)
	}
	return out, nil
}

// summarise returns mean, sample standard deviation and minimum. The
// deviation is zero below two samples.
func summarise(xs []float64) (mean, stddev float64, best *int) {
	switch len(xs) {
	case 0:
		return 0, 0, nil
	case 1:
		mean = xs[0]
	default:
		mean, stddev = stat.MeanStdDev(xs, nil)
	}
	minimum := xs[0]
	for _, x := range xs[1:] {
		if x < minimum {
			minimum = x
		}
	}
	b := int(minimum)
	return mean, stddev, &b
}
