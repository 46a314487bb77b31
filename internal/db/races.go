package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/dragtree/internal/results"
)

// ErrRaceNotFound is returned by Race for an unknown ID.
var ErrRaceNotFound = errors.New("race not found")

// RecordRace stores a completed race and its lane results in one transaction.
func (db *DB) RecordRace(r results.Race) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var winner sql.NullInt64
	if lane, ok := r.Winner(); ok {
		winner = sql.NullInt64{Int64: int64(lane), Valid: true}
	}
	if _, err := tx.Exec(
		`INSERT INTO races (race_id, started_at_ms, completed_at_ms, timed_out, winner_lane) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.CompletedAt.UnixMilli(), r.TimedOut, winner,
	); err != nil {
		return fmt.Errorf("failed to insert race %s: %w", r.ID, err)
	}

	for _, l := range r.Lanes {
		if _, err := tx.Exec(
			`INSERT INTO race_lanes (
				race_id, lane_id, outcome, place, finish_time_ms, reaction_time_ms, false_start
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, l.LaneID, string(l.Outcome), nullInt(l.Place), nullInt(l.FinishTime), nullInt(l.ReactionTime), l.FalseStart,
		); err != nil {
			return fmt.Errorf("failed to insert lane %d of race %s: %w", l.LaneID, r.ID, err)
		}
	}
	return tx.Commit()
}

// Races returns up to limit races, most recent first.
func (db *DB) Races(limit int) ([]results.Race, error) {
	rows, err := db.Query(`SELECT race_id, started_at_ms, completed_at_ms, timed_out
		FROM races ORDER BY completed_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var races []results.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		races = append(races, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range races {
		if races[i].Lanes, err = db.raceLanes(races[i].ID); err != nil {
			return nil, err
		}
	}
	return races, nil
}

// Race returns a single race by ID.
func (db *DB) Race(id string) (results.Race, error) {
	row := db.QueryRow(`SELECT race_id, started_at_ms, completed_at_ms, timed_out
		FROM races WHERE race_id = ?`, id)
	r, err := scanRace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return results.Race{}, fmt.Errorf("%s: %w", id, ErrRaceNotFound)
	}
	if err != nil {
		return results.Race{}, err
	}
	if r.Lanes, err = db.raceLanes(id); err != nil {
		return results.Race{}, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRace(s scanner) (results.Race, error) {
	var (
		r                      results.Race
		startedMs, completedMs int64
	)
	if err := s.Scan(&r.ID, &startedMs, &completedMs, &r.TimedOut); err != nil {
		return r, err
	}
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	r.CompletedAt = time.UnixMilli(completedMs).UTC()
	return r, nil
}

func (db *DB) raceLanes(id string) ([]results.LaneResult, error) {
	rows, err := db.Query(`SELECT lane_id, outcome, place, finish_time_ms, reaction_time_ms, false_start
		FROM race_lanes WHERE race_id = ? ORDER BY lane_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lanes []results.LaneResult
	for rows.Next() {
		var (
			l                       results.LaneResult
			outcome                 string
			place, finish, reaction sql.NullInt64
		)
		if err := rows.Scan(&l.LaneID, &outcome, &place, &finish, &reaction, &l.FalseStart); err != nil {
			return nil, err
		}
		l.Outcome = results.Outcome(outcome)
		l.Place, l.FinishTime, l.ReactionTime = intPtr(place), intPtr(finish), intPtr(reaction)
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
