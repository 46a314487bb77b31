package board

import (
	"errors"
	"fmt"

	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/results"
	"github.com/banshee-data/dragtree/internal/tree"
)

// Display positions on a lane: times and labels go on the primary, reaction
// times and secondary labels on the second one.
const (
	primaryDisplay   = 0
	secondaryDisplay = 1
)

// Lights drives tree bulbs with `L` commands.
type Lights struct{ *Board }

func (l Lights) SetLight(laneID int, light tree.Light, on bool) error {
	return l.send("L %d %s %d", laneID, light, onOff(on))
}

func (l Lights) ClearAll() error { return l.send("LC") }

// Calibration is the servo duty for each gate position.
type Calibration struct {
	Open   int
	Closed int
}

// Servos drives launch gates with `S` commands.
type Servos struct {
	*Board
	Lanes map[int]Calibration
}

func (s Servos) ServoOpen(laneID int) error {
	c, err := s.calibration(laneID)
	if err != nil {
		return err
	}
	return s.send("S %d %d", laneID, c.Open)
}

func (s Servos) ServoClose(laneID int) error {
	c, err := s.calibration(laneID)
	if err != nil {
		return err
	}
	return s.send("S %d %d", laneID, c.Closed)
}

func (s Servos) calibration(laneID int) (Calibration, error) {
	c, ok := s.Lanes[laneID]
	if !ok {
		return Calibration{}, fmt.Errorf("no servo calibration for lane %d", laneID)
	}
	return c, nil
}

// Displays drives the two 4-digit displays of each lane with `T`, `N` and
// `DC` commands. Display lanes are 0-based indexes.
type Displays struct{ *Board }

func (d Displays) text(index, display int, text string) error {
	return d.send("T %d %d %s", index+1, display, text)
}

func (d Displays) number(index, display, ms, decimals int) error {
	return d.send("N %d %d %s %d", index+1, display, results.FormatSeconds(ms, decimals), decimals)
}

func (d Displays) ShowReady(index int) error {
	return errors.Join(
		d.text(index, primaryDisplay, results.TextReady),
		d.text(index, secondaryDisplay, results.TextStandby),
	)
}

func (d Displays) ShowReactionTime(index int, ms int) error {
	var early error
	if ms < 0 {
		early = d.text(index, primaryDisplay, results.TextEarly)
		ms = -ms
	}
	return errors.Join(early, d.number(index, secondaryDisplay, ms, 3))
}

func (d Displays) ShowFalseStart(index int) error {
	return errors.Join(
		d.text(index, primaryDisplay, results.TextFoul),
		d.text(index, secondaryDisplay, results.TextRed),
	)
}

func (d Displays) ShowPosition(index int, rank int) error {
	return errors.Join(
		d.text(index, primaryDisplay, results.CenteredPosition(rank)),
		d.text(index, secondaryDisplay, results.TextPosition),
	)
}

func (d Displays) ShowTime(index int, ms int) error {
	return errors.Join(
		d.number(index, primaryDisplay, ms, results.TimeDecimals(ms)),
		d.text(index, secondaryDisplay, results.TextRace),
	)
}

func (d Displays) ClearAll() error { return d.send("DC") }

// Indicators drives the aux strip: `W`/`F` play animations, `I` sets the
// per-lane winner or foul lamp.
type Indicators struct{ *Board }

func (i Indicators) WinAnimation(laneID int) error { return i.send("W %d", laneID) }

func (i Indicators) FalseStartAnimation(laneID int) error { return i.send("F %d", laneID) }

func (i Indicators) FalseStartIndicator(laneID int, on bool) error {
	return i.send("I %d F %d", laneID, onOff(on))
}

func (i Indicators) WinnerIndicator(laneID int, on bool) error {
	return i.send("I %d W %d", laneID, onOff(on))
}

func onOff(on bool) int {
	if on {
		return 1
	}
	return 0
}

var (
	_ hw.Lights    = Lights{}
	_ hw.Actuator  = Servos{}
	_ hw.Display   = Displays{}
	_ hw.Indicator = Indicators{}
)
