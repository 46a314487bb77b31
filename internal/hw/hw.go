// Package hw defines the driver interfaces the race core calls into and the
// Bus that shields the core from driver faults.
//
// Lights, actuators and indicators are addressed by 1-based lane ID. Display
// drivers are addressed by 0-based lane index; Bus performs the translation.
package hw

import "github.com/banshee-data/dragtree/internal/tree"

// Lights drives the tree bulbs.
type Lights interface {
	SetLight(laneID int, light tree.Light, on bool) error
	ClearAll() error
}

// Actuator drives the launch gates. Calibration is the driver's business.
type Actuator interface {
	ServoOpen(laneID int) error
	ServoClose(laneID int) error
}

// Display renders per-lane text and numbers.
type Display interface {
	ShowReady(index int) error
	ShowReactionTime(index int, ms int) error
	ShowFalseStart(index int) error
	ShowPosition(index int, rank int) error
	ShowTime(index int, ms int) error
	ClearAll() error
}

// Indicator drives auxiliary lighting and end-of-race animations.
type Indicator interface {
	WinAnimation(laneID int) error
	FalseStartAnimation(laneID int) error
	FalseStartIndicator(laneID int, on bool) error
	WinnerIndicator(laneID int, on bool) error
}

// Nop is a driver for absent hardware.
type Nop struct{}

func (Nop) SetLight(int, tree.Light, bool) error    { return nil }
func (Nop) ServoOpen(int) error                     { return nil }
func (Nop) ServoClose(int) error                    { return nil }
func (Nop) ShowReady(int) error                     { return nil }
func (Nop) ShowReactionTime(int, int) error         { return nil }
func (Nop) ShowFalseStart(int) error                { return nil }
func (Nop) ShowPosition(int, int) error             { return nil }
func (Nop) ShowTime(int, int) error                 { return nil }
func (Nop) ClearAll() error                         { return nil }
func (Nop) WinAnimation(int) error                  { return nil }
func (Nop) FalseStartAnimation(int) error           { return nil }
func (Nop) FalseStartIndicator(int, bool) error     { return nil }
func (Nop) WinnerIndicator(int, bool) error         { return nil }

// ActuatorRouter sends each lane to its own actuator, so lanes with real
// servos and lanes with simulated gates can race together.
type ActuatorRouter struct {
	Lanes   map[int]Actuator
	Default Actuator
}

func (r ActuatorRouter) pick(laneID int) Actuator {
	if a, ok := r.Lanes[laneID]; ok && a != nil {
		return a
	}
	if r.Default != nil {
		return r.Default
	}
	return Nop{}
}

func (r ActuatorRouter) ServoOpen(laneID int) error  { return r.pick(laneID).ServoOpen(laneID) }
func (r ActuatorRouter) ServoClose(laneID int) error { return r.pick(laneID).ServoClose(laneID) }
