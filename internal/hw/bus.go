package hw

import (
	"fmt"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/tree"
)

// Bus is the collaborator boundary. Every driver call goes through call,
// which logs returned errors and recovered panics; nothing propagates back
// into race state.
type Bus struct {
	lights    Lights
	actuator  Actuator
	display   Display
	indicator Indicator
}

// NewBus assembles a Bus. Nil drivers are replaced with Nop.
func NewBus(l Lights, a Actuator, d Display, i Indicator) *Bus {
	b := &Bus{lights: l, actuator: a, display: d, indicator: i}
	if b.lights == nil {
		b.lights = Nop{}
	}
	if b.actuator == nil {
		b.actuator = Nop{}
	}
	if b.display == nil {
		b.display = Nop{}
	}
	if b.indicator == nil {
		b.indicator = Nop{}
	}
	return b
}

func (b *Bus) call(op string, laneID int, f func() error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("lane %d: %s panicked: %v", laneID, op, r)
		}
	}()
	if err := f(); err != nil {
		monitoring.Logf("lane %d: %s failed: %v", laneID, op, err)
	}
}

func (b *Bus) SetLight(laneID int, l tree.Light, on bool) {
	b.call(fmt.Sprintf("set_light %s=%t", l, on), laneID, func() error {
		return b.lights.SetLight(laneID, l, on)
	})
}

func (b *Bus) ClearAllLights() {
	b.call("clear_all_lights", 0, b.lights.ClearAll)
}

func (b *Bus) ServoOpen(laneID int) {
	b.call("servo_open", laneID, func() error { return b.actuator.ServoOpen(laneID) })
}

func (b *Bus) ServoClose(laneID int) {
	b.call("servo_close", laneID, func() error { return b.actuator.ServoClose(laneID) })
}

func (b *Bus) ShowReady(laneID int) {
	b.call("show_ready", laneID, func() error { return b.display.ShowReady(laneID - 1) })
}

func (b *Bus) ShowReactionTime(laneID, ms int) {
	b.call("show_reaction_time", laneID, func() error { return b.display.ShowReactionTime(laneID-1, ms) })
}

func (b *Bus) ShowFalseStart(laneID int) {
	b.call("show_false_start", laneID, func() error { return b.display.ShowFalseStart(laneID - 1) })
}

func (b *Bus) ShowPosition(laneID, rank int) {
	b.call("show_position", laneID, func() error { return b.display.ShowPosition(laneID-1, rank) })
}

func (b *Bus) ShowTime(laneID, ms int) {
	b.call("show_time", laneID, func() error { return b.display.ShowTime(laneID-1, ms) })
}

func (b *Bus) ClearDisplays() {
	b.call("clear_displays", 0, b.display.ClearAll)
}

func (b *Bus) WinAnimation(laneID int) {
	b.call("win_animation", laneID, func() error { return b.indicator.WinAnimation(laneID) })
}

func (b *Bus) FalseStartAnimation(laneID int) {
	b.call("false_start_animation", laneID, func() error { return b.indicator.FalseStartAnimation(laneID) })
}

func (b *Bus) FalseStartIndicator(laneID int, on bool) {
	b.call("false_start_indicator", laneID, func() error { return b.indicator.FalseStartIndicator(laneID, on) })
}

func (b *Bus) WinnerIndicator(laneID int, on bool) {
	b.call("winner_indicator", laneID, func() error { return b.indicator.WinnerIndicator(laneID, on) })
}
