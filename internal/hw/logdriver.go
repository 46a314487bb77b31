package hw

import (
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/tree"
)

// LogDriver prints what real hardware would have been told. It backs
// simulated servos and the --dev run mode.
type LogDriver struct {
	// Verbose also logs light changes, which happen several times a second.
	Verbose bool
}

func (d LogDriver) SetLight(laneID int, l tree.Light, on bool) error {
	if d.Verbose {
		monitoring.Logf("lane %d: light %s -> %t", laneID, l, on)
	}
	return nil
}

func (d LogDriver) ClearAll() error {
	if d.Verbose {
		monitoring.Logf("all lights off")
	}
	return nil
}

func (LogDriver) ServoOpen(laneID int) error {
	monitoring.Logf("lane %d: gate open", laneID)
	return nil
}

func (LogDriver) ServoClose(laneID int) error {
	monitoring.Logf("lane %d: gate closed", laneID)
	return nil
}

func (LogDriver) WinAnimation(laneID int) error {
	monitoring.Logf("lane %d: win animation", laneID)
	return nil
}

func (LogDriver) FalseStartAnimation(laneID int) error {
	monitoring.Logf("lane %d: false start animation", laneID)
	return nil
}

func (LogDriver) FalseStartIndicator(int, bool) error { return nil }
func (LogDriver) WinnerIndicator(int, bool) error     { return nil }
