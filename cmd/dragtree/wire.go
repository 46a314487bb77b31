package main

import (
	"fmt"

	"github.com/banshee-data/dragtree/internal/board"
	"github.com/banshee-data/dragtree/internal/config"
	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/lane"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
)

// rig is the assembled hardware: drivers behind one bus, lanes with their
// sensors, and the start and reset buttons.
type rig struct {
	bus      *hw.Bus
	lanes    []*lane.Lane
	startBtn sensor.Button
	resetBtn sensor.Button
}

// buildRig wires settings to the IO board. A nil board means no hardware:
// every sensor is simulated, drivers only log, and the buttons are left to
// the HTTP API.
func buildRig(s config.Settings, brd *board.Board, verbose bool) rig {
	var r rig
	if brd == nil {
		log := hw.LogDriver{Verbose: verbose}
		r.bus = hw.NewBus(log, log, nil, log)
	} else {
		servos := board.Servos{Board: brd, Lanes: map[int]board.Calibration{}}
		router := hw.ActuatorRouter{Lanes: map[int]hw.Actuator{}, Default: hw.LogDriver{}}
		for _, ls := range s.Lanes {
			if !ls.ServoSimulated {
				servos.Lanes[ls.ID] = board.Calibration{Open: ls.ServoOpen, Closed: ls.ServoClosed}
				router.Lanes[ls.ID] = servos
			}
		}
		r.bus = hw.NewBus(board.Lights{Board: brd}, router, board.Displays{Board: brd}, board.Indicators{Board: brd})
		r.startBtn = pinButton(brd, "start button", s.StartButtonPin, s.ButtonDebounceMs)
		r.resetBtn = pinButton(brd, "reset button", s.ResetButtonPin, s.ButtonDebounceMs)
	}

	for _, ls := range s.Lanes {
		name := fmt.Sprintf("lane %d", ls.ID)
		opts := lane.Options{
			Variant:     s.Variant,
			Start:       source(s, brd, name+" start", ls.StartSensor, ls.StartPin, ls.StartADCPin, ls.SimReactionMs),
			Finish:      source(s, brd, name+" finish", ls.FinishSensor, ls.FinishPin, ls.FinishADCPin, ls.SimRaceMs),
			ServoHoldMs: s.ServoHoldMs,
		}
		if btn := pinButton(brd, name+" button", ls.ButtonPin, s.ButtonDebounceMs); btn != nil {
			opts.Button = btn
		}
		monitoring.Logf("%s: start=%s finish=%s servo simulated=%t", name, opts.Start.Kind(), opts.Finish.Kind(), ls.ServoSimulated)
		r.lanes = append(r.lanes, lane.New(ls.ID, r.bus, opts))
	}
	return r
}

func source(s config.Settings, brd *board.Board, name string, k sensor.Kind, pin, adcPin, simMs int) sensor.Source {
	if brd == nil || k == sensor.KindSimulated || pin == config.NoPin {
		return sensor.NewSimulated(name, simMs)
	}
	digital := sensor.NewHardware(name, brd.Digital(pin), s.SensorBlockedLevel, s.SensorDebounceMs)
	if k == sensor.KindHybrid {
		return sensor.NewHybrid(digital, brd.Analog(adcPin), s.ADCThreshold)
	}
	return digital
}

// pinButton returns nil rather than a typed nil so callers can test for an
// absent button.
func pinButton(brd *board.Board, name string, pin, debounceMs int) sensor.Button {
	if brd == nil || pin == config.NoPin {
		return nil
	}
	return sensor.NewPinButton(name, brd.Digital(pin), debounceMs)
}
