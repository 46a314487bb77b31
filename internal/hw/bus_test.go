package hw_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/hw/hwtest"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/tree"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

type panicky struct{ hw.Nop }

func (panicky) SetLight(int, tree.Light, bool) error { panic("strip unplugged") }

func TestBus_TranslatesDisplayIndex(t *testing.T) {
	rec := &hwtest.Recorder{}
	bus := hw.NewBus(rec, rec, rec, rec)

	bus.ShowReady(1)
	bus.ShowPosition(2, 1)
	bus.SetLight(2, tree.Green, true)

	assert.Equal(t, []string{"display 0 ready", "display 1 position 1", "light 2 green on"}, rec.Calls())
}

func TestBus_SwallowsErrors(t *testing.T) {
	lines := captureLogs(t)
	rec := &hwtest.Recorder{Fail: errors.New("i2c nack")}
	bus := hw.NewBus(rec, rec, rec, rec)

	bus.ShowTime(1, 4200)
	bus.ServoOpen(1)

	assert.Len(t, *lines, 2)
	assert.True(t, strings.Contains((*lines)[0], "show_time failed: i2c nack"), (*lines)[0])
}

func TestBus_RecoversPanics(t *testing.T) {
	lines := captureLogs(t)
	bus := hw.NewBus(panicky{}, nil, nil, nil)

	assert.NotPanics(t, func() { bus.SetLight(1, tree.Red, true) })
	if assert.Len(t, *lines, 1) {
		assert.Contains(t, (*lines)[0], "panicked: strip unplugged")
	}
}

func TestBus_NilDriversAreNop(t *testing.T) {
	bus := hw.NewBus(nil, nil, nil, nil)
	assert.NotPanics(t, func() {
		bus.ClearAllLights()
		bus.WinAnimation(1)
		bus.ClearDisplays()
	})
}

func TestActuatorRouter(t *testing.T) {
	gate, sim := &hwtest.Recorder{}, &hwtest.Recorder{}
	r := hw.ActuatorRouter{Lanes: map[int]hw.Actuator{1: gate}, Default: sim}

	assert.NoError(t, r.ServoOpen(1))
	assert.NoError(t, r.ServoOpen(3))

	assert.Equal(t, []string{"servo 1 open"}, gate.Calls())
	assert.Equal(t, []string{"servo 3 open"}, sim.Calls())
}
