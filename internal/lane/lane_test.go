package lane_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dragtree/internal/hw"
	"github.com/banshee-data/dragtree/internal/hw/hwtest"
	"github.com/banshee-data/dragtree/internal/lane"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

type fakePin struct{ level bool }

func (p *fakePin) Level() (bool, error) { return p.level, nil }

type fixture struct {
	lane   *lane.Lane
	rec    *hwtest.Recorder
	start  *sensor.Simulated
	finish *sensor.Simulated
}

func newSimLane(t *testing.T, reactionMs, raceMs int) fixture {
	t.Helper()
	rec := &hwtest.Recorder{}
	start := sensor.NewSimulated("lane 1 start", reactionMs)
	finish := sensor.NewSimulated("lane 1 finish", raceMs)
	l := lane.New(1, hw.NewBus(rec, rec, rec, rec), lane.Options{
		Variant:     tree.Full,
		Start:       start,
		Finish:      finish,
		ServoHoldMs: 500,
	})
	return fixture{lane: l, rec: rec, start: start, finish: finish}
}

func intp(v int) *int { return &v }

func TestSetLight_IgnoresLightsOutsideVariant(t *testing.T) {
	rec := &hwtest.Recorder{}
	l := lane.New(2, hw.NewBus(rec, rec, rec, rec), lane.Options{
		Variant: tree.Basic,
		Start:   sensor.NewSimulated("s", 0),
		Finish:  sensor.NewSimulated("f", 0),
	})

	l.SetLight(tree.Prestage, true)
	l.SetLight(tree.Green, true)

	assert.False(t, l.Light(tree.Prestage))
	assert.True(t, l.Light(tree.Green))
	assert.Equal(t, []string{"light 2 green on"}, rec.Calls())
}

func TestLegitimateStart(t *testing.T) {
	f := newSimLane(t, 200, 4000)
	l := f.lane

	l.SetLight(tree.Green, true)
	l.StampStart(1000)
	require.True(t, l.FireServo(1000))

	l.CheckStartLine(1199, true)
	assert.False(t, l.StartLineBroken())

	l.CheckStartLine(1200, true)
	assert.True(t, l.StartLineBroken())
	assert.False(t, l.FalseStart())
	rt, ok := l.ReactionTime()
	require.True(t, ok)
	assert.Equal(t, 200, rt)
	assert.Equal(t, 1, f.rec.Count("display 0 reaction 200"))

	// the start break arms the finish replay
	assert.True(t, f.finish.Armed())
	assert.False(t, l.CheckFinishLine(5199))
	assert.True(t, l.CheckFinishLine(5200))
	ft, ok := l.FinishTime()
	require.True(t, ok)
	assert.Equal(t, 4200, ft)

	// finished lanes ignore further breaks
	assert.False(t, l.CheckFinishLine(6000))
}

func TestFalseStart(t *testing.T) {
	f := newSimLane(t, 50, 1000)
	l := f.lane

	l.SetLight(tree.Amber2, true)
	l.FireServo(700)
	l.CheckStartLine(750, true)

	assert.True(t, l.FalseStart())
	assert.True(t, l.Light(tree.Red))
	_, ok := l.ReactionTime()
	assert.False(t, ok, "no reaction time until the race ends")
	assert.Equal(t, 1, f.rec.Count("light 1 red on"))
	assert.Equal(t, 1, f.rec.Count("display 0 foul"))
	assert.Equal(t, 1, f.rec.Count("foul indicator 1 on"))

	l.StampStart(2000)
	assert.True(t, l.CheckFinishLine(1750))
	assert.False(t, l.AssignPlace(1), "false starter must never be placed")
	_, placed := l.Place()
	assert.False(t, placed)

	l.CalculateReactionTime()
	rt, ok := l.ReactionTime()
	require.True(t, ok)
	assert.Equal(t, -1250, rt)
}

func TestCalculateReactionTime(t *testing.T) {
	t.Run("before green gives sentinel", func(t *testing.T) {
		l := newSimLane(t, 0, 0).lane
		l.FireServo(100)
		l.CheckStartLine(100, true)
		require.True(t, l.FalseStart())

		l.CalculateReactionTime()
		rt, _ := l.ReactionTime()
		assert.Equal(t, lane.ReactionBeforeGreen, rt)
	})

	t.Run("legitimate start untouched", func(t *testing.T) {
		l := newSimLane(t, 10, 0).lane
		l.SetLight(tree.Green, true)
		l.StampStart(100)
		l.FireServo(100)
		l.CheckStartLine(110, true)

		l.CalculateReactionTime()
		rt, _ := l.ReactionTime()
		assert.Equal(t, 10, rt)
	})

	t.Run("no beam break leaves nothing", func(t *testing.T) {
		l := newSimLane(t, 10, 0).lane
		l.CalculateReactionTime()
		_, ok := l.ReactionTime()
		assert.False(t, ok)
	})
}

func TestStartBeam_RisingEdgeOnly(t *testing.T) {
	rec := &hwtest.Recorder{}
	pin := &fakePin{}
	l := lane.New(1, hw.NewBus(rec, rec, rec, rec), lane.Options{
		Variant: tree.Full,
		Start:   sensor.NewHardware("start", pin, true, 0),
		Finish:  sensor.NewSimulated("finish", 0),
	})
	l.SetLight(tree.Green, true)
	l.StampStart(0)

	pin.level = true
	l.CheckStartLine(30, true)
	l.CheckStartLine(40, true)
	pin.level = false
	l.CheckStartLine(50, true)
	pin.level = true
	l.CheckStartLine(60, true)

	rt, _ := l.ReactionTime()
	assert.Equal(t, 30, rt, "only the first break of the race counts")
	assert.Equal(t, 1, rec.Count("display 0 reaction 30"))
}

func TestFinishWithoutGreen(t *testing.T) {
	f := newSimLane(t, 0, 100)
	l := f.lane
	f.finish.Arm(0)

	assert.True(t, l.CheckFinishLine(100))
	assert.True(t, l.FinishLineBroken())
	_, ok := l.FinishTime()
	assert.False(t, ok)
}

func TestAssignPlace(t *testing.T) {
	f := newSimLane(t, 0, 0)
	l := f.lane
	assert.False(t, l.AssignPlace(1), "unfinished")

	f.finish.Arm(0)
	l.CheckFinishLine(0)
	assert.True(t, l.AssignPlace(2))
	assert.False(t, l.AssignPlace(3), "places are never reassigned")
	p, _ := l.Place()
	assert.Equal(t, 2, p)
}

func TestServo(t *testing.T) {
	f := newSimLane(t, 0, 0)
	l := f.lane

	assert.True(t, l.FireServo(timeutil.Millis(^uint32(0)-100)))
	assert.False(t, l.FireServo(0), "gate fires once per race")
	assert.True(t, l.GateReleased())

	l.UpdateServo(300)
	assert.True(t, l.ServoPending())
	l.UpdateServo(399)
	l.UpdateServo(450)
	assert.False(t, l.ServoPending())

	assert.Equal(t, []string{"servo 1 open", "servo 1 close"}, f.rec.Calls())
}

func TestReset(t *testing.T) {
	f := newSimLane(t, 10, 10)
	fresh := f.lane.Status()
	l := f.lane

	l.Prestage()
	l.Prestage()
	l.SetLight(tree.Amber1, true)
	l.FireServo(0)
	l.CheckStartLine(10, true)
	l.StampStart(20)
	l.CheckFinishLine(20)
	l.CalculateReactionTime()

	l.Reset()
	if diff := cmp.Diff(fresh, l.Status()); diff != "" {
		t.Errorf("status after reset (-want +got):\n%s", diff)
	}
	for _, light := range tree.All {
		assert.False(t, l.Light(light), light.String())
	}
	assert.False(t, l.GateReleased())
	assert.False(t, l.ServoPending())
	assert.False(t, l.StartLineBroken())
	assert.False(t, l.FinishLineBroken())
	_, ok := l.StartTime()
	assert.False(t, ok)
	_, ok = l.StartBeamTime()
	assert.False(t, ok)
	assert.False(t, f.start.Armed())
	assert.False(t, f.finish.Armed())

	before := l.Status()
	l.Reset()
	assert.Equal(t, before, l.Status())
}

func TestReset_ForgetsSensorDebounce(t *testing.T) {
	rec := &hwtest.Recorder{}
	pin := &fakePin{level: true}
	l := lane.New(1, hw.NewBus(rec, rec, rec, rec), lane.Options{
		Variant: tree.Full,
		Start:   sensor.NewHardware("lane 1 start", pin, true, 50),
		Finish:  sensor.NewSimulated("lane 1 finish", 0),
	})

	l.CheckStartLine(100, false)
	require.True(t, l.StartLineBroken())
	l.Reset()

	pin.level = false
	l.CheckStartLine(120, false)
	assert.False(t, l.StartLineBroken(), "the old break does not survive the reset")

	pin.level = true
	l.CheckStartLine(130, false)
	require.True(t, l.StartLineBroken())
	at, ok := l.StartBeamTime()
	require.True(t, ok)
	assert.Equal(t, timeutil.Millis(130), at)
}

func TestStaging(t *testing.T) {
	f := newSimLane(t, 0, 0)
	l := f.lane

	assert.False(t, l.Prestage())
	assert.True(t, l.Prestaged())
	assert.True(t, l.Prestage())
	assert.True(t, l.Staged())
	assert.False(t, l.Prestage(), "already staged")

	l.CancelStaging()
	assert.False(t, l.Prestaged())
	assert.False(t, l.Staged())
	assert.False(t, l.Light(tree.Stage))
	assert.False(t, l.Light(tree.Prestage))
}

func TestStatus(t *testing.T) {
	f := newSimLane(t, 5, 100)
	l := f.lane
	l.SetLight(tree.Green, true)
	l.StampStart(0)
	l.FireServo(0)
	l.CheckStartLine(5, true)
	l.CheckFinishLine(105)
	l.AssignPlace(1)

	want := lane.Status{
		LaneID:       1,
		FinishTime:   intp(105),
		ReactionTime: intp(5),
		Place:        intp(1),
	}
	got := l.Status()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}

	*got.Place = 9
	p, _ := l.Place()
	assert.Equal(t, 1, p, "snapshot must not alias lane state")
}
