package board_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dragtree/internal/board"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/serialmux"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

func newBoard(t *testing.T) (*board.Board, *serialmux.TestableSerialPort) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	port := serialmux.NewTestableSerialPort()
	mux := serialmux.NewSerialMux(port)
	b := board.New(mux)

	ctx, cancel := context.WithCancel(context.Background())
	go mux.Monitor(ctx)
	go b.Run(ctx)
	t.Cleanup(func() {
		cancel()
		mux.Close()
	})
	return b, port
}

func TestBoard_CachesPinReports(t *testing.T) {
	b, port := newBoard(t)
	start := b.Digital(0)
	adc := b.Analog(26)

	_, err := start.Level()
	assert.ErrorIs(t, err, board.ErrNoReading)
	_, err = adc.ReadU16()
	assert.ErrorIs(t, err, board.ErrNoReading)

	port.AddReadData([]byte("# dragtree io\nD 0 1\nA 26 31000\nD 0 0\n"))

	require.Eventually(t, func() bool {
		level, err := start.Level()
		return err == nil && !level
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		v, err := adc.ReadU16()
		return err == nil && v == 31000
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBoard_FeedsHardwareSensor(t *testing.T) {
	b, port := newBoard(t)
	beam := sensor.NewHardware("lane 1 start", b.Digital(4), true, 0)

	assert.False(t, beam.Blocked(timeutil.Millis(0)))
	port.AddReadData([]byte("D 4 1\n"))
	require.Eventually(t, func() bool {
		return beam.Blocked(timeutil.Millis(10))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBoard_IgnoresMalformedLines(t *testing.T) {
	b, port := newBoard(t)
	port.AddReadData([]byte("D 7 9\nD 7 1\n"))
	require.Eventually(t, func() bool {
		level, err := b.Digital(7).Level()
		return err == nil && level
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDrivers_Commands(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	b := board.New(serialmux.NewSerialMux(port))

	lights := board.Lights{Board: b}
	require.NoError(t, lights.SetLight(2, tree.Amber3, true))
	require.NoError(t, lights.SetLight(1, tree.Green, false))
	require.NoError(t, lights.ClearAll())
	assert.Equal(t, []string{"L 2 amber3 1", "L 1 green 0", "LC"}, port.Commands())

	servos := board.Servos{Board: b, Lanes: map[int]board.Calibration{1: {Open: 8200, Closed: 2000}}}
	require.NoError(t, servos.ServoOpen(1))
	require.NoError(t, servos.ServoClose(1))
	assert.Error(t, servos.ServoOpen(2))
	assert.Equal(t, []string{"S 1 8200", "S 1 2000"}, port.Commands())

	ind := board.Indicators{Board: b}
	require.NoError(t, ind.WinAnimation(1))
	require.NoError(t, ind.FalseStartAnimation(2))
	require.NoError(t, ind.WinnerIndicator(1, true))
	require.NoError(t, ind.FalseStartIndicator(2, false))
	assert.Equal(t, []string{"W 1", "F 2", "I 1 W 1", "I 2 F 0"}, port.Commands())
}

func TestDisplays_Commands(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	d := board.Displays{Board: board.New(serialmux.NewSerialMux(port))}

	tests := []struct {
		name string
		call func() error
		want []string
	}{
		{"ready", func() error { return d.ShowReady(0) }, []string{"T 1 0 RDY-", "T 1 1 STBY"}},
		{"reaction", func() error { return d.ShowReactionTime(1, 245) }, []string{"N 2 1 0.245 3"}},
		{"early", func() error { return d.ShowReactionTime(0, -120) }, []string{"T 1 0 ERLY", "N 1 1 0.120 3"}},
		{"foul", func() error { return d.ShowFalseStart(0) }, []string{"T 1 0 FOUL", "T 1 1 RED-"}},
		{"position", func() error { return d.ShowPosition(0, 2) }, []string{"T 1 0   2 ", "T 1 1 POS"}},
		{"short time", func() error { return d.ShowTime(0, 4200) }, []string{"N 1 0 4.200 3", "T 1 1 RACE"}},
		{"long time", func() error { return d.ShowTime(0, 12340) }, []string{"N 1 0 12.34 2", "T 1 1 RACE"}},
		{"clear", d.ClearAll, []string{"DC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())
			assert.Equal(t, tt.want, port.Commands())
		})
	}
}

func TestDisplays_JoinsWriteErrors(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	d := board.Displays{Board: board.New(serialmux.NewSerialMux(port))}

	port.WriteError = errors.New("unplugged")
	err := d.ShowReady(0)
	assert.ErrorContains(t, err, "unplugged")
	assert.Equal(t, []string{"T 1 1 STBY"}, port.Commands())
}
