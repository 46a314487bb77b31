package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dragtree/internal/board"
	"github.com/banshee-data/dragtree/internal/config"
	"github.com/banshee-data/dragtree/internal/httputil"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/serialmux"
	"github.com/banshee-data/dragtree/internal/tree"
)

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func defaultSettings(t *testing.T) config.Settings {
	t.Helper()
	s, err := config.EmptyRaceConfig().Resolve()
	require.NoError(t, err)
	return s
}

func TestBuildRig_DevMode(t *testing.T) {
	quiet(t)
	s := defaultSettings(t)

	r := buildRig(s, nil, false)

	require.Len(t, r.lanes, s.NumLanes)
	assert.Nil(t, r.startBtn)
	assert.Nil(t, r.resetBtn)
	for i, l := range r.lanes {
		assert.Equal(t, i+1, l.ID())
		assert.Nil(t, l.Button(), "lane %d", l.ID())
	}
}

func TestBuildRig_HardwareLanes(t *testing.T) {
	quiet(t)
	port := serialmux.NewTestableSerialPort()
	brd := board.New(serialmux.NewSerialMux(port))

	s := defaultSettings(t)
	s.NumLanes = 2
	s.Lanes = []config.LaneSettings{
		{
			ID: 1, StartSensor: sensor.KindHardware, FinishSensor: sensor.KindHardware,
			StartPin: 0, FinishPin: 1, ButtonPin: 4, StartADCPin: config.NoPin, FinishADCPin: config.NoPin,
			ServoOpen: 8200, ServoClosed: 2000,
		},
		{
			ID: 2, StartSensor: sensor.KindHybrid, FinishSensor: sensor.KindSimulated, ServoSimulated: true,
			StartPin: 2, FinishPin: 3, ButtonPin: config.NoPin, StartADCPin: 26, FinishADCPin: config.NoPin,
			SimReactionMs: 250, SimRaceMs: 4000,
		},
	}

	r := buildRig(s, brd, false)
	require.Len(t, r.lanes, 2)
	assert.NotNil(t, r.startBtn)
	assert.NotNil(t, r.resetBtn)
	assert.NotNil(t, r.lanes[0].Button())
	assert.Nil(t, r.lanes[1].Button())

	r.bus.ServoOpen(1)
	r.bus.ServoClose(1)
	r.bus.ServoOpen(2)
	r.bus.SetLight(2, tree.Green, true)
	r.bus.ShowReady(2)
	r.bus.WinnerIndicator(1, true)
	assert.Equal(t, []string{
		"S 1 8200",
		"S 1 2000",
		fmt.Sprintf("L 2 %s 1", tree.Green),
		"T 2 0 RDY-",
		"T 2 1 STBY",
		"I 1 W 1",
	}, port.Commands())
}

func TestBuildRig_ButtonsReadBoardPins(t *testing.T) {
	quiet(t)
	port := serialmux.NewTestableSerialPort()
	brd := board.New(serialmux.NewSerialMux(port))
	s := defaultSettings(t)

	r := buildRig(s, brd, false)
	require.NotNil(t, r.startBtn)

	assert.False(t, r.startBtn.Pressed(0), "no report yet")
	brd.OnDigital(s.StartButtonPin, true)
	assert.False(t, r.startBtn.Pressed(10), "pulled up")
	brd.OnDigital(s.StartButtonPin, false)
	assert.True(t, r.startBtn.Pressed(20))
}

func TestRunCtl(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		status  int
		body    string
		method  string
		path    string
		out     string
		wantErr string
	}{
		{name: "start", args: []string{"start"}, status: http.StatusOK, method: http.MethodPost, path: "/api/start", out: "race started\n"},
		{name: "reset", args: []string{"--addr", "http://tree:9000/", "reset"}, status: http.StatusOK, method: http.MethodPost, path: "/api/reset", out: "race reset\n"},
		{name: "press", args: []string{"press", "2"}, status: http.StatusOK, method: http.MethodPost, path: "/api/lanes/2/button", out: "lane 2 button pressed\n"},
		{name: "conflict", args: []string{"start"}, status: http.StatusConflict, body: `{"status":"error","message":"race in progress"}`, method: http.MethodPost, path: "/api/start", wantErr: "race in progress"},
		{name: "status", args: []string{"status"}, status: http.StatusOK, body: `{"phase":"idle","lanes":[]}`, method: http.MethodGet, path: "/api/status", out: "\"phase\": \"idle\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := httputil.NewMockHTTPClient().AddResponse(tt.status, tt.body)
			var out bytes.Buffer

			err := runCtl(tt.args, hc, &out)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out.String(), tt.out)
			}
			require.Equal(t, 1, hc.RequestCount())
			assert.Equal(t, tt.method, hc.Requests[0].Method)
			assert.Equal(t, tt.path, hc.Requests[0].URL.Path)
		})
	}
}

func TestRunCtl_BadUsage(t *testing.T) {
	hc := httputil.NewMockHTTPClient()
	var out bytes.Buffer

	assert.Error(t, runCtl(nil, hc, &out))
	assert.Error(t, runCtl([]string{"press"}, hc, &out))
	assert.Error(t, runCtl([]string{"press", "left"}, hc, &out))
	assert.Error(t, runCtl([]string{"launch"}, hc, &out))
	assert.Zero(t, hc.RequestCount())

	hc.AddErrorResponse(errors.New("connection refused"))
	err := runCtl([]string{"start"}, hc, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
