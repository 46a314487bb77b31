package config

import (
	"time"

	"github.com/banshee-data/dragtree/internal/race"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/tree"
)

// Servo drivers a lane may use.
const (
	ServoHardware  = "hardware"
	ServoSimulated = "simulated"
)

// NoPin marks an unwired input.
const NoPin = -1

// LaneSettings is one lane's fully resolved wiring.
type LaneSettings struct {
	ID             int
	StartSensor    sensor.Kind
	FinishSensor   sensor.Kind
	ServoSimulated bool

	StartPin     int
	FinishPin    int
	ButtonPin    int
	StartADCPin  int
	FinishADCPin int

	ServoOpen   int
	ServoClosed int

	SimReactionMs int
	SimRaceMs     int
}

// Settings is the configuration the controller runs with. Every value is
// populated; nothing downstream checks for presence.
type Settings struct {
	NumLanes int
	Variant  tree.Variant
	Race     race.Options

	ServoHoldMs        int
	LoopInterval       time.Duration
	SensorDebounceMs   int
	ButtonDebounceMs   int
	SensorBlockedLevel bool
	ADCThreshold       uint16
	StartButtonPin     int
	ResetButtonPin     int

	Lanes []LaneSettings
}

// Resolve validates the config and fills in every default.
func (c *RaceConfig) Resolve() (Settings, error) {
	if err := c.Validate(); err != nil {
		return Settings{}, err
	}

	s := Settings{
		NumLanes: c.GetNumLanes(),
		Variant:  c.GetTreeVariant(),
		Race: race.Options{
			LightOn:             c.GetLightOnDuration(),
			Transition:          c.GetTransitionDelay(),
			PreStart:            c.GetPreStartDelay(),
			PostRace:            c.GetPostRaceDelay(),
			Timeout:             c.GetRaceTimeout(),
			StagingEnabled:      c.GetStagingEnabled(),
			StagingAutoSequence: c.GetStagingAutoSequence(),
			StagingDelayMin:     c.GetStagingDelayMin(),
			StagingDelayMax:     c.GetStagingDelayMax(),
			ReleaseToStart:      c.GetReleaseToStart(),
			ButtonBatchSize:     c.GetButtonBatchSize(),
		},
		ServoHoldMs:        timeutil.Ms(c.GetServoHoldTime()),
		LoopInterval:       c.GetLoopInterval(),
		SensorDebounceMs:   timeutil.Ms(c.GetSensorDebounce()),
		ButtonDebounceMs:   timeutil.Ms(c.GetButtonDebounce()),
		SensorBlockedLevel: c.GetSensorBlockedLevel(),
		ADCThreshold:       c.GetADCThreshold(),
		StartButtonPin:     c.GetStartButtonPin(),
		ResetButtonPin:     c.GetResetButtonPin(),
	}

	for i := 0; i < s.NumLanes; i++ {
		var lc LaneConfig
		if i < len(c.Lanes) {
			lc = c.Lanes[i]
		}
		s.Lanes = append(s.Lanes, c.resolveLane(i, lc))
	}
	return s, nil
}

func (c *RaceConfig) resolveLane(i int, lc LaneConfig) LaneSettings {
	ls := LaneSettings{
		ID:            i + 1,
		StartSensor:   kind(lc.StartSensor),
		FinishSensor:  kind(lc.FinishSensor),
		StartPin:      NoPin,
		FinishPin:     NoPin,
		ButtonPin:     NoPin,
		StartADCPin:   pin(lc.StartADCPin, NoPin),
		FinishADCPin:  pin(lc.FinishADCPin, NoPin),
		ServoOpen:     pin(lc.ServoOpen, c.GetServoOpenPosition()),
		ServoClosed:   pin(lc.ServoClosed, c.GetServoClosedPosition()),
		SimReactionMs: simulated(c.SimulationReactionTimes, i, 200),
		SimRaceMs:     simulated(c.SimulationRaceTimes, i, 4000),
	}
	if i < len(defaultLanePins) {
		ls.StartPin = defaultLanePins[i].start
		ls.FinishPin = defaultLanePins[i].finish
		ls.ButtonPin = defaultLanePins[i].button
	}
	ls.StartPin = pin(lc.StartPin, ls.StartPin)
	ls.FinishPin = pin(lc.FinishPin, ls.FinishPin)
	ls.ButtonPin = pin(lc.ButtonPin, ls.ButtonPin)
	ls.ServoSimulated = lc.Servo == nil || *lc.Servo == ServoSimulated

	// hybrid sensors need an ADC channel
	if ls.StartSensor == sensor.KindHybrid && ls.StartADCPin == NoPin {
		ls.StartSensor = sensor.KindHardware
	}
	if ls.FinishSensor == sensor.KindHybrid && ls.FinishADCPin == NoPin {
		ls.FinishSensor = sensor.KindHardware
	}
	return ls
}

func kind(v *string) sensor.Kind {
	if v == nil {
		return sensor.KindSimulated
	}
	k, err := sensor.ParseKind(*v)
	if err != nil {
		return sensor.KindSimulated
	}
	return k
}

func pin(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
