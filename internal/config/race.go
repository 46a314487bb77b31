package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/dragtree/internal/race"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/tree"
)

// DefaultConfigPath is the path to the canonical race defaults file.
const DefaultConfigPath = "config/race.defaults.json"

// MaxLanes is the largest tree the controller drives.
const MaxLanes = 8

// RaceConfig is the on-disk race configuration. Every field is optional;
// the Get* methods supply defaults for anything left out, so partial files
// are safe. Durations are Go duration strings such as "1s" or "200ms".
type RaceConfig struct {
	NumLanes    *int    `json:"num_lanes,omitempty"`
	TreeVariant *string `json:"tree_variant,omitempty"`

	// Light tree timing
	LightOnDuration *string `json:"light_on_duration,omitempty"`
	TransitionDelay *string `json:"transition_delay,omitempty"`

	// Race setup timing
	PreStartDelay *string `json:"pre_start_delay,omitempty"`
	PostRaceDelay *string `json:"post_race_delay,omitempty"`
	RaceTimeout   *string `json:"race_timeout,omitempty"`

	// Servo
	ServoHoldTime       *string `json:"servo_hold_time,omitempty"`
	ServoOpenPosition   *int    `json:"servo_open_position,omitempty"`
	ServoClosedPosition *int    `json:"servo_closed_position,omitempty"`

	// Main loop and inputs
	LoopInterval       *string `json:"loop_interval,omitempty"`
	SensorDebounce     *string `json:"sensor_debounce,omitempty"`
	ButtonDebounce     *string `json:"button_debounce,omitempty"`
	SensorBlockedLevel *int    `json:"sensor_blocked_level,omitempty"`
	ADCThreshold       *int    `json:"adc_threshold,omitempty"`
	StartButtonPin     *int    `json:"start_button_pin,omitempty"`
	ResetButtonPin     *int    `json:"reset_button_pin,omitempty"`
	ButtonBatchSize    *int    `json:"button_batch_size,omitempty"`

	// Staging
	StagingEnabled      *bool   `json:"staging_enabled,omitempty"`
	StagingAutoSequence *bool   `json:"staging_auto_sequence,omitempty"`
	StagingDelayMin     *string `json:"staging_delay_min,omitempty"`
	StagingDelayMax     *string `json:"staging_delay_max,omitempty"`
	ReleaseToStart      *bool   `json:"release_to_start,omitempty"`

	// Simulation, indexed by lane
	SimulationReactionTimes []int `json:"simulation_reaction_times,omitempty"`
	SimulationRaceTimes     []int `json:"simulation_race_times,omitempty"`

	Lanes []LaneConfig `json:"lanes,omitempty"`
}

// LaneConfig overrides the wiring of one lane. Lanes beyond the list, and
// fields left out, use the defaults.
type LaneConfig struct {
	StartSensor  *string `json:"start_sensor,omitempty"`  // hardware, simulated or hybrid
	FinishSensor *string `json:"finish_sensor,omitempty"` // hardware, simulated or hybrid
	Servo        *string `json:"servo,omitempty"`         // hardware or simulated
	StartPin     *int    `json:"start_pin,omitempty"`
	FinishPin    *int    `json:"finish_pin,omitempty"`
	ButtonPin    *int    `json:"button_pin,omitempty"`
	StartADCPin  *int    `json:"start_adc_pin,omitempty"`
	FinishADCPin *int    `json:"finish_adc_pin,omitempty"`
	ServoOpen    *int    `json:"servo_open,omitempty"`
	ServoClosed  *int    `json:"servo_closed,omitempty"`
}

// Default board pins for lanes 1-5, as wired on the reference controller.
var defaultLanePins = []struct{ start, finish, button int }{
	{0, 1, 4},
	{2, 3, 5},
	{10, 11, 13},
	{14, 15, 17},
	{18, 19, 26},
}

func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyRaceConfig returns a RaceConfig with every field unset.
func EmptyRaceConfig() *RaceConfig {
	return &RaceConfig{}
}

// LoadRaceConfig loads a RaceConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadRaceConfig(path string) (*RaceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRaceConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *RaceConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRaceConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field holds a usable value.
func (c *RaceConfig) Validate() error {
	if c.NumLanes != nil && (*c.NumLanes < 1 || *c.NumLanes > MaxLanes) {
		return fmt.Errorf("num_lanes must be between 1 and %d, got %d", MaxLanes, *c.NumLanes)
	}
	if c.TreeVariant != nil {
		if _, err := tree.ParseVariant(*c.TreeVariant); err != nil {
			return err
		}
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"light_on_duration", c.LightOnDuration},
		{"transition_delay", c.TransitionDelay},
		{"pre_start_delay", c.PreStartDelay},
		{"post_race_delay", c.PostRaceDelay},
		{"race_timeout", c.RaceTimeout},
		{"servo_hold_time", c.ServoHoldTime},
		{"loop_interval", c.LoopInterval},
		{"sensor_debounce", c.SensorDebounce},
		{"button_debounce", c.ButtonDebounce},
		{"staging_delay_min", c.StagingDelayMin},
		{"staging_delay_max", c.StagingDelayMax},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}
	if c.LoopInterval != nil && c.GetLoopInterval() <= 0 {
		return fmt.Errorf("loop_interval must be positive, got %s", *c.LoopInterval)
	}
	if c.GetStagingDelayMin() > c.GetStagingDelayMax() {
		return fmt.Errorf("staging_delay_min (%s) exceeds staging_delay_max (%s)", c.GetStagingDelayMin(), c.GetStagingDelayMax())
	}

	if c.SensorBlockedLevel != nil && *c.SensorBlockedLevel != 0 && *c.SensorBlockedLevel != 1 {
		return fmt.Errorf("sensor_blocked_level must be 0 or 1, got %d", *c.SensorBlockedLevel)
	}
	if c.ADCThreshold != nil && (*c.ADCThreshold < 0 || *c.ADCThreshold > 65535) {
		return fmt.Errorf("adc_threshold must be between 0 and 65535, got %d", *c.ADCThreshold)
	}
	if c.ButtonBatchSize != nil && *c.ButtonBatchSize < 1 {
		return fmt.Errorf("button_batch_size must be positive, got %d", *c.ButtonBatchSize)
	}
	for i, v := range c.SimulationReactionTimes {
		if v < 0 {
			return fmt.Errorf("simulation_reaction_times[%d] must be non-negative, got %d", i, v)
		}
	}
	for i, v := range c.SimulationRaceTimes {
		if v < 0 {
			return fmt.Errorf("simulation_race_times[%d] must be non-negative, got %d", i, v)
		}
	}

	if len(c.Lanes) > c.GetNumLanes() {
		return fmt.Errorf("%d lanes configured but num_lanes is %d", len(c.Lanes), c.GetNumLanes())
	}
	for i, l := range c.Lanes {
		if err := l.validate(); err != nil {
			return fmt.Errorf("lanes[%d]: %w", i, err)
		}
	}
	return nil
}

func (l LaneConfig) validate() error {
	for _, k := range []*string{l.StartSensor, l.FinishSensor} {
		if k == nil {
			continue
		}
		if _, err := sensor.ParseKind(*k); err != nil {
			return err
		}
	}
	if l.Servo != nil && *l.Servo != ServoHardware && *l.Servo != ServoSimulated {
		return fmt.Errorf("servo must be %q or %q, got %q", ServoHardware, ServoSimulated, *l.Servo)
	}
	return nil
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetNumLanes returns num_lanes or the default of 2.
func (c *RaceConfig) GetNumLanes() int {
	if c.NumLanes == nil {
		return 2
	}
	return *c.NumLanes
}

// GetTreeVariant returns the configured tree, or the full tree.
func (c *RaceConfig) GetTreeVariant() tree.Variant {
	if c.TreeVariant == nil {
		return tree.Full
	}
	v, err := tree.ParseVariant(*c.TreeVariant)
	if err != nil {
		return tree.Full
	}
	return v
}

func (c *RaceConfig) GetLightOnDuration() time.Duration {
	return duration(c.LightOnDuration, time.Second)
}

func (c *RaceConfig) GetTransitionDelay() time.Duration {
	return duration(c.TransitionDelay, 200*time.Millisecond)
}

func (c *RaceConfig) GetPreStartDelay() time.Duration {
	return duration(c.PreStartDelay, 3*time.Second)
}

func (c *RaceConfig) GetPostRaceDelay() time.Duration {
	return duration(c.PostRaceDelay, 2*time.Second)
}

func (c *RaceConfig) GetRaceTimeout() time.Duration {
	return duration(c.RaceTimeout, 15*time.Second)
}

func (c *RaceConfig) GetServoHoldTime() time.Duration {
	return duration(c.ServoHoldTime, 500*time.Millisecond)
}

// GetLoopInterval is the tick period of the control loop.
func (c *RaceConfig) GetLoopInterval() time.Duration {
	return duration(c.LoopInterval, 5*time.Millisecond)
}

func (c *RaceConfig) GetSensorDebounce() time.Duration {
	return duration(c.SensorDebounce, 5*time.Millisecond)
}

func (c *RaceConfig) GetButtonDebounce() time.Duration {
	return duration(c.ButtonDebounce, 500*time.Millisecond)
}

func (c *RaceConfig) GetStagingDelayMin() time.Duration {
	return duration(c.StagingDelayMin, time.Second)
}

func (c *RaceConfig) GetStagingDelayMax() time.Duration {
	return duration(c.StagingDelayMax, 3*time.Second)
}

func (c *RaceConfig) GetStagingEnabled() bool {
	return c.StagingEnabled != nil && *c.StagingEnabled
}

func (c *RaceConfig) GetStagingAutoSequence() bool {
	if c.StagingAutoSequence == nil {
		return true
	}
	return *c.StagingAutoSequence
}

func (c *RaceConfig) GetReleaseToStart() bool {
	return c.ReleaseToStart != nil && *c.ReleaseToStart
}

func (c *RaceConfig) GetButtonBatchSize() int {
	if c.ButtonBatchSize == nil {
		return race.DefaultButtonBatchSize
	}
	return *c.ButtonBatchSize
}

// GetServoOpenPosition is the global open duty value.
func (c *RaceConfig) GetServoOpenPosition() int {
	if c.ServoOpenPosition == nil {
		return 8200
	}
	return *c.ServoOpenPosition
}

// GetServoClosedPosition is the global closed duty value.
func (c *RaceConfig) GetServoClosedPosition() int {
	if c.ServoClosedPosition == nil {
		return 2000
	}
	return *c.ServoClosedPosition
}

// GetSensorBlockedLevel is the logic level that means a beam is broken.
func (c *RaceConfig) GetSensorBlockedLevel() bool {
	if c.SensorBlockedLevel == nil {
		return true
	}
	return *c.SensorBlockedLevel == 1
}

func (c *RaceConfig) GetADCThreshold() uint16 {
	if c.ADCThreshold == nil {
		return 30000
	}
	return uint16(*c.ADCThreshold)
}

func (c *RaceConfig) GetStartButtonPin() int {
	if c.StartButtonPin == nil {
		return 6
	}
	return *c.StartButtonPin
}

func (c *RaceConfig) GetResetButtonPin() int {
	if c.ResetButtonPin == nil {
		return 7
	}
	return *c.ResetButtonPin
}

// simulated picks lane i's value from times, falling back to lane 1's
// value for short lists and to def when the list is empty.
func simulated(times []int, i, def int) int {
	switch {
	case i < len(times):
		return times[i]
	case len(times) > 0:
		return times[0]
	}
	return def
}
