// Package sensor supplies debounced "beam broken" readings for the start and
// finish lines of each lane, from real pins or from a timed simulation.
package sensor

import (
	"fmt"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/timeutil"
)

// Kind selects the implementation backing a lane sensor.
type Kind int

const (
	KindHardware Kind = iota
	KindSimulated
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindHardware:
		return "hardware"
	case KindSimulated:
		return "simulated"
	case KindHybrid:
		return "hybrid"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "hardware", "":
		return KindHardware, nil
	case "simulated":
		return KindSimulated, nil
	case "hybrid":
		return KindHybrid, nil
	}
	return 0, fmt.Errorf("unknown sensor kind %q", s)
}

// Source reports whether a beam is currently broken. Callers derive edges
// themselves; a Source only reports level.
type Source interface {
	Blocked(now timeutil.Millis) bool
	Kind() Kind
}

// Armable sources start their replay clock when armed.
type Armable interface {
	Source
	Arm(at timeutil.Millis)
	Disarm()
}

// Resettable inputs drop their debounce history when a lane is reset.
type Resettable interface {
	Reset()
}

// DigitalPin reads a single logic level.
type DigitalPin interface {
	Level() (bool, error)
}

// AnalogPin reads a 16-bit ADC sample.
type AnalogPin interface {
	ReadU16() (uint16, error)
}

// Hardware reads one digital pin per call. BlockedLevel is the logic level
// that means the beam is interrupted.
type Hardware struct {
	name         string
	pin          DigitalPin
	blockedLevel bool
	debounce     Debouncer
	lastErr      error
}

// NewHardware builds a digital beam sensor with leading-edge debounce.
func NewHardware(name string, pin DigitalPin, blockedLevel bool, debounceMs int) *Hardware {
	return &Hardware{
		name:         name,
		pin:          pin,
		blockedLevel: blockedLevel,
		debounce:     Debouncer{Interval: debounceMs},
	}
}

func (h *Hardware) Kind() Kind { return KindHardware }

// Reset forgets the debounced state and any logged read fault.
func (h *Hardware) Reset() {
	h.debounce.Reset()
	h.lastErr = nil
}

// Blocked samples the pin. A read fault keeps the previous debounced state
// and is logged once until the pin recovers.
func (h *Hardware) Blocked(now timeutil.Millis) bool {
	level, err := h.pin.Level()
	if err != nil {
		if h.lastErr == nil {
			monitoring.Logf("%s: pin read failed: %v", h.name, err)
		}
		h.lastErr = err
		return h.debounce.State()
	}
	h.lastErr = nil
	return h.debounce.Update(now, level == h.blockedLevel)
}

// Hybrid is a Hardware sensor with an ADC channel sampled alongside for
// diagnostics. The digital reading is always the answer.
type Hybrid struct {
	*Hardware
	adc       AnalogPin
	threshold uint16
	lastADC   uint16
}

// NewHybrid wraps a digital sensor with an analog diagnostic channel.
func NewHybrid(hw *Hardware, adc AnalogPin, threshold uint16) *Hybrid {
	return &Hybrid{Hardware: hw, adc: adc, threshold: threshold}
}

func (h *Hybrid) Kind() Kind { return KindHybrid }

func (h *Hybrid) Blocked(now timeutil.Millis) bool {
	digital := h.Hardware.Blocked(now)
	v, err := h.adc.ReadU16()
	if err != nil {
		monitoring.Debugf("%s: adc read failed: %v", h.name, err)
		return digital
	}
	h.lastADC = v
	if analog := v > h.threshold; analog != digital {
		monitoring.Debugf("%s: sensor disagreement - digital: %t, adc: %t (%d)", h.name, digital, analog, v)
	}
	return digital
}

// LastAnalog returns the most recent ADC sample.
func (h *Hybrid) LastAnalog() uint16 { return h.lastADC }

// Simulated replays a beam break DelayMs after being armed. It reports
// blocked exactly once, then disarms itself.
type Simulated struct {
	name    string
	delayMs int
	armed   bool
	armedAt timeutil.Millis
}

// NewSimulated builds a replay sensor.
func NewSimulated(name string, delayMs int) *Simulated {
	return &Simulated{name: name, delayMs: delayMs}
}

func (s *Simulated) Kind() Kind { return KindSimulated }

// Arm starts the replay at the given instant. Re-arming an armed sensor
// keeps the first arming time.
func (s *Simulated) Arm(at timeutil.Millis) {
	if s.armed {
		return
	}
	s.armed = true
	s.armedAt = at
}

// Disarm cancels a pending replay.
func (s *Simulated) Disarm() { s.armed = false }

// Armed reports whether a replay is pending.
func (s *Simulated) Armed() bool { return s.armed }

func (s *Simulated) Blocked(now timeutil.Millis) bool {
	if !s.armed || timeutil.Diff(now, s.armedAt) < s.delayMs {
		return false
	}
	s.armed = false
	monitoring.Debugf("%s: simulated beam break after %d ms", s.name, timeutil.Diff(now, s.armedAt))
	return true
}
