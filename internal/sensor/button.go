package sensor

import (
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/timeutil"
)

// Button is a momentary push button.
type Button interface {
	Pressed(now timeutil.Millis) bool
}

// PinButton is an active-low button on a pulled-up pin.
type PinButton struct {
	name     string
	pin      DigitalPin
	debounce Debouncer
	failed   bool
}

// NewPinButton wires a pulled-up button: a low level means pressed.
func NewPinButton(name string, pin DigitalPin, debounceMs int) *PinButton {
	return &PinButton{name: name, pin: pin, debounce: Debouncer{Interval: debounceMs}}
}

// Reset forgets the debounced state and any logged read fault.
func (b *PinButton) Reset() {
	b.debounce.Reset()
	b.failed = false
}

func (b *PinButton) Pressed(now timeutil.Millis) bool {
	level, err := b.pin.Level()
	if err != nil {
		if !b.failed {
			monitoring.Logf("%s: button read failed: %v", b.name, err)
		}
		b.failed = true
		return b.debounce.State()
	}
	b.failed = false
	return b.debounce.Update(now, !level)
}
