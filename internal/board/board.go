// Package board talks to the IO co-processor that owns the tree's pins.
//
// The board reports input levels as `D <pin> <0|1>` and ADC samples as
// `A <pin> <value>` lines; Board caches the latest value per pin so sensors
// and buttons can poll it every tick without touching the serial port. Output
// drivers in this package turn hw calls into board commands.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
	"github.com/banshee-data/dragtree/internal/serialmux"
)

// ErrNoReading is returned for a pin the board has not reported yet.
var ErrNoReading = errors.New("no reading from board")

// Board is the pin cache plus the command channel to the IO board.
type Board struct {
	mux serialmux.SerialMuxInterface

	mu      sync.RWMutex
	digital map[int]bool
	analog  map[int]uint16
}

func New(mux serialmux.SerialMuxInterface) *Board {
	return &Board{
		mux:     mux,
		digital: make(map[int]bool),
		analog:  make(map[int]uint16),
	}
}

// Run feeds board lines into the cache until ctx is done or the mux closes.
func (b *Board) Run(ctx context.Context) error {
	id, lines := b.mux.Subscribe()
	defer b.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := serialmux.HandleEvent(b, line); err != nil {
				monitoring.Logf("board: %v", err)
			}
		}
	}
}

func (b *Board) OnDigital(pin int, level bool) {
	b.mu.Lock()
	b.digital[pin] = level
	b.mu.Unlock()
}

func (b *Board) OnAnalog(pin int, value uint16) {
	b.mu.Lock()
	b.analog[pin] = value
	b.mu.Unlock()
}

// Digital returns a reader for an input pin.
func (b *Board) Digital(pin int) sensor.DigitalPin { return digitalPin{b, pin} }

// Analog returns a reader for an ADC pin.
func (b *Board) Analog(pin int) sensor.AnalogPin { return analogPin{b, pin} }

func (b *Board) send(format string, args ...interface{}) error {
	return b.mux.SendCommand(fmt.Sprintf(format, args...))
}

type digitalPin struct {
	b   *Board
	pin int
}

func (p digitalPin) Level() (bool, error) {
	p.b.mu.RLock()
	defer p.b.mu.RUnlock()
	level, ok := p.b.digital[p.pin]
	if !ok {
		return false, fmt.Errorf("pin %d: %w", p.pin, ErrNoReading)
	}
	return level, nil
}

type analogPin struct {
	b   *Board
	pin int
}

func (p analogPin) ReadU16() (uint16, error) {
	p.b.mu.RLock()
	defer p.b.mu.RUnlock()
	v, ok := p.b.analog[p.pin]
	if !ok {
		return 0, fmt.Errorf("adc %d: %w", p.pin, ErrNoReading)
	}
	return v, nil
}
