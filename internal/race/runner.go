package race

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/sensor"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdReset
	cmdButton
)

type command struct {
	kind  commandKind
	lane  int
	reply chan error
}

// Runner owns the Manager and drives it from a ticker on one goroutine.
// Other goroutines reach it only through commands and status snapshots.
type Runner struct {
	m        *Manager
	interval time.Duration
	startBtn sensor.Button
	resetBtn sensor.Button

	startPressed bool
	resetPressed bool

	cmds   chan command
	done   chan struct{}
	status atomic.Pointer[Status]

	mu   sync.Mutex
	subs map[chan Status]struct{}
}

// NewRunner wraps m. The start and reset buttons may be nil.
func NewRunner(m *Manager, interval time.Duration, startBtn, resetBtn sensor.Button) *Runner {
	r := &Runner{
		m:        m,
		interval: interval,
		startBtn: startBtn,
		resetBtn: resetBtn,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[chan Status]struct{}),
	}
	s := m.Status()
	r.status.Store(&s)
	return r
}

// Run ticks the manager every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	ticker := r.m.clock.NewTicker(r.interval)
	defer ticker.Stop()

	monitoring.Logf("System ready. Press start or reset buttons to begin.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.cmds:
			err := r.exec(c)
			r.publish()
			c.reply <- err
		case <-ticker.C():
			r.tick()
			r.publish()
		}
	}
}

func (r *Runner) tick() {
	now := r.m.Now()
	if r.resetBtn != nil {
		pressed := r.resetBtn.Pressed(now)
		if pressed && !r.resetPressed {
			r.m.ResetRace()
		}
		r.resetPressed = pressed
	}
	if r.startBtn != nil {
		pressed := r.startBtn.Pressed(now)
		if pressed && !r.startPressed && !r.m.raceStarted {
			if err := r.m.StartRace(); err != nil {
				monitoring.Logf("Start button ignored: %v", err)
			}
		}
		r.startPressed = pressed
	}
	r.m.Tick()
}

func (r *Runner) exec(c command) error {
	switch c.kind {
	case cmdStart:
		return r.m.StartRace()
	case cmdReset:
		r.m.ResetRace()
	case cmdButton:
		if c.lane < 0 || c.lane >= len(r.m.lanes) {
			return fmt.Errorf("no lane at index %d", c.lane)
		}
		if !r.m.QueueButton(c.lane, false) {
			return ErrRaceNotRunning
		}
	}
	return nil
}

func (r *Runner) send(ctx context.Context, c command) error {
	c.reply = make(chan error, 1)
	select {
	case r.cmds <- c:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartRace asks the loop to start a race and waits for the outcome,
// including the pre-start delay.
func (r *Runner) StartRace(ctx context.Context) error {
	return r.send(ctx, command{kind: cmdStart})
}

// ResetRace asks the loop to reset.
func (r *Runner) ResetRace(ctx context.Context) error {
	return r.send(ctx, command{kind: cmdReset})
}

// PressButton queues a player-button event for lane index i, as if the
// lane's own button had been pressed.
func (r *Runner) PressButton(ctx context.Context, i int) error {
	return r.send(ctx, command{kind: cmdButton, lane: i})
}

// Status returns the latest snapshot. It never blocks on the loop.
func (r *Runner) Status() Status {
	return *r.status.Load()
}

// Subscribe returns a channel that receives a snapshot whenever the status
// changes. Slow subscribers miss intermediate snapshots. Call cancel to
// unsubscribe.
func (r *Runner) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	ch <- r.Status()
	return ch, func() {
		r.mu.Lock()
		delete(r.subs, ch)
		r.mu.Unlock()
	}
}

func (r *Runner) publish() {
	s := r.m.Status()
	if reflect.DeepEqual(*r.status.Load(), s) {
		return
	}
	r.status.Store(&s)

	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
