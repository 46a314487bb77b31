package race

import (
	"time"

	"github.com/banshee-data/dragtree/internal/timeutil"
)

// DefaultButtonBatchSize bounds how many queued player-button events one
// tick will act on.
const DefaultButtonBatchSize = 5

// Options is the fully resolved race configuration.
type Options struct {
	LightOn    time.Duration
	Transition time.Duration
	PreStart   time.Duration
	PostRace   time.Duration
	Timeout    time.Duration

	StagingEnabled      bool
	StagingAutoSequence bool
	StagingDelayMin     time.Duration
	StagingDelayMax     time.Duration

	// ReleaseToStart fires a lane's gate when its button is released rather
	// than pressed.
	ReleaseToStart  bool
	ButtonBatchSize int
}

func (o Options) timing() Timing {
	return Timing{LightOnMs: timeutil.Ms(o.LightOn), TransitionMs: timeutil.Ms(o.Transition)}
}

func (o Options) batchSize() int {
	if o.ButtonBatchSize <= 0 {
		return DefaultButtonBatchSize
	}
	return o.ButtonBatchSize
}
