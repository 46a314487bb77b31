package race

import "errors"

var (
	// ErrRaceInProgress rejects a start while a race is sequencing or running.
	ErrRaceInProgress = errors.New("race already in progress")
	// ErrNotReset rejects a start after completion until the race is reset.
	ErrNotReset = errors.New("race complete, reset before starting again")
	// ErrCoolingDown rejects a start during the post-race delay.
	ErrCoolingDown = errors.New("post-race cooldown in progress")
	// ErrRaceNotRunning rejects a player button while no race is running.
	ErrRaceNotRunning = errors.New("no race running")
	// ErrRunnerStopped is returned by Runner commands once Run has exited.
	ErrRunnerStopped = errors.New("race runner stopped")
)
