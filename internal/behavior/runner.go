package behavior

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/device-control/dcc/internal/coordinate"
	"github.com/device-control/dcc/internal/gpio"
	"github.com/device-control/dcc/internal/registry"
)

// restPause is the idle gap between full program iterations.
const restPause = 1 * time.Second

// parkInterval is how often a parked runner re-checks whether an
// update is still in flight.
const parkInterval = 100 * time.Millisecond

// Runner schedules the behavior machine. It owns the output driver
// and is the sole writer of the coordinator's busy flag.
type Runner struct {
	driver       gpio.Driver
	registry     *registry.Registry
	coord        *coordinate.Coordinator
	log          *zap.Logger
	pollInterval time.Duration

	lastLevel     gpio.Level
	levelKnown    bool
	currentPin    int
	pinConfigured bool
}

// NewRunner wires a runner to its collaborators.
func NewRunner(driver gpio.Driver, reg *registry.Registry, coord *coordinate.Coordinator, pollInterval time.Duration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		driver:       driver,
		registry:     reg,
		coord:        coord,
		log:          log,
		pollInterval: pollInterval,
		currentPin:   -1,
	}
}

// Run executes program iterations until ctx is cancelled. While an
// update is in flight the runner parks and re-checks periodically;
// it resumes on the next scheduling quantum after an aborted update
// releases the flags.
func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			r.safeOff()
			return
		}
		if r.coord.Updating() {
			if !sleepCtx(ctx, parkInterval) {
				r.safeOff()
				return
			}
			continue
		}

		stopped := r.runIteration(ctx)
		if stopped {
			// Stay parked; the outer loop re-checks the flags.
			continue
		}
		r.rest(ctx)
	}
}

// runIteration executes one full program built from a fresh registry
// snapshot. Parameter changes therefore take effect on the next
// iteration, never mid-phase. Returns true if the stop flag cut the
// iteration short.
func (r *Runner) runIteration(ctx context.Context) bool {
	snap := r.registry.Snapshot()
	r.configurePin(snap.LedPin)

	machine := NewMachine(BuildProgram(snap))

	r.coord.SetBusy(true)
	defer r.coord.SetBusy(false)

	last := time.Now()
	for !machine.Done() {
		if r.coord.ShouldStop() || ctx.Err() != nil {
			r.safeOff()
			return true
		}

		r.drive(machine.Level())

		if !sleepCtx(ctx, r.pollInterval) {
			r.safeOff()
			return true
		}

		now := time.Now()
		machine.Advance(now.Sub(last))
		last = now
	}

	r.drive(machine.Level())
	return false
}

// rest idles between iterations in poll-sized slices so the stop flag
// is still observed promptly. The busy flag stays clear here.
func (r *Runner) rest(ctx context.Context) {
	deadline := time.Now().Add(restPause)
	for time.Now().Before(deadline) {
		if r.coord.ShouldStop() || r.coord.Updating() || ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, r.pollInterval) {
			return
		}
	}
}

// configurePin re-requests the output line when the registry's pin
// variable changed.
func (r *Runner) configurePin(pin int) {
	if r.pinConfigured && r.currentPin == pin {
		return
	}
	if err := r.driver.ConfigureOutput(pin); err != nil {
		r.log.Warn("failed to configure output pin", zap.Int("pin", pin), zap.Error(err))
		return
	}
	r.currentPin = pin
	r.pinConfigured = true
	r.levelKnown = false
}

// drive sets the output level, skipping redundant writes.
func (r *Runner) drive(level gpio.Level) {
	if r.levelKnown && r.lastLevel == level {
		return
	}
	if err := r.driver.SetLevel(level); err != nil {
		r.log.Warn("failed to set output level", zap.Error(err))
		return
	}
	r.lastLevel = level
	r.levelKnown = true
}

// safeOff drives the output to the safe default.
func (r *Runner) safeOff() {
	r.drive(gpio.Low)
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
