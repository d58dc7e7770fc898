package coordinate

import (
	"context"
	"sync/atomic"
	"time"
)

// QuiesceResult is the outcome of the stop handshake.
type QuiesceResult int

const (
	// Acknowledged means the behavior task cleared its busy flag
	// within the bounded wait.
	Acknowledged QuiesceResult = iota

	// TimedOut means the busy flag was still set at the cap. The
	// pipeline proceeds anyway: an update must not be blockable
	// indefinitely by a misbehaving task.
	TimedOut
)

func (r QuiesceResult) String() string {
	if r == Acknowledged {
		return "acknowledged"
	}
	return "timed out"
}

// Coordinator holds the shared flags and the handshake timing.
type Coordinator struct {
	isUpdating   atomic.Bool
	shouldStop   atomic.Bool
	behaviorBusy atomic.Bool

	pollInterval time.Duration
	stopWaitCap  time.Duration
}

// New creates a coordinator with all flags clear.
func New(pollInterval, stopWaitCap time.Duration) *Coordinator {
	return &Coordinator{
		pollInterval: pollInterval,
		stopWaitCap:  stopWaitCap,
	}
}

// Engage claims the update slot and requests the behavior task stop.
// It returns false if another update is already in flight.
func (c *Coordinator) Engage() bool {
	if !c.isUpdating.CompareAndSwap(false, true) {
		return false
	}
	c.shouldStop.Store(true)
	return true
}

// Release returns the coordinator to idle after an aborted update.
// Never called on success: the process ends in a reboot instead.
func (c *Coordinator) Release() {
	c.shouldStop.Store(false)
	c.isUpdating.Store(false)
}

// AwaitQuiesce polls the busy flag at the poll interval until the
// behavior task yields or the bounded wait elapses.
func (c *Coordinator) AwaitQuiesce(ctx context.Context) QuiesceResult {
	if !c.behaviorBusy.Load() {
		return Acknowledged
	}

	deadline := time.NewTimer(c.stopWaitCap)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if !c.behaviorBusy.Load() {
				return Acknowledged
			}
		case <-deadline.C:
			return TimedOut
		case <-ctx.Done():
			return TimedOut
		}
	}
}

// Updating reports whether an update is in flight.
func (c *Coordinator) Updating() bool {
	return c.isUpdating.Load()
}

// ShouldStop is read by the behavior task at every phase boundary.
func (c *Coordinator) ShouldStop() bool {
	return c.shouldStop.Load()
}

// SetBusy is written only by the behavior task: true while inside a
// phase, false the instant it yields or observes the stop flag.
func (c *Coordinator) SetBusy(busy bool) {
	c.behaviorBusy.Store(busy)
}

// Busy is read by the update pipeline during the handshake.
func (c *Coordinator) Busy() bool {
	return c.behaviorBusy.Load()
}
