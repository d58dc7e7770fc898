// Package behavior implements the foreground task driving the
// physical output through timed phases.
//
// The task is an explicit state machine advanced by a scheduler tick
// rather than a blocking delay loop: the runner simply stops advancing
// a machine once the coordinator requests a stop, so worst-case stop
// latency is one tick regardless of phase duration.
package behavior
