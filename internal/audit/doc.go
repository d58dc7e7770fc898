// Package audit implements the append-only action log for the Device
// Control Container.
//
// Every control action (parameter change, update attempt) is recorded
// as one JSON line with action, target, outcome, and latency.
package audit
