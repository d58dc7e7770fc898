// Package coordinate arbitrates mutual exclusion between the update
// pipeline and the behavior task.
//
// Three atomic flags with a single writer each carry the handshake:
// isUpdating and shouldStop are written only by the pipeline,
// behaviorBusy only by the behavior task. isUpdating doubles as a
// one-bit mutex so at most one update is ever in flight.
package coordinate
