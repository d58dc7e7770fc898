// Package firmware implements the A/B image slot store: the inactive
// slot is the write window for an incoming image while the active one
// keeps running. The manifest records per-slot state, length, and
// digest; the active image changes only when a fully verified spare
// slot is activated.
package firmware
