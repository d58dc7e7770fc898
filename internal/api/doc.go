// Package api implements the control endpoint dispatcher for the
// Device Control Container.
//
// The protocol is deliberately minimal: plain-text bodies and a
// permissive cross-origin header on every response. The literal
// response strings are a wire contract with the external UI client
// and must not change.
package api
