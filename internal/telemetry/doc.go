// Package telemetry implements the event hub for the Device Control
// Container.
//
// The hub fans out update and behavior lifecycle events to SSE
// subscribers so update tooling can follow an OTA attempt live.
package telemetry
